// Package balance реализует HTTP-обработчик выдачи баланса кредитов
// текущего пользователя.
package balance

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/sofikovaleva/risk-scoring-service/internal/http/middlewarectx"
	"github.com/sofikovaleva/risk-scoring-service/internal/http/response"
	"github.com/sofikovaleva/risk-scoring-service/internal/lib/sl"
	"github.com/sofikovaleva/risk-scoring-service/internal/models"
)

// Service описывает интерфейс бизнес-логики выдачи баланса.
type Service interface {
	Balance(ctx context.Context, userUID string) (*models.UserCredits, error)
}

// Handler обрабатывает запросы баланса кредитов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.balance"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	credits, err := h.service.Balance(r.Context(), userUID)
	if err != nil {
		log.Error("failed to read balance", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read balance"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(credits))
}
