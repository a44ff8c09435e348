// Package history реализует HTTP-обработчик выдачи журнала операций
// биллинга текущего пользователя.
package history

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

// Service описывает интерфейс бизнес-логики выдачи журнала операций.
type Service interface {
	History(ctx context.Context, userUID string) ([]*models.LedgerEntry, error)
}

// Handler обрабатывает запросы журнала операций биллинга.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.history"

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

	entries, err := h.service.History(r.Context(), userUID)
	if err != nil {
		log.Error("failed to read ledger history", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read history"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(entries))
}
