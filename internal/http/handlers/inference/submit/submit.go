// Package submit реализует HTTP-обработчик постановки задачи скоринга.
//
// Handler принимает JSON с анкетой и типом модели, валидирует их, ставит
// задачу через сервис и возвращает её статус. Если воркер успел вычислить
// оценку за окно ожидания, в ответе сразу приходит результат; иначе задача
// возвращается в статусе PENDING. При нехватке кредитов возвращается
// HTTP 402 Payment Required.
package submit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/sofikovaleva/risk-scoring-service/internal/http/middlewarectx"
	"github.com/sofikovaleva/risk-scoring-service/internal/http/response"
	"github.com/sofikovaleva/risk-scoring-service/internal/lib/sl"
	"github.com/sofikovaleva/risk-scoring-service/internal/models"
	"github.com/sofikovaleva/risk-scoring-service/internal/services/inference"
)

// Service описывает интерфейс бизнес-логики постановки задачи скоринга.
type Service interface {
	Submit(ctx context.Context, userUID string, req models.DummyTask) (*models.ScoringTask, error)
}

// Handler управляет HTTP-запросами на постановку задач скоринга.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.inference.submit"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyTask
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.String("model_type", req.ModelType))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}
	log.Info("all fields are validated")

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	task, err := h.service.Submit(r.Context(), userUID, req)
	if errors.Is(err, models.ErrInsufficientFunds) {
		log.Info("submission rejected: insufficient funds", slog.String("user_uid", userUID))
		w.WriteHeader(http.StatusPaymentRequired)
		render.JSON(w, r, response.Error("insufficient funds"))
		return
	}
	if err != nil {
		log.Error("failed to submit scoring task", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not submit task"))
		return
	}

	log.Info("scoring task submitted",
		slog.Int("task_id", task.ID), slog.String("status", task.Status))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"task_id":   task.ID,
		"task_uuid": task.TaskUUID,
		"status":    task.Status,
		"result":    inference.ResultMessage(task.Status, task.OutputData),
	}))
}
