// Package worker содержит обработчик задач скоринга: вычисление оценки,
// публикацию результата и подтверждение списания кредитов.
package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sofikovaleva/risk-scoring-service/internal/metrics"
	"github.com/sofikovaleva/risk-scoring-service/internal/models"
	"github.com/sofikovaleva/risk-scoring-service/internal/scoring"
)

// Задача попадает в очередь раньше, чем её строка появляется в хранилище,
// поэтому завершение повторяется с небольшой паузой.
const (
	completeRetries    = 5
	completeRetryDelay = 200 * time.Millisecond
)

// TaskRepository определяет методы хранилища для завершения задач.
type TaskRepository interface {
	// CompleteTaskByUUID записывает результат задачи по её UUID.
	CompleteTaskByUUID(ctx context.Context, taskUUID string, output string) (int, bool, error)
}

// ResultStore описывает бэкенд результатов.
type ResultStore interface {
	// StoreResult публикует результат задачи для ожидающего API.
	StoreResult(taskUUID string, result *models.ScoringResult) error
}

// Billing описывает операции биллинга, нужные воркеру.
type Billing interface {
	// Finalize подтверждает списание кредитов за выполненную задачу.
	Finalize(ctx context.Context, userUID string, taskID int) error
}

// Service обрабатывает сообщения очереди задач скоринга.
type Service struct {
	repo    TaskRepository
	results ResultStore
	billing Billing
	log     *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo TaskRepository, results ResultStore, billing Billing, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		results: results,
		billing: billing,
		log:     log,
	}
}

// HandleTask обрабатывает одно сообщение очереди: вычисляет оценку,
// публикует результат, завершает задачу в хранилище и подтверждает
// списание. Ошибка возвращает сообщение в очередь, поэтому все шаги
// после вычисления идемпотентны.
func (s *Service) HandleTask(ctx context.Context, body []byte) error {
	const op = "worker.HandleTask"

	var msg models.TaskMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// Сообщение не станет валидным при повторе, фиксируем и выходим.
		s.log.Error("dropping malformed task message", slog.Any("err", err))
		return nil
	}

	timer := prometheus.NewTimer(metrics.ScoringDuration.WithLabelValues(msg.ModelType))
	result, err := scoring.Run(msg.ModelType, msg.Input)
	timer.ObserveDuration()
	if err != nil {
		s.log.Error("dropping task with unknown model type",
			slog.String("task_uuid", msg.TaskUUID), slog.Any("err", err))
		return nil
	}

	if err := s.results.StoreResult(msg.TaskUUID, result); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	output, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	taskID, completedNow, err := s.completeWithRetry(ctx, msg.TaskUUID, string(output))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !completedNow {
		s.log.Info("task already completed",
			slog.String("task_uuid", msg.TaskUUID), slog.Int("task_id", taskID))
	}

	// Подтверждение идемпотентно: повторная доставка не создаёт
	// второй записи списания.
	if err := s.billing.Finalize(ctx, msg.UserUID, taskID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("processed scoring task",
		slog.String("task_uuid", msg.TaskUUID),
		slog.Int("task_id", taskID),
		slog.Float64("score", result.Score))
	return nil
}

// completeWithRetry завершает задачу, дожидаясь появления её строки
// в хранилище.
func (s *Service) completeWithRetry(ctx context.Context, taskUUID, output string) (int, bool, error) {
	var lastErr error
	for attempt := 0; attempt < completeRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, false, ctx.Err()
			case <-time.After(completeRetryDelay):
			}
		}

		taskID, completedNow, err := s.repo.CompleteTaskByUUID(ctx, taskUUID, output)
		if err == nil {
			return taskID, completedNow, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, false, err
		}
		lastErr = err
	}
	return 0, false, lastErr
}
