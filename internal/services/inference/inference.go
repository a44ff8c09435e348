// Package inference содержит бизнес-логику постановки задач скоринга:
// резервирование кредитов, публикацию задачи воркеру, ожидание результата
// и выдачу истории задач пользователя.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sofikovaleva/risk-scoring-service/internal/cache"
	"github.com/sofikovaleva/risk-scoring-service/internal/lib/sl"
	"github.com/sofikovaleva/risk-scoring-service/internal/metrics"
	"github.com/sofikovaleva/risk-scoring-service/internal/models"
)

// Сколько API ждёт результат синхронно, прежде чем отдать PENDING.
const resultWaitTimeout = 5 * time.Second

// TaskRepository определяет методы хранилища для задач скоринга.
type TaskRepository interface {
	// CreateTask сохраняет новую задачу и возвращает её ID.
	CreateTask(ctx context.Context, task models.ScoringTask) (int, error)
	// UpdateTaskOutput записывает результат в задачу, если она ещё PENDING.
	UpdateTaskOutput(ctx context.Context, taskID int, output string) (bool, error)
	// GetTask возвращает задачу по ID.
	GetTask(ctx context.Context, taskID int) (*models.ScoringTask, error)
	// ListTasksByUser возвращает задачи пользователя.
	ListTasksByUser(ctx context.Context, userUID string) ([]*models.ScoringTask, error)
}

// Executor описывает очередь задач и бэкенд результатов.
type Executor interface {
	// Enqueue публикует задачу воркеру.
	Enqueue(ctx context.Context, msg models.TaskMessage) error
	// AwaitResult ждёт результат задачи не дольше timeout.
	AwaitResult(ctx context.Context, taskUUID string, timeout time.Duration) (*models.ScoringResult, error)
}

// Billing описывает операции биллинга, нужные при постановке задачи.
type Billing interface {
	// Freeze резервирует кредиты под запуск модели.
	Freeze(ctx context.Context, userUID, modelType string, taskID *int) (*models.UserCredits, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service реализует постановку и выдачу задач скоринга.
type Service struct {
	repo     TaskRepository
	executor Executor
	billing  Billing
	cache    Cache
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo TaskRepository, executor Executor, billing Billing, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		executor: executor,
		billing:  billing,
		cache:    cache,
		log:      log,
	}
}

// Submit ставит задачу скоринга: резервирует кредиты, публикует задачу
// воркеру, сохраняет её в хранилище и недолго ждёт результат. Если воркер
// не успел, возвращается задача в статусе PENDING. Кредиты резервируются
// строго до публикации: при нехватке средств задача не ставится.
func (s *Service) Submit(ctx context.Context, userUID string, req models.DummyTask) (*models.ScoringTask, error) {
	const op = "inference.Submit"

	if _, err := s.billing.Freeze(ctx, userUID, req.ModelType, nil); err != nil {
		if errors.Is(err, models.ErrInsufficientFunds) {
			metrics.InsufficientFunds.Inc()
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	taskUUID := uuid.NewString()
	msg := models.TaskMessage{
		TaskUUID:  taskUUID,
		UserUID:   userUID,
		ModelType: req.ModelType,
		Input:     req.Input,
	}
	if err := s.executor.Enqueue(ctx, msg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	inputData, err := json.Marshal(req.Input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	task := models.ScoringTask{
		UserUID:   userUID,
		ModelType: req.ModelType,
		InputData: string(inputData),
		Status:    models.TaskStatusPending,
		TaskUUID:  taskUUID,
	}
	taskID, err := s.repo.CreateTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	task.ID = taskID
	s.log.Info("submitted scoring task",
		slog.Int("task_id", taskID),
		slog.String("task_uuid", taskUUID),
		slog.String("model_type", req.ModelType))

	metrics.TasksSubmitted.WithLabelValues(req.ModelType).Inc()
	metrics.QuestionnaireAge.Observe(float64(req.Input.Age))

	if err := s.cache.Invalidate(cache.HistoryKey(userUID)); err != nil {
		s.log.Warn("failed to invalidate history cache", sl.Err(err))
	}

	result, err := s.executor.AwaitResult(ctx, taskUUID, resultWaitTimeout)
	if errors.Is(err, models.ErrResultNotReady) {
		return &task, nil
	}
	if err != nil {
		s.log.Warn("failed to await task result", sl.Err(err))
		return &task, nil
	}

	output, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// Воркер мог успеть записать результат сам, тогда обновление не пройдёт.
	if _, err := s.repo.UpdateTaskOutput(ctx, taskID, string(output)); err != nil {
		s.log.Warn("failed to store task output", sl.Err(err))
	}

	outputData := string(output)
	now := time.Now()
	task.OutputData = &outputData
	task.Status = models.TaskStatusCompleted
	task.FinishedAt = &now
	return &task, nil
}

// History возвращает историю задач пользователя, используя кеш или хранилище.
func (s *Service) History(ctx context.Context, userUID string) ([]*models.TaskHistoryItem, error) {
	const op = "inference.History"

	var cached []*models.TaskHistoryItem
	found, err := s.cache.Get(cache.HistoryKey(userUID), &cached)
	if err != nil {
		s.log.Warn("failed to read history cache", sl.Err(err))
	}
	if found {
		return cached, nil
	}

	tasks, err := s.repo.ListTasksByUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]*models.TaskHistoryItem, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, s.historyItem(task))
	}

	if err := s.cache.Set(cache.HistoryKey(userUID), items, cache.NoExpiration); err != nil {
		s.log.Warn("failed to cache history", sl.Err(err))
	}
	return items, nil
}

// historyItem строит элемент истории из задачи. Повреждённые данные
// не прерывают выдачу списка.
func (s *Service) historyItem(task *models.ScoringTask) *models.TaskHistoryItem {
	item := &models.TaskHistoryItem{
		ModelType: task.ModelType,
		CreatedAt: task.CreatedAt,
	}
	if err := json.Unmarshal([]byte(task.InputData), &item.Input); err != nil {
		s.log.Warn("corrupted task input",
			slog.Int("task_id", task.ID), sl.Err(err))
	}
	item.Result = ResultMessage(task.Status, task.OutputData)
	if task.OutputData != nil {
		var result models.ScoringResult
		if err := json.Unmarshal([]byte(*task.OutputData), &result); err == nil {
			item.Score = &result.Score
		}
	}
	return item
}

// ResultMessage строит текст результата задачи для выдачи пользователю.
func ResultMessage(status string, outputData *string) string {
	if status != models.TaskStatusCompleted {
		return "Timeout: task not completed"
	}
	if outputData == nil {
		return "Corrupted output"
	}
	var result models.ScoringResult
	if err := json.Unmarshal([]byte(*outputData), &result); err != nil {
		return "Corrupted output"
	}
	return result.Explanation
}
