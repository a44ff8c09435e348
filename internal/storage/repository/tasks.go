package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sofikovaleva/risk-scoring-service/internal/models"
)

// CreateTask вставляет новую задачу скоринга и возвращает её ID.
func (s *Storage) CreateTask(ctx context.Context, task models.ScoringTask) (int, error) {
	const op = "storage.CreateTask"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO scoring_tasks (user_uid, model_type, input_data, status, task_uuid)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		task.UserUID, task.ModelType, task.InputData, task.Status, task.TaskUUID).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// UpdateTaskOutput записывает результат задачи и переводит её в COMPLETED.
// Обновление условное: срабатывает только для задачи в статусе PENDING,
// поэтому повторная запись того же результата безопасна. Возвращает true,
// если переход состоялся именно этим вызовом.
func (s *Storage) UpdateTaskOutput(ctx context.Context, taskID int, output string) (bool, error) {
	const op = "storage.UpdateTaskOutput"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE scoring_tasks
			  SET output_data = $2, status = $3, finished_at = now()
			  WHERE id = $1 AND status = $4`
	result, err := s.DB.ExecContext(ctx, query, taskID, output,
		models.TaskStatusCompleted, models.TaskStatusPending)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// CompleteTaskByUUID записывает результат задачи по идентификатору задания
// очереди. Возвращает ID задачи и признак того, что переход в COMPLETED
// выполнен этим вызовом. Если строка задачи ещё не создана (воркер обогнал
// вставку), возвращается sql.ErrNoRows — вызывающая сторона повторяет попытку.
func (s *Storage) CompleteTaskByUUID(ctx context.Context, taskUUID string, output string) (int, bool, error) {
	const op = "storage.CompleteTaskByUUID"
	select {
	case <-ctx.Done():
		return 0, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE scoring_tasks
			  SET output_data = $2, status = $3, finished_at = now()
			  WHERE task_uuid = $1 AND status = $4
			  RETURNING id`
	var taskID int
	err := s.DB.QueryRowContext(ctx, query, taskUUID, output,
		models.TaskStatusCompleted, models.TaskStatusPending).Scan(&taskID)
	if err == nil {
		return taskID, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}

	// Задача уже завершена другим путём либо строки ещё нет.
	read := `SELECT id FROM scoring_tasks WHERE task_uuid = $1`
	err = s.DB.QueryRowContext(ctx, read, taskUUID).Scan(&taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return taskID, false, nil
}

// GetTask возвращает задачу по её ID.
func (s *Storage) GetTask(ctx context.Context, taskID int) (*models.ScoringTask, error) {
	const op = "storage.GetTask"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, model_type, input_data, output_data, status,
			      task_uuid, created_at, finished_at
			  FROM scoring_tasks WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, taskID)

	var task models.ScoringTask
	var output sql.NullString
	var finishedAt sql.NullTime
	if err := row.Scan(&task.ID, &task.UserUID, &task.ModelType, &task.InputData,
		&output, &task.Status, &task.TaskUUID, &task.CreatedAt, &finishedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if output.Valid {
		task.OutputData = &output.String
	}
	if finishedAt.Valid {
		task.FinishedAt = &finishedAt.Time
	}
	return &task, nil
}

// ListTasksByUser возвращает все задачи пользователя в порядке постановки.
func (s *Storage) ListTasksByUser(ctx context.Context, userUID string) ([]*models.ScoringTask, error) {
	const op = "storage.ListTasksByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, model_type, input_data, output_data, status,
			      task_uuid, created_at, finished_at
			  FROM scoring_tasks
			  WHERE user_uid = $1
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ScoringTask
	for rows.Next() {
		var task models.ScoringTask
		var output sql.NullString
		var finishedAt sql.NullTime
		if err := rows.Scan(&task.ID, &task.UserUID, &task.ModelType, &task.InputData,
			&output, &task.Status, &task.TaskUUID, &task.CreatedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if output.Valid {
			task.OutputData = &output.String
		}
		if finishedAt.Valid {
			task.FinishedAt = &finishedAt.Time
		}
		result = append(result, &task)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
