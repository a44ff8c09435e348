package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sofikovaleva/risk-scoring-service/internal/models"
)

// CreditBalance увеличивает баланс пользователя на amount и добавляет
// запись журнала вида credit. Запись баланса создаётся лениво при первом
// начислении. Мутация баланса и запись журнала фиксируются одной
// транзакцией, возвращается новое значение баланса.
func (s *Storage) CreditBalance(ctx context.Context, userUID string, amount int) (int, error) {
	const op = "storage.CreditBalance"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var available int
	query := `INSERT INTO user_credits (user_uid, available_credits)
			  VALUES ($1, $2)
			  ON CONFLICT (user_uid)
			  DO UPDATE SET available_credits = user_credits.available_credits + $2
			  RETURNING available_credits`
	if err := tx.QueryRowContext(ctx, query, userUID, amount).Scan(&available); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := insertLedgerEntry(ctx, tx, userUID, nil, amount, models.LedgerKindCredit); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return available, nil
}

// FreezeBalance списывает cost с баланса пользователя перед запуском
// задачи. Условное обновление отклоняет списание, если доступных средств
// не хватает: два конкурентных freeze одного пользователя не могут оба
// пройти по устаревшему значению баланса. Возвращает новый баланс или
// models.ErrInsufficientFunds.
func (s *Storage) FreezeBalance(ctx context.Context, userUID string, cost int, taskID *int) (int, error) {
	const op = "storage.FreezeBalance"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var available int
	query := `UPDATE user_credits
			  SET available_credits = available_credits - $1
			  WHERE user_uid = $2 AND available_credits >= $1
			  RETURNING available_credits`
	err = tx.QueryRowContext(ctx, query, cost, userUID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, models.ErrInsufficientFunds)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := insertLedgerEntry(ctx, tx, userUID, taskID, -cost, models.LedgerKindFreeze); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return available, nil
}

// FinalizeCharge подтверждает уже списанную стоимость задачи: добавляет
// запись журнала с нулевой суммой, баланс не меняется. Повторный вызов
// для той же задачи поглощается уникальным индексом (task_id, kind) —
// точка входа идемпотентна для ретраев со стороны очереди.
func (s *Storage) FinalizeCharge(ctx context.Context, userUID string, taskID int) error {
	const op = "storage.FinalizeCharge"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO ledger_entries (user_uid, task_id, amount, kind)
			  VALUES ($1, $2, 0, $3)
			  ON CONFLICT (task_id, kind) WHERE task_id IS NOT NULL DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query, userUID, taskID, models.LedgerKindFinalize); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UnfreezeBalance возвращает ранее замороженную стоимость задачи.
// Запись журнала вставляется до мутации баланса: если возврат по этой
// задаче уже был (конфликт по уникальному индексу), баланс не меняется
// и возвращается его текущее значение.
func (s *Storage) UnfreezeBalance(ctx context.Context, userUID string, cost int, taskID int) (int, error) {
	const op = "storage.UnfreezeBalance"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var entryID int
	insert := `INSERT INTO ledger_entries (user_uid, task_id, amount, kind)
			   VALUES ($1, $2, $3, $4)
			   ON CONFLICT (task_id, kind) WHERE task_id IS NOT NULL DO NOTHING
			   RETURNING id`
	err = tx.QueryRowContext(ctx, insert, userUID, taskID, cost, models.LedgerKindUnfreeze).Scan(&entryID)
	if errors.Is(err, sql.ErrNoRows) {
		var available int
		read := `SELECT available_credits FROM user_credits WHERE user_uid = $1`
		if err := tx.QueryRowContext(ctx, read, userUID).Scan(&available); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		return available, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var available int
	update := `UPDATE user_credits
			   SET available_credits = available_credits + $1
			   WHERE user_uid = $2
			   RETURNING available_credits`
	if err := tx.QueryRowContext(ctx, update, cost, userUID).Scan(&available); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return available, nil
}

// GetBalance возвращает баланс пользователя или nil, если записи нет.
// Отсутствующая запись не создаётся.
func (s *Storage) GetBalance(ctx context.Context, userUID string) (*models.UserCredits, error) {
	const op = "storage.GetBalance"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid, available_credits, frozen_credits
			  FROM user_credits
			  WHERE user_uid = $1`
	var credits models.UserCredits
	err := s.DB.QueryRowContext(ctx, query, userUID).Scan(
		&credits.UserUID, &credits.AvailableCredits, &credits.FrozenCredits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &credits, nil
}

// ListLedgerEntries возвращает журнал пользователя в порядке создания записей.
func (s *Storage) ListLedgerEntries(ctx context.Context, userUID string) ([]*models.LedgerEntry, error) {
	const op = "storage.ListLedgerEntries"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, task_id, amount, kind, created_at
			  FROM ledger_entries
			  WHERE user_uid = $1
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.LedgerEntry
	for rows.Next() {
		var item models.LedgerEntry
		var taskID sql.NullInt64
		if err := rows.Scan(&item.ID, &item.UserUID, &taskID, &item.Amount,
			&item.Kind, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if taskID.Valid {
			id := int(taskID.Int64)
			item.TaskID = &id
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SumLedgerEntries возвращает сумму всех записей журнала пользователя.
// Для согласованного журнала она равна текущему значению available_credits.
func (s *Storage) SumLedgerEntries(ctx context.Context, userUID string) (int, error) {
	const op = "storage.SumLedgerEntries"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_uid = $1`
	var sum int
	if err := s.DB.QueryRowContext(ctx, query, userUID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return sum, nil
}

// ListTaskModelTypes возвращает соответствие id задачи — тип модели
// для детализации истории биллинга.
func (s *Storage) ListTaskModelTypes(ctx context.Context, userUID string) (map[int]string, error) {
	const op = "storage.ListTaskModelTypes"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, model_type FROM scoring_tasks WHERE user_uid = $1`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make(map[int]string)
	for rows.Next() {
		var id int
		var modelType string
		if err := rows.Scan(&id, &modelType); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result[id] = modelType
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func insertLedgerEntry(ctx context.Context, tx *sql.Tx, userUID string, taskID *int, amount int, kind string) error {
	query := `INSERT INTO ledger_entries (user_uid, task_id, amount, kind)
			  VALUES ($1, $2, $3, $4)`
	_, err := tx.ExecContext(ctx, query, userUID, taskID, amount, kind)
	return err
}
