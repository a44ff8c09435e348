// Package billing содержит бизнес-логику кредитного биллинга: пополнение,
// заморозка, списание и возврат кредитов с ведением журнала операций.
package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sofikovaleva/risk-scoring-service/internal/cache"
	"github.com/sofikovaleva/risk-scoring-service/internal/lib/sl"
	"github.com/sofikovaleva/risk-scoring-service/internal/models"
)

// Стоимость скоринга по типу модели. Неизвестный тип тарифицируется
// по минимальной ставке.
var modelCosts = map[string]int{
	"simple":   1,
	"advanced": 3,
	"premium":  5,
}

const defaultModelCost = 1

// ModelCost возвращает стоимость одного запуска модели в кредитах.
func ModelCost(modelType string) int {
	if cost, ok := modelCosts[modelType]; ok {
		return cost
	}
	return defaultModelCost
}

// LedgerRepository определяет методы хранилища для баланса и журнала операций.
type LedgerRepository interface {
	// CreditBalance пополняет баланс, пишет запись в журнал и возвращает
	// новое значение доступных кредитов.
	CreditBalance(ctx context.Context, userUID string, amount int) (int, error)
	// FreezeBalance резервирует кредиты под задачу и возвращает остаток.
	FreezeBalance(ctx context.Context, userUID string, cost int, taskID *int) (int, error)
	// FinalizeCharge фиксирует списание замороженных кредитов по задаче.
	FinalizeCharge(ctx context.Context, userUID string, taskID int) error
	// UnfreezeBalance возвращает замороженные кредиты на баланс.
	UnfreezeBalance(ctx context.Context, userUID string, cost int, taskID int) (int, error)
	// GetBalance возвращает текущий баланс пользователя.
	GetBalance(ctx context.Context, userUID string) (*models.UserCredits, error)
	// ListLedgerEntries возвращает журнал операций пользователя.
	ListLedgerEntries(ctx context.Context, userUID string) ([]*models.LedgerEntry, error)
	// ListTaskModelTypes возвращает типы моделей задач пользователя.
	ListTaskModelTypes(ctx context.Context, userUID string) (map[int]string, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service реализует операции биллинга поверх журнала операций,
// поддерживая кеш баланса согласованным с хранилищем.
type Service struct {
	repo  LedgerRepository
	cache Cache
	log   *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo LedgerRepository, cache Cache, log *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, log: log}
}

// Credit пополняет баланс пользователя и обновляет кеш.
func (s *Service) Credit(ctx context.Context, userUID string, amount int) (*models.UserCredits, error) {
	const op = "billing.Credit"
	if amount <= 0 {
		return nil, fmt.Errorf("%s: amount must be positive", op)
	}

	available, err := s.repo.CreditBalance(ctx, userUID, amount)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("credited balance",
		slog.String("user_uid", userUID), slog.Int("amount", amount))

	credits := &models.UserCredits{UserUID: userUID, AvailableCredits: available}
	s.refreshBalanceCache(userUID, credits)
	return credits, nil
}

// Freeze резервирует кредиты под запуск модели. Стоимость определяется
// типом модели. При нехватке средств возвращает models.ErrInsufficientFunds.
func (s *Service) Freeze(ctx context.Context, userUID, modelType string, taskID *int) (*models.UserCredits, error) {
	const op = "billing.Freeze"

	cost := ModelCost(modelType)
	available, err := s.repo.FreezeBalance(ctx, userUID, cost, taskID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("froze credits",
		slog.String("user_uid", userUID),
		slog.String("model_type", modelType),
		slog.Int("cost", cost))

	credits := &models.UserCredits{UserUID: userUID, AvailableCredits: available}
	s.refreshBalanceCache(userUID, credits)
	return credits, nil
}

// Finalize фиксирует списание замороженных кредитов за выполненную задачу.
// Операция идемпотентна: повторная доставка задачи не создает второй записи.
func (s *Service) Finalize(ctx context.Context, userUID string, taskID int) error {
	const op = "billing.Finalize"

	if err := s.repo.FinalizeCharge(ctx, userUID, taskID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("finalized charge",
		slog.String("user_uid", userUID), slog.Int("task_id", taskID))

	if err := s.cache.Invalidate(cache.CreditsKey(userUID)); err != nil {
		s.log.Warn("failed to invalidate credits cache", sl.Err(err))
	}
	if err := s.cache.Invalidate(cache.ProfileKey(userUID)); err != nil {
		s.log.Warn("failed to invalidate profile cache", sl.Err(err))
	}
	return nil
}

// Unfreeze возвращает замороженные по задаче кредиты на баланс.
// Операция идемпотентна: повторный возврат не меняет баланс.
func (s *Service) Unfreeze(ctx context.Context, userUID, modelType string, taskID int) (*models.UserCredits, error) {
	const op = "billing.Unfreeze"

	cost := ModelCost(modelType)
	available, err := s.repo.UnfreezeBalance(ctx, userUID, cost, taskID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("unfroze credits",
		slog.String("user_uid", userUID),
		slog.Int("task_id", taskID),
		slog.Int("cost", cost))

	credits := &models.UserCredits{UserUID: userUID, AvailableCredits: available}
	s.refreshBalanceCache(userUID, credits)
	return credits, nil
}

// Balance возвращает баланс пользователя, используя кеш или хранилище.
// Для пользователя без операций возвращает нулевой баланс.
func (s *Service) Balance(ctx context.Context, userUID string) (*models.UserCredits, error) {
	const op = "billing.Balance"

	var cached models.UserCredits
	found, err := s.cache.Get(cache.CreditsKey(userUID), &cached)
	if err != nil {
		s.log.Warn("failed to read credits cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	credits, err := s.repo.GetBalance(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if credits == nil {
		credits = &models.UserCredits{UserUID: userUID}
	}

	s.refreshBalanceCache(userUID, credits)
	return credits, nil
}

// History возвращает журнал операций пользователя.
func (s *Service) History(ctx context.Context, userUID string) ([]*models.LedgerEntry, error) {
	const op = "billing.History"

	entries, err := s.repo.ListLedgerEntries(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}

// HistoryDetailed возвращает журнал операций, дополненный типами моделей
// связанных задач.
func (s *Service) HistoryDetailed(ctx context.Context, userUID string) ([]*models.LedgerEntryDetailed, error) {
	const op = "billing.HistoryDetailed"

	entries, err := s.repo.ListLedgerEntries(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	modelTypes, err := s.repo.ListTaskModelTypes(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	detailed := make([]*models.LedgerEntryDetailed, 0, len(entries))
	for _, e := range entries {
		d := &models.LedgerEntryDetailed{
			CreatedAt: e.CreatedAt,
			Kind:      e.Kind,
			Amount:    e.Amount,
		}
		if e.TaskID != nil {
			d.ModelType = modelTypes[*e.TaskID]
		}
		d.Explanation = explainEntry(e, d.ModelType)
		detailed = append(detailed, d)
	}
	return detailed, nil
}

// explainEntry строит текстовое пояснение записи журнала.
func explainEntry(e *models.LedgerEntry, modelType string) string {
	switch e.Kind {
	case models.LedgerKindCredit:
		return fmt.Sprintf("Account credited with %d credits", e.Amount)
	case models.LedgerKindFreeze:
		if modelType != "" {
			return fmt.Sprintf("Reserved %d credits for %s model scoring", -e.Amount, modelType)
		}
		return fmt.Sprintf("Reserved %d credits for scoring task", -e.Amount)
	case models.LedgerKindFinalize:
		return "Charge confirmed after task completion"
	case models.LedgerKindUnfreeze:
		return fmt.Sprintf("Refunded %d credits for unfinished task", e.Amount)
	default:
		return "Balance operation"
	}
}

// refreshBalanceCache обновляет кеш баланса после изменения в хранилище.
// Ошибки кеша не прерывают операцию.
func (s *Service) refreshBalanceCache(userUID string, credits *models.UserCredits) {
	if credits == nil {
		return
	}
	if err := s.cache.Set(cache.CreditsKey(userUID), credits, cache.NoExpiration); err != nil {
		s.log.Warn("failed to cache balance", sl.Err(err))
	}
}
