// Package models содержит доменные структуры биллинга: баланс кредитов
// пользователя и записи журнала операций.
package models

import "time"

// Виды записей журнала биллинга.
const (
	LedgerKindCredit   = "credit"   // пополнение баланса
	LedgerKindFreeze   = "freeze"   // списание при постановке задачи
	LedgerKindFinalize = "finalize" // подтверждение списания, сумма всегда 0
	LedgerKindUnfreeze = "unfreeze" // возврат замороженных средств
)

// UserCredits представляет баланс кредитов пользователя.
// AvailableCredits изменяется только биллингом, не бывает отрицательным.
// FrozenCredits пока не используется как настоящий холд средств.
type UserCredits struct {
	UserUID          string `json:"user_uid"`
	AvailableCredits int    `json:"available_credits"`
	FrozenCredits    int    `json:"frozen_credits"`
}

// LedgerEntry — неизменяемая запись журнала биллинга.
// Сумма всех записей пользователя в порядке создания равна
// текущему значению AvailableCredits.
type LedgerEntry struct {
	ID        int       `json:"id"`
	UserUID   string    `json:"user_uid"`
	TaskID    *int      `json:"task_id,omitempty"` // задача, к которой относится операция, если есть
	Amount    int       `json:"amount"`            // знак: минус — списание, плюс — возврат/пополнение
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// LedgerEntryDetailed — запись журнала с пояснением для пользователя.
type LedgerEntryDetailed struct {
	CreatedAt   time.Time `json:"created_at"`
	Kind        string    `json:"kind"`
	Amount      int       `json:"amount"`
	ModelType   string    `json:"model_type,omitempty"`
	Explanation string    `json:"explanation"`
}
