// Package models определяет доменные ошибки, общие для сервисов и хранилища.
package models

import "errors"

// ErrInsufficientFunds возвращается при попытке заморозить больше кредитов,
// чем доступно на балансе. Операция отклоняется до постановки задачи.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrResultNotReady возвращается, когда ограниченное ожидание результата
// истекло. Это не сбой: задача остаётся в статусе PENDING.
var ErrResultNotReady = errors.New("result not ready")
