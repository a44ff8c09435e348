// Package executor отвечает за передачу задач скоринга воркеру
// и за обмен результатами через Redis.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"github.com/sofikovaleva/risk-scoring-service/internal/cache"
	"github.com/sofikovaleva/risk-scoring-service/internal/lib/rabbitmq"
	"github.com/sofikovaleva/risk-scoring-service/internal/models"
	rmq "github.com/sofikovaleva/risk-scoring-service/internal/rabbitmq"
)

// Результат хранится сутки: этого достаточно и для ожидания ответа,
// и для повторной доставки сообщения очередью.
const resultTTL = 24 * time.Hour

// Частота опроса результата при синхронном ожидании.
const pollInterval = 100 * time.Millisecond

// Client публикует задачи в очередь и читает результаты из Redis.
type Client struct {
	ch    *amqp.Channel
	cache *cache.Cache
}

// New создаёт клиента поверх открытого канала RabbitMQ и кеша.
func New(ch *amqp.Channel, c *cache.Cache) *Client {
	return &Client{ch: ch, cache: c}
}

// Enqueue публикует задачу скоринга в очередь воркера.
func (c *Client) Enqueue(ctx context.Context, msg models.TaskMessage) error {
	const op = "executor.Enqueue"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if err := rabbitmq.PublishMessage(c.ch, rmq.ScoringExchange, rmq.ScoringRoutingKey, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// StoreResult сохраняет результат скоринга в бэкенд результатов.
func (c *Client) StoreResult(taskUUID string, result *models.ScoringResult) error {
	const op = "executor.StoreResult"
	if err := c.cache.Set(cache.ResultKey(taskUUID), result, resultTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AwaitResult ждёт результат задачи не дольше timeout, опрашивая бэкенд
// результатов. Если воркер не успел, возвращает models.ErrResultNotReady.
func (c *Client) AwaitResult(ctx context.Context, taskUUID string, timeout time.Duration) (*models.ScoringResult, error) {
	const op = "executor.AwaitResult"

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		var result models.ScoringResult
		found, err := c.cache.Get(cache.ResultKey(taskUUID), &result)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if found {
			return &result, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, models.ErrResultNotReady)
		case <-ticker.C:
		}
	}
}
