package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// Имена объектов брокера для очереди задач скоринга.
const (
	ScoringExchange   = "scoring"
	ScoringTasksQueue = "scoring.tasks"
	ScoringRoutingKey = "tasks"
)

// SetupChannel открывает канал и объявляет exchange и очередь задач.
// Очередь durable: задача не должна теряться между заморозкой средств
// и завершением вычисления.
func SetupChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	err = ch.ExchangeDeclare(
		ScoringExchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = ch.QueueDeclare(
		ScoringTasksQueue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, ScoringTasksQueue, err)
	}

	err = ch.QueueBind(ScoringTasksQueue, ScoringRoutingKey, ScoringExchange, false, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to bind queue %s: %w", op, ScoringTasksQueue, err)
	}

	return ch, nil
}
