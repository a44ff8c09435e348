// Package worker собирает приложение воркера скоринга: подключение
// к очереди задач, хранилищу и кешу, запуск потребителя сообщений.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/sofikovaleva/risk-scoring-service/internal/cache"
	"github.com/sofikovaleva/risk-scoring-service/internal/config"
	"github.com/sofikovaleva/risk-scoring-service/internal/executor"
	"github.com/sofikovaleva/risk-scoring-service/internal/rabbitmq"
	billingservice "github.com/sofikovaleva/risk-scoring-service/internal/services/billing"
	workerservice "github.com/sofikovaleva/risk-scoring-service/internal/services/worker"
	"github.com/sofikovaleva/risk-scoring-service/internal/storage/repository"
)

// App представляет приложение воркера скоринга.
type App struct {
	workerService *workerservice.Service
	db            *repository.Storage
	conn          *amqp.Connection
	ch            *amqp.Channel
	logger        *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения воркера.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn)
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	executorClient := executor.New(ch, cacheRedis)
	billingService := billingservice.New(db, cacheRedis, logger)
	workerService := workerservice.New(db, executorClient, billingService, logger)

	return &App{
		workerService: workerService,
		db:            db,
		conn:          conn,
		ch:            ch,
		logger:        logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", slog.Any("err", err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", slog.Any("err", err))
		}
	}
}

// Run запускает потребителя очереди задач скоринга.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.ScoringTasksQueue, func(body []byte) error {
		return a.workerService.HandleTask(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("consumer stopped: %w", err)
	}

	<-ctx.Done()

	a.logger.Info("shutting down scoring worker")
	closeResources(a.ch, a.conn, a.logger)
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close storage", slog.Any("err", err))
	}
	return nil
}
