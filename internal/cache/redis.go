// Package cache реализует кеш на основе Redis для балансов, профилей
// и истории задач. Кеш не является источником истины: отсутствие ключа
// всегда трактуется как промах, а не как нулевое значение.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sofikovaleva/risk-scoring-service/internal/config"
)

// NoExpiration отключает срок жизни ключа: записи вытесняются только
// явной инвалидацией со стороны биллинга.
const NoExpiration time.Duration = 0

// Ключи кеша, все проекции привязаны к пользователю.
const (
	creditsKeyFmt = "user:credits:%s"
	profileKeyFmt = "user:profile:%s"
	historyKeyFmt = "user:history:%s"
	resultKeyFmt  = "result:%s"
)

// CreditsKey возвращает ключ кеша баланса пользователя.
func CreditsKey(userUID string) string { return fmt.Sprintf(creditsKeyFmt, userUID) }

// ProfileKey возвращает ключ кеша профиля пользователя.
func ProfileKey(userUID string) string { return fmt.Sprintf(profileKeyFmt, userUID) }

// HistoryKey возвращает ключ кеша истории задач пользователя.
func HistoryKey(userUID string) string { return fmt.Sprintf(historyKeyFmt, userUID) }

// ResultKey возвращает ключ результата задания в бэкенде результатов.
func ResultKey(taskUUID string) string { return fmt.Sprintf(resultKeyFmt, taskUUID) }

// Cache обёртка над клиентом Redis.
type Cache struct {
	Db *redis.Client
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// Get пытается получить значение из кеша по ключу.
// Возвращает false без ошибки, если ключа нет.
func (c *Cache) Get(key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	err = json.Unmarshal([]byte(val), result)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет значение в кеш с временем жизни.
func (c *Cache) Set(key string, value any, expiration time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Db.Set(context.Background(), key, jsonData, expiration).Err()
}

// Invalidate удаляет значение из кеша по ключу.
func (c *Cache) Invalidate(key string) error {
	return c.Db.Del(context.Background(), key).Err()
}
