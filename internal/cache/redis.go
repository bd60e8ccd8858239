// Package cache реализует обёртку над redis для кеширования членств
// пользователей и хранения одноразовых токенов формы аккаунта.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/discharge-sync/internal/config"
)

// Cache инкапсулирует подключение к redis.
type Cache struct {
	Db *redis.Client
}

// ErrTokenNotFound возвращается, когда одноразовый токен отсутствует
// или уже был использован.
var ErrTokenNotFound = fmt.Errorf("token not found")

// InitServer подключается к redis по настройкам из конфига.
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
func (c *Cache) Get(key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err = json.Unmarshal([]byte(val), result); err != nil {
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

// SetToken сохраняет одноразовый токен с временем жизни.
// Значение хранится как есть, без json-обёртки.
func (c *Cache) SetToken(key, value string, expiration time.Duration) error {
	const op = "cache.SetToken"
	if err := c.Db.Set(context.Background(), key, value, expiration).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// TakeToken атомарно читает и удаляет одноразовый токен.
// Повторное взятие того же токена возвращает ErrTokenNotFound.
func (c *Cache) TakeToken(key string) (string, error) {
	const op = "cache.TakeToken"
	val, err := c.Db.GetDel(context.Background(), key).Result()
	if err == redis.Nil {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return val, nil
}
