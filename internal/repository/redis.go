package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hallbook/internal/config"
	"hallbook/internal/domain"
	"hallbook/internal/models"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

// RedisIntakeLimiter counts booking submissions per customer in a fixed window.
type RedisIntakeLimiter struct {
	client *redis.Client
}

func NewRedisIntakeLimiter(client *redis.Client) *RedisIntakeLimiter {
	return &RedisIntakeLimiter{client: client}
}

func (r *RedisIntakeLimiter) Allow(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("intake_limit:%d", userID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment intake counter: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set intake window: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// CachedHallCatalog caches single-hall lookups in Redis. Writes go to the
// underlying catalog and drop the cached entry.
type CachedHallCatalog struct {
	domain.HallAdmin
	client *redis.Client
	ttl    time.Duration
}

func NewCachedHallCatalog(inner domain.HallAdmin, client *redis.Client, ttl time.Duration) *CachedHallCatalog {
	return &CachedHallCatalog{HallAdmin: inner, client: client, ttl: ttl}
}

func hallKey(id int64) string {
	return fmt.Sprintf("hall:%d", id)
}

func (c *CachedHallCatalog) GetHall(ctx context.Context, id int64) (*models.Hall, error) {
	val, err := c.client.Get(ctx, hallKey(id)).Result()
	if err == nil {
		var hall models.Hall
		if jerr := json.Unmarshal([]byte(val), &hall); jerr == nil {
			return &hall, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		// Redis недоступен: читаем напрямую
		return c.HallAdmin.GetHall(ctx, id)
	}

	hall, err := c.HallAdmin.GetHall(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, merr := json.Marshal(hall); merr == nil {
		c.client.Set(ctx, hallKey(id), data, c.ttl)
	}
	return hall, nil
}

func (c *CachedHallCatalog) UpsertHall(ctx context.Context, hall *models.Hall) error {
	if err := c.HallAdmin.UpsertHall(ctx, hall); err != nil {
		return err
	}
	return c.invalidate(ctx, hall.ID)
}

func (c *CachedHallCatalog) SetHallApproval(ctx context.Context, id int64, approved bool) error {
	if err := c.HallAdmin.SetHallApproval(ctx, id, approved); err != nil {
		return err
	}
	return c.invalidate(ctx, id)
}

func (c *CachedHallCatalog) invalidate(ctx context.Context, id int64) error {
	if err := c.client.Del(ctx, hallKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate hall cache: %w", err)
	}
	return nil
}

// InvalidateHalls drops cached hall entries. Writers that bypass
// CachedHallCatalog (hallbookctl seed) call it after their writes.
func InvalidateHalls(ctx context.Context, client *redis.Client, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, hallKey(id))
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate hall cache: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
