package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"drycleaning/backend/internal/domain"
)

type RedisPromotionCache struct {
	client *redis.Client
}

func NewRedisPromotionCache(addr string, password string, db int) *RedisPromotionCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisPromotionCache{client: client}
}

func (c *RedisPromotionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisPromotionCache) Close() error {
	return c.client.Close()
}

func (c *RedisPromotionCache) GetPromotions(ctx context.Context, day time.Time) ([]domain.Promotion, bool, error) {
	val, err := c.client.Get(ctx, promotionKey(day)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var promotions []domain.Promotion
	if err := json.Unmarshal(val, &promotions); err != nil {
		return nil, false, err
	}
	return promotions, true, nil
}

func (c *RedisPromotionCache) SetPromotions(ctx context.Context, day time.Time, promotions []domain.Promotion, ttl time.Duration) error {
	if promotions == nil {
		promotions = []domain.Promotion{}
	}
	payload, err := json.Marshal(promotions)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, promotionKey(day), payload, ttl).Err()
}

// Invalidate drops every cached date; promotion writes can change any of them.
func (c *RedisPromotionCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, promotionKeyPrefix+"*", 100).Iterator()
	keys := make([]string, 0, 16)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
