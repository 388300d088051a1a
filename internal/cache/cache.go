package cache

import (
	"context"
	"time"

	"drycleaning/backend/internal/domain"
)

// PromotionCache stores active promotion listings keyed by calendar date.
type PromotionCache interface {
	GetPromotions(ctx context.Context, day time.Time) ([]domain.Promotion, bool, error)
	SetPromotions(ctx context.Context, day time.Time, promotions []domain.Promotion, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopPromotionCache struct{}

func (NoopPromotionCache) GetPromotions(_ context.Context, _ time.Time) ([]domain.Promotion, bool, error) {
	return nil, false, nil
}

func (NoopPromotionCache) SetPromotions(_ context.Context, _ time.Time, _ []domain.Promotion, _ time.Duration) error {
	return nil
}

func (NoopPromotionCache) Invalidate(_ context.Context) error {
	return nil
}

const promotionKeyPrefix = "catalog:promotions:"

func promotionKey(day time.Time) string {
	return promotionKeyPrefix + domain.DateOnly(day).Format(domain.DateLayout)
}
