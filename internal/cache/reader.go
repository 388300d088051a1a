package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"drycleaning/backend/internal/domain"
	"drycleaning/backend/internal/metrics"
	"drycleaning/backend/internal/store"
)

// CachedReader serves active promotion listings through a PromotionCache and
// passes every other read straight to the store. Cache failures are logged
// and never fail a read.
type CachedReader struct {
	store.CatalogReader
	cache   PromotionCache
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewCachedReader(reader store.CatalogReader, cache PromotionCache, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *CachedReader {
	if cache == nil {
		cache = NoopPromotionCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedReader{CatalogReader: reader, cache: cache, ttl: ttl, logger: logger, metrics: m}
}

func (r *CachedReader) ListActivePromotions(ctx context.Context, asOf time.Time) ([]domain.Promotion, error) {
	day := domain.DateOnly(asOf)

	cached, ok, err := r.cache.GetPromotions(ctx, day)
	if err != nil {
		r.logger.Warn("promotion cache read failed", zap.Error(err))
	}
	if ok {
		r.metrics.CacheLookup(true)
		return cached, nil
	}
	r.metrics.CacheLookup(false)

	promotions, err := r.CatalogReader.ListActivePromotions(ctx, day)
	if err != nil {
		return nil, err
	}
	if r.ttl > 0 {
		if err := r.cache.SetPromotions(ctx, day, promotions, r.ttl); err != nil {
			r.logger.Warn("promotion cache write failed", zap.Error(err))
		}
	}
	return promotions, nil
}

func (r *CachedReader) Invalidate(ctx context.Context) {
	if err := r.cache.Invalidate(ctx); err != nil {
		r.logger.Warn("promotion cache invalidate failed", zap.Error(err))
	}
}
