package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drycleaning/backend/internal/domain"
	"drycleaning/backend/internal/metrics"
	"drycleaning/backend/internal/store/memory"
)

type mapCache struct {
	entries     map[string][]domain.Promotion
	failGet     bool
	invalidated int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]domain.Promotion)}
}

func (c *mapCache) GetPromotions(_ context.Context, day time.Time) ([]domain.Promotion, bool, error) {
	if c.failGet {
		return nil, false, errors.New("cache down")
	}
	promos, ok := c.entries[promotionKey(day)]
	return promos, ok, nil
}

func (c *mapCache) SetPromotions(_ context.Context, day time.Time, promotions []domain.Promotion, _ time.Duration) error {
	c.entries[promotionKey(day)] = promotions
	return nil
}

func (c *mapCache) Invalidate(_ context.Context) error {
	c.invalidated++
	c.entries = make(map[string][]domain.Promotion)
	return nil
}

var day = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func TestCachedReaderServesSecondReadFromCache(t *testing.T) {
	repo := memory.NewSeeded()
	c := newMapCache()
	reader := NewCachedReader(repo, c, time.Minute, nil, metrics.New())
	ctx := context.Background()

	first, err := reader.ListActivePromotions(ctx, day.Add(9*time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, first)
	assert.Contains(t, c.entries, "catalog:promotions:2026-05-01")

	_, err = repo.UpdatePromotionStatus(ctx, first[0].ID, domain.PromotionStatusInactive)
	require.NoError(t, err)

	cached, err := reader.ListActivePromotions(ctx, day)
	require.NoError(t, err)
	assert.Len(t, cached, len(first))

	reader.Invalidate(ctx)
	fresh, err := reader.ListActivePromotions(ctx, day)
	require.NoError(t, err)
	assert.Len(t, fresh, len(first)-1)
	assert.Equal(t, 1, c.invalidated)
}

func TestCachedReaderFallsBackOnCacheError(t *testing.T) {
	repo := memory.NewSeeded()
	c := newMapCache()
	c.failGet = true
	reader := NewCachedReader(repo, c, time.Minute, nil, nil)

	promos, err := reader.ListActivePromotions(context.Background(), day)
	require.NoError(t, err)
	assert.NotEmpty(t, promos)
}

func TestCachedReaderPassesThroughOtherReads(t *testing.T) {
	reader := NewCachedReader(memory.NewSeeded(), nil, 0, nil, nil)

	svc, err := reader.GetService(context.Background(), "svc-coat")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1500).Equal(svc.UnitPrice))

	code, err := reader.FindPromocodeByCode(context.Background(), "summer2025")
	require.NoError(t, err)
	assert.Equal(t, "SUMMER2025", code.Code)
}

func TestRedisPromotionCache(t *testing.T) {
	addr := os.Getenv("PRICING_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set PRICING_TEST_REDIS_ADDR to run redis integration test")
	}

	c := NewRedisPromotionCache(addr, "", 0)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	promos := []domain.Promotion{{
		ID: "promo-redis", Name: "Redis", DiscountAmount: decimal.RequireFromString("12.5"),
		DiscountType: domain.DiscountPercentage, TargetAudience: domain.TargetAll,
		StartDate: day, EndDate: day, Status: domain.PromotionStatusActive,
		ApplicableServices: []string{"svc-coat"},
	}}
	require.NoError(t, c.SetPromotions(ctx, day, promos, time.Minute))

	got, ok, err := c.GetPromotions(ctx, day)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.True(t, promos[0].DiscountAmount.Equal(got[0].DiscountAmount))

	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.GetPromotions(ctx, day)
	require.NoError(t, err)
	assert.False(t, ok)
}
