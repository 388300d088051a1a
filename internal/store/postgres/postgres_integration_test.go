package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drycleaning/backend/internal/domain"
	"drycleaning/backend/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("PRICING_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set PRICING_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func TestCatalogRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()
	serviceID := fmt.Sprintf("svc-it-%d", stamp)
	promoID := fmt.Sprintf("promo-it-%d", stamp)
	codeText := fmt.Sprintf("IT%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM promocodes WHERE code = $1`, codeText)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM promotions WHERE id = $1`, promoID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, serviceID)
	})

	_, err := s.CreateService(ctx, domain.Service{
		ID: serviceID, Name: "Coat", Category: "outerwear", UnitPrice: decimal.RequireFromString("1500.50"), Active: true,
	})
	require.NoError(t, err)

	svc, err := s.GetService(ctx, serviceID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1500.5").Equal(svc.UnitPrice))

	today := domain.DateOnly(time.Now())
	_, err = s.CreatePromotion(ctx, domain.Promotion{
		ID: promoID, Name: "IT promo", DiscountAmount: decimal.NewFromInt(15),
		DiscountType: domain.DiscountPercentage, TargetAudience: domain.TargetLegal,
		StartDate: today.AddDate(0, 0, -1), EndDate: today.AddDate(0, 0, 1),
		ApplicableServices: []string{serviceID},
	})
	require.NoError(t, err)

	active, err := s.ListActivePromotions(ctx, today)
	require.NoError(t, err)
	var found *domain.Promotion
	for i := range active {
		if active[i].ID == promoID {
			found = &active[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, []string{serviceID}, found.ApplicableServices)
	assert.Equal(t, domain.TargetLegal, found.TargetAudience)

	maxDiscount := decimal.NewFromInt(300)
	_, err = s.CreatePromocode(ctx, domain.Promocode{
		Name: "IT code", Code: codeText, DiscountAmount: decimal.NewFromInt(10),
		DiscountType: domain.DiscountPercentage, TargetAudience: domain.TargetAll,
		StartDate: today, EndDate: today, UsageLimit: 2, MaxDiscountAmount: &maxDiscount,
	})
	require.NoError(t, err)

	code, err := s.FindPromocodeByCode(ctx, " "+codeText+" ")
	require.NoError(t, err)
	require.NotNil(t, code.MaxDiscountAmount)
	assert.True(t, maxDiscount.Equal(*code.MaxDiscountAmount))
	assert.Nil(t, code.MinOrderAmount)

	_, err = s.CreatePromocode(ctx, *code)
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestConcurrentOrdersRespectUsageLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()
	codeText := fmt.Sprintf("ITLIMIT%d", stamp)
	clientID := fmt.Sprintf("client-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE client_id = $1`, clientID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM promocodes WHERE code = $1`, codeText)
	})

	today := domain.DateOnly(time.Now())
	code, err := s.CreatePromocode(ctx, domain.Promocode{
		Name: "Limited", Code: codeText, DiscountAmount: decimal.NewFromInt(100),
		DiscountType: domain.DiscountFixed, TargetAudience: domain.TargetAll,
		StartDate: today, EndDate: today, UsageLimit: 3,
	})
	require.NoError(t, err)

	order := func() domain.Order {
		return domain.Order{
			ClientID: clientID,
			Audience: domain.AudienceIndividual,
			Lines: []domain.OrderLine{{
				LineID: "line-1", ServiceID: "svc", Quantity: 1,
				UnitPrice: decimal.NewFromInt(900), UnitOriginalPrice: decimal.NewFromInt(1000),
				Total: decimal.NewFromInt(900), OriginalTotal: decimal.NewFromInt(1000), Discount: decimal.NewFromInt(100),
				AppliedPromotion: &domain.PromotionSnapshot{PromotionID: "promo", Name: "Promo", DiscountAmount: decimal.NewFromInt(100), DiscountType: domain.DiscountFixed},
			}},
			TotalAmount: decimal.NewFromInt(1000), PromocodeDiscount: decimal.NewFromInt(100),
			TotalDiscount: decimal.NewFromInt(200), FinalAmount: decimal.NewFromInt(800),
			AppliedPromocode: &domain.PromocodeSnapshot{PromocodeID: code.ID, Code: codeText},
			PricedAt:         today,
		}
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateOrder(ctx, order(), code.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case err == store.ErrPromocodeExhausted:
				exhausted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 7, exhausted)

	stored, err := s.FindPromocodeByCode(ctx, codeText)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.UsedCount)

	orders, err := s.ListOrders(ctx, clientID, 50)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	require.Len(t, orders[0].Lines, 1)
	require.NotNil(t, orders[0].Lines[0].AppliedPromotion)
	assert.Equal(t, "Promo", orders[0].Lines[0].AppliedPromotion.Name)
	require.NotNil(t, orders[0].AppliedPromocode)
	assert.Equal(t, codeText, orders[0].AppliedPromocode.Code)

	edit := order()
	edit.ID = orders[0].ID
	edit.AppliedPromocode = nil
	_, err = s.UpdateOrder(ctx, edit, "", code.ID)
	require.NoError(t, err)

	stored, err = s.FindPromocodeByCode(ctx, codeText)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.UsedCount)
}
