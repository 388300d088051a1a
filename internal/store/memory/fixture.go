package memory

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"drycleaning/backend/internal/domain"
	"drycleaning/backend/internal/store"
)

var maxPercentage = decimal.NewFromInt(100)

// Fixture is the YAML catalog format accepted by LoadFixture. Amounts and
// dates are kept as strings so they parse exactly.
type Fixture struct {
	Services   []fixtureService   `yaml:"services"`
	Promotions []fixturePromotion `yaml:"promotions"`
	Promocodes []fixturePromocode `yaml:"promocodes"`
}

type fixtureService struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Category  string `yaml:"category"`
	UnitPrice string `yaml:"unit_price"`
	Inactive  bool   `yaml:"inactive"`
}

type fixturePromotion struct {
	ID                 string   `yaml:"id"`
	Name               string   `yaml:"name"`
	DiscountAmount     string   `yaml:"discount_amount"`
	DiscountType       string   `yaml:"discount_type"`
	TargetAudience     string   `yaml:"target_audience"`
	StartDate          string   `yaml:"start_date"`
	EndDate            string   `yaml:"end_date"`
	Status             string   `yaml:"status"`
	ApplicableServices []string `yaml:"applicable_services"`
	Locations          []string `yaml:"locations"`
}

type fixturePromocode struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	Code              string `yaml:"code"`
	DiscountAmount    string `yaml:"discount_amount"`
	DiscountType      string `yaml:"discount_type"`
	TargetAudience    string `yaml:"target_audience"`
	StartDate         string `yaml:"start_date"`
	EndDate           string `yaml:"end_date"`
	Status            string `yaml:"status"`
	UsageLimit        int    `yaml:"usage_limit"`
	UsedCount         int    `yaml:"used_count"`
	MinOrderAmount    string `yaml:"min_order_amount"`
	MaxDiscountAmount string `yaml:"max_discount_amount"`
}

// LoadFixture reads a YAML catalog file into a fresh store.
func LoadFixture(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(raw)
}

// ParseFixture builds a store from YAML. Promotions keep file order.
func ParseFixture(raw []byte) (*Store, error) {
	var fx Fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}

	s := New()
	ctx := context.Background()

	for i, item := range fx.Services {
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("service %d unit_price: %w", i, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("service %q: %w: unit_price must not be negative", item.ID, store.ErrInvalidCatalog)
		}
		svc := domain.Service{
			ID:        item.ID,
			Name:      item.Name,
			Category:  item.Category,
			UnitPrice: price,
			Active:    !item.Inactive,
		}
		if _, err := s.CreateService(ctx, svc); err != nil {
			return nil, fmt.Errorf("service %q: %w", item.ID, err)
		}
	}

	for i, item := range fx.Promotions {
		amount, err := decimal.NewFromString(item.DiscountAmount)
		if err != nil {
			return nil, fmt.Errorf("promotion %d discount_amount: %w", i, err)
		}
		start, end, err := parseWindow(item.StartDate, item.EndDate)
		if err != nil {
			return nil, fmt.Errorf("promotion %d: %w", i, err)
		}
		if err := checkDiscount(domain.DiscountType(item.DiscountType), amount); err != nil {
			return nil, fmt.Errorf("promotion %q: %w", item.ID, err)
		}
		promo := domain.Promotion{
			ID:                 item.ID,
			Name:               item.Name,
			DiscountAmount:     amount,
			DiscountType:       domain.DiscountType(item.DiscountType),
			TargetAudience:     targetOrAll(item.TargetAudience),
			StartDate:          start,
			EndDate:            end,
			Status:             item.Status,
			ApplicableServices: item.ApplicableServices,
			Locations:          item.Locations,
		}
		if _, err := s.CreatePromotion(ctx, promo); err != nil {
			return nil, fmt.Errorf("promotion %q: %w", item.ID, err)
		}
	}

	for i, item := range fx.Promocodes {
		amount, err := decimal.NewFromString(item.DiscountAmount)
		if err != nil {
			return nil, fmt.Errorf("promocode %d discount_amount: %w", i, err)
		}
		start, end, err := parseWindow(item.StartDate, item.EndDate)
		if err != nil {
			return nil, fmt.Errorf("promocode %d: %w", i, err)
		}
		minOrder, err := optionalDecimal(item.MinOrderAmount)
		if err != nil {
			return nil, fmt.Errorf("promocode %d min_order_amount: %w", i, err)
		}
		maxDiscount, err := optionalDecimal(item.MaxDiscountAmount)
		if err != nil {
			return nil, fmt.Errorf("promocode %d max_discount_amount: %w", i, err)
		}
		if err := checkPromocode(item, amount, minOrder, maxDiscount); err != nil {
			return nil, fmt.Errorf("promocode %q: %w", item.Code, err)
		}
		code := domain.Promocode{
			ID:                item.ID,
			Name:              item.Name,
			Code:              item.Code,
			DiscountAmount:    amount,
			DiscountType:      domain.DiscountType(item.DiscountType),
			TargetAudience:    targetOrAll(item.TargetAudience),
			StartDate:         start,
			EndDate:           end,
			Status:            item.Status,
			UsageLimit:        item.UsageLimit,
			UsedCount:         item.UsedCount,
			MinOrderAmount:    minOrder,
			MaxDiscountAmount: maxDiscount,
		}
		if _, err := s.CreatePromocode(ctx, code); err != nil {
			return nil, fmt.Errorf("promocode %q: %w", item.Code, err)
		}
	}

	return s, nil
}

func checkDiscount(kind domain.DiscountType, amount decimal.Decimal) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: discount_type must be percentage or fixed", store.ErrInvalidCatalog)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: discount_amount must not be negative", store.ErrInvalidCatalog)
	}
	if kind == domain.DiscountPercentage && amount.GreaterThan(maxPercentage) {
		return fmt.Errorf("%w: percentage discount cannot exceed 100", store.ErrInvalidCatalog)
	}
	return nil
}

func checkPromocode(item fixturePromocode, amount decimal.Decimal, minOrder *decimal.Decimal, maxDiscount *decimal.Decimal) error {
	kind := domain.DiscountType(item.DiscountType)
	if err := checkDiscount(kind, amount); err != nil {
		return err
	}
	if item.UsageLimit < 1 {
		return fmt.Errorf("%w: usage_limit must be positive", store.ErrInvalidCatalog)
	}
	if item.UsedCount < 0 {
		return fmt.Errorf("%w: used_count must not be negative", store.ErrInvalidCatalog)
	}
	if minOrder != nil && minOrder.IsNegative() {
		return fmt.Errorf("%w: min_order_amount must not be negative", store.ErrInvalidCatalog)
	}
	if maxDiscount != nil {
		if kind != domain.DiscountPercentage {
			return fmt.Errorf("%w: max_discount_amount only applies to percentage codes", store.ErrInvalidCatalog)
		}
		if maxDiscount.IsNegative() {
			return fmt.Errorf("%w: max_discount_amount must not be negative", store.ErrInvalidCatalog)
		}
	}
	return nil
}

func parseWindow(rawStart string, rawEnd string) (time.Time, time.Time, error) {
	start, err := domain.ParseDate(rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := domain.ParseDate(rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date: %w", err)
	}
	return start, end, nil
}

func optionalDecimal(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func targetOrAll(raw string) domain.TargetAudience {
	if raw == "" {
		return domain.TargetAll
	}
	return domain.TargetAudience(raw)
}
