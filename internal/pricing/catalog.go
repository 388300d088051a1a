package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"drycleaning/backend/internal/domain"
	"drycleaning/backend/internal/store"
)

// CatalogReader is the read surface the engine needs from the catalog store.
type CatalogReader interface {
	GetService(ctx context.Context, id string) (*domain.Service, error)
	ListActivePromotions(ctx context.Context, asOf time.Time) ([]domain.Promotion, error)
	ListActivePromocodes(ctx context.Context, asOf time.Time) ([]domain.Promocode, error)
	FindPromocodeByCode(ctx context.Context, code string) (*domain.Promocode, error)
}

// Catalog is an immutable snapshot of the catalog taken for one pricing call.
// Promotions keep the order they were listed in; resolution depends on it.
type Catalog struct {
	services   map[string]domain.Service
	promotions []domain.Promotion
	promocodes map[string]domain.Promocode
}

func NewCatalog(services []domain.Service, promotions []domain.Promotion, promocodes []domain.Promocode) *Catalog {
	c := &Catalog{
		services:   make(map[string]domain.Service, len(services)),
		promotions: make([]domain.Promotion, 0, len(promotions)),
		promocodes: make(map[string]domain.Promocode, len(promocodes)),
	}
	for _, svc := range services {
		c.services[svc.ID] = svc
	}
	for _, promo := range promotions {
		c.promotions = append(c.promotions, ClonePromotion(promo))
	}
	for _, code := range promocodes {
		c.promocodes[NormalizeCode(code.Code)] = ClonePromocode(code)
	}
	return c
}

// LoadCatalog snapshots the services referenced by serviceIDs, the promotions
// active on asOf and, when code is non-empty, the matching promo code.
// Missing services and codes are left out of the snapshot rather than failing.
func LoadCatalog(ctx context.Context, reader CatalogReader, asOf time.Time, serviceIDs []string, code string) (*Catalog, error) {
	seen := make(map[string]struct{}, len(serviceIDs))
	services := make([]domain.Service, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}

		svc, err := reader.GetService(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("load service %s: %w", id, err)
		}
		services = append(services, *svc)
	}

	promotions, err := reader.ListActivePromotions(ctx, domain.DateOnly(asOf))
	if err != nil {
		return nil, fmt.Errorf("list active promotions: %w", err)
	}

	var promocodes []domain.Promocode
	if normalized := NormalizeCode(code); normalized != "" {
		found, err := reader.FindPromocodeByCode(ctx, normalized)
		switch {
		case err == nil:
			promocodes = append(promocodes, *found)
		case errors.Is(err, store.ErrNotFound):
		default:
			return nil, fmt.Errorf("find promocode: %w", err)
		}
	}

	return NewCatalog(services, promotions, promocodes), nil
}

func (c *Catalog) Service(id string) (domain.Service, bool) {
	if c == nil {
		return domain.Service{}, false
	}
	svc, ok := c.services[id]
	return svc, ok
}

func (c *Catalog) Promotions() []domain.Promotion {
	if c == nil {
		return nil
	}
	out := make([]domain.Promotion, 0, len(c.promotions))
	for _, promo := range c.promotions {
		out = append(out, ClonePromotion(promo))
	}
	return out
}

// Promocode looks a code up case-insensitively.
func (c *Catalog) Promocode(code string) (domain.Promocode, bool) {
	if c == nil {
		return domain.Promocode{}, false
	}
	found, ok := c.promocodes[NormalizeCode(code)]
	if !ok {
		return domain.Promocode{}, false
	}
	return ClonePromocode(found), true
}

func NormalizeCode(code string) string {
	return domain.NormalizeCode(code)
}

func ClonePromotion(src domain.Promotion) domain.Promotion {
	dup := src
	dup.ApplicableServices = append([]string(nil), src.ApplicableServices...)
	dup.Locations = append([]string(nil), src.Locations...)
	return dup
}

func ClonePromocode(src domain.Promocode) domain.Promocode {
	dup := src
	dup.MinOrderAmount = cloneDecimalPtr(src.MinOrderAmount)
	dup.MaxDiscountAmount = cloneDecimalPtr(src.MaxDiscountAmount)
	return dup
}

func cloneDecimalPtr(src *decimal.Decimal) *decimal.Decimal {
	if src == nil {
		return nil
	}
	val := *src
	return &val
}
