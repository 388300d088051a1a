package pricing

import (
	"time"

	"drycleaning/backend/internal/domain"
)

// ResolvePromotion returns the first promotion, in catalog order, that is
// active on asOf, covers serviceID and targets the audience. Ties are not
// broken by discount size.
func ResolvePromotion(promotions []domain.Promotion, serviceID string, audience domain.Audience, asOf time.Time) *domain.Promotion {
	day := domain.DateOnly(asOf)
	for i := range promotions {
		promo := promotions[i]
		if promo.Status != domain.PromotionStatusActive {
			continue
		}
		if day.Before(domain.DateOnly(promo.StartDate)) || day.After(domain.DateOnly(promo.EndDate)) {
			continue
		}
		if !promo.AppliesTo(serviceID) {
			continue
		}
		if !promo.TargetAudience.Matches(audience) {
			continue
		}
		resolved := ClonePromotion(promo)
		return &resolved
	}
	return nil
}

// ResolvePromotion resolves against the snapshot's promotions.
func (c *Catalog) ResolvePromotion(serviceID string, audience domain.Audience, asOf time.Time) *domain.Promotion {
	if c == nil {
		return nil
	}
	return ResolvePromotion(c.promotions, serviceID, audience, asOf)
}
