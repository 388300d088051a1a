package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"drycleaning/backend/internal/domain"
)

// Reason explains why a promo code was not applied.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonNotFound          Reason = "not_found"
	ReasonInactive          Reason = "inactive"
	ReasonExpired           Reason = "expired"
	ReasonNotStarted        Reason = "not_started"
	ReasonUsageLimitReached Reason = "usage_limit_reached"
	ReasonAudienceMismatch  Reason = "audience_mismatch"
	ReasonBelowMinOrder     Reason = "below_min_order"
)

// CheckPromocode validates code against an order amount that already has line
// promotions subtracted. It returns the code unchanged when usable, otherwise
// nil and the first failing condition.
func (e *Engine) CheckPromocode(cat *Catalog, code string, amount decimal.Decimal, audience domain.Audience, asOf time.Time) (*domain.Promocode, Reason) {
	found, ok := cat.Promocode(code)
	if !ok {
		return nil, ReasonNotFound
	}
	if reason := e.eligibility(found, amount, audience, asOf); reason != ReasonNone {
		return nil, reason
	}
	return &found, ReasonNone
}

// ValidatePromocode is CheckPromocode without the reason.
func (e *Engine) ValidatePromocode(cat *Catalog, code string, amount decimal.Decimal, audience domain.Audience, asOf time.Time) *domain.Promocode {
	found, _ := e.CheckPromocode(cat, code, amount, audience, asOf)
	return found
}

// eligibility never touches UsedCount; redemption happens on order submission.
func (e *Engine) eligibility(code domain.Promocode, amount decimal.Decimal, audience domain.Audience, asOf time.Time) Reason {
	day := domain.DateOnly(asOf)

	if code.Status != domain.PromocodeStatusActive {
		return ReasonInactive
	}
	if day.After(domain.DateOnly(code.EndDate)) {
		return ReasonExpired
	}
	if e.policy.EnforcePromocodeStart && day.Before(domain.DateOnly(code.StartDate)) {
		return ReasonNotStarted
	}
	if code.UsedCount >= code.UsageLimit {
		return ReasonUsageLimitReached
	}
	if !code.TargetAudience.Matches(audience) {
		return ReasonAudienceMismatch
	}
	if code.MinOrderAmount != nil && amount.LessThan(*code.MinOrderAmount) {
		return ReasonBelowMinOrder
	}
	return ReasonNone
}

// PromocodeDiscount computes the cart-level discount of code on subtotal.
func PromocodeDiscount(code domain.Promocode, subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch code.DiscountType {
	case domain.DiscountPercentage:
		discount = subtotal.Mul(code.DiscountAmount).Div(hundred).Round(moneyPlaces)
		if code.MaxDiscountAmount != nil && discount.GreaterThan(*code.MaxDiscountAmount) {
			discount = *code.MaxDiscountAmount
		}
	case domain.DiscountFixed:
		discount = decimal.Min(code.DiscountAmount, subtotal)
	default:
		return decimal.Zero
	}
	return clamp(discount, subtotal)
}
