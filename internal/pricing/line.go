package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"drycleaning/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// moneyPlaces is the number of fractional digits kept on computed discounts.
const moneyPlaces = 2

// LinePrice is the priced form of a single line.
type LinePrice struct {
	ServiceID     string
	Quantity      int
	UnitPrice     decimal.Decimal
	OriginalPrice decimal.Decimal
	Discount      decimal.Decimal
	FinalPrice    decimal.Decimal
	Promotion     *domain.Promotion
}

// PriceLine prices quantity units of serviceID from scratch. An unknown
// service yields a zero-valued line.
func (c *Catalog) PriceLine(serviceID string, quantity int, audience domain.Audience, asOf time.Time) LinePrice {
	svc, ok := c.Service(serviceID)
	if !ok {
		return LinePrice{
			ServiceID:     serviceID,
			Quantity:      quantity,
			UnitPrice:     decimal.Zero,
			OriginalPrice: decimal.Zero,
			Discount:      decimal.Zero,
			FinalPrice:    decimal.Zero,
		}
	}
	return PriceLine(svc, c.ResolvePromotion(serviceID, audience, asOf), quantity)
}

// PriceLine applies promo (which may be nil) to quantity units of svc.
func PriceLine(svc domain.Service, promo *domain.Promotion, quantity int) LinePrice {
	original := svc.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	line := LinePrice{
		ServiceID:     svc.ID,
		Quantity:      quantity,
		UnitPrice:     svc.UnitPrice,
		OriginalPrice: original,
		Discount:      decimal.Zero,
		FinalPrice:    original,
	}
	if promo == nil {
		return line
	}

	line.Promotion = promo
	line.Discount = promotionDiscount(*promo, original, quantity)
	line.FinalPrice = original.Sub(line.Discount)
	return line
}

// promotionDiscount keeps the discount within [0, original] so a line
// never goes negative.
func promotionDiscount(promo domain.Promotion, original decimal.Decimal, quantity int) decimal.Decimal {
	if !original.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch promo.DiscountType {
	case domain.DiscountPercentage:
		discount = original.Mul(promo.DiscountAmount).Div(hundred).Round(moneyPlaces)
	case domain.DiscountFixed:
		discount = decimal.Min(promo.DiscountAmount.Mul(decimal.NewFromInt(int64(quantity))), original)
	default:
		return decimal.Zero
	}
	return clamp(discount, original)
}

func clamp(amount decimal.Decimal, ceiling decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(ceiling) {
		return ceiling
	}
	return amount
}

// OrderLine converts the priced line into its stored form. The applied
// promotion is copied so later catalog edits cannot reach it.
func (l LinePrice) OrderLine(lineID string) domain.OrderLine {
	unit := l.UnitPrice
	if l.Quantity > 0 {
		unit = l.FinalPrice.Div(decimal.NewFromInt(int64(l.Quantity))).Round(moneyPlaces)
	}

	line := domain.OrderLine{
		LineID:            lineID,
		ServiceID:         l.ServiceID,
		Quantity:          l.Quantity,
		UnitPrice:         unit,
		UnitOriginalPrice: l.UnitPrice,
		Total:             l.FinalPrice,
		OriginalTotal:     l.OriginalPrice,
		Discount:          l.Discount,
	}
	if l.Promotion != nil {
		line.AppliedPromotion = &domain.PromotionSnapshot{
			PromotionID:    l.Promotion.ID,
			Name:           l.Promotion.Name,
			DiscountAmount: l.Promotion.DiscountAmount,
			DiscountType:   l.Promotion.DiscountType,
		}
	}
	return line
}
