package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Audience string

const (
	AudienceIndividual Audience = "individual"
	AudienceLegal      Audience = "legal"
)

func (a Audience) Valid() bool {
	return a == AudienceIndividual || a == AudienceLegal
}

// TargetAudience is the audience a promotion or promo code is aimed at.
type TargetAudience string

const (
	TargetAll        TargetAudience = "all"
	TargetIndividual TargetAudience = "individual"
	TargetLegal      TargetAudience = "legal"
)

func (t TargetAudience) Valid() bool {
	switch t {
	case TargetAll, TargetIndividual, TargetLegal:
		return true
	default:
		return false
	}
}

// Matches reports whether a client of the given audience is targeted.
func (t TargetAudience) Matches(audience Audience) bool {
	switch t {
	case TargetAll:
		return true
	case TargetIndividual:
		return audience == AudienceIndividual
	case TargetLegal:
		return audience == AudienceLegal
	default:
		return false
	}
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

func (d DiscountType) Valid() bool {
	return d == DiscountPercentage || d == DiscountFixed
}

const (
	PromotionStatusActive   = "active"
	PromotionStatusInactive = "inactive"
)

const (
	PromocodeStatusActive   = "active"
	PromocodeStatusExpired  = "expired"
	PromocodeStatusInactive = "inactive"
)

type Service struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

type ServiceCreateRequest struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type ServiceUpdateRequest struct {
	Name      *string          `json:"name,omitempty"`
	Category  *string          `json:"category,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Active    *bool            `json:"active,omitempty"`
}

// Promotion is an automatic, catalog-driven discount tied to specific services.
// StartDate and EndDate are inclusive calendar dates.
type Promotion struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	DiscountType       DiscountType    `json:"discount_type"`
	TargetAudience     TargetAudience  `json:"target_audience"`
	StartDate          time.Time       `json:"start_date"`
	EndDate            time.Time       `json:"end_date"`
	Status             string          `json:"status"`
	ApplicableServices []string        `json:"applicable_services"`
	Locations          []string        `json:"locations,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

func (p Promotion) AppliesTo(serviceID string) bool {
	for _, id := range p.ApplicableServices {
		if id == serviceID {
			return true
		}
	}
	return false
}

type PromotionCreateRequest struct {
	Name               string          `json:"name"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	DiscountType       DiscountType    `json:"discount_type"`
	TargetAudience     TargetAudience  `json:"target_audience"`
	StartDate          string          `json:"start_date"`
	EndDate            string          `json:"end_date"`
	ApplicableServices []string        `json:"applicable_services"`
	Locations          []string        `json:"locations,omitempty"`
}

type PromotionStatusRequest struct {
	Status string `json:"status"`
}

// Promocode is a user-entered discount token applied once per order.
type Promocode struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Code              string           `json:"code"`
	DiscountAmount    decimal.Decimal  `json:"discount_amount"`
	DiscountType      DiscountType     `json:"discount_type"`
	TargetAudience    TargetAudience   `json:"target_audience"`
	StartDate         time.Time        `json:"start_date"`
	EndDate           time.Time        `json:"end_date"`
	Status            string           `json:"status"`
	UsageLimit        int              `json:"usage_limit"`
	UsedCount         int              `json:"used_count"`
	MinOrderAmount    *decimal.Decimal `json:"min_order_amount,omitempty"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

type PromocodeCreateRequest struct {
	Name              string           `json:"name"`
	Code              string           `json:"code"`
	DiscountAmount    decimal.Decimal  `json:"discount_amount"`
	DiscountType      DiscountType     `json:"discount_type"`
	TargetAudience    TargetAudience   `json:"target_audience"`
	StartDate         string           `json:"start_date"`
	EndDate           string           `json:"end_date"`
	UsageLimit        int              `json:"usage_limit"`
	MinOrderAmount    *decimal.Decimal `json:"min_order_amount,omitempty"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty"`
}

type PromocodeStatusRequest struct {
	Status string `json:"status"`
}

type PromocodeCheckRequest struct {
	Code     string      `json:"code"`
	Audience Audience    `json:"audience"`
	AsOf     string      `json:"as_of,omitempty"`
	Lines    []LineInput `json:"lines"`
}

type PromocodeCheckResponse struct {
	Code       string          `json:"code"`
	Found      bool            `json:"found"`
	Applicable bool            `json:"applicable"`
	Reason     string          `json:"reason,omitempty"`
	Discount   decimal.Decimal `json:"discount"`
}

// LineInput is one service entry of an order being composed.
type LineInput struct {
	LineID    string `json:"line_id,omitempty"`
	ServiceID string `json:"service_id"`
	Quantity  int    `json:"quantity"`
}

// PromotionSnapshot is a frozen copy of the promotion applied to a line.
type PromotionSnapshot struct {
	PromotionID    string          `json:"promotion_id"`
	Name           string          `json:"name"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	DiscountType   DiscountType    `json:"discount_type"`
}

type OrderLine struct {
	LineID            string             `json:"line_id"`
	ServiceID         string             `json:"service_id"`
	Quantity          int                `json:"quantity"`
	UnitPrice         decimal.Decimal    `json:"unit_price"`
	UnitOriginalPrice decimal.Decimal    `json:"unit_original_price"`
	Total             decimal.Decimal    `json:"total"`
	OriginalTotal     decimal.Decimal    `json:"original_total"`
	Discount          decimal.Decimal    `json:"discount"`
	AppliedPromotion  *PromotionSnapshot `json:"applied_promotion,omitempty"`
}

type AppliedPromotionSummary struct {
	PromotionID    string          `json:"promotion_id"`
	Name           string          `json:"name"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	DiscountType   DiscountType    `json:"discount_type"`
	LineIDs        []string        `json:"line_ids"`
	TotalDiscount  decimal.Decimal `json:"total_discount"`
}

// PromocodeSnapshot is a frozen copy of the promo code applied to an order.
type PromocodeSnapshot struct {
	PromocodeID    string          `json:"promocode_id"`
	Name           string          `json:"name"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	DiscountType   DiscountType    `json:"discount_type"`
}

type OrderTotals struct {
	Lines              []OrderLine               `json:"lines"`
	AppliedPromotions  []AppliedPromotionSummary `json:"applied_promotions"`
	TotalAmount        decimal.Decimal           `json:"total_amount"`
	LineDiscount       decimal.Decimal           `json:"line_discount"`
	PromocodeDiscount  decimal.Decimal           `json:"promocode_discount"`
	TotalDiscount      decimal.Decimal           `json:"total_discount"`
	FinalAmount        decimal.Decimal           `json:"final_amount"`
	AppliedPromocode   *PromocodeSnapshot        `json:"applied_promocode,omitempty"`
	PromocodeRejection string                    `json:"promocode_rejection,omitempty"`
}

type QuoteRequest struct {
	Audience Audience    `json:"audience"`
	AsOf     string      `json:"as_of,omitempty"`
	Promo    string      `json:"promocode,omitempty"`
	Lines    []LineInput `json:"lines"`
}

type QuoteResponse struct {
	PricedAt string      `json:"priced_at"`
	Totals   OrderTotals `json:"totals"`
}

type OrderCreateRequest struct {
	ClientID string      `json:"client_id"`
	Audience Audience    `json:"audience"`
	AsOf     string      `json:"as_of,omitempty"`
	Promo    string      `json:"promocode,omitempty"`
	Lines    []LineInput `json:"lines"`
}

type OrderUpdateRequest struct {
	AsOf  string      `json:"as_of,omitempty"`
	Promo string      `json:"promocode,omitempty"`
	Lines []LineInput `json:"lines"`
}

// Order is the submitted, frozen form of a priced basket.
type Order struct {
	ID                string                    `json:"id"`
	ClientID          string                    `json:"client_id"`
	Audience          Audience                  `json:"audience"`
	Lines             []OrderLine               `json:"lines"`
	AppliedPromotions []AppliedPromotionSummary `json:"applied_promotions"`
	TotalAmount       decimal.Decimal           `json:"total_amount"`
	PromocodeDiscount decimal.Decimal           `json:"promocode_discount"`
	TotalDiscount     decimal.Decimal           `json:"total_discount"`
	FinalAmount       decimal.Decimal           `json:"final_amount"`
	AppliedPromocode  *PromocodeSnapshot        `json:"applied_promocode,omitempty"`
	PricedAt          time.Time                 `json:"priced_at"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

type OrderResponse struct {
	Order Order `json:"order"`
	// PromocodeRejection explains why a requested code was left off the order.
	PromocodeRejection string `json:"promocode_rejection,omitempty"`
}

type OrderListResponse struct {
	Orders []Order `json:"orders"`
}

// DateOnly truncates t to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(t), nil
}

// NormalizeCode is the canonical, case-insensitive form of a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
