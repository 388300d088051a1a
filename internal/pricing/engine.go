package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"drycleaning/backend/internal/domain"
)

// Policy holds the switchable validation rules.
type Policy struct {
	// EnforcePromocodeStart also rejects codes whose StartDate is after the
	// reference date. Off by default: only EndDate is checked.
	EnforcePromocodeStart bool
}

type Engine struct {
	policy Policy
	logger *zap.Logger
}

func NewEngine(policy Policy, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{policy: policy, logger: logger}
}

func (e *Engine) Policy() Policy {
	return e.policy
}

type RecomputeRequest struct {
	Lines     []domain.LineInput
	Promocode string
	Audience  domain.Audience
	AsOf      time.Time
	// HeldPromocodeID names a code this order already consumed. One use is
	// credited back while validating it so an edit does not trip its own
	// redemption.
	HeldPromocodeID string
}

// Recompute reprices the whole line set from scratch and aggregates it.
// It is called on every line add/remove, quantity change and promo code
// change; totals are a pure function of the request and the snapshot.
func (e *Engine) Recompute(cat *Catalog, req RecomputeRequest) domain.OrderTotals {
	asOf := domain.DateOnly(req.AsOf)

	lines := make([]domain.OrderLine, 0, len(req.Lines))
	for i, in := range req.Lines {
		priced := cat.PriceLine(in.ServiceID, in.Quantity, req.Audience, asOf)
		lines = append(lines, priced.OrderLine(LineID(in, i)))
	}

	var code *domain.Promocode
	requested := NormalizeCode(req.Promocode)
	if requested != "" {
		if found, ok := cat.Promocode(requested); ok {
			if req.HeldPromocodeID != "" && found.ID == req.HeldPromocodeID && found.UsedCount > 0 {
				found.UsedCount--
			}
			code = &found
		}
	}

	totals := e.Aggregate(lines, code, req.Audience, asOf)
	if requested != "" && code == nil {
		totals.PromocodeRejection = string(ReasonNotFound)
	}

	e.logger.Debug("order recomputed",
		zap.Int("lines", len(lines)),
		zap.String("audience", string(req.Audience)),
		zap.String("as_of", asOf.Format(domain.DateLayout)),
		zap.String("final_amount", totals.FinalAmount.String()),
		zap.String("promocode_rejection", totals.PromocodeRejection),
	)
	return totals
}

// LineID returns the caller supplied line id or a positional one.
func LineID(in domain.LineInput, index int) string {
	if in.LineID != "" {
		return in.LineID
	}
	return fmt.Sprintf("line-%d", index+1)
}

// Aggregate combines priced lines and an optional promo code into order
// totals. Line promotions are subtracted first; the promo code is
// re-validated and applied to what remains.
func (e *Engine) Aggregate(lines []domain.OrderLine, code *domain.Promocode, audience domain.Audience, asOf time.Time) domain.OrderTotals {
	totals := domain.OrderTotals{
		Lines:             make([]domain.OrderLine, 0, len(lines)),
		AppliedPromotions: make([]domain.AppliedPromotionSummary, 0),
		TotalAmount:       decimal.Zero,
		LineDiscount:      decimal.Zero,
		PromocodeDiscount: decimal.Zero,
	}

	summaryIndex := make(map[string]int)
	for _, line := range lines {
		totals.Lines = append(totals.Lines, cloneOrderLine(line))
		totals.TotalAmount = totals.TotalAmount.Add(line.OriginalTotal)

		if line.AppliedPromotion == nil {
			continue
		}
		lineDiscount := line.OriginalTotal.Sub(line.Total)
		totals.LineDiscount = totals.LineDiscount.Add(lineDiscount)

		promo := line.AppliedPromotion
		idx, seen := summaryIndex[promo.PromotionID]
		if !seen {
			summaryIndex[promo.PromotionID] = len(totals.AppliedPromotions)
			totals.AppliedPromotions = append(totals.AppliedPromotions, domain.AppliedPromotionSummary{
				PromotionID:    promo.PromotionID,
				Name:           promo.Name,
				DiscountAmount: promo.DiscountAmount,
				DiscountType:   promo.DiscountType,
				LineIDs:        []string{line.LineID},
				TotalDiscount:  lineDiscount,
			})
			continue
		}
		summary := &totals.AppliedPromotions[idx]
		summary.LineIDs = append(summary.LineIDs, line.LineID)
		summary.TotalDiscount = summary.TotalDiscount.Add(lineDiscount)
	}

	afterLines := totals.TotalAmount.Sub(totals.LineDiscount)

	if code != nil {
		if reason := e.eligibility(*code, afterLines, audience, asOf); reason != ReasonNone {
			totals.PromocodeRejection = string(reason)
		} else {
			totals.PromocodeDiscount = PromocodeDiscount(*code, afterLines)
			totals.AppliedPromocode = &domain.PromocodeSnapshot{
				PromocodeID:    code.ID,
				Name:           code.Name,
				Code:           code.Code,
				DiscountAmount: code.DiscountAmount,
				DiscountType:   code.DiscountType,
			}
		}
	}

	totals.FinalAmount = afterLines.Sub(totals.PromocodeDiscount)
	totals.TotalDiscount = totals.LineDiscount.Add(totals.PromocodeDiscount)
	return totals
}

func cloneOrderLine(src domain.OrderLine) domain.OrderLine {
	dup := src
	if src.AppliedPromotion != nil {
		snapshot := *src.AppliedPromotion
		dup.AppliedPromotion = &snapshot
	}
	return dup
}
