package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"drycleaning/backend/internal/domain"
	"drycleaning/backend/internal/pricing"
	"drycleaning/backend/internal/store"
)

type priced struct {
	asOf   time.Time
	totals domain.OrderTotals
}

// price snapshots the catalog and runs a full recompute of lines.
func (s *Service) price(ctx context.Context, operation string, audience domain.Audience, asOf time.Time, lines []domain.LineInput, code string, heldPromocodeID string) (priced, error) {
	if !audience.Valid() {
		return priced{}, fmt.Errorf("%w: audience must be individual or legal", store.ErrInvalidOrder)
	}

	cat, err := pricing.LoadCatalog(ctx, s.reader, asOf, serviceIDs(lines), code)
	if err != nil {
		return priced{}, err
	}
	if err := checkServices(cat, lines); err != nil {
		return priced{}, err
	}

	totals := s.engine.Recompute(cat, pricing.RecomputeRequest{
		Lines:           lines,
		Promocode:       code,
		Audience:        audience,
		AsOf:            asOf,
		HeldPromocodeID: heldPromocodeID,
	})
	s.metrics.Recompute(operation)
	if totals.PromocodeRejection != "" {
		s.metrics.PromocodeRejected(totals.PromocodeRejection)
	}
	return priced{asOf: asOf, totals: totals}, nil
}

func (s *Service) Quote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResponse, error) {
	asOf, err := s.referenceDate(req.AsOf)
	if err != nil {
		return domain.QuoteResponse{}, err
	}
	lines, err := normalizeLines(req.Lines)
	if err != nil {
		return domain.QuoteResponse{}, err
	}

	result, err := s.price(ctx, "quote", req.Audience, asOf, lines, req.Promo, "")
	if err != nil {
		return domain.QuoteResponse{}, err
	}
	return domain.QuoteResponse{
		PricedAt: result.asOf.Format(domain.DateLayout),
		Totals:   result.totals,
	}, nil
}

// CheckPromocode reports whether code would apply to the given basket. It
// never consumes a use.
func (s *Service) CheckPromocode(ctx context.Context, req domain.PromocodeCheckRequest) (domain.PromocodeCheckResponse, error) {
	code := domain.NormalizeCode(req.Code)
	if code == "" {
		return domain.PromocodeCheckResponse{}, fmt.Errorf("%w: code is required", store.ErrInvalidOrder)
	}
	asOf, err := s.referenceDate(req.AsOf)
	if err != nil {
		return domain.PromocodeCheckResponse{}, err
	}

	var lines []domain.LineInput
	if len(req.Lines) > 0 {
		if lines, err = normalizeLines(req.Lines); err != nil {
			return domain.PromocodeCheckResponse{}, err
		}
	}

	result, err := s.price(ctx, "check", req.Audience, asOf, lines, code, "")
	if err != nil {
		return domain.PromocodeCheckResponse{}, err
	}

	totals := result.totals
	return domain.PromocodeCheckResponse{
		Code:       code,
		Found:      totals.PromocodeRejection != string(pricing.ReasonNotFound),
		Applicable: totals.AppliedPromocode != nil,
		Reason:     totals.PromocodeRejection,
		Discount:   totals.PromocodeDiscount,
	}, nil
}

// CreateOrder prices and persists a new order. An ineligible promo code is
// left off the order and reported in the response; losing the redemption
// race to a concurrent order surfaces as store.ErrPromocodeExhausted.
func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.OrderResponse, error) {
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		return domain.OrderResponse{}, fmt.Errorf("%w: client_id is required", store.ErrInvalidOrder)
	}
	asOf, err := s.referenceDate(req.AsOf)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	lines, err := normalizeLines(req.Lines)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	result, err := s.price(ctx, "create", req.Audience, asOf, lines, req.Promo, "")
	if err != nil {
		return domain.OrderResponse{}, err
	}

	order := orderFromTotals(result.totals)
	order.ClientID = clientID
	order.Audience = req.Audience
	order.PricedAt = result.asOf

	redeem := ""
	if order.AppliedPromocode != nil {
		redeem = order.AppliedPromocode.PromocodeID
	}

	saved, err := s.repo.CreateOrder(ctx, order, redeem)
	if err != nil {
		if errors.Is(err, store.ErrPromocodeExhausted) {
			s.metrics.PromocodeRejected(string(pricing.ReasonUsageLimitReached))
			s.logger.Warn("promocode exhausted during submission", zap.String("promocode_id", redeem), zap.String("client_id", clientID))
		}
		return domain.OrderResponse{}, err
	}

	s.metrics.OrderWritten("create")
	if redeem != "" {
		s.metrics.PromocodeRedeemed()
	}
	s.logger.Info("order created",
		zap.String("order_id", saved.ID),
		zap.String("client_id", saved.ClientID),
		zap.String("final_amount", saved.FinalAmount.String()),
		zap.String("promocode_id", redeem),
	)
	return domain.OrderResponse{Order: *saved, PromocodeRejection: result.totals.PromocodeRejection}, nil
}

// UpdateOrder reprices an existing order from scratch. The reference date
// stays the one the order was first priced at unless AsOf overrides it. The
// code the order already holds is not redeemed a second time, and a held
// code the edit drops gets its use back.
func (s *Service) UpdateOrder(ctx context.Context, id string, req domain.OrderUpdateRequest) (domain.OrderResponse, error) {
	existing, err := s.repo.GetOrder(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.OrderResponse{}, err
	}

	asOf := domain.DateOnly(existing.PricedAt)
	if strings.TrimSpace(req.AsOf) != "" {
		if asOf, err = s.referenceDate(req.AsOf); err != nil {
			return domain.OrderResponse{}, err
		}
	}
	lines, err := normalizeLines(req.Lines)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	held := ""
	if existing.AppliedPromocode != nil {
		held = existing.AppliedPromocode.PromocodeID
	}

	result, err := s.price(ctx, "update", existing.Audience, asOf, lines, req.Promo, held)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	order := orderFromTotals(result.totals)
	order.ID = existing.ID
	order.ClientID = existing.ClientID
	order.Audience = existing.Audience
	order.PricedAt = result.asOf

	redeem, release := "", ""
	if order.AppliedPromocode != nil && order.AppliedPromocode.PromocodeID != held {
		redeem = order.AppliedPromocode.PromocodeID
	}
	if held != "" && (order.AppliedPromocode == nil || order.AppliedPromocode.PromocodeID != held) {
		release = held
	}

	saved, err := s.repo.UpdateOrder(ctx, order, redeem, release)
	if err != nil {
		if errors.Is(err, store.ErrPromocodeExhausted) {
			s.metrics.PromocodeRejected(string(pricing.ReasonUsageLimitReached))
		}
		return domain.OrderResponse{}, err
	}

	s.metrics.OrderWritten("update")
	if redeem != "" {
		s.metrics.PromocodeRedeemed()
	}
	if release != "" {
		s.logger.Info("promocode released", zap.String("order_id", saved.ID), zap.String("promocode_id", release))
	}
	s.logger.Info("order updated",
		zap.String("order_id", saved.ID),
		zap.String("final_amount", saved.FinalAmount.String()),
		zap.String("previous_final_amount", existing.FinalAmount.String()),
	)
	return domain.OrderResponse{Order: *saved, PromocodeRejection: result.totals.PromocodeRejection}, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

func (s *Service) ListOrders(ctx context.Context, clientID string, limit int) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx, strings.TrimSpace(clientID), limit)
}

func orderFromTotals(totals domain.OrderTotals) domain.Order {
	return domain.Order{
		Lines:             totals.Lines,
		AppliedPromotions: totals.AppliedPromotions,
		TotalAmount:       totals.TotalAmount,
		PromocodeDiscount: totals.PromocodeDiscount,
		TotalDiscount:     totals.TotalDiscount,
		FinalAmount:       totals.FinalAmount,
		AppliedPromocode:  totals.AppliedPromocode,
	}
}
