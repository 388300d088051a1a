package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"drycleaning/backend/internal/domain"
	"drycleaning/backend/internal/store"
)

var hundred = decimal.NewFromInt(100)

func (s *Service) ListServices(ctx context.Context) ([]domain.Service, error) {
	return s.repo.ListServices(ctx)
}

func (s *Service) CreateService(ctx context.Context, req domain.ServiceCreateRequest) (domain.Service, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" {
		return domain.Service{}, fmt.Errorf("%w: name is required", store.ErrInvalidCatalog)
	}
	if req.UnitPrice.IsNegative() {
		return domain.Service{}, fmt.Errorf("%w: unit_price must not be negative", store.ErrInvalidCatalog)
	}

	created, err := s.repo.CreateService(ctx, domain.Service{
		ID:        strings.TrimSpace(req.ID),
		Name:      req.Name,
		Category:  req.Category,
		UnitPrice: req.UnitPrice,
		Active:    true,
	})
	if err != nil {
		return domain.Service{}, err
	}
	s.logger.Info("service created", zap.String("service_id", created.ID), zap.String("unit_price", created.UnitPrice.String()))
	return *created, nil
}

func (s *Service) UpdateService(ctx context.Context, id string, req domain.ServiceUpdateRequest) (domain.Service, error) {
	existing, err := s.repo.GetService(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Service{}, err
	}

	updated := *existing
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.UnitPrice != nil {
		updated.UnitPrice = *req.UnitPrice
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	if updated.Name == "" {
		return domain.Service{}, fmt.Errorf("%w: name is required", store.ErrInvalidCatalog)
	}
	if updated.UnitPrice.IsNegative() {
		return domain.Service{}, fmt.Errorf("%w: unit_price must not be negative", store.ErrInvalidCatalog)
	}

	saved, err := s.repo.UpdateService(ctx, updated)
	if err != nil {
		return domain.Service{}, err
	}
	if !existing.UnitPrice.Equal(saved.UnitPrice) {
		s.logger.Info("service price changed",
			zap.String("service_id", saved.ID),
			zap.String("old_price", existing.UnitPrice.String()),
			zap.String("new_price", saved.UnitPrice.String()),
		)
	}
	return *saved, nil
}

func (s *Service) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	return s.repo.ListPromotions(ctx)
}

func (s *Service) CreatePromotion(ctx context.Context, req domain.PromotionCreateRequest) (domain.Promotion, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Promotion{}, fmt.Errorf("%w: name is required", store.ErrInvalidCatalog)
	}
	if req.TargetAudience == "" {
		req.TargetAudience = domain.TargetAll
	}
	if err := validateDiscount(req.DiscountType, req.DiscountAmount, req.TargetAudience); err != nil {
		return domain.Promotion{}, err
	}
	start, end, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		return domain.Promotion{}, err
	}

	services := make([]string, 0, len(req.ApplicableServices))
	seen := make(map[string]struct{}, len(req.ApplicableServices))
	for _, id := range req.ApplicableServices {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, err := s.repo.GetService(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Promotion{}, fmt.Errorf("%w: unknown service %s", store.ErrInvalidCatalog, id)
			}
			return domain.Promotion{}, err
		}
		services = append(services, id)
	}
	if len(services) == 0 {
		return domain.Promotion{}, fmt.Errorf("%w: applicable_services must not be empty", store.ErrInvalidCatalog)
	}

	created, err := s.repo.CreatePromotion(ctx, domain.Promotion{
		Name:               req.Name,
		DiscountAmount:     req.DiscountAmount,
		DiscountType:       req.DiscountType,
		TargetAudience:     req.TargetAudience,
		StartDate:          start,
		EndDate:            end,
		Status:             domain.PromotionStatusActive,
		ApplicableServices: services,
		Locations:          req.Locations,
	})
	if err != nil {
		return domain.Promotion{}, err
	}
	s.invalidateCatalog(ctx)
	s.logger.Info("promotion created", zap.String("promotion_id", created.ID), zap.Strings("services", created.ApplicableServices))
	return *created, nil
}

func (s *Service) SetPromotionStatus(ctx context.Context, id string, req domain.PromotionStatusRequest) (domain.Promotion, error) {
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status != domain.PromotionStatusActive && status != domain.PromotionStatusInactive {
		return domain.Promotion{}, fmt.Errorf("%w: status must be active or inactive", store.ErrInvalidCatalog)
	}
	updated, err := s.repo.UpdatePromotionStatus(ctx, strings.TrimSpace(id), status)
	if err != nil {
		return domain.Promotion{}, err
	}
	s.invalidateCatalog(ctx)
	return *updated, nil
}

func (s *Service) ListPromocodes(ctx context.Context) ([]domain.Promocode, error) {
	return s.repo.ListPromocodes(ctx)
}

func (s *Service) CreatePromocode(ctx context.Context, req domain.PromocodeCreateRequest) (domain.Promocode, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Code = domain.NormalizeCode(req.Code)
	if req.Name == "" || req.Code == "" {
		return domain.Promocode{}, fmt.Errorf("%w: name and code are required", store.ErrInvalidCatalog)
	}
	if req.TargetAudience == "" {
		req.TargetAudience = domain.TargetAll
	}
	if err := validateDiscount(req.DiscountType, req.DiscountAmount, req.TargetAudience); err != nil {
		return domain.Promocode{}, err
	}
	if req.UsageLimit < 1 {
		return domain.Promocode{}, fmt.Errorf("%w: usage_limit must be positive", store.ErrInvalidCatalog)
	}
	if req.MinOrderAmount != nil && req.MinOrderAmount.IsNegative() {
		return domain.Promocode{}, fmt.Errorf("%w: min_order_amount must not be negative", store.ErrInvalidCatalog)
	}
	if req.MaxDiscountAmount != nil {
		if req.DiscountType != domain.DiscountPercentage {
			return domain.Promocode{}, fmt.Errorf("%w: max_discount_amount only applies to percentage codes", store.ErrInvalidCatalog)
		}
		if req.MaxDiscountAmount.IsNegative() {
			return domain.Promocode{}, fmt.Errorf("%w: max_discount_amount must not be negative", store.ErrInvalidCatalog)
		}
	}
	start, end, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		return domain.Promocode{}, err
	}

	created, err := s.repo.CreatePromocode(ctx, domain.Promocode{
		Name:              req.Name,
		Code:              req.Code,
		DiscountAmount:    req.DiscountAmount,
		DiscountType:      req.DiscountType,
		TargetAudience:    req.TargetAudience,
		StartDate:         start,
		EndDate:           end,
		Status:            domain.PromocodeStatusActive,
		UsageLimit:        req.UsageLimit,
		MinOrderAmount:    req.MinOrderAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
	})
	if err != nil {
		return domain.Promocode{}, err
	}
	s.logger.Info("promocode created", zap.String("promocode_id", created.ID), zap.String("code", created.Code))
	return *created, nil
}

func (s *Service) SetPromocodeStatus(ctx context.Context, id string, req domain.PromocodeStatusRequest) (domain.Promocode, error) {
	status := strings.ToLower(strings.TrimSpace(req.Status))
	switch status {
	case domain.PromocodeStatusActive, domain.PromocodeStatusExpired, domain.PromocodeStatusInactive:
	default:
		return domain.Promocode{}, fmt.Errorf("%w: status must be active, expired or inactive", store.ErrInvalidCatalog)
	}
	updated, err := s.repo.UpdatePromocodeStatus(ctx, strings.TrimSpace(id), status)
	if err != nil {
		return domain.Promocode{}, err
	}
	return *updated, nil
}

func validateDiscount(kind domain.DiscountType, amount decimal.Decimal, target domain.TargetAudience) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: discount_type must be percentage or fixed", store.ErrInvalidCatalog)
	}
	if !target.Valid() {
		return fmt.Errorf("%w: target_audience must be all, individual or legal", store.ErrInvalidCatalog)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: discount_amount must not be negative", store.ErrInvalidCatalog)
	}
	if kind == domain.DiscountPercentage && amount.GreaterThan(hundred) {
		return fmt.Errorf("%w: percentage discount cannot exceed 100", store.ErrInvalidCatalog)
	}
	return nil
}

func parseWindow(rawStart string, rawEnd string) (time.Time, time.Time, error) {
	start, err := domain.ParseDate(strings.TrimSpace(rawStart))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date must be YYYY-MM-DD", store.ErrInvalidCatalog)
	}
	end, err := domain.ParseDate(strings.TrimSpace(rawEnd))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_date must be YYYY-MM-DD", store.ErrInvalidCatalog)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_date is before start_date", store.ErrInvalidCatalog)
	}
	return start, end, nil
}
