package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"drycleaning/backend/internal/domain"
	"drycleaning/backend/internal/store"
	"drycleaning/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	services        map[string]domain.Service
	promotionsByID  map[string]domain.Promotion
	promotionOrder  []string
	promocodesByID  map[string]domain.Promocode
	promocodeByCode map[string]string
	ordersByID      map[string]domain.Order
	now             func() time.Time
}

func New() *Store {
	return &Store{
		services:        make(map[string]domain.Service),
		promotionsByID:  make(map[string]domain.Promotion),
		promotionOrder:  make([]string, 0, 16),
		promocodesByID:  make(map[string]domain.Promocode),
		promocodeByCode: make(map[string]string),
		ordersByID:      make(map[string]domain.Order),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// NewSeeded returns a store with a small demo catalog for local runs.
func NewSeeded() *Store {
	s := New()
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC)

	for _, svc := range []domain.Service{
		{ID: "svc-shirt", Name: "Shirt", Category: "everyday", UnitPrice: decimal.NewFromInt(350), Active: true},
		{ID: "svc-trousers", Name: "Trousers", Category: "everyday", UnitPrice: decimal.NewFromInt(600), Active: true},
		{ID: "svc-coat", Name: "Coat", Category: "outerwear", UnitPrice: decimal.NewFromInt(1500), Active: true},
		{ID: "svc-suit", Name: "Two-piece suit", Category: "formal", UnitPrice: decimal.NewFromInt(2500), Active: true},
		{ID: "svc-dress", Name: "Evening dress", Category: "formal", UnitPrice: decimal.NewFromInt(2200), Active: true},
		{ID: "svc-rug", Name: "Rug per sq. m", Category: "home", UnitPrice: decimal.NewFromInt(900), Active: true},
	} {
		_, _ = s.CreateService(ctx, svc)
	}

	for _, promo := range []domain.Promotion{
		{
			ID: "promo-outerwear", Name: "Outerwear week", DiscountAmount: decimal.NewFromInt(15),
			DiscountType: domain.DiscountPercentage, TargetAudience: domain.TargetAll,
			StartDate: start, EndDate: end, Status: domain.PromotionStatusActive,
			ApplicableServices: []string{"svc-coat"},
		},
		{
			ID: "promo-formal", Name: "Formalwear fixed", DiscountAmount: decimal.NewFromInt(500),
			DiscountType: domain.DiscountFixed, TargetAudience: domain.TargetAll,
			StartDate: start, EndDate: end, Status: domain.PromotionStatusActive,
			ApplicableServices: []string{"svc-suit"},
		},
		{
			ID: "promo-legal-shirts", Name: "Corporate shirts", DiscountAmount: decimal.NewFromInt(20),
			DiscountType: domain.DiscountPercentage, TargetAudience: domain.TargetLegal,
			StartDate: start, EndDate: end, Status: domain.PromotionStatusActive,
			ApplicableServices: []string{"svc-shirt", "svc-trousers"},
		},
	} {
		_, _ = s.CreatePromotion(ctx, promo)
	}

	maxSummer := decimal.NewFromInt(300)
	minCorp := decimal.NewFromInt(1000)
	for _, code := range []domain.Promocode{
		{
			ID: "pc-corp500", Name: "Corporate 500", Code: "CORP500", DiscountAmount: decimal.NewFromInt(500),
			DiscountType: domain.DiscountFixed, TargetAudience: domain.TargetAll,
			StartDate: start, EndDate: end, Status: domain.PromocodeStatusActive,
			UsageLimit: 1000, MinOrderAmount: &minCorp,
		},
		{
			ID: "pc-summer2025", Name: "Summer 2025", Code: "SUMMER2025", DiscountAmount: decimal.NewFromInt(10),
			DiscountType: domain.DiscountPercentage, TargetAudience: domain.TargetAll,
			StartDate: start, EndDate: end, Status: domain.PromocodeStatusActive,
			UsageLimit: 500, MaxDiscountAmount: &maxSummer,
		},
	} {
		_, _ = s.CreatePromocode(ctx, code)
	}
	return s
}

func (s *Store) GetService(_ context.Context, id string) (*domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &svc, nil
}

func (s *Store) ListServices(_ context.Context) ([]domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	services := make([]domain.Service, 0, len(s.services))
	for _, svc := range s.services {
		services = append(services, svc)
	}
	slices.SortFunc(services, func(a, b domain.Service) int {
		return strings.Compare(a.ID, b.ID)
	})
	return services, nil
}

func (s *Store) CreateService(_ context.Context, svc domain.Service) (*domain.Service, error) {
	if strings.TrimSpace(svc.Name) == "" || svc.UnitPrice.IsNegative() {
		return nil, store.ErrInvalidCatalog
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if svc.ID == "" {
		svc.ID = xid.New("svc")
	}
	if _, exists := s.services[svc.ID]; exists {
		return nil, store.ErrDuplicate
	}
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = s.now()
	}
	s.services[svc.ID] = svc
	return &svc, nil
}

func (s *Store) UpdateService(_ context.Context, svc domain.Service) (*domain.Service, error) {
	if strings.TrimSpace(svc.Name) == "" || svc.UnitPrice.IsNegative() {
		return nil, store.ErrInvalidCatalog
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.services[svc.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	svc.CreatedAt = existing.CreatedAt
	s.services[svc.ID] = svc
	return &svc, nil
}

func (s *Store) ListPromotions(_ context.Context) ([]domain.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	promotions := make([]domain.Promotion, 0, len(s.promotionOrder))
	for _, id := range s.promotionOrder {
		promotions = append(promotions, clonePromotion(s.promotionsByID[id]))
	}
	return promotions, nil
}

// ListActivePromotions keeps creation order, which decides resolution ties.
func (s *Store) ListActivePromotions(_ context.Context, asOf time.Time) ([]domain.Promotion, error) {
	day := domain.DateOnly(asOf)

	s.mu.RLock()
	defer s.mu.RUnlock()

	promotions := make([]domain.Promotion, 0, len(s.promotionOrder))
	for _, id := range s.promotionOrder {
		promo := s.promotionsByID[id]
		if promo.Status != domain.PromotionStatusActive {
			continue
		}
		if day.Before(promo.StartDate) || day.After(promo.EndDate) {
			continue
		}
		promotions = append(promotions, clonePromotion(promo))
	}
	return promotions, nil
}

func (s *Store) CreatePromotion(_ context.Context, promo domain.Promotion) (*domain.Promotion, error) {
	if strings.TrimSpace(promo.Name) == "" || !promo.DiscountType.Valid() || !promo.TargetAudience.Valid() {
		return nil, store.ErrInvalidCatalog
	}
	if promo.EndDate.Before(promo.StartDate) {
		return nil, store.ErrInvalidCatalog
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if promo.ID == "" {
		promo.ID = xid.New("promo")
	}
	if _, exists := s.promotionsByID[promo.ID]; exists {
		return nil, store.ErrDuplicate
	}
	if promo.Status == "" {
		promo.Status = domain.PromotionStatusActive
	}
	if promo.CreatedAt.IsZero() {
		promo.CreatedAt = s.now()
	}
	promo.StartDate = domain.DateOnly(promo.StartDate)
	promo.EndDate = domain.DateOnly(promo.EndDate)
	promo = clonePromotion(promo)
	s.promotionsByID[promo.ID] = promo
	s.promotionOrder = append(s.promotionOrder, promo.ID)

	out := clonePromotion(promo)
	return &out, nil
}

func (s *Store) UpdatePromotionStatus(_ context.Context, id string, status string) (*domain.Promotion, error) {
	if status != domain.PromotionStatusActive && status != domain.PromotionStatusInactive {
		return nil, store.ErrInvalidCatalog
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	promo, ok := s.promotionsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	promo.Status = status
	s.promotionsByID[id] = promo

	out := clonePromotion(promo)
	return &out, nil
}

func (s *Store) ListPromocodes(_ context.Context) ([]domain.Promocode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := make([]domain.Promocode, 0, len(s.promocodesByID))
	for _, code := range s.promocodesByID {
		codes = append(codes, clonePromocode(code))
	}
	sortPromocodes(codes)
	return codes, nil
}

// ListActivePromocodes returns codes that are active and not past their end
// date. Usage and start date are left to validation.
func (s *Store) ListActivePromocodes(_ context.Context, asOf time.Time) ([]domain.Promocode, error) {
	day := domain.DateOnly(asOf)

	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := make([]domain.Promocode, 0, len(s.promocodesByID))
	for _, code := range s.promocodesByID {
		if code.Status != domain.PromocodeStatusActive || day.After(code.EndDate) {
			continue
		}
		codes = append(codes, clonePromocode(code))
	}
	sortPromocodes(codes)
	return codes, nil
}

func (s *Store) FindPromocodeByCode(_ context.Context, code string) (*domain.Promocode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.promocodeByCode[domain.NormalizeCode(code)]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := clonePromocode(s.promocodesByID[id])
	return &found, nil
}

func (s *Store) CreatePromocode(_ context.Context, code domain.Promocode) (*domain.Promocode, error) {
	code.Code = domain.NormalizeCode(code.Code)
	if code.Code == "" || strings.TrimSpace(code.Name) == "" {
		return nil, store.ErrInvalidCatalog
	}
	if !code.DiscountType.Valid() || !code.TargetAudience.Valid() || code.UsageLimit < 0 || code.UsedCount < 0 {
		return nil, store.ErrInvalidCatalog
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.promocodeByCode[code.Code]; exists {
		return nil, store.ErrDuplicate
	}
	if code.ID == "" {
		code.ID = xid.New("pc")
	}
	if _, exists := s.promocodesByID[code.ID]; exists {
		return nil, store.ErrDuplicate
	}
	if code.Status == "" {
		code.Status = domain.PromocodeStatusActive
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = s.now()
	}
	code.StartDate = domain.DateOnly(code.StartDate)
	code.EndDate = domain.DateOnly(code.EndDate)
	code = clonePromocode(code)
	s.promocodesByID[code.ID] = code
	s.promocodeByCode[code.Code] = code.ID

	out := clonePromocode(code)
	return &out, nil
}

func (s *Store) UpdatePromocodeStatus(_ context.Context, id string, status string) (*domain.Promocode, error) {
	switch status {
	case domain.PromocodeStatusActive, domain.PromocodeStatusExpired, domain.PromocodeStatusInactive:
	default:
		return nil, store.ErrInvalidCatalog
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.promocodesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	code.Status = status
	s.promocodesByID[id] = code

	out := clonePromocode(code)
	return &out, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order, redeemPromocodeID string) (*domain.Order, error) {
	if len(order.Lines) == 0 || !order.Audience.Valid() {
		return nil, store.ErrInvalidOrder
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if _, exists := s.ordersByID[order.ID]; exists {
		return nil, store.ErrDuplicate
	}
	if err := s.redeemLocked(redeemPromocodeID); err != nil {
		return nil, err
	}

	now := s.now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt
	order = cloneOrder(order)
	s.ordersByID[order.ID] = order

	out := cloneOrder(order)
	return &out, nil
}

func (s *Store) UpdateOrder(_ context.Context, order domain.Order, redeemPromocodeID string, releasePromocodeID string) (*domain.Order, error) {
	if len(order.Lines) == 0 {
		return nil, store.ErrInvalidOrder
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.ordersByID[order.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := s.redeemLocked(redeemPromocodeID); err != nil {
		return nil, err
	}
	s.releaseLocked(releasePromocodeID)

	order.ClientID = existing.ClientID
	order.Audience = existing.Audience
	order.CreatedAt = existing.CreatedAt
	order.UpdatedAt = s.now()
	order = cloneOrder(order)
	s.ordersByID[order.ID] = order

	out := cloneOrder(order)
	return &out, nil
}

// redeemLocked must be called with s.mu held for writing.
func (s *Store) redeemLocked(promocodeID string) error {
	if promocodeID == "" {
		return nil
	}
	code, ok := s.promocodesByID[promocodeID]
	if !ok {
		return store.ErrNotFound
	}
	if code.UsedCount >= code.UsageLimit {
		return store.ErrPromocodeExhausted
	}
	code.UsedCount++
	s.promocodesByID[promocodeID] = code
	return nil
}

// releaseLocked must be called with s.mu held for writing.
func (s *Store) releaseLocked(promocodeID string) {
	if promocodeID == "" {
		return
	}
	code, ok := s.promocodesByID[promocodeID]
	if !ok || code.UsedCount <= 0 {
		return
	}
	code.UsedCount--
	s.promocodesByID[promocodeID] = code
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.ordersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneOrder(order)
	return &out, nil
}

func (s *Store) ListOrders(_ context.Context, clientID string, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, len(s.ordersByID))
	for _, order := range s.ordersByID {
		if clientID != "" && order.ClientID != clientID {
			continue
		}
		orders = append(orders, cloneOrder(order))
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func sortPromocodes(codes []domain.Promocode) {
	slices.SortFunc(codes, func(a, b domain.Promocode) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.Code, b.Code)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

func clonePromotion(src domain.Promotion) domain.Promotion {
	dup := src
	dup.ApplicableServices = slices.Clone(src.ApplicableServices)
	dup.Locations = slices.Clone(src.Locations)
	return dup
}

func clonePromocode(src domain.Promocode) domain.Promocode {
	dup := src
	if src.MinOrderAmount != nil {
		v := *src.MinOrderAmount
		dup.MinOrderAmount = &v
	}
	if src.MaxDiscountAmount != nil {
		v := *src.MaxDiscountAmount
		dup.MaxDiscountAmount = &v
	}
	return dup
}

func cloneOrder(src domain.Order) domain.Order {
	dup := src
	dup.Lines = make([]domain.OrderLine, len(src.Lines))
	for i, line := range src.Lines {
		if line.AppliedPromotion != nil {
			snapshot := *line.AppliedPromotion
			line.AppliedPromotion = &snapshot
		}
		dup.Lines[i] = line
	}
	dup.AppliedPromotions = make([]domain.AppliedPromotionSummary, len(src.AppliedPromotions))
	for i, summary := range src.AppliedPromotions {
		summary.LineIDs = slices.Clone(summary.LineIDs)
		dup.AppliedPromotions[i] = summary
	}
	if src.AppliedPromocode != nil {
		snapshot := *src.AppliedPromocode
		dup.AppliedPromocode = &snapshot
	}
	return dup
}
