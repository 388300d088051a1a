package store

import (
	"context"
	"errors"
	"time"

	"drycleaning/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCatalog     = errors.New("invalid catalog entry")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrPromocodeExhausted = errors.New("promocode usage limit reached")
	ErrDuplicate          = errors.New("already exists")
)

// CatalogReader is the read side used while pricing. Promotions are returned
// in creation order; promo code lookups are case-insensitive.
type CatalogReader interface {
	GetService(ctx context.Context, id string) (*domain.Service, error)
	ListActivePromotions(ctx context.Context, asOf time.Time) ([]domain.Promotion, error)
	ListActivePromocodes(ctx context.Context, asOf time.Time) ([]domain.Promocode, error)
	FindPromocodeByCode(ctx context.Context, code string) (*domain.Promocode, error)
}

type Repository interface {
	CatalogReader

	ListServices(ctx context.Context) ([]domain.Service, error)
	CreateService(ctx context.Context, svc domain.Service) (*domain.Service, error)
	UpdateService(ctx context.Context, svc domain.Service) (*domain.Service, error)

	ListPromotions(ctx context.Context) ([]domain.Promotion, error)
	CreatePromotion(ctx context.Context, promo domain.Promotion) (*domain.Promotion, error)
	UpdatePromotionStatus(ctx context.Context, id string, status string) (*domain.Promotion, error)

	ListPromocodes(ctx context.Context) ([]domain.Promocode, error)
	CreatePromocode(ctx context.Context, code domain.Promocode) (*domain.Promocode, error)
	UpdatePromocodeStatus(ctx context.Context, id string, status string) (*domain.Promocode, error)

	// CreateOrder persists order and, when redeemPromocodeID is set, bumps that
	// code's UsedCount in the same unit of work. ErrPromocodeExhausted is
	// returned without persisting anything if the limit was already reached.
	CreateOrder(ctx context.Context, order domain.Order, redeemPromocodeID string) (*domain.Order, error)
	// UpdateOrder replaces a stored order. redeemPromocodeID is consumed as in
	// CreateOrder; releasePromocodeID, when set, gets one use back because the
	// edit dropped the code the order held.
	UpdateOrder(ctx context.Context, order domain.Order, redeemPromocodeID string, releasePromocodeID string) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, clientID string, limit int) ([]domain.Order, error)
}
