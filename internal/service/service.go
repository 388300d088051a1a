package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"drycleaning/backend/internal/domain"
	"drycleaning/backend/internal/metrics"
	"drycleaning/backend/internal/pricing"
	"drycleaning/backend/internal/store"
)

// catalogInvalidator is implemented by readers that cache catalog listings.
type catalogInvalidator interface {
	Invalidate(ctx context.Context)
}

type Service struct {
	repo    store.Repository
	reader  pricing.CatalogReader
	engine  *pricing.Engine
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

// WithCatalogReader routes pricing reads through reader, typically a cache.
func WithCatalogReader(reader pricing.CatalogReader) Option {
	return func(s *Service) {
		if reader != nil {
			s.reader = reader
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(repo store.Repository, engine *pricing.Engine, opts ...Option) *Service {
	if engine == nil {
		engine = pricing.NewEngine(pricing.Policy{}, nil)
	}
	s := &Service{
		repo:   repo,
		reader: repo,
		engine: engine,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if inv, ok := s.reader.(catalogInvalidator); ok {
		inv.Invalidate(ctx)
	}
}

// referenceDate resolves an optional YYYY-MM-DD date, defaulting to today.
func (s *Service) referenceDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.DateOnly(s.now()), nil
	}
	day, err := domain.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: as_of must be YYYY-MM-DD", store.ErrInvalidOrder)
	}
	return day, nil
}

func normalizeLines(lines []domain.LineInput) ([]domain.LineInput, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", store.ErrInvalidOrder)
	}

	out := make([]domain.LineInput, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for i, line := range lines {
		line.ServiceID = strings.TrimSpace(line.ServiceID)
		line.LineID = strings.TrimSpace(line.LineID)
		if line.ServiceID == "" {
			return nil, fmt.Errorf("%w: line %d has no service_id", store.ErrInvalidOrder, i+1)
		}
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: line %d quantity must be positive", store.ErrInvalidOrder, i+1)
		}
		id := pricing.LineID(line, i)
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate line_id %s", store.ErrInvalidOrder, id)
		}
		seen[id] = struct{}{}
		line.LineID = id
		out = append(out, line)
	}
	return out, nil
}

func serviceIDs(lines []domain.LineInput) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ServiceID)
	}
	return ids
}

// checkServices rejects lines whose service is missing or retired. The
// engine itself would price them at zero.
func checkServices(cat *pricing.Catalog, lines []domain.LineInput) error {
	for _, line := range lines {
		svc, ok := cat.Service(line.ServiceID)
		if !ok {
			return fmt.Errorf("%w: unknown service %s", store.ErrInvalidOrder, line.ServiceID)
		}
		if !svc.Active {
			return fmt.Errorf("%w: service %s is not active", store.ErrInvalidOrder, line.ServiceID)
		}
	}
	return nil
}
