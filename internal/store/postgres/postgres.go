package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"drycleaning/backend/internal/domain"
	"drycleaning/backend/internal/store"
	"drycleaning/backend/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates missing tables. Statements are idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const serviceColumns = `id, name, category, unit_price, active, created_at`

func scanService(row interface{ Scan(...any) error }) (domain.Service, error) {
	var svc domain.Service
	if err := row.Scan(&svc.ID, &svc.Name, &svc.Category, &svc.UnitPrice, &svc.Active, &svc.CreatedAt); err != nil {
		return domain.Service{}, err
	}
	svc.CreatedAt = svc.CreatedAt.UTC()
	return svc, nil
}

func (s *Store) GetService(ctx context.Context, id string) (*domain.Service, error) {
	svc, err := scanService(s.db.QueryRowContext(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &svc, nil
}

func (s *Store) ListServices(ctx context.Context) ([]domain.Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := make([]domain.Service, 0, 32)
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return services, nil
}

func (s *Store) CreateService(ctx context.Context, svc domain.Service) (*domain.Service, error) {
	if strings.TrimSpace(svc.Name) == "" || svc.UnitPrice.IsNegative() {
		return nil, store.ErrInvalidCatalog
	}
	if svc.ID == "" {
		svc.ID = xid.New("svc")
	}
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services (id, name, category, unit_price, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)
	`, svc.ID, svc.Name, svc.Category, svc.UnitPrice, svc.Active, svc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return &svc, nil
}

func (s *Store) UpdateService(ctx context.Context, svc domain.Service) (*domain.Service, error) {
	if strings.TrimSpace(svc.Name) == "" || svc.UnitPrice.IsNegative() {
		return nil, store.ErrInvalidCatalog
	}

	updated, err := scanService(s.db.QueryRowContext(ctx, `
		UPDATE services
		SET name = $2, category = $3, unit_price = $4, active = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+serviceColumns,
		svc.ID, svc.Name, svc.Category, svc.UnitPrice, svc.Active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

const promotionColumns = `id, name, discount_amount, discount_type, target_audience,
	start_date, end_date, status, applicable_services, locations, created_at`

func scanPromotion(row interface{ Scan(...any) error }) (domain.Promotion, error) {
	var (
		promo       domain.Promotion
		servicesRaw []byte
		locationRaw []byte
	)
	if err := row.Scan(
		&promo.ID, &promo.Name, &promo.DiscountAmount, &promo.DiscountType, &promo.TargetAudience,
		&promo.StartDate, &promo.EndDate, &promo.Status, &servicesRaw, &locationRaw, &promo.CreatedAt,
	); err != nil {
		return domain.Promotion{}, err
	}
	if err := json.Unmarshal(servicesRaw, &promo.ApplicableServices); err != nil {
		return domain.Promotion{}, fmt.Errorf("decode applicable services: %w", err)
	}
	if len(locationRaw) > 0 {
		_ = json.Unmarshal(locationRaw, &promo.Locations)
	}
	promo.StartDate = domain.DateOnly(promo.StartDate)
	promo.EndDate = domain.DateOnly(promo.EndDate)
	promo.CreatedAt = promo.CreatedAt.UTC()
	return promo, nil
}

func (s *Store) queryPromotions(ctx context.Context, query string, args ...any) ([]domain.Promotion, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	promotions := make([]domain.Promotion, 0, 16)
	for rows.Next() {
		promo, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		promotions = append(promotions, promo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return promotions, nil
}

func (s *Store) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	return s.queryPromotions(ctx, `
		SELECT `+promotionColumns+`
		FROM promotions
		ORDER BY created_at, id
	`)
}

// ListActivePromotions orders by creation so resolution ties are stable.
func (s *Store) ListActivePromotions(ctx context.Context, asOf time.Time) ([]domain.Promotion, error) {
	return s.queryPromotions(ctx, `
		SELECT `+promotionColumns+`
		FROM promotions
		WHERE status = 'active' AND start_date <= $1 AND end_date >= $1
		ORDER BY created_at, id
	`, domain.DateOnly(asOf))
}

func (s *Store) CreatePromotion(ctx context.Context, promo domain.Promotion) (*domain.Promotion, error) {
	if strings.TrimSpace(promo.Name) == "" || !promo.DiscountType.Valid() || !promo.TargetAudience.Valid() {
		return nil, store.ErrInvalidCatalog
	}
	if promo.EndDate.Before(promo.StartDate) {
		return nil, store.ErrInvalidCatalog
	}
	if promo.ID == "" {
		promo.ID = xid.New("promo")
	}
	if promo.Status == "" {
		promo.Status = domain.PromotionStatusActive
	}
	if promo.CreatedAt.IsZero() {
		promo.CreatedAt = time.Now().UTC()
	}
	if promo.ApplicableServices == nil {
		promo.ApplicableServices = []string{}
	}
	promo.StartDate = domain.DateOnly(promo.StartDate)
	promo.EndDate = domain.DateOnly(promo.EndDate)

	servicesJSON, err := json.Marshal(promo.ApplicableServices)
	if err != nil {
		return nil, err
	}
	locationsJSON, err := json.Marshal(promo.Locations)
	if err != nil {
		return nil, err
	}
	if promo.Locations == nil {
		locationsJSON = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO promotions (
			id, name, discount_amount, discount_type, target_audience,
			start_date, end_date, status, applicable_services, locations, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, promo.ID, promo.Name, promo.DiscountAmount, string(promo.DiscountType), string(promo.TargetAudience),
		promo.StartDate, promo.EndDate, promo.Status, string(servicesJSON), string(locationsJSON), promo.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return &promo, nil
}

func (s *Store) UpdatePromotionStatus(ctx context.Context, id string, status string) (*domain.Promotion, error) {
	if status != domain.PromotionStatusActive && status != domain.PromotionStatusInactive {
		return nil, store.ErrInvalidCatalog
	}

	promo, err := scanPromotion(s.db.QueryRowContext(ctx, `
		UPDATE promotions
		SET status = $2
		WHERE id = $1
		RETURNING `+promotionColumns,
		id, status))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &promo, nil
}

const promocodeColumns = `id, name, code, discount_amount, discount_type, target_audience,
	start_date, end_date, status, usage_limit, used_count, min_order_amount, max_discount_amount, created_at`

func scanPromocode(row interface{ Scan(...any) error }) (domain.Promocode, error) {
	var (
		code        domain.Promocode
		minOrder    decimal.NullDecimal
		maxDiscount decimal.NullDecimal
	)
	if err := row.Scan(
		&code.ID, &code.Name, &code.Code, &code.DiscountAmount, &code.DiscountType, &code.TargetAudience,
		&code.StartDate, &code.EndDate, &code.Status, &code.UsageLimit, &code.UsedCount,
		&minOrder, &maxDiscount, &code.CreatedAt,
	); err != nil {
		return domain.Promocode{}, err
	}
	if minOrder.Valid {
		v := minOrder.Decimal
		code.MinOrderAmount = &v
	}
	if maxDiscount.Valid {
		v := maxDiscount.Decimal
		code.MaxDiscountAmount = &v
	}
	code.StartDate = domain.DateOnly(code.StartDate)
	code.EndDate = domain.DateOnly(code.EndDate)
	code.CreatedAt = code.CreatedAt.UTC()
	return code, nil
}

func (s *Store) queryPromocodes(ctx context.Context, query string, args ...any) ([]domain.Promocode, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	codes := make([]domain.Promocode, 0, 16)
	for rows.Next() {
		code, err := scanPromocode(rows)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *Store) ListPromocodes(ctx context.Context) ([]domain.Promocode, error) {
	return s.queryPromocodes(ctx, `
		SELECT `+promocodeColumns+`
		FROM promocodes
		ORDER BY created_at, code
	`)
}

func (s *Store) ListActivePromocodes(ctx context.Context, asOf time.Time) ([]domain.Promocode, error) {
	return s.queryPromocodes(ctx, `
		SELECT `+promocodeColumns+`
		FROM promocodes
		WHERE status = 'active' AND end_date >= $1
		ORDER BY created_at, code
	`, domain.DateOnly(asOf))
}

func (s *Store) FindPromocodeByCode(ctx context.Context, code string) (*domain.Promocode, error) {
	found, err := scanPromocode(s.db.QueryRowContext(ctx, `
		SELECT `+promocodeColumns+`
		FROM promocodes
		WHERE code = $1
	`, domain.NormalizeCode(code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &found, nil
}

func (s *Store) CreatePromocode(ctx context.Context, code domain.Promocode) (*domain.Promocode, error) {
	code.Code = domain.NormalizeCode(code.Code)
	if code.Code == "" || strings.TrimSpace(code.Name) == "" {
		return nil, store.ErrInvalidCatalog
	}
	if !code.DiscountType.Valid() || !code.TargetAudience.Valid() || code.UsageLimit < 0 || code.UsedCount < 0 {
		return nil, store.ErrInvalidCatalog
	}
	if code.ID == "" {
		code.ID = xid.New("pc")
	}
	if code.Status == "" {
		code.Status = domain.PromocodeStatusActive
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	code.StartDate = domain.DateOnly(code.StartDate)
	code.EndDate = domain.DateOnly(code.EndDate)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO promocodes (
			id, name, code, discount_amount, discount_type, target_audience,
			start_date, end_date, status, usage_limit, used_count,
			min_order_amount, max_discount_amount, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, code.ID, code.Name, code.Code, code.DiscountAmount, string(code.DiscountType), string(code.TargetAudience),
		code.StartDate, code.EndDate, code.Status, code.UsageLimit, code.UsedCount,
		nullDecimal(code.MinOrderAmount), nullDecimal(code.MaxDiscountAmount), code.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return &code, nil
}

func (s *Store) UpdatePromocodeStatus(ctx context.Context, id string, status string) (*domain.Promocode, error) {
	switch status {
	case domain.PromocodeStatusActive, domain.PromocodeStatusExpired, domain.PromocodeStatusInactive:
	default:
		return nil, store.ErrInvalidCatalog
	}

	code, err := scanPromocode(s.db.QueryRowContext(ctx, `
		UPDATE promocodes
		SET status = $2
		WHERE id = $1
		RETURNING `+promocodeColumns,
		id, status))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &code, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order, redeemPromocodeID string) (*domain.Order, error) {
	if len(order.Lines) == 0 || !order.Audience.Valid() {
		return nil, store.ErrInvalidOrder
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.UpdatedAt = order.CreatedAt
	order.PricedAt = domain.DateOnly(order.PricedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := redeem(ctx, tx, redeemPromocodeID); err != nil {
		return nil, err
	}

	promotionsJSON, promocodeJSON, err := encodeOrderSnapshots(order)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, client_id, audience, total_amount, promocode_discount, total_discount, final_amount,
			applied_promotions, applied_promocode, priced_at, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, order.ID, order.ClientID, string(order.Audience), order.TotalAmount, order.PromocodeDiscount,
		order.TotalDiscount, order.FinalAmount, promotionsJSON, promocodeJSON,
		order.PricedAt, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	if err := insertLines(ctx, tx, order.ID, order.Lines); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) UpdateOrder(ctx context.Context, order domain.Order, redeemPromocodeID string, releasePromocodeID string) (*domain.Order, error) {
	if len(order.Lines) == 0 {
		return nil, store.ErrInvalidOrder
	}
	order.PricedAt = domain.DateOnly(order.PricedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var audience string
	err = tx.QueryRowContext(ctx, `
		SELECT client_id, audience, created_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, order.ID).Scan(&order.ClientID, &audience, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	order.Audience = domain.Audience(audience)
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = time.Now().UTC()

	if err := redeem(ctx, tx, redeemPromocodeID); err != nil {
		return nil, err
	}
	if err := release(ctx, tx, releasePromocodeID); err != nil {
		return nil, err
	}

	promotionsJSON, promocodeJSON, err := encodeOrderSnapshots(order)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET total_amount = $2, promocode_discount = $3, total_discount = $4, final_amount = $5,
			applied_promotions = $6, applied_promocode = $7, priced_at = $8, updated_at = $9
		WHERE id = $1
	`, order.ID, order.TotalAmount, order.PromocodeDiscount, order.TotalDiscount, order.FinalAmount,
		promotionsJSON, promocodeJSON, order.PricedAt, order.UpdatedAt); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id = $1`, order.ID); err != nil {
		return nil, err
	}
	if err := insertLines(ctx, tx, order.ID, order.Lines); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &order, nil
}

func release(ctx context.Context, q queryer, promocodeID string) error {
	if promocodeID == "" {
		return nil
	}
	if _, err := q.ExecContext(ctx, `
		UPDATE promocodes
		SET used_count = used_count - 1
		WHERE id = $1 AND used_count > 0
	`, promocodeID); err != nil {
		return fmt.Errorf("release promocode: %w", err)
	}
	return nil
}

// redeem consumes one use of a promo code. The conditional update keeps
// concurrent submissions from pushing used_count past usage_limit.
func redeem(ctx context.Context, q queryer, promocodeID string) error {
	if promocodeID == "" {
		return nil
	}
	res, err := q.ExecContext(ctx, `
		UPDATE promocodes
		SET used_count = used_count + 1
		WHERE id = $1 AND used_count < usage_limit
	`, promocodeID)
	if err != nil {
		return fmt.Errorf("redeem promocode: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM promocodes WHERE id = $1)`, promocodeID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrPromocodeExhausted
}

func insertLines(ctx context.Context, q queryer, orderID string, lines []domain.OrderLine) error {
	for i, line := range lines {
		var promotionJSON any
		if line.AppliedPromotion != nil {
			raw, err := json.Marshal(line.AppliedPromotion)
			if err != nil {
				return err
			}
			promotionJSON = string(raw)
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO order_lines (
				order_id, line_id, position, service_id, quantity, unit_price, unit_original_price,
				total, original_total, discount, applied_promotion
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, orderID, line.LineID, i, line.ServiceID, line.Quantity, line.UnitPrice, line.UnitOriginalPrice,
			line.Total, line.OriginalTotal, line.Discount, promotionJSON); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("duplicate line %s: %w", line.LineID, store.ErrInvalidOrder)
			}
			return err
		}
	}
	return nil
}

func encodeOrderSnapshots(order domain.Order) (string, any, error) {
	summaries := order.AppliedPromotions
	if summaries == nil {
		summaries = []domain.AppliedPromotionSummary{}
	}
	promotionsRaw, err := json.Marshal(summaries)
	if err != nil {
		return "", nil, err
	}
	var promocode any
	if order.AppliedPromocode != nil {
		raw, err := json.Marshal(order.AppliedPromocode)
		if err != nil {
			return "", nil, err
		}
		promocode = string(raw)
	}
	return string(promotionsRaw), promocode, nil
}

const orderColumns = `id, client_id, audience, total_amount, promocode_discount, total_discount, final_amount,
	applied_promotions, applied_promocode, priced_at, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (domain.Order, error) {
	var (
		order         domain.Order
		promotionsRaw []byte
		promocodeRaw  []byte
	)
	if err := row.Scan(
		&order.ID, &order.ClientID, &order.Audience, &order.TotalAmount, &order.PromocodeDiscount,
		&order.TotalDiscount, &order.FinalAmount, &promotionsRaw, &promocodeRaw,
		&order.PricedAt, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(promotionsRaw, &order.AppliedPromotions); err != nil {
		return domain.Order{}, fmt.Errorf("decode applied promotions: %w", err)
	}
	if len(promocodeRaw) > 0 {
		var snapshot domain.PromocodeSnapshot
		if err := json.Unmarshal(promocodeRaw, &snapshot); err != nil {
			return domain.Order{}, fmt.Errorf("decode applied promocode: %w", err)
		}
		order.AppliedPromocode = &snapshot
	}
	order.PricedAt = domain.DateOnly(order.PricedAt)
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	linesByOrder, err := loadLines(ctx, s.db, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Lines = linesByOrder[order.ID]
	return &order, nil
}

func (s *Store) ListOrders(ctx context.Context, clientID string, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1 = '' OR client_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	linesByOrder, err := loadLines(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = linesByOrder[orders[i].ID]
	}
	return orders, nil
}

func loadLines(ctx context.Context, q queryer, orderIDs []string) (map[string][]domain.OrderLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT order_id, line_id, service_id, quantity, unit_price, unit_original_price,
			total, original_total, discount, applied_promotion
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]domain.OrderLine, len(orderIDs))
	for rows.Next() {
		var (
			orderID      string
			line         domain.OrderLine
			promotionRaw []byte
		)
		if err := rows.Scan(
			&orderID, &line.LineID, &line.ServiceID, &line.Quantity, &line.UnitPrice, &line.UnitOriginalPrice,
			&line.Total, &line.OriginalTotal, &line.Discount, &promotionRaw,
		); err != nil {
			return nil, err
		}
		if len(promotionRaw) > 0 {
			var snapshot domain.PromotionSnapshot
			if err := json.Unmarshal(promotionRaw, &snapshot); err != nil {
				return nil, fmt.Errorf("decode line promotion: %w", err)
			}
			line.AppliedPromotion = &snapshot
		}
		result[orderID] = append(result[orderID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullDecimal(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
