package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"drycleaning/backend/internal/domain"
	"drycleaning/backend/internal/metrics"
	"drycleaning/backend/internal/pricing"
	"drycleaning/backend/internal/service"
	"drycleaning/backend/internal/store/memory"
)

// newTestAPI builds the full router over a seeded in-memory store so handler
// tests exercise the complete request path.
func newTestAPI(t *testing.T) (*API, *metrics.Metrics) {
	t.Helper()

	repo := memory.NewSeeded()
	m := metrics.New()
	clock := func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	svc := service.New(repo, pricing.NewEngine(pricing.Policy{}, nil), service.WithClock(clock), service.WithMetrics(m))
	return New(svc, Options{AllowedOrigin: "*", Metrics: m}), m
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	switch p := payload.(type) {
	case nil:
		body = bytes.NewReader(nil)
	case string:
		body = bytes.NewReader([]byte(p))
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v (body: %s)", err, rec.Body.String())
	}
}

func expectAmount(t *testing.T, label string, want string, got decimal.Decimal) {
	t.Helper()
	if !decimal.RequireFromString(want).Equal(got) {
		t.Fatalf("expected %s %s, got %s", label, want, got)
	}
}

func TestHandleHealth(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := doJSON(t, api.Handler(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestQuoteEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/orders/quote", map[string]any{
		"audience":  "individual",
		"promocode": "corp500",
		"lines":     []map[string]any{{"service_id": "svc-coat", "quantity": 1}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.QuoteResponse
	decodeBody(t, rec, &resp)
	if resp.PricedAt != "2025-06-15" {
		t.Fatalf("expected priced_at 2025-06-15, got %s", resp.PricedAt)
	}
	expectAmount(t, "total", "1500", resp.Totals.TotalAmount)
	expectAmount(t, "final", "775", resp.Totals.FinalAmount)
	if len(resp.Totals.Lines) != 1 || resp.Totals.Lines[0].LineID != "line-1" {
		t.Fatalf("expected one positional line, got %+v", resp.Totals.Lines)
	}
}

func TestOrderLifecycle(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/orders", domain.OrderCreateRequest{
		ClientID: "client-1",
		Audience: domain.AudienceIndividual,
		Promo:    "CORP500",
		Lines:    []domain.LineInput{{ServiceID: "svc-coat", Quantity: 1}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created domain.OrderResponse
	decodeBody(t, rec, &created)
	orderID := created.Order.ID
	if orderID == "" {
		t.Fatalf("expected order id")
	}
	expectAmount(t, "created final", "775", created.Order.FinalAmount)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/orders/"+orderID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on get, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/v1/orders/"+orderID, domain.OrderUpdateRequest{
		Promo: "CORP500",
		Lines: []domain.LineInput{{ServiceID: "svc-coat", Quantity: 2}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var updated domain.OrderResponse
	decodeBody(t, rec, &updated)
	expectAmount(t, "updated final", "2050", updated.Order.FinalAmount)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/orders?client_id=client-1&limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on list, got %d", rec.Code)
	}
	var list domain.OrderListResponse
	decodeBody(t, rec, &list)
	if len(list.Orders) != 1 || list.Orders[0].ID != orderID {
		t.Fatalf("expected the created order in list, got %+v", list.Orders)
	}
}

func TestCreateOrderReportsPromocodeRejection(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/orders", domain.OrderCreateRequest{
		ClientID: "client-1",
		Audience: domain.AudienceIndividual,
		Promo:    "CORP500",
		Lines:    []domain.LineInput{{ServiceID: "svc-shirt", Quantity: 1}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp domain.OrderResponse
	decodeBody(t, rec, &resp)
	if resp.PromocodeRejection != "below_min_order" {
		t.Fatalf("expected below_min_order, got %q", resp.PromocodeRejection)
	}
}

func TestCheckPromocodeEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/promocodes/check", domain.PromocodeCheckRequest{
		Code:     "GHOST",
		Audience: domain.AudienceLegal,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp domain.PromocodeCheckResponse
	decodeBody(t, rec, &resp)
	if resp.Found || resp.Applicable || resp.Reason != "not_found" {
		t.Fatalf("expected not_found, got %+v", resp)
	}
}

func TestCatalogAdminEndpoints(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/services", map[string]any{
		"id": "svc-blanket", "name": "Blanket", "category": "home", "unit_price": "800",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on service create, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/v1/services/svc-blanket", map[string]any{"unit_price": "1000"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on service update, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/promotions", map[string]any{
		"name": "Blanket season", "discount_amount": "25", "discount_type": "percentage",
		"start_date": "2025-06-01", "end_date": "2025-06-30", "applicable_services": []string{"svc-blanket"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on promotion create, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Promotion domain.Promotion `json:"promotion"`
	}
	decodeBody(t, rec, &created)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/quote", domain.QuoteRequest{
		Audience: domain.AudienceIndividual,
		Lines:    []domain.LineInput{{ServiceID: "svc-blanket", Quantity: 1}},
	})
	var quote domain.QuoteResponse
	decodeBody(t, rec, &quote)
	expectAmount(t, "discounted blanket", "750", quote.Totals.FinalAmount)

	rec = doJSON(t, handler, http.MethodPatch, "/api/v1/promotions/"+created.Promotion.ID+"/status", map[string]any{"status": "inactive"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on status change, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/promocodes", map[string]any{
		"name": "Dup", "code": "summer2025", "discount_amount": "5", "discount_type": "percentage",
		"start_date": "2025-06-01", "end_date": "2025-06-30", "usage_limit": 10,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate code, got %d", rec.Code)
	}
}

func TestValidationErrorsReturn400(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/orders/quote", domain.QuoteRequest{
		Audience: domain.AudienceIndividual,
		Lines:    []domain.LineInput{{ServiceID: "svc-coat", Quantity: 0}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/quote", `{"audience":"individual","lines":[],"discount":"50"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/promotions", map[string]any{
		"name": "Broken", "discount_amount": "150", "discount_type": "percentage",
		"start_date": "2025-06-01", "end_date": "2025-06-30", "applicable_services": []string{"svc-coat"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for percentage over 100, got %d", rec.Code)
	}
}

func TestUnknownOrderReturns404(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := doJSON(t, api.Handler(), http.MethodGet, "/api/v1/orders/ord-missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := doJSON(t, api.Handler(), http.MethodDelete, "/api/v1/orders", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestMetricsEndpointExposesCounters(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	doJSON(t, handler, http.MethodPost, "/api/v1/orders/quote", domain.QuoteRequest{
		Audience: domain.AudienceIndividual,
		Lines:    []domain.LineInput{{ServiceID: "svc-coat", Quantity: 1}},
	})

	rec := doJSON(t, handler, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `pricing_recomputes_total{operation="quote"} 1`) {
		t.Fatalf("expected quote recompute counter in metrics output")
	}
	if !strings.Contains(body, `route="/api/v1/orders/quote"`) {
		t.Fatalf("expected route pattern label in latency histogram")
	}
}
