package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"drycleaning/backend/internal/logging"
	"drycleaning/backend/internal/metrics"
	"drycleaning/backend/internal/service"
	"drycleaning/backend/internal/store"
)

const maxBodyBytes = 1 << 20

type Options struct {
	AllowedOrigin  string
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
}

type API struct {
	service        *service.Service
	allowedOrigin  string
	logger         *zap.Logger
	metrics        *metrics.Metrics
	requestTimeout time.Duration
}

func New(svc *service.Service, opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origin := strings.TrimSpace(opts.AllowedOrigin)
	if origin == "" {
		origin = "*"
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &API{
		service:        svc,
		allowedOrigin:  origin,
		logger:         logger,
		metrics:        opts.Metrics,
		requestTimeout: timeout,
	}
}

func (a *API) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(a.withSecurityHeaders)
	router.Use(a.withAccessLog)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(a.requestTimeout))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, errors.New("route not found"))
	})
	router.MethodNotAllowed(writeMethodNotAllowed)

	router.Get("/healthz", a.handleHealth)
	if a.metrics != nil {
		router.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/services", a.handleListServices)
		r.Post("/services", a.handleCreateService)
		r.Put("/services/{serviceID}", a.handleUpdateService)

		r.Get("/promotions", a.handleListPromotions)
		r.Post("/promotions", a.handleCreatePromotion)
		r.Patch("/promotions/{promotionID}/status", a.handleSetPromotionStatus)

		r.Get("/promocodes", a.handleListPromocodes)
		r.Post("/promocodes", a.handleCreatePromocode)
		r.Post("/promocodes/check", a.handleCheckPromocode)
		r.Patch("/promocodes/{promocodeID}/status", a.handleSetPromocodeStatus)

		r.Post("/orders/quote", a.handleQuote)
		r.Get("/orders", a.handleListOrders)
		r.Post("/orders", a.handleCreateOrder)
		r.Get("/orders/{orderID}", a.handleGetOrder)
		r.Put("/orders/{orderID}", a.handleUpdateOrder)
	})

	return router
}

func (a *API) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAccessLog attaches a request scoped logger and records one access line
// and one latency observation per request.
func (a *API) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := a.logger.With(
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		r = r.WithContext(logging.WithLogger(r.Context(), logger))

		recorder := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		defer func() {
			status := recorder.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(startedAt)
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			a.metrics.ObserveHTTP(r.Method, route, status, elapsed)

			fields := []zap.Field{
				zap.Int("status", status),
				zap.Duration("latency", elapsed),
				zap.Int("bytes", recorder.BytesWritten()),
			}
			switch {
			case status >= http.StatusInternalServerError:
				logger.Error("request completed", fields...)
			case status >= http.StatusBadRequest:
				logger.Warn("request completed", fields...)
			default:
				logger.Info("request completed", fields...)
			}
		}()

		next.ServeHTTP(recorder, r)
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// writeServiceError maps store sentinels onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidOrder), errors.Is(err, store.ErrInvalidCatalog):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrPromocodeExhausted), errors.Is(err, store.ErrDuplicate):
		status = http.StatusConflict
	}
	writeError(w, r, status, err)
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	// 5xx details stay in the log; clients get a generic message.
	msg := err.Error()
	if status >= 500 {
		logging.FromContext(r.Context()).Error("request failed", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
