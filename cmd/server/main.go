package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"drycleaning/backend/internal/cache"
	"drycleaning/backend/internal/config"
	"drycleaning/backend/internal/httpapi"
	"drycleaning/backend/internal/logging"
	"drycleaning/backend/internal/metrics"
	"drycleaning/backend/internal/pricing"
	"drycleaning/backend/internal/service"
	"drycleaning/backend/internal/store"
	"drycleaning/backend/internal/store/memory"
	pgstore "drycleaning/backend/internal/store/postgres"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Debug("no .env file loaded", zap.Error(envErr))
	}
	if err := validateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, closers, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("repository unavailable", zap.Error(err))
	}

	m := metrics.New()

	var promoCache cache.PromotionCache = cache.NoopPromotionCache{}
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisPromotionCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using noop cache", zap.Error(err))
		} else {
			promoCache = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		logger.Info("cache: noop")
	}

	reader := cache.NewCachedReader(repo, promoCache, cfg.CatalogCacheTTL(), logger, m)
	engine := pricing.NewEngine(pricing.Policy{EnforcePromocodeStart: cfg.EnforcePromocodeStartDate}, logger)
	svc := service.New(repo, engine,
		service.WithCatalogReader(reader),
		service.WithLogger(logger),
		service.WithMetrics(m),
	)
	api := httpapi.New(svc, httpapi.Options{
		AllowedOrigin:  cfg.AllowedOrigin,
		Logger:         logger,
		Metrics:        m,
		RequestTimeout: cfg.RequestTimeout(),
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("pricing backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func validateConfig(cfg config.Config) error {
	if cfg.DatabaseURL != "" && cfg.CatalogFixture != "" {
		return fmt.Errorf("DATABASE_URL and CATALOG_FIXTURE are mutually exclusive")
	}
	return nil
}

// openRepository picks postgres when DATABASE_URL is set, then a YAML
// fixture, then the seeded demo catalog.
func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Repository, []func() error, error) {
	closers := make([]func() error, 0, 2)

	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set; refusing in-memory fallback: %w", err)
		}
		closers = append(closers, pg.Close)
		if cfg.AutoMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				_ = pg.Close()
				return nil, nil, fmt.Errorf("apply schema: %w", err)
			}
			logger.Info("schema applied")
		}
		logger.Info("repository: postgres")
		return pg, closers, nil
	case cfg.CatalogFixture != "":
		repo, err := memory.LoadFixture(cfg.CatalogFixture)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("repository: in-memory fixture", zap.String("path", cfg.CatalogFixture))
		return repo, closers, nil
	default:
		logger.Info("repository: in-memory seeded")
		return memory.NewSeeded(), closers, nil
	}
}
