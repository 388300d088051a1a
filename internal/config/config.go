package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port                      string
	AllowedOrigin             string
	DatabaseURL               string
	AutoMigrate               bool
	RedisAddr                 string
	RedisPassword             string
	RedisDB                   int
	CatalogCacheTTLSeconds    int
	CatalogFixture            string
	LogLevel                  string
	EnforcePromocodeStartDate bool
	RequestTimeoutSeconds     int
}

// Load reads configuration from the process environment. A .env file, when
// present, is applied by the caller before Load runs.
func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cacheTTL, err := strconv.Atoi(getEnv("CATALOG_CACHE_TTL_SECONDS", "60"))
	if err != nil || cacheTTL < 0 {
		cacheTTL = 60
	}
	requestTimeout, err := strconv.Atoi(getEnv("REQUEST_TIMEOUT_SECONDS", "15"))
	if err != nil || requestTimeout < 1 {
		requestTimeout = 15
	}

	return Config{
		Port:                      getEnv("PORT", "8080"),
		AllowedOrigin:             getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		AutoMigrate:               getBool("DATABASE_AUTO_MIGRATE", false),
		RedisAddr:                 os.Getenv("REDIS_ADDR"),
		RedisPassword:             os.Getenv("REDIS_PASSWORD"),
		RedisDB:                   redisDB,
		CatalogCacheTTLSeconds:    cacheTTL,
		CatalogFixture:            strings.TrimSpace(os.Getenv("CATALOG_FIXTURE")),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		EnforcePromocodeStartDate: getBool("PROMOCODE_ENFORCE_START_DATE", false),
		RequestTimeoutSeconds:     requestTimeout,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) CatalogCacheTTL() time.Duration {
	return time.Duration(c.CatalogCacheTTLSeconds) * time.Second
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getBool(key string, fallback bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
