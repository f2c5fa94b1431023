package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds everything read from the environment at startup.
type Config struct {
	Port               int
	DBDSN              string
	RedisURL           string
	JWTAccessTTL       time.Duration
	JWTRefreshTTL      time.Duration
	JWTSecret          string
	AllowOrigins       []string
	MigrateOnStart     bool
	LogLevel           zerolog.Level
	MetricsEnabled     bool
	PaginationMaxLimit int
	RateLimitPublic    RateLimitConfig
	RateLimitAuth      RateLimitConfig
	RateLimitOrg       RateLimitConfig
	AMQPURL            string
	AMQPQueue          string
}

// RateLimitConfig is a token bucket per client.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load reads .env when present, then the environment, applying defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	port, err := parseIntEnv("PORT", 8080)
	if err != nil || port <= 0 {
		return nil, errors.New("invalid PORT")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN is required")
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 characters")
	}

	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.JWTRefreshTTL, err = parseDurationEnv("JWT_REFRESH_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}

	for _, origin := range strings.Split(getEnv("ALLOW_ORIGINS", ""), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	if cfg.MigrateOnStart, err = parseBoolEnv("MIGRATE_ON_START", true); err != nil {
		return nil, err
	}
	if cfg.MetricsEnabled, err = parseBoolEnv("METRICS_ENABLED", true); err != nil {
		return nil, err
	}

	levelName := strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "")))
	if levelName == "" {
		levelName = "info"
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		return nil, errors.New("invalid LOG_LEVEL")
	}
	cfg.LogLevel = level

	maxLimit, err := parseIntEnv("PAGINATION_MAX_LIMIT", 100)
	if err != nil || maxLimit <= 0 {
		return nil, errors.New("invalid PAGINATION_MAX_LIMIT")
	}
	cfg.PaginationMaxLimit = maxLimit

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 10, Burst: 40}
	cfg.RateLimitOrg = RateLimitConfig{RequestsPerSecond: 50, Burst: 200}

	// Bid events are only published when a broker is configured.
	cfg.AMQPURL = strings.TrimSpace(getEnv("AMQP_URL", ""))
	cfg.AMQPQueue = strings.TrimSpace(getEnv("AMQP_QUEUE", ""))
	if cfg.AMQPQueue == "" {
		cfg.AMQPQueue = "bid.events"
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return dur, nil
}

func parseIntEnv(key string, def int) (int, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	return strconv.Atoi(val)
}

func parseBoolEnv(key string, def bool) (bool, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, errors.New("invalid " + key)
	}
	return b, nil
}
