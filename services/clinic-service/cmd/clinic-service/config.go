package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicdesk/libs/config"
	"github.com/md-rashed-zaman/clinicdesk/libs/db"
)

type appConfig struct {
	Service  string
	HTTPPort string
	GRPCAddr string
	LogLevel string
	LogFile  string

	DatabaseURL string
	Pool        db.PoolConfig
	Migrate     bool

	Location  *time.Location
	HidePast  bool
	CacheSize int

	KafkaBrokers []string
	InstanceID   string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RateLimit      int
	RateLimitFail  bool
	RateLimitScope string

	CORSOrigins    []string
	BodyLimit      int64
	RequestTimeout time.Duration
}

func loadConfig() (appConfig, error) {
	var cfg appConfig
	var err error

	cfg.Service = config.String("SERVICE_NAME", "clinic-service")
	if cfg.HTTPPort, err = config.Port("PORT", "8080"); err != nil {
		return cfg, err
	}
	grpcPort, err := config.Port("GRPC_PORT", "9090")
	if err != nil {
		return cfg, err
	}
	cfg.GRPCAddr = ":" + grpcPort
	cfg.LogLevel = config.String("LOG_LEVEL", "info")
	cfg.LogFile = config.String("LOG_FILE", "")

	if cfg.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return cfg, err
	}
	maxConns, err := config.Int("DB_MAX_CONNS", 10)
	if err != nil {
		return cfg, err
	}
	cfg.Pool = db.PoolConfig{MaxConns: int32(maxConns)}
	cfg.Migrate = config.Bool("DB_MIGRATE", true)

	if cfg.Location, err = config.Location("CLINIC_TIMEZONE", "Local"); err != nil {
		return cfg, err
	}
	cfg.HidePast = config.Bool("SLOTS_HIDE_PAST", false)
	if cfg.CacheSize, err = config.Int("TEMPLATE_CACHE_SIZE", 512); err != nil {
		return cfg, err
	}

	cfg.KafkaBrokers = config.List("KAFKA_BROKERS", "")
	cfg.InstanceID = config.String("INSTANCE_ID", "")
	if cfg.InstanceID == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			cfg.InstanceID = host
		} else {
			cfg.InstanceID = uuid.NewString()
		}
	}

	cfg.RedisAddr = config.String("REDIS_ADDR", "")
	cfg.RedisPassword = config.String("REDIS_PASSWORD", "")
	if cfg.RedisDB, err = config.Int("REDIS_DB", 0); err != nil {
		return cfg, err
	}
	if cfg.RateLimit, err = config.Int("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return cfg, err
	}
	cfg.RateLimitFail = config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	cfg.RateLimitScope = config.String("RATE_LIMIT_PREFIX", "clinicdesk:rl")

	cfg.CORSOrigins = config.List("CORS_ALLOWED_ORIGINS", "")
	bodyLimit, err := config.Int("HTTP_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		return cfg, err
	}
	cfg.BodyLimit = int64(bodyLimit)
	if cfg.RequestTimeout, err = config.Duration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}
	switch {
	case maxConns <= 0:
		return cfg, fmt.Errorf("DB_MAX_CONNS must be positive (got %d)", maxConns)
	case cfg.RateLimit < 0:
		return cfg, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative (got %d)", cfg.RateLimit)
	case cfg.CacheSize < 0:
		return cfg, fmt.Errorf("TEMPLATE_CACHE_SIZE must not be negative (got %d)", cfg.CacheSize)
	}
	return cfg, nil
}
