package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/clinicdesk/libs/config"
	"github.com/md-rashed-zaman/clinicdesk/libs/db"
	"github.com/md-rashed-zaman/clinicdesk/libs/grpcx"
	"github.com/md-rashed-zaman/clinicdesk/libs/httpx"
	"github.com/md-rashed-zaman/clinicdesk/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clinicdesk/libs/otel"
	"github.com/md-rashed-zaman/clinicdesk/libs/runtime"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/booking"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/cache"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/consumer"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/grpcserver"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/handlers"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/history"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/inbox"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotenv(); err != nil {
		panic(err)
	}
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(runtime.LogConfig{Service: cfg.Service, Level: cfg.LogLevel, File: cfg.LogFile})

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(cfg.Service)
	if err != nil {
		logger.Error("otel config invalid", "err", err)
		os.Exit(1)
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, cfg.Pool)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Migrate {
		applied, err := storage.Migrate(ctx, pool)
		if err != nil {
			logger.Error("db migration failed", "err", err)
			os.Exit(1)
		}
		if len(applied) > 0 {
			logger.Info("db migrations applied", "versions", applied)
		}
	}

	outboxRepo := outbox.NewRepository(pool)
	store := storage.NewStore(pool, outboxRepo)
	templates, err := cache.NewTemplateCache(store.Professionals, cfg.CacheSize, logger)
	if err != nil {
		logger.Error("template cache init failed", "err", err)
		os.Exit(1)
	}

	bookingSvc := booking.NewService(booking.Deps{
		Schedules:    templates,
		Ledger:       store.Appointments,
		Directory:    store,
		Appointments: store.Appointments,
		Schedule:     store.Professionals,
		Cache:        templates,
	}, logger, booking.Config{Location: cfg.Location, HidePast: cfg.HidePast})
	notesSvc := history.NewService(store.Appointments, store.Notes, logger)
	logger.Info("clinic timezone", "location", cfg.Location.String())

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	if len(cfg.KafkaBrokers) > 0 {
		// Every replica keeps its own cache, so each one needs its own group and inbox name.
		name := "schedule-cache-" + cfg.InstanceID
		invalidations := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Name:    name,
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.Service + "-" + name,
			Topics:  []string{outbox.TypeScheduleReplaced},
		}, templates.HandleScheduleReplaced)
		go invalidations.Run(ctx)
	}

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers), Optional: len(cfg.KafkaBrokers) == 0},
	}

	var limiter httpx.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimit, time.Minute, cfg.RateLimitScope)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb), Optional: cfg.RateLimitFail})
		logger.Info("rate limiting enabled (redis)", "per_minute", cfg.RateLimit, "redis_addr", cfg.RedisAddr)
	} else {
		limiter = httpx.NewMemoryLimiter(cfg.RateLimit, time.Minute)
		logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.RateLimit)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.Routes{
		Appointments:  handlers.NewAppointmentHandler(bookingSvc, logger),
		Professionals: handlers.NewProfessionalHandler(store.Professionals, bookingSvc, logger),
		Patients:      handlers.NewPatientHandler(store.Patients, logger),
		Notes:         handlers.NewNoteHandler(notesSvc, logger),
		Public:        httpx.RateLimit(limiter, logger, cfg.RateLimitFail),
	}.Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.DefaultCORSPolicy(cfg.CORSOrigins)),
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithPrincipal,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(cfg.BodyLimit),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "clinic")
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcx.NewServer(logger)
	grpcserver.Register(grpcSrv, bookingSvc)
	go func() {
		if err := grpcx.Serve(ctx, logger, grpcSrv, health, cfg.GRPCAddr); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	runtime.ServeHTTP(ctx, logger, srv, 10*time.Second)
}
