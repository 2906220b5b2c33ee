// Package main is the entry point for the review-sms HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/popeskul/review-sms/internal/auth"
	"github.com/popeskul/review-sms/internal/billing"
	"github.com/popeskul/review-sms/internal/carrier"
	"github.com/popeskul/review-sms/internal/config"
	"github.com/popeskul/review-sms/internal/handler"
	"github.com/popeskul/review-sms/internal/metrics"
	"github.com/popeskul/review-sms/internal/middleware"
	"github.com/popeskul/review-sms/internal/repository"
	"github.com/popeskul/review-sms/internal/service"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = logger.Sync() }()

	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.MustRegister(registry)

	repo := repository.NewRepository(db)
	gateway := carrier.NewTwilioGateway(&cfg.Carrier, logger)
	billingService := billing.NewService(repo.Account(), cfg.Billing.WebhookSecret, logger)

	svc := service.NewService(cfg, service.Deps{
		Repo:    repo,
		Redis:   redisClient,
		Gateway: gateway,
		Breaker: gateway.Breaker(),
		Access:  billingService,
	}, logger)

	opts := []handler.Option{handler.WithBilling(billingService)}
	if cfg.Webhooks.VerifySignature {
		opts = append(opts, handler.WithCarrierVerifier(
			carrier.NewSignatureVerifier(cfg.Carrier.AuthToken, cfg.Webhooks.PublicBaseURL),
		))
	} else {
		logger.Warn("Carrier webhook signature verification is disabled")
	}
	h := handler.NewHandler(svc, logger, opts...)

	var cors *middleware.CORSConfig
	if cfg.Middleware.EnableCORS {
		cors = middleware.DefaultCORSConfig(cfg.Middleware.AllowedOrigins...)
	}
	middlewareConfig := middleware.NewConfig(
		logger,
		cors,
		rate.Limit(cfg.Middleware.RateLimit),
		cfg.Middleware.RateLimitBurst,
		time.Duration(cfg.Middleware.RequestTimeout)*time.Second,
	)
	defer middlewareConfig.RateLimiter.Stop()

	if cfg.Scheduler.Secret == "" {
		logger.Warn("scheduler.secret is empty; /internal endpoints will reject every request")
	}

	router := setupRouter(routes{
		handler:  h,
		chain:    middleware.Chain(middlewareConfig),
		auth:     middleware.Auth(auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience), logger),
		internal: middleware.SharedSecret(middleware.CronSecretHeader, cfg.Scheduler.Secret),
		metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.Scheduler.Enabled {
		if err := svc.Scheduler.Start(); err != nil {
			logger.Error("Failed to start scheduler on startup", zap.Error(err))
		} else {
			logger.Info("Scheduler started", zap.Duration("interval", cfg.Scheduler.Interval()))
		}
	}

	go func() {
		logger.Info("Starting server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if svc.Scheduler.IsRunning() {
		if err := svc.Scheduler.Stop(); err != nil {
			logger.Error("Failed to stop scheduler", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = lvl
	return cfg.Build()
}
