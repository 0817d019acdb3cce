package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"habit-ai-billing/internal/config"
	"habit-ai-billing/internal/infra/api"
	"habit-ai-billing/internal/infra/api/apiv1"
	pg "habit-ai-billing/internal/infra/db/postgres"
	"habit-ai-billing/internal/infra/logging"
	"habit-ai-billing/internal/infra/metrics"
	pay "habit-ai-billing/internal/infra/payment"
	red "habit-ai-billing/internal/infra/redis"
	"habit-ai-billing/internal/infra/sched"
	"habit-ai-billing/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	paymentRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	profileRepo := pg.NewProfileRepoCacheDecorator(pg.NewProfileRepo(pool), redisClient, cfg.Redis.TTL)

	// ---- Gateway ----
	gateway := pay.NewPortOneGateway(pay.Config{
		V1BaseURL: cfg.Gateway.V1.BaseURL,
		V1Key:     cfg.Gateway.V1.Key,
		V1Secret:  cfg.Gateway.V1.Secret,
		V2BaseURL: cfg.Gateway.V2.BaseURL,
		V2Secret:  cfg.Gateway.V2.Secret,
	}, logger)

	// ---- Use cases ----
	ledgerUC := usecase.NewLedgerReconciler(paymentRepo, subRepo, profileRepo, logger)
	verifyUC := usecase.NewVerifyUseCase(gateway, logger)
	cancelUC := usecase.NewCancelUseCase(gateway, ledgerUC, subRepo, logger)

	// ---- HTTP ----
	metrics.MustRegister()
	auth := api.NewAuthManager(cfg.Auth.JWTSecret, time.Hour)

	r := chi.NewRouter()
	srv := apiv1.NewServer(verifyUC, cancelUC, auth, rateLimiter, apiv1.RateLimit{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
	}, logger)
	srv.Register(r)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	handler := api.Chain(r,
		api.Recover(logger),
		api.TraceID(logger),
		api.RequestLog(logger),
		api.CORS(),
		api.Timeout(cfg.Server.RequestTimeout),
	)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler,
	}

	// ---- Reconciliation sweep ----
	reconciler := sched.NewLedgerReconciler(
		ledgerUC, paymentRepo,
		cfg.Reconciler.Interval, cfg.Reconciler.Lookback, cfg.Reconciler.BatchSize,
		logger,
	)
	go reconciler.Start(ctx)

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("billing API listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
}
