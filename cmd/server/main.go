package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/outreachhq/sendpipe/internal/api"
	"github.com/outreachhq/sendpipe/internal/config"
	"github.com/outreachhq/sendpipe/internal/db"
	"github.com/outreachhq/sendpipe/internal/metrics"
	"github.com/outreachhq/sendpipe/internal/pacing"
	"github.com/outreachhq/sendpipe/internal/provider"
	"github.com/outreachhq/sendpipe/internal/ratelimit"
	"github.com/outreachhq/sendpipe/internal/repository"
	"github.com/outreachhq/sendpipe/internal/resolver"
	"github.com/outreachhq/sendpipe/internal/service"
	"github.com/outreachhq/sendpipe/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	queueRepo := repository.NewPgSendQueueRepository(pool)
	prospectRepo := repository.NewPgProspectRepository(pool)
	campaignRepo := repository.NewPgCampaignRepository(pool)
	accountRepo := repository.NewPgAccountRepository(pool)

	client := provider.NewUnipileClient(
		cfg.ProviderDSN, cfg.ProviderAPIKey,
		cfg.ProviderTimeout, cfg.ProviderRatePerSec,
	)
	res := resolver.New(client, logger)
	limiter := ratelimit.NewDailyLimiter(queueRepo)
	delayer := pacing.New(cfg.PacingMin, cfg.PacingMax)

	onSent, onFailed := m.WorkerHooks()
	w := worker.New(
		queueRepo, prospectRepo, accountRepo,
		res, client, limiter, delayer,
		logger, onSent, onFailed,
	)

	populator := service.NewPopulator(
		campaignRepo, prospectRepo, accountRepo, queueRepo,
		res, limiter, cfg.PollBatchSize, logger,
	)
	recovery := service.NewRecovery(prospectRepo, queueRepo, logger)

	// ---- background monitors ----
	// Context for background goroutines; cancelled on shutdown signal.
	monitorCtx, cancelMonitors := context.WithCancel(ctx)
	defer cancelMonitors()

	depthMonitor := worker.NewDepthMonitor(queueRepo, cfg.DepthInterval, m.SetQueueDepths, logger)
	go depthMonitor.Run(monitorCtx)

	// ---- HTTP server ----
	router := api.NewRouter(api.Deps{
		Worker:     w,
		Populator:  populator,
		Recovery:   recovery,
		Queue:      queueRepo,
		PollSecret: cfg.PollSecret,
		Registry:   reg,
		Logger:     logger,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// Stop accepting new deliveries; in-flight tasks get the shutdown
	// window to finish their pacing delay and send.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	cancelMonitors()

	logger.Info("server stopped cleanly")
}
