package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/MrSlyte/rinhabackend3/internal/application"
	"github.com/MrSlyte/rinhabackend3/internal/config"
	"github.com/MrSlyte/rinhabackend3/internal/domain"
	"github.com/MrSlyte/rinhabackend3/internal/health"
	"github.com/MrSlyte/rinhabackend3/internal/infrastructure/persistence/postgres"
	"github.com/MrSlyte/rinhabackend3/internal/infrastructure/persistence/redisdb"
	"github.com/MrSlyte/rinhabackend3/internal/infrastructure/processor"
	"github.com/MrSlyte/rinhabackend3/internal/interfaces/rest/handlers"
	"github.com/MrSlyte/rinhabackend3/internal/interfaces/rest/middleware"
	"github.com/MrSlyte/rinhabackend3/internal/worker"
)

const serverName = "rinha"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting gateway service",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()

	redisClient, err := redisdb.Connect(ctx, &cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	ledger := redisdb.NewLedger(redisClient, logger)
	claims := redisdb.NewClaimRegistry(redisClient)

	httpClient := processor.NewHTTPClient(cfg.Processors)
	defaultClient := processor.NewClient(domain.ProcessorDefault, cfg.Processors.DefaultURL, httpClient)
	fallbackClient := processor.NewClient(domain.ProcessorFallback, cfg.Processors.FallbackURL, httpClient)

	monitor := health.NewMonitor(defaultClient, fallbackClient, cfg.Health, logger)

	// The audit trail is optional; without a DSN the workers write only to
	// the Redis ledger.
	var audit application.AuditSink
	var auditTrail *postgres.AuditTrail
	if cfg.Audit.PostgresDSN != "" {
		pool, err := postgres.Connect(ctx, cfg.Audit.PostgresDSN, logger)
		if err != nil {
			logger.Error("failed to connect to audit database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		auditTrail = postgres.NewAuditTrail(pool, cfg.Audit, logger)
		audit = auditTrail
	}

	selector := worker.NewSelector(defaultClient, fallbackClient, monitor, ledger, audit, cfg.Retry, logger)
	pool := worker.NewPool(cfg.Worker, claims, selector, logger)

	service := application.NewPaymentService(pool, ledger, claims, logger)

	h := handlers.NewHandlers(service, logger)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	handler := http.Handler(mux)
	handler = middleware.MaxBytes(cfg.Server.MaxBodyBytes)(handler)
	handler = middleware.Timeout(cfg.Server.RequestTimeout)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.ServerHeader(serverName)(handler)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	backgroundCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	g, gCtx := errgroup.WithContext(backgroundCtx)
	g.Go(func() error { return monitor.Run(gCtx) })
	if auditTrail != nil {
		g.Go(func() error { return auditTrail.Run(gCtx) })
	}

	// The pool runs on its own context so cancelling the background group
	// never aborts an in-flight drain.
	pool.Start(context.Background())

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.DrainTimeout)
	defer cancel()

	// Stop accepting new payments, let the workers drain what is already
	// queued, then stop the health monitor and flush the audit trail.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Error("queue drain aborted", "error", err)
	}

	cancelBackground()
	if err := g.Wait(); err != nil {
		logger.Error("background task error", "error", err)
	}

	logger.Info("server exited")
}
