package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/partline/partline/internal/app"
	"github.com/partline/partline/internal/catalog"
	"github.com/partline/partline/internal/issuance"
	"github.com/partline/partline/internal/labels"
	"github.com/partline/partline/internal/notify"
	"github.com/partline/partline/internal/observability"
	"github.com/partline/partline/internal/platform/cache"
	"github.com/partline/partline/internal/platform/db"
	"github.com/partline/partline/internal/receiving"
	"github.com/partline/partline/internal/requests"
	"github.com/partline/partline/internal/shared"
	"github.com/partline/partline/internal/status"
	"github.com/partline/partline/jobs"
	"github.com/partline/partline/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "api")

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisCacheDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	queue, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("connect queue", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	catalogService := catalog.NewService(catalog.NewRepository(pool), catalog.NewSearchCache(redisClient, cfg.PartSearchCacheTTL))

	labelsService := labels.NewService(labels.NewRepository(pool), queue)
	receivingService := receiving.NewService(receiving.NewRepository(pool), auditLogger, labelsService)

	dispatcher := notify.NewDispatcher(queue)
	requestsService := requests.NewService(logger, requests.NewRepository(pool), auditLogger, dispatcher, cfg.AppBaseURL)

	issuanceService := issuance.NewService(issuance.NewRepository(pool), auditLogger, metrics)
	statusService := status.NewService(status.NewRepository(pool))

	pdfClient := report.NewClient(cfg.GotenbergURL)
	notifyRepo := notify.NewRepository(pool)

	router := app.NewRouter(app.RouterParams{
		Config:           cfg,
		CatalogHandler:   catalog.NewHandler(logger, catalogService),
		ReceivingHandler: receiving.NewHandler(logger, receivingService),
		RequestsHandler:  requests.NewHandler(logger, requestsService),
		IssuanceHandler:  issuance.NewHandler(logger, issuanceService),
		StatusHandler:    status.NewHandler(logger, statusService),
		LabelsHandler:    labels.NewHandler(logger, labelsService),
		NotifyHandler:    notify.NewHandler(logger, notifyRepo, cfg.VAPIDPublicKey),
		ReportHandler:    report.NewHandler(pdfClient, logger),
		Pool:             pool,
		Metrics:          metrics,
		MiddlewareConfig: app.MiddlewareConfig{Logger: logger, Config: cfg, Metrics: metrics},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}
