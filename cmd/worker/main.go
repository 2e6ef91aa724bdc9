package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/partline/partline/internal/app"
	"github.com/partline/partline/internal/labels"
	"github.com/partline/partline/internal/notify"
	"github.com/partline/partline/internal/observability"
	"github.com/partline/partline/internal/platform/db"
	"github.com/partline/partline/jobs"
	"github.com/partline/partline/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "worker")

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	queue, err := jobs.NewClient(redisOpts)
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

	labelsRepo := labels.NewRepository(pool)
	pdfClient := report.NewClient(cfg.GotenbergURL)
	renderer, err := labels.NewRenderer(pdfClient)
	if err != nil {
		logger.Error("init label renderer", slog.Any("error", err))
		os.Exit(1)
	}
	notifyRepo := notify.NewRepository(pool)
	dispatcher := notify.NewDispatcher(queue)
	labelJob := labels.NewJob(labels.JobConfig{
		Repo:       labelsRepo,
		Builder:    labels.NewBuilder(labelsRepo),
		Renderer:   renderer,
		Notifier:   dispatcher,
		Metrics:    metrics,
		StorageDir: cfg.LabelStorageDir,
		BaseURL:    cfg.AppBaseURL,
		Logger:     logger,
	})

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskTypeLabelGenerate, Handler: labelJob.Handle},
	}
	if cfg.PushEnabled() {
		sender := notify.NewSender(logger, notifyRepo, notify.VAPIDConfig{
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			Subject:    cfg.VAPIDSubject,
		}, metrics)
		handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskTypePushSend, Handler: sender.Handle})
	} else {
		logger.Warn("vapid keys missing, push delivery disabled")
		handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskTypePushSend, Handler: notify.DisabledHandler(logger)})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers:  handlers,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)
	mux := chi.NewRouter()
	jobsHandler.MountRoutes(mux)
	healthServer := &http.Server{Addr: cfg.WorkerAddr, Handler: mux}
	go func() {
		logger.Info("starting worker health server", slog.String("addr", cfg.WorkerAddr))
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker health server", slog.Any("error", err))
		}
	}()

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("worker health shutdown", slog.Any("error", err))
	}
}
