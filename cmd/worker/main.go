package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/userdash/internal/app"
	"github.com/odyssey-erp/userdash/internal/datasets"
	jobmetrics "github.com/odyssey-erp/userdash/internal/jobs"
	"github.com/odyssey-erp/userdash/internal/platform/cache"
	"github.com/odyssey-erp/userdash/jobs"
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

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	datasetService := datasets.NewService(datasets.Config{
		BackendURL: cfg.BackendURL,
		NamesURL:   cfg.NamesURL,
		Cache:      datasets.NewCache(redisClient, cfg.DatasetCacheTTL),
		Logger:     logger,
	})
	warmJob := jobs.NewDatasetsWarmJob(datasetService, logger, jobmetrics.NewMetrics(nil))

	warmTask, err := jobs.NewDatasetsWarmTask()
	if err != nil {
		logger.Error("build warm task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  jobs.NewTaskHandlers(warmJob),
		Cron: []jobs.CronRegistration{
			{Spec: "*/10 * * * *", Task: warmTask, Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
