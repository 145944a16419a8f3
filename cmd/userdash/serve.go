package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/userdash/internal/app"
	"github.com/odyssey-erp/userdash/internal/datasets"
	"github.com/odyssey-erp/userdash/internal/observability"
	"github.com/odyssey-erp/userdash/internal/platform/cache"
	"github.com/odyssey-erp/userdash/internal/proxy"
	"github.com/odyssey-erp/userdash/internal/shared"
	"github.com/odyssey-erp/userdash/internal/users"
	"github.com/odyssey-erp/userdash/internal/view"
	"github.com/odyssey-erp/userdash/jobs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web dashboard and the /api/proxy endpoint",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, sessions and dataset cache degraded", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "userdash_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	metrics := observability.NewMetrics()

	proxyService := proxy.NewService(proxy.Config{
		BackendURL:   cfg.BackendURL,
		Logger:       logger,
		Metrics:      metrics,
		SearchBudget: cfg.SearchBudget,
	})
	proxyHandler := proxy.NewHandler(logger, proxyService)

	usersAPI := users.NewLocalClient(proxyService)
	userStore := users.NewStore(usersAPI, logger)
	searcher := users.NewSearcher(ctx, usersAPI, logger, cfg.SearchDebounce)
	defer searcher.Close()
	usersHandler := users.NewHandler(logger, userStore, searcher, templates, csrfManager)

	datasetService := datasets.NewService(datasets.Config{
		BackendURL: cfg.BackendURL,
		NamesURL:   cfg.NamesURL,
		Cache:      datasets.NewCache(redisClient, cfg.DatasetCacheTTL),
		Logger:     logger,
	})
	datasetsHandler := datasets.NewHandler(logger, datasetService, templates, csrfManager)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		return fmt.Errorf("init job client: %w", err)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	// Prime the dataset cache; the worker picks this up if it is running.
	if info, err := jobClient.EnqueueDatasetsWarm(ctx); err != nil {
		logger.Warn("enqueue datasets warmup", slog.Any("error", err))
	} else {
		logger.Info("enqueued datasets warmup", slog.String("id", info.ID))
	}

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		ProxyHandler:    proxyHandler,
		UsersHandler:    usersHandler,
		DatasetsHandler: datasetsHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", cfg.BackendURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}
