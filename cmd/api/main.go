package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/matchsync/internal/api"
	"github.com/timmy/matchsync/internal/api/handler"
	"github.com/timmy/matchsync/internal/app"
	"github.com/timmy/matchsync/internal/config"
	"github.com/timmy/matchsync/internal/logger"
)

func main() {
	appLogger := logger.NewFromEnv(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer a.Close()

	sqlDB, err := a.DB.DB()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to access database pool")
	}

	runs := handler.NewRunHandler(handler.CatalogAndEnrich{Enrich: a.Enrich, Catalog: a.Catalog}, a.Runs, appLogger)
	var payloads handler.PayloadReader
	if a.Archive != nil {
		payloads = a.Archive
	}
	router := api.SetupRouter(&api.Handlers{
		Health:  handler.NewHealthHandler(sqlDB),
		Runs:    runs,
		Catalog: handler.NewCatalogHandler(a.Coverage),
		Archive: handler.NewArchiveHandler(payloads),
	}, a.Registry, &cfg.Server, appLogger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Stopping background run...")
	runs.Stop()

	appLogger.Info("Server exited")
}
