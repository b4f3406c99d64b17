package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"task-tracker-api/internal/config"
	"task-tracker-api/internal/database"
	"task-tracker-api/internal/display"
	"task-tracker-api/internal/events"
	"task-tracker-api/internal/handlers"
	"task-tracker-api/internal/realtime"
	"task-tracker-api/internal/routes"
	"task-tracker-api/internal/store"
	"task-tracker-api/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Migrates the schema, then serves the task API until SIGINT or SIGTERM",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		return err
	}

	adapter, err := display.Load(cfg.DisplayTimezone)
	if err != nil {
		return err
	}
	taskStore := store.New(db, adapter)

	hub := realtime.NewHub()
	publishers := events.Multi{hub}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.ConnectNATS(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return err
		}
		defer natsPublisher.Close()
		publishers = append(publishers, natsPublisher)
		logger.Info("publishing task events to NATS", slog.String("subject", cfg.NATSSubject))
	}

	router := routes.SetupRoutes(routes.Dependencies{
		Tasks: handlers.NewTaskHandler(handlers.TaskHandlerConfig{
			Store:           taskStore,
			Publisher:       publishers,
			Validator:       validation.New(),
			Logger:          logger,
			DefaultPageSize: cfg.DefaultPageSize,
			MaxPageSize:     cfg.MaxPageSize,
		}),
		Events:         handlers.NewEventsHandler(hub, logger),
		Health:         taskStore,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
			slog.String("db_driver", cfg.DBDriver),
			slog.String("display_timezone", cfg.DisplayTimezone),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("HTTP server shut down gracefully")
	return nil
}
