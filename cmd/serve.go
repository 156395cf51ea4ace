package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matthew-heyner/family-finance/internal/auth"
	"github.com/matthew-heyner/family-finance/internal/budget"
	"github.com/matthew-heyner/family-finance/internal/database"
	"github.com/matthew-heyner/family-finance/internal/events"
	"github.com/matthew-heyner/family-finance/internal/log"
	"github.com/matthew-heyner/family-finance/internal/middleware"
	"github.com/matthew-heyner/family-finance/internal/router"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, logger, err := loadConfig(true)
	if err != nil {
		return err
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Error("close database", log.FieldError, err)
		}
	}()
	if err := database.Prepare(db); err != nil {
		return err
	}

	pub, err := events.Connect(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	if err != nil {
		// the API works without events; consumers just miss them
		logger.Warn("event publisher unavailable, continuing without events", log.FieldError, err)
		pub = events.NopPublisher{}
	}
	defer pub.Close()

	limiter := middleware.NewLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer limiter.Stop()

	svc := auth.NewService(db, auth.OptionsFromConfig(cfg), pub, logger)
	engine := router.SetupRouter(router.Deps{
		Config:     cfg,
		DB:         db,
		Auth:       svc,
		Aggregator: budget.NewAggregator(db, logger),
		Events:     pub,
		Logger:     logger,
		Limiter:    limiter,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", log.FieldError, err)
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}
