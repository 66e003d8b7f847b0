package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alcyxob/analysis-portal/internal/api"
	"alcyxob/analysis-portal/internal/config"
	"alcyxob/analysis-portal/internal/repository/postgres"
)

const shutdownTimeout = 5 * time.Second

func cmdServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.close(context.Background())

	if err := a.seedAdmin(ctx); err != nil {
		log.Warn("admin seed skipped", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, log, a.services)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for an interrupt signal or a listener failure.
	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("listen failed", zap.Error(err))
			return Error.Wrap(err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		return Error.Wrap(err)
	}

	log.Info("server exiting")
	return nil
}

func cmdMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.Driver != config.DriverPostgres {
		log.Info("nothing to migrate", zap.String("driver", cfg.Database.Driver))
		return nil
	}
	db, err := postgres.Open(cmd.Context(), cfg.Database.DSN, 1, connMaxLifetime)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { _ = db.Close() }()

	if err := postgres.Migrate(cmd.Context(), db); err != nil {
		return Error.Wrap(err)
	}
	log.Info("migrations applied")
	return nil
}

func cmdSeedAdmin(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Admin.Password == "" {
		return Error.New("admin.password (ADMIN_PASSWORD) must be set")
	}
	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	if err := a.seedAdmin(cmd.Context()); err != nil {
		return Error.Wrap(err)
	}
	log.Info("admin seed complete", zap.String("email", cfg.Admin.Email))
	return nil
}
