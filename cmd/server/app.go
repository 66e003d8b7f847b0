package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"alcyxob/analysis-portal/internal/api"
	"alcyxob/analysis-portal/internal/config"
	"alcyxob/analysis-portal/internal/logging"
	"alcyxob/analysis-portal/internal/repository"
	"alcyxob/analysis-portal/internal/repository/memory"
	"alcyxob/analysis-portal/internal/repository/mongo"
	"alcyxob/analysis-portal/internal/repository/postgres"
	"alcyxob/analysis-portal/internal/service"
	"alcyxob/analysis-portal/internal/session"
	"alcyxob/analysis-portal/internal/storage"
)

const (
	maxOpenConns    = 25
	connMaxLifetime = 30 * time.Minute
)

// Error is the class for startup failures.
var Error = errs.Class("analysis-portal")

// app holds everything the commands share.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	repos    repository.Repositories
	services api.Services
	closers  []func(context.Context) error
}

func loadConfig() (config.Config, *zap.Logger, error) {
	dir := viper.GetString("config_dir")
	if dir == "" {
		dir = confDir
	}
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return cfg, nil, Error.Wrap(err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return cfg, nil, Error.Wrap(err)
	}
	return cfg, log, nil
}

// openRepositories connects the configured backend. Postgres is migrated
// before use.
func openRepositories(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (repository.Repositories, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.DSN, maxOpenConns, connMaxLifetime)
		if err != nil {
			return repository.Repositories{}, Error.New("connect postgres: %v", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return repository.Repositories{}, Error.New("migrate postgres: %v", err)
		}
		log.Info("database connection established", zap.String("driver", cfg.Driver))
		return postgres.New(db), nil

	case config.DriverMongo:
		client, err := mongo.ConnectDB(ctx, cfg.URI)
		if err != nil {
			return repository.Repositories{}, Error.New("connect mongo: %v", err)
		}
		db := client.Database(cfg.Name)
		indexCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		mongo.EnsureIndexes(indexCtx, log, db)
		log.Info("database connection established", zap.String("driver", cfg.Driver), zap.String("database", cfg.Name))
		return mongo.New(client, db), nil

	case config.DriverMemory:
		log.Warn("using in-memory repositories, data is lost on exit")
		return memory.New().Repositories(), nil
	}
	return repository.Repositories{}, Error.New("unknown database driver %q", cfg.Driver)
}

// newRevoker shares revocations through Redis when an address is set.
func newRevoker(ctx context.Context, cfg config.Config, log *zap.Logger) (session.Revoker, func(context.Context) error, error) {
	if cfg.Redis.Address == "" {
		log.Info("token revocation kept in process")
		return session.NewMemoryRevoker(), func(context.Context) error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, Error.New("connect redis: %v", err)
	}
	log.Info("token revocation backed by redis", zap.String("address", cfg.Redis.Address))
	return session.NewRedisRevoker(client, cfg.JWT.Expiration), func(context.Context) error { return client.Close() }, nil
}

// newApp connects every backend and builds the services.
func newApp(ctx context.Context, cfg config.Config, log *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	a.repos, err = openRepositories(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.repos.Close)

	revoker, closeRevoker, err := newRevoker(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeRevoker)

	store, err := storage.New(ctx, log, cfg.S3)
	if err != nil {
		return nil, Error.New("init object store: %v", err)
	}

	auth, err := service.NewAuthService(log, a.repos.Users, revoker, cfg.JWT.Secret, cfg.JWT.Expiration)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	requests := service.NewRequestService(log, a.repos.Users, a.repos.Requests, a.repos.Files, store)
	a.services = api.Services{
		Auth:      auth,
		Uploads:   service.NewUploadBroker(log, store, storage.KeyGenerator{}, cfg.S3.UploadExpiry),
		Downloads: service.NewDownloadBroker(log, store, a.repos.Requests, a.repos.Files, cfg.S3.DownloadExpiry, cfg.Download.AllowUnscopedKeys),
		Requests:  requests,
		Users:     service.NewUserService(log, a.repos.Users, requests, auth),
	}
	return a, nil
}

func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Error("shutdown", zap.Error(err))
		}
	}
	a.closers = nil
}

// seedAdmin creates the configured reviewer when a password is set.
func (a *app) seedAdmin(ctx context.Context) error {
	admin := a.cfg.Admin
	if admin.Password == "" {
		return nil
	}
	user, created, err := a.services.Users.SeedAdmin(ctx, admin.Email, admin.Password, admin.Name)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		a.log.Info("reviewer account created", zap.String("email", user.Email))
	}
	return nil
}
