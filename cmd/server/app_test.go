package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"alcyxob/analysis-portal/internal/config"
	"alcyxob/analysis-portal/internal/session"
)

func TestOpenRepositoriesMemory(t *testing.T) {
	repos, err := openRepositories(context.Background(), config.DatabaseConfig{Driver: config.DriverMemory}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, repos.Users)
	assert.NotNil(t, repos.Requests)
	assert.NotNil(t, repos.Files)
	assert.NoError(t, repos.Close(context.Background()))
}

func TestOpenRepositoriesUnknownDriver(t *testing.T) {
	_, err := openRepositories(context.Background(), config.DatabaseConfig{Driver: "sqlite"}, zap.NewNop())
	require.Error(t, err)
	assert.True(t, Error.Has(err))
}

func TestNewRevoker(t *testing.T) {
	ctx := context.Background()

	revoker, closeFn, err := newRevoker(ctx, config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &session.MemoryRevoker{}, revoker)
	require.NoError(t, closeFn(ctx))

	mr := miniredis.RunT(t)
	cfg := config.Config{
		Redis: config.RedisConfig{Address: mr.Addr()},
		JWT:   config.JWTConfig{Expiration: time.Hour},
	}
	revoker, closeFn, err = newRevoker(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &session.RedisRevoker{}, revoker)

	require.NoError(t, revoker.Revoke(ctx, "jti-1", time.Minute))
	revoked, err := revoker.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	require.NoError(t, closeFn(ctx))

	mr.Close()
	_, _, err = newRevoker(ctx, cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestLoadConfigFollowsBoundFlags(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
database:
  driver: memory
log:
  level: debug
  format: console
`), 0o600))

	flags := rootCmd.PersistentFlags()
	require.NoError(t, flags.Set("config-dir", dir))
	require.NoError(t, flags.Set("address", "127.0.0.1:9090"))

	cfg, log, err := loadConfig()
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Equal(t, config.DriverMemory, cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Address)
}
