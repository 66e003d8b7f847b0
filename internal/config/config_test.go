package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, ProviderAWS, cfg.S3.Provider)
	assert.Equal(t, time.Hour, cfg.S3.UploadExpiry)
	assert.Equal(t, time.Hour, cfg.S3.DownloadExpiry)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.True(t, cfg.Download.AllowUnscopedKeys)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  address: ":9090"
database:
  driver: memory
s3:
  bucket_name: from-file
  region: ap-northeast-2
  upload_expiry: 30m
download:
  allow_unscoped_keys: false
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("S3_BUCKET_NAME", "from-env")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(viper.New(), dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, "from-env", cfg.S3.BucketName)
	assert.Equal(t, "ap-northeast-2", cfg.S3.Region)
	assert.Equal(t, 30*time.Minute, cfg.S3.UploadExpiry)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.False(t, cfg.Download.AllowUnscopedKeys)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	_, err := Load(viper.New(), t.TempDir())
	assert.ErrorContains(t, err, "unknown database driver")
}
