package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"alcyxob/analysis-portal/internal/config"
)

// New builds the FileStorage selected by cfg.Provider.
func New(ctx context.Context, log *zap.Logger, cfg config.S3Config) (FileStorage, error) {
	switch cfg.Provider {
	case config.ProviderAWS, "":
		return NewS3Storage(ctx, log, cfg)
	case config.ProviderMinio:
		return NewMinioStorage(ctx, log, cfg)
	default:
		return nil, fmt.Errorf("unknown s3 provider %q", cfg.Provider)
	}
}
