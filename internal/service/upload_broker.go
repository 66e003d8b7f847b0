package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"alcyxob/analysis-portal/internal/domain"
	"alcyxob/analysis-portal/internal/storage"
)

// UploadCredential lets a client PUT one object directly to the store.
type UploadCredential struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
	URL       string `json:"url"` // Where the object can be fetched once uploaded
}

// UploadBroker issues presigned upload URLs. It writes nothing to the database.
type UploadBroker struct {
	log     *zap.Logger
	store   storage.FileStorage
	keys    storage.KeyGenerator
	expires time.Duration
}

// NewUploadBroker creates a broker whose credentials expire after expires.
func NewUploadBroker(log *zap.Logger, store storage.FileStorage, keys storage.KeyGenerator, expires time.Duration) *UploadBroker {
	if expires <= 0 {
		expires = storage.DefaultPresignedURLExpiry
	}
	return &UploadBroker{log: log, store: store, keys: keys, expires: expires}
}

// RequestUploadCredential mints a key under the caller's prefix and presigns
// a PUT for it. contentType is embedded in the signature as given.
func (b *UploadBroker) RequestUploadCredential(ctx context.Context, caller domain.Caller, filename, contentType string) (*UploadCredential, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	var v ValidationError
	if strings.TrimSpace(filename) == "" {
		v.add("filename", "is required")
	}
	if strings.TrimSpace(contentType) == "" {
		v.add("contentType", "is required")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	key := b.keys.Generate(caller.UserID, filename)
	uploadURL, err := b.store.GeneratePresignedUploadURL(ctx, key, contentType, b.expires)
	if err != nil {
		return nil, upstream(b.log.With(zap.String("key", key)), "presign upload", err)
	}

	b.log.Debug("issued upload credential", zap.String("user_id", caller.UserID), zap.String("key", key))
	return &UploadCredential{
		UploadURL: uploadURL,
		Key:       key,
		URL:       b.store.ObjectURL(key),
	}, nil
}
