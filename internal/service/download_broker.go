package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"alcyxob/analysis-portal/internal/domain"
	"alcyxob/analysis-portal/internal/repository"
	"alcyxob/analysis-portal/internal/storage"
)

// DownloadCredential is a presigned GET URL.
type DownloadCredential struct {
	DownloadURL string `json:"downloadUrl"`
}

// DownloadReference names an object by store URL or key. The key wins when
// both are set.
type DownloadReference struct {
	StoreURL   string
	StorageKey string
	Filename   string // Optional attachment name
}

// DownloadBroker issues presigned download URLs.
type DownloadBroker struct {
	log      *zap.Logger
	store    storage.FileStorage
	requests repository.RequestRepository
	files    repository.FileRepository
	expires  time.Duration
	// allowUnscoped skips the ownership check for bare URL or key references.
	allowUnscoped bool
}

func NewDownloadBroker(
	log *zap.Logger,
	store storage.FileStorage,
	requests repository.RequestRepository,
	files repository.FileRepository,
	expires time.Duration,
	allowUnscoped bool,
) *DownloadBroker {
	if expires <= 0 {
		expires = storage.DefaultPresignedURLExpiry
	}
	return &DownloadBroker{
		log:           log,
		store:         store,
		requests:      requests,
		files:         files,
		expires:       expires,
		allowUnscoped: allowUnscoped,
	}
}

// DownloadByFileID authorizes through the file's parent request.
func (b *DownloadBroker) DownloadByFileID(ctx context.Context, caller domain.Caller, fileID string) (*DownloadCredential, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	file, err := b.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, repoErr(b.log, "load file", "file", err)
	}
	if err := b.authorizeRequest(ctx, caller, file.RequestID); err != nil {
		return nil, err
	}
	return b.presign(ctx, file.StorageKey, "")
}

// DownloadByReference decodes a bare store URL or key. With unscoped keys
// allowed, any authenticated caller gets a credential for any decodable key.
// Otherwise the key must belong to a registered file or a request result the
// caller may read.
func (b *DownloadBroker) DownloadByReference(ctx context.Context, caller domain.Caller, ref DownloadReference) (*DownloadCredential, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	key, err := b.resolveKey(ref)
	if err != nil {
		return nil, err
	}

	if !b.allowUnscoped {
		if err := b.authorizeKey(ctx, caller, key); err != nil {
			return nil, err
		}
	}
	return b.presign(ctx, key, ref.Filename)
}

func (b *DownloadBroker) resolveKey(ref DownloadReference) (string, error) {
	if key := strings.TrimSpace(ref.StorageKey); key != "" {
		return key, nil
	}
	if strings.TrimSpace(ref.StoreURL) == "" {
		return "", invalidField("s3Url", "s3Url or s3Key is required")
	}
	key, err := b.store.KeyFromURL(ref.StoreURL)
	if err != nil {
		return "", invalidField("s3Url", "invalid store URL format")
	}
	return key, nil
}

// authorizeKey finds who owns key and applies the id-path rule.
func (b *DownloadBroker) authorizeKey(ctx context.Context, caller domain.Caller, key string) error {
	file, err := b.files.GetByStorageKey(ctx, key)
	if err == nil {
		return b.authorizeRequest(ctx, caller, file.RequestID)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return upstream(b.log, "load file by key", err)
	}

	req, err := b.requests.FindByResultFileURL(ctx, b.store.ObjectURL(key))
	if err != nil {
		return repoErr(b.log, "load request by result", "file", err)
	}
	if !caller.CanAccess(req.UserID) {
		return ErrForbidden.New("file belongs to another user")
	}
	return nil
}

func (b *DownloadBroker) authorizeRequest(ctx context.Context, caller domain.Caller, requestID string) error {
	req, err := b.requests.GetByID(ctx, requestID)
	if err != nil {
		return repoErr(b.log, "load request", "request", err)
	}
	if !caller.CanAccess(req.UserID) {
		return ErrForbidden.New("file belongs to another user")
	}
	return nil
}

func (b *DownloadBroker) presign(ctx context.Context, key, filename string) (*DownloadCredential, error) {
	u, err := b.store.GeneratePresignedDownloadURL(ctx, key, filename, b.expires)
	if err != nil {
		return nil, upstream(b.log.With(zap.String("key", key)), "presign download", err)
	}
	return &DownloadCredential{DownloadURL: u}, nil
}
