package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"alcyxob/analysis-portal/internal/config"
)

// minioStorage implements FileStorage for MinIO and other S3-compatible servers.
type minioStorage struct {
	ObjectURLs
	log    *zap.Logger
	client *minio.Client
	bucket string
}

// NewMinioStorage connects to an S3-compatible endpoint and ensures the bucket exists.
func NewMinioStorage(ctx context.Context, log *zap.Logger, cfg config.S3Config) (FileStorage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio provider requires s3.endpoint")
	}
	urls, err := NewObjectURLs(cfg)
	if err != nil {
		return nil, err
	}

	// minio.New wants host[:port] without a scheme.
	host := cfg.Endpoint
	secure := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		host = u.Host
		secure = u.Scheme == "https"
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		log.Info("created bucket", zap.String("bucket", cfg.BucketName))
	}

	log.Info("MinIO storage initialized", zap.String("endpoint", host), zap.String("bucket", cfg.BucketName))
	return &minioStorage{ObjectURLs: urls, log: log, client: client, bucket: cfg.BucketName}, nil
}

func (m *minioStorage) GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = DefaultPresignedURLExpiry
	}
	headers := http.Header{}
	headers.Set("Content-Type", contentType)
	u, err := m.client.PresignHeader(ctx, http.MethodPut, m.bucket, objectKey, expires, nil, headers)
	if err != nil {
		m.log.Error("presign PUT failed", zap.String("key", objectKey), zap.Error(err))
		return "", fmt.Errorf("presign put: %w", err)
	}
	return u.String(), nil
}

func (m *minioStorage) GeneratePresignedDownloadURL(ctx context.Context, objectKey string, filename string, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = DefaultPresignedURLExpiry
	}
	params := url.Values{}
	if filename != "" {
		params.Set("response-content-disposition", contentDisposition(filename))
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, objectKey, expires, params)
	if err != nil {
		m.log.Error("presign GET failed", zap.String("key", objectKey), zap.Error(err))
		return "", fmt.Errorf("presign get: %w", err)
	}
	return u.String(), nil
}

func (m *minioStorage) DeleteObject(ctx context.Context, objectKey string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (m *minioStorage) StatObject(ctx context.Context, objectKey string) (*ObjectInfo, error) {
	info, err := m.client.StatObject(ctx, m.bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "NoSuchKey" || code == "NotFound" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return &ObjectInfo{
		Key:          objectKey,
		Size:         info.Size,
		ContentType:  info.ContentType,
		ETag:         strings.Trim(info.ETag, `"`),
		LastModified: info.LastModified,
	}, nil
}
