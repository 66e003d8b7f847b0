package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"alcyxob/analysis-portal/internal/config"
)

func newTestS3(t *testing.T) FileStorage {
	t.Helper()
	fs, err := NewS3Storage(context.Background(), zap.NewNop(), config.S3Config{
		Provider:        config.ProviderAWS,
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		BucketName:      "lab-files",
	})
	require.NoError(t, err)
	return fs
}

// Presigning is a local signing operation and needs no running server.
func TestS3Storage_PresignUpload(t *testing.T) {
	fs := newTestS3(t)

	raw, err := fs.GeneratePresignedUploadURL(context.Background(), "uploads/u1/1-a.pdf", "application/pdf", time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/lab-files/uploads/u1/1-a.pdf", u.Path)
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
	assert.Contains(t, u.Query().Get("X-Amz-SignedHeaders"), "content-type")
}

func TestS3Storage_PresignDownloadWithFilename(t *testing.T) {
	fs := newTestS3(t)

	raw, err := fs.GeneratePresignedDownloadURL(context.Background(), "uploads/u1/1-a.pdf", "결과.pdf", 0)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
	assert.Contains(t, u.Query().Get("response-content-disposition"), "attachment;")
}

func TestS3Storage_ObjectURLRoundTrip(t *testing.T) {
	fs := newTestS3(t)

	u := fs.ObjectURL("uploads/u1/1-a.pdf")
	assert.Equal(t, "http://localhost:9000/lab-files/uploads/u1/1-a.pdf", u)
	key, err := fs.KeyFromURL(u)
	require.NoError(t, err)
	assert.Equal(t, "uploads/u1/1-a.pdf", key)
}
