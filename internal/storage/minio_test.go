package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"alcyxob/analysis-portal/internal/config"
)

// newTestMinio skips NewMinioStorage's bucket check so signing can run
// without a server.
func newTestMinio(t *testing.T, endpoint string) *minioStorage {
	t.Helper()
	cfg := config.S3Config{
		Provider:   config.ProviderMinio,
		Endpoint:   "http://" + endpoint,
		Region:     "us-east-1",
		BucketName: "lab-files",
	}
	urls, err := NewObjectURLs(cfg)
	require.NoError(t, err)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Region: cfg.Region,
	})
	require.NoError(t, err)
	return &minioStorage{ObjectURLs: urls, log: zap.NewNop(), client: client, bucket: cfg.BucketName}
}

func TestMinioStorage_Presign(t *testing.T) {
	fs := newTestMinio(t, "127.0.0.1:9000")
	ctx := context.Background()

	raw, err := fs.GeneratePresignedUploadURL(ctx, "uploads/u1/1-a.pdf", "application/pdf", 0)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/lab-files/uploads/u1/1-a.pdf", u.Path)
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
	assert.Contains(t, u.Query().Get("X-Amz-SignedHeaders"), "content-type")

	raw, err = fs.GeneratePresignedDownloadURL(ctx, "uploads/u1/1-a.pdf", "report final.pdf", 10*time.Minute)
	require.NoError(t, err)
	u, err = url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
	assert.Contains(t, u.Query().Get("response-content-disposition"), "report_final.pdf")
}

func TestMinioStorage_StatObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/lab-files/uploads/u1/present.pdf":
			w.Header().Set("Content-Length", "2048")
			w.Header().Set("Content-Type", "application/pdf")
			w.Header().Set("ETag", `"abc123"`)
			w.Header().Set("Last-Modified", time.Date(2024, 6, 10, 6, 0, 0, 0, time.UTC).Format(http.TimeFormat))
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	fs := newTestMinio(t, srv.Listener.Addr().String())
	ctx := context.Background()

	info, err := fs.StatObject(ctx, "uploads/u1/present.pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), info.Size)
	assert.Equal(t, "abc123", info.ETag)

	_, err = fs.StatObject(ctx, "uploads/u1/absent.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
