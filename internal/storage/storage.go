package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// DefaultPresignedURLExpiry applies when a caller passes a non-positive expiry.
const DefaultPresignedURLExpiry = time.Hour

// ErrObjectNotFound is returned by StatObject when nothing is stored under the key.
var ErrObjectNotFound = errors.New("object not found in storage")

// ObjectInfo is the subset of object metadata used to verify an upload.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// FileStorage defines the interface for object storage operations.
type FileStorage interface {
	// GeneratePresignedUploadURL creates a temporary URL that allows a single PUT
	// of objectKey. The client must send the same Content-Type header.
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for objectKey. A non-empty filename is offered to the browser as the
	// attachment name.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, filename string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error

	// StatObject returns metadata of a stored object or ErrObjectNotFound.
	StatObject(ctx context.Context, objectKey string) (*ObjectInfo, error)

	// ObjectURL returns the fetchable location of objectKey.
	ObjectURL(objectKey string) string

	// KeyFromURL decodes a location produced by ObjectURL.
	KeyFromURL(rawURL string) (string, error)
}

// contentDisposition builds an RFC 6266 attachment header for filename.
func contentDisposition(filename string) string {
	return fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", SanitizeFilename(filename), url.PathEscape(filename))
}
