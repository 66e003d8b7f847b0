package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"alcyxob/analysis-portal/internal/config"
)

// ErrInvalidObjectURL is returned when a URL does not point into the configured bucket.
var ErrInvalidObjectURL = errors.New("url does not match the configured bucket")

// ObjectURLs builds and decodes the public, fetchable location of stored objects.
type ObjectURLs struct {
	base *url.URL
}

// NewObjectURLs derives the public base URL from the S3 settings:
//   - public_base_url when set
//   - {endpoint}/{bucket} for S3-compatible endpoints (path-style)
//   - https://{bucket}.s3.{region}.amazonaws.com otherwise
func NewObjectURLs(cfg config.S3Config) (ObjectURLs, error) {
	var raw string
	switch {
	case cfg.PublicBaseURL != "":
		raw = cfg.PublicBaseURL
	case cfg.Endpoint != "":
		raw = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.BucketName
	default:
		if cfg.BucketName == "" || cfg.Region == "" {
			return ObjectURLs{}, errors.New("s3 bucket and region are required to build object URLs")
		}
		raw = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.BucketName, cfg.Region)
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return ObjectURLs{}, fmt.Errorf("parse object base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return ObjectURLs{}, fmt.Errorf("object base url %q must be absolute", raw)
	}
	return ObjectURLs{base: u}, nil
}

// ObjectURL returns the location of key.
func (o ObjectURLs) ObjectURL(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return o.base.String() + "/" + strings.Join(segments, "/")
}

// KeyFromURL reverses ObjectURL. Query strings and fragments are ignored.
func (o ObjectURLs) KeyFromURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidObjectURL
	}
	if !strings.EqualFold(u.Scheme, o.base.Scheme) || !strings.EqualFold(u.Host, o.base.Host) {
		return "", ErrInvalidObjectURL
	}
	prefix := o.base.EscapedPath() + "/"
	escaped := u.EscapedPath()
	if !strings.HasPrefix(escaped, prefix) {
		return "", ErrInvalidObjectURL
	}
	key, err := url.PathUnescape(strings.TrimPrefix(escaped, prefix))
	if err != nil || key == "" {
		return "", ErrInvalidObjectURL
	}
	return key, nil
}
