package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/analysis-portal/internal/config"
)

func TestObjectURLs_AWS(t *testing.T) {
	urls, err := NewObjectURLs(config.S3Config{BucketName: "lab-files", Region: "ap-northeast-2"})
	require.NoError(t, err)

	key := "uploads/u1/1700000000000-report_final.pdf"
	u := urls.ObjectURL(key)
	assert.Equal(t, "https://lab-files.s3.ap-northeast-2.amazonaws.com/"+key, u)

	got, err := urls.KeyFromURL(u)
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestObjectURLs_PathStyleEndpoint(t *testing.T) {
	urls, err := NewObjectURLs(config.S3Config{BucketName: "files", Endpoint: "http://localhost:9000/"})
	require.NoError(t, err)

	u := urls.ObjectURL("uploads/u 1/a.txt")
	assert.Equal(t, "http://localhost:9000/files/uploads/u%201/a.txt", u)

	got, err := urls.KeyFromURL(u)
	require.NoError(t, err)
	assert.Equal(t, "uploads/u 1/a.txt", got)
}

func TestObjectURLs_KeyFromURLRejectsForeignLocations(t *testing.T) {
	urls, err := NewObjectURLs(config.S3Config{BucketName: "lab-files", Region: "ap-northeast-2"})
	require.NoError(t, err)

	for _, raw := range []string{
		"",
		"not a url",
		"http://lab-files.s3.ap-northeast-2.amazonaws.com/uploads/a",
		"https://other.s3.ap-northeast-2.amazonaws.com/uploads/a",
		"https://lab-files.s3.us-east-1.amazonaws.com/uploads/a",
		"https://lab-files.s3.ap-northeast-2.amazonaws.com/",
	} {
		_, err := urls.KeyFromURL(raw)
		assert.ErrorIs(t, err, ErrInvalidObjectURL, raw)
	}
}

func TestObjectURLs_IgnoresQuery(t *testing.T) {
	urls, err := NewObjectURLs(config.S3Config{PublicBaseURL: "https://cdn.example.com/lab"})
	require.NoError(t, err)

	got, err := urls.KeyFromURL("https://cdn.example.com/lab/uploads/u1/x.pdf?versionId=3")
	require.NoError(t, err)
	assert.Equal(t, "uploads/u1/x.pdf", got)
}

func TestNewObjectURLs_RequiresBucketAndRegion(t *testing.T) {
	_, err := NewObjectURLs(config.S3Config{})
	assert.Error(t, err)
}
