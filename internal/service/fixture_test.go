package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"alcyxob/analysis-portal/internal/config"
	"alcyxob/analysis-portal/internal/domain"
	"alcyxob/analysis-portal/internal/repository"
	"alcyxob/analysis-portal/internal/repository/memory"
	"alcyxob/analysis-portal/internal/session"
	"alcyxob/analysis-portal/internal/storage"
)

// fakeStorage signs nothing and keeps object sizes in a map.
type fakeStorage struct {
	storage.ObjectURLs

	mu         sync.Mutex
	objects    map[string]int64
	deleted    []string
	failDelete map[string]bool
	presignErr error
	statErr    error
}

func newFakeStorage(t *testing.T) *fakeStorage {
	t.Helper()
	urls, err := storage.NewObjectURLs(config.S3Config{BucketName: "lab-files", Region: "us-east-1"})
	require.NoError(t, err)
	return &fakeStorage{
		ObjectURLs: urls,
		objects:    map[string]int64{},
		failDelete: map[string]bool{},
	}
}

func (f *fakeStorage) GeneratePresignedUploadURL(_ context.Context, key, contentType string, expires time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return fmt.Sprintf("%s?X-Amz-Expires=%d&content-type=%s", f.ObjectURL(key), int(expires.Seconds()), contentType), nil
}

func (f *fakeStorage) GeneratePresignedDownloadURL(_ context.Context, key, filename string, expires time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	u := fmt.Sprintf("%s?X-Amz-Expires=%d", f.ObjectURL(key), int(expires.Seconds()))
	if filename != "" {
		u += "&filename=" + filename
	}
	return u, nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete[key] {
		return errors.New("store unavailable")
	}
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStorage) StatObject(_ context.Context, key string) (*storage.ObjectInfo, error) {
	if f.statErr != nil {
		return nil, f.statErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	size, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &storage.ObjectInfo{Key: key, Size: size}, nil
}

type fixture struct {
	store     *memory.Store
	repos     repository.Repositories
	objects   *fakeStorage
	uploads   *UploadBroker
	downloads *DownloadBroker
	requests  *RequestService
	auth      AuthService
	users     *UserService

	alice, bob, reviewer domain.Caller
}

var fixedNow = time.Date(2024, 6, 10, 6, 13, 20, 123_000_000, time.UTC)

func newFixture(t *testing.T, allowUnscoped bool) *fixture {
	t.Helper()
	log := zap.NewNop()
	store := memory.New()
	repos := store.Repositories()
	objects := newFakeStorage(t)

	auth, err := NewAuthService(log, repos.Users, session.NewMemoryRevoker(), "test-secret", time.Hour)
	require.NoError(t, err)

	f := &fixture{
		store:     store,
		repos:     repos,
		objects:   objects,
		uploads:   NewUploadBroker(log, objects, storage.KeyGenerator{Now: func() time.Time { return fixedNow }}, time.Hour),
		downloads: NewDownloadBroker(log, objects, repos.Requests, repos.Files, time.Hour, allowUnscoped),
		requests:  NewRequestService(log, repos.Users, repos.Requests, repos.Files, objects),
		auth:      auth,
	}
	f.users = NewUserService(log, repos.Users, f.requests, auth)
	f.users.bcryptCost = bcrypt.MinCost

	f.alice = f.addUser(t, "alice@example.com", domain.RoleUser)
	f.bob = f.addUser(t, "bob@example.com", domain.RoleUser)
	f.reviewer = f.addUser(t, "reviewer@example.com", domain.RoleAdmin)
	return f
}

func (f *fixture) addUser(t *testing.T, email string, role domain.Role) domain.Caller {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	require.NoError(t, err)
	id, err := f.repos.Users.Create(context.Background(), &domain.User{
		Email: email, Name: email, PasswordHash: string(hash), Role: role,
	})
	require.NoError(t, err)
	return domain.Caller{UserID: id, Role: role}
}

// upload issues a credential, "uploads" size bytes and returns the descriptor
// a client would report.
func (f *fixture) upload(t *testing.T, caller domain.Caller, filename string, size int64) domain.UploadDescriptor {
	t.Helper()
	cred, err := f.uploads.RequestUploadCredential(context.Background(), caller, filename, "application/pdf")
	require.NoError(t, err)
	f.objects.mu.Lock()
	f.objects.objects[cred.Key] = size
	f.objects.mu.Unlock()
	mime := "application/pdf"
	return domain.UploadDescriptor{
		OriginalFilename: filename,
		StorageKey:       cred.Key,
		StoreURL:         cred.URL,
		FileSize:         size,
		MimeType:         &mime,
	}
}

func (f *fixture) createRequest(t *testing.T, caller domain.Caller, title string, files ...domain.UploadDescriptor) *domain.AnalysisRequest {
	t.Helper()
	req, err := f.requests.Create(context.Background(), caller, CreateRequestInput{Title: title, Files: files})
	require.NoError(t, err)
	return req
}

func strPtr(s string) *string { return &s }
