package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/analysis-portal/internal/domain"
	"alcyxob/analysis-portal/internal/repository"
)

func newRequest(t *testing.T, repos repository.Repositories, owner string, files int) *domain.AnalysisRequest {
	t.Helper()
	req := &domain.AnalysisRequest{UserID: owner, Title: "t"}
	rows := make([]domain.UploadedFile, files)
	for i := range rows {
		rows[i] = domain.NewUploadedFile("", domain.UploadDescriptor{
			OriginalFilename: fmt.Sprintf("f%d.pdf", i),
			StorageKey:       fmt.Sprintf("uploads/%s/%d-f%d.pdf", owner, i, i),
			StoreURL:         "https://b.s3.r.amazonaws.com/x",
			FileSize:         int64(i),
		})
	}
	require.NoError(t, repos.Requests.Create(context.Background(), req, rows))
	return req
}

func TestRequestRepo_CreateAndGet(t *testing.T) {
	store := New()
	repos := store.Repositories()

	req := newRequest(t, repos, "u1", 2)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, domain.StatusPending, req.Status)
	require.Len(t, req.Files, 2)
	assert.Equal(t, req.ID, req.Files[0].RequestID)

	got, err := repos.Requests.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, got.Files, 2)
	assert.Equal(t, domain.VerificationUnverified, got.Files[0].Verification)
}

func TestRequestRepo_ListPagesNewestFirst(t *testing.T) {
	store := New()
	repos := store.Repositories()
	var ids []string
	for range 5 {
		ids = append(ids, newRequest(t, repos, "u1", 1).ID)
	}
	newRequest(t, repos, "u2", 1)

	page, total, err := repos.Requests.List(context.Background(), domain.RequestFilter{UserID: "u1", Offset: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)
}

func TestRequestRepo_DeleteCascadesFiles(t *testing.T) {
	store := New()
	repos := store.Repositories()
	req := newRequest(t, repos, "u1", 3)

	require.NoError(t, repos.Requests.Delete(context.Background(), req.ID))
	assert.Zero(t, store.FileCount(req.ID))

	_, err := repos.Requests.GetByID(context.Background(), req.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repos.Requests.SetResult(context.Background(), req.ID, nil, nil, time.Now())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFileRepo_SetAnalysisResultKeepsUnsetFields(t *testing.T) {
	store := New()
	repos := store.Repositories()
	req := newRequest(t, repos, "u1", 1)
	fileID := req.Files[0].ID

	text := "normal"
	_, err := repos.Files.SetAnalysisResult(context.Background(), fileID, &text, nil)
	require.NoError(t, err)
	link := "https://b.s3.r.amazonaws.com/result.pdf"
	f, err := repos.Files.SetAnalysisResult(context.Background(), fileID, nil, &link)
	require.NoError(t, err)

	require.NotNil(t, f.AnalysisResult)
	assert.Equal(t, "normal", *f.AnalysisResult)
	assert.Equal(t, link, *f.AnalysisResultFileURL)
}

func TestUserRepo_DuplicateEmail(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()

	_, err := repos.Users.Create(ctx, &domain.User{Email: "a@example.com", PasswordHash: "h", Role: domain.RoleUser})
	require.NoError(t, err)
	_, err = repos.Users.Create(ctx, &domain.User{Email: "A@example.com", PasswordHash: "h", Role: domain.RoleUser})
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)
}
