package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/analysis-portal/internal/domain"
	"alcyxob/analysis-portal/internal/repository"
)

const (
	userID    = "0b7d3a0e-8a53-4c1e-9f55-0f1e6f8f6a01"
	requestID = "4f1c9f0a-2b7e-4d4a-8f59-7c6d3b2a1e02"
	fileID    = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c03"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var (
	requestCols = []string{"id", "user_id", "title", "memo", "status", "result_text", "result_file_url", "result_created_at", "created_at", "updated_at"}
	fileCols    = []string{"id", "request_id", "original_filename", "s3_key", "s3_url", "file_size", "mime_type", "verification", "verified_at", "analysis_result", "analysis_result_file_url", "created_at", "updated_at"}
)

func fileRow(rows *sqlmock.Rows, id, reqID string, ts time.Time) *sqlmock.Rows {
	return rows.AddRow(id, reqID, "report final.pdf", "uploads/u/1-report_final.pdf", "https://b.s3.r.amazonaws.com/uploads/u/1-report_final.pdf",
		int64(2048), "application/pdf", "unverified", nil, nil, nil, ts, ts)
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users\b`).
		WithArgs(sqlmock.AnyArg(), "a@example.com", "A", "hash", "user", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &domain.User{Email: "a@example.com", Name: "A", PasswordHash: "hash", Role: domain.RoleUser})
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "password_hash", "role", "created_at", "updated_at"}))

	_, err := repo.GetByID(context.Background(), userID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// Malformed ids never reach the database.
	_, err = repo.GetByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_CreateInsertsFilesInTransaction(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+analysis_requests\b`).
		WithArgs(sqlmock.AnyArg(), userID, "Blood panel", nil, "pending", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+uploaded_files\b`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := &domain.AnalysisRequest{UserID: userID, Title: "Blood panel"}
	files := []domain.UploadedFile{domain.NewUploadedFile("", domain.UploadDescriptor{
		OriginalFilename: "report final.pdf",
		StorageKey:       "uploads/u/1-report_final.pdf",
		FileSize:         2048,
	})}
	require.NoError(t, repo.Create(context.Background(), req, files))

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, domain.StatusPending, req.Status)
	require.Len(t, req.Files, 1)
	assert.Equal(t, req.ID, req.Files[0].RequestID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_CreateRollsBackOnFileError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT\s+INTO\s+analysis_requests`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT\s+INTO\s+uploaded_files`).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	req := &domain.AnalysisRequest{UserID: userID, Title: "t"}
	err := repo.Create(context.Background(), req, []domain.UploadedFile{{OriginalFilename: "a"}})
	require.Error(t, err)
	assert.Nil(t, req.Files)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_ListPagesAndAttachesFiles(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRequestRepository(db)
	ts := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM analysis_requests WHERE user_id = \$1`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))
	mock.ExpectQuery(`FROM analysis_requests WHERE user_id = \$1 ORDER BY created_at DESC, id DESC LIMIT \$2 OFFSET \$3`).
		WithArgs(userID, 10, 10).
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow(requestID, userID, "Blood panel", nil, "pending", nil, nil, nil, ts, ts))
	mock.ExpectQuery(`FROM uploaded_files WHERE request_id IN \(\$1\)`).
		WithArgs(requestID).
		WillReturnRows(fileRow(sqlmock.NewRows(fileCols), fileID, requestID, ts))

	page, total, err := repo.List(context.Background(), domain.RequestFilter{UserID: userID, Offset: 10, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, page, 1)
	assert.Nil(t, page[0].Memo)
	require.Len(t, page[0].Files, 1)
	assert.Equal(t, "report final.pdf", page[0].Files[0].OriginalFilename)
	assert.Equal(t, domain.VerificationUnverified, page[0].Files[0].Verification)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_CountByStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRequestRepository(db)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM analysis_requests GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 3).AddRow("completed", 2))

	stats, err := repo.CountByStatus(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStats{Total: 5, Pending: 3, Completed: 2}, stats)
}

func TestRequestRepository_SetResultCompletes(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRequestRepository(db)
	ts := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	text := "All values normal"

	mock.ExpectQuery(`(?s)UPDATE analysis_requests\s+SET result_text = COALESCE\(\$2, result_text\), result_file_url = COALESCE\(\$3, result_file_url\).*RETURNING`).
		WithArgs(requestID, text, nil, ts, "completed", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow(requestID, userID, "Blood panel", nil, "completed", text, nil, ts, ts, ts))
	mock.ExpectQuery(`FROM uploaded_files WHERE request_id = \$1`).
		WithArgs(requestID).
		WillReturnRows(sqlmock.NewRows(fileCols))

	req, err := repo.SetResult(context.Background(), requestID, &text, nil, ts)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, req.Status)
	require.NotNil(t, req.ResultText)
	assert.Equal(t, text, *req.ResultText)
	assert.Nil(t, req.ResultFileURL)
	assert.Empty(t, req.Files)
}

func TestRequestRepository_DeleteMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRequestRepository(db)

	mock.ExpectExec(`DELETE FROM analysis_requests WHERE id = \$1`).
		WithArgs(requestID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), requestID), repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_SetAnalysisResultKeepsUnsetColumns(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFileRepository(db)
	ts := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	text := "normal"

	mock.ExpectQuery(`(?s)UPDATE uploaded_files\s+SET analysis_result = COALESCE\(\$2, analysis_result\)`).
		WithArgs(fileID, text, nil, sqlmock.AnyArg()).
		WillReturnRows(fileRow(sqlmock.NewRows(fileCols), fileID, requestID, ts))

	f, err := repo.SetAnalysisResult(context.Background(), fileID, &text, nil)
	require.NoError(t, err)
	assert.Equal(t, fileID, f.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUsesEmbeddedDirectory(t *testing.T) {
	db, _ := newMock(t)

	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	var gotDir string
	gooseUp = func(_ context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.Equal(t, "migrations", gotDir)

	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	gooseUp = func(context.Context, *sql.DB, string) error { return errors.New("locked") }
	assert.ErrorContains(t, Migrate(context.Background(), db), "locked")
}
