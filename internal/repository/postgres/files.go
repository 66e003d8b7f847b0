package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"alcyxob/analysis-portal/internal/domain"
	"alcyxob/analysis-portal/internal/repository"
)

const fileColumns = `id, request_id, original_filename, s3_key, s3_url, file_size, mime_type, verification, verified_at, analysis_result, analysis_result_file_url, created_at, updated_at`

type FileRepository struct {
	db DBTX
}

func NewFileRepository(db DBTX) *FileRepository {
	return &FileRepository{db: db}
}

func scanFile(row rowScanner) (*domain.UploadedFile, error) {
	var f domain.UploadedFile
	err := row.Scan(&f.ID, &f.RequestID, &f.OriginalFilename, &f.StorageKey, &f.StoreURL, &f.FileSize,
		&f.MimeType, &f.Verification, &f.VerifiedAt, &f.AnalysisResult, &f.AnalysisResultFileURL, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func insertFile(ctx context.Context, db DBTX, f *domain.UploadedFile) error {
	_, err := db.ExecContext(ctx, `INSERT INTO uploaded_files (`+fileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		f.ID, f.RequestID, f.OriginalFilename, f.StorageKey, f.StoreURL, f.FileSize, f.MimeType,
		f.Verification, f.VerifiedAt, f.AnalysisResult, f.AnalysisResultFileURL, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}
	return nil
}

func selectFiles(ctx context.Context, db DBTX, where string, args ...any) ([]domain.UploadedFile, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+fileColumns+` FROM uploaded_files WHERE `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	files := []domain.UploadedFile{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (*domain.UploadedFile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return scanFile(r.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM uploaded_files WHERE id = $1`, id))
}

func (r *FileRepository) GetByStorageKey(ctx context.Context, key string) (*domain.UploadedFile, error) {
	return scanFile(r.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM uploaded_files WHERE s3_key = $1 ORDER BY created_at DESC LIMIT 1`, key))
}

func (r *FileRepository) SetAnalysisResult(ctx context.Context, id string, result, resultFileURL *string) (*domain.UploadedFile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return scanFile(r.db.QueryRowContext(ctx,
		`UPDATE uploaded_files
		SET analysis_result = COALESCE($2, analysis_result),
			analysis_result_file_url = COALESCE($3, analysis_result_file_url),
			updated_at = $4
		WHERE id = $1 RETURNING `+fileColumns,
		id, result, resultFileURL, now()))
}

func (r *FileRepository) SetVerification(ctx context.Context, id string, state domain.VerificationState, at time.Time) (*domain.UploadedFile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return scanFile(r.db.QueryRowContext(ctx,
		`UPDATE uploaded_files SET verification = $2, verified_at = $3, updated_at = $4 WHERE id = $1 RETURNING `+fileColumns,
		id, state, at, now()))
}
