package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"alcyxob/analysis-portal/internal/domain"
	"alcyxob/analysis-portal/internal/repository"
)

const requestColumns = `id, user_id, title, memo, status, result_text, result_file_url, result_created_at, created_at, updated_at`

// RequestRepository stores analysis requests and loads their files alongside.
type RequestRepository struct {
	db *sql.DB
}

func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func scanRequest(row rowScanner) (*domain.AnalysisRequest, error) {
	var req domain.AnalysisRequest
	err := row.Scan(&req.ID, &req.UserID, &req.Title, &req.Memo, &req.Status,
		&req.ResultText, &req.ResultFileURL, &req.ResultCreatedAt, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *RequestRepository) Create(ctx context.Context, req *domain.AnalysisRequest, files []domain.UploadedFile) error {
	if req.UserID == "" || req.Title == "" {
		return repository.ErrInvalidRecord
	}
	ts := now()
	req.ID = uuid.NewString()
	if req.Status == "" {
		req.Status = domain.StatusPending
	}
	req.CreatedAt, req.UpdatedAt = ts, ts

	stored := make([]domain.UploadedFile, len(files))
	err := withTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO analysis_requests (id, user_id, title, memo, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			req.ID, req.UserID, req.Title, req.Memo, req.Status, req.CreatedAt, req.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert request: %w", err)
		}
		for i, f := range files {
			f.ID = uuid.NewString()
			f.RequestID = req.ID
			if f.Verification == "" {
				f.Verification = domain.VerificationUnverified
			}
			f.CreatedAt, f.UpdatedAt = ts, ts
			if err := insertFile(ctx, tx, &f); err != nil {
				return err
			}
			stored[i] = f
		}
		return nil
	})
	if err != nil {
		return err
	}
	req.Files = stored
	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*domain.AnalysisRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	req, err := scanRequest(r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM analysis_requests WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return r.withFiles(ctx, req)
}

func whereClause(filter domain.RequestFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *RequestRepository) List(ctx context.Context, filter domain.RequestFilter) ([]domain.AnalysisRequest, int, error) {
	where, args := whereClause(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	query := `SELECT ` + requestColumns + ` FROM analysis_requests` + where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, max(filter.Offset, 0))
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select requests: %w", err)
	}
	defer rows.Close()

	page := []domain.AnalysisRequest{}
	index := map[string]int{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		req.Files = []domain.UploadedFile{}
		index[req.ID] = len(page)
		page = append(page, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(page) == 0 {
		return page, total, nil
	}

	ids := make([]any, len(page))
	for i, req := range page {
		ids[i] = req.ID
	}
	files, err := selectFiles(ctx, r.db, `request_id IN (`+placeholders(1, len(ids))+`)`, ids...)
	if err != nil {
		return nil, 0, err
	}
	for _, f := range files {
		i := index[f.RequestID]
		page[i].Files = append(page[i].Files, f)
	}
	return page, total, nil
}

func (r *RequestRepository) CountByStatus(ctx context.Context, userID string) (domain.RequestStats, error) {
	where, args := whereClause(domain.RequestFilter{UserID: userID})
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM analysis_requests`+where+` GROUP BY status`, args...)
	if err != nil {
		return domain.RequestStats{}, fmt.Errorf("failed to count requests: %w", err)
	}
	defer rows.Close()

	var stats domain.RequestStats
	for rows.Next() {
		var status domain.RequestStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return domain.RequestStats{}, err
		}
		stats.Total += n
		switch status {
		case domain.StatusPending:
			stats.Pending = n
		case domain.StatusInProgress:
			stats.InProgress = n
		case domain.StatusCompleted:
			stats.Completed = n
		case domain.StatusCancelled:
			stats.Cancelled = n
		}
	}
	return stats, rows.Err()
}

func (r *RequestRepository) FindByResultFileURL(ctx context.Context, resultFileURL string) (*domain.AnalysisRequest, error) {
	req, err := scanRequest(r.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM analysis_requests WHERE result_file_url = $1 ORDER BY created_at DESC LIMIT 1`, resultFileURL))
	if err != nil {
		return nil, err
	}
	return r.withFiles(ctx, req)
}

func (r *RequestRepository) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) (*domain.AnalysisRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	req, err := scanRequest(r.db.QueryRowContext(ctx,
		`UPDATE analysis_requests SET status = $2, updated_at = $3 WHERE id = $1 RETURNING `+requestColumns,
		id, status, now()))
	if err != nil {
		return nil, err
	}
	return r.withFiles(ctx, req)
}

func (r *RequestRepository) SetResult(ctx context.Context, id string, resultText, resultFileURL *string, at time.Time) (*domain.AnalysisRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	req, err := scanRequest(r.db.QueryRowContext(ctx,
		`UPDATE analysis_requests
		SET result_text = COALESCE($2, result_text), result_file_url = COALESCE($3, result_file_url), result_created_at = $4, status = $5, updated_at = $6
		WHERE id = $1 RETURNING `+requestColumns,
		id, resultText, resultFileURL, at, domain.StatusCompleted, now()))
	if err != nil {
		return nil, err
	}
	return r.withFiles(ctx, req)
}

// Delete removes the request. File rows go with it through the foreign key cascade.
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM analysis_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}
	return expectOne(res)
}

func (r *RequestRepository) withFiles(ctx context.Context, req *domain.AnalysisRequest) (*domain.AnalysisRequest, error) {
	files, err := selectFiles(ctx, r.db, `request_id = $1`, req.ID)
	if err != nil {
		return nil, err
	}
	req.Files = files
	return req, nil
}
