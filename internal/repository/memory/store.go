// Package memory keeps every repository in process memory. It backs the
// "memory" database driver and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"alcyxob/analysis-portal/internal/domain"
	"alcyxob/analysis-portal/internal/repository"
)

type requestRow struct {
	seq int
	req domain.AnalysisRequest
}

// Store holds users, requests and files behind one lock.
type Store struct {
	mu       sync.RWMutex
	seq      int
	users    map[string]domain.User
	requests map[string]*requestRow
	files    map[string]domain.UploadedFile
	Now      func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]domain.User),
		requests: make(map[string]*requestRow),
		files:    make(map[string]domain.UploadedFile),
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Users:    userRepo{s},
		Requests: requestRepo{s},
		Files:    fileRepo{s},
		Close:    func(context.Context) error { return nil },
	}
}

// FileCount returns the number of file rows attached to requestID.
func (s *Store) FileCount(requestID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, f := range s.files {
		if f.RequestID == requestID {
			n++
		}
	}
	return n
}

// --- users ---

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) (string, error) {
	if user.Email == "" || user.PasswordHash == "" || user.Role == "" {
		return "", repository.ErrInvalidRecord
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return "", repository.ErrDuplicateKey
		}
	}
	now := s.Now()
	user.ID = uuid.NewString()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = *user
	return user.ID, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) List(_ context.Context) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	users := make([]domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

func (r userRepo) UpdateRole(_ context.Context, id string, role domain.Role) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = r.s.Now()
	r.s.users[id] = u
	return &u, nil
}

func (r userRepo) Delete(_ context.Context, id string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	for rid, row := range s.requests {
		if row.req.UserID == id {
			s.deleteRequestLocked(rid)
		}
	}
	return nil
}

// --- requests ---

type requestRepo struct{ s *Store }

func (r requestRepo) Create(_ context.Context, req *domain.AnalysisRequest, files []domain.UploadedFile) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	req.ID = uuid.NewString()
	if req.Status == "" {
		req.Status = domain.StatusPending
	}
	req.CreatedAt, req.UpdatedAt = now, now

	stored := make([]domain.UploadedFile, len(files))
	for i, f := range files {
		f.ID = uuid.NewString()
		f.RequestID = req.ID
		if f.Verification == "" {
			f.Verification = domain.VerificationUnverified
		}
		f.CreatedAt, f.UpdatedAt = now, now
		s.files[f.ID] = f
		stored[i] = f
	}
	req.Files = stored

	s.seq++
	row := &requestRow{seq: s.seq, req: *req}
	row.req.Files = nil
	row.req.Owner = nil
	s.requests[req.ID] = row
	return nil
}

// withFilesLocked returns a detached copy of the request with its files.
func (s *Store) withFilesLocked(row *requestRow) domain.AnalysisRequest {
	req := row.req
	req.Files = []domain.UploadedFile{}
	for _, f := range s.files {
		if f.RequestID == req.ID {
			req.Files = append(req.Files, f)
		}
	}
	sort.Slice(req.Files, func(i, j int) bool {
		if req.Files[i].CreatedAt.Equal(req.Files[j].CreatedAt) {
			return req.Files[i].ID < req.Files[j].ID
		}
		return req.Files[i].CreatedAt.Before(req.Files[j].CreatedAt)
	})
	return req
}

func (r requestRepo) GetByID(_ context.Context, id string) (*domain.AnalysisRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	req := r.s.withFilesLocked(row)
	return &req, nil
}

func (r requestRepo) matching(filter domain.RequestFilter) []*requestRow {
	var rows []*requestRow
	for _, row := range r.s.requests {
		if filter.UserID != "" && row.req.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && row.req.Status != filter.Status {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	return rows
}

func (r requestRepo) List(_ context.Context, filter domain.RequestFilter) ([]domain.AnalysisRequest, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rows := r.matching(filter)
	total := len(rows)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}

	page := make([]domain.AnalysisRequest, 0, end-start)
	for _, row := range rows[start:end] {
		page = append(page, r.s.withFilesLocked(row))
	}
	return page, total, nil
}

func (r requestRepo) CountByStatus(_ context.Context, userID string) (domain.RequestStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var stats domain.RequestStats
	for _, row := range r.matching(domain.RequestFilter{UserID: userID}) {
		stats.Total++
		switch row.req.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusInProgress:
			stats.InProgress++
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

func (r requestRepo) FindByResultFileURL(_ context.Context, resultFileURL string) (*domain.AnalysisRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, row := range r.s.requests {
		if row.req.ResultFileURL != nil && *row.req.ResultFileURL == resultFileURL {
			req := r.s.withFilesLocked(row)
			return &req, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r requestRepo) update(id string, fn func(*domain.AnalysisRequest)) (*domain.AnalysisRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	fn(&row.req)
	row.req.UpdatedAt = r.s.Now()
	req := r.s.withFilesLocked(row)
	return &req, nil
}

func (r requestRepo) UpdateStatus(_ context.Context, id string, status domain.RequestStatus) (*domain.AnalysisRequest, error) {
	return r.update(id, func(req *domain.AnalysisRequest) { req.Status = status })
}

func (r requestRepo) SetResult(_ context.Context, id string, resultText, resultFileURL *string, at time.Time) (*domain.AnalysisRequest, error) {
	return r.update(id, func(req *domain.AnalysisRequest) {
		if resultText != nil {
			req.ResultText = resultText
		}
		if resultFileURL != nil {
			req.ResultFileURL = resultFileURL
		}
		req.ResultCreatedAt = &at
		req.Status = domain.StatusCompleted
	})
}

func (r requestRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.requests[id]; !ok {
		return repository.ErrNotFound
	}
	r.s.deleteRequestLocked(id)
	return nil
}

func (s *Store) deleteRequestLocked(id string) {
	delete(s.requests, id)
	for fid, f := range s.files {
		if f.RequestID == id {
			delete(s.files, fid)
		}
	}
}

// --- files ---

type fileRepo struct{ s *Store }

func (r fileRepo) GetByID(_ context.Context, id string) (*domain.UploadedFile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f, ok := r.s.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (r fileRepo) GetByStorageKey(_ context.Context, key string) (*domain.UploadedFile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, f := range r.s.files {
		if f.StorageKey == key {
			return &f, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fileRepo) update(id string, fn func(*domain.UploadedFile)) (*domain.UploadedFile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	fn(&f)
	f.UpdatedAt = r.s.Now()
	r.s.files[id] = f
	return &f, nil
}

func (r fileRepo) SetAnalysisResult(_ context.Context, id string, result, resultFileURL *string) (*domain.UploadedFile, error) {
	return r.update(id, func(f *domain.UploadedFile) {
		if result != nil {
			f.AnalysisResult = result
		}
		if resultFileURL != nil {
			f.AnalysisResultFileURL = resultFileURL
		}
	})
}

func (r fileRepo) SetVerification(_ context.Context, id string, state domain.VerificationState, at time.Time) (*domain.UploadedFile, error) {
	return r.update(id, func(f *domain.UploadedFile) {
		f.Verification = state
		f.VerifiedAt = &at
	})
}
