package repository

import (
	"context"
	"time"

	"alcyxob/analysis-portal/internal/domain" // Import our defined domain models
)

// Error constants for repository layer
var (
	ErrNotFound      = RepositoryError("not found")
	ErrDuplicateKey  = RepositoryError("duplicate key")
	ErrUpdateFailed  = RepositoryError("update failed")
	ErrInvalidRecord = RepositoryError("invalid record")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (string, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

// RequestRepository persists analysis requests together with their file rows.
// Every read returns the request with Files populated.
type RequestRepository interface {
	// Create inserts req and files atomically, assigning IDs and timestamps.
	// On success req.Files holds the stored file rows.
	Create(ctx context.Context, req *domain.AnalysisRequest, files []domain.UploadedFile) error
	GetByID(ctx context.Context, id string) (*domain.AnalysisRequest, error)
	// List returns one page, newest first, and the total number of matching rows.
	List(ctx context.Context, filter domain.RequestFilter) ([]domain.AnalysisRequest, int, error)
	CountByStatus(ctx context.Context, userID string) (domain.RequestStats, error)
	FindByResultFileURL(ctx context.Context, resultFileURL string) (*domain.AnalysisRequest, error)
	UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) (*domain.AnalysisRequest, error)
	// SetResult stores the non-nil result fields, stamps at and forces the
	// status to completed.
	SetResult(ctx context.Context, id string, resultText, resultFileURL *string, at time.Time) (*domain.AnalysisRequest, error)
	// Delete removes the request and all of its file rows.
	Delete(ctx context.Context, id string) error
}

// FileRepository reads and updates individual uploaded file rows.
type FileRepository interface {
	GetByID(ctx context.Context, id string) (*domain.UploadedFile, error)
	GetByStorageKey(ctx context.Context, key string) (*domain.UploadedFile, error)
	// SetAnalysisResult updates only the non-nil fields.
	SetAnalysisResult(ctx context.Context, id string, result, resultFileURL *string) (*domain.UploadedFile, error)
	SetVerification(ctx context.Context, id string, state domain.VerificationState, at time.Time) (*domain.UploadedFile, error)
}

// Repositories bundles the stores a backend provides.
type Repositories struct {
	Users    UserRepository
	Requests RequestRepository
	Files    FileRepository
	Close    func(ctx context.Context) error
}
