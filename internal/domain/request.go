package domain

import "time"

// RequestStatus type for the analysis request lifecycle
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"     // Initial state on creation
	StatusInProgress RequestStatus = "in_progress" // Reviewer picked it up
	StatusCompleted  RequestStatus = "completed"   // Result attached
	StatusCancelled  RequestStatus = "cancelled"
)

// Valid reports whether s is a defined status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further status change is defined from s.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether a reviewer may move a request from s to
// next through a plain status update. Completion is reached only by attaching
// a result, so it is never a legal target here.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	if next == StatusCompleted || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCancelled
	}
	return false
}

// AnalysisRequest is a user's submission of one or more files for review.
type AnalysisRequest struct {
	ID              string         `bson:"_id" json:"id"`
	UserID          string         `bson:"userId" json:"userId"` // Owner
	Title           string         `bson:"title" json:"title"`
	Memo            *string        `bson:"memo,omitempty" json:"memo"`
	Status          RequestStatus  `bson:"status" json:"status"`
	ResultText      *string        `bson:"resultText,omitempty" json:"resultText"`
	ResultFileURL   *string        `bson:"resultFileUrl,omitempty" json:"resultFileUrl"`
	ResultCreatedAt *time.Time     `bson:"resultCreatedAt,omitempty" json:"resultCreatedAt"`
	CreatedAt       time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time      `bson:"updatedAt" json:"updatedAt"`
	Owner           *UserSummary   `bson:"-" json:"user,omitempty"`
	Files           []UploadedFile `bson:"-" json:"files"`
}

// RequestFilter narrows a request listing.
type RequestFilter struct {
	UserID string        // Empty means all owners
	Status RequestStatus // Empty means any status
	Offset int
	Limit  int
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes the page count for total rows split by limit.
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// RequestStats counts requests by status.
type RequestStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
}
