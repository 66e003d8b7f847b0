package service

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alcyxob/analysis-portal/internal/domain"
	"alcyxob/analysis-portal/internal/repository"
	"alcyxob/analysis-portal/internal/storage"
)

const (
	MaxTitleLength   = 200
	DefaultPageLimit = 10
	MaxPageLimit     = 100

	// deleteParallelism bounds concurrent object deletions per request.
	deleteParallelism = 4
)

// CreateRequestInput is what an owner submits after uploading files.
type CreateRequestInput struct {
	Title string
	Memo  *string
	Files []domain.UploadDescriptor
}

// ListFilter selects one page of requests. Zero Page and Limit take defaults.
type ListFilter struct {
	Status domain.RequestStatus
	Page   int
	Limit  int
}

// RequestList is one page of requests.
type RequestList struct {
	Requests   []domain.AnalysisRequest `json:"requests"`
	Pagination domain.Pagination        `json:"pagination"`
}

// ResultInput carries a reviewer's result. A nil field leaves the stored value unchanged.
type ResultInput struct {
	ResultText    *string
	ResultFileURL *string
}

// ObjectDeletion is the outcome of removing one stored object.
type ObjectDeletion struct {
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// DeletionReport lists what happened to each object of a deleted request.
// The metadata is removed even when some objects could not be.
type DeletionReport struct {
	RequestID string           `json:"requestId"`
	Objects   []ObjectDeletion `json:"objects"`
}

// Failed counts objects left behind in the store.
func (r *DeletionReport) Failed() int {
	n := 0
	for _, o := range r.Objects {
		if !o.Deleted {
			n++
		}
	}
	return n
}

// RequestService is the registry of analysis requests.
type RequestService struct {
	log      *zap.Logger
	users    repository.UserRepository
	requests repository.RequestRepository
	files    repository.FileRepository
	store    storage.FileStorage
	now      func() time.Time
}

func NewRequestService(
	log *zap.Logger,
	users repository.UserRepository,
	requests repository.RequestRepository,
	files repository.FileRepository,
	store storage.FileStorage,
) *RequestService {
	return &RequestService{
		log:      log,
		users:    users,
		requests: requests,
		files:    files,
		store:    store,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func validateCreate(in CreateRequestInput) error {
	var v ValidationError
	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		v.add("title", "is required")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		v.add("title", "must be at most 200 characters")
	}
	if len(in.Files) == 0 {
		v.add("files", "at least one file is required")
	}
	for i, f := range in.Files {
		prefix := "files[" + strconv.Itoa(i) + "]."
		if strings.TrimSpace(f.OriginalFilename) == "" {
			v.add(prefix+"originalFilename", "is required")
		}
		if strings.TrimSpace(f.StorageKey) == "" {
			v.add(prefix+"s3Key", "is required")
		}
		if !isAbsoluteURL(f.StoreURL) {
			v.add(prefix+"s3Url", "must be an absolute URL")
		}
		if f.FileSize < 0 {
			v.add(prefix+"fileSize", "must not be negative")
		}
	}
	return v.err()
}

// Create stores a pending request owned by the caller with the given files.
func (s *RequestService) Create(ctx context.Context, caller domain.Caller, in CreateRequestInput) (*domain.AnalysisRequest, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	req := &domain.AnalysisRequest{
		UserID: caller.UserID,
		Title:  strings.TrimSpace(in.Title),
		Memo:   in.Memo,
		Status: domain.StatusPending,
	}
	files := make([]domain.UploadedFile, len(in.Files))
	for i, d := range in.Files {
		files[i] = domain.NewUploadedFile("", d)
	}

	if err := s.requests.Create(ctx, req, files); err != nil {
		return nil, upstream(s.log, "create request", err)
	}
	s.log.Info("request created",
		zap.String("request_id", req.ID),
		zap.String("user_id", caller.UserID),
		zap.Int("files", len(files)))
	return req, nil
}

// List returns the caller's requests, or everyone's for a reviewer.
func (s *RequestService) List(ctx context.Context, caller domain.Caller, f ListFilter) (*RequestList, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	var v ValidationError
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Limit == 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Page < 1 {
		v.add("page", "must be at least 1")
	}
	if f.Limit < 1 || f.Limit > MaxPageLimit {
		v.add("limit", "must be between 1 and 100")
	}
	if f.Status != "" && !f.Status.Valid() {
		v.add("status", "unknown status")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	filter := domain.RequestFilter{
		Status: f.Status,
		Offset: (f.Page - 1) * f.Limit,
		Limit:  f.Limit,
	}
	if !caller.IsReviewer() {
		filter.UserID = caller.UserID
	}

	reqs, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, upstream(s.log, "list requests", err)
	}
	ptrs := make([]*domain.AnalysisRequest, len(reqs))
	for i := range reqs {
		ptrs[i] = &reqs[i]
	}
	if err := s.attachOwners(ctx, ptrs); err != nil {
		return nil, err
	}
	return &RequestList{
		Requests:   reqs,
		Pagination: domain.NewPagination(f.Page, f.Limit, total),
	}, nil
}

// Get returns one request with its files and owner summary.
func (s *RequestService) Get(ctx context.Context, caller domain.Caller, id string) (*domain.AnalysisRequest, error) {
	req, err := s.loadAccessible(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachOwner(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// UpdateStatus moves a request along its lifecycle. Completion happens only
// through AttachResult.
func (s *RequestService) UpdateStatus(ctx context.Context, caller domain.Caller, id string, status domain.RequestStatus) (*domain.AnalysisRequest, error) {
	if err := requireReviewer(caller); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalidField("status", "unknown status")
	}

	cur, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, repoErr(s.log, "load request", "request", err)
	}
	if !cur.Status.CanTransitionTo(status) {
		return nil, invalidField("status", "cannot change status from "+string(cur.Status)+" to "+string(status))
	}

	req, err := s.requests.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, repoErr(s.log, "update status", "request", err)
	}
	s.log.Info("request status changed",
		zap.String("request_id", id),
		zap.String("from", string(cur.Status)),
		zap.String("to", string(status)))
	return req, nil
}

// AttachResult records the reviewer's result and completes the request,
// whatever its previous status. Supplied fields overwrite earlier values,
// omitted ones are kept.
func (s *RequestService) AttachResult(ctx context.Context, caller domain.Caller, id string, in ResultInput) (*domain.AnalysisRequest, error) {
	if err := requireReviewer(caller); err != nil {
		return nil, err
	}
	text, link := in.ResultText, in.ResultFileURL
	if link != nil && *link != "" && !isAbsoluteURL(*link) {
		return nil, invalidField("resultFileUrl", "must be an absolute URL")
	}

	// A request deleted concurrently surfaces here as not found.
	req, err := s.requests.SetResult(ctx, id, text, link, s.now())
	if err != nil {
		return nil, repoErr(s.log, "attach result", "request", err)
	}
	if err := s.attachOwner(ctx, req); err != nil {
		return nil, err
	}
	s.log.Info("result attached", zap.String("request_id", id), zap.String("reviewer_id", caller.UserID))
	return req, nil
}

// AttachFileResult sets the per-file result. Only supplied fields change.
func (s *RequestService) AttachFileResult(ctx context.Context, caller domain.Caller, fileID string, result, resultFileURL *string) (*domain.UploadedFile, error) {
	if err := requireReviewer(caller); err != nil {
		return nil, err
	}
	file, err := s.files.SetAnalysisResult(ctx, fileID, result, resultFileURL)
	if err != nil {
		return nil, repoErr(s.log, "attach file result", "file", err)
	}
	return file, nil
}

// VerifyFile checks the store for the file's object and records what it found.
func (s *RequestService) VerifyFile(ctx context.Context, caller domain.Caller, fileID string) (*domain.UploadedFile, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, repoErr(s.log, "load file", "file", err)
	}
	if _, err := s.loadAccessible(ctx, caller, file.RequestID); err != nil {
		return nil, err
	}

	state := domain.VerificationVerified
	info, err := s.store.StatObject(ctx, file.StorageKey)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		state = domain.VerificationMissing
	case err != nil:
		return nil, upstream(s.log.With(zap.String("key", file.StorageKey)), "stat object", err)
	case info.Size != file.FileSize:
		state = domain.VerificationMismatch
	}

	file, err = s.files.SetVerification(ctx, fileID, state, s.now())
	if err != nil {
		return nil, repoErr(s.log, "record verification", "file", err)
	}
	return file, nil
}

// Delete removes the request's objects from the store, then its metadata.
// Store failures are logged and reported but never stop the metadata delete.
func (s *RequestService) Delete(ctx context.Context, caller domain.Caller, id string) (*DeletionReport, error) {
	req, err := s.loadAccessible(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return s.deleteRequest(ctx, req)
}

func (s *RequestService) deleteRequest(ctx context.Context, req *domain.AnalysisRequest) (*DeletionReport, error) {
	report := &DeletionReport{
		RequestID: req.ID,
		Objects:   s.deleteObjects(ctx, req.Files),
	}

	err := s.requests.Delete(ctx, req.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, upstream(s.log, "delete request", err)
	}
	s.log.Info("request deleted",
		zap.String("request_id", req.ID),
		zap.Int("objects", len(report.Objects)),
		zap.Int("objects_failed", report.Failed()))
	return report, nil
}

func (s *RequestService) deleteObjects(ctx context.Context, files []domain.UploadedFile) []ObjectDeletion {
	outcomes := make([]ObjectDeletion, len(files))
	var g errgroup.Group
	g.SetLimit(deleteParallelism)
	for i, f := range files {
		g.Go(func() error {
			outcomes[i] = ObjectDeletion{Key: f.StorageKey, Deleted: true}
			if err := s.store.DeleteObject(ctx, f.StorageKey); err != nil {
				s.log.Warn("failed to delete object", zap.String("key", f.StorageKey), zap.Error(err))
				outcomes[i] = ObjectDeletion{Key: f.StorageKey, Error: err.Error()}
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// deleteAllForUser removes every request owned by userID.
func (s *RequestService) deleteAllForUser(ctx context.Context, userID string) ([]*DeletionReport, error) {
	reqs, _, err := s.requests.List(ctx, domain.RequestFilter{UserID: userID})
	if err != nil {
		return nil, upstream(s.log, "list requests", err)
	}
	reports := make([]*DeletionReport, 0, len(reqs))
	for i := range reqs {
		report, err := s.deleteRequest(ctx, &reqs[i])
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Stats counts requests by status, scoped like List.
func (s *RequestService) Stats(ctx context.Context, caller domain.Caller) (*domain.RequestStats, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	userID := caller.UserID
	if caller.IsReviewer() {
		userID = ""
	}
	stats, err := s.requests.CountByStatus(ctx, userID)
	if err != nil {
		return nil, upstream(s.log, "count requests", err)
	}
	return &stats, nil
}

// loadAccessible loads a request the caller owns or may review.
func (s *RequestService) loadAccessible(ctx context.Context, caller domain.Caller, id string) (*domain.AnalysisRequest, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, repoErr(s.log, "load request", "request", err)
	}
	if !caller.CanAccess(req.UserID) {
		return nil, ErrForbidden.New("request belongs to another user")
	}
	return req, nil
}

func (s *RequestService) attachOwner(ctx context.Context, req *domain.AnalysisRequest) error {
	return s.attachOwners(ctx, []*domain.AnalysisRequest{req})
}

// attachOwners fills Owner on each request, looking every user up once.
func (s *RequestService) attachOwners(ctx context.Context, reqs []*domain.AnalysisRequest) error {
	owners := map[string]*domain.UserSummary{}
	for _, req := range reqs {
		summary, ok := owners[req.UserID]
		if !ok {
			user, err := s.users.GetByID(ctx, req.UserID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
			case err != nil:
				return upstream(s.log, "load owner", err)
			default:
				summary = user.Summary()
			}
			owners[req.UserID] = summary
		}
		req.Owner = summary
	}
	return nil
}

func invalidField(field, message string) error {
	return ErrInvalidArgument.Wrap(&ValidationError{Fields: []FieldError{{Field: field, Message: message}}})
}
