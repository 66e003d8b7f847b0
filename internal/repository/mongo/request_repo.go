package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"alcyxob/analysis-portal/internal/domain"
	"alcyxob/analysis-portal/internal/repository"
)

const requestCollectionName = "analysis_requests"

// mongoRequestRepository implements repository.RequestRepository.
// Files live in their own collection and are joined on read.
type mongoRequestRepository struct {
	collection *mongo.Collection
	files      *mongo.Collection
}

// NewMongoRequestRepository creates a new request repository backed by MongoDB.
func NewMongoRequestRepository(db *mongo.Database) repository.RequestRepository {
	return &mongoRequestRepository{
		collection: db.Collection(requestCollectionName),
		files:      db.Collection(fileCollectionName),
	}
}

// Create inserts the request and then its files. Without a replica set there
// is no multi-document transaction, so a failed file insert removes the
// request again.
func (r *mongoRequestRepository) Create(ctx context.Context, req *domain.AnalysisRequest, files []domain.UploadedFile) error {
	if req.UserID == "" || req.Title == "" {
		return repository.ErrInvalidRecord
	}

	now := time.Now().UTC()
	req.ID = uuid.NewString()
	if req.Status == "" {
		req.Status = domain.StatusPending
	}
	req.CreatedAt, req.UpdatedAt = now, now

	if _, err := r.collection.InsertOne(ctx, req); err != nil {
		return err
	}

	stored := make([]domain.UploadedFile, len(files))
	docs := make([]interface{}, len(files))
	for i, f := range files {
		f.ID = uuid.NewString()
		f.RequestID = req.ID
		if f.Verification == "" {
			f.Verification = domain.VerificationUnverified
		}
		f.CreatedAt, f.UpdatedAt = now, now
		stored[i] = f
		docs[i] = f
	}
	if len(docs) > 0 {
		if _, err := r.files.InsertMany(ctx, docs); err != nil {
			_, _ = r.files.DeleteMany(ctx, bson.M{"requestId": req.ID})
			_, _ = r.collection.DeleteOne(ctx, bson.M{"_id": req.ID})
			return err
		}
	}
	req.Files = stored
	return nil
}

// GetByID retrieves a request and its files.
func (r *mongoRequestRepository) GetByID(ctx context.Context, id string) (*domain.AnalysisRequest, error) {
	return r.findOne(ctx, bson.M{"_id": id}, nil)
}

func (r *mongoRequestRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*domain.AnalysisRequest, error) {
	var req domain.AnalysisRequest
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&req); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if err := r.attachFiles(ctx, []*domain.AnalysisRequest{&req}); err != nil {
		return nil, err
	}
	return &req, nil
}

func requestFilter(filter domain.RequestFilter) bson.M {
	query := bson.M{}
	if filter.UserID != "" {
		query["userId"] = filter.UserID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	return query
}

// List returns one page of requests, newest first, and the total match count.
func (r *mongoRequestRepository) List(ctx context.Context, filter domain.RequestFilter) ([]domain.AnalysisRequest, int, error) {
	query := requestFilter(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetSkip(int64(max(filter.Offset, 0))).SetLimit(int64(filter.Limit))
	}
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	page := []domain.AnalysisRequest{}
	if err := cursor.All(ctx, &page); err != nil {
		return nil, 0, err
	}

	ptrs := make([]*domain.AnalysisRequest, len(page))
	for i := range page {
		ptrs[i] = &page[i]
	}
	if err := r.attachFiles(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	return page, int(total), nil
}

// CountByStatus groups the (optionally owner-scoped) requests by status.
func (r *mongoRequestRepository) CountByStatus(ctx context.Context, userID string) (domain.RequestStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: requestFilter(domain.RequestFilter{UserID: userID})}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$status"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.RequestStats{}, err
	}
	defer cursor.Close(ctx)

	var groups []struct {
		Status domain.RequestStatus `bson:"_id"`
		Count  int                  `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return domain.RequestStats{}, err
	}

	var stats domain.RequestStats
	for _, g := range groups {
		stats.Total += g.Count
		switch g.Status {
		case domain.StatusPending:
			stats.Pending = g.Count
		case domain.StatusInProgress:
			stats.InProgress = g.Count
		case domain.StatusCompleted:
			stats.Completed = g.Count
		case domain.StatusCancelled:
			stats.Cancelled = g.Count
		}
	}
	return stats, nil
}

// FindByResultFileURL finds the request whose attached result points at resultFileURL.
func (r *mongoRequestRepository) FindByResultFileURL(ctx context.Context, resultFileURL string) (*domain.AnalysisRequest, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.findOne(ctx, bson.M{"resultFileUrl": resultFileURL}, opts)
}

func (r *mongoRequestRepository) update(ctx context.Context, id string, set bson.M) (*domain.AnalysisRequest, error) {
	set["updatedAt"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var req domain.AnalysisRequest
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if err := r.attachFiles(ctx, []*domain.AnalysisRequest{&req}); err != nil {
		return nil, err
	}
	return &req, nil
}

// UpdateStatus sets the request status.
func (r *mongoRequestRepository) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) (*domain.AnalysisRequest, error) {
	return r.update(ctx, id, bson.M{"status": status})
}

// SetResult writes the supplied result fields and marks the request completed.
// A nil field keeps its stored value.
func (r *mongoRequestRepository) SetResult(ctx context.Context, id string, resultText, resultFileURL *string, at time.Time) (*domain.AnalysisRequest, error) {
	set := bson.M{
		"resultCreatedAt": at,
		"status":          domain.StatusCompleted,
	}
	if resultText != nil {
		set["resultText"] = *resultText
	}
	if resultFileURL != nil {
		set["resultFileUrl"] = *resultFileURL
	}
	return r.update(ctx, id, set)
}

// Delete removes the request and its file rows.
func (r *mongoRequestRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	_, err = r.files.DeleteMany(ctx, bson.M{"requestId": id})
	return err
}

// attachFiles loads the files of every request in one query.
func (r *mongoRequestRepository) attachFiles(ctx context.Context, reqs []*domain.AnalysisRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	ids := make([]string, len(reqs))
	byID := make(map[string]*domain.AnalysisRequest, len(reqs))
	for i, req := range reqs {
		ids[i] = req.ID
		req.Files = []domain.UploadedFile{}
		byID[req.ID] = req
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.files.Find(ctx, bson.M{"requestId": bson.M{"$in": ids}}, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	var files []domain.UploadedFile
	if err := cursor.All(ctx, &files); err != nil {
		return err
	}
	for _, f := range files {
		if req, ok := byID[f.RequestID]; ok {
			req.Files = append(req.Files, f)
		}
	}
	return nil
}

// ensureRequestIndexes creates necessary indexes for the requests collection.
func ensureRequestIndexes(ctx context.Context, log *zap.Logger, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Owner listings, newest first
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "resultFileUrl", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Warn("failed to create indexes", zap.String("collection", collection.Name()), zap.Error(err))
	}
}
