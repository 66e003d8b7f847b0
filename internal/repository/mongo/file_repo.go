package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"alcyxob/analysis-portal/internal/domain"
	"alcyxob/analysis-portal/internal/repository"
)

const fileCollectionName = "uploaded_files"

// mongoFileRepository implements repository.FileRepository
type mongoFileRepository struct {
	collection *mongo.Collection
}

// NewMongoFileRepository creates a new file repository backed by MongoDB.
func NewMongoFileRepository(db *mongo.Database) repository.FileRepository {
	return &mongoFileRepository{
		collection: db.Collection(fileCollectionName),
	}
}

func (r *mongoFileRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*domain.UploadedFile, error) {
	var file domain.UploadedFile
	if err := r.collection.FindOne(ctx, filter, opts...).Decode(&file); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

// GetByID retrieves file metadata by its ID.
func (r *mongoFileRepository) GetByID(ctx context.Context, id string) (*domain.UploadedFile, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByStorageKey retrieves the newest file row registered under key.
func (r *mongoFileRepository) GetByStorageKey(ctx context.Context, key string) (*domain.UploadedFile, error) {
	return r.findOne(ctx, bson.M{"s3Key": key}, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *mongoFileRepository) update(ctx context.Context, id string, set bson.M) (*domain.UploadedFile, error) {
	set["updatedAt"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var file domain.UploadedFile
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&file)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

// SetAnalysisResult updates only the fields that are non-nil.
func (r *mongoFileRepository) SetAnalysisResult(ctx context.Context, id string, result, resultFileURL *string) (*domain.UploadedFile, error) {
	set := bson.M{}
	if result != nil {
		set["analysisResult"] = *result
	}
	if resultFileURL != nil {
		set["analysisResultFileUrl"] = *resultFileURL
	}
	return r.update(ctx, id, set)
}

// SetVerification records the outcome of checking the object store.
func (r *mongoFileRepository) SetVerification(ctx context.Context, id string, state domain.VerificationState, at time.Time) (*domain.UploadedFile, error) {
	return r.update(ctx, id, bson.M{"verification": state, "verifiedAt": at})
}

// ensureFileIndexes creates necessary indexes for the files collection.
func ensureFileIndexes(ctx context.Context, log *zap.Logger, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "requestId", Value: 1}},
		},
		{
			// Key lookups from bare download references
			Keys: bson.D{{Key: "s3Key", Value: 1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Warn("failed to create indexes", zap.String("collection", collection.Name()), zap.Error(err))
	}
}
