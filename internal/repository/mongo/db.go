package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"alcyxob/analysis-portal/internal/repository"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// It returns the mongo.Client which can be used to access databases and collections.
func ConnectDB(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// Ping the primary so a reachable but unresponsive server fails here
	// rather than on the first request.
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = DisconnectDB(client)
		return nil, err
	}
	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes every collection relies on.
// A failure is logged and startup continues.
func EnsureIndexes(ctx context.Context, log *zap.Logger, db *mongo.Database) {
	ensureUserIndexes(ctx, log, db.Collection(userCollectionName))
	ensureRequestIndexes(ctx, log, db.Collection(requestCollectionName))
	ensureFileIndexes(ctx, log, db.Collection(fileCollectionName))
}

// New returns the repositories backed by db. Close disconnects client.
func New(client *mongo.Client, db *mongo.Database) repository.Repositories {
	return repository.Repositories{
		Users:    NewMongoUserRepository(db),
		Requests: NewMongoRequestRepository(db),
		Files:    NewMongoFileRepository(db),
		Close:    func(context.Context) error { return DisconnectDB(client) },
	}
}
