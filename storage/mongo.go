package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/clusterforge/nodeident/interfaces"
)

// usersCollection holds one credential record per node, keyed by _id.
const usersCollection = "users"

// connectTimeout bounds the initial connectivity probe. Credential
// issuance fails fast rather than queueing behind an unreachable store.
const connectTimeout = 10 * time.Second

// MongoBackend implements the credential store of record on MongoDB.
type MongoBackend struct {
	client      *mongo.Client
	users       *mongo.Collection
	log         *slog.Logger
	locationURI string
}

// NewMongoBackend connects to the MongoDB deployment at uri and verifies
// connectivity with a ping before returning. Records land in the users
// collection of the named database.
func NewMongoBackend(ctx context.Context, uri, database string, log *slog.Logger) (*MongoBackend, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	log.Debug("Connected to credential database",
		slog.String("database", database))

	return &MongoBackend{
		client:      client,
		users:       client.Database(database).Collection(usersCollection),
		log:         log,
		locationURI: uri,
	}, nil
}

// Supersede deletes any prior record for the node and inserts the new
// one. The delete is defensive cleanup for the case where credentials
// were lost locally while a stale record survived remotely; deleting a
// record that does not exist is not an error.
func (b *MongoBackend) Supersede(ctx context.Context, record interfaces.CredentialRecord) error {
	if _, err := b.users.DeleteOne(ctx, bson.M{"_id": record.UserID}); err != nil {
		return fmt.Errorf("failed to delete stale credential record: %w", err)
	}

	if _, err := b.users.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to insert credential record: %w", err)
	}

	b.log.Debug("Superseded credential record",
		slog.String("user_id", record.UserID),
		slog.String("scope", record.Scope))
	return nil
}

// Available checks the deployment responds to a ping.
func (b *MongoBackend) Available(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := b.client.Ping(pingCtx, readpref.Primary()); err != nil {
		b.log.Debug("Mongo backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this backend.
func (b *MongoBackend) Name() string {
	return fmt.Sprintf("mongo-%s", b.users.Database().Name())
}

// LocationURI returns the URI that identifies this backend.
func (b *MongoBackend) LocationURI() string {
	return b.locationURI
}

// Close disconnects from the deployment.
func (b *MongoBackend) Close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}
