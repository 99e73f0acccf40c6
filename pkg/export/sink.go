package export

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/fsnow/replay-decoder/pkg/decoder"
)

// UpdatesSuffix is appended to the replay collection name to name the
// collection that holds per-update documents
const UpdatesSuffix = "_updates"

// DefaultConnectTimeout bounds server selection when connecting
const DefaultConnectTimeout = 10 * time.Second

// MongoSink stores decoded replays in MongoDB
type MongoSink struct {
	client     *mongo.Client
	replays    *mongo.Collection
	updates    *mongo.Collection
	batchSize  int
	withUpdate bool
}

// SinkOption configures a MongoSink
type SinkOption func(*MongoSink)

// WithUpdates also stores every property update, batchSize documents per
// insert
func WithUpdates(batchSize int) SinkOption {
	return func(s *MongoSink) {
		s.withUpdate = true
		if batchSize > 0 {
			s.batchSize = batchSize
		}
	}
}

// NewMongoSink connects to MongoDB and verifies the connection
func NewMongoSink(ctx context.Context, uri, database, collection string, timeout time.Duration, opts ...SinkOption) (*MongoSink, error) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	clientOpts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &MongoSink{
		client:    client,
		replays:   db.Collection(collection),
		updates:   db.Collection(collection + UpdatesSuffix),
		batchSize: 1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close disconnects from MongoDB
func (s *MongoSink) Close(ctx context.Context) error {
	if s.client != nil {
		return s.client.Disconnect(ctx)
	}
	return nil
}

// Write stores the replay summary document and, when enabled, its updates
func (s *MongoSink) Write(ctx context.Context, r *decoder.Replay) (*Result, error) {
	start := time.Now()

	res, err := s.replays.InsertOne(ctx, Document(r))
	if err != nil {
		return &Result{Error: err, Duration: time.Since(start)}, fmt.Errorf("failed to insert replay %s: %w", r.SessionID, err)
	}
	result := &Result{Success: true, ID: res.InsertedID}

	if s.withUpdate {
		docs := UpdateDocuments(r)
		for lo := 0; lo < len(docs); lo += s.batchSize {
			hi := min(lo+s.batchSize, len(docs))
			many, err := s.updates.InsertMany(ctx, docs[lo:hi])
			if err != nil {
				result.Success = false
				result.Error = err
				result.Duration = time.Since(start)
				return result, fmt.Errorf("failed to insert updates of %s: %w", r.SessionID, err)
			}
			result.Updates += len(many.InsertedIDs)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// FindBySession loads the summary document of a session back
func (s *MongoSink) FindBySession(ctx context.Context, sessionID string) (bson.M, error) {
	var doc bson.M
	if err := s.replays.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to find replay %s: %w", sessionID, err)
	}
	return doc, nil
}

// Client returns the underlying MongoDB client
func (s *MongoSink) Client() *mongo.Client {
	return s.client
}
