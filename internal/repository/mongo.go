package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"estatechat/internal/model"
)

// ErrBackendUnavailable indicates the document store could not serve the
// request (connectivity loss, malformed server response)
var ErrBackendUnavailable = errors.New("document store unavailable")

// readOperators is the allow-list of query operators that may appear in a
// filter. Anything else is dropped before the query reaches the server;
// this store is strictly read-only.
var readOperators = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true,
	"$lte": true, "$in": true, "$nin": true, "$and": true, "$or": true,
	"$not": true, "$exists": true, "$regex": true, "$options": true,
	"$elemMatch": true, "$all": true, "$size": true,
}

// MongoStore executes read-only queries against the property database
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to MongoDB and verifies the connection
func NewMongoStore(ctx context.Context, uri, database string, maxPool uint64) (*MongoStore, error) {
	opts := options.Client().ApplyURI(uri)
	if maxPool > 0 {
		opts.SetMaxPoolSize(maxPool)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// Close disconnects the underlying client
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Find executes a filtered retrieval against one collection, excluding the
// given fields from the output
func (s *MongoStore) Find(ctx context.Context, collection string, filter map[string]any, excluded []string) ([]model.Document, error) {
	findOpts := options.Find().SetProjection(exclusionProjection(excluded))
	cur, err := s.db.Collection(collection).Find(ctx, sanitizeFilter(filter), findOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: find on %s: %v", ErrBackendUnavailable, collection, err)
	}
	defer cur.Close(ctx)

	var docs []model.Document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode from %s: %v", ErrBackendUnavailable, collection, err)
	}
	return docs, nil
}

// UnionFind executes the primary retrieval then each secondary via
// $unionWith, concatenating documents while preserving each collection's
// own field set
func (s *MongoStore) UnionFind(ctx context.Context, primary string, filter map[string]any, excluded []string, secondaries []model.Stage) ([]model.Document, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: toBSON(sanitizeFilter(filter))}},
		{{Key: "$project", Value: exclusionProjection(excluded)}},
	}
	for _, part := range secondaries {
		sub := bson.A{
			bson.D{{Key: "$match", Value: toBSON(sanitizeFilter(part.Filter))}},
			bson.D{{Key: "$project", Value: projectionFor(part.Fields, excluded)}},
		}
		pipeline = append(pipeline, bson.D{{
			Key: "$unionWith",
			Value: bson.D{
				{Key: "coll", Value: part.Collection},
				{Key: "pipeline", Value: sub},
			},
		}})
	}

	cur, err := s.db.Collection(primary).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate on %s: %v", ErrBackendUnavailable, primary, err)
	}
	defer cur.Close(ctx)

	var docs []model.Document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode from %s: %v", ErrBackendUnavailable, primary, err)
	}
	return docs, nil
}

// Healthy pings the server with a short deadline
func (s *MongoStore) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx, nil) == nil
}

// sanitizeFilter drops every operator not on the read allow-list, at any
// nesting depth. Plain field comparisons pass through untouched.
func sanitizeFilter(filter map[string]any) map[string]any {
	if filter == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(filter))
	for key, value := range filter {
		if len(key) > 0 && key[0] == '$' && !readOperators[key] {
			continue
		}
		out[key] = sanitizeValue(value)
	}
	return out
}

func sanitizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return sanitizeFilter(v)
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, sanitizeValue(item))
		}
		return out
	default:
		return value
	}
}

// exclusionProjection builds a projection that strips the given fields
func exclusionProjection(excluded []string) bson.D {
	proj := bson.D{}
	seen := map[string]bool{}
	for _, f := range excluded {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		proj = append(proj, bson.E{Key: f, Value: 0})
	}
	if !seen["_id"] {
		proj = append(proj, bson.E{Key: "_id", Value: 0})
	}
	return proj
}

// projectionFor builds a union part's projection: when the part names its
// permitted fields the projection includes exactly those (schemas differ
// across collections, so each part projects its own list); otherwise it
// falls back to stripping the excluded fields.
func projectionFor(fields, excluded []string) bson.D {
	if len(fields) == 0 {
		return exclusionProjection(excluded)
	}
	proj := bson.D{{Key: "_id", Value: 0}}
	for _, f := range fields {
		proj = append(proj, bson.E{Key: f, Value: 1})
	}
	return proj
}

func toBSON(m map[string]any) bson.M {
	out := bson.M{}
	for k, v := range m {
		switch vv := v.(type) {
		case map[string]any:
			out[k] = toBSON(vv)
		default:
			out[k] = v
		}
	}
	return out
}
