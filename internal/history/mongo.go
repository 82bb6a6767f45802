package history

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

const sessionsCollection = "chat_sessions"

// sessionDoc is the persisted shape: one document per session with the
// turns embedded in order
type sessionDoc struct {
	ID        string       `bson:"_id"`
	Turns     []model.Turn `bson:"turns"`
	CreatedAt time.Time    `bson:"created_at"`
	UpdatedAt time.Time    `bson:"updated_at"`
}

// ConnectMongo opens a client for history storage and verifies the
// connection with a ping
func ConnectMongo(ctx context.Context, uri string, maxPool uint64) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(uri)
	if maxPool > 0 {
		opts.SetMaxPoolSize(maxPool)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// MongoStore persists a session's history as a single session document
type MongoStore struct {
	col       *mongo.Collection
	sessionID string
}

// NewMongoStore creates a history store bound to one session document
func NewMongoStore(db *mongo.Database, sessionID string) *MongoStore {
	return &MongoStore{
		col:       db.Collection(sessionsCollection),
		sessionID: sessionID,
	}
}

// Append pushes a turn onto the session document, creating it on first use
func (s *MongoStore) Append(ctx context.Context, turn model.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	now := time.Now()
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": s.sessionID},
		bson.M{
			"$push":        bson.M{"turns": turn},
			"$set":         bson.M{"updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// ReplaceLastOfRole rewrites the most recent turn of the given role inside
// the session document, appending when no such turn exists
func (s *MongoStore) ReplaceLastOfRole(ctx context.Context, role model.Role, text string) error {
	var doc sessionDoc
	err := s.col.FindOne(ctx, bson.M{"_id": s.sessionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return s.Append(ctx, model.Turn{Role: role, Text: text})
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	for i := len(doc.Turns) - 1; i >= 0; i-- {
		if doc.Turns[i].Role == role {
			doc.Turns[i].Text = text
			_, err = s.col.UpdateOne(ctx,
				bson.M{"_id": s.sessionID},
				bson.M{"$set": bson.M{"turns": doc.Turns, "updated_at": time.Now()}},
			)
			if err != nil {
				return fmt.Errorf("failed to replace turn: %w", err)
			}
			return nil
		}
	}
	return s.Append(ctx, model.Turn{Role: role, Text: text})
}

// Snapshot returns the session's full history
func (s *MongoStore) Snapshot(ctx context.Context) ([]model.Turn, error) {
	var doc sessionDoc
	err := s.col.FindOne(ctx, bson.M{"_id": s.sessionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []model.Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return doc.Turns, nil
}
