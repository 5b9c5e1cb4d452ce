package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/KyleWhite22/GameGeniusAI/internal/core/session"
)

const collectionName = "sessions"

type sessionDocument struct {
	CreatedAt time.Time         `bson:"createdAt"`
	ExpiresAt time.Time         `bson:"expiresAt"`
	Identity  *session.Identity `bson:"identity,omitempty"`
	ID        string            `bson:"_id"`
}

// SessionRepository stores sessions in a collection with a TTL index on expiresAt
type SessionRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewSessionRepository creates the repository and ensures its TTL index exists
func NewSessionRepository(ctx context.Context, db *mongo.Database) (*SessionRepository, error) {
	coll := db.Collection(collectionName)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session TTL index: %w", err)
	}

	return &SessionRepository{coll: coll, now: time.Now}, nil
}

// Get loads a live session by id. The TTL monitor runs about once a minute,
// so expiry is also enforced in the filter.
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	filter := bson.M{"_id": id, "expiresAt": bson.M{"$gt": r.now()}}

	var doc sessionDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session.Session{
		ID:        doc.ID,
		Identity:  doc.Identity,
		CreatedAt: doc.CreatedAt,
		ExpiresAt: doc.ExpiresAt,
	}, nil
}

// Save replaces the whole session document
func (r *SessionRepository) Save(ctx context.Context, sess *session.Session) error {
	if sess.ID == "" {
		return errors.New("session id cannot be empty")
	}

	doc := sessionDocument{
		ID:        sess.ID,
		Identity:  sess.Identity,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	}
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": sess.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes a session by id
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if res.DeletedCount == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}
