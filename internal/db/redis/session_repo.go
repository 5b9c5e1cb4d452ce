package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/KyleWhite22/GameGeniusAI/internal/core/session"
)

const defaultPrefix = "sess:"

// SessionRepository stores sessions as JSON values whose key TTL tracks ExpiresAt
type SessionRepository struct {
	client goredis.UniversalClient
	prefix string
}

// NewSessionRepository creates a Redis session repository
func NewSessionRepository(client goredis.UniversalClient) *SessionRepository {
	return &SessionRepository{client: client, prefix: defaultPrefix}
}

func (r *SessionRepository) key(id string) string {
	return r.prefix + id
}

// Get loads a live session by id
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	// key TTL is second-granular, so guard against the tail
	if sess.Expired(time.Now()) {
		return nil, session.ErrSessionNotFound
	}
	return &sess, nil
}

// Save writes the session with a key TTL ending at ExpiresAt
func (r *SessionRepository) Save(ctx context.Context, sess *session.Session) error {
	if sess.ID == "" {
		return errors.New("session id cannot be empty")
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ShortID(sess.ID))
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := r.client.Set(ctx, r.key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes a session by id
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}
