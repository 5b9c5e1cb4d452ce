package session

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is how long a session stays valid after its last authenticated write
const DefaultTTL = 7 * 24 * time.Hour

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrStoreUnavailable = errors.New("session store unavailable")
	ErrInvalidCookie    = errors.New("invalid session cookie")
)

// Identity is the verified external account bound to a session after login
type Identity struct {
	Raw         map[string]any `json:"raw,omitempty" bson:"raw,omitempty"`
	Provider    string         `json:"provider" bson:"provider"`
	ExternalID  string         `json:"externalId" bson:"externalId"`
	DisplayName string         `json:"displayName" bson:"displayName"`
	ProfileURI  string         `json:"profileUri" bson:"profileUri"`
}

// Session is one browser's server-side context.
// A Session with an empty ID has never been written to the store.
type Session struct {
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Identity  *Identity `json:"identity"`
	ID        string    `json:"id"`

	// previousID is the stored id being replaced by a rotation
	previousID string
	// unverifiedID is the cookie's id when the store could not be read;
	// logout still has to delete it
	unverifiedID string
	dirty        bool
	rotate       bool
}

// IsNew reports whether the session has never been persisted
func (s *Session) IsNew() bool {
	return s.ID == ""
}

// IsAuthenticated reports whether an identity is bound to the session
func (s *Session) IsAuthenticated() bool {
	return s.Identity != nil
}

// Expired reports whether the session is past its expiry at the given time
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Authenticate replaces the session identity wholesale and schedules an id rotation.
// The change is only durable once the Manager commits the session.
func (s *Session) Authenticate(id Identity) {
	cp := id
	s.Identity = &cp
	s.dirty = true
	s.rotate = true
}

// Dirty reports whether the session has uncommitted changes
func (s *Session) Dirty() bool {
	return s.dirty
}

// Store is the durable key → session mapping.
// Implementations must not return sessions whose ExpiresAt has passed.
type Store interface {
	// Get returns ErrSessionNotFound when the id is unknown or expired
	Get(ctx context.Context, id string) (*Session, error)
	// Save upserts the session keyed by ID, expiring it at ExpiresAt
	Save(ctx context.Context, s *Session) error
	// Delete returns ErrSessionNotFound when nothing was removed
	Delete(ctx context.Context, id string) error
}

// Sweeper is implemented by stores without native expiry
type Sweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// ShortID returns a log-safe prefix of a session id
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
