package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StoreErrorRecorder receives store failures for metrics; op is "get", "save" or "delete"
type StoreErrorRecorder interface {
	StoreError(op string)
}

// Manager ties the signed cookie to Store records.
// It is the single persistence point for session mutations.
type Manager struct {
	store        Store
	codec        *CookieCodec
	recorder     StoreErrorRecorder
	now          func() time.Time
	ttl          time.Duration
	storeTimeout time.Duration
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithClock overrides the time source
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithStoreTimeout bounds each store round trip
func WithStoreTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.storeTimeout = d }
}

// WithErrorRecorder reports store failures
func WithErrorRecorder(r StoreErrorRecorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// NewManager creates a Manager. ttl of zero means DefaultTTL.
func NewManager(store Store, codec *CookieCodec, ttl time.Duration, opts ...ManagerOption) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{
		store:        store,
		codec:        codec,
		ttl:          ttl,
		now:          time.Now,
		storeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) storeFailed(op string) {
	if m.recorder != nil {
		m.recorder.StoreError(op)
	}
}

// Load resolves the request's session. It never fails: an absent, invalid or expired
// cookie, an evicted record, or an unreachable store all yield a fresh anonymous session
// that is not written anywhere until something mutates it.
func (m *Manager) Load(r *http.Request) *Session {
	id, err := m.codec.Decode(r)
	if err != nil {
		return &Session{}
	}

	ctx, cancel := context.WithTimeout(r.Context(), m.storeTimeout)
	defer cancel()

	sess, err := m.store.Get(ctx, id)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return &Session{}
	case err != nil:
		m.storeFailed("get")
		slog.WarnContext(r.Context(), "session load failed, continuing anonymous",
			"session", ShortID(id), "error", err)
		return &Session{unverifiedID: id}
	}

	if sess.Expired(m.now()) {
		return &Session{}
	}
	return sess
}

// Commit persists a mutated session and emits its cookie. It must be called before the
// response is written. The store write is detached from the request's cancellation so a
// client disconnect cannot abandon it halfway; it is bounded by the store timeout instead.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if !sess.dirty {
		return nil
	}

	next := *sess
	if next.ID == "" || next.rotate {
		id, err := NewID()
		if err != nil {
			return err
		}
		next.previousID = sess.ID
		if next.previousID == "" {
			next.previousID = sess.unverifiedID
		}
		next.unverifiedID = ""
		next.ID = id
		next.CreatedAt = time.Time{}
	}

	now := m.now().UTC()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.ExpiresAt = now.Add(m.ttl)

	cookie, err := m.codec.Encode(next.ID)
	if err != nil {
		return err
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.storeTimeout)
	defer cancel()

	if err := m.store.Save(flushCtx, &next); err != nil {
		m.storeFailed("save")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if next.previousID != "" {
		if err := m.store.Delete(flushCtx, next.previousID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			m.storeFailed("delete")
			slog.WarnContext(ctx, "failed to delete rotated session",
				"session", ShortID(next.previousID), "error", err)
		}
	}

	next.previousID = ""
	next.dirty = false
	next.rotate = false
	*sess = next

	http.SetCookie(w, cookie)
	return nil
}

// Destroy deletes the stored session and clears the cookie. The store deletion completes
// before Destroy returns; a record that is already gone counts as deleted.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	id := sess.ID
	if id == "" {
		id = sess.unverifiedID
	}
	if id != "" {
		delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.storeTimeout)
		defer cancel()

		if err := m.store.Delete(delCtx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			m.storeFailed("delete")
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	*sess = Session{}
	http.SetCookie(w, m.codec.Expired())
	return nil
}
