package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/KyleWhite22/GameGeniusAI/internal/core/session"
	"github.com/KyleWhite22/GameGeniusAI/internal/db/migrations"
)

// Migrate applies the embedded session schema migrations
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

type postgresSessionRepo struct {
	db *sql.DB
}

// SessionRepository is the Postgres-backed session store.
// Expired rows are invisible to Get and removed by DeleteExpired.
type SessionRepository interface {
	session.Store
	session.Sweeper
}

// NewSessionRepository creates a PostgreSQL session repository
func NewSessionRepository(db *sql.DB) SessionRepository {
	return &postgresSessionRepo{db: db}
}

// Get loads a live session by id
func (r *postgresSessionRepo) Get(ctx context.Context, id string) (*session.Session, error) {
	query := `
		SELECT id, identity, created_at, expires_at
		FROM sessions
		WHERE id = $1 AND expires_at > NOW()`

	var (
		sess        session.Session
		rawIdentity []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sess.ID,
		&rawIdentity,
		&sess.CreatedAt,
		&sess.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if len(rawIdentity) > 0 {
		var ident session.Identity
		if err := json.Unmarshal(rawIdentity, &ident); err != nil {
			return nil, fmt.Errorf("failed to decode session identity: %w", err)
		}
		sess.Identity = &ident
	}

	return &sess, nil
}

// Save upserts a session. The identity column is always replaced as a whole.
func (r *postgresSessionRepo) Save(ctx context.Context, sess *session.Session) error {
	if sess.ID == "" {
		return errors.New("session id cannot be empty")
	}

	// nil stores SQL NULL for anonymous sessions
	var rawIdentity any
	if sess.Identity != nil {
		b, err := json.Marshal(sess.Identity)
		if err != nil {
			return fmt.Errorf("failed to encode session identity: %w", err)
		}
		rawIdentity = string(b)
	}

	query := `
		INSERT INTO sessions (id, identity, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, NOW(), $4)
		ON CONFLICT (id) DO UPDATE SET
			identity = EXCLUDED.identity,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, sess.ID, rawIdentity, sess.CreatedAt, sess.ExpiresAt); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes a session by id
func (r *postgresSessionRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

// DeleteExpired removes sessions past their expiry and returns how many were removed
func (r *postgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
