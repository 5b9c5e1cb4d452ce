package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/KyleWhite22/GameGeniusAI/internal/core/session"
)

func setupTestRepo(t *testing.T) *SessionRepository {
	uri := os.Getenv("TEST_MONGO_URL")
	if uri == "" {
		t.Skip("TEST_MONGO_URL not set, skipping MongoDB session store tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database("gamegenius_test")
	t.Cleanup(func() { _ = db.Collection(collectionName).Drop(context.Background()) })

	repo, err := NewSessionRepository(ctx, db)
	require.NoError(t, err)
	return repo
}

func TestSessionRepository_RoundTrip(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	sess := &session.Session{
		ID:        "mongo-session-1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
		Identity:  &session.Identity{Provider: "steam", ExternalID: "76561198000000000"},
	}
	require.NoError(t, repo.Save(ctx, sess))

	got, err := repo.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "76561198000000000", got.Identity.ExternalID)
	assert.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, repo.Delete(ctx, sess.ID))
	_, err = repo.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, sess.ID), session.ErrSessionNotFound)
}

func TestSessionRepository_ExpiredIsNotFound(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Save(ctx, &session.Session{ID: "mongo-expired", CreatedAt: now, ExpiresAt: now.Add(-time.Minute)}))

	_, err := repo.Get(ctx, "mongo-expired")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}
