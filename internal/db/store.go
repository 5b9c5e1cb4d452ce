// Package db opens the configured session store backend.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/KyleWhite22/GameGeniusAI/internal/core/session"
	"github.com/KyleWhite22/GameGeniusAI/internal/db/mongodb"
	"github.com/KyleWhite22/GameGeniusAI/internal/db/postgres"
	"github.com/KyleWhite22/GameGeniusAI/internal/db/redis"
)

const defaultMongoDatabase = "gamegenius"

// ErrUnsupportedStore is returned for a store URL whose scheme has no backend
var ErrUnsupportedStore = errors.New("unsupported session store")

// OpenSessionStore connects to the backend named by the URL scheme
// (postgres, redis or mongodb) and returns the store with its close func.
func OpenSessionStore(ctx context.Context, rawURL string) (session.Store, func() error, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse store URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return openPostgres(ctx, rawURL)
	case "redis", "rediss":
		return openRedis(ctx, rawURL)
	case "mongodb", "mongodb+srv":
		return openMongo(ctx, rawURL, u)
	default:
		return nil, nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedStore, u.Scheme)
	}
}

func openPostgres(ctx context.Context, dsn string) (session.Store, func() error, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("connected to session database", "backend", "postgres")

	if err := postgres.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return postgres.NewSessionRepository(db), db.Close, nil
}

func openRedis(ctx context.Context, rawURL string) (session.Store, func() error, error) {
	opts, err := goredis.ParseURL(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	slog.Info("connected to session database", "backend", "redis", "addr", opts.Addr)
	return redis.NewSessionRepository(client), client.Close, nil
}

func openMongo(ctx context.Context, rawURL string, u *url.URL) (session.Store, func() error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(rawURL))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	closeFn := func() error { return client.Disconnect(context.Background()) }

	if err := client.Ping(ctx, nil); err != nil {
		_ = closeFn()
		return nil, nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		name = defaultMongoDatabase
	}

	repo, err := mongodb.NewSessionRepository(ctx, client.Database(name))
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}

	slog.Info("connected to session database", "backend", "mongodb", "database", name)
	return repo, closeFn, nil
}
