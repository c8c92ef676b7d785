package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	config "example.com/socialfeed/internal/init"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/models"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
)

var logg = logger.New()

// Sentinel errors reported by lookups. Callers map these onto their own
// error kinds; the store never fabricates empty results for missing rows.
var (
	ErrUserNotFound = errors.New("store: user not found")
	ErrPostNotFound = errors.New("store: post not found")
)

// --- Interfaces ---

// StoreInterface is the query surface the feed engine depends on. The
// relational store is the source of truth; the feed cache is advisory.
type StoreInterface interface {
	CreateUser(ctx context.Context, name, email, profilePicture string) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserIDByEmail(ctx context.Context, email string) (string, error)
	CreateFollow(ctx context.Context, followerID, followeeID string) error
	GetFollowing(ctx context.Context, userID string) ([]string, error)
	GetFollowers(ctx context.Context, userID string) ([]string, error)

	AddPost(ctx context.Context, post models.Post) error
	GetPost(ctx context.Context, id string) (models.Post, error)
	PublicPostsPage(ctx context.Context, limit int) ([]models.Post, error)
	PostsByIDsPublic(ctx context.Context, ids []string, limit int) ([]models.Post, error)
	PostsByIDs(ctx context.Context, ids []string, limit int) ([]models.Post, error)
	PersonalFeedCandidates(ctx context.Context, viewerID string, followingIDs []string, limit int) ([]models.Post, error)

	ToggleLike(ctx context.Context, postID, userID string, liked bool) (*models.Like, error)
	AddComment(ctx context.Context, postID, userID, content string) (models.Comment, error)
	Close()
}

// --- Store Implementation ---

type Store struct {
	pool *pgxpool.Pool
}

// New initializes the Postgres pool using the config package and applies
// pending schema migrations.
func New(ctx context.Context) (StoreInterface, error) {
	cfg := config.Get()

	if err := runMigrations(cfg.PostgresDSN); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create Postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	logg.Info("store", "Connected to Postgres (DSN anonymized)")
	return &Store{pool: pool}, nil
}

// --- Migration runner ---

func runMigrations(dsn string) error {
	migrationsPath := filepath.Join("./migrations/postgres")
	sourceURL := fmt.Sprintf("file://%s", migrationsPath)

	// The migrate pgx driver registers under the pgx5 scheme.
	dbURL := strings.Replace(dsn, "postgres://", "pgx5://", 1)

	m, err := migrate.New(sourceURL, dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}

	if err == migrate.ErrNoChange {
		logg.Info("store", "No new migrations to apply")
	} else {
		logg.Info("store", "Migrations applied successfully")
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
		logg.Info("store", "Postgres pool closed")
	}
}
