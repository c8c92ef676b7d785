package store

import (
	"context"
	"time"

	"example.com/socialfeed/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// --- User operations ---

// GetUserIDByEmail returns the existing user id by email.
// If the user does not exist, it returns empty string without an error.
func (s *Store) GetUserIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM users WHERE email = $1`, email,
	).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		logg.Error("store", "Failed to query user by email", err)
		return "", err
	}
	return id, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, profile_picture, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.ProfilePicture, &u.Created)
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.User{}, ErrUserNotFound
		}
		logg.Error("store", "Failed to query user", err)
		return models.User{}, err
	}
	return u, nil
}

// CreateUser creates a new user if the email does not exist. Returns the
// existing user if the email is already registered.
func (s *Store) CreateUser(ctx context.Context, name, email, profilePicture string) (models.User, error) {
	existingID, err := s.GetUserIDByEmail(ctx, email)
	if err != nil {
		return models.User{}, err
	}
	if existingID != "" {
		return s.GetUser(ctx, existingID)
	}

	u := models.User{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          email,
		ProfilePicture: profilePicture,
		Created:        time.Now().UTC(),
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, profile_picture, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING`,
		u.ID, u.Name, u.Email, u.ProfilePicture, u.Created,
	)
	if err != nil {
		logg.Error("store", "Failed to create user", err)
		return models.User{}, err
	}

	// Another request may have won the conflict; re-read by email so every
	// caller observes the same row.
	id, err := s.GetUserIDByEmail(ctx, email)
	if err != nil {
		return models.User{}, err
	}
	if id != u.ID {
		return s.GetUser(ctx, id)
	}

	logg.Info("store", "User created successfully (email anonymized)")
	return u, nil
}

// --- Follow operations ---

func (s *Store) CreateFollow(ctx context.Context, followerID, followeeID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO follows (follower_id, followee_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, followee_id) DO NOTHING`,
		followerID, followeeID,
	)
	if err != nil {
		logg.Error("store", "Failed to create follow relationship", err)
		return err
	}

	logg.Info("store", "Follow relationship created (user IDs anonymized)")
	return nil
}

// GetFollowing returns the ids of users the given user follows. Reports
// ErrUserNotFound when the user itself is absent, so callers can tell an
// empty following set from a nonexistent viewer.
func (s *Store) GetFollowing(ctx context.Context, userID string) ([]string, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT followee_id FROM follows WHERE follower_id = $1`, userID)
	if err != nil {
		logg.Error("store", "Failed to get following set", err)
		return nil, err
	}
	defer rows.Close()

	var res []string
	var id string
	for rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	if err := rows.Err(); err != nil {
		logg.Error("store", "Failed to read following rows", err)
		return nil, err
	}

	return res, nil
}

func (s *Store) GetFollowers(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT follower_id FROM follows WHERE followee_id = $1`, userID)
	if err != nil {
		logg.Error("store", "Failed to get followers", err)
		return nil, err
	}
	defer rows.Close()

	var res []string
	var id string
	for rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	if err := rows.Err(); err != nil {
		logg.Error("store", "Failed to read follower rows", err)
		return nil, err
	}

	return res, nil
}
