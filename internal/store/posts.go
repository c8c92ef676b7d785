package store

import (
	"context"

	"example.com/socialfeed/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Hydration projection shared by every feed query: the post row joined with
// its author, likes and comments attached by follow-up queries keyed on the
// returned post ids.
const selectPosts = `
	SELECT p.id, p.content, p.image_urls, p.video_urls, p.privacy,
	       p.created_at, p.updated_at,
	       u.id, u.name, u.email, u.profile_picture
	FROM posts p
	JOIN users u ON u.id = p.author_id
`

// --- Post operations ---

func (s *Store) AddPost(ctx context.Context, post models.Post) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO posts (id, author_id, content, image_urls, video_urls, privacy, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		post.ID, post.Author.ID, post.Content, post.ImageURLs, post.VideoURLs,
		post.Privacy, post.Created, post.Updated,
	)
	if err != nil {
		logg.Error("store", "Failed to add post", err)
		return err
	}

	logg.Info("store", "Post added (post content anonymized)")
	return nil
}

// GetPost returns a bare post row without likes or comments. Used to
// validate existence before a like or comment mutation.
func (s *Store) GetPost(ctx context.Context, id string) (models.Post, error) {
	row := s.pool.QueryRow(ctx, selectPosts+` WHERE p.id = $1`, id)

	p, err := scanPost(row)
	if err == pgx.ErrNoRows {
		return models.Post{}, ErrPostNotFound
	}
	if err != nil {
		logg.Error("store", "Failed to get post", err)
		return models.Post{}, err
	}
	return p, nil
}

// PublicPostsPage returns the newest public posts, fully hydrated. Serves
// the public feed cold start.
func (s *Store) PublicPostsPage(ctx context.Context, limit int) ([]models.Post, error) {
	rows, err := s.pool.Query(ctx, selectPosts+`
		WHERE p.privacy = 'public'
		ORDER BY p.created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		logg.Error("store", "Failed to query public posts page", err)
		return nil, err
	}
	return s.hydrate(ctx, rows)
}

// PostsByIDsPublic returns the posts among ids that are still public,
// newest first. Serves the public feed warm path: ids cached as public are
// re-filtered, so a post whose privacy changed after caching drops out.
func (s *Store) PostsByIDsPublic(ctx context.Context, ids []string, limit int) ([]models.Post, error) {
	rows, err := s.pool.Query(ctx, selectPosts+`
		WHERE p.id = ANY($1) AND p.privacy = 'public'
		ORDER BY p.created_at DESC
		LIMIT $2`, ids, limit)
	if err != nil {
		logg.Error("store", "Failed to query posts by ids (public)", err)
		return nil, err
	}
	return s.hydrate(ctx, rows)
}

// PostsByIDs returns posts by identifier set with no privacy filter,
// newest first. Serves the personal feed warm path.
func (s *Store) PostsByIDs(ctx context.Context, ids []string, limit int) ([]models.Post, error) {
	rows, err := s.pool.Query(ctx, selectPosts+`
		WHERE p.id = ANY($1)
		ORDER BY p.created_at DESC
		LIMIT $2`, ids, limit)
	if err != nil {
		logg.Error("store", "Failed to query posts by ids", err)
		return nil, err
	}
	return s.hydrate(ctx, rows)
}

// PersonalFeedCandidates returns the newest posts visible to the viewer:
// public posts, follower_only posts from followed authors, and the viewer's
// own posts at any privacy. Serves the personal feed cold start.
func (s *Store) PersonalFeedCandidates(ctx context.Context, viewerID string, followingIDs []string, limit int) ([]models.Post, error) {
	rows, err := s.pool.Query(ctx, selectPosts+`
		WHERE p.privacy = 'public'
		   OR (p.author_id = ANY($2) AND p.privacy IN ('public', 'follower_only'))
		   OR p.author_id = $1
		ORDER BY p.created_at DESC
		LIMIT $3`, viewerID, followingIDs, limit)
	if err != nil {
		logg.Error("store", "Failed to query personal feed candidates", err)
		return nil, err
	}
	return s.hydrate(ctx, rows)
}

// --- Like / comment operations ---

// ToggleLike makes the (post, user) like edge match liked. Both directions
// are idempotent: liking an already-liked post returns the existing like,
// unliking a not-liked post returns nil. A nil like with nil error means no
// edge exists after the call.
func (s *Store) ToggleLike(ctx context.Context, postID, userID string, liked bool) (*models.Like, error) {
	if !liked {
		if _, err := s.pool.Exec(ctx,
			`DELETE FROM likes WHERE post_id = $1 AND user_id = $2`, postID, userID); err != nil {
			logg.Error("store", "Failed to remove like", err)
			return nil, err
		}
		return nil, nil
	}

	// ON CONFLICT keeps concurrent double-likes a no-op at the schema level.
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO likes (id, post_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, user_id) DO NOTHING
		RETURNING id`,
		uuid.NewString(), postID, userID,
	).Scan(&id)
	if err != nil && err != pgx.ErrNoRows {
		logg.Error("store", "Failed to add like", err)
		return nil, err
	}
	if err == pgx.ErrNoRows {
		// The edge already existed; fetch it.
		err = s.pool.QueryRow(ctx,
			`SELECT id FROM likes WHERE post_id = $1 AND user_id = $2`, postID, userID,
		).Scan(&id)
		if err != nil {
			logg.Error("store", "Failed to load existing like", err)
			return nil, err
		}
	}

	liker, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.Like{
		ID: id,
		User: models.UserRef{
			ID:             liker.ID,
			Name:           liker.Name,
			Email:          liker.Email,
			ProfilePicture: liker.ProfilePicture,
		},
	}, nil
}

func (s *Store) AddComment(ctx context.Context, postID, userID, content string) (models.Comment, error) {
	var c models.Comment
	c.ID = uuid.NewString()
	c.Content = content

	err := s.pool.QueryRow(ctx, `
		INSERT INTO comments (id, post_id, user_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		c.ID, postID, userID, content,
	).Scan(&c.Created)
	if err != nil {
		logg.Error("store", "Failed to add comment", err)
		return models.Comment{}, err
	}

	commenter, err := s.GetUser(ctx, userID)
	if err != nil {
		return models.Comment{}, err
	}
	c.User = models.UserRef{
		ID:             commenter.ID,
		Name:           commenter.Name,
		Email:          commenter.Email,
		ProfilePicture: commenter.ProfilePicture,
	}

	logg.Info("store", "Comment added (content anonymized)")
	return c, nil
}

// --- Hydration helpers ---

func scanPost(row pgx.Row) (models.Post, error) {
	var p models.Post
	err := row.Scan(
		&p.ID, &p.Content, &p.ImageURLs, &p.VideoURLs, &p.Privacy,
		&p.Created, &p.Updated,
		&p.Author.ID, &p.Author.Name, &p.Author.Email, &p.Author.ProfilePicture,
	)
	return p, err
}

// hydrate consumes post rows and attaches likes and comments for the whole
// page in two follow-up queries.
func (s *Store) hydrate(ctx context.Context, rows pgx.Rows) ([]models.Post, error) {
	defer rows.Close()

	var posts []models.Post
	var ids []string
	index := make(map[string]int)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		p.Likes = []models.Like{}
		p.Comments = []models.Comment{}
		index[p.ID] = len(posts)
		posts = append(posts, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		logg.Error("store", "Failed to read post rows", err)
		return nil, err
	}
	if len(posts) == 0 {
		return []models.Post{}, nil
	}

	likeRows, err := s.pool.Query(ctx, `
		SELECT l.post_id, l.id, u.id, u.name, u.email, u.profile_picture
		FROM likes l
		JOIN users u ON u.id = l.user_id
		WHERE l.post_id = ANY($1)`, ids)
	if err != nil {
		logg.Error("store", "Failed to query likes", err)
		return nil, err
	}
	defer likeRows.Close()
	for likeRows.Next() {
		var postID string
		var l models.Like
		if err := likeRows.Scan(&postID, &l.ID,
			&l.User.ID, &l.User.Name, &l.User.Email, &l.User.ProfilePicture); err != nil {
			return nil, err
		}
		i := index[postID]
		posts[i].Likes = append(posts[i].Likes, l)
	}
	if err := likeRows.Err(); err != nil {
		return nil, err
	}

	commentRows, err := s.pool.Query(ctx, `
		SELECT c.post_id, c.id, c.content, c.created_at, u.id, u.name, u.email, u.profile_picture
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.post_id = ANY($1)
		ORDER BY c.created_at ASC`, ids)
	if err != nil {
		logg.Error("store", "Failed to query comments", err)
		return nil, err
	}
	defer commentRows.Close()
	for commentRows.Next() {
		var postID string
		var c models.Comment
		if err := commentRows.Scan(&postID, &c.ID, &c.Content, &c.Created,
			&c.User.ID, &c.User.Name, &c.User.Email, &c.User.ProfilePicture); err != nil {
			return nil, err
		}
		i := index[postID]
		posts[i].Comments = append(posts[i].Comments, c)
	}
	if err := commentRows.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}
