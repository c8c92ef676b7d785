package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/socialfeed/internal/cache"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/store"
	"example.com/socialfeed/internal/upload"
	"github.com/google/uuid"
)

var logg = logger.New()

// Service assembles paginated, privacy-filtered feeds over the post store
// and the feed cache. The store is the source of truth; every cache failure
// degrades to a direct store query or a dropped refresh, never an error.
type Service struct {
	store     store.StoreInterface
	cache     cache.FeedCache
	uploader  upload.Uploader
	maxCached int64
}

// New creates the feed service. maxCached bounds how many post ids a feed
// key retains after population.
func New(st store.StoreInterface, fc cache.FeedCache, up upload.Uploader, maxCached int64) *Service {
	if maxCached <= 0 {
		maxCached = 100
	}
	return &Service{
		store:     st,
		cache:     fc,
		uploader:  up,
		maxCached: maxCached,
	}
}

// GetPublicFeed returns the newest public posts, fully hydrated.
//
// Warm path: cached ids are resolved against the store with a privacy
// re-filter, so a post made non-public after caching drops out of the page
// even while its id is still listed. Cold path: the store is queried
// directly and the result's ids populate the cache.
func (s *Service) GetPublicFeed(ctx context.Context, limit int) ([]models.Post, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidArgument, limit)
	}

	ids := s.cachedIDs(ctx, cache.PublicFeedKey, limit)

	if len(ids) == 0 {
		posts, err := s.store.PublicPostsPage(ctx, limit)
		if err != nil {
			return nil, storeErr(err)
		}
		s.populate(ctx, cache.PublicFeedKey, posts)
		return posts, nil
	}

	posts, err := s.store.PostsByIDsPublic(ctx, ids, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return posts, nil
}

// GetPersonalFeed returns the newest posts visible to the viewer. Reports
// ErrNotFound when the viewer does not exist; it never falls back to the
// public feed.
//
// Unlike the public warm path, cached ids are resolved with no privacy
// re-filter. The asymmetry is deliberate, carried over from the observed
// behavior of this engine; see DESIGN.md.
func (s *Service) GetPersonalFeed(ctx context.Context, viewerID string, limit int) ([]models.Post, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidArgument, limit)
	}

	key := cache.UserFeedKey(viewerID)
	ids := s.cachedIDs(ctx, key, limit)

	if len(ids) == 0 {
		following, err := s.store.GetFollowing(ctx, viewerID)
		if err != nil {
			return nil, storeErr(err)
		}
		posts, err := s.store.PersonalFeedCandidates(ctx, viewerID, following, limit)
		if err != nil {
			return nil, storeErr(err)
		}
		s.populate(ctx, key, posts)
		return posts, nil
	}

	posts, err := s.store.PostsByIDs(ctx, ids, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return posts, nil
}

// MediaType selects which URL list an uploaded file lands in.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// CreatePostInput carries a new post: text, privacy and at most one media
// buffer routed through the upload collaborator.
type CreatePostInput struct {
	AuthorID  string
	Content   string
	Privacy   models.Privacy
	Media     []byte
	MediaType MediaType
}

// CreatePost stores a new post. No feed cache is touched here: feeds pick
// the post up on their next cold start, or through the fan-out worker when
// one is running.
func (s *Service) CreatePost(ctx context.Context, in CreatePostInput) (models.Post, error) {
	author, err := s.store.GetUser(ctx, in.AuthorID)
	if err != nil {
		return models.Post{}, storeErr(err)
	}

	privacy := in.Privacy
	if privacy == "" {
		privacy = models.PrivacyPublic
	}
	switch privacy {
	case models.PrivacyPublic, models.PrivacyFollowerOnly, models.PrivacyPrivate:
	default:
		return models.Post{}, fmt.Errorf("%w: unknown privacy %q", ErrInvalidArgument, in.Privacy)
	}

	// Both lists stay non-nil: a nil slice reaches the store as SQL NULL,
	// which the posts schema rejects.
	imageURLs, videoURLs := []string{}, []string{}
	if len(in.Media) > 0 {
		folder := fmt.Sprintf("posts/%s/%s", in.MediaType, in.AuthorID)
		switch res := s.uploader.UploadFromBuffer(ctx, in.Media, folder).(type) {
		case upload.Uploaded:
			if in.MediaType == MediaTypeVideo {
				videoURLs = []string{res.URL}
			} else {
				imageURLs = []string{res.URL}
			}
		case upload.UploadFailed:
			return models.Post{}, fmt.Errorf("%w: upload failed: %s", ErrInvalidArgument, res.Reason)
		}
	}

	now := time.Now().UTC()
	post := models.Post{
		ID:        uuid.NewString(),
		Content:   in.Content,
		ImageURLs: imageURLs,
		VideoURLs: videoURLs,
		Privacy:   privacy,
		Created:   now,
		Updated:   now,
		Author: models.UserRef{
			ID:             author.ID,
			Name:           author.Name,
			Email:          author.Email,
			ProfilePicture: author.ProfilePicture,
		},
		Likes:    []models.Like{},
		Comments: []models.Comment{},
	}

	if err := s.store.AddPost(ctx, post); err != nil {
		return models.Post{}, storeErr(err)
	}
	return post, nil
}

// LikeDislikePost makes the viewer's like edge on the post match liked.
// Both directions are idempotent successes; the returned like is nil when
// no edge exists after the call. Likes never touch the feed cache.
func (s *Service) LikeDislikePost(ctx context.Context, postID, userID string, liked bool) (*models.Like, error) {
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return nil, storeErr(err)
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, storeErr(err)
	}

	like, err := s.store.ToggleLike(ctx, postID, userID, liked)
	if err != nil {
		return nil, storeErr(err)
	}
	return like, nil
}

// CreateComment appends a comment to the post. Comments are read live
// through hydration and never cached independently.
func (s *Service) CreateComment(ctx context.Context, postID, userID, content string) (models.Comment, error) {
	if content == "" {
		return models.Comment{}, fmt.Errorf("%w: empty comment", ErrInvalidArgument)
	}
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return models.Comment{}, storeErr(err)
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return models.Comment{}, storeErr(err)
	}

	comment, err := s.store.AddComment(ctx, postID, userID, content)
	if err != nil {
		return models.Comment{}, storeErr(err)
	}
	return comment, nil
}

// cachedIDs reads up to limit ids for key, failing open: an unreachable
// cache is reported as a miss and the caller takes the store path.
func (s *Service) cachedIDs(ctx context.Context, key string, limit int) []string {
	ids, err := s.cache.Range(ctx, key, 0, int64(limit)-1)
	if err != nil {
		logg.Warn("feed", "Cache read failed for "+key+", falling back to store", err)
		return nil
	}
	return ids
}

// populate appends the page's ids to key and trims to the retention bound.
// Ids are pushed oldest first so the newest post ends at the head and a
// subsequent Range returns them in serving order. Failures are logged and
// dropped: a missed cache update only costs freshness.
func (s *Service) populate(ctx context.Context, key string, posts []models.Post) {
	for i := len(posts) - 1; i >= 0; i-- {
		if err := s.cache.AppendPost(ctx, key, posts[i].ID, 0); err != nil {
			logg.Warn("feed", "Dropped cache population for "+key, err)
			return
		}
	}
	if len(posts) == 0 {
		return
	}
	if err := s.cache.Trim(ctx, key, s.maxCached); err != nil {
		logg.Warn("feed", "Dropped cache trim for "+key, err)
	}
}

// storeErr maps store failures onto the engine's error kinds, keeping the
// cause in the message.
func storeErr(err error) error {
	if errors.Is(err, store.ErrUserNotFound) || errors.Is(err, store.ErrPostNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
