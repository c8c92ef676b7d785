package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"example.com/socialfeed/internal/cache"
	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/store"
	"example.com/socialfeed/internal/upload"
)

//
// --- Helpers ---
//

func testSetup() (*Service, *store.MockStore, *cache.MockFeedCache) {
	st := store.NewMock()
	fc := cache.NewMock()
	svc := New(st, fc, &upload.MockUploader{}, 100)
	return svc, st, fc
}

func seedUser(t *testing.T, st *store.MockStore, name string) models.User {
	t.Helper()
	u, err := st.CreateUser(context.Background(), name, name+"@example.com", "")
	if err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return u
}

func seedPost(t *testing.T, st *store.MockStore, id string, author models.User, privacy models.Privacy, created time.Time) models.Post {
	t.Helper()
	p := models.Post{
		ID:      id,
		Content: "post " + id,
		Privacy: privacy,
		Created: created,
		Updated: created,
		Author: models.UserRef{
			ID:             author.ID,
			Name:           author.Name,
			Email:          author.Email,
			ProfilePicture: author.ProfilePicture,
		},
	}
	if err := st.AddPost(context.Background(), p); err != nil {
		t.Fatalf("seed post %s: %v", id, err)
	}
	return p
}

func postIDs(posts []models.Post) []string {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func assertOrder(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %v, got %v", i, want, got)
		}
	}
}

//
// --- Public feed ---
//

func TestPublicFeed_ColdStartReturnsNewestAndPopulatesCache(t *testing.T) {
	svc, st, fc := testSetup()
	ctx := context.Background()
	author := seedUser(t, st, "alice")

	base := time.Now().UTC()
	for i, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		seedPost(t, st, id, author, models.PrivacyPublic, base.Add(time.Duration(i)*time.Minute))
	}

	posts, err := svc.GetPublicFeed(ctx, 3)
	if err != nil {
		t.Fatalf("cold start failed: %v", err)
	}
	assertOrder(t, postIDs(posts), "p5", "p4", "p3")

	cached, err := fc.Range(ctx, cache.PublicFeedKey, 0, -1)
	if err != nil {
		t.Fatalf("range failed: %v", err)
	}
	assertOrder(t, cached, "p5", "p4", "p3")
}

func TestPublicFeed_WarmPathServesCachedIDsHydrated(t *testing.T) {
	svc, st, fc := testSetup()
	ctx := context.Background()
	author := seedUser(t, st, "alice")

	base := time.Now().UTC()
	for i, id := range []string{"p1", "p2", "p3"} {
		seedPost(t, st, id, author, models.PrivacyPublic, base.Add(time.Duration(i)*time.Minute))
	}
	for _, id := range []string{"p1", "p2", "p3"} {
		fc.AppendPost(ctx, cache.PublicFeedKey, id, 0)
	}

	posts, err := svc.GetPublicFeed(ctx, 3)
	if err != nil {
		t.Fatalf("warm path failed: %v", err)
	}
	assertOrder(t, postIDs(posts), "p3", "p2", "p1")

	for _, p := range posts {
		if p.Likes == nil || p.Comments == nil {
			t.Fatalf("post %s not hydrated: likes and comments must be non-nil", p.ID)
		}
		if p.Author.ID != author.ID || p.Author.Email == "" {
			t.Fatalf("post %s author not hydrated: %+v", p.ID, p.Author)
		}
	}
}

func TestPublicFeed_PrivatePostNeverServed(t *testing.T) {
	svc, st, _ := testSetup()
	ctx := context.Background()
	author := seedUser(t, st, "alice")

	now := time.Now().UTC()
	seedPost(t, st, "pub", author, models.PrivacyPublic, now)
	seedPost(t, st, "priv", author, models.PrivacyPrivate, now.Add(time.Minute))

	posts, err := svc.GetPublicFeed(ctx, 10)
	if err != nil {
		t.Fatalf("cold start failed: %v", err)
	}
	for _, p := range posts {
		if p.ID == "priv" {
			t.Fatal("private post served in public feed")
		}
	}
}

func TestPublicFeed_WarmPathRefiltersChangedPrivacy(t *testing.T) {
	svc, st, fc := testSetup()
	ctx := context.Background()
	author := seedUser(t, st, "alice")

	now := time.Now().UTC()
	seedPost(t, st, "p1", author, models.PrivacyPublic, now)
	seedPost(t, st, "p2", author, models.PrivacyPublic, now.Add(time.Minute))
	fc.AppendPost(ctx, cache.PublicFeedKey, "p1", 0)
	fc.AppendPost(ctx, cache.PublicFeedKey, "p2", 0)

	// p1 went private after its id was cached; the warm path re-filter
	// silently drops it even though the cache still lists it.
	st.SetPrivacy("p1", models.PrivacyPrivate)

	posts, err := svc.GetPublicFeed(ctx, 2)
	if err != nil {
		t.Fatalf("warm path failed: %v", err)
	}
	assertOrder(t, postIDs(posts), "p2")

	cached, _ := fc.Range(ctx, cache.PublicFeedKey, 0, -1)
	assertOrder(t, cached, "p2", "p1")
}

func TestPublicFeed_InvalidLimitRejected(t *testing.T) {
	svc, _, _ := testSetup()
	ctx := context.Background()

	for _, limit := range []int{0, -5} {
		_, err := svc.GetPublicFeed(ctx, limit)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("limit %d: expected ErrInvalidArgument, got %v", limit, err)
		}
	}
}

func TestPublicFeed_CacheUnreachableFailsOpen(t *testing.T) {
	svc, st, fc := testSetup()
	ctx := context.Background()
	author := seedUser(t, st, "alice")
	seedPost(t, st, "p1", author, models.PrivacyPublic, time.Now().UTC())

	fc.ShouldFail = true

	posts, err := svc.GetPublicFeed(ctx, 5)
	if err != nil {
		t.Fatalf("expected fail-open read, got %v", err)
	}
	assertOrder(t, postIDs(posts), "p1")
}

func TestPublicFeed_StoreUnavailableSurfaced(t *testing.T) {
	svc := New(&store.MockStoreFail{}, cache.NewMock(), &upload.MockUploader{}, 100)

	_, err := svc.GetPublicFeed(context.Background(), 5)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

//
// --- Personal feed ---
//

func TestPersonalFeed_ViewerNotFound(t *testing.T) {
	svc, _, _ := testSetup()

	_, err := svc.GetPersonalFeed(context.Background(), "nonexistent-user", 20)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPersonalFeed_ColdStartPrivacy(t *testing.T) {
	svc, st, fc := testSetup()
	ctx := context.Background()

	viewer := seedUser(t, st, "viewer")
	followed := seedUser(t, st, "followed")
	stranger := seedUser(t, st, "stranger")
	st.CreateFollow(ctx, viewer.ID, followed.ID)

	base := time.Now().UTC()
	seedPost(t, st, "followed-fo", followed, models.PrivacyFollowerOnly, base)
	seedPost(t, st, "stranger-fo", stranger, models.PrivacyFollowerOnly, base.Add(time.Minute))
	seedPost(t, st, "stranger-pub", stranger, models.PrivacyPublic, base.Add(2*time.Minute))
	seedPost(t, st, "own-private", viewer, models.PrivacyPrivate, base.Add(3*time.Minute))

	posts, err := svc.GetPersonalFeed(ctx, viewer.ID, 20)
	if err != nil {
		t.Fatalf("cold start failed: %v", err)
	}
	assertOrder(t, postIDs(posts), "own-private", "stranger-pub", "followed-fo")

	cached, _ := fc.Range(ctx, cache.UserFeedKey(viewer.ID), 0, -1)
	assertOrder(t, cached, "own-private", "stranger-pub", "followed-fo")
}

func TestPersonalFeed_WarmPathSkipsPrivacyRefilter(t *testing.T) {
	svc, st, fc := testSetup()
	ctx := context.Background()

	viewer := seedUser(t, st, "viewer")
	stranger := seedUser(t, st, "stranger")
	seedPost(t, st, "stranger-fo", stranger, models.PrivacyFollowerOnly, time.Now().UTC())

	// The id reached the cache somehow; the warm path resolves it with no
	// privacy re-filter, unlike the public warm path.
	fc.AppendPost(ctx, cache.UserFeedKey(viewer.ID), "stranger-fo", 0)

	posts, err := svc.GetPersonalFeed(ctx, viewer.ID, 20)
	if err != nil {
		t.Fatalf("warm path failed: %v", err)
	}
	assertOrder(t, postIDs(posts), "stranger-fo")
}

func TestPersonalFeed_CacheUnreachableFailsOpen(t *testing.T) {
	svc, st, fc := testSetup()
	ctx := context.Background()
	viewer := seedUser(t, st, "viewer")
	seedPost(t, st, "p1", viewer, models.PrivacyPublic, time.Now().UTC())

	fc.ShouldFail = true

	posts, err := svc.GetPersonalFeed(ctx, viewer.ID, 20)
	if err != nil {
		t.Fatalf("expected fail-open read, got %v", err)
	}
	assertOrder(t, postIDs(posts), "p1")
}

//
// --- Likes ---
//

func TestLike_IdempotentToggle(t *testing.T) {
	svc, st, _ := testSetup()
	ctx := context.Background()
	author := seedUser(t, st, "alice")
	liker := seedUser(t, st, "bob")
	seedPost(t, st, "p1", author, models.PrivacyPublic, time.Now().UTC())

	first, err := svc.LikeDislikePost(ctx, "p1", liker.ID, true)
	if err != nil || first == nil {
		t.Fatalf("first like failed: %v, %v", first, err)
	}

	second, err := svc.LikeDislikePost(ctx, "p1", liker.ID, true)
	if err != nil || second == nil {
		t.Fatalf("second like failed: %v, %v", second, err)
	}
	if second.ID != first.ID {
		t.Fatalf("double like must return the existing edge: %s vs %s", first.ID, second.ID)
	}

	posts, _ := svc.GetPublicFeed(ctx, 10)
	if len(posts) != 1 || len(posts[0].Likes) != 1 {
		t.Fatalf("expected exactly one stored like, got %+v", posts[0].Likes)
	}

	// Unlike twice: both successful no-ops.
	if like, err := svc.LikeDislikePost(ctx, "p1", liker.ID, false); err != nil || like != nil {
		t.Fatalf("unlike failed: %v, %v", like, err)
	}
	if like, err := svc.LikeDislikePost(ctx, "p1", liker.ID, false); err != nil || like != nil {
		t.Fatalf("second unlike must be a no-op: %v, %v", like, err)
	}
}

func TestLike_PostOrUserNotFound(t *testing.T) {
	svc, st, _ := testSetup()
	ctx := context.Background()
	author := seedUser(t, st, "alice")
	seedPost(t, st, "p1", author, models.PrivacyPublic, time.Now().UTC())

	if _, err := svc.LikeDislikePost(ctx, "ghost", author.ID, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing post, got %v", err)
	}
	if _, err := svc.LikeDislikePost(ctx, "p1", "ghost", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}
}

//
// --- Comments ---
//

func TestCreateComment_AppendsAndHydrates(t *testing.T) {
	svc, st, _ := testSetup()
	ctx := context.Background()
	author := seedUser(t, st, "alice")
	commenter := seedUser(t, st, "bob")
	seedPost(t, st, "p1", author, models.PrivacyPublic, time.Now().UTC())

	comment, err := svc.CreateComment(ctx, "p1", commenter.ID, "nice post")
	if err != nil {
		t.Fatalf("create comment failed: %v", err)
	}
	if comment.User.ID != commenter.ID || comment.Content != "nice post" {
		t.Fatalf("comment not hydrated: %+v", comment)
	}

	posts, _ := svc.GetPublicFeed(ctx, 10)
	if len(posts) != 1 || len(posts[0].Comments) != 1 {
		t.Fatalf("expected comment in hydrated feed, got %+v", posts[0].Comments)
	}
	if posts[0].Comments[0].ID != comment.ID {
		t.Fatalf("hydrated comment mismatch: %+v", posts[0].Comments[0])
	}
}

func TestCreateComment_Invalid(t *testing.T) {
	svc, st, _ := testSetup()
	ctx := context.Background()
	author := seedUser(t, st, "alice")
	seedPost(t, st, "p1", author, models.PrivacyPublic, time.Now().UTC())

	if _, err := svc.CreateComment(ctx, "p1", author.ID, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty comment, got %v", err)
	}
	if _, err := svc.CreateComment(ctx, "ghost", author.ID, "hi"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing post, got %v", err)
	}
}

//
// --- Post creation ---
//

func TestCreatePost_MediaRouting(t *testing.T) {
	svc, st, _ := testSetup()
	ctx := context.Background()
	author := seedUser(t, st, "alice")

	img, err := svc.CreatePost(ctx, CreatePostInput{
		AuthorID:  author.ID,
		Content:   "with image",
		Media:     []byte{1, 2, 3},
		MediaType: MediaTypeImage,
	})
	if err != nil {
		t.Fatalf("image post failed: %v", err)
	}
	if len(img.ImageURLs) != 1 || len(img.VideoURLs) != 0 {
		t.Fatalf("image post must carry image URLs only: %+v", img)
	}

	vid, err := svc.CreatePost(ctx, CreatePostInput{
		AuthorID:  author.ID,
		Content:   "with video",
		Media:     []byte{4, 5, 6},
		MediaType: MediaTypeVideo,
	})
	if err != nil {
		t.Fatalf("video post failed: %v", err)
	}
	if len(vid.VideoURLs) != 1 || len(vid.ImageURLs) != 0 {
		t.Fatalf("video post must carry video URLs only: %+v", vid)
	}
}

func TestCreatePost_UploadFailure(t *testing.T) {
	st := store.NewMock()
	svc := New(st, cache.NewMock(), &upload.MockUploader{ShouldFail: true, Reason: "quota exceeded"}, 100)
	author := seedUser(t, st, "alice")

	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		AuthorID:  author.ID,
		Media:     []byte{1},
		MediaType: MediaTypeImage,
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for failed upload, got %v", err)
	}
}

func TestCreatePost_AuthorNotFound(t *testing.T) {
	svc, _, _ := testSetup()

	_, err := svc.CreatePost(context.Background(), CreatePostInput{AuthorID: "ghost"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// A text-only post must carry empty URL lists, never nil: nil would be
// encoded as SQL NULL and violate the NOT NULL array columns.
func TestCreatePost_TextOnlyKeepsEmptyURLLists(t *testing.T) {
	svc, st, _ := testSetup()
	ctx := context.Background()
	author := seedUser(t, st, "alice")

	post, err := svc.CreatePost(ctx, CreatePostInput{AuthorID: author.ID, Content: "plain text"})
	if err != nil {
		t.Fatalf("create post failed: %v", err)
	}
	if post.ImageURLs == nil || post.VideoURLs == nil {
		t.Fatalf("url lists must be empty, never nil: %+v", post)
	}
	if len(post.ImageURLs) != 0 || len(post.VideoURLs) != 0 {
		t.Fatalf("text-only post must carry no media URLs: %+v", post)
	}

	stored, err := st.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("get post failed: %v", err)
	}
	if stored.ImageURLs == nil || stored.VideoURLs == nil {
		t.Fatalf("stored url lists must be empty, never nil: %+v", stored)
	}
}

func TestCreatePost_DoesNotTouchCache(t *testing.T) {
	svc, st, fc := testSetup()
	ctx := context.Background()
	author := seedUser(t, st, "alice")

	if _, err := svc.CreatePost(ctx, CreatePostInput{AuthorID: author.ID, Content: "hello"}); err != nil {
		t.Fatalf("create post failed: %v", err)
	}
	if len(fc.Lists) != 0 {
		t.Fatalf("post creation must not push into feed caches, got %v", fc.Lists)
	}

	// A fresh cold start sees the new post immediately.
	posts, err := svc.GetPublicFeed(ctx, 5)
	if err != nil || len(posts) != 1 {
		t.Fatalf("new post must be visible to a cold start: %v, %v", posts, err)
	}
}

func TestPersonalFeed_RetentionBoundAfterColdStart(t *testing.T) {
	st := store.NewMock()
	fc := cache.NewMock()
	svc := New(st, fc, &upload.MockUploader{}, 3)
	ctx := context.Background()
	viewer := seedUser(t, st, "viewer")

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		seedPost(t, st, postID(i), viewer, models.PrivacyPublic, base.Add(time.Duration(i)*time.Minute))
	}

	if _, err := svc.GetPersonalFeed(ctx, viewer.ID, 5); err != nil {
		t.Fatalf("cold start failed: %v", err)
	}
	cached, _ := fc.Range(ctx, cache.UserFeedKey(viewer.ID), 0, -1)
	if len(cached) != 3 {
		t.Fatalf("expected cache trimmed to 3, got %d", len(cached))
	}
	assertOrder(t, cached, "post4", "post3", "post2")
}

func postID(i int) string {
	return fmt.Sprintf("post%d", i)
}
