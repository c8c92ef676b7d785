package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	appkafka "example.com/socialfeed/internal/broker"
	"example.com/socialfeed/internal/cache"
	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/store"
	"github.com/segmentio/kafka-go"
)

// runWorkerOnce processes a single Kafka message for testing.
func runWorkerOnce(ctx context.Context, w *Worker) error {
	msg, err := w.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}
	if len(msg.Value) == 0 {
		return nil
	}

	var event models.PostCreatedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return err
	}

	followers, err := w.store.GetFollowers(ctx, event.AuthorID)
	if err != nil {
		return err
	}

	keys := []string{cache.UserFeedKey(event.AuthorID)}
	for _, uid := range followers {
		keys = append(keys, cache.UserFeedKey(uid))
	}
	if event.Privacy == models.PrivacyPublic {
		keys = append(keys, cache.PublicFeedKey)
	}
	for _, key := range keys {
		w.refresh(ctx, key, event.PostID)
	}

	return nil
}

func eventMessage(t *testing.T, event models.PostCreatedEvent) kafka.Message {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return kafka.Message{Value: data}
}

// ---------- Positive tests ----------

func TestWorker_RefreshesWarmFollowerCache(t *testing.T) {
	ctx := context.Background()
	mockStore := store.NewMock()
	mockCache := cache.NewMock()

	author, _ := mockStore.CreateUser(ctx, "author", "author@example.com", "")
	follower, _ := mockStore.CreateUser(ctx, "follower", "follower@example.com", "")
	mockStore.CreateFollow(ctx, follower.ID, author.ID)

	// The follower's personal feed is warm with one older post.
	followerKey := cache.UserFeedKey(follower.ID)
	mockCache.AppendPost(ctx, followerKey, "old-post", 0)

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{eventMessage(t, models.PostCreatedEvent{
			PostID:   "new-post",
			AuthorID: author.ID,
			Privacy:  models.PrivacyFollowerOnly,
			Created:  time.Now(),
		})},
	}

	w := New(mockStore, mockCache, mockKafka, 1, 1, 100)
	if err := runWorkerOnce(ctx, w); err != nil {
		t.Fatalf("worker failed: %v", err)
	}

	ids, _ := mockCache.Range(ctx, followerKey, 0, -1)
	if len(ids) != 2 || ids[0] != "new-post" {
		t.Fatalf("follower cache not refreshed, got: %v", ids)
	}
}

func TestWorker_SkipsColdCaches(t *testing.T) {
	ctx := context.Background()
	mockStore := store.NewMock()
	mockCache := cache.NewMock()

	author, _ := mockStore.CreateUser(ctx, "author", "author@example.com", "")
	follower, _ := mockStore.CreateUser(ctx, "follower", "follower@example.com", "")
	mockStore.CreateFollow(ctx, follower.ID, author.ID)

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{eventMessage(t, models.PostCreatedEvent{
			PostID:   "new-post",
			AuthorID: author.ID,
			Privacy:  models.PrivacyPublic,
		})},
	}

	w := New(mockStore, mockCache, mockKafka, 1, 1, 100)
	if err := runWorkerOnce(ctx, w); err != nil {
		t.Fatalf("worker failed: %v", err)
	}

	// No key was warm, so nothing may be created: a partial list would
	// poison the next cold start.
	if len(mockCache.Lists) != 0 {
		t.Fatalf("cold caches must stay untouched, got: %v", mockCache.Lists)
	}
}

func TestWorker_PublicPostRefreshesPublicFeed(t *testing.T) {
	ctx := context.Background()
	mockStore := store.NewMock()
	mockCache := cache.NewMock()

	author, _ := mockStore.CreateUser(ctx, "author", "author@example.com", "")
	mockCache.AppendPost(ctx, cache.PublicFeedKey, "old-post", 0)

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{eventMessage(t, models.PostCreatedEvent{
			PostID:   "new-post",
			AuthorID: author.ID,
			Privacy:  models.PrivacyPublic,
		})},
	}

	w := New(mockStore, mockCache, mockKafka, 1, 1, 100)
	if err := runWorkerOnce(ctx, w); err != nil {
		t.Fatalf("worker failed: %v", err)
	}

	ids, _ := mockCache.Range(ctx, cache.PublicFeedKey, 0, -1)
	if len(ids) != 2 || ids[0] != "new-post" {
		t.Fatalf("public feed cache not refreshed, got: %v", ids)
	}
}

func TestWorker_RefreshTrimsToRetentionBound(t *testing.T) {
	ctx := context.Background()
	mockStore := store.NewMock()
	mockCache := cache.NewMock()

	author, _ := mockStore.CreateUser(ctx, "author", "author@example.com", "")
	key := cache.UserFeedKey(author.ID)
	for i := 0; i < 3; i++ {
		mockCache.AppendPost(ctx, key, "old", 0)
	}

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{eventMessage(t, models.PostCreatedEvent{
			PostID:   "new-post",
			AuthorID: author.ID,
			Privacy:  models.PrivacyPrivate,
		})},
	}

	w := New(mockStore, mockCache, mockKafka, 1, 1, 3)
	if err := runWorkerOnce(ctx, w); err != nil {
		t.Fatalf("worker failed: %v", err)
	}

	ids, _ := mockCache.Range(ctx, key, 0, -1)
	if len(ids) != 3 || ids[0] != "new-post" {
		t.Fatalf("expected trimmed list headed by new post, got: %v", ids)
	}
}

// ---------- Negative tests ----------

// Simulate Kafka read error
func TestWorker_KafkaReadError(t *testing.T) {
	w := New(store.NewMock(), cache.NewMock(), &appkafka.MockKafkaFail{}, 1, 1, 100)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := runWorkerOnce(ctx, w); err == nil {
		t.Fatalf("expected error from Kafka read")
	}
}

// Simulate invalid event JSON
func TestWorker_InvalidEventJSON(t *testing.T) {
	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{
			{Value: []byte("{invalid-json}")},
		},
	}
	w := New(store.NewMock(), cache.NewMock(), mockKafka, 1, 1, 100)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := runWorkerOnce(ctx, w); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

// Simulate store failure when resolving followers
func TestWorker_StoreGetFollowersFail(t *testing.T) {
	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{eventMessage(t, models.PostCreatedEvent{
			PostID:   "200",
			AuthorID: "author123",
			Privacy:  models.PrivacyPublic,
		})},
	}
	w := New(&store.MockStoreFail{}, cache.NewMock(), mockKafka, 1, 1, 100)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := runWorkerOnce(ctx, w); err == nil {
		t.Fatalf("expected error from store GetFollowers, got nil")
	}
}

func TestWorker_EmptyKafkaMessage(t *testing.T) {
	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{{Value: nil}},
	}
	w := New(store.NewMock(), cache.NewMock(), mockKafka, 1, 1, 100)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := runWorkerOnce(ctx, w); err != nil {
		t.Fatalf("expected no error for empty Kafka message, got: %v", err)
	}
}

// slowCache delays appends to model a laggy cache store.
type slowCache struct {
	*cache.MockFeedCache
	delay time.Duration
}

func (c *slowCache) AppendPost(ctx context.Context, key, postID string, ttl time.Duration) error {
	time.Sleep(c.delay)
	return c.MockFeedCache.AppendPost(ctx, key, postID, ttl)
}

// Cancellation mid-fan-out must wait out refreshes already started; no cache
// write may land after Run returns.
func TestWorker_ShutdownDrainsInFlightRefreshes(t *testing.T) {
	ctx := context.Background()
	mockStore := store.NewMock()
	sc := &slowCache{MockFeedCache: cache.NewMock(), delay: 100 * time.Millisecond}

	author, _ := mockStore.CreateUser(ctx, "author", "author@example.com", "")
	warm := []string{cache.UserFeedKey(author.ID)}
	for i := 0; i < 25; i++ {
		f, _ := mockStore.CreateUser(ctx, fmt.Sprintf("f%d", i), fmt.Sprintf("f%d@example.com", i), "")
		mockStore.CreateFollow(ctx, f.ID, author.ID)
		warm = append(warm, cache.UserFeedKey(f.ID))
	}
	for _, key := range warm {
		sc.MockFeedCache.AppendPost(ctx, key, "old-post", 0)
	}

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{eventMessage(t, models.PostCreatedEvent{
			PostID:   "new-post",
			AuthorID: author.ID,
			Privacy:  models.PrivacyFollowerOnly,
		})},
	}

	w := New(mockStore, sc, mockKafka, 1, 1, 100)

	runCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	w.Run(runCtx)

	before := countRefreshed(ctx, sc.MockFeedCache, warm)
	time.Sleep(250 * time.Millisecond)
	after := countRefreshed(ctx, sc.MockFeedCache, warm)
	if after != before {
		t.Fatalf("refresh goroutines outlived shutdown: %d keys refreshed at return, %d later", before, after)
	}
}

func countRefreshed(ctx context.Context, fc *cache.MockFeedCache, keys []string) int {
	var n int
	for _, key := range keys {
		ids, _ := fc.Range(ctx, key, 0, -1)
		if len(ids) > 0 && ids[0] == "new-post" {
			n++
		}
	}
	return n
}

// An unreachable cache only costs the refresh, never an error.
func TestWorker_CacheUnreachableDropsRefresh(t *testing.T) {
	ctx := context.Background()
	mockStore := store.NewMock()
	mockCache := cache.NewMock()
	mockCache.ShouldFail = true

	author, _ := mockStore.CreateUser(ctx, "author", "author@example.com", "")

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{eventMessage(t, models.PostCreatedEvent{
			PostID:   "new-post",
			AuthorID: author.ID,
			Privacy:  models.PrivacyPublic,
		})},
	}

	w := New(mockStore, mockCache, mockKafka, 1, 1, 100)
	if err := runWorkerOnce(ctx, w); err != nil {
		t.Fatalf("cache failure must be absorbed, got: %v", err)
	}
}
