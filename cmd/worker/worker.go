package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	appkafka "example.com/socialfeed/internal/broker"
	"example.com/socialfeed/internal/cache"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/store"
)

var logg = logger.New()

// Worker consumes post_created events and refreshes warm feed caches
// concurrently: the post id is prepended to the personal feed of the author
// and of each follower whose cache key already exists, and to the public
// feed key for public posts. Cold keys are skipped so cold-start ordering
// stays store-driven. Running the worker opts the deployment into
// fan-out-on-write; without it feeds refresh purely on cold start and TTL.
type Worker struct {
	store        store.StoreInterface
	cache        cache.FeedCache
	reader       appkafka.KafkaReader
	workerCount  int
	jobQueueSize int
	maxCached    int64
}

// New creates a new concurrent Worker using pre-initialized dependencies.
func New(st store.StoreInterface, fc cache.FeedCache, reader appkafka.KafkaReader, workerCount, jobQueueSize int, maxCached int64) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	if maxCached <= 0 {
		maxCached = 100
	}
	return &Worker{
		store:        st,
		cache:        fc,
		reader:       reader,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
		maxCached:    maxCached,
	}
}

// Run starts message reading and concurrent processing.
func (w *Worker) Run(ctx context.Context) {
	if w.workerCount <= 0 {
		w.workerCount = 1
	}
	if w.jobQueueSize <= 0 {
		w.jobQueueSize = 10
	}
	if w.maxCached <= 0 {
		w.maxCached = 100
	}

	logg.Info("worker", "Starting "+fmt.Sprint(w.workerCount)+" workers with queue size "+fmt.Sprint(w.jobQueueSize))

	jobs := make(chan []byte, w.jobQueueSize)
	var wg sync.WaitGroup

	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.processLoop(ctx, jobs)
		}(i)
	}

	w.readLoop(ctx, jobs)

	close(jobs)
	wg.Wait()
	logg.Info("worker", "All workers stopped gracefully")
}

// readLoop reads Kafka messages and pushes them into a job queue.
func (w *Worker) readLoop(ctx context.Context, jobs chan<- []byte) {
	var retry int
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, err := w.reader.ReadMessage(ctx)
			if err != nil {
				backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
				logg.Error("worker", "Kafka read error, backing off", err)
				if !waitWithContext(ctx, backoff) {
					return
				}
				retry++
				continue
			}
			retry = 0

			if len(msg.Value) == 0 {
				if !waitWithContext(ctx, 50*time.Millisecond) {
					return
				}
				continue
			}

			select {
			case jobs <- msg.Value:
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
				logg.Info("worker", "Queue full, waiting to enqueue Kafka message")
			}
		}
	}
}

// processLoop handles JSON decoding and cache refreshes concurrently.
func (w *Worker) processLoop(ctx context.Context, jobs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-jobs:
			if !ok {
				return
			}

			var event models.PostCreatedEvent
			if err := json.Unmarshal(data, &event); err != nil {
				logg.Error("worker", "Invalid JSON in Kafka message", err)
				continue
			}

			followers, err := w.store.GetFollowers(ctx, event.AuthorID)
			if err != nil {
				logg.Error("worker", "Error fetching followers for post author", err)
				continue
			}

			keys := make([]string, 0, len(followers)+2)
			keys = append(keys, cache.UserFeedKey(event.AuthorID))
			for _, uid := range followers {
				keys = append(keys, cache.UserFeedKey(uid))
			}
			if event.Privacy == models.PrivacyPublic {
				keys = append(keys, cache.PublicFeedKey)
			}

			const fanoutLimit = 20
			var fanoutWG sync.WaitGroup
			semaphore := make(chan struct{}, fanoutLimit)

			for _, key := range keys {
				select {
				case <-ctx.Done():
					// Drain in-flight refreshes so none outlive the loop.
					fanoutWG.Wait()
					return
				default:
					fanoutWG.Add(1)
					semaphore <- struct{}{}

					go func(k string) {
						defer fanoutWG.Done()
						defer func() { <-semaphore }()
						w.refresh(ctx, k, event.PostID)
					}(key)
				}
			}

			fanoutWG.Wait()
			logg.Info("worker", "Post fanned out to warm feed caches (post ID anonymized)")
		}
	}
}

// refresh prepends postID to key when the key is warm. A cold key means the
// feed will rebuild from the store on its next read, which already includes
// the post; touching it here would seed a partial list.
func (w *Worker) refresh(ctx context.Context, key, postID string) {
	warm, err := w.cache.Exists(ctx, key)
	if err != nil {
		logg.Warn("worker", "Cache existence check failed for "+key, err)
		return
	}
	if !warm {
		return
	}
	if err := w.cache.AppendPost(ctx, key, postID, 0); err != nil {
		logg.Warn("worker", "Dropped cache refresh for "+key, err)
		return
	}
	if err := w.cache.Trim(ctx, key, w.maxCached); err != nil {
		logg.Warn("worker", "Dropped cache trim for "+key, err)
	}
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down the Kafka reader, the cache client and the store pool.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}

	logg.Info("worker", "Closing feed cache client")
	if err := w.cache.Close(); err != nil {
		logg.Error("worker", "Error closing feed cache client", err)
	}

	logg.Info("worker", "Closing store")
	w.store.Close()
	return nil
}
