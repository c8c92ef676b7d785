package appkafka

import (
	"context"
	"encoding/json"
	"errors"

	"example.com/socialfeed/internal/cache"
	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/store"
	"github.com/segmentio/kafka-go"
)

// MockKafka records written messages and, when wired to a mock store and
// cache, applies the fan-out a running worker would: each published
// post_created event prepends the post id into the warm feed caches of the
// author and their followers.
type MockKafka struct {
	Store           *store.MockStore
	Cache           *cache.MockFeedCache
	WrittenMessages []kafka.Message // stores messages written via WriteMessages
	ReadMessages    []kafka.Message // queue of messages to be read via ReadMessage
	ShouldFail      bool            // flag to simulate failures during write or read operations
}

// WriteMessages simulates publishing post events, immediately refreshing
// warm caches the way the fan-out worker does.
func (m *MockKafka) WriteMessages(messages ...kafka.Message) error {
	if m.ShouldFail {
		return errors.New("mock kafka write failed")
	}
	m.WrittenMessages = append(m.WrittenMessages, messages...)

	if m.Store == nil || m.Cache == nil {
		return nil
	}

	ctx := context.Background()
	for _, msg := range messages {
		var event models.PostCreatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return err
		}

		targets := []string{cache.UserFeedKey(event.AuthorID)}
		followers, _ := m.Store.GetFollowers(ctx, event.AuthorID)
		for _, followerID := range followers {
			targets = append(targets, cache.UserFeedKey(followerID))
		}
		if event.Privacy == models.PrivacyPublic {
			targets = append(targets, cache.PublicFeedKey)
		}

		for _, key := range targets {
			if ok, _ := m.Cache.Exists(ctx, key); !ok {
				continue
			}
			_ = m.Cache.AppendPost(ctx, key, event.PostID, 0)
		}
	}

	return nil
}

// ReadMessage pops the next queued message.
func (m *MockKafka) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if m.ShouldFail {
		return kafka.Message{}, errors.New("mock kafka read failed")
	}
	if len(m.ReadMessages) == 0 {
		return kafka.Message{}, errors.New("no messages")
	}
	// Take the first message from the queue and remove it
	msg := m.ReadMessages[0]
	m.ReadMessages = m.ReadMessages[1:]
	return msg, nil
}

// Close is a no-op.
func (m *MockKafka) Close() error { return nil }

// MockKafkaFail always fails.
type MockKafkaFail struct{}

func (m *MockKafkaFail) WriteMessages(messages ...kafka.Message) error {
	return errors.New("mock kafka write failed")
}

func (m *MockKafkaFail) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return kafka.Message{}, errors.New("mock kafka read failed")
}

func (m *MockKafkaFail) Close() error { return nil }
