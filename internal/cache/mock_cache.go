package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockFeedCache simulates the redis list cache in memory for testing.
type MockFeedCache struct {
	mu         sync.Mutex
	Lists      map[string][]string
	TTLs       map[string]time.Duration
	DefaultTTL time.Duration
	ShouldFail bool // flag to simulate an unreachable cache store
}

// NewMock initializes a new mock feed cache
func NewMock() *MockFeedCache {
	return &MockFeedCache{
		Lists:      make(map[string][]string),
		TTLs:       make(map[string]time.Duration),
		DefaultTTL: time.Hour,
	}
}

func (m *MockFeedCache) AppendPost(ctx context.Context, key, postID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: cache unreachable")
	}
	m.Lists[key] = append([]string{postID}, m.Lists[key]...)
	m.TTLs[key] = effectiveTTL(ttl, m.DefaultTTL)
	return nil
}

func (m *MockFeedCache) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("mock: cache unreachable")
	}
	list := m.Lists[key]
	n := int64(len(list))
	if n == 0 {
		return nil, nil
	}
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (m *MockFeedCache) Trim(ctx context.Context, key string, maxLen int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: cache unreachable")
	}
	if list, ok := m.Lists[key]; ok && int64(len(list)) > maxLen {
		m.Lists[key] = list[:maxLen]
	}
	return nil
}

func (m *MockFeedCache) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: cache unreachable")
	}
	delete(m.Lists, key)
	delete(m.TTLs, key)
	return nil
}

func (m *MockFeedCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return false, errors.New("mock: cache unreachable")
	}
	_, ok := m.Lists[key]
	return ok, nil
}

func (m *MockFeedCache) Close() error { return nil }
