package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsearch-io/docsearch/pkg/config"
)

type memCounterStore struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newMemCounterStore() *memCounterStore {
	return &memCounterStore{
		counts:  make(map[string]int64),
		expires: make(map[string]time.Duration),
	}
}

func (s *memCounterStore) Increment(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.counts[key]++
	return s.counts[key], nil
}

func (s *memCounterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires[key] = ttl
	return nil
}

func newTestLimiter(store CounterStore, limit int) *Limiter {
	return New(store, config.RateLimitConfig{
		Enabled: true,
		Limit:   limit,
		Window:  time.Minute,
	}, nil)
}

func TestAllowUpToLimitThenReject(t *testing.T) {
	store := newMemCounterStore()
	l := newTestLimiter(store, 2)

	ctx := context.Background()
	assert.True(t, l.Allow(ctx, "acme"))
	assert.True(t, l.Allow(ctx, "acme"))
	assert.False(t, l.Allow(ctx, "acme"))
	assert.False(t, l.Allow(ctx, "acme"))
}

func TestTenantsCountedIndependently(t *testing.T) {
	store := newMemCounterStore()
	l := newTestLimiter(store, 1)

	ctx := context.Background()
	assert.True(t, l.Allow(ctx, "acme"))
	assert.False(t, l.Allow(ctx, "acme"))
	assert.True(t, l.Allow(ctx, "globex"))
}

func TestNewWindowResetsQuota(t *testing.T) {
	store := newMemCounterStore()
	l := newTestLimiter(store, 1)

	current := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return current }

	ctx := context.Background()
	assert.True(t, l.Allow(ctx, "acme"))
	assert.False(t, l.Allow(ctx, "acme"))

	current = current.Add(time.Minute)
	assert.True(t, l.Allow(ctx, "acme"))
}

func TestWindowExpiryArmedOnFirstHit(t *testing.T) {
	store := newMemCounterStore()
	l := newTestLimiter(store, 5)

	ctx := context.Background()
	require.True(t, l.Allow(ctx, "acme"))
	require.True(t, l.Allow(ctx, "acme"))

	assert.Len(t, store.expires, 1)
	for _, ttl := range store.expires {
		assert.Equal(t, time.Minute, ttl)
	}
}

func TestFailsOpenWhenStoreUnavailable(t *testing.T) {
	store := newMemCounterStore()
	store.err = errors.New("connection refused")
	l := newTestLimiter(store, 1)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow(ctx, "acme"))
	}
}

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	store := newMemCounterStore()
	l := New(store, config.RateLimitConfig{Enabled: false, Limit: 1, Window: time.Minute}, nil)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow(ctx, "acme"))
	}
	assert.Empty(t, store.counts)
}
