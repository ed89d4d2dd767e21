package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// storeSuite runs against every Store implementation.
type storeSuite struct {
	suite.Suite
	newStore func() Store
	store    Store
	ctx      context.Context
}

func (s *storeSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore()
}

func (s *storeSuite) TestReserveOnce() {
	existing, ok, err := s.store.Reserve(s.ctx, "alice:k1", "fp", time.Minute)
	s.Require().NoError(err)
	s.True(ok)
	s.Nil(existing)

	existing, ok, err = s.store.Reserve(s.ctx, "alice:k1", "fp", time.Minute)
	s.Require().NoError(err)
	s.False(ok)
	s.Require().NotNil(existing)
	s.True(existing.Pending())
	s.Equal("fp", existing.Fingerprint)
}

func (s *storeSuite) TestCompleteThenReplay() {
	_, ok, err := s.store.Reserve(s.ctx, "alice:k2", "fp", time.Minute)
	s.Require().NoError(err)
	s.Require().True(ok)

	err = s.store.Complete(s.ctx, "alice:k2", Record{
		Fingerprint: "fp",
		Status:      201,
		ContentType: "application/json",
		Body:        []byte(`{"id":1}`),
	}, time.Minute)
	s.Require().NoError(err)

	existing, ok, err := s.store.Reserve(s.ctx, "alice:k2", "fp", time.Minute)
	s.Require().NoError(err)
	s.False(ok)
	s.Equal(201, existing.Status)
	s.JSONEq(`{"id":1}`, string(existing.Body))
}

func (s *storeSuite) TestReleaseFreesKey() {
	_, ok, err := s.store.Reserve(s.ctx, "alice:k3", "fp", time.Minute)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().NoError(s.store.Release(s.ctx, "alice:k3"))

	_, ok, err = s.store.Reserve(s.ctx, "alice:k3", "fp", time.Minute)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *storeSuite) TestConcurrentReserveHasOneWinner() {
	const goroutines = 20
	var wg sync.WaitGroup
	var winners atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.store.Reserve(s.ctx, "alice:race", "fp", time.Minute)
			s.NoError(err)
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), winners.Load())
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, &storeSuite{newStore: func() Store { return NewMemoryStore() }})
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, ok, err := store.Reserve(ctx, "k", "fp", time.Hour)
	if err != nil || !ok {
		t.Fatalf("expected first reserve to succeed, got ok=%v err=%v", ok, err)
	}
	now = now.Add(time.Hour)
	_, ok, err = store.Reserve(ctx, "k", "fp", time.Hour)
	if err != nil || !ok {
		t.Fatalf("expected reserve after expiry to succeed, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreSweepsExpiredEntries(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		_, ok, err := store.Reserve(ctx, key, "fp", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}
	_, _, err := store.Reserve(ctx, "long", "fp", time.Hour)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, ok, err := store.Reserve(ctx, "d", "fp", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.entries, 2)
	assert.Contains(t, store.entries, "long")
	assert.Contains(t, store.entries, "d")
}
