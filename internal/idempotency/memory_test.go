package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-system/internal/commerce"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)

	payload, claimed, err := s.Acquire(ctx, "u1:k1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Nil(t, payload)

	_, _, err = s.Acquire(ctx, "u1:k1")
	assert.ErrorIs(t, err, commerce.ErrCheckoutInProgress)

	require.NoError(t, s.Complete(ctx, "u1:k1", []byte(`{"OrderId":"o1"}`)))
	payload, claimed, err = s.Acquire(ctx, "u1:k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.JSONEq(t, `{"OrderId":"o1"}`, string(payload))
}

func TestMemoryStore_ReleaseAllowsRetry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)

	_, claimed, err := s.Acquire(ctx, "k")
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, s.Release(ctx, "k"))

	_, claimed, err = s.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Minute)
	s.now = func() time.Time { return now }

	_, claimed, err := s.Acquire(ctx, "k")
	require.NoError(t, err)
	require.True(t, claimed)

	now = now.Add(2 * time.Minute)
	_, claimed, err = s.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.True(t, claimed, "stale pending key should be reclaimable")
}

func TestMemoryStore_ExpiredEntriesAreDropped(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Minute)
	s.now = func() time.Time { return now }

	for _, key := range []string{"u1:a", "u1:b", "u2:a"} {
		_, _, err := s.Acquire(ctx, key)
		require.NoError(t, err)
	}
	require.NoError(t, s.Complete(ctx, "u1:b", []byte(`{}`)))
	assert.Len(t, s.entries, 3)

	now = now.Add(2 * time.Minute)
	_, claimed, err := s.Acquire(ctx, "u3:a")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Len(t, s.entries, 1)
	assert.Contains(t, s.entries, "u3:a")
}
