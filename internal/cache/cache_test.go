package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(0)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "detail:1", []byte(`{"id":1}`), time.Minute))

	v, ok, err := m.Get(ctx, "detail:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":1}`, string(v))

	now = now.Add(time.Minute)
	_, ok, err = m.Get(ctx, "detail:1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryZeroTTLNotStored(t *testing.T) {
	m := NewMemory(0)
	require.NoError(t, m.Set(context.Background(), "k", []byte("v"), 0))
	assert.Equal(t, 0, m.Len())
}

func TestMemoryEviction(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(2)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, m.Set(ctx, "c", []byte("3"), time.Hour))

	assert.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, "a")
	assert.False(t, ok, "entry closest to expiry is evicted first")
	_, ok, _ = m.Get(ctx, "c")
	assert.True(t, ok)
}

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	release, err := l.TryLock(ctx, "pipeline:osonish", time.Minute)
	require.NoError(t, err)

	_, err = l.TryLock(ctx, "pipeline:osonish", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.TryLock(ctx, "pipeline:hh", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := l.TryLock(ctx, "pipeline:osonish", time.Minute)
	require.NoError(t, err)
	again()
}

func TestLocalLockerExpires(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	stale, err := l.TryLock(ctx, "pipeline:osonish", 10*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		release, err := l.TryLock(ctx, "pipeline:osonish", time.Minute)
		if err != nil {
			return false
		}
		// releasing an expired handle must not free the new holder
		stale()
		_, err = l.TryLock(ctx, "pipeline:osonish", time.Minute)
		assert.ErrorIs(t, err, ErrLocked)
		release()
		return true
	}, time.Second, 5*time.Millisecond)
}
