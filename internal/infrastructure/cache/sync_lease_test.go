package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemorySyncLease(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lease := NewInMemorySyncLease()
	lease.now = func() time.Time { return now }
	account := uuid.New()

	t.Run("first acquire wins", func(t *testing.T) {
		ok, err := lease.Acquire(ctx, account, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, lease.Held(account))
	})

	t.Run("second acquire loses while held", func(t *testing.T) {
		ok, err := lease.Acquire(ctx, account, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("other accounts are independent", func(t *testing.T) {
		ok, err := lease.Acquire(ctx, uuid.New(), time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired lease can be taken again", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		assert.False(t, lease.Held(account))

		ok, err := lease.Acquire(ctx, account, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("release frees the lease", func(t *testing.T) {
		require.NoError(t, lease.Release(ctx, account))
		assert.False(t, lease.Held(account))

		ok, err := lease.Acquire(ctx, account, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestInMemorySyncLease_ConcurrentAcquire(t *testing.T) {
	lease := NewInMemorySyncLease()
	account := uuid.New()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := lease.Acquire(context.Background(), account, time.Hour); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestRedisSyncLease_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	defer client.Close()

	lease := NewRedisSyncLease(client, "")
	assert.Equal(t, defaultLeasePrefix, lease.keyPrefix)
	assert.NotEmpty(t, lease.owner)

	account := uuid.New()
	assert.Equal(t, defaultLeasePrefix+account.String(), lease.key(account))

	ok, err := lease.Acquire(context.Background(), account, time.Minute)
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire sync lease")

	err = lease.Release(context.Background(), account)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release sync lease")
}
