package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a live server: REDIS_TEST_URL=redis://localhost:6379/15
func TestRedisLocker(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	locker := NewRedisLocker(rdb, "virtualrag:test:lock:", time.Minute)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "hash")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "hash")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()

	unlock2, err := locker.Lock(ctx, "hash")
	require.NoError(t, err)
	unlock2()
}
