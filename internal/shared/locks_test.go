package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewRedisLocker(client, time.Minute)
	ctx := context.Background()

	release, ok, err := locker.Acquire(ctx, "ANGSURAN:7")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, mr.Exists(SyncLockKey("ANGSURAN:7")))

	_, ok, err = locker.Acquire(ctx, "ANGSURAN:7")
	require.NoError(t, err)
	require.False(t, ok)

	release()
	require.False(t, mr.Exists(SyncLockKey("ANGSURAN:7")))

	_, ok, err = locker.Acquire(ctx, "ANGSURAN:7")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNewRedisLockerWithoutClient(t *testing.T) {
	require.Nil(t, NewRedisLocker(nil, time.Second))
}
