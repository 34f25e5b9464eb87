package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, time.Minute), mr
}

func TestLockerExclusive(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()
	key := ResourceLockKey("artifact", 7)

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, key)
	require.ErrorIs(t, err, ErrLockHeld)

	release()
	releaseAgain, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	releaseAgain()
}

func TestLockerExpires(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()
	key := ResourceLockKey("rental", 1)

	_, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	release()
}

func TestNilLockerIsNoop(t *testing.T) {
	var locker *Locker
	release, err := locker.Acquire(context.Background(), "any")
	require.NoError(t, err)
	release()
}

func TestResourceLockKey(t *testing.T) {
	require.Equal(t, "workflow:artifact:42:lock", ResourceLockKey("artifact", 42))
}
