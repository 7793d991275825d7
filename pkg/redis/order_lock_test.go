package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *rd.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestOrderLocker_SecondAcquireIsRejected(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewOrderLocker(rdb, 30*time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "ORD-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(OrderLockKey("ORD-1")))

	_, err = l.Acquire(ctx, "ORD-1")
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists(OrderLockKey("ORD-1")))

	_, err = l.Acquire(ctx, "ORD-1")
	assert.NoError(t, err)
}

func TestOrderLocker_ReleaseDoesNotDeleteForeignLock(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewOrderLocker(rdb, time.Second)
	ctx := context.Background()

	staleRelease, err := l.Acquire(ctx, "ORD-1")
	require.NoError(t, err)

	// 锁过期后被新请求拿到
	mr.FastForward(2 * time.Second)
	_, err = l.Acquire(ctx, "ORD-1")
	require.NoError(t, err)

	require.NoError(t, staleRelease(ctx))
	assert.True(t, mr.Exists(OrderLockKey("ORD-1")))
}

func TestOrderLocker_TTLIsSet(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewOrderLocker(rdb, 30*time.Second)

	_, err := l.Acquire(context.Background(), "ORD-9")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, mr.TTL(OrderLockKey("ORD-9")))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "webshop:order:lock:ORD-1", OrderLockKey("ORD-1"))
	assert.Equal(t, "webshop:rate_limit:complete_order:customer:anna@example.com",
		RateLimitCustomerKey("complete_order", " Anna@Example.com "))
	assert.Equal(t, "webshop:rate_limit:complete_order:ip:10.0.0.1", RateLimitIPKey("complete_order", "10.0.0.1"))
}
