package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// ErrLockHeld 同一订单已有请求在处理中。
var ErrLockHeld = errors.New("order lock held by another request")

// luaReleaseOrderLockIfMatch 仅当锁值匹配 token 时才删除，避免误删后来者的锁。
const luaReleaseOrderLockIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

// OrderLocker 基于 SET NX 的订单级互斥锁。
type OrderLocker struct {
	rdb *rd.Client
	ttl time.Duration
}

func NewOrderLocker(rdb *rd.Client, ttl time.Duration) *OrderLocker {
	return &OrderLocker{rdb: rdb, ttl: ttl}
}

// Acquire 加锁成功返回释放函数；锁被占用时返回 ErrLockHeld。
// TTL 兜底进程崩溃后锁永不释放的情况。
func (l *OrderLocker) Acquire(ctx context.Context, orderID string) (func(context.Context) error, error) {
	key := OrderLockKey(orderID)
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func(ctx context.Context) error {
		return ReleaseOrderLockIfMatch(ctx, l.rdb, orderID, token)
	}
	return release, nil
}

// ReleaseOrderLockIfMatch 安全释放订单锁。
func ReleaseOrderLockIfMatch(ctx context.Context, rdb *rd.Client, orderID, token string) error {
	_, err := rdb.Eval(ctx, luaReleaseOrderLockIfMatch, []string{OrderLockKey(orderID)}, token).Int()
	return err
}
