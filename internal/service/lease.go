package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SyncLease 首次同步的跨实例互斥
type SyncLease interface {
	// Acquire 尝试获取租约，acquired 为 false 表示其他实例持有
	Acquire(ctx context.Context, code string) (release func(), acquired bool, err error)
	// Wait 等待其他实例释放租约或租约过期
	Wait(ctx context.Context, code string) error
}

// NoopLease 未启用 redis 时总是获取成功
type NoopLease struct{}

func (NoopLease) Acquire(context.Context, string) (func(), bool, error) {
	return func() {}, true, nil
}

func (NoopLease) Wait(context.Context, string) error { return nil }

// 仅删除自己持有的租约
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease 基于 SET NX 的同步租约
type RedisLease struct {
	client       redis.UniversalClient
	ttl          time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewRedisLease 创建 redis 租约
func NewRedisLease(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisLease {
	return &RedisLease{
		client:       client,
		ttl:          ttl,
		pollInterval: 200 * time.Millisecond,
		logger:       logger,
	}
}

func leaseKey(code string) string {
	return "stock:sync:" + code
}

// Acquire 获取租约
func (l *RedisLease) Acquire(ctx context.Context, code string) (func(), bool, error) {
	key := leaseKey(code)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// 请求上下文可能已取消，释放使用独立超时
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("释放同步租约失败", zap.String("key", key), zap.Error(err))
		}
	}
	return release, true, nil
}

// Wait 轮询直到租约消失，最长等待一个 TTL
func (l *RedisLease) Wait(ctx context.Context, code string) error {
	key := leaseKey(code)
	deadline := time.Now().Add(l.ttl)

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		n, err := l.client.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return context.DeadlineExceeded
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
