package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "tribute:lock:"

// NewRedisClient parses url and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// RedisLocker hands out redsync mutexes shared by every worker process.
type RedisLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	log    *zap.Logger
}

// NewRedisLocker builds a locker whose locks expire after expiry unless
// released earlier.
func NewRedisLocker(client redis.UniversalClient, expiry time.Duration, log *zap.Logger) *RedisLocker {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		log:    log,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	mutex := l.rs.NewMutex(keyPrefix+key, redsync.WithExpiry(l.expiry))

	if err := mutex.LockContext(ctx); err != nil {
		if errors.Is(err, redsync.ErrFailed) {
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}

	return func() {
		// The caller's ctx may already be done.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := mutex.UnlockContext(unlockCtx); err != nil {
			l.log.Error("release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
