package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	lockKeyPrefix = "zoomapi:lock:"
	lockRetry     = 100 * time.Millisecond
)

// ErrLockTimeout is returned when a lock could not be acquired before the context ended.
var ErrLockTimeout = errors.New("lock acquisition timed out")

var releaseScript = redis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
  return redis.call('del', KEYS[1])
else
  return 0
end
`)

// Locker is a mutual-exclusion lock across server instances using SET NX with a TTL.
// Ownership is tracked by a random token so only the holder can release.
type Locker struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewLocker creates a Locker. The TTL bounds how long a crashed holder can block others.
func NewLocker(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *Locker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Locker{client: client, ttl: ttl, logger: logger}
}

// Acquire blocks until the lock for name is held or ctx is done.
// The returned release func is safe to call once the critical section ends.
func (l *Locker) Acquire(ctx context.Context, name string) (func(), error) {
	key := lockKeyPrefix + name
	token := uuid.NewString()
	ticker := time.NewTicker(lockRetry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", name, err)
		}
		if ok {
			return func() {
				// Release with a fresh context: the caller's may already be cancelled.
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
					l.logger.Warn("release lock failed", zap.String("lock", name), zap.Error(err))
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, name)
		case <-ticker.C:
		}
	}
}

// NopLocker is used when Redis is not configured; it serializes nothing.
type NopLocker struct{}

// Acquire always succeeds immediately.
func (NopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
