package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotAcquired is returned when another booking holds the clinic lock.
	ErrLockNotAcquired = errors.New("clinic lock not acquired")
	// ErrLockUnavailable is returned when the lock backend cannot be reached.
	ErrLockUnavailable = errors.New("clinic lock unavailable")
)

// Locker serializes critical sections per clinic.
type Locker interface {
	WithClinicLock(ctx context.Context, clinicID string, fn func(ctx context.Context) error) error
}

// Noop runs fn without any locking.
type Noop struct{}

// WithClinicLock implements Locker.
func (Noop) WithClinicLock(ctx context.Context, clinicID string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// RedisLocker holds a per-clinic SETNX key for the duration of fn.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a locker that uses a per-clinic Redis key.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// WithClinicLock implements Locker. fn runs with a context bounded by the lock TTL.
func (l *RedisLocker) WithClinicLock(ctx context.Context, clinicID string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:clinic:%s", clinicID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release clinic lock: %w", err)
	}
	return nil
}

var (
	_ Locker = Noop{}
	_ Locker = (*RedisLocker)(nil)
)
