package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLeaseHeld is returned when another instance holds the lease.
var ErrLeaseHeld = errors.New("lease held by another instance")

// Lease is a renewable cross-instance lock.
type Lease interface {
	// Acquire obtains or refreshes the lease. It returns ErrLeaseHeld when
	// another holder owns it.
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// RedisLease implements Lease with bsm/redislock.
type RedisLease struct {
	locker *redislock.Client
	key    string
	ttl    time.Duration
	lock   *redislock.Lock
}

// NewRedisLease creates a lease on key.
func NewRedisLease(client redis.UniversalClient, key string, ttl time.Duration) *RedisLease {
	return &RedisLease{locker: redislock.New(client), key: key, ttl: ttl}
}

// Acquire implements Lease.
func (l *RedisLease) Acquire(ctx context.Context) error {
	if l.lock != nil {
		err := l.lock.Refresh(ctx, l.ttl, nil)
		if err == nil {
			return nil
		}
		l.lock = nil
		if !errors.Is(err, redislock.ErrNotObtained) {
			return fmt.Errorf("refresh lease: %w", err)
		}
	}

	lock, err := l.locker.Obtain(ctx, l.key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrLeaseHeld
	}
	if err != nil {
		return fmt.Errorf("obtain lease: %w", err)
	}
	l.lock = lock
	return nil
}

// Release implements Lease.
func (l *RedisLease) Release(ctx context.Context) error {
	if l.lock == nil {
		return nil
	}
	err := l.lock.Release(ctx)
	l.lock = nil
	if err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// LocalLease always succeeds. Used when Redis is not configured.
type LocalLease struct{}

// Acquire implements Lease.
func (LocalLease) Acquire(context.Context) error { return nil }

// Release implements Lease.
func (LocalLease) Release(context.Context) error { return nil }
