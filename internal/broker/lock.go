package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
)

// Locker serializes refreshes of one (user, platform) pair across
// instances. Inside one process singleflight already coalesces callers.
type Locker interface {
	// Acquire blocks until the lease for key is held or ctx ends. The
	// returned release func is always safe to call.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LocalLocker is the single-instance Locker; it never blocks.
type LocalLocker struct{}

func (LocalLocker) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

var ErrLeaseTimeout = errors.New("broker: timed out waiting for refresh lease")

// Lease defaults.
const (
	DefaultLeaseTTL  = 15 * time.Second
	DefaultLeaseWait = 20 * time.Second
)

// RedisLocker holds a lease with SET NX PX. Waiters poll with exponential
// backoff until the holder releases it or the lease expires.
type RedisLocker struct {
	Client redis.UniversalClient
	Prefix string

	// TTL bounds how long a crashed holder blocks others.
	TTL time.Duration
	// Wait bounds how long Acquire polls.
	Wait time.Duration
}

// releaseScript deletes the lease only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

var errLeaseHeld = errors.New("lease held")

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	wait := l.Wait
	if wait <= 0 {
		wait = DefaultLeaseWait
	}

	leaseKey := l.Prefix + "refresh:" + key
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 25 * time.Millisecond
	expBackoff.MaxInterval = time.Second
	expBackoff.Reset()

	_, err = backoff.Retry(ctx, func() (bool, error) {
		ok, err := l.Client.SetNX(ctx, leaseKey, token, ttl).Result()
		if err != nil {
			return false, backoff.Permanent(fmt.Errorf("acquire lease: %w", err))
		}
		if !ok {
			return false, errLeaseHeld
		}
		return true, nil
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxElapsedTime(wait),
	)
	if errors.Is(err, errLeaseHeld) {
		return nil, ErrLeaseTimeout
	}
	if err != nil {
		return nil, err
	}

	release := func() {
		// The caller's context may already be done; release on our own.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.Client, []string{leaseKey}, token).Err(); err != nil {
			slog.Warn("failed to release refresh lease", "key", leaseKey, "error", err)
		}
	}
	return release, nil
}
