package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLeaseHeld is returned when another holder owns the key until its TTL passes.
var ErrLeaseHeld = errors.New("lease held by another process")

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived leases backed by SET NX.
type Locker struct {
	client *redis.Client
	wait   time.Duration
	poll   time.Duration
}

// NewLocker creates a locker. wait bounds how long Acquire polls for a held key.
func NewLocker(client *redis.Client, wait time.Duration) *Locker {
	return &Locker{client: client, wait: wait, poll: 50 * time.Millisecond}
}

// Lease is a held key with its owner token.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

// Acquire takes key for ttl, polling until wait elapses. Redis errors are returned
// unchanged so callers can choose to proceed without the lease.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &Lease{client: l.client, key: key, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLeaseHeld
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

// Release frees the lease if it is still ours. Expired leases are a no-op.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
