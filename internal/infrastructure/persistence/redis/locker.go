package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISTRIBUTED LOCKS
// SET NX PX with a random token; release deletes the key only while the token
// still matches, so an expired holder never frees someone else's lock.
// ══════════════════════════════════════════════════════════════════════════════

// ErrLockTimeout is returned when a mentor lock could not be acquired in time.
var ErrLockTimeout = errors.New("lock: acquire timeout")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockerConfig tunes lock acquisition.
type LockerConfig struct {
	// TTL is the lock lifetime.
	TTL time.Duration

	// RetryInterval is the pause between acquisition attempts.
	RetryInterval time.Duration

	// MaxWait bounds how long LockMentor waits.
	MaxWait time.Duration
}

// DefaultLockerConfig returns default lock settings.
func DefaultLockerConfig() LockerConfig {
	return LockerConfig{
		TTL:           TTLMentorLock,
		RetryInterval: 50 * time.Millisecond,
		MaxWait:       5 * time.Second,
	}
}

// Locker implements mentorship.MentorLocker and command.SweepLock.
type Locker struct {
	cache  *Cache
	config LockerConfig
}

// NewLocker creates a new Locker.
func NewLocker(cache *Cache, cfg LockerConfig) *Locker {
	def := DefaultLockerConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = def.MaxWait
	}
	return &Locker{cache: cache, config: cfg}
}

// LockMentor blocks until the mentor lock is held, ctx is done or MaxWait passes.
func (l *Locker) LockMentor(ctx context.Context, programID, mentorID string) (func(), error) {
	key := MentorLockKey(programID, mentorID)
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, l.config.MaxWait)
	defer cancel()

	ticker := time.NewTicker(l.config.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.cache.SetNX(ctx, key, token, l.config.TTL)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(key, token), nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// TryLock makes a single acquisition attempt on a named lock.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}
	key := LockKey(name)
	token := uuid.NewString()

	ok, err := l.cache.SetNX(ctx, key, token, ttl)
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return l.releaser(key, token), true, nil
}

func (l *Locker) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			// A failed release is harmless; the key expires with its TTL.
			_ = releaseScript.Run(ctx, l.cache.client, []string{key}, token).Err()
		})
	}
}
