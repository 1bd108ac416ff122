package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned by TryLock when the lock is already held.
var ErrLocked = errors.New("lock already held")

// Locker hands out named, expiring, exclusive locks.
type Locker interface {
	// TryLock acquires name without waiting. The returned function releases
	// the lock; calling it more than once is harmless.
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), err error)
}

// LocalLocker is a Locker for a single process.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]string
	timer map[string]*time.Timer
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]string), timer: make(map[string]*time.Timer)}
}

// TryLock implements Locker.
func (l *LocalLocker) TryLock(_ context.Context, name string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[name]; ok {
		return nil, ErrLocked
	}
	token := uuid.NewString()
	l.held[name] = token
	if ttl > 0 {
		l.timer[name] = time.AfterFunc(ttl, func() { l.release(name, token) })
	}
	return func() { l.release(name, token) }, nil
}

func (l *LocalLocker) release(name, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] != token {
		return
	}
	delete(l.held, name)
	if t, ok := l.timer[name]; ok {
		t.Stop()
		delete(l.timer, name)
	}
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every process using the same redis.
type RedisLocker struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisLocker creates a RedisLocker.
func NewRedisLocker(rdb redis.UniversalClient, prefix string) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

// TryLock implements Locker with SET NX PX.
func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	key := l.prefix + name
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
		})
	}, nil
}
