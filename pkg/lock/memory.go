package lock

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryLocker serializes work per key inside one process. Each key owns a
// one-slot semaphore kept in a go-cache registry; entries untouched for the
// idle window are purged so the registry does not grow with every session.
type MemoryLocker struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewMemoryLocker keeps idle semaphores for one hour and purges every ten
// minutes. The idle window must exceed the longest time a lock is held.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		cache: cache.New(1*time.Hour, 10*time.Minute),
	}
}

func (l *MemoryLocker) semaphore(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	if x, found := l.cache.Get(key); found {
		sem := x.(chan struct{})
		l.cache.Set(key, sem, cache.DefaultExpiration)
		return sem
	}

	sem := make(chan struct{}, 1)
	l.cache.Set(key, sem, cache.DefaultExpiration)
	return sem
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	sem := l.semaphore(key)

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-sem })
	}, nil
}
