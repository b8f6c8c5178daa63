package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*Lock)(nil)

// Lock is a process-local lock table with TTL expiry
type Lock struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewLock creates a process-local lock
func NewLock() *Lock {
	return &Lock{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Acquire takes the lock if it is free or expired
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, held := l.expires[name]; held && now.Before(exp) {
		return false, nil
	}
	l.expires[name] = now.Add(ttl)
	return true, nil
}

func (l *Lock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	delete(l.expires, name)
	l.mu.Unlock()
	return nil
}

// Extend resets the TTL of a held lock
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	exp, held := l.expires[name]
	if !held || !now.Before(exp) {
		return fmt.Errorf("lock %s not held", name)
	}
	l.expires[name] = now.Add(ttl)
	return nil
}

func (l *Lock) Ping(ctx context.Context) error { return nil }
