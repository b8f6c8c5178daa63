package driven

import (
	"context"
	"time"
)

// DistributedLock serializes pipeline runs for one episode across worker
// processes. Names are "episode:<id>".
type DistributedLock interface {
	// Acquire takes the lock for ttl. It returns false, nil when another
	// holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release drops the lock. Releasing a lock that is not held is not an error.
	Release(ctx context.Context, name string) error

	// Extend pushes the expiry of a held lock out by ttl. Backends without
	// expiry only verify the lock is still held.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	Ping(ctx context.Context) error
}
