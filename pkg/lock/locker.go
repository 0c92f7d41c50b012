package lock

import "context"

// Locker provides mutual exclusion per key. Lock blocks until the key is
// free or ctx is done. The returned unlock func is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
