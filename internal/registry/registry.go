// Package registry defines the contract the reconciliation core consumes
// to read and mutate the cluster-wide record store, and to coordinate
// exclusive access to it across hosts.
package registry

import (
	"context"

	"github.com/kprice-io/dnssync/internal/intent"
)

// Registry is the cluster-wide record store. Implementations must be
// safe for concurrent use by a single SyncLoop goroutine pair (event
// thread never calls Registry directly; only the sync thread does).
type Registry interface {
	// List returns every intent currently persisted in the store, across
	// all hosts.
	List(ctx context.Context) ([]intent.Intent, error)

	// Register persists i as a new entry. It never overwrites an existing
	// entry for the same slot; callers are responsible for removing
	// whatever i is meant to replace first.
	Register(ctx context.Context, i intent.Intent) error

	// Remove deletes the entry matching i's record value, type, owning
	// hostname, and owning container name. It is a no-op if no such entry
	// exists.
	Remove(ctx context.Context, i intent.Intent) error

	// LockTransaction acquires an exclusive lock across the given keys
	// (sorted internally to avoid cyclic wait across hosts), runs fn, and
	// releases the lock unconditionally afterward. It returns
	// errs.ErrLockAcquisition if the lock could not be acquired within
	// the configured timeout.
	LockTransaction(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}
