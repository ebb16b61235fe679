// Package versions tracks which store versions exist, a generation counter per
// version, and the provider keys written under each version.
//
// Deleting a version bumps its generation. Entries carry the generation they
// were written under, so readers reject (and self-heal) entries of a deleted
// version even when the key index is incomplete, e.g. after a restart with a
// persistent provider but an in-process registry.
package versions

import (
	"context"
	"errors"
)

// ErrUnregistered is returned by Track for a version that is not registered,
// typically one deleted while a write for it was still in flight.
var ErrUnregistered = errors.New("versions: version not registered")

type Registry interface {
	// Register adds version to the set. Registering twice is a no-op.
	Register(ctx context.Context, version string) error
	// Versions returns the registered versions in ascending order.
	Versions(ctx context.Context) ([]string, error)
	// Forget removes version from the set and drops its key index.
	// The generation survives so stale entries keep failing validation.
	Forget(ctx context.Context, version string) error

	// Generation returns the current generation; unknown => 0.
	Generation(ctx context.Context, version string) (uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, version string) (uint64, error)

	// Track records a provider key written under version. It returns
	// ErrUnregistered, and records nothing, when version is not registered.
	Track(ctx context.Context, version, key string) error
	// Keys returns the tracked keys of version in no particular order.
	Keys(ctx context.Context, version string) ([]string, error)

	Close(context.Context) error
}
