package swcache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a lifecycle event is not allowed in the current state.
	ErrInvalidTransition = errors.New("swcache: invalid lifecycle transition")
	// ErrNotCacheable is returned by Store.Put for requests the store cannot hold.
	ErrNotCacheable = errors.New("swcache: request is not cacheable")
	// ErrClosed is returned by operations on a closed agent.
	ErrClosed = errors.New("swcache: agent closed")
)

// TransportError is a network-level failure: unreachable host, timeout, DNS.
// It is recovered through the offline fallback where one applies.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("swcache: fetch %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StorageError is a provider or registry failure (backend down, quota exceeded).
// Interception never surfaces it; the operation is treated as a miss.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("swcache: storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("swcache: storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ReclaimError reports a partially failed version delete.
type ReclaimError struct {
	Version   string
	BumpErr   error
	DelErr    error
	ForgetErr error
}

func (e *ReclaimError) Error() string {
	switch {
	case e.BumpErr != nil && e.DelErr != nil:
		return fmt.Sprintf("reclaim %q failed: generation bump and delete failed: bump=%v; delete=%v",
			e.Version, e.BumpErr, e.DelErr)
	case e.BumpErr != nil:
		return fmt.Sprintf("reclaim %q: generation bump failed: %v", e.Version, e.BumpErr)
	case e.DelErr != nil:
		return fmt.Sprintf("reclaim %q: delete failed: %v", e.Version, e.DelErr)
	case e.ForgetErr != nil:
		return fmt.Sprintf("reclaim %q: forget failed: %v", e.Version, e.ForgetErr)
	default:
		return fmt.Sprintf("reclaim %q: unknown error", e.Version)
	}
}

func (e *ReclaimError) Unwrap() []error {
	errs := make([]error, 0, 3)
	for _, err := range []error{e.BumpErr, e.DelErr, e.ForgetErr} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
