// Package woas defines the Write-Once Address Space contract (spec.md
// §4.1): a mapping (space_id, address) -> bytes where each cell may be
// claimed exactly once. Concrete backends live in woasmem, woasredis, and
// woasspanner; callers depend only on the Store interface so
// internal/bus can run unmodified against any of them.
package woas

import (
	"context"
	"errors"
	"fmt"
)

// ErrAddressAlreadyExists is returned by Write when (space, addr) is
// already bound. Exactly one concurrent writer racing for the same cell
// receives success; every other writer receives this error.
type ErrAddressAlreadyExists struct {
	Addr uint64
}

func (e *ErrAddressAlreadyExists) Error() string {
	return fmt.Sprintf("woas: address %d already exists", e.Addr)
}

// ErrBackendUnavailable wraps a transport/store failure. It is always
// retryable from the caller's point of view (spec.md §7).
type ErrBackendUnavailable struct {
	Msg string
	Err error
}

func (e *ErrBackendUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("woas: backend unavailable: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("woas: backend unavailable: %s", e.Msg)
}

func (e *ErrBackendUnavailable) Unwrap() error { return e.Err }

// ErrNotImplemented is returned by optional operations (Tail) that a
// given backend cannot support; callers fall back to a linear scan.
var ErrNotImplemented = errors.New("woas: operation not implemented by this backend")

// Store is the Write-Once Address Space contract. Implementations must
// give read-your-writes consistency from the same handle (spec.md §4.1).
type Store interface {
	// Write claims (space, addr) with bytes. Succeeds iff nothing is
	// currently bound there; on a race exactly one caller succeeds.
	Write(ctx context.Context, space string, addr uint64, value []byte) error

	// Read returns the bytes bound at (space, addr), or ok=false if
	// nothing is bound there yet.
	Read(ctx context.Context, space string, addr uint64) (value []byte, ok bool, err error)

	// Tail returns any address known to be unoccupied in space. It need
	// not be linearizable with concurrent writes. Backends that cannot
	// provide it return ErrNotImplemented.
	Tail(ctx context.Context, space string) (uint64, error)
}
