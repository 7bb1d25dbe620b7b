// Package woasmem is the local hash-table WOAS backend (spec.md §4.1):
// single process, trivially serialized behind one mutex. Grounded on
// internal/state/snapshot_service.go's map[string]*Snapshot shape from the
// teacher repo.
package woasmem

import (
	"context"
	"sync"

	"github.com/ocx/agentbus/internal/woas"
)

type cell struct {
	value []byte
}

// Store is an in-process WOAS backend backed by a map, guarded by a
// single mutex. It trivially supports Tail since it holds every write.
type Store struct {
	mu     sync.Mutex
	spaces map[string]map[uint64]cell
}

func New() *Store {
	return &Store{spaces: make(map[string]map[uint64]cell)}
}

func (s *Store) Write(_ context.Context, space string, addr uint64, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cells, ok := s.spaces[space]
	if !ok {
		cells = make(map[uint64]cell)
		s.spaces[space] = cells
	}
	if _, exists := cells[addr]; exists {
		return &woas.ErrAddressAlreadyExists{Addr: addr}
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	cells[addr] = cell{value: stored}
	return nil
}

func (s *Store) Read(_ context.Context, space string, addr uint64) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cells, ok := s.spaces[space]
	if !ok {
		return nil, false, nil
	}
	c, ok := cells[addr]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(c.value))
	copy(out, c.value)
	return out, true, nil
}

// Tail returns one past the highest claimed address, or 0 if the space
// has never been written to. It is exact here (unlike a remote backend)
// because the in-process map holds every write made through this handle.
func (s *Store) Tail(_ context.Context, space string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cells, ok := s.spaces[space]
	if !ok {
		return 0, nil
	}
	var max uint64
	any := false
	for addr := range cells {
		if !any || addr >= max {
			max = addr
			any = true
		}
	}
	if !any {
		return 0, nil
	}
	return max + 1, nil
}
