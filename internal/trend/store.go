package trend

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Store persists snapshots per package. Implementations need not serialize
// appends against prunes; Tracker does that.
type Store interface {
	// Append adds s to its package's history.
	Append(ctx context.Context, s Snapshot) error
	// Load returns up to limit snapshots of pkg, newest first. limit <= 0
	// returns all of them.
	Load(ctx context.Context, pkg string, limit int) ([]Snapshot, error)
	// DeleteKeepNewest removes all but the keep newest snapshots of pkg.
	DeleteKeepNewest(ctx context.Context, pkg string, keep int) (int, error)
	// DeleteBefore removes snapshots of pkg older than cutoff.
	DeleteBefore(ctx context.Context, pkg string, cutoff time.Time) (int, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string][]Snapshot
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string][]Snapshot)}
}

// Append implements Store.
func (m *MemoryStore) Append(_ context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[s.Package] = append(m.snaps[s.Package], s)
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, pkg string, limit int) ([]Snapshot, error) {
	m.mu.RLock()
	out := NewestFirst(m.snaps[pkg])
	m.mu.RUnlock()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteKeepNewest implements Store.
func (m *MemoryStore) DeleteKeepNewest(_ context.Context, pkg string, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := NewestFirst(m.snaps[pkg])
	if keep < 0 {
		keep = 0
	}
	if len(sorted) <= keep {
		return 0, nil
	}
	m.snaps[pkg] = sorted[:keep]
	return len(sorted) - keep, nil
}

// DeleteBefore implements Store.
func (m *MemoryStore) DeleteBefore(_ context.Context, pkg string, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.snaps[pkg])
	m.snaps[pkg] = slices.DeleteFunc(m.snaps[pkg], func(s Snapshot) bool {
		return s.Timestamp.Before(cutoff)
	})
	return before - len(m.snaps[pkg]), nil
}

// Chronological returns a copy of snaps sorted oldest first. Snapshots with
// equal timestamps keep their ID order.
func Chronological(snaps []Snapshot) []Snapshot {
	out := slices.Clone(snaps)
	slices.SortStableFunc(out, func(a, b Snapshot) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// NewestFirst returns a copy of snaps sorted newest first.
func NewestFirst(snaps []Snapshot) []Snapshot {
	out := Chronological(snaps)
	slices.Reverse(out)
	return out
}
