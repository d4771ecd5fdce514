// Package cache memoizes results keyed by content identity.
//
// Write-race policy: first writer wins with in-flight deduplication.
// Concurrent misses on one key share a single computation and all receive
// its result; later requests read the stored value. Failed computations are
// not stored, so the next request retries.
package cache

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultSize is the entry limit used when a size <= 0 is requested.
const DefaultSize = 256

// Key is a comparable cache key with a stable string form.
type Key interface {
	comparable
	String() string
}

// DiffKey identifies a diff by the content hashes of its two specs.
type DiffKey struct {
	BaseHash string
	HeadHash string
}

func (k DiffKey) String() string { return k.BaseHash + ".." + k.HeadHash }

// SpecKey identifies a retrieved spec.
type SpecKey struct {
	Owner       string
	Repo        string
	ContentHash string
}

// String quotes owner and repo so distinct keys never share a form.
func (k SpecKey) String() string { return fmt.Sprintf("%q/%q@%s", k.Owner, k.Repo, k.ContentHash) }

// Stats counts cache activity since creation.
type Stats struct {
	Hits         int64 `json:"hits"`
	Misses       int64 `json:"misses"`
	Computations int64 `json:"computations"`
}

// Memo is a size-bounded, concurrency-safe memo. Entries never expire;
// the least recently used entry is evicted once the size is reached.
type Memo[K Key, V any] struct {
	name    string
	entries *lru.Cache[K, V]
	group   singleflight.Group
	logger  *log.Logger

	hits, misses, computations atomic.Int64
}

// New creates a Memo holding at most size entries.
func New[K Key, V any](name string, size int) (*Memo[K, V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[K, V](size)
	if err != nil {
		return nil, fmt.Errorf("create %s cache: %w", name, err)
	}
	return &Memo[K, V]{
		name:    name,
		entries: entries,
		logger:  log.NewWithOptions(os.Stderr, log.Options{Prefix: "cache"}),
	}, nil
}

// SetLogger replaces the memo's logger.
func (m *Memo[K, V]) SetLogger(l *log.Logger) {
	m.logger = l
}

// Get returns the value for key, calling compute at most once per key while
// the entry is retained. Callers that miss while a computation for key is
// running wait for it and share its result, including its error. The
// computation runs with the context of the caller that started it.
func (m *Memo[K, V]) Get(ctx context.Context, key K, compute func(context.Context) (V, error)) (V, error) {
	if v, ok := m.entries.Get(key); ok {
		m.hits.Add(1)
		return v, nil
	}
	m.misses.Add(1)

	res, err, shared := m.group.Do(key.String(), func() (any, error) {
		// A computation may have finished between the lookup above and
		// joining the group.
		if v, ok := m.entries.Get(key); ok {
			return v, nil
		}
		m.computations.Add(1)
		v, err := compute(ctx)
		if err != nil {
			m.logger.Warn("computation failed", "cache", m.name, "key", key.String(), "error", err)
			return v, err
		}
		if evicted := m.entries.Add(key, v); evicted {
			m.logger.Debug("evicted entry", "cache", m.name)
		}
		m.logger.Debug("stored entry", "cache", m.name, "key", key.String())
		return v, nil
	})
	if shared {
		m.logger.Debug("shared in-flight computation", "cache", m.name, "key", key.String())
	}
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Peek returns the stored value for key without computing it.
func (m *Memo[K, V]) Peek(key K) (V, bool) {
	return m.entries.Peek(key)
}

// Len returns the number of stored entries.
func (m *Memo[K, V]) Len() int {
	return m.entries.Len()
}

// Stats returns the activity counters.
func (m *Memo[K, V]) Stats() Stats {
	return Stats{
		Hits:         m.hits.Load(),
		Misses:       m.misses.Load(),
		Computations: m.computations.Load(),
	}
}
