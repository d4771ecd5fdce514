package trend

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/doccov/internal/errors"
)

// Tracker records and prunes snapshots. Appends and prunes for the same
// package are serialized; different packages proceed independently.
type Tracker struct {
	store  Store
	now    func() time.Time
	logger *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source used for timestamps and tier cutoffs.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger overrides the tracker's logger.
func WithLogger(l *log.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker creates a Tracker over store.
func NewTracker(store Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		now:    time.Now,
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "trend"}),
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) lock(pkg string) func() {
	t.mu.Lock()
	l, ok := t.locks[pkg]
	if !ok {
		l = &sync.Mutex{}
		t.locks[pkg] = l
	}
	t.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Record appends s, assigning an ID and a timestamp when unset.
func (t *Tracker) Record(ctx context.Context, s Snapshot) (Snapshot, error) {
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = t.now().UTC()
	}
	if s.ID == "" {
		s.ID = ulid.Make().String()
	}

	defer t.lock(s.Package)()
	if err := t.store.Append(ctx, s); err != nil {
		return Snapshot{}, errors.NewInternal(err)
	}
	return s, nil
}

// History returns up to limit snapshots of pkg, newest first.
func (t *Tracker) History(ctx context.Context, pkg string, limit int) ([]Snapshot, error) {
	if pkg == "" {
		return nil, errors.NewInvalidRequest("package is required")
	}
	snaps, err := t.store.Load(ctx, pkg, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return snaps, nil
}

// PruneByCount keeps the keep newest snapshots of pkg and deletes the rest.
func (t *Tracker) PruneByCount(ctx context.Context, pkg string, keep int) (int, error) {
	if pkg == "" {
		return 0, errors.NewInvalidRequest("package is required")
	}
	if keep < 1 {
		return 0, errors.NewInvalidRequest("keep must be at least 1")
	}

	defer t.lock(pkg)()
	n, err := t.store.DeleteKeepNewest(ctx, pkg, keep)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	t.logger.Info("pruned snapshots", "package", pkg, "keep", keep, "deleted", n)
	return n, nil
}

// PruneByTier deletes snapshots of pkg older than the tier's retention window.
func (t *Tracker) PruneByTier(ctx context.Context, pkg string, tier Tier) (int, error) {
	if pkg == "" {
		return 0, errors.NewInvalidRequest("package is required")
	}
	days, err := RetentionDays(tier)
	if err != nil {
		return 0, err
	}
	cutoff := t.now().UTC().AddDate(0, 0, -days)

	defer t.lock(pkg)()
	n, err := t.store.DeleteBefore(ctx, pkg, cutoff)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	t.logger.Info("pruned snapshots", "package", pkg, "tier", tier, "cutoff", cutoff.Format(time.RFC3339), "deleted", n)
	return n, nil
}
