package db

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/doccov/internal/errors"
	"github.com/hpungsan/doccov/internal/trend"
)

var start = time.Date(2026, time.June, 1, 9, 30, 0, 0, time.UTC)

func newStore(t *testing.T) *SnapshotStore {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSnapshotStore(db)
}

func snapshot(pkg string, day, score int) trend.Snapshot {
	return trend.Snapshot{
		ID:                fmt.Sprintf("%s-%02d", pkg, day),
		Timestamp:         start.AddDate(0, 0, day),
		Package:           pkg,
		Version:           fmt.Sprintf("0.%d.0", day),
		CoverageScore:     score,
		DocumentedExports: score / 10,
		TotalExports:      10,
		DescriptionCount:  3,
		ParamsCount:       2,
		ReturnsCount:      1,
		DriftCount:        4,
		Source:            trend.SourceScheduled,
	}
}

func TestSnapshotStore_AppendLoad(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	want := snapshot("pricing", 0, 61)
	want.Commit = "0123456789abcdef"
	require.NoError(t, s.Append(ctx, want))
	require.NoError(t, s.Append(ctx, snapshot("pricing", 2, 70)))
	require.NoError(t, s.Append(ctx, snapshot("pricing", 1, 65)))
	require.NoError(t, s.Append(ctx, snapshot("cart", 0, 10)))

	got, err := s.Load(ctx, "pricing", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []int{70, 65, 61}, []int{got[0].CoverageScore, got[1].CoverageScore, got[2].CoverageScore})
	require.Equal(t, want, got[2])

	limited, err := s.Load(ctx, "pricing", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)

	none, err := s.Load(ctx, "missing", 0)
	require.NoError(t, err)
	require.Empty(t, none)

	cart, err := s.Load(ctx, "cart", 0)
	require.NoError(t, err)
	require.Len(t, cart, 1)
}

func TestSnapshotStore_DuplicateID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	snap := snapshot("pricing", 0, 50)
	require.NoError(t, s.Append(ctx, snap))

	err := s.Append(ctx, snap)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("Append() error = %v, want INVALID_REQUEST", err)
	}
}

func TestSnapshotStore_Prune(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for day := range 6 {
		require.NoError(t, s.Append(ctx, snapshot("pricing", day, 50+day)))
	}
	require.NoError(t, s.Append(ctx, snapshot("cart", 0, 10)))

	n, err := s.DeleteBefore(ctx, "pricing", start.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = s.DeleteKeepNewest(ctx, "pricing", 3)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	left, err := s.Load(ctx, "pricing", 0)
	require.NoError(t, err)
	require.Equal(t, []int{55, 54, 53}, []int{left[0].CoverageScore, left[1].CoverageScore, left[2].CoverageScore})

	other, err := s.Load(ctx, "cart", 0)
	require.NoError(t, err)
	require.Len(t, other, 1)
}

// The SQLite store drives the same analytics as the in-memory one.
func TestSnapshotStore_WithTracker(t *testing.T) {
	ctx := context.Background()
	now := start.AddDate(0, 0, 40)
	tr := trend.NewTracker(newStore(t),
		trend.WithClock(func() time.Time { return now }),
		trend.WithLogger(log.New(io.Discard)))

	for i, score := range []int{80, 78, 74} {
		_, err := tr.Record(ctx, snapshot("pricing", 30+i, score))
		require.NoError(t, err)
	}
	_, err := tr.Record(ctx, snapshot("pricing", 1, 40))
	require.NoError(t, err)

	deleted, err := tr.PruneByTier(ctx, "pricing", trend.TierTeam)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	history, err := tr.History(ctx, "pricing", 0)
	require.NoError(t, err)
	reg := trend.DetectRegression(history)
	require.NotNil(t, reg)
	require.Equal(t, 4, reg.CoverageDrop)
	require.Equal(t, "0.31.0", reg.FromVersion)
}
