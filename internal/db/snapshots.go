package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/doccov/internal/errors"
	"github.com/hpungsan/doccov/internal/trend"
)

// SnapshotStore persists coverage snapshots in SQLite. It implements
// trend.Store.
type SnapshotStore struct {
	db *sql.DB
}

var _ trend.Store = (*SnapshotStore)(nil)

// NewSnapshotStore wraps an initialized database.
func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Append stores a new snapshot. Timestamps are kept at millisecond precision.
func (s *SnapshotStore) Append(ctx context.Context, snap trend.Snapshot) error {
	query := `
		INSERT INTO snapshots (
			id, package, version, commit_sha, coverage_score,
			documented_exports, total_exports, description_count, params_count,
			returns_count, examples_count, drift_count, source, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		snap.ID, snap.Package, toNullString(snap.Version), toNullString(snap.Commit), snap.CoverageScore,
		snap.DocumentedExports, snap.TotalExports, snap.DescriptionCount, snap.ParamsCount,
		snap.ReturnsCount, snap.ExamplesCount, snap.DriftCount, string(snap.Source), snap.Timestamp.UnixMilli(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewInvalidRequest("snapshot " + snap.ID + " already recorded")
		}
		return errors.NewInternal(err)
	}
	return nil
}

// Load returns up to limit snapshots of pkg, newest first.
func (s *SnapshotStore) Load(ctx context.Context, pkg string, limit int) ([]trend.Snapshot, error) {
	query := `
		SELECT id, package, version, commit_sha, coverage_score,
			documented_exports, total_exports, description_count, params_count,
			returns_count, examples_count, drift_count, source, recorded_at
		FROM snapshots
		WHERE package = ?
		ORDER BY recorded_at DESC, id DESC
	`
	args := []any{pkg}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []trend.Snapshot{}
	for rows.Next() {
		var (
			snap            trend.Snapshot
			version, commit sql.NullString
			source          string
			recordedAt      int64
		)
		if err := rows.Scan(
			&snap.ID, &snap.Package, &version, &commit, &snap.CoverageScore,
			&snap.DocumentedExports, &snap.TotalExports, &snap.DescriptionCount, &snap.ParamsCount,
			&snap.ReturnsCount, &snap.ExamplesCount, &snap.DriftCount, &source, &recordedAt,
		); err != nil {
			return nil, errors.NewInternal(err)
		}
		snap.Version = version.String
		snap.Commit = commit.String
		snap.Source = trend.Source(source)
		snap.Timestamp = time.UnixMilli(recordedAt).UTC()
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// DeleteKeepNewest removes all but the keep newest snapshots of pkg.
func (s *SnapshotStore) DeleteKeepNewest(ctx context.Context, pkg string, keep int) (int, error) {
	query := `
		DELETE FROM snapshots
		WHERE package = ? AND id NOT IN (
			SELECT id FROM snapshots
			WHERE package = ?
			ORDER BY recorded_at DESC, id DESC
			LIMIT ?
		)
	`
	return s.exec(ctx, query, pkg, pkg, max(keep, 0))
}

// DeleteBefore removes snapshots of pkg recorded before cutoff.
func (s *SnapshotStore) DeleteBefore(ctx context.Context, pkg string, cutoff time.Time) (int, error) {
	return s.exec(ctx, `DELETE FROM snapshots WHERE package = ? AND recorded_at < ?`, pkg, cutoff.UnixMilli())
}

func (s *SnapshotStore) exec(ctx context.Context, query string, args ...any) (int, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
