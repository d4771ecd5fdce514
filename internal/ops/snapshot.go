package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/hpungsan/doccov/internal/drift"
	"github.com/hpungsan/doccov/internal/errors"
	"github.com/hpungsan/doccov/internal/quality"
	"github.com/hpungsan/doccov/internal/spec"
	"github.com/hpungsan/doccov/internal/trend"
)

// BuildSnapshot summarizes an evaluated spec as a coverage snapshot. An
// export counts as documented when every coverage rule that applies to it
// is satisfied. The signal counts tally exports satisfying each signal;
// params and returns only count callables.
func BuildSnapshot(ps *spec.PackageSpec, agg *quality.Aggregate, issues []drift.Issue) trend.Snapshot {
	snap := trend.Snapshot{
		Package:       ps.Meta.Name,
		Version:       ps.Meta.Version,
		CoverageScore: agg.CoverageScore,
		TotalExports:  len(ps.Exports),
		DriftCount:    len(issues),
	}
	for _, r := range agg.Exports {
		if r.CoverageScore == 100 {
			snap.DocumentedExports++
		}
	}
	for _, e := range ps.Exports {
		if e.Documented() {
			snap.DescriptionCount++
		}
		if quality.HasExamples(e) {
			snap.ExamplesCount++
		}
		if !e.IsCallable() {
			continue
		}
		if len(quality.UndocumentedParams(e)) == 0 {
			snap.ParamsCount++
		}
		if quality.ReturnsDocumented(e) {
			snap.ReturnsCount++
		}
	}
	return snap
}

// RecordInput contains parameters for the Record operation.
type RecordInput struct {
	SpecInput
	// Version overrides the spec's meta version.
	Version string `json:"version,omitempty"`
	Commit  string `json:"commit,omitempty"`
	// Source is ci, manual or scheduled; defaults to manual.
	Source string `json:"source,omitempty"`
}

// Record evaluates a spec and appends a snapshot of its coverage.
func (s *Service) Record(ctx context.Context, input RecordInput) (*trend.Snapshot, error) {
	source := trend.Source(input.Source)
	if source == "" {
		source = trend.SourceManual
	}
	if !source.Valid() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown snapshot source %q (want ci, manual or scheduled)", input.Source))
	}

	loaded, err := s.load(ctx, "spec", input.SpecInput)
	if err != nil {
		return nil, err
	}
	agg := s.engine.EvaluateSpec(loaded.spec, nil, nil)
	issues := s.detector.DetectSpec(ctx, loaded.spec)

	snap := BuildSnapshot(loaded.spec, agg, issues)
	if input.Version != "" {
		snap.Version = input.Version
	}
	snap.Commit = input.Commit
	snap.Source = source

	rec, err := s.tracker.Record(ctx, snap)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Package string `json:"package"`
	Limit   int    `json:"limit,omitempty"`
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	trend.Trend
	Sparkline string `json:"sparklineText"`
}

// History returns the most recent snapshots of a package, newest first.
func (s *Service) History(ctx context.Context, input HistoryInput) (*HistoryOutput, error) {
	limit, err := historyLimit(input.Limit)
	if err != nil {
		return nil, err
	}
	snaps, err := s.tracker.History(ctx, input.Package, limit)
	if err != nil {
		return nil, err
	}
	tr := trend.BuildTrend(snaps)
	return &HistoryOutput{Trend: tr, Sparkline: trend.RenderSparkline(tr.Sparkline)}, nil
}

func historyLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, errors.NewInvalidRequest("limit must not be negative")
	case limit == 0:
		return DefaultHistoryLimit, nil
	case limit > MaxHistoryLimit:
		return 0, errors.NewInvalidRequest(fmt.Sprintf("limit exceeds maximum of %d", MaxHistoryLimit))
	}
	return limit, nil
}

// PruneInput contains parameters for the Prune operation. At most one of
// Keep and Tier may be set; with neither, the configured tier applies.
type PruneInput struct {
	Package string `json:"package"`
	Keep    int    `json:"keep,omitempty"`
	Tier    string `json:"tier,omitempty"`
}

// PruneOutput contains the result of the Prune operation.
type PruneOutput struct {
	Package string `json:"package"`
	Deleted int    `json:"deleted"`
}

// Prune deletes old snapshots of a package by count or retention tier.
func (s *Service) Prune(ctx context.Context, input PruneInput) (*PruneOutput, error) {
	if input.Keep != 0 && input.Tier != "" {
		return nil, errors.NewInvalidRequest("specify either keep or tier, not both")
	}

	var deleted int
	var err error
	if input.Keep != 0 {
		deleted, err = s.tracker.PruneByCount(ctx, input.Package, input.Keep)
	} else {
		tier := input.Tier
		if tier == "" {
			tier = s.cfg.RetentionTier
		}
		deleted, err = s.tracker.PruneByTier(ctx, input.Package, trend.Tier(tier))
	}
	if err != nil {
		return nil, err
	}
	return &PruneOutput{Package: input.Package, Deleted: deleted}, nil
}

// AnalyzeInput contains parameters for the Analyze operation.
type AnalyzeInput struct {
	Package string `json:"package"`
	// Limit bounds how many snapshots are analyzed; 0 means all.
	Limit int `json:"limit,omitempty"`
}

// AnalyzeOutput contains the result of the Analyze operation.
type AnalyzeOutput struct {
	trend.Analysis
	Sparkline  string    `json:"sparklineText"`
	AnalyzedAt time.Time `json:"analyzedAt"`
}

// Analyze computes velocity, projection, regressions, milestones and
// weekly summaries from a package's history.
func (s *Service) Analyze(ctx context.Context, input AnalyzeInput) (*AnalyzeOutput, error) {
	if input.Limit < 0 {
		return nil, errors.NewInvalidRequest("limit must not be negative")
	}
	snaps, err := s.tracker.History(ctx, input.Package, input.Limit)
	if err != nil {
		return nil, err
	}
	a := trend.Analyze(snaps)
	return &AnalyzeOutput{
		Analysis:   a,
		Sparkline:  trend.RenderSparkline(a.Sparkline),
		AnalyzedAt: time.Now().UTC(),
	}, nil
}
