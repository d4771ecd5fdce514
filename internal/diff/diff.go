// Package diff compares two versions of a package spec and classifies every
// export change as breaking, non-breaking or docs-only.
package diff

import (
	"context"
	"slices"
	"strings"

	"github.com/hpungsan/doccov/internal/drift"
	"github.com/hpungsan/doccov/internal/impact"
	"github.com/hpungsan/doccov/internal/quality"
	"github.com/hpungsan/doccov/internal/spec"
)

// BreakingSeverity ranks how disruptive a breaking change is.
type BreakingSeverity string

const (
	SeverityHigh   BreakingSeverity = "high"
	SeverityMedium BreakingSeverity = "medium"
	SeverityLow    BreakingSeverity = "low"
)

// MemberChangeType is the kind of a member-level change.
type MemberChangeType string

const (
	MemberAdded             MemberChangeType = "added"
	MemberRemoved           MemberChangeType = "removed"
	MemberSignatureChanged  MemberChangeType = "signature-changed"
	MemberVisibilityChanged MemberChangeType = "visibility-changed"
)

// MemberChange is one change to a class, interface or enum member.
type MemberChange struct {
	ExportID     string           `json:"exportId"`
	ExportName   string           `json:"exportName"`
	Member       string           `json:"member"`
	ChangeType   MemberChangeType `json:"changeType"`
	Breaking     bool             `json:"breaking"`
	OldSignature string           `json:"oldSignature,omitempty"`
	NewSignature string           `json:"newSignature,omitempty"`
	// Suggestion names the added member most similar to a removed one.
	Suggestion string `json:"suggestion,omitempty"`
}

// BreakingChange explains why one export is breaking.
type BreakingChange struct {
	ExportID   string `json:"exportId"`
	ExportName string `json:"exportName"`
	// PreviousName is the base name when the export was also renamed.
	PreviousName string           `json:"previousName,omitempty"`
	Kind         spec.Kind        `json:"kind"`
	Severity     BreakingSeverity `json:"severity"`
	Reasons      []string         `json:"reasons"`
}

// SpecDiff is the result of comparing a base spec against a head spec.
// Field names are part of the JSON contract consumed by callers.
type SpecDiff struct {
	Breaking            []string         `json:"breaking"`
	NonBreaking         []string         `json:"nonBreaking"`
	DocsOnly            []string         `json:"docsOnly"`
	CoverageDelta       int              `json:"coverageDelta"`
	OldCoverage         int              `json:"oldCoverage"`
	NewCoverage         int              `json:"newCoverage"`
	DriftIntroduced     int              `json:"driftIntroduced"`
	DriftResolved       int              `json:"driftResolved"`
	NewUndocumented     []string         `json:"newUndocumented"`
	ImprovedExports     []string         `json:"improvedExports"`
	RegressedExports    []string         `json:"regressedExports"`
	MemberChanges       []MemberChange   `json:"memberChanges"`
	CategorizedBreaking []BreakingChange `json:"categorizedBreaking"`
	DocsImpact          *impact.Report   `json:"docsImpact,omitempty"`
	DriftChanges        []drift.Issue    `json:"driftChanges"`
	Warnings            []spec.Warning   `json:"warnings,omitempty"`
}

// HasBreaking reports whether any export changed incompatibly.
func (d *SpecDiff) HasBreaking() bool {
	return len(d.Breaking) > 0
}

// Options tunes one Diff call.
type Options struct {
	// Severities overrides rule severities for coverage scoring.
	Severities map[string]quality.Severity
	// MarkdownFiles, when set, are scanned for references to breaking
	// exports and reported in DocsImpact.
	MarkdownFiles []impact.File
}

// Differ compares package specs. It holds no mutable state; the same
// inputs always produce the same SpecDiff.
type Differ struct {
	engine   *quality.Engine
	detector *drift.Detector
}

// NewDiffer creates a Differ. Nil arguments fall back to the default rule
// set and a detector without an example runner.
func NewDiffer(engine *quality.Engine, detector *drift.Detector) *Differ {
	if engine == nil {
		engine = quality.NewEngine(nil, nil)
	}
	if detector == nil {
		detector = drift.NewDetector(nil)
	}
	return &Differ{engine: engine, detector: detector}
}

// Diff compares base against head. Both specs are validated first; a
// MALFORMED_SPEC error is returned without a partial result.
func (d *Differ) Diff(ctx context.Context, base, head *spec.PackageSpec, opts Options) (*SpecDiff, error) {
	if err := spec.Validate(base); err != nil {
		return nil, err
	}
	if err := spec.Validate(head); err != nil {
		return nil, err
	}

	out := &SpecDiff{
		Breaking:            []string{},
		NonBreaking:         []string{},
		DocsOnly:            []string{},
		NewUndocumented:     []string{},
		ImprovedExports:     []string{},
		RegressedExports:    []string{},
		MemberChanges:       []MemberChange{},
		CategorizedBreaking: []BreakingChange{},
		DriftChanges:        []drift.Issue{},
		Warnings:            spec.Warnings(head),
	}

	headByID := indexByID(head)
	baseByID := indexByID(base)

	for _, b := range base.Exports {
		if _, ok := headByID[b.ID]; ok {
			continue
		}
		out.Breaking = append(out.Breaking, b.Name)
		out.CategorizedBreaking = append(out.CategorizedBreaking, BreakingChange{
			ExportID:   b.ID,
			ExportName: b.Name,
			Kind:       b.Kind,
			Severity:   SeverityHigh,
			Reasons:    []string{"export removed"},
		})
	}

	for _, h := range head.Exports {
		b, ok := baseByID[h.ID]
		if !ok {
			out.NonBreaking = append(out.NonBreaking, h.Name)
			if !h.Documented() {
				out.NewUndocumented = append(out.NewUndocumented, h.Name)
			}
			continue
		}
		if b.Documented() && !h.Documented() {
			out.NewUndocumented = append(out.NewUndocumented, h.Name)
		}

		c := compareExports(base, head, b, h)
		out.MemberChanges = append(out.MemberChanges, c.members...)
		switch {
		case len(c.breaking) > 0:
			bc := BreakingChange{
				ExportID:   h.ID,
				ExportName: h.Name,
				Kind:       h.Kind,
				Severity:   breakingSeverity(b.Kind),
				Reasons:    c.breaking,
			}
			if b.Name != h.Name {
				bc.PreviousName = b.Name
			}
			out.Breaking = append(out.Breaking, h.Name)
			out.CategorizedBreaking = append(out.CategorizedBreaking, bc)
		case len(c.nonBreaking) > 0:
			out.NonBreaking = append(out.NonBreaking, h.Name)
		case docsFingerprint(b) != docsFingerprint(h):
			out.DocsOnly = append(out.DocsOnly, h.Name)
		}
	}

	d.coverage(base, head, opts, out)
	d.driftDelta(ctx, base, head, out)

	if len(opts.MarkdownFiles) > 0 {
		out.DocsImpact = impact.Analyze(opts.MarkdownFiles, out.ImpactChanges())
	}

	for _, list := range [][]string{out.Breaking, out.NonBreaking, out.DocsOnly, out.NewUndocumented} {
		slices.Sort(list)
	}
	out.Breaking = slices.Compact(out.Breaking)
	out.NonBreaking = slices.Compact(out.NonBreaking)
	out.DocsOnly = slices.Compact(out.DocsOnly)
	out.NewUndocumented = slices.Compact(out.NewUndocumented)
	slices.SortStableFunc(out.CategorizedBreaking, func(a, b BreakingChange) int {
		return strings.Compare(a.ExportName, b.ExportName)
	})
	return out, nil
}

// ImpactChanges lists the breaking exports under the names prose
// documentation would use for them, for impact.Analyze.
func (d *SpecDiff) ImpactChanges() []impact.Change {
	removedMembers := make(map[string][]string)
	for _, mc := range d.MemberChanges {
		if mc.ChangeType == MemberRemoved {
			removedMembers[mc.ExportID] = append(removedMembers[mc.ExportID], mc.Member)
		}
	}

	out := make([]impact.Change, 0, len(d.CategorizedBreaking))
	for _, bc := range d.CategorizedBreaking {
		ch := impact.Change{ExportName: bc.ExportName, ChangeType: impact.ChangeSignatureChanged}
		if bc.PreviousName != "" {
			ch.ExportName = bc.PreviousName
		}
		switch members := removedMembers[bc.ExportID]; {
		case bc.Severity == SeverityHigh:
			ch.ChangeType = impact.ChangeRemoved
		case len(members) > 0:
			ch.RemovedMembers = members
			if len(members) == len(bc.Reasons) {
				ch.ChangeType = impact.ChangeMemberRemoved
			}
		}
		out = append(out, ch)
	}
	return out
}

// WithDocsImpact returns a copy of d whose DocsImpact covers files.
func (d *SpecDiff) WithDocsImpact(files []impact.File) *SpecDiff {
	cp := *d
	cp.DocsImpact = impact.Analyze(files, d.ImpactChanges())
	return &cp
}

func (d *Differ) coverage(base, head *spec.PackageSpec, opts Options, out *SpecDiff) {
	baseAgg := d.engine.EvaluateSpec(base, nil, opts.Severities)
	headAgg := d.engine.EvaluateSpec(head, nil, opts.Severities)
	out.OldCoverage = baseAgg.CoverageScore
	out.NewCoverage = headAgg.CoverageScore
	out.CoverageDelta = out.NewCoverage - out.OldCoverage

	baseScores := make(map[string]int, len(baseAgg.Exports))
	for _, r := range baseAgg.Exports {
		baseScores[r.ExportID] = r.CoverageScore
	}
	for _, r := range headAgg.Exports {
		old, ok := baseScores[r.ExportID]
		switch {
		case !ok:
		case r.CoverageScore > old:
			out.ImprovedExports = append(out.ImprovedExports, r.ExportName)
		case r.CoverageScore < old:
			out.RegressedExports = append(out.RegressedExports, r.ExportName)
		}
	}
	slices.Sort(out.ImprovedExports)
	slices.Sort(out.RegressedExports)
}

// driftDelta compares drift issue IDs on each side. IDs are derived from
// (kind, export, target), so an unchanged claim keeps its ID across versions.
func (d *Differ) driftDelta(ctx context.Context, base, head *spec.PackageSpec, out *SpecDiff) {
	baseIssues := d.detector.DetectSpec(ctx, base)
	headIssues := d.detector.DetectSpec(ctx, head)

	baseIDs := make(map[string]bool, len(baseIssues))
	for _, is := range baseIssues {
		baseIDs[is.ID] = true
	}
	headIDs := make(map[string]bool, len(headIssues))
	for _, is := range headIssues {
		headIDs[is.ID] = true
	}

	for _, is := range headIssues {
		if !baseIDs[is.ID] {
			is.Status = drift.StatusIntroduced
			out.DriftChanges = append(out.DriftChanges, is)
			out.DriftIntroduced++
		}
	}
	for _, is := range baseIssues {
		if !headIDs[is.ID] {
			is.Status = drift.StatusResolved
			out.DriftChanges = append(out.DriftChanges, is)
			out.DriftResolved++
		}
	}
}

func breakingSeverity(k spec.Kind) BreakingSeverity {
	switch k {
	case spec.KindFunction, spec.KindClass, spec.KindVariable:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func indexByID(ps *spec.PackageSpec) map[string]spec.Export {
	m := make(map[string]spec.Export, len(ps.Exports))
	for _, e := range ps.Exports {
		m[e.ID] = e
	}
	return m
}
