// Package drift detects places where documentation claims disagree with
// the signature they document.
package drift

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/agext/levenshtein"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/doccov/internal/spec"
)

// Type is a drift kind.
type Type string

const (
	ParamMismatch             Type = "param-mismatch"
	ParamTypeMismatch         Type = "param-type-mismatch"
	OptionalityMismatch       Type = "optionality-mismatch"
	ReturnTypeMismatch        Type = "return-type-mismatch"
	GenericConstraintMismatch Type = "generic-constraint-mismatch"
	DeprecatedMismatch        Type = "deprecated-mismatch"
	VisibilityMismatch        Type = "visibility-mismatch"
	ExampleDrift              Type = "example-drift"
	ExampleRuntimeError       Type = "example-runtime-error"
	BrokenLink                Type = "broken-link"
)

// Types lists every drift kind in reporting order.
var Types = []Type{
	ParamMismatch, ParamTypeMismatch, OptionalityMismatch, ReturnTypeMismatch,
	GenericConstraintMismatch, DeprecatedMismatch, VisibilityMismatch,
	ExampleDrift, ExampleRuntimeError, BrokenLink,
}

// Severity grades a drift issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Status marks an issue's direction in a diff. Detect leaves it empty.
type Status string

const (
	StatusIntroduced Status = "introduced"
	StatusResolved   Status = "resolved"
)

// Issue is one documentation/signature disagreement.
type Issue struct {
	ID          string   `json:"id"`
	Type        Type     `json:"type"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Target      string   `json:"target,omitempty"`
	Suggestion  string   `json:"suggestion,omitempty"`
	FilePath    string   `json:"filePath,omitempty"`
	Line        int      `json:"line,omitempty"`
	ExportID    string   `json:"exportId"`
	ExportName  string   `json:"exportName"`
	Status      Status   `json:"status,omitempty"`
}

// ExampleRunner executes a documentation example. It is an opt-in
// collaborator; without one example-runtime-error is never reported.
type ExampleRunner interface {
	Run(ctx context.Context, exportName, code string) error
}

// Context is the package-level information checks may consult.
type Context struct {
	// Registry holds every exported name; required by example-drift and
	// broken-link, which are skipped when it is nil.
	Registry spec.Registry
	// Package is the import path examples use to import the package.
	Package string
}

// Detector runs the drift checks. It is stateless apart from the optional
// runner and safe for concurrent use.
type Detector struct {
	runner ExampleRunner
}

// NewDetector creates a Detector. runner may be nil.
func NewDetector(runner ExampleRunner) *Detector {
	return &Detector{runner: runner}
}

// Detect returns the drift issues of one export. Output order is fixed:
// by drift kind, then by the order claims appear in the documentation.
func (d *Detector) Detect(ctx context.Context, exp spec.Export, dc Context) []Issue {
	b := &builder{exp: exp}
	checkParams(b, exp)
	checkReturns(b, exp)
	checkTypeParams(b, exp)
	checkDeprecated(b, exp)
	checkVisibility(b, exp)
	if dc.Registry != nil {
		checkExamples(b, exp, dc)
	}
	if d.runner != nil {
		for i, code := range exp.Examples {
			if err := d.runner.Run(ctx, exp.Name, code); err != nil {
				b.add(ExampleRuntimeError, SeverityError, fmt.Sprintf("example[%d]", i),
					fmt.Sprintf("example %d of %s fails: %v", i+1, exp.Name, err), "")
			}
		}
	}
	if dc.Registry != nil {
		checkLinks(b, exp, dc)
	}
	return b.sorted()
}

// DetectSpec runs Detect over every export of ps in parallel and returns
// the issues in export order.
func (d *Detector) DetectSpec(ctx context.Context, ps *spec.PackageSpec) []Issue {
	dc := Context{Registry: ps.Registry(), Package: ps.Meta.Name}
	perExport := make([][]Issue, len(ps.Exports))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, exp := range ps.Exports {
		g.Go(func() error {
			perExport[i] = d.Detect(ctx, exp, dc)
			return nil
		})
	}
	_ = g.Wait()

	var out []Issue
	for _, issues := range perExport {
		out = append(out, issues...)
	}
	return out
}

// CountByType tallies issues per drift kind.
func CountByType(issues []Issue) map[Type]int {
	counts := make(map[Type]int)
	for _, is := range issues {
		counts[is.Type]++
	}
	return counts
}

type builder struct {
	exp    spec.Export
	issues []Issue
	seen   map[string]int
}

func (b *builder) add(t Type, sev Severity, target, description, suggestion string) {
	b.addClaim(t, sev, target, "", description, suggestion)
}

// addClaim records an issue whose ID also names the contradicted claim, so
// several claims about one target stay distinct. IDs are unique within an
// export; a repeated ID gets an ordinal suffix in claim order.
func (b *builder) addClaim(t Type, sev Severity, target, claim, description, suggestion string) {
	id := fmt.Sprintf("%s:%s:%s", t, b.exp.ID, target)
	if claim != "" {
		id += "@" + claim
	}
	if b.seen == nil {
		b.seen = make(map[string]int)
	}
	b.seen[id]++
	if n := b.seen[id]; n > 1 {
		id = fmt.Sprintf("%s#%d", id, n)
	}
	b.issues = append(b.issues, Issue{
		ID:          id,
		Type:        t,
		Severity:    sev,
		Description: description,
		Target:      target,
		Suggestion:  suggestion,
		FilePath:    b.exp.File(),
		Line:        b.exp.Line(),
		ExportID:    b.exp.ID,
		ExportName:  b.exp.Name,
	})
}

// sorted orders issues by kind, keeping claim order within a kind.
func (b *builder) sorted() []Issue {
	out := make([]Issue, 0, len(b.issues))
	for _, t := range Types {
		for _, is := range b.issues {
			if is.Type == t {
				out = append(out, is)
			}
		}
	}
	return out
}

// Nearest returns the candidate most similar to name, or "" when there are
// no candidates. Containment ("tax" in "taxRate") outranks edit distance.
// Ties keep the earlier candidate.
func Nearest(name string, candidates []string) string {
	best, bestScore := "", -1.0
	lower := strings.ToLower(name)
	for _, c := range candidates {
		score := levenshtein.Similarity(lower, strings.ToLower(c), nil)
		lc := strings.ToLower(c)
		if lower != "" && (strings.Contains(lc, lower) || strings.Contains(lower, lc)) {
			score++
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}
