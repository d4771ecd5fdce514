// Package quality scores documentation coverage and reports rule
// violations for exported symbols.
package quality

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/doccov/internal/spec"
)

// Coverage lists rule IDs by outcome. Only coverage rules that are not
// turned off and apply to the export's kind appear here.
type Coverage struct {
	Satisfied  []string `json:"satisfied"`
	Missing    []string `json:"missing"`
	Applicable []string `json:"applicable"`
}

// Violation is one failed rule.
type Violation struct {
	RuleID   string   `json:"ruleId"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Fixable  bool     `json:"fixable"`
	Fix      *Fix     `json:"fix,omitempty"`
}

// Summary counts violations by severity.
type Summary struct {
	ErrorCount   int `json:"errorCount"`
	WarningCount int `json:"warningCount"`
	FixableCount int `json:"fixableCount"`
}

func (s *Summary) add(o Summary) {
	s.ErrorCount += o.ErrorCount
	s.WarningCount += o.WarningCount
	s.FixableCount += o.FixableCount
}

// Result is the quality evaluation of one export.
type Result struct {
	ExportID      string         `json:"exportId"`
	ExportName    string         `json:"exportName"`
	CoverageScore int            `json:"coverageScore"`
	Coverage      Coverage       `json:"coverage"`
	Violations    []Violation    `json:"violations"`
	Summary       Summary        `json:"summary"`
	Warnings      []spec.Warning `json:"warnings,omitempty"`
}

// Input pairs an export with its optional raw documentation comment.
type Input struct {
	Export spec.Export
	RawDoc string
}

// Aggregate is the quality evaluation of a set of exports.
type Aggregate struct {
	CoverageScore int            `json:"coverageScore"`
	TotalExports  int            `json:"totalExports"`
	Exports       []Result       `json:"exports"`
	Summary       Summary        `json:"summary"`
	ByRule        map[string]int `json:"byRule"`
}

// Options tunes one evaluation call.
type Options struct {
	// Severities overrides the engine defaults for this call only.
	Severities map[string]Severity
	// Registry lists exported names for rules that need the whole surface.
	// Evaluate derives one from its inputs when nil.
	Registry spec.Registry
}

// Engine evaluates a RuleSet. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	rules    *RuleSet
	defaults map[string]Severity
}

// NewEngine creates an engine over rules. defaults overrides rule default
// severities for every call (typically loaded from config); it may be nil.
func NewEngine(rules *RuleSet, defaults map[string]Severity) *Engine {
	if rules == nil {
		rules = DefaultRuleSet()
	}
	copied := make(map[string]Severity, len(defaults))
	for k, v := range defaults {
		copied[k] = v
	}
	return &Engine{rules: rules, defaults: copied}
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() *RuleSet {
	return e.rules
}

// Severity resolves a rule's effective severity: per-call override, then
// engine default, then the rule's own default.
func (e *Engine) Severity(r Rule, overrides map[string]Severity) Severity {
	if s, ok := overrides[r.ID()]; ok {
		return s
	}
	if s, ok := e.defaults[r.ID()]; ok {
		return s
	}
	return r.DefaultSeverity()
}

// EvaluateExport runs every applicable rule against one export.
func (e *Engine) EvaluateExport(exp spec.Export, rawDoc string, opts Options) Result {
	ctx := RuleContext{Export: exp, RawDoc: rawDoc, Registry: opts.Registry}
	res := Result{
		ExportID:   exp.ID,
		ExportName: exp.Name,
		Coverage: Coverage{
			Satisfied:  []string{},
			Missing:    []string{},
			Applicable: []string{},
		},
		Violations: []Violation{},
	}

	for _, r := range e.rules.rules {
		sev := e.Severity(r, opts.Severities)
		if sev == SeverityOff || !Applies(r, exp.Kind) {
			continue
		}
		passed := safeCheck(r, ctx)
		if r.AffectsCoverage() {
			res.Coverage.Applicable = append(res.Coverage.Applicable, r.ID())
			if passed {
				res.Coverage.Satisfied = append(res.Coverage.Satisfied, r.ID())
			} else {
				res.Coverage.Missing = append(res.Coverage.Missing, r.ID())
			}
		}
		if passed {
			continue
		}

		v := Violation{RuleID: r.ID(), Severity: sev, Message: safeMessage(r, ctx)}
		if fixer, ok := r.(Fixer); ok {
			if fix := safeFix(fixer, ctx); fix != nil {
				v.Fixable = true
				v.Fix = fix
				res.Summary.FixableCount++
			}
		}
		if sev == SeverityError {
			res.Summary.ErrorCount++
		} else {
			res.Summary.WarningCount++
		}
		res.Violations = append(res.Violations, v)
	}

	res.CoverageScore = score(len(res.Coverage.Satisfied), len(res.Coverage.Applicable))
	return res
}

// Evaluate runs EvaluateExport over every input in parallel. Results keep
// input order.
func (e *Engine) Evaluate(inputs []Input, opts Options) *Aggregate {
	if opts.Registry == nil {
		opts.Registry = make(spec.Registry, len(inputs))
		for _, in := range inputs {
			opts.Registry[in.Export.Name] = true
			opts.Registry[in.Export.ID] = true
		}
	}

	results := make([]Result, len(inputs))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, in := range inputs {
		g.Go(func() error {
			results[i] = e.EvaluateExport(in.Export, in.RawDoc, opts)
			return nil
		})
	}
	_ = g.Wait()

	return aggregate(results)
}

// EvaluateSpec evaluates every export of ps, attaching unresolved-reference
// warnings to each result. rawDocs maps export ID to raw comment text.
func (e *Engine) EvaluateSpec(ps *spec.PackageSpec, rawDocs map[string]string, severities map[string]Severity) *Aggregate {
	inputs := make([]Input, len(ps.Exports))
	for i, exp := range ps.Exports {
		inputs[i] = Input{Export: exp, RawDoc: rawDocs[exp.ID]}
	}
	agg := e.Evaluate(inputs, Options{Severities: severities, Registry: ps.Registry()})
	for i := range agg.Exports {
		agg.Exports[i].Warnings = spec.UnresolvedReferences(ps, ps.Exports[i])
	}
	return agg
}

func aggregate(results []Result) *Aggregate {
	agg := &Aggregate{
		TotalExports: len(results),
		Exports:      results,
		ByRule:       map[string]int{},
	}
	total := 0
	for _, r := range results {
		total += r.CoverageScore
		agg.Summary.add(r.Summary)
		for _, v := range r.Violations {
			agg.ByRule[v.RuleID]++
		}
	}
	if len(results) == 0 {
		agg.CoverageScore = 100
	} else {
		agg.CoverageScore = int(math.Round(float64(total) / float64(len(results))))
	}
	return agg
}

// score is round(100 × satisfied / applicable); 100 when nothing applies.
func score(satisfied, applicable int) int {
	if applicable == 0 {
		return 100
	}
	return int(math.Round(100 * float64(satisfied) / float64(applicable)))
}

// safeCheck runs r.Check, treating a panic as a pass so one broken rule
// cannot abort the evaluation.
func safeCheck(r Rule, ctx RuleContext) (passed bool) {
	defer func() {
		if recover() != nil {
			passed = true
		}
	}()
	return r.Check(ctx)
}

func safeMessage(r Rule, ctx RuleContext) (msg string) {
	defer func() {
		if recover() != nil {
			msg = r.ID() + " failed"
		}
	}()
	if v, ok := r.(Violator); ok {
		return v.Violation(ctx)
	}
	return r.ID() + " failed"
}

func safeFix(f Fixer, ctx RuleContext) (fix *Fix) {
	defer func() {
		if recover() != nil {
			fix = nil
		}
	}()
	return f.Fix(ctx)
}
