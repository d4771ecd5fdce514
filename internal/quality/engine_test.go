package quality

import (
	"reflect"
	"testing"

	"github.com/hpungsan/doccov/internal/spec"
)

func numberParam(name string, required bool) spec.Parameter {
	return spec.Parameter{Name: name, Schema: spec.Primitive("number"), Required: required}
}

// applyTax is a function export with two parameters and a number result.
func applyTax(description string, tags ...spec.Tag) spec.Export {
	return spec.Export{
		ID:          "applyTax",
		Name:        "applyTax",
		Kind:        spec.KindFunction,
		Description: description,
		Tags:        tags,
		Signatures: []spec.Signature{{
			Parameters: []spec.Parameter{numberParam("base", true), numberParam("taxRate", true)},
			Returns:    &spec.Returns{Schema: spec.Primitive("number")},
		}},
	}
}

func TestEvaluateExport_FullyDocumented(t *testing.T) {
	e := NewEngine(DefaultRuleSet(), nil)
	exp := applyTax("Applies tax.",
		spec.Tag{Name: "param", Text: "base - amount before tax"},
		spec.Tag{Name: "param", Text: "taxRate - rate between 0 and 1"},
		spec.Tag{Name: "returns", Text: "the taxed amount"},
	)

	res := e.EvaluateExport(exp, "", Options{})
	if res.CoverageScore != 100 {
		t.Errorf("CoverageScore = %d, want 100 (missing %v)", res.CoverageScore, res.Coverage.Missing)
	}
	want := []string{RuleHasDescription, RuleHasParams, RuleHasReturns}
	if !reflect.DeepEqual(res.Coverage.Applicable, want) {
		t.Errorf("Applicable = %v, want %v", res.Coverage.Applicable, want)
	}
	if len(res.Violations) != 0 {
		t.Errorf("Violations = %+v, want none", res.Violations)
	}
}

func TestEvaluateExport_PartialCoverage(t *testing.T) {
	e := NewEngine(DefaultRuleSet(), nil)
	exp := applyTax("Applies tax.", spec.Tag{Name: "param", Text: "base - amount"})

	res := e.EvaluateExport(exp, "", Options{})
	// description satisfied; params and returns missing: round(100/3) = 33
	if res.CoverageScore != 33 {
		t.Errorf("CoverageScore = %d, want 33", res.CoverageScore)
	}
	if !reflect.DeepEqual(res.Coverage.Missing, []string{RuleHasParams, RuleHasReturns}) {
		t.Errorf("Missing = %v", res.Coverage.Missing)
	}
	if res.Summary.WarningCount != 2 || res.Summary.ErrorCount != 0 {
		t.Errorf("Summary = %+v, want 2 warnings", res.Summary)
	}
	if res.Violations[0].Message != "missing documentation for parameter(s): taxRate" {
		t.Errorf("Message = %q", res.Violations[0].Message)
	}
}

func TestEvaluateExport_NoApplicableRulesScores100(t *testing.T) {
	rs := MustRuleSet(StructuralRules()...)
	e := NewEngine(rs, nil)

	res := e.EvaluateExport(spec.Export{ID: "x", Name: "x", Kind: spec.KindVariable}, "", Options{})
	if len(res.Coverage.Applicable) != 0 {
		t.Fatalf("Applicable = %v, want empty", res.Coverage.Applicable)
	}
	if res.CoverageScore != 100 {
		t.Errorf("CoverageScore = %d, want 100 for vacuous pass", res.CoverageScore)
	}
}

func TestEvaluateExport_ScoreBounds(t *testing.T) {
	e := NewEngine(DefaultRuleSet(), map[string]Severity{RuleHasExamples: SeverityWarn})
	exports := []spec.Export{
		applyTax(""),
		applyTax("documented"),
		{ID: "T", Name: "T", Kind: spec.KindType},
		{ID: "C", Name: "C", Kind: spec.KindClass, Description: "c", Examples: []string{"new C()"}},
	}
	for _, exp := range exports {
		res := e.EvaluateExport(exp, "", Options{})
		if res.CoverageScore < 0 || res.CoverageScore > 100 {
			t.Errorf("%s: CoverageScore = %d, out of [0,100]", exp.Name, res.CoverageScore)
		}
	}
}

func TestEvaluateExport_Deterministic(t *testing.T) {
	e := NewEngine(DefaultRuleSet(), nil)
	exp := applyTax("", spec.Tag{Name: "public"}, spec.Tag{Name: "internal"})
	raw := "/**\n * @param base the base\n * @param taxRate - the rate\n * @returns\n */"

	first := e.EvaluateExport(exp, raw, Options{})
	for range 5 {
		if got := e.EvaluateExport(exp, raw, Options{}); !reflect.DeepEqual(first, got) {
			t.Fatalf("EvaluateExport() not deterministic:\n%+v\n%+v", first, got)
		}
	}
}

func TestEvaluateExport_OffExcludesRule(t *testing.T) {
	e := NewEngine(DefaultRuleSet(), nil)
	exp := applyTax("")

	res := e.EvaluateExport(exp, "", Options{Severities: map[string]Severity{RuleHasDescription: SeverityOff}})
	for _, id := range res.Coverage.Applicable {
		if id == RuleHasDescription {
			t.Error("has-description counted although off")
		}
	}
	for _, v := range res.Violations {
		if v.RuleID == RuleHasDescription {
			t.Error("has-description reported although off")
		}
	}
}

func TestEngine_SeverityResolution(t *testing.T) {
	rs := DefaultRuleSet()
	r, _ := rs.Get(RuleHasDescription)
	e := NewEngine(rs, map[string]Severity{RuleHasDescription: SeverityError})

	if got := e.Severity(r, nil); got != SeverityError {
		t.Errorf("engine default: Severity() = %q, want error", got)
	}
	if got := e.Severity(r, map[string]Severity{RuleHasDescription: SeverityOff}); got != SeverityOff {
		t.Errorf("per-call override: Severity() = %q, want off", got)
	}
	if got := NewEngine(rs, nil).Severity(r, nil); got != SeverityWarn {
		t.Errorf("rule default: Severity() = %q, want warn", got)
	}
}

type panickyRule struct{}

func (panickyRule) ID() string                { return "panicky" }
func (panickyRule) AppliesTo() []spec.Kind    { return nil }
func (panickyRule) AffectsCoverage() bool     { return true }
func (panickyRule) DefaultSeverity() Severity { return SeverityError }
func (panickyRule) Check(RuleContext) bool    { panic("no registry") }

func TestEvaluateExport_PanickingRulePasses(t *testing.T) {
	e := NewEngine(MustRuleSet(panickyRule{}), nil)
	res := e.EvaluateExport(spec.Export{ID: "x", Name: "x", Kind: spec.KindFunction}, "", Options{})
	if res.CoverageScore != 100 || len(res.Violations) != 0 {
		t.Errorf("result = %+v, want pass", res)
	}
}

func TestEvaluate_Aggregate(t *testing.T) {
	e := NewEngine(DefaultRuleSet(), nil)
	inputs := []Input{
		{Export: applyTax("Applies tax.",
			spec.Tag{Name: "param", Text: "base - b"},
			spec.Tag{Name: "param", Text: "taxRate - r"},
			spec.Tag{Name: "returns", Text: "total"})},
		{Export: spec.Export{ID: "Rate", Name: "Rate", Kind: spec.KindType}},
	}

	agg := e.Evaluate(inputs, Options{})
	if agg.TotalExports != 2 {
		t.Fatalf("TotalExports = %d, want 2", agg.TotalExports)
	}
	// 100 and 0 average to 50
	if agg.CoverageScore != 50 {
		t.Errorf("CoverageScore = %d, want 50", agg.CoverageScore)
	}
	if agg.Exports[0].ExportName != "applyTax" || agg.Exports[1].ExportName != "Rate" {
		t.Errorf("results out of input order: %s, %s", agg.Exports[0].ExportName, agg.Exports[1].ExportName)
	}
	if agg.ByRule[RuleHasDescription] != 1 {
		t.Errorf("ByRule[has-description] = %d, want 1", agg.ByRule[RuleHasDescription])
	}
	if empty := e.Evaluate(nil, Options{}); empty.CoverageScore != 100 {
		t.Errorf("empty CoverageScore = %d, want 100", empty.CoverageScore)
	}
}

func TestEvaluateSpec_AttachesWarnings(t *testing.T) {
	ps := &spec.PackageSpec{
		Meta: spec.Meta{Name: "p"},
		Exports: []spec.Export{{
			ID: "f", Name: "f", Kind: spec.KindVariable, Description: "f", Schema: spec.Ref("Ghost"),
		}},
	}
	agg := NewEngine(nil, nil).EvaluateSpec(ps, nil, nil)
	if len(agg.Exports[0].Warnings) != 1 || agg.Exports[0].Warnings[0].Ref != "Ghost" {
		t.Errorf("Warnings = %+v, want Ghost", agg.Exports[0].Warnings)
	}
}

func TestNewRuleSet_Duplicate(t *testing.T) {
	if _, err := NewRuleSet(panickyRule{}, panickyRule{}); err == nil {
		t.Error("NewRuleSet() error = nil, want duplicate error")
	}
	rs := DefaultRuleSet().Without(RuleHasExamples, RuleNoEmptyReturns)
	if _, ok := rs.Get(RuleHasExamples); ok {
		t.Error("Without() kept has-examples")
	}
	if len(rs.IDs()) != len(DefaultRules())-2 {
		t.Errorf("len(IDs()) = %d", len(rs.IDs()))
	}
}

func TestParseSeverities(t *testing.T) {
	got, err := ParseSeverities(map[string]string{"a": "warning", "b": "OFF"})
	if err != nil {
		t.Fatalf("ParseSeverities() error = %v", err)
	}
	if got["a"] != SeverityWarn || got["b"] != SeverityOff {
		t.Errorf("ParseSeverities() = %v", got)
	}
	if _, err := ParseSeverities(map[string]string{"a": "loud"}); err == nil {
		t.Error("ParseSeverities() error = nil for invalid severity")
	}
}
