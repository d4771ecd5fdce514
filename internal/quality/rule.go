package quality

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hpungsan/doccov/internal/spec"
)

// Severity is a rule's reporting level.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
	SeverityOff   Severity = "off"
)

// ParseSeverity accepts "error", "warn" (or "warning") and "off".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return SeverityError, nil
	case "warn", "warning":
		return SeverityWarn, nil
	case "off":
		return SeverityOff, nil
	}
	return "", fmt.Errorf("invalid severity %q (want error, warn or off)", s)
}

// ParseSeverities converts a config map (rule ID → severity string).
func ParseSeverities(m map[string]string) (map[string]Severity, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]Severity, len(m))
	for id, raw := range m {
		sev, err := ParseSeverity(raw)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", id, err)
		}
		out[id] = sev
	}
	return out, nil
}

// RuleContext is everything a rule may inspect. RawDoc and Registry are
// optional; rules that need them pass when they are absent.
type RuleContext struct {
	Export   spec.Export
	RawDoc   string
	Registry spec.Registry
}

// Rule is a documentation quality check. Check must be a pure predicate.
type Rule interface {
	ID() string
	// AppliesTo lists the export kinds the rule covers; empty means all.
	AppliesTo() []spec.Kind
	AffectsCoverage() bool
	DefaultSeverity() Severity
	Check(ctx RuleContext) bool
}

// Violator is implemented by rules that describe their own failures.
type Violator interface {
	Violation(ctx RuleContext) string
}

// Fixer is implemented by rules that can propose a fix for the raw doc text.
type Fixer interface {
	// Fix returns nil when no fix applies to ctx.
	Fix(ctx RuleContext) *Fix
}

// Fix is a proposed replacement of an export's raw documentation comment.
type Fix struct {
	Description string `json:"description"`
	Text        string `json:"text"`
}

// Applies reports whether r covers exports of the given kind.
func Applies(r Rule, kind spec.Kind) bool {
	kinds := r.AppliesTo()
	return len(kinds) == 0 || slices.Contains(kinds, kind)
}

// RuleSet is an ordered, duplicate-free collection of rules.
type RuleSet struct {
	rules []Rule
	byID  map[string]Rule
}

// NewRuleSet builds a RuleSet. Rule IDs must be unique.
func NewRuleSet(rules ...Rule) (*RuleSet, error) {
	rs := &RuleSet{byID: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		if _, dup := rs.byID[r.ID()]; dup {
			return nil, fmt.Errorf("duplicate rule id %q", r.ID())
		}
		rs.byID[r.ID()] = r
		rs.rules = append(rs.rules, r)
	}
	return rs, nil
}

// MustRuleSet is NewRuleSet for statically known rule lists.
func MustRuleSet(rules ...Rule) *RuleSet {
	rs, err := NewRuleSet(rules...)
	if err != nil {
		panic(err)
	}
	return rs
}

// Rules returns the rules in registration order.
func (rs *RuleSet) Rules() []Rule {
	return slices.Clone(rs.rules)
}

// Get returns the rule with the given ID.
func (rs *RuleSet) Get(id string) (Rule, bool) {
	r, ok := rs.byID[id]
	return r, ok
}

// IDs returns the rule IDs in registration order.
func (rs *RuleSet) IDs() []string {
	ids := make([]string, len(rs.rules))
	for i, r := range rs.rules {
		ids[i] = r.ID()
	}
	return ids
}

// Without returns a copy of rs minus the given rule IDs.
func (rs *RuleSet) Without(ids ...string) *RuleSet {
	kept := slices.DeleteFunc(rs.Rules(), func(r Rule) bool { return slices.Contains(ids, r.ID()) })
	return MustRuleSet(kept...)
}
