package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hpungsan/doccov/internal/spec"
)

// Built-in rule IDs.
const (
	RuleHasDescription       = "has-description"
	RuleHasParams            = "has-params"
	RuleHasReturns           = "has-returns"
	RuleHasExamples          = "has-examples"
	RuleRequireReleaseTag    = "require-release-tag"
	RuleInternalUnderscore   = "internal-underscore"
	RuleNoConflictingTags    = "no-conflicting-tags"
	RuleNoForgottenExport    = "no-forgotten-export"
	RuleNoEmptyReturns       = "no-empty-returns"
	RuleConsistentParamStyle = "consistent-param-style"
)

// basicRule is a Rule built from a predicate and a message function.
type basicRule struct {
	id        string
	kinds     []spec.Kind
	coverage  bool
	severity  Severity
	check     func(RuleContext) bool
	violation func(RuleContext) string
}

func (r *basicRule) ID() string                 { return r.id }
func (r *basicRule) AppliesTo() []spec.Kind     { return r.kinds }
func (r *basicRule) AffectsCoverage() bool      { return r.coverage }
func (r *basicRule) DefaultSeverity() Severity  { return r.severity }
func (r *basicRule) Check(ctx RuleContext) bool { return r.check(ctx) }

func (r *basicRule) Violation(ctx RuleContext) string {
	if r.violation == nil {
		return fmt.Sprintf("%s failed for %s", r.id, ctx.Export.Name)
	}
	return r.violation(ctx)
}

// fixableRule adds a Fixer capability to a basicRule.
type fixableRule struct {
	basicRule
	fix func(RuleContext) *Fix
}

func (r *fixableRule) Fix(ctx RuleContext) *Fix { return r.fix(ctx) }

// CoverageRules returns the rules that count toward the coverage score.
func CoverageRules() []Rule {
	return []Rule{
		&basicRule{
			id:       RuleHasDescription,
			coverage: true,
			severity: SeverityWarn,
			check:    func(ctx RuleContext) bool { return ctx.Export.Documented() },
			violation: func(ctx RuleContext) string {
				return fmt.Sprintf("%s %s has no description", ctx.Export.Kind, ctx.Export.Name)
			},
		},
		&basicRule{
			id:       RuleHasParams,
			kinds:    []spec.Kind{spec.KindFunction, spec.KindClass},
			coverage: true,
			severity: SeverityWarn,
			check:    func(ctx RuleContext) bool { return len(UndocumentedParams(ctx.Export)) == 0 },
			violation: func(ctx RuleContext) string {
				return fmt.Sprintf("missing documentation for parameter(s): %s", strings.Join(UndocumentedParams(ctx.Export), ", "))
			},
		},
		&basicRule{
			id:       RuleHasReturns,
			kinds:    []spec.Kind{spec.KindFunction},
			coverage: true,
			severity: SeverityWarn,
			check:    func(ctx RuleContext) bool { return ReturnsDocumented(ctx.Export) },
			violation: func(ctx RuleContext) string {
				return fmt.Sprintf("return value of %s is not documented", ctx.Export.Name)
			},
		},
		&basicRule{
			id:       RuleHasExamples,
			kinds:    []spec.Kind{spec.KindFunction, spec.KindClass},
			coverage: true,
			severity: SeverityOff,
			check:    func(ctx RuleContext) bool { return HasExamples(ctx.Export) },
			violation: func(ctx RuleContext) string {
				return fmt.Sprintf("%s has no usage example", ctx.Export.Name)
			},
		},
	}
}

// releaseTags are the mutually exclusive API release stages.
var releaseTags = []string{"public", "beta", "alpha", "internal"}

// StructuralRules returns the API-surface compliance rules.
func StructuralRules() []Rule {
	return []Rule{
		&basicRule{
			id:       RuleRequireReleaseTag,
			severity: SeverityOff,
			check:    func(ctx RuleContext) bool { return len(presentReleaseTags(ctx.Export)) > 0 },
			violation: func(ctx RuleContext) string {
				return fmt.Sprintf("%s has no release tag (@public, @beta, @alpha or @internal)", ctx.Export.Name)
			},
		},
		&basicRule{
			id:       RuleInternalUnderscore,
			severity: SeverityWarn,
			check: func(ctx RuleContext) bool {
				return !strings.HasPrefix(ctx.Export.Name, "_") || ctx.Export.HasTag("internal")
			},
			violation: func(ctx RuleContext) string {
				return fmt.Sprintf("%s starts with an underscore but is not tagged @internal", ctx.Export.Name)
			},
		},
		&basicRule{
			id:       RuleNoConflictingTags,
			severity: SeverityError,
			check:    func(ctx RuleContext) bool { return len(presentReleaseTags(ctx.Export)) <= 1 },
			violation: func(ctx RuleContext) string {
				return fmt.Sprintf("conflicting release tags: @%s", strings.Join(presentReleaseTags(ctx.Export), ", @"))
			},
		},
		&basicRule{
			id:       RuleNoForgottenExport,
			severity: SeverityWarn,
			check:    func(ctx RuleContext) bool { return len(ForgottenExports(ctx)) == 0 },
			violation: func(ctx RuleContext) string {
				return fmt.Sprintf("references types that are not exported: %s", strings.Join(ForgottenExports(ctx), ", "))
			},
		},
	}
}

// Style rules scan the raw comment text. They are heuristics and may miss
// unusually formatted comments.
var (
	emptyReturnsPattern = regexp.MustCompile(`(?m)^[ \t]*(?:/\*\*|\*)?[ \t]*@returns?[ \t]*(?:\*/)?[ \t]*$`)
	paramLinePattern    = regexp.MustCompile(`(?m)^([ \t]*(?:\*[ \t]*)?@param[ \t]+(?:\{[^}\n]*\}[ \t]+)?(?:\[[^\]\n]*\]|[\w$.]+))([ \t]+)(.*)$`)
)

// StyleRules returns the raw-text formatting rules.
func StyleRules() []Rule {
	return []Rule{
		&fixableRule{
			basicRule: basicRule{
				id:       RuleNoEmptyReturns,
				severity: SeverityWarn,
				check:    func(ctx RuleContext) bool { return !emptyReturnsPattern.MatchString(ctx.RawDoc) },
				violation: func(ctx RuleContext) string {
					return "@returns tag has no description"
				},
			},
			fix: func(ctx RuleContext) *Fix {
				if !emptyReturnsPattern.MatchString(ctx.RawDoc) {
					return nil
				}
				lines := strings.Split(ctx.RawDoc, "\n")
				kept := make([]string, 0, len(lines))
				for _, line := range lines {
					if !emptyReturnsPattern.MatchString(line) {
						kept = append(kept, line)
					}
				}
				return &Fix{Description: "remove empty @returns tag", Text: strings.Join(kept, "\n")}
			},
		},
		&fixableRule{
			basicRule: basicRule{
				id:       RuleConsistentParamStyle,
				severity: SeverityOff,
				check: func(ctx RuleContext) bool {
					dashed, plain := paramStyles(ctx.RawDoc)
					return dashed == 0 || plain == 0
				},
				violation: func(ctx RuleContext) string {
					return "@param tags mix \"name - description\" and \"name description\" styles"
				},
			},
			fix: func(ctx RuleContext) *Fix {
				if _, plain := paramStyles(ctx.RawDoc); plain == 0 {
					return nil
				}
				text := paramLinePattern.ReplaceAllStringFunc(ctx.RawDoc, func(line string) string {
					m := paramLinePattern.FindStringSubmatch(line)
					if m[3] == "" || strings.HasPrefix(m[3], "- ") {
						return line
					}
					return m[1] + " - " + m[3]
				})
				return &Fix{Description: "use \"name - description\" for every @param", Text: text}
			},
		},
	}
}

// DefaultRules returns every built-in rule: coverage, structural, then style.
func DefaultRules() []Rule {
	rules := CoverageRules()
	rules = append(rules, StructuralRules()...)
	return append(rules, StyleRules()...)
}

// DefaultRuleSet returns a RuleSet of DefaultRules.
func DefaultRuleSet() *RuleSet {
	return MustRuleSet(DefaultRules()...)
}

// UndocumentedParams lists top-level parameters with neither a description
// nor a matching @param tag, across all signatures (deduplicated).
func UndocumentedParams(e spec.Export) []string {
	tagged := map[string]bool{}
	for _, p := range spec.ParamTags(e.Tags) {
		if p.Description != "" || p.Type != "" {
			tagged[p.Name] = true
		}
	}
	var missing []string
	seen := map[string]bool{}
	for _, sig := range e.Signatures {
		for _, p := range sig.Parameters {
			if seen[p.Name] {
				continue
			}
			seen[p.Name] = true
			if strings.TrimSpace(p.Description) == "" && !tagged[p.Name] {
				missing = append(missing, p.Name)
			}
		}
	}
	return missing
}

// ReturnsDocumented reports whether every non-void return is described.
func ReturnsDocumented(e spec.Export) bool {
	tagDocumented := false
	if t, ok := spec.ReturnsTag(e.Tags); ok {
		typ, desc := spec.ParseReturnsTag(t.Text)
		tagDocumented = typ != "" || desc != ""
	}
	for _, sig := range e.Signatures {
		if sig.Returns == nil || isVoid(sig.Returns.Schema) {
			continue
		}
		if strings.TrimSpace(sig.Returns.Description) == "" && !tagDocumented {
			return false
		}
	}
	return true
}

// HasExamples reports whether the export carries at least one example.
func HasExamples(e spec.Export) bool {
	return len(e.Examples) > 0 || e.HasTag("example")
}

// ForgottenExports lists type references that are declared in the package
// but not part of its exported surface. Without a registry nothing is
// reported.
func ForgottenExports(ctx RuleContext) []string {
	if ctx.Registry == nil {
		return nil
	}
	var out []string
	for _, ref := range spec.ExportRefs(ctx.Export) {
		if !ctx.Registry.Has(ref) && !isBuiltinType(ref) {
			out = append(out, ref)
		}
	}
	return out
}

func presentReleaseTags(e spec.Export) []string {
	var out []string
	for _, t := range releaseTags {
		if e.HasTag(t) {
			out = append(out, t)
		}
	}
	return out
}

func isVoid(s *spec.Schema) bool {
	if s == nil {
		return true
	}
	if s.Kind != spec.SchemaPrimitive {
		return false
	}
	switch s.Name {
	case "void", "undefined", "never":
		return true
	}
	return false
}

// builtinTypes are references extractors emit for runtime-provided types.
var builtinTypes = map[string]bool{
	"Promise": true, "Array": true, "Map": true, "Set": true, "Record": true,
	"Partial": true, "Readonly": true, "Date": true, "Error": true, "RegExp": true,
}

func isBuiltinType(ref string) bool {
	name, _, _ := strings.Cut(ref, "<")
	return builtinTypes[name]
}

func paramStyles(raw string) (dashed, plain int) {
	for _, m := range paramLinePattern.FindAllStringSubmatch(raw, -1) {
		desc := strings.TrimSpace(m[3])
		if desc == "" || desc == "*/" {
			continue
		}
		if strings.HasPrefix(desc, "- ") || desc == "-" {
			dashed++
		} else {
			plain++
		}
	}
	return dashed, plain
}
