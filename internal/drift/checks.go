package drift

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/hpungsan/doccov/internal/spec"
)

// checkParams compares @param tags against the signature parameters:
// param-mismatch, param-type-mismatch and optionality-mismatch.
func checkParams(b *builder, exp spec.Export) {
	tags := spec.ParamTags(exp.Tags)
	if len(tags) == 0 || len(exp.Signatures) == 0 {
		return
	}

	var actual []string
	params := map[string]spec.Parameter{}
	for _, sig := range exp.Signatures {
		for _, p := range sig.Parameters {
			if _, ok := params[p.Name]; !ok {
				params[p.Name] = p
				actual = append(actual, p.Name)
			}
		}
	}

	documented := map[string]bool{}
	for _, t := range tags {
		documented[t.Name] = true
	}
	var undocumented []string
	for _, name := range actual {
		if !documented[name] {
			undocumented = append(undocumented, name)
		}
	}

	for _, t := range tags {
		if t.Nested() {
			continue
		}
		p, ok := params[t.Name]
		if !ok {
			candidates := undocumented
			if len(candidates) == 0 {
				candidates = actual
			}
			suggestion := Nearest(t.Name, candidates)
			desc := fmt.Sprintf("@param %s does not match any parameter of %s", t.Name, exp.Name)
			if suggestion != "" {
				desc += fmt.Sprintf("; did you mean %s?", suggestion)
			}
			b.add(ParamMismatch, SeverityError, t.Name, desc, suggestion)
			continue
		}

		if t.Type != "" && p.Schema != nil {
			actualType := spec.Render(p.Schema)
			if spec.NormalizeTypeText(t.Type) != spec.NormalizeTypeText(actualType) {
				b.add(ParamTypeMismatch, SeverityWarning, t.Name,
					fmt.Sprintf("@param %s documents type %s but the signature declares %s", t.Name, t.Type, actualType),
					actualType)
			}
		}

		switch {
		case t.Optional && p.Required:
			b.add(OptionalityMismatch, SeverityWarning, t.Name,
				fmt.Sprintf("@param %s is documented as optional but is required", t.Name), "")
		case !t.Optional && t.Type != "" && !p.Required && !p.Rest:
			b.add(OptionalityMismatch, SeverityWarning, t.Name,
				fmt.Sprintf("@param %s is documented as required but is optional", t.Name), "")
		}
	}
}

// checkReturns compares a typed @returns tag with the declared return type.
func checkReturns(b *builder, exp spec.Export) {
	tag, ok := spec.ReturnsTag(exp.Tags)
	if !ok || len(exp.Signatures) == 0 {
		return
	}
	typ, _ := spec.ParseReturnsTag(tag.Text)
	if typ == "" {
		return
	}
	want := spec.NormalizeTypeText(typ)
	var declared []string
	for _, sig := range exp.Signatures {
		actual := "void"
		if sig.Returns != nil && sig.Returns.Schema != nil {
			actual = spec.Render(sig.Returns.Schema)
		}
		if spec.NormalizeTypeText(actual) == want {
			return
		}
		if !slices.Contains(declared, actual) {
			declared = append(declared, actual)
		}
	}
	b.add(ReturnTypeMismatch, SeverityWarning, "returns",
		fmt.Sprintf("@returns documents type %s but %s returns %s", typ, exp.Name, strings.Join(declared, " | ")),
		declared[0])
}

// checkTypeParams compares @template / @typeParam constraints with the
// declared generic parameters.
func checkTypeParams(b *builder, exp spec.Export) {
	tags := spec.TypeParamTags(exp.Tags)
	if len(tags) == 0 {
		return
	}
	declared := map[string]spec.TypeParameter{}
	for _, sig := range exp.Signatures {
		for _, tp := range sig.TypeParameters {
			if _, ok := declared[tp.Name]; !ok {
				declared[tp.Name] = tp
			}
		}
	}
	for _, t := range tags {
		tp, ok := declared[t.Name]
		switch {
		case !ok:
			b.add(GenericConstraintMismatch, SeverityWarning, t.Name,
				fmt.Sprintf("documented type parameter %s is not declared by %s", t.Name, exp.Name), "")
		case t.Constraint == "":
			continue
		case tp.Constraint == nil:
			b.add(GenericConstraintMismatch, SeverityWarning, t.Name,
				fmt.Sprintf("type parameter %s is documented as extending %s but is unconstrained", t.Name, t.Constraint), "")
		default:
			actual := spec.Render(tp.Constraint)
			if spec.NormalizeTypeText(actual) != spec.NormalizeTypeText(t.Constraint) {
				b.add(GenericConstraintMismatch, SeverityWarning, t.Name,
					fmt.Sprintf("type parameter %s is documented as extending %s but extends %s", t.Name, t.Constraint, actual),
					actual)
			}
		}
	}
}

// checkDeprecated compares the @deprecated tag with the code-level marker.
func checkDeprecated(b *builder, exp spec.Export) {
	tagged := exp.HasTag("deprecated")
	switch {
	case tagged && !exp.Deprecated:
		b.add(DeprecatedMismatch, SeverityWarning, exp.Name,
			fmt.Sprintf("%s is tagged @deprecated but the declaration is not deprecated", exp.Name), "")
	case !tagged && exp.Deprecated:
		b.add(DeprecatedMismatch, SeverityWarning, exp.Name,
			fmt.Sprintf("%s is deprecated but its documentation has no @deprecated tag", exp.Name), "")
	}
}

// checkVisibility flags access tags that contradict the real visibility.
// Every export is public, so any restricting tag on it is a mismatch.
func checkVisibility(b *builder, exp spec.Export) {
	for _, tag := range []string{"private", "protected", "internal"} {
		if exp.HasTag(tag) {
			b.addClaim(VisibilityMismatch, SeverityWarning, exp.Name, tag,
				fmt.Sprintf("%s is tagged @%s but is publicly exported", exp.Name, tag), "")
		}
	}
	for _, m := range exp.Members {
		vis := m.EffectiveVisibility()
		target := exp.Name + "." + m.Name
		for _, tag := range []string{"private", "protected", "internal"} {
			if m.HasTag(tag) && vis == spec.VisibilityPublic {
				b.addClaim(VisibilityMismatch, SeverityWarning, target, tag,
					fmt.Sprintf("%s is tagged @%s but is public", target, tag), string(vis))
			}
		}
		if m.HasTag("public") && vis != spec.VisibilityPublic {
			b.addClaim(VisibilityMismatch, SeverityWarning, target, "public",
				fmt.Sprintf("%s is tagged @public but is %s", target, vis), string(vis))
		}
	}
}

var (
	namedImportPattern     = regexp.MustCompile(`import\s*(?:type\s*)?\{([^}]*)\}\s*from\s*['"]([^'"]+)['"]`)
	namespaceImportPattern = regexp.MustCompile(`import\s*\*\s*as\s+([A-Za-z_$][\w$]*)\s+from\s*['"]([^'"]+)['"]`)
)

// checkExamples reports examples that import symbols the package no longer
// exports, through named imports or namespace member access.
func checkExamples(b *builder, exp spec.Export, dc Context) {
	if dc.Package == "" {
		return
	}
	reported := map[string]bool{}
	report := func(i int, name string) {
		if name == "" || dc.Registry.Has(name) || reported[name] {
			return
		}
		reported[name] = true
		b.add(ExampleDrift, SeverityWarning, name,
			fmt.Sprintf("example %d of %s uses %s, which is not exported", i+1, exp.Name, name),
			Nearest(name, dc.Registry.Names()))
	}

	for i, code := range exp.Examples {
		for _, m := range namedImportPattern.FindAllStringSubmatch(code, -1) {
			if m[2] != dc.Package {
				continue
			}
			for _, item := range strings.Split(m[1], ",") {
				name, _, _ := strings.Cut(strings.TrimSpace(item), " as ")
				name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "type "))
				report(i, name)
			}
		}
		for _, m := range namespaceImportPattern.FindAllStringSubmatch(code, -1) {
			if m[2] != dc.Package {
				continue
			}
			access := regexp.MustCompile(regexp.QuoteMeta(m[1]) + `\.([A-Za-z_$][\w$]*)`)
			for _, a := range access.FindAllStringSubmatch(code, -1) {
				report(i, a[1])
			}
		}
	}
}

// checkLinks reports {@link} and @see targets that are not exported.
func checkLinks(b *builder, exp spec.Export, dc Context) {
	tags := slices.Clone(exp.Tags)
	for _, m := range exp.Members {
		tags = append(tags, m.Tags...)
		if m.Description != "" {
			tags = append(tags, spec.Tag{Name: "description", Text: m.Description})
		}
	}
	for _, target := range spec.LinkTargets(exp.Description, tags) {
		if dc.Registry.Has(target) {
			continue
		}
		head, _, _ := strings.Cut(target, ".")
		b.add(BrokenLink, SeverityWarning, target,
			fmt.Sprintf("link to %s in %s does not resolve to an exported symbol", target, exp.Name),
			Nearest(head, dc.Registry.Names()))
	}
}
