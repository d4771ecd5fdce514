package spec

import (
	"regexp"
	"slices"
	"strings"
)

// ParamTag is the parsed form of a @param tag.
type ParamTag struct {
	Name        string
	Type        string // "" when the tag declares no {type}
	Optional    bool   // [name], [name=default], {type=} or name?
	Description string
}

// Nested reports whether the tag documents a property path ("opts.timeout")
// rather than a top-level parameter.
func (p ParamTag) Nested() bool {
	return strings.Contains(p.Name, ".")
}

// ParseParamTag parses @param text in the common JSDoc/TSDoc layouts:
//
//	{string} name - description
//	{string=} name
//	[name=default] description
//	name? description
//	name - description
func ParseParamTag(text string) ParamTag {
	var p ParamTag
	rest := strings.TrimSpace(text)

	typ, rest := cutBraced(rest)
	if typ != "" {
		if t, ok := strings.CutSuffix(typ, "="); ok {
			typ = t
			p.Optional = true
		}
		p.Type = strings.TrimSpace(typ)
	}

	var name string
	if strings.HasPrefix(rest, "[") {
		if end := strings.Index(rest, "]"); end >= 0 {
			name, rest = rest[1:end], rest[end+1:]
		} else {
			// Unterminated: the name runs to the first space.
			name, rest, _ = strings.Cut(rest[1:], " ")
		}
		if n, _, ok := strings.Cut(name, "="); ok {
			name = n
		}
		p.Optional = true
	} else {
		name, rest, _ = strings.Cut(rest, " ")
		if n, ok := strings.CutSuffix(name, "?"); ok {
			name = n
			p.Optional = true
		}
	}
	p.Name = strings.TrimSpace(name)
	p.Description = trimDescription(rest)
	return p
}

// ParseReturnsTag splits @returns text into its {type} (if any) and description.
func ParseReturnsTag(text string) (typ, description string) {
	typ, rest := cutBraced(strings.TrimSpace(text))
	return strings.TrimSpace(typ), trimDescription(rest)
}

// TypeParamTag is a documented generic parameter.
type TypeParamTag struct {
	Name       string
	Constraint string // "" when undocumented
}

// ParseTypeParamTag parses @template / @typeParam text:
//
//	{Constraint} T description
//	T extends Constraint
//	T - description
func ParseTypeParamTag(text string) TypeParamTag {
	constraint, rest := cutBraced(strings.TrimSpace(text))
	name, rest, _ := strings.Cut(strings.TrimSpace(rest), " ")
	tp := TypeParamTag{Name: strings.TrimSpace(name), Constraint: strings.TrimSpace(constraint)}
	if tp.Constraint == "" {
		if c, ok := strings.CutPrefix(strings.TrimSpace(rest), "extends "); ok {
			c, _, _ = strings.Cut(c, " - ")
			tp.Constraint = strings.TrimSpace(c)
		}
	}
	return tp
}

// TypeParamTags returns the parsed generic parameter tags of an export.
func TypeParamTags(tags []Tag) []TypeParamTag {
	var out []TypeParamTag
	for _, t := range tags {
		if tagNameEqual(t.Name, "template") || tagNameEqual(t.Name, "typeParam") {
			if tp := ParseTypeParamTag(t.Text); tp.Name != "" {
				out = append(out, tp)
			}
		}
	}
	return out
}

// ParamTags returns the parsed @param tags of an export.
func ParamTags(tags []Tag) []ParamTag {
	var out []ParamTag
	for _, t := range tags {
		if tagNameEqual(t.Name, "param") || tagNameEqual(t.Name, "arg") || tagNameEqual(t.Name, "argument") {
			if p := ParseParamTag(t.Text); p.Name != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// ReturnsTag returns the first @returns (or @return) tag.
func ReturnsTag(tags []Tag) (Tag, bool) {
	for _, t := range tags {
		if tagNameEqual(t.Name, "returns") || tagNameEqual(t.Name, "return") {
			return t, true
		}
	}
	return Tag{}, false
}

var linkPattern = regexp.MustCompile(`\{@link(?:code|plain)?\s+([^}|\s]+)[^}]*\}`)

// LinkTargets returns the symbols referenced by {@link} spans in text and
// the first token of any @see tag. URLs and anchors are skipped.
func LinkTargets(description string, tags []Tag) []string {
	var out []string
	add := func(target string) {
		target = strings.TrimSpace(strings.TrimSuffix(target, "()"))
		if target == "" || isURL(target) || slices.Contains(out, target) {
			return
		}
		out = append(out, target)
	}
	scan := func(text string) {
		for _, m := range linkPattern.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
	}
	scan(description)
	for _, t := range tags {
		scan(t.Text)
		if tagNameEqual(t.Name, "see") && !strings.HasPrefix(strings.TrimSpace(t.Text), "{@link") {
			first, _, _ := strings.Cut(strings.TrimSpace(t.Text), " ")
			add(first)
		}
	}
	return out
}

func isURL(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "mailto:")
}

// NormalizeTypeText canonicalizes a documented or rendered type expression
// for comparison: whitespace is dropped, Array<T> becomes T[] and
// top-level union members are sorted.
func NormalizeTypeText(s string) string {
	s = strings.Join(strings.Fields(s), "")
	for {
		i := strings.Index(s, "Array<")
		if i < 0 {
			break
		}
		depth, end := 0, -1
		for j := i + len("Array"); j < len(s); j++ {
			switch s[j] {
			case '<':
				depth++
			case '>':
				depth--
			}
			if depth == 0 {
				end = j
				break
			}
		}
		if end < 0 {
			break
		}
		inner := s[i+len("Array<") : end]
		if strings.ContainsAny(inner, "|&") {
			inner = "(" + inner + ")"
		}
		s = s[:i] + inner + "[]" + s[end+1:]
	}
	parts := splitTopLevel(s, '|')
	if len(parts) > 1 {
		slices.Sort(parts)
		s = strings.Join(parts, "|")
	}
	return s
}

// splitTopLevel splits s on sep outside of any brackets.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// cutBraced removes a leading {...} group (balanced) and returns its content.
func cutBraced(s string) (inner, rest string) {
	if !strings.HasPrefix(s, "{") {
		return "", s
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[1:i], strings.TrimSpace(s[i+1:])
			}
		}
	}
	return "", s
}

func trimDescription(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "-")
	return strings.TrimSpace(s)
}
