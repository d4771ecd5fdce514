// Package spec defines the package specification model shared by every
// analysis stage: exports, their signatures and the recursive Schema tree.
//
// A PackageSpec is produced by an external extractor and treated as
// immutable; nothing in this module mutates one after Decode returns it.
package spec

import (
	"slices"
	"strings"
)

// Kind is the declaration kind of an export.
type Kind string

const (
	KindFunction  Kind = "function"
	KindClass     Kind = "class"
	KindInterface Kind = "interface"
	KindType      Kind = "type"
	KindEnum      Kind = "enum"
	KindVariable  Kind = "variable"
)

// Kinds lists every valid export kind.
var Kinds = []Kind{KindFunction, KindClass, KindInterface, KindType, KindEnum, KindVariable}

// MemberKind is the kind of a class, interface or enum member.
type MemberKind string

const (
	MemberMethod     MemberKind = "method"
	MemberProperty   MemberKind = "property"
	MemberEnumMember MemberKind = "enum-member"
)

// Visibility is a member's access level.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
	VisibilityPrivate   Visibility = "private"
)

// Rank orders visibilities from most (2) to least (0) accessible.
func (v Visibility) Rank() int {
	switch v {
	case VisibilityPrivate:
		return 0
	case VisibilityProtected:
		return 1
	default:
		return 2
	}
}

// Meta identifies the package a spec describes.
type Meta struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
}

// PackageSpec is the extracted public surface of one package version.
type PackageSpec struct {
	Meta        Meta      `json:"meta"`
	Exports     []Export  `json:"exports"`
	Types       TypeTable `json:"types,omitempty"`
	GeneratedAt string    `json:"generatedAt,omitempty"`
}

// Tag is one documentation tag, e.g. {Name: "param", Text: "x - the input"}.
type Tag struct {
	Name string `json:"name"`
	Text string `json:"text,omitempty"`
}

// Parameter is a single function or method parameter.
type Parameter struct {
	Name        string  `json:"name"`
	Schema      *Schema `json:"schema,omitempty"`
	Required    bool    `json:"required"`
	Rest        bool    `json:"rest,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Returns describes a signature's return value.
type Returns struct {
	Schema      *Schema `json:"schema,omitempty"`
	Description string  `json:"description,omitempty"`
}

// TypeParameter is a generic parameter with an optional constraint.
type TypeParameter struct {
	Name       string  `json:"name"`
	Constraint *Schema `json:"constraint,omitempty"`
}

// Signature is one callable overload.
type Signature struct {
	TypeParameters []TypeParameter `json:"typeParameters,omitempty"`
	Parameters     []Parameter     `json:"parameters,omitempty"`
	Returns        *Returns        `json:"returns,omitempty"`
}

// Member is a class, interface or enum member.
type Member struct {
	Name        string      `json:"name"`
	Kind        MemberKind  `json:"kind"`
	Schema      *Schema     `json:"schema,omitempty"`
	Signatures  []Signature `json:"signatures,omitempty"`
	Visibility  Visibility  `json:"visibility,omitempty"`
	Description string      `json:"description,omitempty"`
	Tags        []Tag       `json:"tags,omitempty"`
}

// EffectiveVisibility returns the member visibility, defaulting to public.
func (m Member) EffectiveVisibility() Visibility {
	if m.Visibility == "" {
		return VisibilityPublic
	}
	return m.Visibility
}

// Source is the declaration site of an export.
type Source struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
}

// Export is one exported symbol.
//
// ID is stable across versions (a re-export under a new name keeps the
// declaration's ID); Name is the declaration-site name.
type Export struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Kind        Kind        `json:"kind"`
	Description string      `json:"description,omitempty"`
	Tags        []Tag       `json:"tags,omitempty"`
	Signatures  []Signature `json:"signatures,omitempty"`
	Members     []Member    `json:"members,omitempty"`
	Examples    []string    `json:"examples,omitempty"`
	Extends     []string    `json:"extends,omitempty"`
	Implements  []string    `json:"implements,omitempty"`
	Schema      *Schema     `json:"schema,omitempty"`
	Deprecated  bool        `json:"deprecated,omitempty"`
	Source      *Source     `json:"source,omitempty"`
}

// HasTag reports whether the export carries a tag with the given name.
func (e Export) HasTag(name string) bool {
	return hasTag(e.Tags, name)
}

// TagsNamed returns the export's tags with the given name, in order.
func (e Export) TagsNamed(name string) []Tag {
	return tagsNamed(e.Tags, name)
}

// HasTag reports whether the member carries a tag with the given name.
func (m Member) HasTag(name string) bool {
	return hasTag(m.Tags, name)
}

// IsCallable reports whether the export has call signatures worth documenting.
func (e Export) IsCallable() bool {
	return (e.Kind == KindFunction || e.Kind == KindClass) && len(e.Signatures) > 0
}

// File returns the declaring file, or "" when unknown.
func (e Export) File() string {
	if e.Source == nil {
		return ""
	}
	return e.Source.File
}

// Line returns the declaring line, or 0 when unknown.
func (e Export) Line() int {
	if e.Source == nil {
		return 0
	}
	return e.Source.Line
}

// Documented reports whether the export has a non-empty description.
func (e Export) Documented() bool {
	return strings.TrimSpace(e.Description) != ""
}

// FindExport returns the export with the given ID.
func (p *PackageSpec) FindExport(id string) (Export, bool) {
	for _, e := range p.Exports {
		if e.ID == id {
			return e, true
		}
	}
	return Export{}, false
}

// Registry returns the set of exported names and IDs in p.
func (p *PackageSpec) Registry() Registry {
	r := make(Registry, len(p.Exports)*2)
	for _, e := range p.Exports {
		r[e.Name] = true
		r[e.ID] = true
	}
	return r
}

// Registry is a set of exported symbol names.
type Registry map[string]bool

// Has reports whether name is exported. A qualified name ("Widget.render")
// resolves through its first segment.
func (r Registry) Has(name string) bool {
	if r[name] {
		return true
	}
	if head, _, ok := strings.Cut(name, "."); ok {
		return r[head]
	}
	return false
}

// Names returns the registry contents in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func hasTag(tags []Tag, name string) bool {
	for _, t := range tags {
		if tagNameEqual(t.Name, name) {
			return true
		}
	}
	return false
}

func tagsNamed(tags []Tag, name string) []Tag {
	var out []Tag
	for _, t := range tags {
		if tagNameEqual(t.Name, name) {
			out = append(out, t)
		}
	}
	return out
}

// tagNameEqual compares tag names ignoring a leading "@" and case.
func tagNameEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "@"), strings.TrimPrefix(b, "@"))
}
