package spec

import (
	"slices"
	"strconv"
	"strings"
)

// SchemaKind tags the variant held by a Schema.
type SchemaKind string

const (
	SchemaPrimitive    SchemaKind = "primitive"
	SchemaReference    SchemaKind = "reference"
	SchemaArray        SchemaKind = "array"
	SchemaTuple        SchemaKind = "tuple"
	SchemaObject       SchemaKind = "object"
	SchemaUnion        SchemaKind = "union"
	SchemaIntersection SchemaKind = "intersection"
)

// Schema is a recursive type description. Exactly the fields belonging to
// Kind are meaningful:
//
//	primitive    Name (also literals: "a", 42, true)
//	reference    Ref
//	array        Items
//	tuple        Elements
//	object       Properties (ordered)
//	union        Members
//	intersection Members
type Schema struct {
	Kind       SchemaKind `json:"kind"`
	Name       string     `json:"name,omitempty"`
	Ref        string     `json:"ref,omitempty"`
	Items      *Schema    `json:"items,omitempty"`
	Elements   []*Schema  `json:"elements,omitempty"`
	Properties []Property `json:"properties,omitempty"`
	Members    []*Schema  `json:"members,omitempty"`
}

// Property is one named field of an object schema.
type Property struct {
	Name     string  `json:"name"`
	Schema   *Schema `json:"schema"`
	Optional bool    `json:"optional,omitempty"`
}

// Primitive returns a primitive schema.
func Primitive(name string) *Schema { return &Schema{Kind: SchemaPrimitive, Name: name} }

// Ref returns a reference schema.
func Ref(typeID string) *Schema { return &Schema{Kind: SchemaReference, Ref: typeID} }

// ArrayOf returns an array schema.
func ArrayOf(items *Schema) *Schema { return &Schema{Kind: SchemaArray, Items: items} }

// TupleOf returns a tuple schema.
func TupleOf(elems ...*Schema) *Schema { return &Schema{Kind: SchemaTuple, Elements: elems} }

// ObjectOf returns an object schema with properties in the given order.
func ObjectOf(props ...Property) *Schema { return &Schema{Kind: SchemaObject, Properties: props} }

// UnionOf returns a union schema.
func UnionOf(members ...*Schema) *Schema { return &Schema{Kind: SchemaUnion, Members: members} }

// IntersectionOf returns an intersection schema.
func IntersectionOf(members ...*Schema) *Schema {
	return &Schema{Kind: SchemaIntersection, Members: members}
}

// Render formats s in TypeScript-like notation.
func Render(s *Schema) string {
	if s == nil {
		return "unknown"
	}
	switch s.Kind {
	case SchemaPrimitive:
		return s.Name
	case SchemaReference:
		return s.Ref
	case SchemaArray:
		inner := Render(s.Items)
		if s.Items != nil && (s.Items.Kind == SchemaUnion || s.Items.Kind == SchemaIntersection) {
			inner = "(" + inner + ")"
		}
		return inner + "[]"
	case SchemaTuple:
		parts := make([]string, len(s.Elements))
		for i, e := range s.Elements {
			parts[i] = Render(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case SchemaObject:
		if len(s.Properties) == 0 {
			return "{}"
		}
		parts := make([]string, len(s.Properties))
		for i, p := range s.Properties {
			opt := ""
			if p.Optional {
				opt = "?"
			}
			parts[i] = p.Name + opt + ": " + Render(p.Schema)
		}
		return "{ " + strings.Join(parts, "; ") + " }"
	case SchemaUnion:
		return joinMembers(s.Members, " | ")
	case SchemaIntersection:
		return joinMembers(s.Members, " & ")
	}
	return "unknown"
}

func joinMembers(members []*Schema, sep string) string {
	parts := make([]string, len(members))
	for i, m := range members {
		parts[i] = Render(m)
	}
	return strings.Join(parts, sep)
}

// Key returns a canonical identity string for s. Union and intersection
// members are order-insensitive; object property order is preserved.
func Key(s *Schema) string {
	if s == nil {
		return "?"
	}
	switch s.Kind {
	case SchemaPrimitive:
		return "p:" + s.Name
	case SchemaReference:
		return "r:" + s.Ref
	case SchemaArray:
		return "a:(" + Key(s.Items) + ")"
	case SchemaTuple:
		parts := make([]string, len(s.Elements))
		for i, e := range s.Elements {
			parts[i] = Key(e)
		}
		return "t:(" + strings.Join(parts, ",") + ")"
	case SchemaObject:
		parts := make([]string, len(s.Properties))
		for i, p := range s.Properties {
			opt := ""
			if p.Optional {
				opt = "?"
			}
			parts[i] = p.Name + opt + "=" + Key(p.Schema)
		}
		return "o:(" + strings.Join(parts, ",") + ")"
	case SchemaUnion, SchemaIntersection:
		parts := make([]string, len(s.Members))
		for i, m := range s.Members {
			parts[i] = Key(m)
		}
		slices.Sort(parts)
		return string(s.Kind[0]) + ":(" + strings.Join(parts, "|") + ")"
	}
	return "?" + string(s.Kind)
}

// Equal reports whether a and b describe the same type.
func Equal(a, b *Schema) bool {
	return Key(a) == Key(b)
}

// Refs returns every reference ID reachable from s, in first-seen order.
func Refs(s *Schema) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(*Schema)
	walk = func(n *Schema) {
		if n == nil {
			return
		}
		switch n.Kind {
		case SchemaReference:
			if !seen[n.Ref] {
				seen[n.Ref] = true
				out = append(out, n.Ref)
			}
		case SchemaArray:
			walk(n.Items)
		case SchemaTuple:
			for _, e := range n.Elements {
				walk(e)
			}
		case SchemaObject:
			for _, p := range n.Properties {
				walk(p.Schema)
			}
		case SchemaUnion, SchemaIntersection:
			for _, m := range n.Members {
				walk(m)
			}
		}
	}
	walk(s)
	return out
}

// Resolver looks up named types.
type Resolver interface {
	Resolve(ref string) (*Schema, bool)
}

// TypeTable is a Resolver over a spec's named type table.
type TypeTable map[string]*Schema

// Resolve implements Resolver.
func (t TypeTable) Resolve(ref string) (*Schema, bool) {
	s, ok := t[ref]
	return s, ok && s != nil
}

// maxAssignDepth bounds reference expansion for recursive types.
const maxAssignDepth = 32

// Assignable reports whether every value of type from (resolved against
// fromTypes) is also a value of type to (resolved against toTypes).
//
// Either resolver may be nil. The check is conservative for breaking-change
// detection: when two references share an ID but a body is unknown they are
// considered the same type.
func Assignable(from *Schema, fromTypes Resolver, to *Schema, toTypes Resolver) bool {
	c := assigner{from: fromTypes, to: toTypes}
	return c.assignable(from, to, 0)
}

type assigner struct {
	from, to Resolver
}

func (c assigner) resolveFrom(ref string) (*Schema, bool) {
	if c.from == nil {
		return nil, false
	}
	return c.from.Resolve(ref)
}

func (c assigner) resolveTo(ref string) (*Schema, bool) {
	if c.to == nil {
		return nil, false
	}
	return c.to.Resolve(ref)
}

func (c assigner) assignable(f, t *Schema, depth int) bool {
	if depth > maxAssignDepth {
		return true
	}
	if t == nil || isTop(t) {
		return true
	}
	if f == nil {
		return false
	}
	if isPrimitiveNamed(f, "any") || isPrimitiveNamed(f, "never") {
		return true
	}
	if Equal(f, t) && f.Kind != SchemaReference {
		return true
	}

	if f.Kind == SchemaReference {
		fBody, fOK := c.resolveFrom(f.Ref)
		if t.Kind == SchemaReference && t.Ref == f.Ref {
			tBody, tOK := c.resolveTo(t.Ref)
			if !fOK || !tOK {
				return true
			}
			return c.assignable(fBody, tBody, depth+1)
		}
		if !fOK {
			return false
		}
		return c.assignable(fBody, t, depth+1)
	}
	if t.Kind == SchemaReference {
		tBody, ok := c.resolveTo(t.Ref)
		if !ok {
			return false
		}
		return c.assignable(f, tBody, depth+1)
	}

	if f.Kind == SchemaUnion {
		for _, m := range f.Members {
			if !c.assignable(m, t, depth+1) {
				return false
			}
		}
		return true
	}
	if t.Kind == SchemaUnion {
		for _, m := range t.Members {
			if c.assignable(f, m, depth+1) {
				return true
			}
		}
		return false
	}
	if t.Kind == SchemaIntersection {
		for _, m := range t.Members {
			if !c.assignable(f, m, depth+1) {
				return false
			}
		}
		return true
	}
	if f.Kind == SchemaIntersection {
		if t.Kind == SchemaObject {
			if merged, ok := c.flattenObject(f, depth); ok && c.assignable(merged, t, depth+1) {
				return true
			}
		}
		for _, m := range f.Members {
			if c.assignable(m, t, depth+1) {
				return true
			}
		}
		return false
	}

	switch t.Kind {
	case SchemaPrimitive:
		return f.Kind == SchemaPrimitive && (f.Name == t.Name || literalBase(f.Name) == t.Name)
	case SchemaArray:
		switch f.Kind {
		case SchemaArray:
			return c.assignable(f.Items, t.Items, depth+1)
		case SchemaTuple:
			for _, e := range f.Elements {
				if !c.assignable(e, t.Items, depth+1) {
					return false
				}
			}
			return true
		}
		return false
	case SchemaTuple:
		if f.Kind != SchemaTuple || len(f.Elements) != len(t.Elements) {
			return false
		}
		for i := range t.Elements {
			if !c.assignable(f.Elements[i], t.Elements[i], depth+1) {
				return false
			}
		}
		return true
	case SchemaObject:
		if f.Kind != SchemaObject {
			return false
		}
		return c.objectAssignable(f, t, depth)
	}
	return false
}

func (c assigner) objectAssignable(f, t *Schema, depth int) bool {
	for _, tp := range t.Properties {
		fp, ok := findProperty(f.Properties, tp.Name)
		if !ok {
			if tp.Optional {
				continue
			}
			return false
		}
		if fp.Optional && !tp.Optional {
			return false
		}
		if !c.assignable(fp.Schema, tp.Schema, depth+1) {
			return false
		}
	}
	return true
}

// flattenObject merges the object members of an intersection (resolving
// references) into a single object schema.
func (c assigner) flattenObject(s *Schema, depth int) (*Schema, bool) {
	merged := &Schema{Kind: SchemaObject}
	for _, m := range s.Members {
		if m != nil && m.Kind == SchemaReference {
			body, ok := c.resolveFrom(m.Ref)
			if !ok {
				return nil, false
			}
			m = body
		}
		if m == nil {
			return nil, false
		}
		switch m.Kind {
		case SchemaObject:
			merged.Properties = append(merged.Properties, m.Properties...)
		case SchemaIntersection:
			if depth > maxAssignDepth {
				return nil, false
			}
			inner, ok := c.flattenObject(m, depth+1)
			if !ok {
				return nil, false
			}
			merged.Properties = append(merged.Properties, inner.Properties...)
		default:
			return nil, false
		}
	}
	return merged, true
}

func findProperty(props []Property, name string) (Property, bool) {
	for _, p := range props {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

func isTop(s *Schema) bool {
	return isPrimitiveNamed(s, "any") || isPrimitiveNamed(s, "unknown")
}

func isPrimitiveNamed(s *Schema, name string) bool {
	return s != nil && s.Kind == SchemaPrimitive && s.Name == name
}

// literalBase maps a literal primitive name to the primitive it widens to.
func literalBase(name string) string {
	if len(name) >= 2 && (name[0] == '"' || name[0] == '\'' || name[0] == '`') {
		return "string"
	}
	if name == "true" || name == "false" {
		return "boolean"
	}
	if _, err := strconv.ParseFloat(name, 64); err == nil {
		return "number"
	}
	return ""
}
