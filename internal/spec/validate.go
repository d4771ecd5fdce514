package spec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/hpungsan/doccov/internal/errors"
)

// Warning is a non-blocking validation finding attached to one export.
type Warning struct {
	ExportID string `json:"exportId"`
	Export   string `json:"export"`
	Code     string `json:"code"`
	Ref      string `json:"ref,omitempty"`
	Message  string `json:"message"`
}

// WarnUnresolvedReference marks a reference schema with no matching type.
const WarnUnresolvedReference = "UNRESOLVED_REFERENCE"

// Decode parses and validates a PackageSpec.
// Returns a MALFORMED_SPEC error when the JSON or its structure is invalid.
func Decode(data []byte) (*PackageSpec, error) {
	var ps PackageSpec
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&ps); err != nil {
		return nil, errors.NewMalformedSpec([]string{fmt.Sprintf("invalid JSON: %v", err)})
	}
	if err := Validate(&ps); err != nil {
		return nil, err
	}
	return &ps, nil
}

// Validate checks the structural invariants of ps and returns a
// MALFORMED_SPEC error listing every problem found.
func Validate(ps *PackageSpec) error {
	if ps == nil {
		return errors.NewMalformedSpec([]string{"spec is nil"})
	}
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if ps.Meta.Name == "" {
		add("meta.name is required")
	}

	seen := make(map[string]bool, len(ps.Exports))
	for i, e := range ps.Exports {
		at := fmt.Sprintf("exports[%d]", i)
		if e.ID == "" {
			add("%s: id is required", at)
		} else if seen[e.ID] {
			add("%s: duplicate id %q", at, e.ID)
		}
		seen[e.ID] = true
		if e.Name == "" {
			add("%s: name is required", at)
		}
		if !slices.Contains(Kinds, e.Kind) {
			add("%s: invalid kind %q", at, e.Kind)
		}
		for j, sig := range e.Signatures {
			validateSignature(fmt.Sprintf("%s.signatures[%d]", at, j), sig, add)
		}
		validateSchema(at+".schema", e.Schema, true, add)
		for j, m := range e.Members {
			mat := fmt.Sprintf("%s.members[%d]", at, j)
			if m.Name == "" {
				add("%s: name is required", mat)
			}
			switch m.Kind {
			case MemberMethod, MemberProperty, MemberEnumMember:
			default:
				add("%s: invalid kind %q", mat, m.Kind)
			}
			switch m.Visibility {
			case "", VisibilityPublic, VisibilityProtected, VisibilityPrivate:
			default:
				add("%s: invalid visibility %q", mat, m.Visibility)
			}
			validateSchema(mat+".schema", m.Schema, true, add)
			for k, sig := range m.Signatures {
				validateSignature(fmt.Sprintf("%s.signatures[%d]", mat, k), sig, add)
			}
		}
	}

	for _, name := range sortedKeys(ps.Types) {
		validateSchema(fmt.Sprintf("types[%q]", name), ps.Types[name], false, add)
	}

	if len(problems) > 0 {
		return errors.NewMalformedSpec(problems)
	}
	return nil
}

func validateSignature(at string, sig Signature, add func(string, ...any)) {
	for i, p := range sig.Parameters {
		pat := fmt.Sprintf("%s.parameters[%d]", at, i)
		if p.Name == "" {
			add("%s: name is required", pat)
		}
		validateSchema(pat+".schema", p.Schema, true, add)
	}
	for i, tp := range sig.TypeParameters {
		validateSchema(fmt.Sprintf("%s.typeParameters[%d].constraint", at, i), tp.Constraint, true, add)
	}
	if sig.Returns != nil {
		validateSchema(at+".returns.schema", sig.Returns.Schema, true, add)
	}
}

func validateSchema(at string, s *Schema, optional bool, add func(string, ...any)) {
	if s == nil {
		if !optional {
			add("%s: schema is required", at)
		}
		return
	}
	switch s.Kind {
	case SchemaPrimitive:
		if s.Name == "" {
			add("%s: primitive requires name", at)
		}
	case SchemaReference:
		if s.Ref == "" {
			add("%s: reference requires ref", at)
		}
	case SchemaArray:
		if s.Items == nil {
			add("%s: array requires items", at)
		}
		validateSchema(at+".items", s.Items, true, add)
	case SchemaTuple:
		for i, e := range s.Elements {
			validateSchema(fmt.Sprintf("%s.elements[%d]", at, i), e, false, add)
		}
	case SchemaObject:
		names := map[string]bool{}
		for i, p := range s.Properties {
			if p.Name == "" {
				add("%s.properties[%d]: name is required", at, i)
			} else if names[p.Name] {
				add("%s.properties[%d]: duplicate property %q", at, i, p.Name)
			}
			names[p.Name] = true
			validateSchema(fmt.Sprintf("%s.properties[%d].schema", at, i), p.Schema, false, add)
		}
	case SchemaUnion, SchemaIntersection:
		if len(s.Members) == 0 {
			add("%s: %s requires members", at, s.Kind)
		}
		for i, m := range s.Members {
			validateSchema(fmt.Sprintf("%s.members[%d]", at, i), m, false, add)
		}
	default:
		add("%s: invalid schema kind %q", at, s.Kind)
	}
}

// UnresolvedReferences reports every reference in e that matches neither a
// named type nor another export. These are warnings, never errors.
func UnresolvedReferences(ps *PackageSpec, e Export) []Warning {
	known := ps.Registry()
	var out []Warning
	for _, ref := range ExportRefs(e) {
		if _, ok := ps.Types[ref]; ok || known[ref] {
			continue
		}
		out = append(out, Warning{
			ExportID: e.ID,
			Export:   e.Name,
			Code:     WarnUnresolvedReference,
			Ref:      ref,
			Message:  fmt.Sprintf("reference %q does not resolve to a known type", ref),
		})
	}
	return out
}

// Warnings returns the unresolved-reference warnings of every export in ps.
func Warnings(ps *PackageSpec) []Warning {
	var out []Warning
	for _, e := range ps.Exports {
		out = append(out, UnresolvedReferences(ps, e)...)
	}
	return out
}

// ExportRefs returns every reference ID used by e's public shape, in
// first-seen order. Private members are skipped.
func ExportRefs(e Export) []string {
	var out []string
	seen := map[string]bool{}
	collect := func(s *Schema) {
		for _, r := range Refs(s) {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	collectSigs := func(sigs []Signature) {
		for _, sig := range sigs {
			for _, tp := range sig.TypeParameters {
				collect(tp.Constraint)
			}
			for _, p := range sig.Parameters {
				collect(p.Schema)
			}
			if sig.Returns != nil {
				collect(sig.Returns.Schema)
			}
		}
	}
	collectSigs(e.Signatures)
	collect(e.Schema)
	for _, m := range e.Members {
		if m.EffectiveVisibility() == VisibilityPrivate {
			continue
		}
		collect(m.Schema)
		collectSigs(m.Signatures)
	}
	// Generic parameter names are not references to exported types.
	typeParams := map[string]bool{}
	for _, sig := range e.Signatures {
		for _, tp := range sig.TypeParameters {
			typeParams[tp.Name] = true
		}
	}
	return slices.DeleteFunc(out, func(r string) bool { return typeParams[r] })
}

// ContentHash returns the hex SHA-256 of raw spec bytes.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Hash returns the content hash of ps's canonical JSON encoding.
func (p *PackageSpec) Hash() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return ContentHash(data), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
