package diff

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/hpungsan/doccov/internal/drift"
	"github.com/hpungsan/doccov/internal/spec"
)

// comparison accumulates the change reasons for one export matched by ID.
type comparison struct {
	base, head  *spec.PackageSpec
	exp         spec.Export
	breaking    []string
	nonBreaking []string
	members     []MemberChange
}

func (c *comparison) breaks(format string, args ...any) {
	c.breaking = append(c.breaking, fmt.Sprintf(format, args...))
}

func (c *comparison) extends(format string, args ...any) {
	c.nonBreaking = append(c.nonBreaking, fmt.Sprintf(format, args...))
}

// widens reports whether every base value is accepted by the head type.
func (c *comparison) widens(b, h *spec.Schema) bool {
	return spec.Assignable(b, c.base.Types, h, c.head.Types)
}

// narrows reports whether every head value is accepted by the base type.
func (c *comparison) narrows(b, h *spec.Schema) bool {
	return spec.Assignable(h, c.head.Types, b, c.base.Types)
}

func compareExports(base, head *spec.PackageSpec, b, h spec.Export) *comparison {
	c := &comparison{base: base, head: head, exp: h}

	if b.Kind != h.Kind {
		c.breaks("kind changed from %s to %s", b.Kind, h.Kind)
		return c
	}
	if b.Name != h.Name {
		c.extends("renamed from %s", b.Name)
	}

	c.compareSignatures("", b.Signatures, h.Signatures)
	c.compareSchema(b, h)
	c.compareHeritage("extends", b.Extends, h.Extends)
	c.compareHeritage("implements", b.Implements, h.Implements)
	c.compareMembers(b.Members, h.Members)
	return c
}

func (c *comparison) compareSchema(b, h spec.Export) {
	if spec.Equal(b.Schema, h.Schema) {
		return
	}
	widens, narrows := c.widens(b.Schema, h.Schema), c.narrows(b.Schema, h.Schema)
	switch h.Kind {
	case spec.KindVariable:
		// Readers of a variable accept any narrower value.
		if narrows {
			c.extends("type narrowed to %s", spec.Render(h.Schema))
		} else {
			c.breaks("type changed from %s to %s", spec.Render(b.Schema), spec.Render(h.Schema))
		}
	default:
		// Aliases are used both as inputs and outputs.
		if widens && narrows {
			c.extends("type rewritten as %s", spec.Render(h.Schema))
		} else {
			c.breaks("type changed from %s to %s", spec.Render(b.Schema), spec.Render(h.Schema))
		}
	}
}

func (c *comparison) compareHeritage(label string, b, h []string) {
	for _, name := range b {
		if !slices.Contains(h, name) {
			c.breaks("no longer %s %s", label, name)
		}
	}
	for _, name := range h {
		if !slices.Contains(b, name) {
			c.extends("now %s %s", label, name)
		}
	}
}

// compareSignatures pairs overloads by position. at prefixes reasons for
// member signatures.
func (c *comparison) compareSignatures(at string, b, h []spec.Signature) {
	for i := range max(len(b), len(h)) {
		label := at + "signature"
		if len(b) > 1 || len(h) > 1 {
			label = fmt.Sprintf("%soverload %d", at, i+1)
		}
		switch {
		case i >= len(h):
			c.breaks("%s removed", label)
		case i >= len(b):
			c.extends("%s added", label)
		default:
			c.compareSignature(label, b[i], h[i])
		}
	}
}

func (c *comparison) compareSignature(label string, b, h spec.Signature) {
	c.compareTypeParams(label, b.TypeParameters, h.TypeParameters)

	for i := range max(len(b.Parameters), len(h.Parameters)) {
		switch {
		case i >= len(h.Parameters):
			c.breaks("%s: parameter %s removed", label, b.Parameters[i].Name)
		case i >= len(b.Parameters):
			hp := h.Parameters[i]
			if hp.Required && !hp.Rest {
				c.breaks("%s: required parameter %s added", label, hp.Name)
			} else {
				c.extends("%s: optional parameter %s added", label, hp.Name)
			}
		default:
			c.compareParam(label, b.Parameters[i], h.Parameters[i])
		}
	}

	var bRet, hRet *spec.Schema
	if b.Returns != nil {
		bRet = b.Returns.Schema
	}
	if h.Returns != nil {
		hRet = h.Returns.Schema
	}
	if spec.Equal(bRet, hRet) {
		return
	}
	// Callers consume the return value: head must fit where base did.
	if c.narrows(bRet, hRet) {
		c.extends("%s: return type narrowed to %s", label, spec.Render(hRet))
	} else {
		c.breaks("%s: return type changed from %s to %s", label, spec.Render(bRet), spec.Render(hRet))
	}
}

func (c *comparison) compareParam(label string, b, h spec.Parameter) {
	if b.Rest != h.Rest {
		c.breaks("%s: parameter %s rest changed", label, h.Name)
		return
	}
	switch {
	case !b.Required && h.Required:
		c.breaks("%s: parameter %s became required", label, h.Name)
	case b.Required && !h.Required:
		c.extends("%s: parameter %s became optional", label, h.Name)
	}
	if spec.Equal(b.Schema, h.Schema) {
		return
	}
	// Callers supply arguments: every base argument must still be accepted.
	if c.widens(b.Schema, h.Schema) {
		c.extends("%s: parameter %s widened to %s", label, h.Name, spec.Render(h.Schema))
	} else {
		c.breaks("%s: parameter %s narrowed from %s to %s", label, h.Name, spec.Render(b.Schema), spec.Render(h.Schema))
	}
}

func (c *comparison) compareTypeParams(label string, b, h []spec.TypeParameter) {
	for i := range max(len(b), len(h)) {
		switch {
		case i >= len(h):
			c.breaks("%s: type parameter %s removed", label, b[i].Name)
		case i >= len(b):
			c.extends("%s: type parameter %s added", label, h[i].Name)
		default:
			bc, hc := b[i].Constraint, h[i].Constraint
			if spec.Equal(bc, hc) {
				continue
			}
			if c.widens(bc, hc) {
				c.extends("%s: type parameter %s constraint widened", label, h[i].Name)
			} else {
				c.breaks("%s: type parameter %s constraint narrowed", label, h[i].Name)
			}
		}
	}
}

// compareMembers matches members by name. Private base members are not
// part of the surface, so removing or changing them is ignored.
func (c *comparison) compareMembers(b, h []spec.Member) {
	headByName := make(map[string]spec.Member, len(h))
	for _, m := range h {
		headByName[m.Name] = m
	}
	baseByName := make(map[string]spec.Member, len(b))
	for _, m := range b {
		baseByName[m.Name] = m
	}

	var added []string
	for _, hm := range h {
		if bm, ok := baseByName[hm.Name]; ok && bm.EffectiveVisibility() != spec.VisibilityPrivate {
			continue
		}
		if hm.EffectiveVisibility() == spec.VisibilityPrivate {
			continue
		}
		added = append(added, hm.Name)
	}

	for _, bm := range b {
		if bm.EffectiveVisibility() == spec.VisibilityPrivate {
			continue
		}
		hm, ok := headByName[bm.Name]
		if !ok {
			c.breaks("%s %s removed", memberNoun(bm), bm.Name)
			c.member(bm.Name, MemberRemoved, true, renderMember(bm), "", drift.Nearest(bm.Name, added))
			continue
		}
		c.compareMember(bm, hm)
	}

	for _, name := range added {
		hm := headByName[name]
		c.extends("%s %s added", memberNoun(hm), name)
		c.member(name, MemberAdded, false, "", renderMember(hm), "")
	}
}

func (c *comparison) compareMember(bm, hm spec.Member) {
	before := len(c.breaking)
	nonBefore := len(c.nonBreaking)

	bv, hv := bm.EffectiveVisibility(), hm.EffectiveVisibility()
	if hv.Rank() != bv.Rank() {
		if hv.Rank() < bv.Rank() {
			c.breaks("member %s visibility narrowed from %s to %s", bm.Name, bv, hv)
		} else {
			c.extends("member %s visibility widened from %s to %s", bm.Name, bv, hv)
		}
		c.member(bm.Name, MemberVisibilityChanged, hv.Rank() < bv.Rank(), string(bv), string(hv), "")
		before, nonBefore = len(c.breaking), len(c.nonBreaking)
	}

	if bm.Kind != hm.Kind {
		c.breaks("member %s changed from %s to %s", bm.Name, bm.Kind, hm.Kind)
	} else {
		c.compareSignatures("member "+bm.Name+" ", bm.Signatures, hm.Signatures)
		if !spec.Equal(bm.Schema, hm.Schema) {
			switch {
			case bm.Kind == spec.MemberEnumMember:
				c.breaks("enum member %s value changed", bm.Name)
			case c.widens(bm.Schema, hm.Schema):
				c.extends("property %s widened to %s", bm.Name, spec.Render(hm.Schema))
			default:
				c.breaks("property %s changed from %s to %s", bm.Name, spec.Render(bm.Schema), spec.Render(hm.Schema))
			}
		}
	}

	if len(c.breaking) > before || len(c.nonBreaking) > nonBefore {
		c.member(bm.Name, MemberSignatureChanged, len(c.breaking) > before, renderMember(bm), renderMember(hm), "")
	}
}

func (c *comparison) member(name string, ct MemberChangeType, breaking bool, before, after, suggestion string) {
	c.members = append(c.members, MemberChange{
		ExportID:     c.exp.ID,
		ExportName:   c.exp.Name,
		Member:       name,
		ChangeType:   ct,
		Breaking:     breaking,
		OldSignature: before,
		NewSignature: after,
		Suggestion:   suggestion,
	})
}

func memberNoun(m spec.Member) string {
	switch m.Kind {
	case spec.MemberEnumMember:
		return "enum member"
	case spec.MemberMethod:
		return "method"
	default:
		return "property"
	}
}

// docsFingerprint captures only the documentation of an export, so two
// exports with the same surface differ in fingerprint when prose changed.
func docsFingerprint(e spec.Export) string {
	type memberDocs struct {
		Description string     `json:"d,omitempty"`
		Tags        []spec.Tag `json:"t,omitempty"`
	}
	doc := struct {
		Description string                `json:"d"`
		Tags        []spec.Tag            `json:"t"`
		Examples    []string              `json:"e"`
		Deprecated  bool                  `json:"x"`
		Params      []string              `json:"p"`
		Returns     []string              `json:"r"`
		Members     map[string]memberDocs `json:"m"`
	}{
		Description: e.Description,
		Tags:        e.Tags,
		Examples:    e.Examples,
		Deprecated:  e.Deprecated,
		Members:     make(map[string]memberDocs, len(e.Members)),
	}
	for _, sig := range e.Signatures {
		for _, p := range sig.Parameters {
			doc.Params = append(doc.Params, p.Description)
		}
		if sig.Returns != nil {
			doc.Returns = append(doc.Returns, sig.Returns.Description)
		}
	}
	for _, m := range e.Members {
		doc.Members[m.Name] = memberDocs{Description: m.Description, Tags: m.Tags}
	}
	data, _ := json.Marshal(doc)
	return string(data)
}
