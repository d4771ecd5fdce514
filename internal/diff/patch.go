package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/hpungsan/doccov/internal/spec"
)

// SignaturePatch renders a unified diff between the declared surfaces of
// one export in base and head. It returns "" when the surfaces match.
func SignaturePatch(base, head spec.Export) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(RenderExport(base)),
		B:        difflib.SplitLines(RenderExport(head)),
		FromFile: "base/" + base.Name,
		ToFile:   "head/" + head.Name,
		Context:  3,
	})
}

// RenderExport renders an export's surface as TypeScript-like declarations,
// one line per signature or member.
func RenderExport(e spec.Export) string {
	var b strings.Builder
	header := string(e.Kind) + " " + e.Name
	if len(e.Extends) > 0 {
		header += " extends " + strings.Join(e.Extends, ", ")
	}
	if len(e.Implements) > 0 {
		header += " implements " + strings.Join(e.Implements, ", ")
	}

	switch {
	case len(e.Signatures) > 0 && e.Kind == spec.KindFunction:
		for _, sig := range e.Signatures {
			fmt.Fprintf(&b, "function %s%s\n", e.Name, renderSignature(sig))
		}
	case e.Schema != nil && len(e.Members) == 0:
		fmt.Fprintf(&b, "%s: %s\n", header, spec.Render(e.Schema))
	default:
		b.WriteString(header + " {\n")
		for _, sig := range e.Signatures {
			fmt.Fprintf(&b, "  constructor%s\n", renderSignature(sig))
		}
		for _, m := range e.Members {
			b.WriteString("  " + renderMember(m) + "\n")
		}
		b.WriteString("}\n")
	}
	return b.String()
}

func renderMember(m spec.Member) string {
	prefix := ""
	if v := m.EffectiveVisibility(); v != spec.VisibilityPublic {
		prefix = string(v) + " "
	}
	switch {
	case m.Kind == spec.MemberMethod && len(m.Signatures) > 0:
		parts := make([]string, len(m.Signatures))
		for i, sig := range m.Signatures {
			parts[i] = prefix + m.Name + renderSignature(sig)
		}
		return strings.Join(parts, "; ")
	case m.Kind == spec.MemberEnumMember && m.Schema == nil:
		return m.Name
	case m.Kind == spec.MemberEnumMember:
		return m.Name + " = " + spec.Render(m.Schema)
	default:
		return prefix + m.Name + ": " + spec.Render(m.Schema)
	}
}

func renderSignature(sig spec.Signature) string {
	var b strings.Builder
	if len(sig.TypeParameters) > 0 {
		tps := make([]string, len(sig.TypeParameters))
		for i, tp := range sig.TypeParameters {
			tps[i] = tp.Name
			if tp.Constraint != nil {
				tps[i] += " extends " + spec.Render(tp.Constraint)
			}
		}
		b.WriteString("<" + strings.Join(tps, ", ") + ">")
	}

	params := make([]string, len(sig.Parameters))
	for i, p := range sig.Parameters {
		name := p.Name
		if p.Rest {
			name = "..." + name
		} else if !p.Required {
			name += "?"
		}
		params[i] = name + ": " + spec.Render(p.Schema)
	}
	b.WriteString("(" + strings.Join(params, ", ") + ")")

	ret := "void"
	if sig.Returns != nil && sig.Returns.Schema != nil {
		ret = spec.Render(sig.Returns.Schema)
	}
	b.WriteString(": " + ret)
	return b.String()
}
