package spec

import (
	"strings"
	"testing"

	"github.com/hpungsan/doccov/internal/errors"
)

const validSpecJSON = `{
  "meta": {"name": "pricing", "version": "1.2.0"},
  "exports": [
    {
      "id": "applyTax", "name": "applyTax", "kind": "function",
      "signatures": [{
        "parameters": [
          {"name": "base", "schema": {"kind": "primitive", "name": "number"}, "required": true},
          {"name": "opts", "schema": {"kind": "reference", "ref": "TaxOptions"}, "required": false}
        ],
        "returns": {"schema": {"kind": "primitive", "name": "number"}}
      }]
    },
    {"id": "Currency", "name": "Currency", "kind": "enum",
     "members": [{"name": "USD", "kind": "enum-member"}]}
  ],
  "types": {
    "TaxOptions": {"kind": "object", "properties": [{"name": "rate", "schema": {"kind": "primitive", "name": "number"}}]}
  }
}`

func TestDecode_Valid(t *testing.T) {
	ps, err := Decode([]byte(validSpecJSON))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if ps.Meta.Name != "pricing" {
		t.Errorf("Meta.Name = %q, want pricing", ps.Meta.Name)
	}
	if len(ps.Exports) != 2 {
		t.Fatalf("len(Exports) = %d, want 2", len(ps.Exports))
	}
	if got := ps.Exports[0].Signatures[0].Parameters[1].Schema.Ref; got != "TaxOptions" {
		t.Errorf("param ref = %q, want TaxOptions", got)
	}
	if len(Warnings(ps)) != 0 {
		t.Errorf("Warnings() = %v, want none", Warnings(ps))
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := Decode([]byte(`{"meta":`))
	if !errors.Is(err, errors.ErrMalformedSpec) {
		t.Fatalf("Decode() error = %v, want MALFORMED_SPEC", err)
	}
}

func TestValidate_Problems(t *testing.T) {
	ps := &PackageSpec{
		Exports: []Export{
			{ID: "a", Name: "a", Kind: "widget"},
			{ID: "a", Name: "", Kind: KindFunction, Signatures: []Signature{{
				Parameters: []Parameter{{Name: "x", Schema: &Schema{Kind: SchemaArray}}},
			}}},
			{ID: "c", Name: "c", Kind: KindClass, Members: []Member{{Name: "m", Kind: MemberMethod, Visibility: "internal"}}},
		},
		Types: map[string]*Schema{"U": {Kind: SchemaUnion}},
	}

	err := Validate(ps)
	if !errors.Is(err, errors.ErrMalformedSpec) {
		t.Fatalf("Validate() error = %v, want MALFORMED_SPEC", err)
	}
	msg := err.Error()
	for _, want := range []string{
		"meta.name is required",
		`invalid kind "widget"`,
		`duplicate id "a"`,
		"exports[1]: name is required",
		"array requires items",
		`invalid visibility "internal"`,
		"union requires members",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("Validate() error missing %q: %s", want, msg)
		}
	}
}

func TestUnresolvedReferences(t *testing.T) {
	ps := &PackageSpec{
		Meta: Meta{Name: "p"},
		Exports: []Export{
			{ID: "f", Name: "f", Kind: KindFunction, Signatures: []Signature{{
				TypeParameters: []TypeParameter{{Name: "T"}},
				Parameters: []Parameter{
					{Name: "a", Schema: Ref("Known"), Required: true},
					{Name: "b", Schema: Ref("Ghost"), Required: true},
					{Name: "c", Schema: Ref("T"), Required: true},
					{Name: "d", Schema: Ref("Widget"), Required: true},
				},
			}}},
			{ID: "Widget", Name: "Widget", Kind: KindClass},
		},
		Types: map[string]*Schema{"Known": Primitive("string")},
	}

	warnings := UnresolvedReferences(ps, ps.Exports[0])
	if len(warnings) != 1 {
		t.Fatalf("UnresolvedReferences() = %v, want exactly one", warnings)
	}
	if warnings[0].Ref != "Ghost" || warnings[0].Code != WarnUnresolvedReference {
		t.Errorf("warning = %+v, want Ghost/%s", warnings[0], WarnUnresolvedReference)
	}
}

func TestHash_Stable(t *testing.T) {
	a, err := Decode([]byte(validSpecJSON))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	b, err := Decode([]byte(validSpecJSON))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	ha, _ := a.Hash()
	hb, _ := b.Hash()
	if ha != hb || len(ha) != 64 {
		t.Errorf("Hash() = %q / %q, want equal 64-char hashes", ha, hb)
	}
	if ContentHash([]byte("x")) == ContentHash([]byte("y")) {
		t.Error("ContentHash() collided for different inputs")
	}
}

func TestRegistry_Has(t *testing.T) {
	r := Registry{"Cart": true}
	if !r.Has("Cart.total") {
		t.Error("Has(Cart.total) = false, want true via first segment")
	}
	if r.Has("Order") {
		t.Error("Has(Order) = true, want false")
	}
}
