package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/hpungsan/doccov/internal/config"
	"github.com/hpungsan/doccov/internal/db"
	"github.com/hpungsan/doccov/internal/ops"
)

const baseSpec = `{
  "meta": {"name": "pricing", "version": "1.0.0"},
  "exports": [{
    "id": "applyTax", "name": "applyTax", "kind": "function",
    "description": "Applies tax.",
    "signatures": [{
      "parameters": [
        {"name": "base", "schema": {"kind": "primitive", "name": "number"}, "required": true, "description": "Amount."},
        {"name": "rate", "schema": {"kind": "primitive", "name": "number"}, "required": true, "description": "Rate."}
      ],
      "returns": {"schema": {"kind": "primitive", "name": "number"}, "description": "Taxed amount."}
    }]
  }]
}`

const headSpec = `{
  "meta": {"name": "pricing", "version": "2.0.0"},
  "exports": [{
    "id": "applyTax", "name": "applyTax", "kind": "function",
    "description": "Applies tax.",
    "signatures": [{
      "parameters": [
        {"name": "base", "schema": {"kind": "primitive", "name": "number"}, "required": true, "description": "Amount."}
      ],
      "returns": {"schema": {"kind": "primitive", "name": "number"}, "description": "Taxed amount."}
    }]
  }]
}`

// setupTest creates a service over a temporary database and a spec root
// holding the base and head fixtures.
func setupTest(t *testing.T) (*ops.Service, string) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "base.json"), baseSpec)
	writeTestFile(t, filepath.Join(root, "head.json"), headSpec)
	writeTestFile(t, filepath.Join(root, "acme", "pricing", "v1.json"), baseSpec)

	svc, err := ops.New(config.DefaultConfig(), db.NewSnapshotStore(database), ops.DirSource{Root: root})
	if err != nil {
		t.Fatalf("ops.New() error = %v", err)
	}
	svc.SetLogger(log.New(io.Discard))
	return svc, root
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// runCLI runs the app with args and returns what it wrote to stdout.
func runCLI(t *testing.T, svc *ops.Service, args ...string) (string, error) {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	os.Stdout = w

	out := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		out <- buf.String()
	}()

	app := newCLIApp(svc)
	runErr := app.Run(append([]string{"doccov"}, args...))

	w.Close()
	os.Stdout = oldStdout
	return <-out, runErr
}

func decodeOutput(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, s)
	}
	return m
}

func TestParseRules(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]string
		wantErr bool
	}{
		{"empty", "", nil, false},
		{"single", "has-examples=warn", map[string]string{"has-examples": "warn"}, false},
		{"spaces and trailing comma", " has-params = off , has-returns=error,", map[string]string{"has-params": "off", "has-returns": "error"}, false},
		{"missing equals", "has-params", nil, true},
		{"missing id", "=off", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRules(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRules() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseRules() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("parseRules()[%s] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		input string
		want  ops.SpecRef
	}{
		{"spec.json", ops.SpecRef{Path: "spec.json"}},
		{"acme/spec.json", ops.SpecRef{Path: "acme/spec.json"}},
		{"acme/pricing/v1.json", ops.SpecRef{Owner: "acme", Repo: "pricing", Path: "v1.json"}},
		{"acme/pricing/specs/v1.json", ops.SpecRef{Owner: "acme", Repo: "pricing", Path: "specs/v1.json"}},
	}
	for _, tt := range tests {
		if got := parseRef(tt.input); got != tt.want {
			t.Errorf("parseRef(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestCLIEvaluate(t *testing.T) {
	svc, root := setupTest(t)

	out, err := runCLI(t, svc, "evaluate", filepath.Join(root, "base.json"))
	if err != nil {
		t.Fatalf("evaluate error = %v", err)
	}
	result := decodeOutput(t, out)
	if result["package"] != "pricing" {
		t.Errorf("package = %v", result["package"])
	}

	byRef, err := runCLI(t, svc, "evaluate", "--ref", "acme/pricing/v1.json")
	if err != nil {
		t.Fatalf("evaluate --ref error = %v", err)
	}
	if decodeOutput(t, byRef)["content_hash"] != result["content_hash"] {
		t.Error("file and ref evaluation disagree on content hash")
	}
}

func TestCLIErrors(t *testing.T) {
	svc, root := setupTest(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file", []string{"evaluate", filepath.Join(root, "nope.json")}, "[NOT_FOUND]"},
		{"missing ref", []string{"drift", "--ref", "acme/pricing/v9.json"}, "[NOT_FOUND]"},
		{"no argument", []string{"evaluate"}, "[INVALID_REQUEST]"},
		{"bad rules", []string{"evaluate", "--rules", "has-params", filepath.Join(root, "base.json")}, "[INVALID_REQUEST]"},
		{"diff needs two specs", []string{"diff", filepath.Join(root, "base.json")}, "[INVALID_REQUEST]"},
		{"history without package", []string{"history"}, "[INVALID_REQUEST]"},
		{"prune keep and tier", []string{"prune", "--keep", "1", "--tier", "pro", "pricing"}, "[INVALID_REQUEST]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, svc, tt.args...)
			if err == nil || !strings.HasPrefix(err.Error(), tt.want) {
				t.Errorf("error = %v, want prefix %s", err, tt.want)
			}
		})
	}
}

func TestCLIDiff(t *testing.T) {
	svc, root := setupTest(t)
	readme := filepath.Join(root, "README.md")
	writeTestFile(t, readme, "# Pricing\n\n```js\napplyTax(100, 0.2)\n```\n")

	out, err := runCLI(t, svc, "diff", "-m", readme, filepath.Join(root, "base.json"), filepath.Join(root, "head.json"))
	if err != nil {
		t.Fatalf("diff error = %v", err)
	}
	result := decodeOutput(t, out)
	d := result["diff"].(map[string]any)
	if breaking := d["breaking"].([]any); len(breaking) != 1 || breaking[0] != "applyTax" {
		t.Errorf("breaking = %v, want [applyTax]", breaking)
	}
	if d["docsImpact"] == nil {
		t.Error("docsImpact missing with --markdown")
	}

	patch, err := runCLI(t, svc, "diff", "--patch", filepath.Join(root, "base.json"), filepath.Join(root, "head.json"))
	if err != nil {
		t.Fatalf("diff --patch error = %v", err)
	}
	for _, want := range []string{"--- base/applyTax", "+++ head/applyTax", "-function applyTax(base: number, rate: number): number", "+function applyTax(base: number): number"} {
		if !strings.Contains(patch, want) {
			t.Errorf("patch missing %q:\n%s", want, patch)
		}
	}
}

func TestCLITrendCommands(t *testing.T) {
	svc, root := setupTest(t)

	for _, f := range []string{"base.json", "head.json"} {
		out, err := runCLI(t, svc, "record", "--source", "ci", "--commit", "abc1234", filepath.Join(root, f))
		if err != nil {
			t.Fatalf("record %s error = %v", f, err)
		}
		if snap := decodeOutput(t, out); snap["source"] != "ci" || snap["id"] == "" {
			t.Errorf("record output = %v", snap)
		}
	}

	out, err := runCLI(t, svc, "history", "--limit", "5", "pricing")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if hist := decodeOutput(t, out); len(hist["history"].([]any)) != 2 {
		t.Errorf("history = %v, want 2 snapshots", hist["history"])
	}

	out, err = runCLI(t, svc, "analyze", "pricing")
	if err != nil {
		t.Fatalf("analyze error = %v", err)
	}
	if a := decodeOutput(t, out); a["weekly"] == nil {
		t.Errorf("analyze output missing weekly: %v", a)
	}

	out, err = runCLI(t, svc, "prune", "--keep", "1", "pricing")
	if err != nil {
		t.Fatalf("prune error = %v", err)
	}
	if p := decodeOutput(t, out); p["deleted"].(float64) != 1 {
		t.Errorf("deleted = %v, want 1", p["deleted"])
	}
}

func TestCLIHelpWithoutService(t *testing.T) {
	out, err := runCLI(t, nil, "--help")
	if err != nil {
		t.Fatalf("--help error = %v", err)
	}
	for _, cmd := range []string{"evaluate", "drift", "diff", "record", "history", "prune", "analyze"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("help output missing %q", cmd)
		}
	}
}
