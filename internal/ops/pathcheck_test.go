package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/doccov/internal/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestValidateSpecPath_Rejected(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "notes.txt"), "x")
	if err := os.MkdirAll(filepath.Join(root, "dir.json"), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"parent traversal", "../spec.json"},
		{"mid-path traversal", "acme/../../spec.json"},
		{"absolute", "/etc/spec.json"},
		{"wrong extension", "notes.txt"},
		{"no extension", "spec"},
		{"directory", "dir.json"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateSpecPath(root, tc.path)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("ValidateSpecPath(%q) error = %v, want INVALID_REQUEST", tc.path, err)
			}
		})
	}
}

func TestValidateSpecPath_Allowed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "acme", "pricing", "spec.json"), "{}")

	got, err := ValidateSpecPath(root, filepath.Join("acme", "pricing", "spec.json"))
	if err != nil {
		t.Fatalf("ValidateSpecPath() error = %v", err)
	}
	if !strings.HasSuffix(got, filepath.Join("acme", "pricing", "spec.json")) || !filepath.IsAbs(got) {
		t.Errorf("ValidateSpecPath() = %q", got)
	}
}

func TestValidateSpecPath_NotFound(t *testing.T) {
	_, err := ValidateSpecPath(t.TempDir(), "missing.json")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}

func TestValidateSpecPath_SymlinkRejected(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(t.TempDir(), "secret.json")
	writeFile(t, target, "{}")

	if err := os.Symlink(target, filepath.Join(root, "link.json")); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}
	_, err := ValidateSpecPath(root, "link.json")
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("error = %v, want INVALID_REQUEST for symlink", err)
	}
}

func TestValidateSpecPath_SymlinkParentRejected(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "spec.json"), "{}")

	if err := os.Symlink(outside, filepath.Join(root, "acme")); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}
	_, err := ValidateSpecPath(root, filepath.Join("acme", "spec.json"))
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("error = %v, want INVALID_REQUEST for symlinked parent", err)
	}
}

func TestValidateSpecPath_SymlinkIntermediateRejected(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "pricing", "v1.json"), "{}")

	if err := os.Symlink(outside, filepath.Join(root, "acme")); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}
	_, err := ValidateSpecPath(root, filepath.Join("acme", "pricing", "v1.json"))
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("error = %v, want INVALID_REQUEST for symlinked owner directory", err)
	}

	_, err = DirSource{Root: root}.Retrieve(context.Background(), SpecRef{Owner: "acme", Repo: "pricing", Path: "v1.json"})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Retrieve() error = %v, want INVALID_REQUEST", err)
	}
}

func TestDirSource_Retrieve(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "acme", "pricing", "v1.json"), `{"meta":{"name":"pricing"}}`)
	src := DirSource{Root: root}
	ctx := context.Background()

	data, err := src.Retrieve(ctx, SpecRef{Owner: "acme", Repo: "pricing", Path: "v1.json"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if !strings.Contains(string(data), "pricing") {
		t.Errorf("Retrieve() = %s", data)
	}

	_, err = src.Retrieve(ctx, SpecRef{Owner: "acme", Repo: "pricing", Path: "v2.json"})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Retrieve(missing) error = %v, want NOT_FOUND", err)
	}
	if err != nil && !strings.Contains(err.Error(), "acme/pricing:v2.json") {
		t.Errorf("Retrieve(missing) error = %v, want the ref in the message", err)
	}

	_, err = DirSource{}.Retrieve(ctx, SpecRef{Path: "v1.json"})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Retrieve(no root) error = %v, want INVALID_REQUEST", err)
	}
}

func TestContainsTraversal(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"spec.json", false},
		{"acme/spec.json", false},
		{"..spec.json", false},
		{"../spec.json", true},
		{"acme/../spec.json", true},
		{"..", true},
	}
	for _, tc := range tests {
		if got := containsTraversal(tc.path); got != tc.want {
			t.Errorf("containsTraversal(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
