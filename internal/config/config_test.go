package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheSize != DefaultConfig().CacheSize {
		t.Fatalf("CacheSize = %d, want %d", cfg.CacheSize, DefaultConfig().CacheSize)
	}
	if cfg.RetentionTier != "free" {
		t.Fatalf("RetentionTier = %q, want free", cfg.RetentionTier)
	}
	if cfg.RetrievalTimeout() != 60*time.Second {
		t.Fatalf("RetrievalTimeout() = %v, want 60s", cfg.RetrievalTimeout())
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	data := `{"cache_size": 10, "rules": {"has-examples": "warn"}, "retrieval_timeout_seconds": 5}`
	if err := os.WriteFile(configPath, []byte(data), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheSize != 10 {
		t.Fatalf("CacheSize = %d, want %d", cfg.CacheSize, 10)
	}
	if cfg.Rules["has-examples"] != "warn" {
		t.Fatalf("Rules[has-examples] = %q, want warn", cfg.Rules["has-examples"])
	}
	if cfg.RetrievalTimeout() != 5*time.Second {
		t.Fatalf("RetrievalTimeout() = %v, want 5s", cfg.RetrievalTimeout())
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	globalConfig := `{"cache_size": 100, "disabled_tools": ["trend_prune"], "rules": {"has-examples": "warn", "has-params": "error"}}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	repoDir := filepath.Join(repoRoot, DirName)
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	repoConfig := `{"cache_size": 50, "disabled_tools": ["spec_diff"], "rules": {"has-examples": "off"}}`
	if err := os.WriteFile(filepath.Join(repoDir, "config.json"), []byte(repoConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	// Start below the repo root to exercise the upward walk
	nested := filepath.Join(repoRoot, "src", "pkg")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, nested)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.CacheSize != 50 {
		t.Errorf("CacheSize = %d, want 50 (repo override)", cfg.CacheSize)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools = %v, want merged [trend_prune spec_diff]", cfg.DisabledTools)
	}
	if cfg.Rules["has-examples"] != "off" {
		t.Errorf("Rules[has-examples] = %q, want off (repo override)", cfg.Rules["has-examples"])
	}
	if cfg.Rules["has-params"] != "error" {
		t.Errorf("Rules[has-params] = %q, want error (from global)", cfg.Rules["has-params"])
	}
	if cfg.RetentionTier != "free" {
		t.Errorf("RetentionTier = %q, want default free", cfg.RetentionTier)
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.CacheSize != DefaultConfig().CacheSize {
		t.Errorf("CacheSize = %d, want default", cfg.CacheSize)
	}
	if cfg.Rules != nil {
		t.Errorf("Rules = %v, want nil", cfg.Rules)
	}
}

func TestMergeStringSlice(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want []string
	}{
		{"both nil", nil, nil, nil},
		{"dedupe", []string{"a", "b"}, []string{"b", "c"}, []string{"a", "b", "c"}},
		{"trims and drops empty", []string{" a ", ""}, []string{"a"}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeStringSlice(tt.a, tt.b)
			if len(got) != len(tt.want) {
				t.Fatalf("mergeStringSlice() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("mergeStringSlice()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DOCCOV_RETENTION_TIER", "pro")
	t.Setenv("DOCCOV_CACHE_SIZE", "32")
	t.Setenv("DOCCOV_RETRIEVAL_TIMEOUT", "15s")

	cfg := ApplyEnv(DefaultConfig())
	if cfg.RetentionTier != "pro" {
		t.Errorf("RetentionTier = %q, want pro", cfg.RetentionTier)
	}
	if cfg.CacheSize != 32 {
		t.Errorf("CacheSize = %d, want 32", cfg.CacheSize)
	}
	if cfg.RetrievalTimeoutSeconds != 15 {
		t.Errorf("RetrievalTimeoutSeconds = %d, want 15", cfg.RetrievalTimeoutSeconds)
	}
}

func TestApplyEnv_IgnoresMalformed(t *testing.T) {
	t.Setenv("DOCCOV_CACHE_SIZE", "lots")
	t.Setenv("DOCCOV_RETRIEVAL_TIMEOUT", "soon")

	cfg := ApplyEnv(DefaultConfig())
	if cfg.CacheSize != 256 {
		t.Errorf("CacheSize = %d, want 256", cfg.CacheSize)
	}
	if cfg.RetrievalTimeoutSeconds != 60 {
		t.Errorf("RetrievalTimeoutSeconds = %d, want 60", cfg.RetrievalTimeoutSeconds)
	}
}
