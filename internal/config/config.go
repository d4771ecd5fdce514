package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DirName is the name of the global (~/.doccov) and repo (.doccov) config directories.
const DirName = ".doccov"

// Config holds application configuration.
type Config struct {
	// Rules overrides the default severity of quality rules, keyed by rule ID.
	// Values are "error", "warn" or "off". Unknown rule IDs are ignored.
	Rules map[string]string `json:"rules,omitempty"`

	// RetentionTier selects the snapshot retention window used by prune --tier
	// when no tier is given explicitly: "free" (7d), "team" (30d) or "pro" (90d).
	RetentionTier string `json:"retention_tier,omitempty"`

	// CacheSize bounds the number of diff and spec results kept in memory.
	CacheSize int `json:"cache_size,omitempty"`

	// RetrievalTimeoutSeconds bounds spec retrieval plus diffing in compare.
	RetrievalTimeoutSeconds int `json:"retrieval_timeout_seconds,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// Known types: "spec", "trend". Unknown type names are logged as warnings.
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionTier:           "free",
		CacheSize:               256,
		RetrievalTimeoutSeconds: 60,
	}
}

// RetrievalTimeout returns the configured retrieval bound as a duration.
func (c *Config) RetrievalTimeout() time.Duration {
	if c.RetrievalTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.RetrievalTimeoutSeconds) * time.Second
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.doccov.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.doccov) and repo (.doccov) directories.
// Repo config is found by walking upward from startDir to find the nearest .doccov/config.json.
// Repo config takes precedence for scalar values and rule severities; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .doccov/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ApplyEnv overlays DOCCOV_* environment variables onto cfg.
// Callers load a .env file first (godotenv) so both sources are honored.
// Malformed numeric values are ignored.
func ApplyEnv(cfg *Config) *Config {
	if v := strings.TrimSpace(os.Getenv("DOCCOV_RETENTION_TIER")); v != "" {
		cfg.RetentionTier = v
	}
	if v := strings.TrimSpace(os.Getenv("DOCCOV_CACHE_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DOCCOV_RETRIEVAL_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RetrievalTimeoutSeconds = int(d.Seconds())
		} else if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetrievalTimeoutSeconds = n
		}
	}
	return cfg
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars and per-rule severities;
// arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.RetentionTier = overlay.RetentionTier
	if result.RetentionTier == "" {
		result.RetentionTier = base.RetentionTier
	}

	result.CacheSize = overlay.CacheSize
	if result.CacheSize == 0 {
		result.CacheSize = base.CacheSize
	}

	result.RetrievalTimeoutSeconds = overlay.RetrievalTimeoutSeconds
	if result.RetrievalTimeoutSeconds == 0 {
		result.RetrievalTimeoutSeconds = base.RetrievalTimeoutSeconds
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Maps: union, overlay wins per key
	if len(base.Rules)+len(overlay.Rules) > 0 {
		result.Rules = make(map[string]string, len(base.Rules)+len(overlay.Rules))
		for k, v := range base.Rules {
			result.Rules[k] = v
		}
		for k, v := range overlay.Rules {
			result.Rules[k] = v
		}
	}

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
