package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/doccov/internal/errors"
)

// ValidateSpecPath checks that rel names a spec file inside root and returns
// its absolute path. It checks:
// 1. Path traversal (.. sequences) and absolute paths
// 2. Extension (.json required)
// 3. Containment (the cleaned path stays under root)
// 4. Symlink safety (neither the file nor its parent directory is a symlink)
// 5. Existence (a missing file is NOT_FOUND)
func ValidateSpecPath(root, rel string) (string, error) {
	if rel == "" {
		return "", errors.NewInvalidRequest("spec path is required")
	}
	if containsTraversal(rel) {
		return "", errors.NewInvalidRequest("spec path must not contain directory traversal (..)")
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", errors.NewInvalidRequest("spec path must be relative to the spec root")
	}
	if filepath.Ext(rel) != ".json" {
		return "", errors.NewInvalidRequest("spec path must have .json extension")
	}

	absRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid spec root: %v", err))
	}
	absPath := filepath.Join(absRoot, filepath.Clean(rel))
	if !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", errors.NewInvalidRequest("spec path escapes the spec root")
	}

	// No directory between the root and the file may be a symlink.
	dir := absRoot
	for _, part := range strings.Split(filepath.Dir(filepath.Clean(rel)), string(filepath.Separator)) {
		if part == "." || part == "" {
			continue
		}
		dir = filepath.Join(dir, part)
		info, err := os.Lstat(dir)
		if os.IsNotExist(err) {
			return "", errors.NewNotFound(rel)
		}
		if err != nil {
			return "", errors.NewInternal(err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return "", errors.NewInvalidRequest(fmt.Sprintf("spec directory %s must not be a symlink", part))
		}
	}

	info, err := os.Lstat(absPath)
	if os.IsNotExist(err) {
		return "", errors.NewNotFound(rel)
	}
	if err != nil {
		return "", errors.NewInternal(err)
	}
	// O_NOFOLLOW at open time would catch this too, but rejecting early gives a clearer error.
	if info.Mode()&os.ModeSymlink != 0 {
		return "", errors.NewInvalidRequest("spec path must not be a symlink")
	}
	if info.IsDir() {
		return "", errors.NewInvalidRequest("spec path is a directory")
	}
	return absPath, nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Also check for forward slashes on all platforms (e.g., user input)
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
