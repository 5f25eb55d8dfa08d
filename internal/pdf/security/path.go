// Package security confines file access to the configured workspace and
// detects when two paths name the same file.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrOutsideWorkspace is returned for paths that leave the configured directory.
var ErrOutsideWorkspace = errors.New("path is outside the configured directory")

// PathValidator resolves user supplied paths against a workspace directory.
type PathValidator struct {
	configuredDirectory string
}

// NewPathValidator creates a validator rooted at dir. The directory does not
// have to exist yet.
func NewPathValidator(dir string) (*PathValidator, error) {
	if dir == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	return &PathValidator{configuredDirectory: filepath.Clean(abs)}, nil
}

// Directory returns the absolute workspace directory.
func (v *PathValidator) Directory() string {
	return v.configuredDirectory
}

// NormalizePath returns the absolute form of path. Relative paths are taken
// relative to the workspace. The result must lie inside the workspace.
func (v *PathValidator) NormalizePath(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.configuredDirectory, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !v.IsPathWithinDirectory(abs) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, path)
	}
	return abs, nil
}

// IsPathWithinDirectory reports whether path, and the target of any symlinks
// along it, stay inside the workspace.
func (v *PathValidator) IsPathWithinDirectory(path string) bool {
	clean := filepath.Clean(path)
	dirs := []string{v.configuredDirectory}
	if real, err := filepath.EvalSymlinks(v.configuredDirectory); err == nil && real != v.configuredDirectory {
		dirs = append(dirs, real)
	}
	if !within(clean, dirs) {
		return false
	}
	// The file itself may not exist yet (a save destination), so resolve the
	// deepest existing ancestor.
	real, ok := resolveExisting(clean)
	if !ok {
		return true
	}
	return within(real, dirs)
}

func within(path string, dirs []string) bool {
	for _, dir := range dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func resolveExisting(path string) (string, bool) {
	var rest []string
	cur := path
	for {
		if real, err := filepath.EvalSymlinks(cur); err == nil {
			parts := append([]string{real}, rest...)
			return filepath.Join(parts...), true
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", false
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

// SameFile reports whether a and b name the same file on fs. Paths are
// compared after cleaning; when both exist the file identities are compared
// too, which catches hard links and symlinks on the OS filesystem.
func SameFile(fs afero.Fs, a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	if filepath.Clean(absA) == filepath.Clean(absB) {
		return true, nil
	}

	infoA, err := fs.Stat(a)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	infoB, err := fs.Stat(b)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if _, isOS := fs.(*afero.OsFs); isOS {
		return os.SameFile(infoA, infoB), nil
	}
	return false, nil
}
