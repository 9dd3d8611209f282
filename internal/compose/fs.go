package compose

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// WorkspaceFS reads files relative to a fixed root. Paths resolving outside
// the root are rejected, so a hostile path list cannot pull in files the
// panel never shared.
type WorkspaceFS struct {
	absRoot string
}

// NewWorkspaceFS locks all reads to the given root directory. The root is
// resolved to an absolute, symlink-free path.
func NewWorkspaceFS(root string) (*WorkspaceFS, error) {
	if root == "" {
		return nil, errors.New("compose: empty workspace root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("compose: workspace root is not a directory")
	}
	return &WorkspaceFS{absRoot: abs}, nil
}

// Root returns the absolute root directory bound to this filesystem.
func (w *WorkspaceFS) Root() string {
	if w == nil {
		return ""
	}
	return w.absRoot
}

// ReadFile reads a file relative to the root.
func (w *WorkspaceFS) ReadFile(userPath string) ([]byte, error) {
	p, err := w.resolve(userPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.New("compose: path is a directory")
	}
	return os.ReadFile(p)
}

func (w *WorkspaceFS) resolve(userPath string) (string, error) {
	if w == nil {
		return "", errors.New("compose: workspace filesystem not configured")
	}
	if userPath == "" {
		return "", errors.New("compose: empty path")
	}
	clean := filepath.Clean(filepath.FromSlash(userPath))
	if clean == "." {
		return w.absRoot, nil
	}
	if filepath.IsAbs(clean) {
		return "", errors.New("compose: absolute paths not allowed")
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.New("compose: path traversal not allowed")
	}
	return filepath.Join(w.absRoot, clean), nil
}
