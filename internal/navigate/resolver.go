// Package navigate maps cited paths, which may be partial or relative, to
// concrete open targets in the editor host, and 1-based citation lines to the
// host's zero-based coordinates.
//
// Resolution is pure: the resolver holds a snapshot of the host's workspace
// file list and computes targets; actually opening a document is the host's
// job, and a failed open falls back to the verbatim path exactly once.
package navigate

import (
	"errors"
	"path"
	"strings"
)

// Target is a concrete open request for the host. Line and Column are
// zero-based; Line is -1 when the citation carried no line number and the
// host should only show the document.
type Target struct {
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Resolver resolves cited paths against one workspace.
type Resolver struct {
	root  string
	files []string
}

// NewResolver builds a resolver for the first workspace root and the host's
// file list in enumeration order.
func NewResolver(root string, files []string) *Resolver {
	return &Resolver{root: strings.TrimRight(root, "/"), files: files}
}

// Resolve maps a cited path to the primary target and, when a workspace
// match exists, a verbatim fallback used only if the primary open fails.
// When nothing in the workspace matches, the verbatim path is the primary
// target and there is no further fallback.
func (r *Resolver) Resolve(cited string, line int) (Target, *Target) {
	hostLine, hostCol := Position(line)

	if match, ok := r.findWorkspaceFile(cited); ok {
		if abs, err := r.joinRoot(match); err == nil {
			primary := Target{Path: abs, Line: hostLine, Column: hostCol}
			fallback := Target{Path: cited, Line: hostLine, Column: hostCol}
			return primary, &fallback
		}
	}
	return Target{Path: cited, Line: hostLine, Column: hostCol}, nil
}

// Position converts a 1-based citation line to the host's zero-based
// (line, column) pair; a missing line maps to (-1, 0).
func Position(line int) (int, int) {
	if line <= 0 {
		return -1, 0
	}
	return line - 1, 0
}

// findWorkspaceFile returns the first workspace entry that exactly matches,
// ends with, or contains the cited path. First match wins; order is the
// host's enumeration order.
func (r *Resolver) findWorkspaceFile(cited string) (string, bool) {
	cited = strings.TrimSpace(cited)
	if cited == "" {
		return "", false
	}
	for _, f := range r.files {
		if f == cited || strings.HasSuffix(f, "/"+cited) || strings.Contains(f, cited) {
			return f, true
		}
	}
	return "", false
}

// joinRoot resolves a workspace-relative path inside the workspace root and
// rejects traversal outside it.
func (r *Resolver) joinRoot(rel string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(rel, "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.New("navigate: path escapes workspace root")
	}
	if r.root == "" {
		return clean, nil
	}
	return r.root + "/" + clean, nil
}
