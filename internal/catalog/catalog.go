// Package catalog builds a normalized hierarchical view of the workspace
// files supplied with a request. It is a pure function of its input: no
// filesystem or network access, rebuilt wholesale every turn.
package catalog

import (
	"strings"
	"unicode/utf8"
)

// SourceFile is one ingested workspace file. Path is slash-separated and
// relative; it uniquely identifies the file within a request.
type SourceFile struct {
	Path    string `json:"filename"`
	Content string `json:"content"`
}

// Kind discriminates catalog entries.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

const previewLines = 3

// Entry is a node of the catalog tree: a file with metadata, or a directory
// with children keyed by name.
type Entry struct {
	Kind Kind `json:"kind"`
	// File fields. Size is a character count, not a byte count; every place
	// that surfaces a size uses the same measure.
	Path      string   `json:"path,omitempty"`
	Size      int      `json:"size,omitempty"`
	Extension string   `json:"extension,omitempty"`
	Preview   []string `json:"previewLines,omitempty"`
	// Directory field.
	Children map[string]*Entry `json:"children,omitempty"`
}

// Build constructs the root-level catalog mapping from a flat file list.
// Files with an empty path are silently skipped. Every path component becomes
// exactly one tree edge; sibling names are unique; a directory entry always
// has at least one descendant file.
func Build(files []SourceFile) map[string]*Entry {
	root := make(map[string]*Entry)
	for _, f := range files {
		segments := splitPath(f.Path)
		if len(segments) == 0 {
			continue
		}
		level := root
		for _, dir := range segments[:len(segments)-1] {
			node := level[dir]
			if node == nil || node.Kind != KindDirectory {
				node = &Entry{Kind: KindDirectory, Children: make(map[string]*Entry)}
				level[dir] = node
			}
			level = node.Children
		}
		name := segments[len(segments)-1]
		level[name] = &Entry{
			Kind:      KindFile,
			Path:      f.Path,
			Size:      utf8.RuneCountInString(f.Content),
			Extension: Extension(name),
			Preview:   Preview(f.Content),
		}
	}
	return root
}

// Extension returns the substring after the last '.' of a filename. A name
// with no dot returns the full filename; existing convention, kept on
// purpose.
func Extension(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// Preview keeps the first three lines of content, trimmed, with lines that
// are empty after trimming dropped. The result has zero to three entries.
func Preview(content string) []string {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if len(lines) > previewLines {
		lines = lines[:previewLines]
	}
	out := make([]string, 0, previewLines)
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
