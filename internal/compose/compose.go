// Package compose builds the bounded textual context handed to the
// generation backend: a workspace tree, capped file contents, the citation
// directive, and the user prompt.
package compose

import (
	"fmt"
	"sort"
	"strings"

	"worklens/internal/catalog"
	"worklens/internal/citation"
)

// Caps are hard limits on context size, not hints. Files beyond MaxFiles are
// dropped; content beyond MaxFileChars is truncated.
type Caps struct {
	MaxFiles     int
	MaxFileChars int
}

// DefaultCaps mirror the limits the panel negotiates with the gateway.
var DefaultCaps = Caps{MaxFiles: 50, MaxFileChars: 50_000}

func (c Caps) normalized() Caps {
	if c.MaxFiles <= 0 {
		c.MaxFiles = DefaultCaps.MaxFiles
	}
	if c.MaxFileChars <= 0 {
		c.MaxFileChars = DefaultCaps.MaxFileChars
	}
	return c
}

// Apply enforces the caps on a file list, truncating content and dropping
// files past the count limit. The input order is preserved.
func (c Caps) Apply(files []catalog.SourceFile) []catalog.SourceFile {
	caps := c.normalized()
	if len(files) > caps.MaxFiles {
		files = files[:caps.MaxFiles]
	}
	out := make([]catalog.SourceFile, len(files))
	for i, f := range files {
		f.Content = truncateRunes(f.Content, caps.MaxFileChars)
		out[i] = f
	}
	return out
}

// Context combines the workspace files and the user prompt into the full
// backend prompt, ending with the citation directive so the model emits
// citations the parser understands.
func Context(files []catalog.SourceFile, prompt string, caps Caps) string {
	files = caps.Apply(files)

	var b strings.Builder
	b.WriteString("You are an assistant embedded in a code editor. ")
	b.WriteString("Answer using the workspace files below.\n\n")

	b.WriteString("Workspace structure:\n")
	writeTree(&b, catalog.Build(files), 0)
	b.WriteString("\n")

	for _, f := range files {
		if f.Path == "" {
			continue
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", f.Path, f.Content)
	}

	b.WriteString(citation.Directive)
	b.WriteString("\n\nUser request:\n")
	b.WriteString(prompt)
	return b.String()
}

func writeTree(b *strings.Builder, level map[string]*catalog.Entry, depth int) {
	names := make([]string, 0, len(level))
	for name := range level {
		names = append(names, name)
	}
	sort.Strings(names)

	indent := strings.Repeat("  ", depth)
	for _, name := range names {
		entry := level[name]
		if entry.Kind == catalog.KindDirectory {
			fmt.Fprintf(b, "%s%s/\n", indent, name)
			writeTree(b, entry.Children, depth+1)
			continue
		}
		fmt.Fprintf(b, "%s%s (%d chars)\n", indent, name, entry.Size)
	}
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
