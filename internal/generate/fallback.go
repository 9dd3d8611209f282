package generate

import (
	"fmt"
	"strings"

	"worklens/internal/catalog"
	"worklens/internal/rank"
)

// Offline composes a deterministic, citation-bearing response without the
// remote backend: the top-ranked files with a representative line each,
// cited in the same [label](path:line) grammar the remote model is asked to
// use. Calling it twice on the same input yields identical text.
func Offline(files []catalog.SourceFile, prompt string) string {
	refs := rank.Select(files, rank.DefaultMaxResults)

	var b strings.Builder
	b.WriteString("I couldn't reach the generation backend, so here is an offline summary of your workspace.\n")

	if len(refs) == 0 {
		b.WriteString("\nNo workspace files were provided, so there is nothing to cite yet. ")
		b.WriteString("Open a project and ask again.\n")
	} else {
		fmt.Fprintf(&b, "\nKey files (%d of %d shared):\n", len(refs), len(files))
		for _, r := range refs {
			fmt.Fprintf(&b, "- [%s](%s:%d): %s\n", labelFor(r.Path), r.Path, r.Line, r.Description)
		}
	}

	if p := strings.TrimSpace(prompt); p != "" {
		fmt.Fprintf(&b, "\nYour request was: %q. Once the backend is reachable, ask again for a full answer.\n", firstLine(p))
	}
	return b.String()
}

func labelFor(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
