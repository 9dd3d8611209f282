// Package rank scores workspace files and selects the bounded subset worth
// citing in an offline summary, along with a representative line per file.
//
// The weights are a policy default, not a contract: retuning them is fine as
// long as selection stays deterministic, capped, and ordered by score with
// size and path as tie-breaks.
package rank

import (
	"sort"
	"strings"
	"unicode/utf8"

	"worklens/internal/catalog"
)

// DefaultMaxResults bounds how many references one response may cite.
const DefaultMaxResults = 5

// Reference is a scored pointer to a file worth citing.
type Reference struct {
	Path        string
	Line        int // 1-based representative line
	Description string
	Score       int
}

var extensionWeights = map[string]int{
	"tsx":  6,
	"jsx":  5,
	"ts":   5,
	"js":   4,
	"json": 4,
	"md":   2,
	"css":  2,
	"scss": 2,
	"html": 2,
}

// Select scores every file and returns at most max references, ordered by
// descending score, then descending content size, then lexical path. The
// result is deterministic for a given input.
func Select(files []catalog.SourceFile, max int) []Reference {
	if max <= 0 {
		max = DefaultMaxResults
	}

	type scored struct {
		file  catalog.SourceFile
		score int
		size  int
	}
	candidates := make([]scored, 0, len(files))
	for _, f := range files {
		if f.Path == "" {
			continue
		}
		candidates = append(candidates, scored{
			file:  f,
			score: Score(f),
			size:  utf8.RuneCountInString(f.Content),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].size != candidates[j].size {
			return candidates[i].size > candidates[j].size
		}
		return candidates[i].file.Path < candidates[j].file.Path
	})

	if len(candidates) > max {
		candidates = candidates[:max]
	}

	out := make([]Reference, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Reference{
			Path:        c.file.Path,
			Line:        RepresentativeLine(c.file.Content),
			Description: Describe(c.file.Path, c.file.Content),
			Score:       c.score,
		})
	}
	return out
}

// Score computes the additive heuristic score for one file.
func Score(f catalog.SourceFile) int {
	base := baseName(f.Path)
	score := extensionWeight(base)

	if base == "package.json" {
		score += 5
	}
	if hasSegment(f.Path, "components") {
		score += 2
	}
	if base == "README.md" {
		score += 3
	}
	if hasSegment(f.Path, "tests") {
		score += 1
	}
	if usesReactiveState(f.Content) {
		score += 1
	}
	return score
}

func extensionWeight(base string) int {
	ext := catalog.Extension(base)
	if w, ok := extensionWeights[strings.ToLower(ext)]; ok {
		return w
	}
	return 1
}

// usesReactiveState reports whether the content calls a UI state hook.
func usesReactiveState(content string) bool {
	return strings.Contains(content, "useState(") || strings.Contains(content, "useReducer(")
}

func baseName(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

func hasSegment(path, segment string) bool {
	parts := strings.Split(path, "/")
	// only directory components count, not the filename
	for _, p := range parts[:len(parts)-1] {
		if p == segment {
			return true
		}
	}
	return false
}
