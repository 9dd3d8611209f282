// Package render turns parsed assistant lines into the view models the panel
// displays: inline spans with clickable citation buttons, plus a secondary
// list of jump affordances per line. Rendering is stateless; re-rendering the
// same parsed lines produces identical output, which makes history reload a
// plain re-run of the same function.
package render

import "worklens/internal/citation"

// Button is the activation payload of an inline citation. Activating it asks
// the navigation resolver to open Path at Line; that is the only side effect
// rendering ever triggers, and it happens outside this package.
type Button struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Line  int    `json:"line,omitempty"`
}

// Span is literal text or a citation button, in display order.
type Span struct {
	Text   string  `json:"text,omitempty"`
	Button *Button `json:"button,omitempty"`
}

// Jump is a secondary affordance for a citation that carries a line number.
// Citations without a line get inline treatment only; there is nowhere
// meaningful to jump beyond opening the file.
type Jump struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Line  int    `json:"line"`
}

// Line is the view model for one rendered line.
type Line struct {
	Spans  []Span `json:"spans"`
	Jumps  []Jump `json:"jumps,omitempty"`
	Source string `json:"source"`
}

// Lines maps parsed lines to view models, preserving order and never losing
// or duplicating non-citation text.
func Lines(parsed []citation.ParsedLine) []Line {
	out := make([]Line, len(parsed))
	for i, pl := range parsed {
		out[i] = renderLine(pl)
	}
	return out
}

func renderLine(pl citation.ParsedLine) Line {
	line := Line{
		Spans:  make([]Span, 0, len(pl.Spans)),
		Source: pl.Source,
	}
	for _, s := range pl.Spans {
		if s.Citation == nil {
			line.Spans = append(line.Spans, Span{Text: s.Text})
			continue
		}
		c := s.Citation
		line.Spans = append(line.Spans, Span{Button: &Button{
			Label: c.Label,
			Path:  c.Path,
			Line:  c.Line,
		}})
		if c.Line > 0 {
			line.Jumps = append(line.Jumps, Jump{Label: c.Label, Path: c.Path, Line: c.Line})
		}
	}
	return line
}
