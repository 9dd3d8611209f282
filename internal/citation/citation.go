// Package citation defines the inline citation grammar embedded in generated
// prose and the parser that extracts citations without losing literal text.
//
// A citation is written as [label](path:line) or [label](path). The label
// contains no ']', the path contains no ':' and no ')', and the line, when
// present, is one or more digits. The grammar is deliberately restrictive so
// parsing never needs a Markdown engine and cannot mis-read nested brackets.
package citation

// Directive is the instruction embedded in every composed prompt so the
// generation backend emits citations this package can parse. The directive
// and the parser must stay in lock-step: if the grammar changes, both change
// here.
const Directive = "When you reference code, cite it inline as [label](relative/path:line), " +
	"for example [App.tsx](src/App.tsx:3). Use the file path relative to the workspace " +
	"root and a 1-based line number. Omit the line only when no single line is meaningful."

// Citation is an inline structured pointer to a source location.
type Citation struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	// Line is 1-based; 0 means the citation carries no line number.
	Line int `json:"line,omitempty"`
}

// Span is one ordered piece of a parsed line: literal text, or a citation.
// Exactly one of the two is meaningful; Citation wins when non-nil.
type Span struct {
	Text     string    `json:"text,omitempty"`
	Citation *Citation `json:"citation,omitempty"`
}

// ParsedLine is one newline-delimited line of raw assistant text after
// extraction. Spans preserve left-to-right display order.
type ParsedLine struct {
	Spans []Span `json:"spans"`
	// Source is the raw line text before parsing.
	Source string `json:"source"`
}

// Literals returns the non-empty literal segments in order. A line with no
// citations yields exactly one segment, which may be empty.
func (l ParsedLine) Literals() []string {
	out := make([]string, 0, len(l.Spans))
	for _, s := range l.Spans {
		if s.Citation == nil {
			out = append(out, s.Text)
		}
	}
	return out
}

// Citations returns the citations in order of appearance. Duplicates are
// preserved; de-duplication is a rendering decision, not a protocol one.
func (l ParsedLine) Citations() []Citation {
	var out []Citation
	for _, s := range l.Spans {
		if s.Citation != nil {
			out = append(out, *s.Citation)
		}
	}
	return out
}
