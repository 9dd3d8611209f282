package citation

import "strings"

// maxCitationLine bounds the line component so a runaway digit sequence
// cannot overflow the accumulator. No real file approaches it.
const maxCitationLine = 10_000_000

// ParseMessage normalizes line endings, splits raw assistant text into lines,
// and parses each line. Line order and blank lines are preserved; a blank
// line yields one ParsedLine with a single empty literal segment.
func ParseMessage(raw string) []ParsedLine {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	lines := strings.Split(normalized, "\n")
	out := make([]ParsedLine, len(lines))
	for i, line := range lines {
		out[i] = ParseLine(line)
	}
	return out
}

// ParseLine scans one line left to right, extracting every well-formed
// citation and keeping all remaining text as literal segments in display
// order. Anything that looks like a citation but does not complete the full
// grammar is left as literal text verbatim; malformed input never errors.
func ParseLine(line string) ParsedLine {
	var spans []Span
	var lit strings.Builder

	i := 0
	for i < len(line) {
		if line[i] == '[' {
			if c, next, ok := scanCitation(line, i); ok {
				if lit.Len() > 0 {
					spans = append(spans, Span{Text: lit.String()})
					lit.Reset()
				}
				spans = append(spans, Span{Citation: &c})
				i = next
				continue
			}
		}
		lit.WriteByte(line[i])
		i++
	}
	if lit.Len() > 0 || len(spans) == 0 {
		spans = append(spans, Span{Text: lit.String()})
	}
	return ParsedLine{Spans: spans, Source: line}
}

// scanCitation attempts to read a full citation starting at s[start] == '['.
// It returns the citation and the index just past the closing ')'. A partial
// match returns ok=false and the caller treats the '[' as literal text.
//
// The scan is a small explicit state machine: label until ']', the literal
// "](", path until ':' or ')', then an optional all-digit line.
func scanCitation(s string, start int) (Citation, int, bool) {
	i := start + 1

	// label: one or more non-']' bytes
	labelStart := i
	for i < len(s) && s[i] != ']' {
		i++
	}
	if i >= len(s) || i == labelStart {
		return Citation{}, 0, false
	}
	label := s[labelStart:i]
	i++ // consume ']'

	if i >= len(s) || s[i] != '(' {
		return Citation{}, 0, false
	}
	i++ // consume '('

	// path: one or more bytes excluding ':' and ')'
	pathStart := i
	for i < len(s) && s[i] != ':' && s[i] != ')' {
		i++
	}
	if i >= len(s) || i == pathStart {
		return Citation{}, 0, false
	}
	path := s[pathStart:i]

	line := 0
	if s[i] == ':' {
		i++
		digitStart := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			line = line*10 + int(s[i]-'0')
			if line > maxCitationLine {
				return Citation{}, 0, false
			}
			i++
		}
		if i == digitStart || i >= len(s) || s[i] != ')' {
			return Citation{}, 0, false
		}
		// a line component is a positive integer; zero would collide with
		// the line-omitted form
		if line == 0 {
			return Citation{}, 0, false
		}
	}
	if s[i] != ')' {
		return Citation{}, 0, false
	}
	i++ // consume ')'

	return Citation{Label: label, Path: path, Line: line}, i, true
}

// Flatten reconstructs the display text of parsed lines: literal segments
// concatenated with citation labels substituted in place, lines joined with
// '\n'. For any input, Flatten(ParseMessage(raw)) equals raw with only the
// citation bracket/paren syntax removed.
func Flatten(lines []ParsedLine) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, s := range line.Spans {
			if s.Citation != nil {
				b.WriteString(s.Citation.Label)
			} else {
				b.WriteString(s.Text)
			}
		}
	}
	return b.String()
}
