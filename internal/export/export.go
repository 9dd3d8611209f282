// Package export renders conversation transcripts to standalone HTML.
package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"

	"worklens/internal/citation"
	"worklens/internal/conversation"
)

// md allows raw HTML so the citation anchors injected before conversion
// survive rendering.
var md = goldmark.New(
	goldmark.WithRendererOptions(htmlrenderer.WithUnsafe()),
)

// Transcript renders a conversation as a self-contained HTML page.
// Assistant messages go through markdown rendering with citations turned
// into anchors carrying data-path and data-line attributes; user messages
// are shown verbatim.
func Transcript(conversationID string, messages []conversation.Message) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", template.HTMLEscapeString(conversationID))
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", template.HTMLEscapeString(conversationID))

	for _, m := range messages {
		fmt.Fprintf(&b, "<section class=\"message %s\">\n", m.Role)
		fmt.Fprintf(&b, "<h2>%s</h2>\n", m.Role)
		switch m.Role {
		case conversation.RoleAssistant:
			rendered, err := assistantHTML(m.RawContent)
			if err != nil {
				return nil, fmt.Errorf("render message %s: %w", m.ID, err)
			}
			b.WriteString(rendered)
		default:
			fmt.Fprintf(&b, "<p>%s</p>\n", template.HTMLEscapeString(m.RawContent))
		}
		b.WriteString("</section>\n")
	}

	b.WriteString("</body>\n</html>\n")
	return b.Bytes(), nil
}

func assistantHTML(raw string) (string, error) {
	source := citationsToAnchors(raw)
	var out bytes.Buffer
	if err := md.Convert([]byte(source), &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

// citationsToAnchors rewrites citation links as explicit anchors so the
// markdown renderer does not mistake them for ordinary links and drop the
// line component.
func citationsToAnchors(raw string) string {
	parsed := citation.ParseMessage(raw)
	lines := make([]string, 0, len(parsed))
	for _, pl := range parsed {
		var sb strings.Builder
		for _, span := range pl.Spans {
			if span.Citation == nil {
				sb.WriteString(span.Text)
				continue
			}
			sb.WriteString(anchor(*span.Citation))
		}
		lines = append(lines, sb.String())
	}
	return strings.Join(lines, "\n")
}

func anchor(c citation.Citation) string {
	var attrs strings.Builder
	attrs.WriteString(` data-path="` + template.HTMLEscapeString(c.Path) + `"`)
	if c.Line > 0 {
		attrs.WriteString(` data-line="` + strconv.Itoa(c.Line) + `"`)
	}
	return "<a href=\"#\"" + attrs.String() + ">" + template.HTMLEscapeString(c.Label) + "</a>"
}
