package export

import (
	"testing"

	"github.com/stretchr/testify/require"

	"worklens/internal/conversation"
)

func TestTranscriptRendersCitationsAsAnchors(t *testing.T) {
	msgs := []conversation.Message{
		conversation.NewMessage(conversation.RoleUser, "where is the entry point?"),
		conversation.NewMessage(conversation.RoleAssistant, "See [App.tsx](src/App.tsx:3) and [README](README.md) for details."),
	}

	out, err := Transcript("conv-test", msgs)
	require.NoError(t, err)
	html := string(out)

	require.Contains(t, html, `data-path="src/App.tsx"`)
	require.Contains(t, html, `data-line="3"`)
	require.Contains(t, html, ">App.tsx</a>")
	require.Contains(t, html, `data-path="README.md"`)
	require.NotContains(t, html, `data-line="0"`)
	require.Contains(t, html, "where is the entry point?")
}

func TestTranscriptEscapesUserContent(t *testing.T) {
	msgs := []conversation.Message{
		conversation.NewMessage(conversation.RoleUser, "<script>alert(1)</script>"),
	}

	out, err := Transcript("conv-esc", msgs)
	require.NoError(t, err)
	html := string(out)

	require.NotContains(t, html, "<script>alert(1)</script>")
	require.Contains(t, html, "&lt;script&gt;")
}

func TestTranscriptLeavesMalformedCitationsVerbatim(t *testing.T) {
	msgs := []conversation.Message{
		conversation.NewMessage(conversation.RoleAssistant, "Broken [link(path.ts:3) stays literal."),
	}

	out, err := Transcript("conv-mal", msgs)
	require.NoError(t, err)
	require.Contains(t, string(out), "Broken [link(path.ts:3) stays literal.")
}

func TestTranscriptMarkdownStructureSurvives(t *testing.T) {
	msgs := []conversation.Message{
		conversation.NewMessage(conversation.RoleAssistant, "## Summary\n\n- first point\n- [main.ts](src/main.ts:1)"),
	}

	out, err := Transcript("conv-md", msgs)
	require.NoError(t, err)
	html := string(out)

	require.Contains(t, html, "<h2>Summary</h2>")
	require.Contains(t, html, "<li>first point</li>")
	require.Contains(t, html, `data-path="src/main.ts"`)
}
