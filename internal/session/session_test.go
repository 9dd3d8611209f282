package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"worklens/internal/catalog"
	"worklens/internal/conversation"
	"worklens/internal/generate"
)

type scriptedBackend struct {
	mu      sync.Mutex
	calls   int
	outcome generate.Outcome
	err     error
}

func (b *scriptedBackend) Generate(_ context.Context, _ []catalog.SourceFile, _ string) (generate.Outcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return b.outcome, b.err
}

func newTestSession(t *testing.T, backend Backend) *Session {
	t.Helper()
	store := conversation.New(filepath.Join(t.TempDir(), "conversations.json"))
	t.Cleanup(func() { _ = store.Close() })
	s, err := New(backend, store, nil)
	require.NoError(t, err)
	return s
}

func TestTurn_RendersAssistantMessage(t *testing.T) {
	backend := &scriptedBackend{outcome: generate.Outcome{Text: "See [App.tsx](src/App.tsx:3)."}}
	s := newTestSession(t, backend)

	out := s.Dispatch(context.Background(), UserMessage{Text: "summarize"})
	require.Len(t, out, 1)

	am, ok := out[0].(AssistantMessage)
	require.True(t, ok, "expected AssistantMessage, got %T", out[0])
	require.False(t, am.Fallback)
	require.Len(t, am.Lines, 1)
	require.Len(t, am.Lines[0].Jumps, 1)
	require.Equal(t, "src/App.tsx", am.Lines[0].Jumps[0].Path)
}

func TestTurn_TransportErrorSurfacesOnce(t *testing.T) {
	backend := &scriptedBackend{err: &TransportError{Message: "connection refused"}}
	s := newTestSession(t, backend)

	out := s.Dispatch(context.Background(), UserMessage{Text: "hello"})
	require.Len(t, out, 1)
	ef, ok := out[0].(ErrorFrame)
	require.True(t, ok)
	require.Equal(t, "transport", ef.Code)
}

func TestTurn_ConcurrentPromptsQueue(t *testing.T) {
	backend := &scriptedBackend{outcome: generate.Outcome{Text: "reply"}}
	s := newTestSession(t, backend)

	const prompts = 6
	var wg sync.WaitGroup
	for i := 0; i < prompts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := s.Dispatch(context.Background(), UserMessage{Text: "p"})
			require.Len(t, out, 1)
		}()
	}
	wg.Wait()

	require.Equal(t, prompts, backend.calls, "every queued prompt must run")

	// user+assistant pair per turn, in order, none interleaved away
	msgs, err := sessionMessages(s)
	require.NoError(t, err)
	require.Len(t, msgs, prompts*2)
}

func TestHistory_ReplaysThroughParser(t *testing.T) {
	backend := &scriptedBackend{outcome: generate.Outcome{Text: "Check [util](pkg/util.go:7)."}}
	s := newTestSession(t, backend)

	s.Dispatch(context.Background(), UserMessage{Text: "look at [brackets](that are mine:)"})
	out := s.Dispatch(context.Background(), LoadHistory{})
	require.Len(t, out, 1)

	h, ok := out[0].(History)
	require.True(t, ok)
	require.Len(t, h.Entries, 2)

	user := h.Entries[0]
	require.Equal(t, "user", user.Role)
	require.Nil(t, user.Lines, "user messages are never parsed for citations")

	assistant := h.Entries[1]
	require.Equal(t, "assistant", assistant.Role)
	require.NotEmpty(t, assistant.Lines)
	require.Len(t, assistant.Lines[0].Jumps, 1)
}

func TestOpenCitation_ResolvesThenFallsBackThenNotices(t *testing.T) {
	backend := &scriptedBackend{outcome: generate.Outcome{Text: "x"}}
	s := newTestSession(t, backend)
	s.Dispatch(context.Background(), WorkspaceFiles{
		Root:  "/work",
		Files: []catalog.SourceFile{{Path: "src/App.tsx", Content: "x"}},
	})

	out := s.Dispatch(context.Background(), OpenCitation{Path: "App.tsx", Line: 10})
	require.Len(t, out, 1)
	ot, ok := out[0].(OpenTarget)
	require.True(t, ok)
	require.NotEmpty(t, ot.Token)
	require.Equal(t, "/work/src/App.tsx", ot.Path)
	require.Equal(t, 9, ot.Line)
	require.Equal(t, 0, ot.Column)

	// primary open failed: retry once with the verbatim path
	out = s.Dispatch(context.Background(), OpenTargetResult{Token: ot.Token, OK: false, Path: ot.Path})
	require.Len(t, out, 1)
	retry, ok := out[0].(OpenTarget)
	require.True(t, ok)
	require.Equal(t, ot.Token, retry.Token)
	require.Equal(t, "App.tsx", retry.Path)

	// verbatim open failed too: a notice, not an error
	out = s.Dispatch(context.Background(), OpenTargetResult{Token: retry.Token, OK: false, Path: retry.Path})
	require.Len(t, out, 1)
	n, ok := out[0].(Notice)
	require.True(t, ok)
	require.Contains(t, n.Message, "App.tsx")
}

func TestOpenCitation_ConcurrentOpensSamePrimaryKeepDistinctFallbacks(t *testing.T) {
	backend := &scriptedBackend{outcome: generate.Outcome{Text: "x"}}
	s := newTestSession(t, backend)
	s.Dispatch(context.Background(), WorkspaceFiles{
		Root:  "/work",
		Files: []catalog.SourceFile{{Path: "src/App.tsx", Content: "x"}},
	})

	first := s.Dispatch(context.Background(), OpenCitation{Path: "App.tsx", Line: 3})[0].(OpenTarget)
	second := s.Dispatch(context.Background(), OpenCitation{Path: "App.tsx", Line: 8})[0].(OpenTarget)
	require.NotEqual(t, first.Token, second.Token)
	require.Equal(t, first.Path, second.Path, "both resolve to the same primary")

	// each failure retries its own request; the second open's entry must
	// not have clobbered the first's fallback
	out := s.Dispatch(context.Background(), OpenTargetResult{Token: first.Token, OK: false, Path: first.Path})
	require.Len(t, out, 1)
	require.Equal(t, first.Token, out[0].(OpenTarget).Token)

	out = s.Dispatch(context.Background(), OpenTargetResult{Token: second.Token, OK: false, Path: second.Path})
	require.Len(t, out, 1)
	require.Equal(t, second.Token, out[0].(OpenTarget).Token)
}

func TestHistory_SurvivesReconnect(t *testing.T) {
	backend := &scriptedBackend{outcome: generate.Outcome{Text: "Check [util](pkg/util.go:7)."}}
	store := conversation.New(filepath.Join(t.TempDir(), "conversations.json"))
	t.Cleanup(func() { _ = store.Close() })

	first, err := New(backend, store, nil)
	require.NoError(t, err)
	first.Dispatch(context.Background(), UserMessage{Text: "hello"})
	h := first.Dispatch(context.Background(), LoadHistory{})[0].(History)
	require.Len(t, h.Entries, 2)

	// a new session over the same store, as after a panel restart
	second, err := New(backend, store, nil)
	require.NoError(t, err)
	replayed := second.Dispatch(context.Background(), LoadHistory{})[0].(History)
	require.Equal(t, h.ConversationID, replayed.ConversationID)
	require.Len(t, replayed.Entries, 2)
	require.Equal(t, "hello", replayed.Entries[0].Raw)
	require.Equal(t, h.ConversationID, second.ConversationID())
}

func TestHistory_ExplicitConversationIDWins(t *testing.T) {
	backend := &scriptedBackend{outcome: generate.Outcome{Text: "x"}}
	store := conversation.New(filepath.Join(t.TempDir(), "conversations.json"))
	t.Cleanup(func() { _ = store.Close() })

	first, err := New(backend, store, nil)
	require.NoError(t, err)
	first.Dispatch(context.Background(), UserMessage{Text: "older"})
	older := first.ConversationID()

	second, err := New(backend, store, nil)
	require.NoError(t, err)
	second.Dispatch(context.Background(), UserMessage{Text: "newer"})

	h := second.Dispatch(context.Background(), LoadHistory{ConversationID: older})[0].(History)
	require.Equal(t, older, h.ConversationID)
	require.Equal(t, "older", h.Entries[0].Raw)
	require.Equal(t, older, second.ConversationID())
}

func TestWorkspacePaths_CollectsFromDisk(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "App.tsx"), []byte("export default function App() {}\n"), 0o644))

	backend := &scriptedBackend{outcome: generate.Outcome{Text: "x"}}
	s := newTestSession(t, backend)

	out := s.Dispatch(context.Background(), WorkspacePaths{
		Root:  root,
		Paths: []string{"src/App.tsx", "src/missing.ts", "../escape.ts"},
	})
	require.Empty(t, out)

	s.mu.Lock()
	files := s.files
	s.mu.Unlock()
	require.Len(t, files, 1, "missing and escaping paths are skipped")
	require.Equal(t, "src/App.tsx", files[0].Path)
	require.Contains(t, files[0].Content, "export default")

	// collected files resolve for navigation like host-shipped ones
	ot := s.Dispatch(context.Background(), OpenCitation{Path: "App.tsx", Line: 1})[0].(OpenTarget)
	require.Equal(t, root+"/src/App.tsx", ot.Path)
}

func TestWorkspacePaths_BadRootIsErrorFrame(t *testing.T) {
	backend := &scriptedBackend{outcome: generate.Outcome{Text: "x"}}
	s := newTestSession(t, backend)

	out := s.Dispatch(context.Background(), WorkspacePaths{Root: "", Paths: []string{"a.ts"}})
	require.Len(t, out, 1)
	frame, ok := out[0].(ErrorFrame)
	require.True(t, ok)
	require.Equal(t, "workspace", frame.Code)
}

func TestClear_StartsFreshConversation(t *testing.T) {
	backend := &scriptedBackend{outcome: generate.Outcome{Text: "x"}}
	s := newTestSession(t, backend)

	s.Dispatch(context.Background(), UserMessage{Text: "first"})
	before := s.ConversationID()

	out := s.Dispatch(context.Background(), ClearConversation{})
	require.Len(t, out, 1)
	require.IsType(t, Notice{}, out[0])
	require.NotEqual(t, before, s.ConversationID())

	h := s.Dispatch(context.Background(), LoadHistory{})[0].(History)
	require.Empty(t, h.Entries)
}

func TestCodec_RoundTripAndUnknownType(t *testing.T) {
	env, err := EncodeOutbound(Notice{Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, "notice", env.Type)

	in, err := DecodeInbound(Envelope{Type: "user_message", Payload: json.RawMessage(`{"text":"hello"}`)})
	require.NoError(t, err)
	um, ok := in.(UserMessage)
	require.True(t, ok)
	require.Equal(t, "hello", um.Text)

	_, err = DecodeInbound(Envelope{Type: "mystery"})
	require.Error(t, err, "unknown types must be rejected, not ignored")
}

func sessionMessages(s *Session) ([]conversation.Message, error) {
	return s.store.Messages(s.ConversationID())
}
