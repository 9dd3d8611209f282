package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"worklens/internal/catalog"
	"worklens/internal/compose"
	"worklens/internal/conversation"
	"worklens/internal/generate"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := conversation.New(filepath.Join(t.TempDir(), "conversations.json"))
	t.Cleanup(func() { _ = store.Close() })
	gateway := generate.NewGateway(nil, compose.DefaultCaps, zap.NewNop())
	return NewService(gateway, store, compose.DefaultCaps, zap.NewNop())
}

func postGenerate(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/generate", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestGenerateRejectsMalformedRequests(t *testing.T) {
	srv := httptest.NewServer(BuildMux(newTestService(t)))
	defer srv.Close()

	cases := []struct {
		name string
		body string
	}{
		{"files not an array", `{"files": "nope", "prompt": "hello"}`},
		{"prompt not a string", `{"files": [], "prompt": 42}`},
		{"files missing", `{"prompt": "hello"}`},
		{"prompt missing", `{"files": []}`},
		{"files null", `{"files": null, "prompt": "hello"}`},
		{"prompt null", `{"files": [], "prompt": null}`},
		{"not json", `{{{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postGenerate(t, srv, tc.body)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body errorBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.NotEmpty(t, body.Error)
		})
	}
}

func TestGenerateReturnsContractFields(t *testing.T) {
	srv := httptest.NewServer(BuildMux(newTestService(t)))
	defer srv.Close()

	req := `{"files": [{"filename": "src/App.tsx", "content": "export default function App() {}\n"}], "prompt": "what is here"}`
	resp := postGenerate(t, srv, req)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body generateBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.AIResponse)
	require.True(t, body.LLMStatus.Fallback)
	require.False(t, body.LLMStatus.Configured)
	require.Equal(t, 1, body.Metadata.FilesProcessed)
	require.NotEmpty(t, body.Metadata.Timestamp)

	require.Contains(t, body.DirectoryTree, "src")
	src := body.DirectoryTree["src"]
	require.Equal(t, catalog.KindDirectory, src.Kind)
	require.Contains(t, src.Children, "App.tsx")
}

func TestGenerateCachesIdenticalRequests(t *testing.T) {
	svc := newTestService(t)
	srv := httptest.NewServer(BuildMux(svc))
	defer srv.Close()

	req := `{"files": [{"filename": "a.ts", "content": "const a = 1;"}], "prompt": "same"}`
	first := postGenerate(t, srv, req)
	var firstBody generateBody
	require.NoError(t, json.NewDecoder(first.Body).Decode(&firstBody))
	first.Body.Close()

	second := postGenerate(t, srv, req)
	var secondBody generateBody
	require.NoError(t, json.NewDecoder(second.Body).Decode(&secondBody))
	second.Body.Close()

	require.Equal(t, firstBody.AIResponse, secondBody.AIResponse)
	require.Equal(t, 1, svc.cache.Len())
}

func TestGenerateMethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(BuildMux(newTestService(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/generate")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthReportsBackendAndLLM(t *testing.T) {
	srv := httptest.NewServer(BuildMux(newTestService(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body healthBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "file", body.StoreBackend)
	require.False(t, body.LLM.Configured)
}

func TestConversationListingAndExport(t *testing.T) {
	svc := newTestService(t)
	srv := httptest.NewServer(BuildMux(svc))
	defer srv.Close()

	convID := conversation.NewConversationID()
	require.NoError(t, svc.store.Append(convID, conversation.NewMessage(conversation.RoleUser, "hi")))
	require.NoError(t, svc.store.Append(convID, conversation.NewMessage(conversation.RoleAssistant, "See [App.tsx](src/App.tsx:3).")))

	resp, err := http.Get(srv.URL + "/api/conversations")
	require.NoError(t, err)
	var listing conversationsBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	resp.Body.Close()
	require.Contains(t, listing.Conversations, convID)

	resp, err = http.Get(srv.URL + "/api/conversations/" + convID + "/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `data-path="src/App.tsx"`)
}

func TestExportUnknownConversation(t *testing.T) {
	srv := httptest.NewServer(BuildMux(newTestService(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/conversations/conv-missing/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportArchiveNotConfigured(t *testing.T) {
	svc := newTestService(t)
	srv := httptest.NewServer(BuildMux(svc))
	defer srv.Close()

	convID := conversation.NewConversationID()
	require.NoError(t, svc.store.Append(convID, conversation.NewMessage(conversation.RoleUser, "hi")))

	resp, err := http.Post(srv.URL+"/api/conversations/"+convID+"/export", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRequestKeyDistinguishesBoundaries(t *testing.T) {
	// Path and content must not collide across the separator.
	a := requestKey([]catalog.SourceFile{{Path: "ab", Content: "c"}}, "p")
	b := requestKey([]catalog.SourceFile{{Path: "a", Content: "bc"}}, "p")
	require.NotEqual(t, a, b)
}
