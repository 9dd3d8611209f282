package server

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"worklens/internal/archive"
	"worklens/internal/catalog"
	"worklens/internal/compose"
	"worklens/internal/conversation"
	"worklens/internal/export"
	"worklens/internal/generate"
)

const (
	responseCacheSize = 128
	responseCacheTTL  = 5 * time.Minute
)

// Service implements the gateway HTTP surface. One instance serves all
// panels; per-panel state lives in sessions created by the websocket
// handler.
type Service struct {
	gateway *generate.Gateway
	store   *conversation.Store
	caps    compose.Caps
	log     *zap.Logger
	started time.Time

	// cache memoizes outcomes by request hash so an identical resubmitted
	// turn does not re-spend the backend. Fallback responses are
	// deterministic, so caching them is safe too.
	cache *expirable.LRU[string, generate.Outcome]

	archive *archive.S3Store

	// upstreamURL, when set, points panel sessions at a remote gateway's
	// wire contract instead of the in-process generation gateway.
	upstreamURL string
}

func NewService(gateway *generate.Gateway, store *conversation.Store, caps compose.Caps, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		gateway: gateway,
		store:   store,
		caps:    caps,
		log:     log,
		started: time.Now(),
		cache:   expirable.NewLRU[string, generate.Outcome](responseCacheSize, nil, responseCacheTTL),
	}
}

// EnableArchive turns on transcript archiving for the export endpoint.
func (s *Service) EnableArchive(store *archive.S3Store) {
	s.archive = store
}

// UseUpstream routes panel turns to a remote gateway at baseURL.
func (s *Service) UseUpstream(baseURL string) {
	s.upstreamURL = baseURL
}

// BuildMux registers all gateway routes.
func BuildMux(s *Service) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/conversations", s.handleConversations)
	mux.HandleFunc("/api/conversations/", s.handleConversationExport)
	mux.HandleFunc("/ws/panel", s.handlePanelWS)
	return mux
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type generateMetadata struct {
	FilesProcessed  int    `json:"filesProcessed"`
	TotalCharacters int    `json:"totalCharacters"`
	Timestamp       string `json:"timestamp"`
}

type llmStatusBody struct {
	Configured bool   `json:"configured"`
	Model      string `json:"model,omitempty"`
	Fallback   bool   `json:"fallback"`
}

type generateBody struct {
	Message       string                    `json:"message"`
	AIResponse    string                    `json:"aiResponse"`
	DirectoryTree map[string]*catalog.Entry `json:"directoryTree"`
	LLMStatus     llmStatusBody             `json:"llmStatus"`
	Metadata      generateMetadata          `json:"metadata"`
}

// handleGenerate implements the wire contract: validation failures are
// rejected at this boundary with a 400 and never reach the core.
func (s *Service) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", "")
		return
	}

	// json.Unmarshal treats null as a no-op for both slices and strings, so
	// the null token is rejected before decoding.
	var files []catalog.SourceFile
	if rawFiles, ok := raw["files"]; !ok || isJSONNull(rawFiles) {
		writeError(w, http.StatusBadRequest, "files is required", "files must be an array")
		return
	} else if err := json.Unmarshal(rawFiles, &files); err != nil {
		writeError(w, http.StatusBadRequest, "files must be an array", "")
		return
	}

	var prompt string
	if rawPrompt, ok := raw["prompt"]; !ok || isJSONNull(rawPrompt) {
		writeError(w, http.StatusBadRequest, "prompt is required", "prompt must be a string")
		return
	} else if err := json.Unmarshal(rawPrompt, &prompt); err != nil {
		writeError(w, http.StatusBadRequest, "prompt must be a string", "")
		return
	}

	files = s.caps.Apply(files)

	key := requestKey(files, prompt)
	outcome, cached := s.cache.Get(key)
	if !cached {
		outcome = s.gateway.Generate(r.Context(), files, prompt)
		s.cache.Add(key, outcome)
	}

	totalChars := 0
	for _, f := range files {
		totalChars += utf8.RuneCountInString(f.Content)
	}

	status := s.gateway.Status()
	writeJSON(w, http.StatusOK, generateBody{
		Message:       "ok",
		AIResponse:    outcome.Text,
		DirectoryTree: catalog.Build(files),
		LLMStatus: llmStatusBody{
			Configured: status.Configured,
			Model:      outcome.Model,
			Fallback:   outcome.Fallback,
		},
		Metadata: generateMetadata{
			FilesProcessed:  len(files),
			TotalCharacters: totalChars,
			Timestamp:       time.Now().UTC().Format(time.RFC3339),
		},
	})
}

type healthBody struct {
	Status        string          `json:"status"`
	LLM           generate.Status `json:"llm"`
	StoreBackend  string          `json:"storeBackend"`
	UptimeSeconds int64           `json:"uptimeSeconds"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, healthBody{
		Status:        "ok",
		LLM:           s.gateway.Status(),
		StoreBackend:  s.store.Kind(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func requestKey(files []catalog.SourceFile, prompt string) string {
	h := sha256.New()
	for _, f := range files {
		h.Write([]byte(f.Path))
		h.Write([]byte{0})
		h.Write([]byte(f.Content))
		h.Write([]byte{0})
	}
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, errMsg, detail string) {
	writeJSON(w, status, errorBody{Error: errMsg, Message: detail})
}

type conversationsBody struct {
	Conversations []string `json:"conversations"`
}

func (s *Service) handleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	ids, err := s.store.Conversations()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing failed", err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, conversationsBody{Conversations: ids})
}

type exportBody struct {
	ConversationID string `json:"conversationId"`
	ArchiveKey     string `json:"archiveKey,omitempty"`
}

// handleConversationExport renders a conversation transcript to HTML.
// POST archives it when an archive store is configured; GET returns the
// HTML directly.
func (s *Service) handleConversationExport(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	id, op, found := strings.Cut(rest, "/")
	if !found || op != "export" || id == "" {
		writeError(w, http.StatusNotFound, "not found", "")
		return
	}

	msgs, err := s.store.Messages(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load failed", err.Error())
		return
	}
	if len(msgs) == 0 {
		writeError(w, http.StatusNotFound, "unknown conversation", id)
		return
	}

	html, err := export.Transcript(id, msgs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed", err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(html)
	case http.MethodPost:
		if s.archive == nil {
			writeError(w, http.StatusConflict, "archive not configured", "")
			return
		}
		key, err := s.archive.PutTranscript(r.Context(), id, html)
		if err != nil {
			s.log.Error("transcript archive failed", zap.String("conversation", id), zap.Error(err))
			writeError(w, http.StatusBadGateway, "archive failed", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, exportBody{ConversationID: id, ArchiveKey: key})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}
