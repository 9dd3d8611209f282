// Package session holds the per-panel state machine. One Session exists per
// open panel, constructed with its dependencies injected; there is no
// ambient global state. Turns are queued: a prompt submitted while another
// is in flight waits for it rather than racing it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"worklens/internal/catalog"
	"worklens/internal/citation"
	"worklens/internal/compose"
	"worklens/internal/conversation"
	"worklens/internal/navigate"
	"worklens/internal/render"
)

// parseCacheSize bounds the per-session cache of parsed assistant messages,
// keyed by message ID. Parsing is cheap; the cache mostly spares history
// reloads from re-parsing long conversations.
const parseCacheSize = 256

// Session wires one panel to the store, resolver, and generation backend.
type Session struct {
	conversationID string
	backend        Backend
	store          *conversation.Store
	log            *zap.Logger

	// turnMu serializes prompt turns; this is the queue policy. Waiters run
	// in lock-acquisition order.
	turnMu sync.Mutex

	mu       sync.Mutex
	root     string
	files    []catalog.SourceFile
	resolver *navigate.Resolver
	pending  map[string]pendingOpen
	// active flips once a turn or clear has run; a fresh session may adopt
	// a stored conversation on history load, an active one never switches
	// implicitly.
	active bool

	parsed *lru.Cache[string, []citation.ParsedLine]
}

// pendingOpen remembers an in-flight open request so a failed attempt can
// fall back to the verbatim path exactly once.
type pendingOpen struct {
	requested string
	fallback  *navigate.Target
}

// New builds a session for one panel.
func New(backend Backend, store *conversation.Store, log *zap.Logger) (*Session, error) {
	if backend == nil {
		return nil, errors.New("session: backend is required")
	}
	if store == nil {
		return nil, errors.New("session: store is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	parsed, err := lru.New[string, []citation.ParsedLine](parseCacheSize)
	if err != nil {
		return nil, err
	}
	return &Session{
		conversationID: conversation.NewConversationID(),
		backend:        backend,
		store:          store,
		log:            log,
		resolver:       navigate.NewResolver("", nil),
		pending:        make(map[string]pendingOpen),
		parsed:         parsed,
	}, nil
}

// ConversationID returns the active conversation's ID.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Dispatch handles one inbound frame and returns the outbound frames it
// produced. The type switch is exhaustive over the sealed Inbound union.
func (s *Session) Dispatch(ctx context.Context, msg Inbound) []Outbound {
	switch m := msg.(type) {
	case UserMessage:
		return s.handleTurn(ctx, m.Text)
	case WorkspaceFiles:
		s.setWorkspace(m.Root, m.Files)
		return nil
	case WorkspacePaths:
		return s.handleWorkspacePaths(ctx, m)
	case OpenCitation:
		return s.handleOpenCitation(m)
	case OpenTargetResult:
		return s.handleOpenResult(m)
	case LoadHistory:
		return s.handleLoadHistory(m)
	case ClearConversation:
		return s.handleClear()
	default:
		return []Outbound{ErrorFrame{
			Code:    "protocol",
			Message: fmt.Sprintf("unhandled message type %T", msg),
		}}
	}
}

// handleWorkspacePaths collects the listed files from disk, confined to the
// root, and installs them as the workspace snapshot.
func (s *Session) handleWorkspacePaths(ctx context.Context, m WorkspacePaths) []Outbound {
	files, err := compose.Collect(ctx, m.Root, m.Paths, compose.DefaultCaps)
	if err != nil {
		return []Outbound{ErrorFrame{Code: "workspace", Message: err.Error()}}
	}
	s.setWorkspace(m.Root, files)
	return nil
}

func (s *Session) setWorkspace(root string, files []catalog.SourceFile) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		if f.Path != "" {
			paths = append(paths, f.Path)
		}
	}
	s.mu.Lock()
	s.root = root
	s.files = files
	s.resolver = navigate.NewResolver(root, paths)
	s.mu.Unlock()
}

// handleTurn runs one prompt turn end to end: persist the user message, ask
// the backend, persist and render the assistant message. Only a transport
// failure surfaces as an error frame; everything below it degrades to
// fallback text inside the backend.
func (s *Session) handleTurn(ctx context.Context, text string) []Outbound {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.mu.Lock()
	conv := s.conversationID
	files := s.files
	s.active = true
	s.mu.Unlock()

	if err := s.store.Append(conv, conversation.NewMessage(conversation.RoleUser, text)); err != nil {
		s.log.Error("failed to persist user message", zap.Error(err))
	}

	outcome, err := s.backend.Generate(ctx, files, text)
	if err != nil {
		var terr *TransportError
		if errors.As(err, &terr) {
			return []Outbound{ErrorFrame{Code: "transport", Message: terr.Message}}
		}
		return []Outbound{ErrorFrame{Code: "internal", Message: err.Error()}}
	}

	msg := conversation.NewMessage(conversation.RoleAssistant, outcome.Text)
	if err := s.store.Append(conv, msg); err != nil {
		s.log.Error("failed to persist assistant message", zap.Error(err))
	}

	return []Outbound{AssistantMessage{
		Raw:      outcome.Text,
		Fallback: outcome.Fallback,
		Lines:    render.Lines(s.parseCached(msg.ID, outcome.Text)),
	}}
}

func (s *Session) handleOpenCitation(m OpenCitation) []Outbound {
	s.mu.Lock()
	resolver := s.resolver
	s.mu.Unlock()

	primary, fallback := resolver.Resolve(m.Path, m.Line)

	token := ulid.Make().String()
	s.mu.Lock()
	s.pending[token] = pendingOpen{requested: m.Path, fallback: fallback}
	s.mu.Unlock()

	return []Outbound{openTargetFrame(token, primary)}
}

func (s *Session) handleOpenResult(m OpenTargetResult) []Outbound {
	s.mu.Lock()
	p, ok := s.pending[m.Token]
	delete(s.pending, m.Token)
	var next *navigate.Target
	if ok && !m.OK && p.fallback != nil {
		next = p.fallback
		// the fallback attempt keeps the token, so its result routes back
		// to the same request
		s.pending[m.Token] = pendingOpen{requested: p.requested}
	}
	s.mu.Unlock()

	if !ok || m.OK {
		return nil
	}
	if next != nil {
		return []Outbound{openTargetFrame(m.Token, *next)}
	}
	// both attempts failed; non-fatal notice, conversation state intact
	return []Outbound{Notice{Message: "Unable to open " + p.requested}}
}

func openTargetFrame(token string, t navigate.Target) OpenTarget {
	return OpenTarget{Token: token, Path: t.Path, Line: t.Line, Column: t.Column}
}

func (s *Session) handleLoadHistory(m LoadHistory) []Outbound {
	conv := s.resumeConversation(m.ConversationID)

	msgs, err := s.store.Messages(conv)
	if err != nil {
		return []Outbound{ErrorFrame{Code: "storage", Message: err.Error()}}
	}

	entries := make([]TranscriptEntry, 0, len(msgs))
	for _, m := range msgs {
		entry := TranscriptEntry{Role: string(m.Role), Raw: m.RawContent}
		if m.Role == conversation.RoleAssistant {
			// user messages are echoed input and never parsed for citations
			entry.Lines = render.Lines(s.parseCached(m.ID, m.RawContent))
		}
		entries = append(entries, entry)
	}
	return []Outbound{History{ConversationID: conv, Entries: entries}}
}

// resumeConversation picks the conversation a history load addresses. An
// explicit ID wins; otherwise a session that has not run a turn or clear
// yet adopts the most recent stored conversation, so reconnecting after a
// panel restart replays the prior history instead of an empty transcript.
func (s *Session) resumeConversation(requested string) string {
	s.mu.Lock()
	conv := s.conversationID
	active := s.active
	s.mu.Unlock()

	switch {
	case requested != "":
		conv = requested
	case !active:
		if ids, err := s.store.Conversations(); err == nil && len(ids) > 0 {
			// conversation IDs are ULID-suffixed, so sorted order is
			// chronological and the last one is the newest
			conv = ids[len(ids)-1]
		}
	}

	s.mu.Lock()
	s.conversationID = conv
	s.mu.Unlock()
	return conv
}

func (s *Session) handleClear() []Outbound {
	s.mu.Lock()
	old := s.conversationID
	s.conversationID = conversation.NewConversationID()
	s.active = true
	s.mu.Unlock()

	if err := s.store.Clear(old); err != nil {
		return []Outbound{ErrorFrame{Code: "storage", Message: err.Error()}}
	}
	s.parsed.Purge()
	return []Outbound{Notice{Message: "Started a new conversation"}}
}

func (s *Session) parseCached(messageID, raw string) []citation.ParsedLine {
	if cached, ok := s.parsed.Get(messageID); ok {
		return cached
	}
	parsed := citation.ParseMessage(raw)
	s.parsed.Add(messageID, parsed)
	return parsed
}
