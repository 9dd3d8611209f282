package session

import (
	"encoding/json"
	"fmt"

	"worklens/internal/catalog"
	"worklens/internal/render"
)

// The panel protocol is a closed tagged union per direction. Both unions are
// sealed interfaces with an explicit codec table, so an unknown inbound type
// is a protocol error frame rather than a silent no-op, and adding an
// outbound variant without encoding support fails loudly.

// Inbound is a message from the panel/editor host to the session.
type Inbound interface{ isInbound() }

// UserMessage submits one prompt turn.
type UserMessage struct {
	Text string `json:"text"`
}

// WorkspaceFiles replaces the session's snapshot of the workspace: the first
// root and the host's file records in enumeration order.
type WorkspaceFiles struct {
	Root  string               `json:"root"`
	Files []catalog.SourceFile `json:"files"`
}

// WorkspacePaths replaces the workspace snapshot by path list: the gateway
// reads the contents itself, confined to the root, instead of the host
// shipping every file body over the socket.
type WorkspacePaths struct {
	Root  string   `json:"root"`
	Paths []string `json:"paths"`
}

// OpenCitation is a citation activation: the user clicked an inline button
// or jump affordance.
type OpenCitation struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
}

// OpenTargetResult reports whether the host managed to show a requested
// target. Token echoes the open_target frame it answers.
type OpenTargetResult struct {
	Token string `json:"token"`
	OK    bool   `json:"ok"`
	Path  string `json:"path"`
}

// LoadHistory asks for the stored conversation replayed through the parser.
// With a ConversationID the session resumes that conversation; without one a
// fresh session adopts the most recent stored conversation, so history
// survives a panel restart.
type LoadHistory struct {
	ConversationID string `json:"conversationId,omitempty"`
}

// ClearConversation starts a new conversation, dropping stored history.
type ClearConversation struct{}

func (UserMessage) isInbound()       {}
func (WorkspaceFiles) isInbound()    {}
func (WorkspacePaths) isInbound()    {}
func (OpenCitation) isInbound()      {}
func (OpenTargetResult) isInbound()  {}
func (LoadHistory) isInbound()       {}
func (ClearConversation) isInbound() {}

// Outbound is a message from the session to the panel/editor host.
type Outbound interface{ isOutbound() }

// AssistantMessage carries one assistant turn: the raw pre-parse text (what
// the store keeps) and its rendered lines.
type AssistantMessage struct {
	Raw      string        `json:"raw"`
	Fallback bool          `json:"fallback"`
	Lines    []render.Line `json:"lines"`
}

// TranscriptEntry is one replayed message; assistant entries carry rendered
// lines re-derived from the raw text.
type TranscriptEntry struct {
	Role  string        `json:"role"`
	Raw   string        `json:"raw"`
	Lines []render.Line `json:"lines,omitempty"`
}

// History replays the stored conversation in order.
type History struct {
	ConversationID string            `json:"conversationId"`
	Entries        []TranscriptEntry `json:"entries"`
}

// OpenTarget asks the host to show a document, with a zero-based position
// when Line >= 0. Token identifies the request; the host echoes it in its
// open_target_result so concurrent opens resolving to the same path cannot
// answer each other.
type OpenTarget struct {
	Token  string `json:"token"`
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Notice is a non-fatal, user-visible message.
type Notice struct {
	Message string `json:"message"`
}

// ErrorFrame is a turn-level failure the panel shows inline. Only transport
// failures produce one; generation failures degrade to fallback text.
type ErrorFrame struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (AssistantMessage) isOutbound() {}
func (History) isOutbound()          {}
func (OpenTarget) isOutbound()       {}
func (Notice) isOutbound()           {}
func (ErrorFrame) isOutbound()       {}

// Envelope is the wire shape of a protocol frame in either direction.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var inboundDecoders = map[string]func(json.RawMessage) (Inbound, error){
	"user_message":       decodeInto[UserMessage],
	"workspace_files":    decodeInto[WorkspaceFiles],
	"workspace_paths":    decodeInto[WorkspacePaths],
	"open_citation":      decodeInto[OpenCitation],
	"open_target_result": decodeInto[OpenTargetResult],
	"load_history":       decodeInto[LoadHistory],
	"clear_conversation": decodeInto[ClearConversation],
}

func decodeInto[T Inbound](payload json.RawMessage) (Inbound, error) {
	var msg T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// DecodeInbound parses one panel frame. Unknown types are an error the
// caller converts into a protocol ErrorFrame.
func DecodeInbound(env Envelope) (Inbound, error) {
	decode, ok := inboundDecoders[env.Type]
	if !ok {
		return nil, fmt.Errorf("session: unknown inbound message type %q", env.Type)
	}
	return decode(env.Payload)
}

// EncodeOutbound wraps an outbound message in its envelope. The type switch
// is exhaustive over the sealed union; an unhandled variant is a bug.
func EncodeOutbound(msg Outbound) (Envelope, error) {
	var typ string
	switch msg.(type) {
	case AssistantMessage:
		typ = "assistant_message"
	case History:
		typ = "history"
	case OpenTarget:
		typ = "open_target"
	case Notice:
		typ = "notice"
	case ErrorFrame:
		typ = "error"
	default:
		return Envelope{}, fmt.Errorf("session: unencodable outbound message %T", msg)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Payload: payload}, nil
}
