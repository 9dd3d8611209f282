// Package conversation persists the ordered message history of a panel
// session. Messages are stored raw, pre-parse, so replaying a conversation
// through the citation parser reproduces the original rendering exactly.
package conversation

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one stored turn half. RawContent is the exact text before any
// citation parsing; user messages are never parsed even when they contain
// bracket sequences.
type Message struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	RawContent string    `json:"raw_content"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewMessage stamps a message with a sortable ULID and the current time.
func NewMessage(role Role, raw string) Message {
	return Message{
		ID:         ulid.Make().String(),
		Role:       role,
		RawContent: raw,
		CreatedAt:  time.Now().UTC(),
	}
}

// NewConversationID returns a fresh conversation identifier.
func NewConversationID() string {
	return "conv-" + ulid.Make().String()
}

func normalizeMessage(m Message) (Message, bool) {
	if m.ID == "" || strings.TrimSpace(string(m.Role)) == "" {
		return Message{}, false
	}
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return Message{}, false
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return m, true
}
