package domain

import (
	"strings"
	"time"
)

// SortOrder selects insertion-order direction when listing thread messages.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// MessageRole distinguishes caller-authored from service-authored messages.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Thread is an ordered, append-only conversation log held by the remote
// service. Created once and never mutated except by appending messages.
type Thread struct {
	ID        string
	CreatedAt time.Time
}

// MessagePart is one content element of a message. Only "text" parts carry
// a value; other part types are preserved but empty.
type MessagePart struct {
	Type string
	Text string
}

// Message is a single immutable entry in a thread's append order.
type Message struct {
	ID        string
	ThreadID  string
	Role      MessageRole
	Parts     []MessagePart
	CreatedAt time.Time
}

// Text joins the message's text parts in order, separated by newlines.
func (m Message) Text() string {
	parts := make([]string, 0, len(m.Parts))
	for _, p := range m.Parts {
		if p.Type == "text" && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}
