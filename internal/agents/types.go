// ABOUTME: Core types for the responder layer: messages, request context, outcomes.
// ABOUTME: Defines the Responder contract every agent in the directory implements.

package agents

import (
	"context"
)

// Role identifies who authored a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of conversation history.
type Message struct {
	Role    Role
	Content string
}

// History is an ordered conversation. It is immutable once handed to a
// responder; responders must not append to or reorder it.
type History []Message

// LastUserMessage returns the content of the most recent user turn, or ""
// if the history contains none.
func (h History) LastUserMessage() string {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Role == RoleUser {
			return h[i].Content
		}
	}
	return ""
}

// StatusFunc receives human-readable progress strings. It is a side channel;
// nothing in the pipeline depends on it being present.
type StatusFunc func(status string)

// Context carries request-scoped platform context into a responder.
type Context struct {
	Channel   string
	ThreadTS  string
	BotUserID string
	User      string
	Status    StatusFunc
}

// SetStatus emits a progress update if a sink is attached.
func (c *Context) SetStatus(status string) {
	if c != nil && c.Status != nil {
		c.Status(status)
	}
}

// Outcome is the structured result of any responder invocation.
//
// Invariants: if OK is false, Text still carries a non-empty user-safe
// message. If Escalate is true, Text is empty - escalating and answering
// are mutually exclusive.
type Outcome struct {
	OK              bool
	Text            string
	Data            any    // opaque auxiliary data for synthesis
	Escalate        bool   // primary responder only
	SuggestedTarget string // responder id to escalate to
}

// Descriptor identifies a responder and declares its competence.
type Descriptor struct {
	ID         string   // unique, stable key for directory lookup
	Capability string   // one-line hint used to build planner prompts
	Tools      []string // names of tools the responder exposes to generation
}

// Responder is a unit that consumes a message history and context and
// produces an Outcome. Implementations catch their own failures; no error
// crosses this boundary.
type Responder interface {
	Descriptor() Descriptor

	// CanHandle is a pattern-based self-declaration used for introspection
	// and tests. Routing is centralized in the planner, not here.
	CanHandle(query string) bool

	Respond(ctx context.Context, history History, rctx *Context) Outcome
}

// Well-known responder ids. The directory is built from this closed set at
// startup; suggestedTarget values refer to these.
const (
	ChatID       = "chat"
	SupervisorID = "supervisor"
	WeatherID    = "weather"
	SearchID     = "search"
	MetricsID    = "metrics"
	ThreadsID    = "threads"
)
