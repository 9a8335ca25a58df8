// ABOUTME: Boundary contract for the text-generation service.
// ABOUTME: Defines messages, tool definitions, and the Client interface consumed by responders.

package llm

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Message represents one turn of a generation conversation.
type Message struct {
	Role       string     // "system", "user", "assistant", "tool"
	Content    string     // Text content
	ToolCalls  []ToolCall // For assistant messages that request tool calls
	ToolCallID string     // For tool result messages (references the tool call)
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON arguments
}

// Tool describes a callable tool exposed to the model, with an executor the
// generation loop may call zero or more times before producing final text.
type Tool struct {
	Name        string
	Description string
	Parameters  any // JSON schema for the arguments
	Execute     func(ctx context.Context, args json.RawMessage) (any, error)
}

// GenerateRequest is one generation call: a system prompt, a message history,
// and optionally a set of callable tools.
type GenerateRequest struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []Tool
	MaxTokens int
}

// DecisionRequest asks the model for a structured answer conforming to a
// JSON schema. Used for escalation judgments and invocation planning.
type DecisionRequest struct {
	Model      string
	System     string
	Prompt     string
	SchemaName string
	Schema     any
	MaxTokens  int
}

// Client is the generation-service contract. Implementations must honor the
// request context for cancellation and timeouts.
type Client interface {
	// Generate runs the tool-calling loop to completion and returns final text.
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// Decide requests a schema-constrained JSON response and unmarshals it
	// into result.
	Decide(ctx context.Context, req DecisionRequest, result any) error
}

// GenerateSchema derives a strict JSON schema from a Go type, suitable for
// Tool.Parameters and DecisionRequest.Schema.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}
