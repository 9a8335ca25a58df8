// ABOUTME: Shared test doubles for the agents package.
// ABOUTME: Fake model client and recording responder used across tests.

package agents

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/2389/slack-dispatch/internal/llm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLLM scripts Generate and Decide and records every request.
type fakeLLM struct {
	generateFunc func(ctx context.Context, req llm.GenerateRequest) (string, error)
	decideFunc   func(ctx context.Context, req llm.DecisionRequest, result any) error

	generateCalls []llm.GenerateRequest
	decideCalls   []llm.DecisionRequest
}

func (f *fakeLLM) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	f.generateCalls = append(f.generateCalls, req)
	if f.generateFunc != nil {
		return f.generateFunc(ctx, req)
	}
	return "ok", nil
}

func (f *fakeLLM) Decide(ctx context.Context, req llm.DecisionRequest, result any) error {
	f.decideCalls = append(f.decideCalls, req)
	if f.decideFunc != nil {
		return f.decideFunc(ctx, req, result)
	}
	return nil
}

// decideInto marshals v into the Decide result pointer, mimicking the real
// client's structured-output unmarshal.
func decideInto(t *testing.T, result any, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal decide fixture: %v", err)
	}
	if err := json.Unmarshal(data, result); err != nil {
		t.Fatalf("unmarshal decide fixture: %v", err)
	}
}

// stubResponder is a scriptable responder that records invocations.
type stubResponder struct {
	id       string
	outcome  Outcome
	invoked  *[]string // shared slice to record cross-responder ordering
	statuses []string
}

func (s *stubResponder) Descriptor() Descriptor {
	return Descriptor{ID: s.id, Capability: "stub capability for " + s.id}
}

func (s *stubResponder) CanHandle(string) bool { return true }

func (s *stubResponder) Respond(ctx context.Context, history History, rctx *Context) Outcome {
	if s.invoked != nil {
		*s.invoked = append(*s.invoked, s.id)
	}
	return s.outcome
}
