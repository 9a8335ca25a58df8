// ABOUTME: Top-level dispatch: primary responder first, escalation to the coordinator when asked.
// ABOUTME: Last-resort recovery lives here so a panicking responder never kills the request.

package agents

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

const fallbackReply = "Something went wrong handling that request. Please try again."

// Orchestrator runs the dispatch flow for one inbound message.
type Orchestrator struct {
	registry *Registry
	logger   *slog.Logger
}

func NewOrchestrator(registry *Registry, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		logger:   logger.With("component", "orchestrator"),
	}
}

// Process dispatches a conversation and returns the reply text. It always
// returns something postable; internal failures degrade to a generic
// apology rather than an empty string.
func (o *Orchestrator) Process(ctx context.Context, history History, rctx *Context) (reply string) {
	requestID := uuid.NewString()[:8]
	logger := o.logger.With("request_id", requestID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("responder panicked", "panic", r)
			reply = fallbackReply
		}
	}()

	primary, err := o.registry.Lookup(ChatID)
	if err != nil {
		// Startup wiring bug; the directory always holds the primary.
		logger.Error("primary responder missing", "error", err)
		return fallbackReply
	}

	rctx.SetStatus("Thinking...")
	outcome := primary.Respond(ctx, history, rctx)

	if outcome.Escalate {
		target := outcome.SuggestedTarget
		if target == "" {
			target = SupervisorID
		}
		logger.Info("escalated", "target", target)

		coordinator, err := o.registry.Lookup(target)
		if err != nil {
			logger.Error("escalation target missing", "target", target, "error", err)
			return fallbackReply
		}
		outcome = coordinator.Respond(ctx, history, rctx)
	}

	if outcome.Text == "" {
		logger.Error("responder returned empty text", "ok", outcome.OK)
		return fallbackReply
	}

	logger.Info("request handled", "ok", outcome.OK)
	return outcome.Text
}
