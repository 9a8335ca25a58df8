// ABOUTME: The primary chat responder: answers basic queries and escalates the rest.
// ABOUTME: Front door for every conversation; escalation goes through the classifier.

package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/slack-dispatch/internal/llm"
)

const chatApology = "I ran into a problem processing that request. Please try again."

// ChatResponder is the primary responder. It consults the classifier on the
// latest user message; escalating requests never touch its model.
type ChatResponder struct {
	llm        llm.Client
	classifier *Classifier
	model      string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewChatResponder builds the primary responder.
func NewChatResponder(client llm.Client, classifier *Classifier, model string, timeout time.Duration, logger *slog.Logger) *ChatResponder {
	return &ChatResponder{
		llm:        client,
		classifier: classifier,
		model:      model,
		timeout:    timeout,
		logger:     logger.With("component", "chat"),
	}
}

func (r *ChatResponder) Descriptor() Descriptor {
	return Descriptor{
		ID:         ChatID,
		Capability: "General conversation and simple factual questions",
	}
}

// CanHandle is always true; chat is the fallback for everything.
func (r *ChatResponder) CanHandle(query string) bool {
	return true
}

func (r *ChatResponder) Respond(ctx context.Context, history History, rctx *Context) Outcome {
	query := history.LastUserMessage()

	decision := r.classifier.Classify(ctx, query)
	if decision.ShouldEscalate() {
		target := decision.Target
		if target == "" {
			target = SupervisorID
		}
		r.logger.Info("escalating", "target", target, "reason", decision.Reason)
		return Outcome{OK: true, Escalate: true, SuggestedTarget: target}
	}

	genCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.llm.Generate(genCtx, llm.GenerateRequest{
		Model:    r.model,
		System:   chatSystemPrompt(),
		Messages: toLLMMessages(history),
	})
	if err != nil {
		r.logger.Error("generation failed", "error", err)
		return Outcome{OK: false, Text: chatApology}
	}

	return Outcome{OK: true, Text: FormatForSlack(text)}
}

func chatSystemPrompt() string {
	return fmt.Sprintf(`You are a helpful Slack assistant. Today's date is %s.
Answer concisely and conversationally. Use Slack mrkdwn formatting: *bold*, _italic_, and <url|text> for links.`,
		time.Now().Format("2006-01-02"))
}
