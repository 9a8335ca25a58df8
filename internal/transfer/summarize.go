// ABOUTME: Thread summarization: fetches a thread and condenses it with the high-capability model.
// ABOUTME: Short threads get a notice instead of a model call.

package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/slack-dispatch/internal/llm"
	"github.com/2389/slack-dispatch/internal/slackapi"
)

// minSummarizable is the smallest thread worth summarizing. Below this the
// summary would just restate the thread.
const minSummarizable = 2

// Summarizer condenses a Slack thread into a short summary.
type Summarizer struct {
	slack   slackapi.Client
	llm     llm.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

func NewSummarizer(slack slackapi.Client, client llm.Client, model string, timeout time.Duration, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		slack:   slack,
		llm:     client,
		model:   model,
		timeout: timeout,
		logger:  logger.With("component", "summarizer"),
	}
}

// Summarize fetches the thread rooted at threadTS and returns a summary.
// botUserID filters the bot's own status chatter out of the transcript.
func (s *Summarizer) Summarize(ctx context.Context, channel, threadTS, botUserID string) (string, error) {
	messages, err := s.slack.FetchReplies(ctx, channel, threadTS, fetchLimit)
	if err != nil {
		return "", fmt.Errorf("fetching thread: %w", err)
	}

	var lines []string
	for _, m := range messages {
		if m.User == botUserID || (m.User == "" && m.BotID != "") {
			continue
		}
		if m.Text == "" {
			continue
		}
		lines = append(lines, m.Text)
	}

	if len(lines) < minSummarizable {
		return "There isn't enough conversation in this thread to summarize yet.", nil
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	summary, err := s.llm.Generate(genCtx, llm.GenerateRequest{
		Model: s.model,
		System: "You summarize Slack threads. Produce a short summary with the key points, " +
			"decisions, and any action items. Use Slack mrkdwn bullet points.",
		Messages: []llm.Message{{
			Role:    "user",
			Content: "Summarize this thread:\n\n" + strings.Join(lines, "\n"),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}

	s.logger.Info("thread summarized", "channel", channel, "messages", len(lines))
	return summary, nil
}
