// ABOUTME: Thread-operations responder: bridges the dispatch layer to copy and summarize.
// ABOUTME: Decides between the two operations from the query text and link count.

package agents

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/2389/slack-dispatch/internal/slackapi"
	"github.com/2389/slack-dispatch/internal/transfer"
)

var (
	copyRequestPattern    = regexp.MustCompile(`(?i)(copy|move|transfer|migrate)`)
	summaryRequestPattern = regexp.MustCompile(`(?i)summar(ize|ise|y)|recap|catch me up`)
	threadsPattern        = regexp.MustCompile(`(?i)summar|recap|(copy|move|transfer|migrate).*thread|slack\.com/archives/`)
)

// ThreadsResponder handles thread copy and thread summary requests.
type ThreadsResponder struct {
	copier     *transfer.Copier
	summarizer *transfer.Summarizer
	logger     *slog.Logger
}

func NewThreadsResponder(copier *transfer.Copier, summarizer *transfer.Summarizer, logger *slog.Logger) *ThreadsResponder {
	return &ThreadsResponder{
		copier:     copier,
		summarizer: summarizer,
		logger:     logger.With("component", "threads"),
	}
}

func (r *ThreadsResponder) Descriptor() Descriptor {
	return Descriptor{
		ID:         ThreadsID,
		Capability: "Copy threads between channels and summarize thread conversations",
	}
}

func (r *ThreadsResponder) CanHandle(query string) bool {
	return threadsPattern.MatchString(query)
}

func (r *ThreadsResponder) Respond(ctx context.Context, history History, rctx *Context) Outcome {
	query := history.LastUserMessage()
	links := slackapi.ExtractLinks(query)

	switch {
	case copyRequestPattern.MatchString(query) && len(links) > 0:
		return r.copyThread(ctx, links, rctx)
	case summaryRequestPattern.MatchString(query):
		return r.summarizeThread(ctx, links, rctx)
	default:
		return Outcome{
			OK:   false,
			Text: "I can copy a thread (give me source and destination links) or summarize one. I couldn't tell which you wanted.",
		}
	}
}

func (r *ThreadsResponder) copyThread(ctx context.Context, links []string, rctx *Context) Outcome {
	if len(links) < 2 {
		return Outcome{
			OK:   false,
			Text: "To copy a thread I need two links: the source thread and the destination channel message.",
		}
	}

	rctx.SetStatus("Copying the thread...")
	result := r.copier.Copy(ctx, links[0], links[1])
	return Outcome{OK: result.Success, Text: FormatForSlack(result.Message), Data: result}
}

func (r *ThreadsResponder) summarizeThread(ctx context.Context, links []string, rctx *Context) Outcome {
	channel := rctx.Channel
	threadTS := rctx.ThreadTS

	// An explicit link overrides the current conversation.
	if len(links) > 0 {
		if parsed, err := slackapi.ParseLink(links[0]); err == nil {
			channel = parsed.ChannelID
			threadTS = parsed.ThreadTS
		}
	}

	if channel == "" || threadTS == "" {
		return Outcome{
			OK:   false,
			Text: "I can only summarize inside a thread, or with a link to one.",
		}
	}

	rctx.SetStatus("Reading the thread...")
	summary, err := r.summarizer.Summarize(ctx, channel, threadTS, rctx.BotUserID)
	if err != nil {
		r.logger.Error("summarization failed", "error", err)
		return Outcome{OK: false, Text: "I couldn't summarize that thread. Please try again."}
	}

	return Outcome{OK: true, Text: FormatForSlack(summary)}
}
