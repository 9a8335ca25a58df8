// ABOUTME: The thread copy pipeline: parse, fetch, render, post.
// ABOUTME: Invalid links short-circuit before any platform call is made.

package transfer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/2389/slack-dispatch/internal/slackapi"
)

const (
	// fetchLimit caps how many source messages a single copy will read.
	fetchLimit = 200

	// resolveConcurrency bounds parallel user-name lookups.
	resolveConcurrency = 4
)

// Result reports what a copy did, in terms suitable for showing the user.
type Result struct {
	Success       bool
	Message       string
	SourceChannel string
	DestChannel   string
	MessageCount  int
	ChunkCount    int
	Access        AccessLevel
	Link          string // permalink to the copied thread
}

// Copier copies a thread from one conversation to another.
type Copier struct {
	slack  slackapi.Client
	logger *slog.Logger
}

func NewCopier(slack slackapi.Client, logger *slog.Logger) *Copier {
	return &Copier{
		slack:  slack,
		logger: logger.With("component", "copier"),
	}
}

// Copy runs the pipeline: parse both links, fetch the source thread,
// classify access, resolve author names, render the transcript, and post it
// to the destination in chunks. Failures return a Result with Success false
// and a user-safe Message; Copy never returns a Go error to the caller
// because every failure here is a user-facing condition.
func (c *Copier) Copy(ctx context.Context, sourceLink, destLink string) Result {
	source, err := slackapi.ParseLink(sourceLink)
	if err != nil {
		return Result{Success: false, Message: "The source link doesn't look like a Slack message link."}
	}
	dest, err := slackapi.ParseLink(destLink)
	if err != nil {
		return Result{Success: false, Message: "The destination link doesn't look like a Slack message link."}
	}

	logger := c.logger.With("source", source.ChannelID, "dest", dest.ChannelID)
	logger.Info("copying thread", "thread_ts", source.ThreadTS)

	messages, err := c.slack.FetchReplies(ctx, source.ChannelID, source.ThreadTS, fetchLimit)
	if err != nil {
		logger.Error("fetch failed", "error", err)
		return Result{
			Success:       false,
			Message:       "I couldn't read the source thread. I may not have access to that conversation.",
			SourceChannel: source.ChannelID,
			DestChannel:   dest.ChannelID,
			Access:        AccessUnknown,
		}
	}

	if len(messages) == 0 {
		return Result{
			Success:       false,
			Message:       AccessUnknown.Describe(),
			SourceChannel: source.ChannelID,
			DestChannel:   dest.ChannelID,
			Access:        AccessUnknown,
		}
	}

	kind, err := c.slack.ChannelKind(ctx, source.ChannelID)
	if err != nil {
		logger.Warn("channel kind lookup failed", "error", err)
		kind = slackapi.KindUnknown
	}
	access := ClassifyAccess(len(messages), kind)

	names := c.resolveAuthors(ctx, messages)

	entries := make([]transcriptEntry, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, transcriptEntry{
			Author:    c.authorName(m, names),
			Text:      resolveMentions(m.Text, names),
			Timestamp: m.Timestamp,
		})
	}

	transcript := buildTranscript(source.ChannelID, source.ThreadTS, entries, access)
	chunks := SplitChunks(transcript, chunkLimit)

	// First chunk starts the destination thread; the rest reply under it.
	firstTS, err := c.slack.PostMessage(ctx, dest.ChannelID, chunks[0], "")
	if err != nil {
		logger.Error("post failed", "error", err)
		return Result{
			Success:       false,
			Message:       "I couldn't post to the destination channel. I may not be a member there.",
			SourceChannel: source.ChannelID,
			DestChannel:   dest.ChannelID,
			MessageCount:  len(messages),
			Access:        access,
		}
	}
	// The initial post landed, so from here the copy counts as a success:
	// a continuation failure leaves a visible but truncated thread, which
	// is reported in the message rather than as a failure.
	postedChunks := 1
	for _, chunk := range chunks[1:] {
		if _, err := c.slack.PostMessage(ctx, dest.ChannelID, chunk, firstTS); err != nil {
			logger.Error("continuation post failed", "error", err, "posted_chunks", postedChunks, "total_chunks", len(chunks))
			break
		}
		postedChunks++
	}

	link := slackapi.FormatLink(dest.ChannelID, firstTS)
	logger.Info("thread copied", "messages", len(messages), "chunks", postedChunks)

	message := fmt.Sprintf("Copied %d messages in %d chunk(s): <%s|view thread>", len(messages), postedChunks, link)
	if postedChunks < len(chunks) {
		message = fmt.Sprintf("Copied %d messages, but only %d of %d chunks posted before an error; the destination thread is incomplete: <%s|view thread>",
			len(messages), postedChunks, len(chunks), link)
	}

	return Result{
		Success:       true,
		Message:       message,
		SourceChannel: source.ChannelID,
		DestChannel:   dest.ChannelID,
		MessageCount:  len(messages),
		ChunkCount:    postedChunks,
		Access:        access,
		Link:          link,
	}
}

// resolveAuthors looks up display names for every distinct user id in the
// thread, a few at a time. A failed lookup leaves the id out of the map and
// the author falls back to a placeholder.
func (c *Copier) resolveAuthors(ctx context.Context, messages []slackapi.RawMessage) map[string]string {
	ids := make(map[string]struct{})
	for _, m := range messages {
		if m.User != "" {
			ids[m.User] = struct{}{}
		}
	}

	type resolved struct {
		id   string
		name string
	}
	results := make(chan resolved, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for id := range ids {
		id := id
		g.Go(func() error {
			name, err := c.slack.ResolveUserName(gctx, id)
			if err != nil {
				c.logger.Warn("name resolution failed", "user", id, "error", err)
				return nil // placeholder fallback, not a pipeline failure
			}
			results <- resolved{id: id, name: name}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors
	close(results)

	names := make(map[string]string, len(ids))
	for r := range results {
		names[r.id] = r.name
	}
	return names
}

func (c *Copier) authorName(m slackapi.RawMessage, names map[string]string) string {
	if m.User != "" {
		if name, ok := names[m.User]; ok {
			return name
		}
		return "Unknown User"
	}
	if m.BotID != "" {
		return "Bot"
	}
	return "Unknown User"
}
