// ABOUTME: Boundary contract for the chat platform, plus the slack-go backed implementation.
// ABOUTME: Covers posting, updating, paginated reply fetching, name resolution, and channel kinds.

package slackapi

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

// RawMessage is one platform message as fetched from a thread.
type RawMessage struct {
	User      string // author user id, empty for some bot messages
	BotID     string // non-empty when the author is a bot
	Text      string
	Timestamp string // Slack ts, "seconds.micros"
}

// Kind classifies a conversation for access heuristics.
type Kind int

const (
	KindUnknown Kind = iota
	KindPublic
	KindPrivate
	KindIM
	KindMPIM
)

func (k Kind) String() string {
	switch k {
	case KindPublic:
		return "public"
	case KindPrivate:
		return "private"
	case KindIM:
		return "im"
	case KindMPIM:
		return "mpim"
	default:
		return "unknown"
	}
}

// Client is the chat-platform contract consumed by the dispatch and transfer
// layers. Implementations must honor the request context.
type Client interface {
	// PostMessage posts text to a channel, optionally threaded under threadTS,
	// and returns the new message's timestamp.
	PostMessage(ctx context.Context, channel, text, threadTS string) (string, error)

	// UpdateMessage replaces the text of an existing message.
	UpdateMessage(ctx context.Context, channel, ts, text string) error

	// FetchReplies returns all replies under a thread in conversation order,
	// following pagination internally up to limit messages.
	FetchReplies(ctx context.Context, channel, ts string, limit int) ([]RawMessage, error)

	// ResolveUserName returns a human display name for a user id.
	ResolveUserName(ctx context.Context, userID string) (string, error)

	// ChannelKind reports what kind of conversation a channel id refers to.
	ChannelKind(ctx context.Context, channel string) (Kind, error)

	// BotIdentity returns the bot's own user id.
	BotIdentity(ctx context.Context) (string, error)
}

// webClient implements Client over the Slack Web API.
type webClient struct {
	api    *slack.Client
	logger *slog.Logger
}

// New creates a Client backed by the Slack Web API.
func New(botToken string, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &webClient{
		api:    slack.New(botToken),
		logger: logger.With("component", "slackapi"),
	}
}

func (c *webClient) PostMessage(ctx context.Context, channel, text, threadTS string) (string, error) {
	opts := []slack.MsgOption{
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
		slack.MsgOptionDisableMediaUnfurl(),
	}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}

	_, ts, err := c.api.PostMessageContext(ctx, channel, opts...)
	if err != nil {
		return "", fmt.Errorf("posting message: %w", err)
	}
	return ts, nil
}

func (c *webClient) UpdateMessage(ctx context.Context, channel, ts, text string) error {
	_, _, _, err := c.api.UpdateMessageContext(ctx, channel, ts, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
	}
	return nil
}

func (c *webClient) FetchReplies(ctx context.Context, channel, ts string, limit int) ([]RawMessage, error) {
	var out []RawMessage
	cursor := ""

	for {
		msgs, hasMore, nextCursor, err := c.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
			ChannelID: channel,
			Timestamp: ts,
			Limit:     limit,
			Cursor:    cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("fetching replies: %w", err)
		}

		for _, m := range msgs {
			out = append(out, RawMessage{
				User:      m.User,
				BotID:     m.BotID,
				Text:      m.Text,
				Timestamp: m.Timestamp,
			})
			if len(out) >= limit {
				return out, nil
			}
		}

		if !hasMore || nextCursor == "" {
			return out, nil
		}
		cursor = nextCursor
	}
}

func (c *webClient) ResolveUserName(ctx context.Context, userID string) (string, error) {
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolving user %s: %w", userID, err)
	}
	if user.RealName != "" {
		return user.RealName, nil
	}
	if user.Name != "" {
		return user.Name, nil
	}
	return "Unknown User", nil
}

func (c *webClient) ChannelKind(ctx context.Context, channel string) (Kind, error) {
	info, err := c.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{
		ChannelID: channel,
	})
	if err != nil {
		return KindUnknown, fmt.Errorf("fetching channel info: %w", err)
	}

	switch {
	case info.IsIM:
		return KindIM, nil
	case info.IsMpIM:
		return KindMPIM, nil
	case info.IsPrivate:
		return KindPrivate, nil
	default:
		return KindPublic, nil
	}
}

func (c *webClient) BotIdentity(ctx context.Context) (string, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("auth test: %w", err)
	}
	return resp.UserID, nil
}
