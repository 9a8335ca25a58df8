// ABOUTME: Shared test doubles for the transfer package.
// ABOUTME: In-memory Slack client recording posts and serving scripted threads.

package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/2389/slack-dispatch/internal/slackapi"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type postedMessage struct {
	Channel  string
	Text     string
	ThreadTS string
}

// fakeSlack scripts thread contents and records everything posted.
type fakeSlack struct {
	mu sync.Mutex

	threads      map[string][]slackapi.RawMessage // key: channel|ts
	names        map[string]string
	kinds        map[string]slackapi.Kind
	botUser      string
	fetchErr     error
	postErr      error
	postErrAfter int // fail posts once this many have succeeded (0 = never)

	posted     []postedMessage
	fetchCalls int
	nextTS     int
}

func newFakeSlack() *fakeSlack {
	return &fakeSlack{
		threads: make(map[string][]slackapi.RawMessage),
		names:   make(map[string]string),
		kinds:   make(map[string]slackapi.Kind),
		botUser: "UBOT000",
	}
}

func (f *fakeSlack) addThread(channel, ts string, msgs ...slackapi.RawMessage) {
	f.threads[channel+"|"+ts] = msgs
}

func (f *fakeSlack) PostMessage(_ context.Context, channel, text, threadTS string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", f.postErr
	}
	if f.postErrAfter > 0 && len(f.posted) >= f.postErrAfter {
		return "", fmt.Errorf("msg_too_long")
	}
	f.posted = append(f.posted, postedMessage{Channel: channel, Text: text, ThreadTS: threadTS})
	f.nextTS++
	return fmt.Sprintf("1700000000.%06d", f.nextTS), nil
}

func (f *fakeSlack) UpdateMessage(context.Context, string, string, string) error {
	return nil
}

func (f *fakeSlack) FetchReplies(_ context.Context, channel, ts string, limit int) ([]slackapi.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	msgs := f.threads[channel+"|"+ts]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeSlack) ResolveUserName(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name, ok := f.names[userID]; ok {
		return name, nil
	}
	return "", fmt.Errorf("user %s not found", userID)
}

func (f *fakeSlack) ChannelKind(_ context.Context, channel string) (slackapi.Kind, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind, ok := f.kinds[channel]; ok {
		return kind, nil
	}
	return slackapi.KindPublic, nil
}

func (f *fakeSlack) BotIdentity(context.Context) (string, error) {
	return f.botUser, nil
}
