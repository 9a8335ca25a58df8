// ABOUTME: Tests for the thread-operations responder.
// ABOUTME: Routing between copy and summarize, link requirements, and text formatting.

package agents

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/slack-dispatch/internal/llm"
	"github.com/2389/slack-dispatch/internal/slackapi"
	"github.com/2389/slack-dispatch/internal/transfer"
)

// threadsSlack is a minimal platform fake for wiring real copier and
// summarizer instances under the responder.
type threadsSlack struct {
	threads map[string][]slackapi.RawMessage // key: channel|ts
	posted  []string
	nextTS  int
}

func newThreadsSlack() *threadsSlack {
	return &threadsSlack{threads: make(map[string][]slackapi.RawMessage)}
}

func (f *threadsSlack) PostMessage(_ context.Context, channel, text, threadTS string) (string, error) {
	f.posted = append(f.posted, text)
	f.nextTS++
	return fmt.Sprintf("1700000000.%06d", f.nextTS), nil
}

func (f *threadsSlack) UpdateMessage(context.Context, string, string, string) error { return nil }

func (f *threadsSlack) FetchReplies(_ context.Context, channel, ts string, limit int) ([]slackapi.RawMessage, error) {
	return f.threads[channel+"|"+ts], nil
}

func (f *threadsSlack) ResolveUserName(_ context.Context, userID string) (string, error) {
	return "Alice Chen", nil
}

func (f *threadsSlack) ChannelKind(context.Context, string) (slackapi.Kind, error) {
	return slackapi.KindPublic, nil
}

func (f *threadsSlack) BotIdentity(context.Context) (string, error) { return "UBOT000", nil }

func newThreadsResponder(fake *threadsSlack, client llm.Client) *ThreadsResponder {
	copier := transfer.NewCopier(fake, testLogger())
	summarizer := transfer.NewSummarizer(fake, client, "supervisor-model", time.Second, testLogger())
	return NewThreadsResponder(copier, summarizer, testLogger())
}

func TestThreads_CopyRoutesToCopier(t *testing.T) {
	fake := newThreadsSlack()
	fake.threads["C111SRC00|1690000000.000100"] = []slackapi.RawMessage{
		{User: "U001", Text: "first", Timestamp: "1690000000.000100"},
		{User: "U001", Text: "second", Timestamp: "1690000000.000200"},
	}
	r := newThreadsResponder(fake, &fakeLLM{})

	query := "copy this thread https://ws.slack.com/archives/C111SRC00/p1690000000000100 " +
		"to https://ws.slack.com/archives/C222DST00/p1690000001000200"
	out := r.Respond(context.Background(), History{{Role: RoleUser, Content: query}}, &Context{})

	require.True(t, out.OK, "copy failed: %s", out.Text)
	assert.Contains(t, out.Text, "Copied 2 messages")
	require.Len(t, fake.posted, 1)

	res, ok := out.Data.(transfer.Result)
	require.True(t, ok)
	assert.Equal(t, "C111SRC00", res.SourceChannel)

	// Final text is in platform form like every other responder's
	assert.Equal(t, FormatForSlack(out.Text), out.Text)
}

func TestThreads_CopyNeedsTwoLinks(t *testing.T) {
	r := newThreadsResponder(newThreadsSlack(), &fakeLLM{})

	out := r.Respond(context.Background(), History{{Role: RoleUser, Content: "copy this thread https://ws.slack.com/archives/C111SRC00/p1690000000000100"}}, &Context{})
	assert.False(t, out.OK)
	assert.Contains(t, out.Text, "two links")
}

func TestThreads_SummarizeUsesCurrentThread(t *testing.T) {
	fake := newThreadsSlack()
	fake.threads["C333CUR00|1690000002.000300"] = []slackapi.RawMessage{
		{User: "U001", Text: "we hit an error spike at noon", Timestamp: "1690000002.000300"},
		{User: "U002", Text: "rollback fixed it", Timestamp: "1690000002.000400"},
	}
	client := &fakeLLM{
		generateFunc: func(context.Context, llm.GenerateRequest) (string, error) {
			return "**Key points**: error spike, fixed by rollback", nil
		},
	}
	r := newThreadsResponder(fake, client)

	out := r.Respond(context.Background(),
		History{{Role: RoleUser, Content: "summarize this thread"}},
		&Context{Channel: "C333CUR00", ThreadTS: "1690000002.000300", BotUserID: "UBOT000"})

	require.True(t, out.OK)
	assert.Contains(t, out.Text, "*Key points*", "model markdown is rewritten to mrkdwn")
	assert.NotContains(t, out.Text, "**")
}

func TestThreads_SummarizeWithoutThreadContext(t *testing.T) {
	r := newThreadsResponder(newThreadsSlack(), &fakeLLM{})

	out := r.Respond(context.Background(), History{{Role: RoleUser, Content: "summarize it please"}}, &Context{})
	assert.False(t, out.OK)
	assert.Contains(t, out.Text, "thread")
}

func TestThreads_AmbiguousRequest(t *testing.T) {
	r := newThreadsResponder(newThreadsSlack(), &fakeLLM{})

	out := r.Respond(context.Background(), History{{Role: RoleUser, Content: "https://ws.slack.com/archives/C111SRC00/p1690000000000100 what do you think"}}, &Context{})
	assert.False(t, out.OK)
	assert.NotEmpty(t, out.Text)
}

func TestThreads_CanHandle(t *testing.T) {
	r := newThreadsResponder(newThreadsSlack(), &fakeLLM{})

	assert.True(t, r.CanHandle("copy that thread to #general"))
	assert.True(t, r.CanHandle("give me a recap"))
	assert.True(t, r.CanHandle("look at https://ws.slack.com/archives/C1/p1690000000000100"))
	assert.False(t, r.CanHandle("what's the weather"))
}