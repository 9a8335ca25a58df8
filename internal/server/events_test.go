// ABOUTME: Tests for the events endpoint.
// ABOUTME: Signature rejection, challenge echo, dedupe, filtering, and the status-edit flow.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/slack-dispatch/internal/agents"
	"github.com/2389/slack-dispatch/internal/dedupe"
	"github.com/2389/slack-dispatch/internal/slackapi"
)

const signingSecret = "test-signing-secret"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type update struct {
	Channel string
	TS      string
	Text    string
}

// fakeSlack records posts and updates and serves scripted threads.
type fakeSlack struct {
	mu      sync.Mutex
	posted  []update
	updates []update
	threads map[string][]slackapi.RawMessage
}

func newFakeSlack() *fakeSlack {
	return &fakeSlack{
		threads: make(map[string][]slackapi.RawMessage),
	}
}

func (f *fakeSlack) PostMessage(_ context.Context, channel, text, threadTS string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, update{Channel: channel, TS: threadTS, Text: text})
	return "1700000000.000001", nil
}

func (f *fakeSlack) UpdateMessage(_ context.Context, channel, ts, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update{Channel: channel, TS: ts, Text: text})
	return nil
}

func (f *fakeSlack) FetchReplies(_ context.Context, channel, ts string, _ int) ([]slackapi.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.threads[channel+"|"+ts], nil
}

func (f *fakeSlack) ResolveUserName(context.Context, string) (string, error) {
	return "Someone", nil
}

func (f *fakeSlack) ChannelKind(context.Context, string) (slackapi.Kind, error) {
	return slackapi.KindPublic, nil
}

func (f *fakeSlack) BotIdentity(context.Context) (string, error) {
	return "UBOT000", nil
}

// waitForUpdate polls until an update containing substr arrives. Status
// edits and the final reply share the update path, so tests wait on the
// text they expect rather than on update count.
func (f *fakeSlack) waitForUpdate(t *testing.T, substr string) update {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		for _, u := range f.updates {
			if strings.Contains(u.Text, substr) {
				f.mu.Unlock()
				return u
			}
		}
		f.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for update containing %q", substr)
	return update{}
}

func newTestServer(t *testing.T, fake *fakeSlack) *Server {
	t.Helper()
	reg := agents.NewRegistry(testLogger())
	require.NoError(t, reg.Register(echoResponder{}))
	return New(
		Options{Addr: ":0", SigningSecret: signingSecret},
		fake,
		agents.NewOrchestrator(reg, testLogger()),
		dedupe.New(time.Minute, 100),
		testLogger(),
	)
}

// echoResponder replies with the last user message prefixed.
type echoResponder struct{}

func (echoResponder) Descriptor() agents.Descriptor { return agents.Descriptor{ID: agents.ChatID} }
func (echoResponder) CanHandle(string) bool         { return true }
func (echoResponder) Respond(_ context.Context, h agents.History, _ *agents.Context) agents.Outcome {
	return agents.Outcome{OK: true, Text: "echo: " + h.LastUserMessage()}
}

func signedRequest(t *testing.T, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	ts := fmt.Sprintf("%d", time.Now().Unix())
	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", slackapi.Sign(signingSecret, ts, body))
	return req
}

func mentionEvent(eventID, text string) map[string]any {
	return map[string]any{
		"type":     "event_callback",
		"event_id": eventID,
		"event": map[string]any{
			"type":    "app_mention",
			"user":    "U123",
			"text":    text,
			"channel": "C999",
			"ts":      "1700000000.000100",
		},
	}
}

func TestEvents_RejectsBadSignature(t *testing.T) {
	srv := newTestServer(t, newFakeSlack())

	body := []byte(`{"type":"event_callback"}`)
	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEvents_URLVerificationChallenge(t *testing.T) {
	srv := newTestServer(t, newFakeSlack())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedRequest(t, map[string]string{
		"type":      "url_verification",
		"challenge": "challenge-token-123",
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "challenge-token-123", resp["challenge"])
}

func TestEvents_MentionGetsStatusThenReply(t *testing.T) {
	fake := newFakeSlack()
	srv := newTestServer(t, fake)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedRequest(t, mentionEvent("Ev001", "<@UBOT000> hello there")))
	assert.Equal(t, http.StatusOK, rec.Code)

	last := fake.waitForUpdate(t, "echo:")
	assert.Equal(t, "C999", last.Channel)
	assert.Equal(t, "echo: hello there", last.Text, "mention stripped before dispatch")

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.NotEmpty(t, fake.posted)
	assert.Equal(t, "Thinking...", fake.posted[0].Text)
	assert.Equal(t, "1700000000.000100", fake.posted[0].TS, "status posts into the thread")
}

func TestEvents_DuplicateEventDropped(t *testing.T) {
	fake := newFakeSlack()
	srv := newTestServer(t, fake)

	srv.Handler().ServeHTTP(httptest.NewRecorder(), signedRequest(t, mentionEvent("Ev002", "<@UBOT000> hi")))
	fake.waitForUpdate(t, "echo:")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedRequest(t, mentionEvent("Ev002", "<@UBOT000> hi")))
	assert.Equal(t, http.StatusOK, rec.Code, "duplicates still acknowledge")

	time.Sleep(50 * time.Millisecond)
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Len(t, fake.posted, 1, "duplicate never reaches processing")
}

func TestEvents_BotMessagesIgnored(t *testing.T) {
	fake := newFakeSlack()
	srv := newTestServer(t, fake)

	payload := map[string]any{
		"type":     "event_callback",
		"event_id": "Ev003",
		"event": map[string]any{
			"type":    "app_mention",
			"bot_id":  "B555",
			"text":    "<@UBOT000> automated",
			"channel": "C999",
			"ts":      "1700000000.000200",
		},
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedRequest(t, payload))
	assert.Equal(t, http.StatusOK, rec.Code)

	time.Sleep(50 * time.Millisecond)
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.posted)
}

func TestEvents_DMDispatches(t *testing.T) {
	fake := newFakeSlack()
	srv := newTestServer(t, fake)

	payload := map[string]any{
		"type":     "event_callback",
		"event_id": "Ev004",
		"event": map[string]any{
			"type":         "message",
			"channel_type": "im",
			"user":         "U123",
			"text":         "direct question",
			"channel":      "D111",
			"ts":           "1700000000.000300",
		},
	}
	srv.Handler().ServeHTTP(httptest.NewRecorder(), signedRequest(t, payload))

	last := fake.waitForUpdate(t, "echo:")
	assert.Equal(t, "echo: direct question", last.Text)
}

func TestEvents_ChannelMessageWithoutMentionIgnored(t *testing.T) {
	fake := newFakeSlack()
	srv := newTestServer(t, fake)

	payload := map[string]any{
		"type":     "event_callback",
		"event_id": "Ev005",
		"event": map[string]any{
			"type":         "message",
			"channel_type": "channel",
			"user":         "U123",
			"text":         "just chatting",
			"channel":      "C999",
			"ts":           "1700000000.000400",
		},
	}
	srv.Handler().ServeHTTP(httptest.NewRecorder(), signedRequest(t, payload))

	time.Sleep(50 * time.Millisecond)
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.posted)
}

func TestEvents_ThreadHistoryRebuilt(t *testing.T) {
	fake := newFakeSlack()
	fake.threads["C999|1700000000.000100"] = []slackapi.RawMessage{
		{User: "U123", Text: "<@UBOT000> first question"},
		{User: "UBOT000", Text: "first answer"},
		{User: "U123", Text: "<@UBOT000> follow up"},
	}
	srv := newTestServer(t, fake)

	payload := map[string]any{
		"type":     "event_callback",
		"event_id": "Ev006",
		"event": map[string]any{
			"type":      "app_mention",
			"user":      "U123",
			"text":      "<@UBOT000> follow up",
			"channel":   "C999",
			"ts":        "1700000000.000300",
			"thread_ts": "1700000000.000100",
		},
	}
	srv.Handler().ServeHTTP(httptest.NewRecorder(), signedRequest(t, payload))

	last := fake.waitForUpdate(t, "echo:")
	assert.Equal(t, "echo: follow up", last.Text, "history ends at the latest user turn")
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, newFakeSlack())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}
