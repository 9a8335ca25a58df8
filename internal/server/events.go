// ABOUTME: Events endpoint: signature verification, dedupe, and async dispatch.
// ABOUTME: The HTTP response is an acknowledgment only; replies are posted out of band.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/2389/slack-dispatch/internal/agents"
	"github.com/2389/slack-dispatch/internal/slackapi"
)

// maxBodyBytes caps inbound payload size.
const maxBodyBytes = 1 << 20

// eventEnvelope is the outer payload of the events API.
type eventEnvelope struct {
	Type      string     `json:"type"`
	Challenge string     `json:"challenge"`
	EventID   string     `json:"event_id"`
	Event     innerEvent `json:"event"`
}

// innerEvent is the message-bearing part of an event callback.
type innerEvent struct {
	Type        string `json:"type"`
	Subtype     string `json:"subtype"`
	User        string `json:"user"`
	BotID       string `json:"bot_id"`
	Text        string `json:"text"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type"`
	TS          string `json:"ts"`
	ThreadTS    string `json:"thread_ts"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ok := slackapi.VerifySignature(
		s.opts.SigningSecret,
		r.Header.Get("X-Slack-Request-Timestamp"),
		body,
		r.Header.Get("X-Slack-Signature"),
	)
	if !ok {
		s.logger.Warn("rejected request with bad signature", "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	switch envelope.Type {
	case "url_verification":
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"challenge": envelope.Challenge}) //nolint:errcheck
		return

	case "event_callback":
		if envelope.EventID != "" && !s.seen.CheckAndMark(envelope.EventID) {
			s.logger.Debug("duplicate event dropped", "event_id", envelope.EventID)
			w.WriteHeader(http.StatusOK)
			return
		}

		// Acknowledge before processing; the platform redelivers on slow
		// responses and the reply goes out through the API, not this response.
		w.WriteHeader(http.StatusOK)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			s.processEvent(ctx, envelope.Event)
		}()
		return

	default:
		w.WriteHeader(http.StatusOK)
	}
}

// processEvent runs the dispatch flow for one event and posts the reply.
func (s *Server) processEvent(ctx context.Context, ev innerEvent) {
	if !s.wantsEvent(ev) {
		return
	}

	logger := s.logger.With("channel", ev.Channel, "ts", ev.TS)

	botID, err := s.botIdentity(ctx)
	if err != nil {
		logger.Error("bot identity lookup failed", "error", err)
		return
	}
	if ev.User == botID {
		return
	}

	threadTS := ev.ThreadTS
	if threadTS == "" {
		threadTS = ev.TS
	}

	// Post a placeholder immediately, then edit it in place as processing
	// advances. The final edit is the reply itself.
	statusTS, err := s.slack.PostMessage(ctx, ev.Channel, "Thinking...", threadTS)
	if err != nil {
		logger.Error("status post failed", "error", err)
		return
	}
	status := func(text string) {
		if s.opts.Verbose {
			logger.Info("status", "text", text)
		}
		if err := s.slack.UpdateMessage(ctx, ev.Channel, statusTS, text); err != nil {
			logger.Warn("status update failed", "error", err)
		}
	}

	history, err := s.buildHistory(ctx, ev, botID)
	if err != nil {
		logger.Error("history fetch failed", "error", err)
		status("I couldn't read this conversation. Please try again.")
		return
	}

	reply := s.orchestrator.Process(ctx, history, &agents.Context{
		Channel:   ev.Channel,
		ThreadTS:  threadTS,
		BotUserID: botID,
		User:      ev.User,
		Status:    status,
	})

	if err := s.slack.UpdateMessage(ctx, ev.Channel, statusTS, reply); err != nil {
		logger.Error("reply update failed", "error", err)
	}
}

// wantsEvent filters to the events the bot responds to: direct mentions
// anywhere, and plain messages in DMs. Bot messages and edited or deleted
// message subtypes never dispatch.
func (s *Server) wantsEvent(ev innerEvent) bool {
	if ev.BotID != "" || ev.Subtype != "" || ev.User == "" {
		return false
	}
	switch ev.Type {
	case "app_mention":
		return true
	case "message":
		return ev.ChannelType == "im"
	default:
		return false
	}
}

// buildHistory reconstructs the conversation. Inside a thread the whole
// thread becomes history, with the bot's turns as assistant messages; a
// bare message becomes a single-turn history.
func (s *Server) buildHistory(ctx context.Context, ev innerEvent, botID string) (agents.History, error) {
	if ev.ThreadTS == "" {
		return agents.History{{Role: agents.RoleUser, Content: s.stripMention(ev.Text, botID)}}, nil
	}

	raw, err := s.slack.FetchReplies(ctx, ev.Channel, ev.ThreadTS, 50)
	if err != nil {
		return nil, fmt.Errorf("fetching thread: %w", err)
	}

	history := make(agents.History, 0, len(raw))
	for _, m := range raw {
		if m.Text == "" {
			continue
		}
		role := agents.RoleUser
		if m.User == botID || (m.User == "" && m.BotID != "") {
			role = agents.RoleAssistant
		}
		history = append(history, agents.Message{Role: role, Content: s.stripMention(m.Text, botID)})
	}
	if len(history) == 0 {
		history = agents.History{{Role: agents.RoleUser, Content: s.stripMention(ev.Text, botID)}}
	}
	return history, nil
}

// stripMention removes the bot's own mention from message text so the
// models see the question, not the addressing. Mentions of other users
// stay; they're content.
func (s *Server) stripMention(text, botID string) string {
	cleaned := strings.ReplaceAll(text, fmt.Sprintf("<@%s>", botID), "")
	return strings.TrimSpace(cleaned)
}

// botIdentity memoizes the bot's user id. Failed lookups are retried on
// the next event rather than cached.
func (s *Server) botIdentity(ctx context.Context) (string, error) {
	s.botMu.Lock()
	defer s.botMu.Unlock()

	if s.botUserID != "" {
		return s.botUserID, nil
	}
	id, err := s.slack.BotIdentity(ctx)
	if err != nil {
		return "", err
	}
	s.botUserID = id
	return id, nil
}
