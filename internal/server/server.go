// ABOUTME: HTTP server for the events endpoint and health checks.
// ABOUTME: Owns routing, graceful shutdown, and the async event worker context.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/2389/slack-dispatch/internal/agents"
	"github.com/2389/slack-dispatch/internal/dedupe"
	"github.com/2389/slack-dispatch/internal/slackapi"
)

// requestTimeout bounds the async processing of one event end to end.
const requestTimeout = 2 * time.Minute

// Options configures the server.
type Options struct {
	Addr          string
	SigningSecret string
	Verbose       bool // log every status update
}

// Server receives platform events, acknowledges them immediately, and
// dispatches them to the orchestrator in the background.
type Server struct {
	opts         Options
	slack        slackapi.Client
	orchestrator *agents.Orchestrator
	seen         *dedupe.Cache
	logger       *slog.Logger

	botMu     sync.Mutex
	botUserID string
	wg        sync.WaitGroup
}

// New builds a server. The bot's own user id is resolved lazily on the
// first event so construction never touches the network.
func New(opts Options, slack slackapi.Client, orchestrator *agents.Orchestrator, seen *dedupe.Cache, logger *slog.Logger) *Server {
	return &Server{
		opts:         opts,
		slack:        slack,
		orchestrator: orchestrator,
		seen:         seen,
		logger:       logger.With("component", "server"),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/slack/events", methodOnly(http.MethodPost, s.handleEvents))
	mux.HandleFunc("/health", methodOnly(http.MethodGet, s.handleHealth))
	return mux
}

// methodOnly emulates the Go 1.22+ "METHOD /path" mux patterns on older
// toolchains: a GET pattern also matches HEAD, and any other method gets
// 405 with an Allow header.
func methodOnly(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method && !(method == http.MethodGet && r.Method == http.MethodHead) {
			w.Header().Set("Allow", method)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// Run serves until ctx is canceled, then shuts down gracefully and waits
// for in-flight event workers.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown error", "error", err)
		}
		s.wg.Wait()
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
}
