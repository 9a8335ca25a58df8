// ABOUTME: Web search responder backed by a neural search API.
// ABOUTME: Exposes a search tool to the generation loop and asks the model to cite sources.

package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/2389/slack-dispatch/internal/llm"
)

const (
	defaultSearchURL = "https://api.exa.ai/search"
	maxSearchResults = 5

	searchApology = "I couldn't search the web right now. Please try again."
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"description=The search query"`
}

// SearchResult is one hit returned to the model.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchResponder answers questions about current events and anything that
// needs fresh information, via a search tool the model drives.
type SearchResponder struct {
	llm     llm.Client
	httpc   *http.Client
	model   string
	timeout time.Duration
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewSearchResponder builds the search responder. baseURL overrides the
// default endpoint when non-empty.
func NewSearchResponder(client llm.Client, model string, timeout time.Duration, apiKey, baseURL string, logger *slog.Logger) *SearchResponder {
	if baseURL == "" {
		baseURL = defaultSearchURL
	}
	return &SearchResponder{
		llm:     client,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		model:   model,
		timeout: timeout,
		apiKey:  apiKey,
		baseURL: baseURL,
		logger:  logger.With("component", "search"),
	}
}

func (r *SearchResponder) Descriptor() Descriptor {
	return Descriptor{
		ID:         SearchID,
		Capability: "Web search for current events and up-to-date information",
		Tools:      []string{"search_web"},
	}
}

var searchQueryPattern = regexp.MustCompile(`(?i)search|latest|recent|current|today|news|look up`)

func (r *SearchResponder) CanHandle(query string) bool {
	return searchQueryPattern.MatchString(query)
}

func (r *SearchResponder) Respond(ctx context.Context, history History, rctx *Context) Outcome {
	rctx.SetStatus("Searching the web...")

	genCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.llm.Generate(genCtx, llm.GenerateRequest{
		Model: r.model,
		System: "You answer questions using web search. Call search_web with a focused query, " +
			"then answer from the results. Cite sources as <url|title> links. " +
			"If the results don't answer the question, say so.",
		Messages: toLLMMessages(history),
		Tools: []llm.Tool{{
			Name:        "search_web",
			Description: "Search the web and return titles, URLs, and snippets",
			Parameters:  llm.GenerateSchema[searchArgs](),
			Execute:     r.searchWeb,
		}},
	})
	if err != nil {
		r.logger.Error("search generation failed", "error", err)
		return Outcome{OK: false, Text: searchApology}
	}

	return Outcome{OK: true, Text: FormatForSlack(text)}
}

func (r *SearchResponder) searchWeb(ctx context.Context, args json.RawMessage) (any, error) {
	var in searchArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"query":      in.Query,
		"numResults": maxSearchResults,
		"contents":   map[string]any{"text": map[string]any{"maxCharacters": 500}},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", r.apiKey)

	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search api returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var body struct {
		Results []struct {
			Title string `json:"title"`
			URL   string `json:"url"`
			Text  string `json:"text"`
		} `json:"results"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(body.Results))
	for _, res := range body.Results {
		results = append(results, SearchResult{Title: res.Title, URL: res.URL, Snippet: res.Text})
	}
	return results, nil
}
