// ABOUTME: OpenAI-backed implementation of the generation Client.
// ABOUTME: Handles message/tool conversion, the tool-call loop, and transient-failure retries.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// maxToolRounds bounds the tool-call loop so a misbehaving model cannot spin
// the executor forever.
const maxToolRounds = 5

// ErrToolRoundsExceeded indicates the model kept requesting tools past the
// round budget without producing final text.
var ErrToolRoundsExceeded = errors.New("tool call rounds exceeded")

// Config holds OpenAI client configuration.
type Config struct {
	APIKey     string
	BaseURL    string // optional custom endpoint
	MaxRetries int    // retry ceiling for transient failures
}

type openaiClient struct {
	api        openai.Client
	maxRetries int
	logger     *slog.Logger
}

// NewOpenAIClient creates a Client backed by the OpenAI chat completions API.
func NewOpenAIClient(cfg Config, logger *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &openaiClient{
		api:        openai.NewClient(opts...),
		maxRetries: cfg.MaxRetries,
		logger:     logger.With("component", "llm"),
	}, nil
}

func (c *openaiClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, convertMessages(req.Messages)...)

	tools := convertTools(req.Tools)
	toolsByName := make(map[string]Tool, len(req.Tools))
	for _, t := range req.Tools {
		toolsByName[t.Name] = t
	}

	for round := 0; round < maxToolRounds; round++ {
		params := openai.ChatCompletionNewParams{
			Model:               req.Model,
			Messages:            messages,
			MaxCompletionTokens: openai.Int(int64(maxTokens)),
		}
		if len(tools) > 0 {
			params.Tools = tools
		}

		choice, err := c.complete(ctx, params)
		if err != nil {
			return "", err
		}

		if len(choice.Message.ToolCalls) == 0 {
			return choice.Message.Content, nil
		}

		// Echo the assistant turn with its tool calls, then execute each
		// call and append the results, in request order.
		assistantCalls := make([]openai.ChatCompletionMessageToolCallParam, len(choice.Message.ToolCalls))
		for i, tc := range choice.Message.ToolCalls {
			assistantCalls[i] = openai.ChatCompletionMessageToolCallParam{
				ID:   tc.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			}
		}
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfAssistant: &openai.ChatCompletionAssistantMessageParam{
				Content:   openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(choice.Message.Content)},
				ToolCalls: assistantCalls,
			},
		})

		for _, tc := range choice.Message.ToolCalls {
			result := c.executeTool(ctx, toolsByName, tc.Function.Name, tc.Function.Arguments)
			messages = append(messages, openai.ToolMessage(result, tc.ID))
		}
	}

	return "", ErrToolRoundsExceeded
}

func (c *openaiClient) Decide(ctx context.Context, req DecisionRequest, result any) error {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        req.SchemaName,
		Description: openai.String("Structured response schema"),
		Schema:      req.Schema,
		Strict:      openai.Bool(true),
	}

	params := openai.ChatCompletionNewParams{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		MaxTokens: openai.Int(int64(maxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
	}

	choice, err := c.complete(ctx, params)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(choice.Message.Content), result); err != nil {
		return fmt.Errorf("unmarshal decision: %w", err)
	}
	return nil
}

// complete issues one chat completion, retrying transient failures up to the
// configured ceiling with a short backoff.
func (c *openaiClient) complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletionChoice, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		start := time.Now()
		resp, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			if !IsRetryable(ctx, err) {
				break
			}
			continue
		}

		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("no choices in response")
		}

		c.logger.Debug("chat completion",
			"model", params.Model,
			"duration_ms", time.Since(start).Milliseconds(),
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
			"finish_reason", resp.Choices[0].FinishReason,
		)

		return &resp.Choices[0], nil
	}

	return nil, fmt.Errorf("openai chat: %w", lastErr)
}

// executeTool runs one tool call and serializes its result for the model.
// Executor failures are reported back to the model rather than aborting the loop.
func (c *openaiClient) executeTool(ctx context.Context, tools map[string]Tool, name, args string) string {
	tool, ok := tools[name]
	if !ok {
		c.logger.Warn("model requested unknown tool", "tool", name)
		return fmt.Sprintf(`{"error":"unknown tool %q"}`, name)
	}

	result, err := tool.Execute(ctx, json.RawMessage(args))
	if err != nil {
		c.logger.Warn("tool execution failed", "tool", name, "error", err)
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(data)
}

func convertMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))

	for _, msg := range msgs {
		switch msg.Role {
		case "system":
			result = append(result, openai.SystemMessage(msg.Content))
		case "user":
			result = append(result, openai.UserMessage(msg.Content))
		case "assistant":
			result = append(result, openai.AssistantMessage(msg.Content))
		case "tool":
			result = append(result, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}

	return result
}

func convertTools(tools []Tool) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, len(tools))

	for i, t := range tools {
		var params shared.FunctionParameters
		if t.Parameters != nil {
			data, _ := json.Marshal(t.Parameters)
			_ = json.Unmarshal(data, &params)
		}

		result[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  params,
			},
		}
	}

	return result
}

// IsRetryable reports whether a generation failure is worth retrying.
// Rate limits, server errors, and network errors are retryable; client
// errors and context cancellation are not.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return true
		case apiErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	// Network errors (no API response) are generally retryable
	return true
}
