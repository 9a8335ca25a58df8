// ABOUTME: The coordinator responder: plans which specialists to invoke and synthesizes their results.
// ABOUTME: Invokes planned responders sequentially; failures are recorded, not fatal.

package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/slack-dispatch/internal/llm"
)

const coordinatorApology = "I wasn't able to coordinate a response to that request. Please try again."

// plannedResult pairs a responder id with what it returned.
type plannedResult struct {
	ID      string
	Outcome Outcome
}

// planResult is the structured output contract for the planning call.
type planResult struct {
	Responders []string `json:"responders" jsonschema:"description=Responder ids to invoke in order. Empty if none apply."`
	Reasoning  string   `json:"reasoning" jsonschema:"description=Brief explanation of the plan"`
}

var planSchema = llm.GenerateSchema[planResult]()

// SupervisorResponder is the coordinator. It plans a set of specialized
// responders, invokes them in plan order, and synthesizes their outcomes
// into a single reply. An empty plan means the coordinator answers directly
// with its own higher-capability model.
type SupervisorResponder struct {
	llm       llm.Client
	registry  *Registry
	model     string
	planModel string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewSupervisorResponder builds the coordinator against a directory.
// planModel handles the planning decision; model handles direct answers
// and synthesis.
func NewSupervisorResponder(client llm.Client, registry *Registry, model, planModel string, timeout time.Duration, logger *slog.Logger) *SupervisorResponder {
	if planModel == "" {
		planModel = model
	}
	return &SupervisorResponder{
		llm:       client,
		registry:  registry,
		model:     model,
		planModel: planModel,
		timeout:   timeout,
		logger:    logger.With("component", "supervisor"),
	}
}

func (r *SupervisorResponder) Descriptor() Descriptor {
	return Descriptor{
		ID:         SupervisorID,
		Capability: "Coordinates specialized responders for complex requests",
	}
}

func (r *SupervisorResponder) CanHandle(query string) bool {
	return true
}

func (r *SupervisorResponder) Respond(ctx context.Context, history History, rctx *Context) Outcome {
	rctx.SetStatus("Analyzing your request...")

	plan := r.plan(ctx, history.LastUserMessage())
	if len(plan) == 0 {
		return r.answerDirectly(ctx, history)
	}

	// Invoke in plan order, sequentially. A failing responder contributes
	// its failure to synthesis instead of aborting the rest of the plan.
	results := make([]plannedResult, 0, len(plan))
	for _, id := range plan {
		resp, err := r.registry.Lookup(id)
		if err != nil {
			r.logger.Warn("planned responder not in directory, skipping", "id", id)
			continue
		}
		rctx.SetStatus(fmt.Sprintf("Consulting %s...", id))
		results = append(results, plannedResult{ID: id, Outcome: resp.Respond(ctx, history, rctx)})
	}

	rctx.SetStatus("Putting together an answer...")
	return r.synthesize(ctx, history, results)
}

// plan asks the planning model which specialized responders apply. On any
// failure it returns an empty plan, which degrades to a direct answer.
func (r *SupervisorResponder) plan(ctx context.Context, query string) []string {
	descs := r.registry.Specialized()
	if len(descs) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, d := range descs {
		fmt.Fprintf(&sb, "- %s: %s\n", d.ID, d.Capability)
	}

	planCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var result planResult
	err := r.llm.Decide(planCtx, llm.DecisionRequest{
		Model: r.planModel,
		System: "You plan which specialized responders should handle a user request.\n" +
			"Available responders:\n" + sb.String() +
			"Pick only responders whose capability clearly applies. Return an empty list if none do.",
		Prompt:     query,
		SchemaName: "invocation_plan",
		Schema:     planSchema,
		MaxTokens:  300,
	}, &result)
	if err != nil {
		r.logger.Warn("planning call failed, answering directly", "error", err)
		return nil
	}

	r.logger.Info("plan", "responders", result.Responders, "reasoning", result.Reasoning)
	return result.Responders
}

// answerDirectly handles the empty-plan case with the coordinator's own model.
func (r *SupervisorResponder) answerDirectly(ctx context.Context, history History) Outcome {
	genCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.llm.Generate(genCtx, llm.GenerateRequest{
		Model:    r.model,
		System:   chatSystemPrompt(),
		Messages: toLLMMessages(history),
	})
	if err != nil {
		r.logger.Error("direct answer failed", "error", err)
		return Outcome{OK: false, Text: coordinatorApology}
	}
	return Outcome{OK: true, Text: FormatForSlack(text)}
}

// synthesize folds the collected outcomes into one reply. Synthesis runs
// only after every planned responder has returned.
func (r *SupervisorResponder) synthesize(ctx context.Context, history History, results []plannedResult) Outcome {
	var sb strings.Builder
	for _, res := range results {
		if res.Outcome.OK {
			fmt.Fprintf(&sb, "%s:\n%s\n", res.ID, res.Outcome.Text)
			if res.Outcome.Data != nil {
				if data, err := json.Marshal(res.Outcome.Data); err == nil {
					fmt.Fprintf(&sb, "(data: %s)\n", data)
				}
			}
		} else {
			fmt.Fprintf(&sb, "%s: unavailable (%s)\n", res.ID, res.Outcome.Text)
		}
		sb.WriteString("\n")
	}

	messages := append(toLLMMessages(history),
		llm.Message{Role: "assistant", Content: "Results from specialized responders:\n\n" + sb.String()},
		llm.Message{Role: "user", Content: "Using those results, write the final reply to my request. If a responder was unavailable, say so briefly rather than guessing."},
	)

	genCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.llm.Generate(genCtx, llm.GenerateRequest{
		Model:    r.model,
		System:   chatSystemPrompt(),
		Messages: messages,
	})
	if err != nil {
		r.logger.Error("synthesis failed", "error", err)
		return Outcome{OK: false, Text: coordinatorApology}
	}

	return Outcome{OK: true, Text: FormatForSlack(text)}
}
