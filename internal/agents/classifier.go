// ABOUTME: Two-tier escalation classifier: deterministic rules first, model judgment second.
// ABOUTME: Produces a tagged decision so callers can audit which tier fired.

package agents

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/2389/slack-dispatch/internal/llm"
)

// DecisionKind tags how an escalation decision was reached.
type DecisionKind int

const (
	// RuleMatched means a deterministic pattern fired; the model was not consulted.
	RuleMatched DecisionKind = iota
	// ModelJudged means no rule fired and the judgment model answered.
	ModelJudged
	// Inconclusive means no rule fired and the judgment call failed.
	// The caller decides the fallback; see ShouldEscalate.
	Inconclusive
)

// Decision is the classifier's tagged output.
type Decision struct {
	Kind     DecisionKind
	Escalate bool
	Target   string // responder id; only set for rule matches
	Reason   string
}

// ShouldEscalate maps the decision to a boolean. An inconclusive decision
// degrades to the primary responder answering directly rather than failing
// the request. This is the only place that mapping lives.
func (d Decision) ShouldEscalate() bool {
	if d.Kind == Inconclusive {
		return false
	}
	return d.Escalate
}

// escalationRule pairs a pattern with the responder that should take over
// when it matches. Rules are evaluated in order; first match wins.
type escalationRule struct {
	pattern *regexp.Regexp
	target  string
	reason  string
}

// Every rule currently targets the supervisor: complex requests go through
// planning rather than straight to a specialist, so the coordinator can
// combine capabilities when the request needs more than one.
var defaultRules = []escalationRule{
	{regexp.MustCompile(`(?i)summar(ize|ise|y)`), SupervisorID, "summarization request"},
	{regexp.MustCompile(`(?i)(copy|move|transfer|migrate).*thread`), SupervisorID, "thread transfer request"},
	{regexp.MustCompile(`(?i)weather|temperature|forecast`), SupervisorID, "weather request"},
	{regexp.MustCompile(`(?i)search|find.*(web|online|internet)|google`), SupervisorID, "web search request"},
	{regexp.MustCompile(`(?i)metrics|monitoring|latency|error rate`), SupervisorID, "metrics request"},
	{regexp.MustCompile(`(?i)analyze|investigate|research`), SupervisorID, "analysis request"},
	{regexp.MustCompile(`(?i)slack\.com/archives/`), SupervisorID, "message contains thread links"},
}

const judgmentSystem = `You decide whether a user request needs escalation to a coordinator with access to specialized capabilities (weather lookup, web search, system metrics, thread operations), or whether a general-purpose chat model can answer it directly. Simple factual questions, greetings, and conversational messages do not need escalation.`

// judgmentResult is the structured output contract for the judgment tier.
type judgmentResult struct {
	Escalate bool   `json:"escalate" jsonschema:"description=True if the request needs specialized capabilities"`
	Reason   string `json:"reason" jsonschema:"description=One sentence explaining the decision"`
}

var judgmentSchema = llm.GenerateSchema[judgmentResult]()

// Classifier decides whether a query escalates past the primary responder.
type Classifier struct {
	llm     llm.Client
	model   string
	timeout time.Duration
	rules   []escalationRule
	logger  *slog.Logger
}

// NewClassifier builds a classifier with the default rule table.
func NewClassifier(client llm.Client, model string, timeout time.Duration, logger *slog.Logger) *Classifier {
	return &Classifier{
		llm:     client,
		model:   model,
		timeout: timeout,
		rules:   defaultRules,
		logger:  logger.With("component", "classifier"),
	}
}

// Classify runs the rule tier and, when no rule fires, the judgment tier.
// A rule match never consults the model.
func (c *Classifier) Classify(ctx context.Context, query string) Decision {
	if query == "" {
		return Decision{Kind: Inconclusive, Reason: "empty query"}
	}

	for _, rule := range c.rules {
		if rule.pattern.MatchString(query) {
			c.logger.Debug("escalation rule matched", "target", rule.target, "reason", rule.reason)
			return Decision{Kind: RuleMatched, Escalate: true, Target: rule.target, Reason: rule.reason}
		}
	}

	judgeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result judgmentResult
	err := c.llm.Decide(judgeCtx, llm.DecisionRequest{
		Model:      c.model,
		System:     judgmentSystem,
		Prompt:     query,
		SchemaName: "escalation_decision",
		Schema:     judgmentSchema,
		MaxTokens:  200,
	}, &result)
	if err != nil {
		c.logger.Warn("judgment call failed", "error", err)
		return Decision{Kind: Inconclusive, Reason: "judgment unavailable"}
	}

	c.logger.Debug("judgment decision", "escalate", result.Escalate, "reason", result.Reason)
	return Decision{Kind: ModelJudged, Escalate: result.Escalate, Reason: result.Reason}
}
