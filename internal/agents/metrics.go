// ABOUTME: Metrics responder: reports system health from a pluggable metrics source.
// ABOUTME: No model involved; the snapshot is formatted deterministically.

package agents

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

const metricsApology = "I couldn't fetch system metrics right now. Please try again."

// MetricsSnapshot is a point-in-time view of system health.
type MetricsSnapshot struct {
	CPUAvgPct    float64 `json:"cpu_avg_pct"`
	CPUMaxPct    float64 `json:"cpu_max_pct"`
	MemAvgPct    float64 `json:"mem_avg_pct"`
	MemMaxPct    float64 `json:"mem_max_pct"`
	ErrorCount   int     `json:"error_count"`
	LatencyP50Ms int     `json:"latency_p50_ms"`
	LatencyP99Ms int     `json:"latency_p99_ms"`
}

// MetricsSource provides snapshots. Production wires a monitoring backend;
// tests wire a fake.
type MetricsSource interface {
	Fetch(ctx context.Context) (*MetricsSnapshot, error)
}

// StaticSource returns a fixed snapshot. Used until a real monitoring
// backend is wired in; also convenient in tests.
type StaticSource struct {
	Snapshot MetricsSnapshot
}

func (s *StaticSource) Fetch(ctx context.Context) (*MetricsSnapshot, error) {
	snap := s.Snapshot
	return &snap, nil
}

// MetricsResponder formats a metrics snapshot for Slack.
type MetricsResponder struct {
	source MetricsSource
	logger *slog.Logger
}

func NewMetricsResponder(source MetricsSource, logger *slog.Logger) *MetricsResponder {
	return &MetricsResponder{
		source: source,
		logger: logger.With("component", "metrics"),
	}
}

func (r *MetricsResponder) Descriptor() Descriptor {
	return Descriptor{
		ID:         MetricsID,
		Capability: "System health metrics: CPU, memory, error counts, latency",
	}
}

var metricsQueryPattern = regexp.MustCompile(`(?i)metrics|monitoring|performance|latency|cpu|memory|error rate|alarms?|alerts?`)

func (r *MetricsResponder) CanHandle(query string) bool {
	return metricsQueryPattern.MatchString(query)
}

func (r *MetricsResponder) Respond(ctx context.Context, history History, rctx *Context) Outcome {
	rctx.SetStatus("Fetching system metrics...")

	snap, err := r.source.Fetch(ctx)
	if err != nil {
		r.logger.Error("metrics fetch failed", "error", err)
		return Outcome{OK: false, Text: metricsApology}
	}

	var sb strings.Builder
	sb.WriteString("*System Metrics*\n")
	fmt.Fprintf(&sb, "• CPU: %.1f%% avg, %.1f%% max\n", snap.CPUAvgPct, snap.CPUMaxPct)
	fmt.Fprintf(&sb, "• Memory: %.1f%% avg, %.1f%% max\n", snap.MemAvgPct, snap.MemMaxPct)
	fmt.Fprintf(&sb, "• Errors (last hour): %d\n", snap.ErrorCount)
	fmt.Fprintf(&sb, "• Latency: p50 %dms, p99 %dms", snap.LatencyP50Ms, snap.LatencyP99Ms)

	return Outcome{OK: true, Text: FormatForSlack(sb.String()), Data: snap}
}
