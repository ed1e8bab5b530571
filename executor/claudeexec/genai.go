/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package claudeexec

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// genAI holds OpenTelemetry counters for model usage: prompt and completion
// tokens plus tool invocations, dimensioned by model and repository.
// Counter creation degrades to no-ops rather than failing the executor.
type genAI struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	toolCalls        metric.Int64Counter
}

func newGenAI() *genAI {
	meter := otel.Meter("issuepilot.agent", metric.WithInstrumentationVersion("1.0.0"))

	promptTokens, err := meter.Int64Counter("genai.token.prompt",
		metric.WithDescription("The number of prompt tokens used"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		slog.Warn("Failed to create prompt tokens counter", "error", err)
		promptTokens = noop.Int64Counter{}
	}
	completionTokens, err := meter.Int64Counter("genai.token.completion",
		metric.WithDescription("The number of completion tokens used"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		slog.Warn("Failed to create completion tokens counter", "error", err)
		completionTokens = noop.Int64Counter{}
	}
	toolCalls, err := meter.Int64Counter("genai.tool.calls",
		metric.WithDescription("The number of tool calls made during execution"),
		metric.WithUnit("{calls}"))
	if err != nil {
		slog.Warn("Failed to create tool call counter", "error", err)
		toolCalls = noop.Int64Counter{}
	}
	return &genAI{
		promptTokens:     promptTokens,
		completionTokens: completionTokens,
		toolCalls:        toolCalls,
	}
}

func (m *genAI) recordTokens(ctx context.Context, model, repo string, prompt, completion int64) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("repository", repo),
	)
	m.promptTokens.Add(ctx, prompt, attrs)
	m.completionTokens.Add(ctx, completion, attrs)
}

func (m *genAI) recordToolCall(ctx context.Context, model, repo, tool string) {
	m.toolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("repository", repo),
		attribute.String("tool", tool),
	))
}
