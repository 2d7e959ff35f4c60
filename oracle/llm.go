package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/taxorank/cost"
	"github.com/c360studio/taxorank/llm"
	"github.com/c360studio/taxorank/metric"
)

// DefaultTimeout bounds a single oracle call.
const DefaultTimeout = 2 * time.Minute

// LLM is a Gateway backed by an llm.Completer.
type LLM struct {
	client  llm.Completer
	timeout time.Duration
	metrics *metric.Metrics
	logger  *slog.Logger
}

var _ Gateway = (*LLM)(nil)

// Option configures an LLM gateway.
type Option func(*LLM)

// WithTimeout sets the per-call timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(g *LLM) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithMetrics records every call in m.
func WithMetrics(m *metric.Metrics) Option {
	return func(g *LLM) {
		g.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *LLM) {
		g.logger = logger
	}
}

// NewLLM creates a gateway over client.
func NewLLM(client llm.Completer, opts ...Option) *LLM {
	g := &LLM{
		client:  client,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// complete runs one request under the per-call timeout.
func (g *LLM) complete(ctx context.Context, p Prompt) (string, cost.Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	messages := make([]llm.Message, 0, 2)
	if p.System != "" {
		messages = append(messages, llm.Message{Role: "system", Content: p.System})
	}
	messages = append(messages, llm.Message{Role: "user", Content: p.User})

	start := time.Now()
	resp, err := g.client.Complete(ctx, llm.Request{
		Capability: string(p.Capability),
		Messages:   messages,
		MaxTokens:  p.MaxUnits,
	})

	usage := cost.Zero()
	if err == nil {
		usage = cost.FromTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
	}
	g.metrics.OracleCall(string(p.Kind), llm.ErrorClass(err), time.Since(start), usage)

	if err != nil {
		g.logger.Warn("Oracle call failed",
			"kind", p.Kind,
			"class", llm.ErrorClass(err),
			"error", err)
		return "", usage, fmt.Errorf("%s: %w", p.Kind, err)
	}

	g.logger.Debug("Oracle call completed",
		"kind", p.Kind,
		"request_id", resp.RequestID,
		"model", resp.Model,
		"total_tokens", usage[cost.TotalTokens])
	return resp.Content, usage, nil
}

// Classify asks a yes/no question and reads the answer under p.Verdict.
// Failures read as a negative verdict.
func (g *LLM) Classify(ctx context.Context, p Prompt) ClassificationResult {
	raw, usage, err := g.complete(ctx, p)
	if err != nil {
		return ClassificationResult{Usage: usage, Err: err}
	}

	verdict, err := ParseVerdict(raw, p.Verdict)
	if err != nil {
		g.logger.Warn("Oracle verdict unreadable", "kind", p.Kind, "raw", raw, "error", err)
		return ClassificationResult{Raw: raw, Usage: usage, Err: err}
	}
	return ClassificationResult{Verdict: verdict, Raw: raw, Usage: usage}
}

// GenerateText asks for free text. Failures return FailureText.
func (g *LLM) GenerateText(ctx context.Context, p Prompt) TextResult {
	raw, usage, err := g.complete(ctx, p)
	if err != nil {
		return TextResult{Text: FailureText, Usage: usage, Err: err}
	}
	return TextResult{Text: raw, Usage: usage}
}

// GenerateList asks for a sep-separated list. Failures return a list holding
// only NoneItem.
func (g *LLM) GenerateList(ctx context.Context, p Prompt, sep string) ListResult {
	raw, usage, err := g.complete(ctx, p)
	if err != nil {
		return ListResult{Items: []string{NoneItem}, Usage: usage, Err: err}
	}
	return ListResult{Items: SplitList(raw, sep), Usage: usage}
}
