// Package gen implements the generation port: the single gateway the
// tutoring state machine uses for free-form text generation and
// constrained structured extraction, with a shared rate limit and a
// per-invocation retry policy.
package gen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/szaher/meemo/internal/llm"
	"github.com/szaher/meemo/internal/telemetry"
)

// Generator is the capability the state machine, slide builder, and
// visual renderer consume.
type Generator interface {
	// Generate returns a free-form completion.
	Generate(ctx context.Context, system string, messages []llm.Message) (string, error)

	// GenerateStream returns the full completion, invoking onToken for
	// each text delta in generation order. onToken may be nil.
	GenerateStream(ctx context.Context, system string, messages []llm.Message, onToken func(string)) (string, error)

	// Extract asks the model to produce a record conforming to the
	// tool's input schema and unmarshals it into out. It fails closed:
	// callers must fall back to a deterministic heuristic on error.
	Extract(ctx context.Context, tool llm.ToolDefinition, system string, messages []llm.Message, out any) error
}

// Port implements Generator on top of an llm.Client.
type Port struct {
	client      llm.Client
	model       string
	temperature float64
	maxTokens   int
	limiter     *Limiter
	retry       RetryPolicy
	metrics     *telemetry.Metrics
	logger      *slog.Logger
}

// PortOption configures a Port.
type PortOption func(*Port)

// WithLimiter sets the shared rate limiter.
func WithLimiter(l *Limiter) PortOption {
	return func(p *Port) { p.limiter = l }
}

// WithRetry sets the retry policy applied per invocation.
func WithRetry(r RetryPolicy) PortOption {
	return func(p *Port) { p.retry = r }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) PortOption {
	return func(p *Port) { p.metrics = m }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) PortOption {
	return func(p *Port) { p.temperature = t }
}

// WithMaxTokens sets the per-call output token limit.
func WithMaxTokens(n int) PortOption {
	return func(p *Port) { p.maxTokens = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PortOption {
	return func(p *Port) { p.logger = l }
}

// NewPort creates a generation port for the given client and model.
func NewPort(client llm.Client, model string, opts ...PortOption) *Port {
	p := &Port{
		client:      client,
		model:       model,
		temperature: 0.7,
		maxTokens:   2048,
		retry:       DefaultRetryPolicy(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Port) buildRequest(system string, messages []llm.Message) llm.ChatRequest {
	temp := p.temperature
	return llm.ChatRequest{
		Model:       p.model,
		Messages:    messages,
		System:      system,
		MaxTokens:   p.maxTokens,
		Temperature: &temp,
	}
}

func (p *Port) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

func (p *Port) record(kind string, err error, usage llm.TokenUsage, start time.Time) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	if p.metrics != nil {
		p.metrics.RecordGeneration(kind, status, usage.InputTokens, usage.OutputTokens)
	}
	p.logger.Debug("generation call", "kind", kind, "status", status,
		"duration", time.Since(start), "tokens", usage.Total())
}

// Generate returns a free-form completion, retrying per the policy.
func (p *Port) Generate(ctx context.Context, system string, messages []llm.Message) (string, error) {
	var content string
	err := p.retry.Do(ctx, func() error {
		if err := p.wait(ctx); err != nil {
			return err
		}
		start := time.Now()
		resp, err := p.client.Chat(ctx, p.buildRequest(system, messages))
		if err != nil {
			p.record("generate", err, llm.TokenUsage{}, start)
			return err
		}
		p.record("generate", nil, resp.Usage, start)
		content = resp.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return content, nil
}

// GenerateStream returns the full completion while forwarding text
// deltas to onToken in generation order. Retries restart the stream
// from the beginning; deltas from a failed attempt are not replayed.
func (p *Port) GenerateStream(ctx context.Context, system string, messages []llm.Message, onToken func(string)) (string, error) {
	var content string
	err := p.retry.Do(ctx, func() error {
		if err := p.wait(ctx); err != nil {
			return err
		}
		start := time.Now()

		events, err := p.client.ChatStream(ctx, p.buildRequest(system, messages))
		if err != nil {
			p.record("generate_stream", err, llm.TokenUsage{}, start)
			return err
		}

		var sb strings.Builder
		var usage llm.TokenUsage
		for ev := range events {
			switch ev.Type {
			case "text":
				sb.WriteString(ev.Text)
				if onToken != nil {
					onToken(ev.Text)
				}
			case "done":
				if ev.Response != nil {
					usage = ev.Response.Usage
					if sb.Len() == 0 && ev.Response.Content != "" {
						sb.WriteString(ev.Response.Content)
						if onToken != nil {
							onToken(ev.Response.Content)
						}
					}
				}
			case "error":
				p.record("generate_stream", ev.Error, usage, start)
				return ev.Error
			}
		}

		p.record("generate_stream", nil, usage, start)
		content = sb.String()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate stream: %w", err)
	}
	return content, nil
}

// Extract asks the model for a structured record via a single tool
// call. If the model answers with plain JSON instead of a tool call,
// that is accepted too. Any other shape is an error; callers fall back
// to their deterministic heuristics.
func (p *Port) Extract(ctx context.Context, tool llm.ToolDefinition, system string, messages []llm.Message, out any) error {
	req := p.buildRequest(system, messages)
	req.Tools = []llm.ToolDefinition{tool}
	if req.System != "" {
		req.System += "\n\n"
	}
	req.System += fmt.Sprintf("Respond by calling the %s tool exactly once.", tool.Name)

	var resp *llm.ChatResponse
	err := p.retry.Do(ctx, func() error {
		if err := p.wait(ctx); err != nil {
			return err
		}
		start := time.Now()
		r, err := p.client.Chat(ctx, req)
		if err != nil {
			p.record("extract", err, llm.TokenUsage{}, start)
			return err
		}
		p.record("extract", nil, r.Usage, start)
		resp = r
		return nil
	})
	if err != nil {
		return fmt.Errorf("extract %s: %w", tool.Name, err)
	}

	for _, tc := range resp.ToolCalls {
		if tc.Name != tool.Name {
			continue
		}
		raw, err := json.Marshal(tc.Input)
		if err != nil {
			return fmt.Errorf("extract %s: marshal tool input: %w", tool.Name, err)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("extract %s: nonconforming record: %w", tool.Name, err)
		}
		return nil
	}

	// Some models answer inline JSON instead of calling the tool.
	trimmed := strings.TrimSpace(stripFences(resp.Content))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), out); err == nil {
			return nil
		}
	}

	return fmt.Errorf("extract %s: no conforming record in response", tool.Name)
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
