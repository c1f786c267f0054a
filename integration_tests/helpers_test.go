package integration_tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/szaher/meemo/internal/curriculum"
	"github.com/szaher/meemo/internal/llm"
	"github.com/szaher/meemo/internal/server"
	"github.com/szaher/meemo/internal/session"
	"github.com/szaher/meemo/internal/slide"
	"github.com/szaher/meemo/internal/stream"
	"github.com/szaher/meemo/internal/tutor"
)

// scriptedPort is a gen.Generator whose text output is fixed and whose
// structured extractions are served by tool name.
type scriptedPort struct {
	text        string
	extractions map[string]any
}

func (p *scriptedPort) Generate(ctx context.Context, system string, messages []llm.Message) (string, error) {
	return p.GenerateStream(ctx, system, messages, nil)
}

func (p *scriptedPort) GenerateStream(_ context.Context, _ string, _ []llm.Message, onToken func(string)) (string, error) {
	text := p.text
	if text == "" {
		text = "generated teaching text"
	}
	if onToken != nil {
		onToken(text)
	}
	return text, nil
}

func (p *scriptedPort) Extract(_ context.Context, tool llm.ToolDefinition, _ string, _ []llm.Message, out any) error {
	rec, ok := p.extractions[tool.Name]
	if !ok {
		return fmt.Errorf("no scripted extraction for %s", tool.Name)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// passingPort scripts a learner who states their name and goal and
// passes every assessment.
func passingPort() *scriptedPort {
	return &scriptedPort{
		text: "Hello! Let's learn together.",
		extractions: map[string]any{
			"extract_name": map[string]any{"name": "Sam", "confidence": "high"},
			"extract_goal": map[string]any{"goal": "understand cells", "wants_to_skip": false},
			"evaluate_answer": map[string]any{
				"judgment":    "correct",
				"should_pass": true,
			},
		},
	}
}

// newStack wires a complete in-memory tutoring stack around the port
// and returns the controller with its backing store.
func newStack(t *testing.T, port *scriptedPort, topics []string) (*stream.Controller, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore(0)
	builder := slide.NewBuilder(port, nil, nil)
	engine := tutor.NewEngine(port, builder, "Cell Biology")
	provider := curriculum.NewProvider(curriculum.Curriculum{Course: "Cell Biology", Topics: topics})
	return stream.NewController(engine, store, provider), store
}

// newHTTPStack starts an httptest server on top of a full stack.
func newHTTPStack(t *testing.T, port *scriptedPort, topics []string, opts ...server.ServerOption) *httptest.Server {
	t.Helper()
	controller, _ := newStack(t, port, topics)
	ts := httptest.NewServer(server.NewServer(controller, opts...).Handler())
	t.Cleanup(ts.Close)
	return ts
}
