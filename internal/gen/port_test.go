package gen

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/szaher/meemo/internal/llm"
)

func TestGenerateReturnsContent(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Content: "hello learner"})
	port := NewPort(client, "test-model")

	got, err := port.Generate(context.Background(), "be brief", []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "hello learner" {
		t.Errorf("content = %q", got)
	}

	calls := client.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].System != "be brief" || calls[0].Model != "test-model" {
		t.Errorf("request = %+v", calls[0])
	}
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	client := llm.NewMockClient(
		llm.MockResponse{Error: errors.New("overloaded")},
		llm.MockResponse{Content: "second try"},
	)
	port := NewPort(client, "test-model", WithRetry(RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		BackoffFactor:   1.0,
	}))

	got, err := port.Generate(context.Background(), "", []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "second try" {
		t.Errorf("content = %q", got)
	}
	if n := len(client.Calls()); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestGenerateExhaustsRetries(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Error: errors.New("down")})
	port := NewPort(client, "test-model", WithRetry(RetryPolicy{
		MaxAttempts:     2,
		InitialInterval: time.Millisecond,
		BackoffFactor:   1.0,
	}))

	_, err := port.Generate(context.Background(), "", []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("error = %v, want attempt count", err)
	}
}

func TestGenerateStreamForwardsTokens(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Content: "streamed text"})
	port := NewPort(client, "test-model")

	var tokens []string
	got, err := port.GenerateStream(context.Background(), "", []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		func(tok string) { tokens = append(tokens, tok) })
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}
	if got != "streamed text" {
		t.Errorf("content = %q", got)
	}
	if strings.Join(tokens, "") != "streamed text" {
		t.Errorf("tokens = %v", tokens)
	}
}

func TestExtractFromToolCall(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{
		ToolCalls: []llm.ToolCall{{
			Name:  "extract_name",
			Input: map[string]interface{}{"name": "Sam", "confidence": "high"},
		}},
	})
	port := NewPort(client, "test-model")

	var rec NameExtraction
	tool := ToolFor[NameExtraction]("extract_name", "Pull the name out of the message")
	err := port.Extract(context.Background(), tool, "", []llm.Message{{Role: llm.RoleUser, Content: "I'm Sam"}}, &rec)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if rec.Name != "Sam" || rec.Confidence != "high" {
		t.Errorf("record = %+v", rec)
	}

	// The tool must be on the request with a use directive.
	req := client.Calls()[0]
	if len(req.Tools) != 1 || req.Tools[0].Name != "extract_name" {
		t.Errorf("tools = %+v", req.Tools)
	}
	if !strings.Contains(req.System, "extract_name") {
		t.Errorf("system prompt missing tool directive: %q", req.System)
	}
}

func TestExtractAcceptsInlineJSON(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{
		Content: "```json\n{\"goal\": \"pass the exam\", \"wants_to_skip\": false}\n```",
	})
	port := NewPort(client, "test-model")

	var rec GoalExtraction
	tool := ToolFor[GoalExtraction]("extract_goal", "Pull the goal out of the message")
	err := port.Extract(context.Background(), tool, "", []llm.Message{{Role: llm.RoleUser, Content: "exam"}}, &rec)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if rec.Goal != "pass the exam" || rec.WantsToSkip {
		t.Errorf("record = %+v", rec)
	}
}

func TestExtractFailsClosed(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Content: "Sure! The name is Sam."})
	port := NewPort(client, "test-model")

	var rec NameExtraction
	tool := ToolFor[NameExtraction]("extract_name", "")
	err := port.Extract(context.Background(), tool, "", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, &rec)
	if err == nil {
		t.Fatal("expected error for prose response")
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"{\"a\": 1}", "{\"a\": 1}"},
		{"```json\n{\"a\": 1}\n```", "{\"a\": 1}"},
		{"```\n{\"a\": 1}\n```", "{\"a\": 1}"},
		{"  {\"a\": 1}  ", "{\"a\": 1}"},
	}
	for _, tt := range tests {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
