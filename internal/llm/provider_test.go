package llm

import (
	"context"
	"testing"
)

func TestParseModelString(t *testing.T) {
	// Pin provider inference to the explicit cases.
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "test")

	tests := []struct {
		model        string
		wantProvider Provider
		wantName     string
	}{
		{"anthropic/claude-sonnet-4", ProviderAnthropic, "claude-sonnet-4"},
		{"openai/gpt-4o", ProviderOpenAI, "gpt-4o"},
		{"claude-sonnet-4-20250514", ProviderAnthropic, "claude-sonnet-4-20250514"},
		{"gpt-4o-mini", ProviderOpenAI, "gpt-4o-mini"},
		{"o3-mini", ProviderOpenAI, "o3-mini"},
		{"some-local-model", ProviderAnthropic, "some-local-model"},
	}
	for _, tt := range tests {
		provider, name := ParseModelString(tt.model)
		if provider != tt.wantProvider || name != tt.wantName {
			t.Errorf("ParseModelString(%q) = (%s, %s), want (%s, %s)",
				tt.model, provider, name, tt.wantProvider, tt.wantName)
		}
	}
}

func TestParseModelStringEnvFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "set")
	t.Setenv("ANTHROPIC_API_KEY", "")

	provider, _ := ParseModelString("mystery-model")
	if provider != ProviderOpenAI {
		t.Errorf("provider = %s, want openai when only OPENAI_API_KEY is set", provider)
	}
}

func TestMockClientSequence(t *testing.T) {
	m := NewMockClient(
		MockResponse{Content: "first"},
		MockResponse{Content: "second"},
	)

	for _, want := range []string{"first", "second", "second"} {
		resp, err := m.Chat(context.Background(), ChatRequest{Model: "m"})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if resp.Content != want {
			t.Errorf("content = %q, want %q", resp.Content, want)
		}
	}

	if n := len(m.Calls()); n != 3 {
		t.Errorf("recorded calls = %d, want 3", n)
	}
}
