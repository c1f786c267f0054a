package slide

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/szaher/meemo/internal/gen"
	"github.com/szaher/meemo/internal/llm"
	"github.com/szaher/meemo/internal/visual"
)

// stubRenderer returns a fixed visual and records what it was asked for.
type stubRenderer struct {
	visual      visual.Visual
	description string
}

func (s *stubRenderer) Render(_ context.Context, description, _, _ string) visual.Visual {
	s.description = description
	return s.visual
}

func newBuilder(renderer visual.Renderer, responses ...llm.MockResponse) *Builder {
	port := gen.NewPort(llm.NewMockClient(responses...), "test-model",
		gen.WithRetry(gen.RetryPolicy{MaxAttempts: 1}))
	return NewBuilder(port, renderer, nil)
}

func TestBuildUsesExtraction(t *testing.T) {
	renderer := &stubRenderer{visual: visual.Visual{Type: visual.TypeMermaid, Data: "graph TD\nA-->B"}}
	b := newBuilder(renderer, llm.MockResponse{
		ToolCalls: []llm.ToolCall{{
			Name: "record_slide",
			Input: map[string]interface{}{
				"key_points":         []string{"cells are small", "cells divide"},
				"visual_description": "a dividing cell",
			},
		}},
	})

	sl := b.Build(context.Background(), "Cells are the unit of life...", "Cell Theory", "Learning Cell Theory", 2)

	if sl.SlideNumber != 2 || sl.Title != "Cell Theory" {
		t.Errorf("slide = %+v", sl)
	}
	if len(sl.KeyPoints) != 2 {
		t.Errorf("key points = %v", sl.KeyPoints)
	}
	if sl.VisualDescription != "a dividing cell" {
		t.Errorf("visual description = %q", sl.VisualDescription)
	}
	if renderer.description != "a dividing cell" {
		t.Errorf("renderer asked for %q", renderer.description)
	}
	if sl.VisualType != visual.TypeMermaid {
		t.Errorf("visual type = %q", sl.VisualType)
	}
}

func TestBuildExtractionFailureFallsBack(t *testing.T) {
	renderer := &stubRenderer{visual: visual.Visual{Type: visual.TypeNone}}
	b := newBuilder(renderer, llm.MockResponse{Content: "not a tool call"})

	sl := b.Build(context.Background(), "content", "Mitosis", "Learning Mitosis", 1)

	if sl.VisualDescription != "Illustration showing Learning Mitosis" {
		t.Errorf("fallback description = %q", sl.VisualDescription)
	}
	if len(sl.KeyPoints) != 0 {
		t.Errorf("key points = %v", sl.KeyPoints)
	}
}

func TestBuildWithoutRenderer(t *testing.T) {
	b := newBuilder(nil, llm.MockResponse{Content: "not a tool call"})

	sl := b.Build(context.Background(), "content", "Topic", "Learning Topic", 1)
	if sl.VisualType != visual.TypeNone {
		t.Errorf("visual type = %q, want none", sl.VisualType)
	}
}

func TestBuildDefaultsTitle(t *testing.T) {
	b := newBuilder(nil, llm.MockResponse{Content: "not a tool call"})

	sl := b.Build(context.Background(), "content", "", "welcome", 0)
	if sl.Title != "Learning Slide" {
		t.Errorf("title = %q", sl.Title)
	}
}

func TestPreviewTruncates(t *testing.T) {
	long := strings.Repeat("x", 400)
	sl := newBuilder(nil, llm.MockResponse{Content: "no"}).
		Build(context.Background(), long, "T", "ctx", 1)

	if len(sl.Content) != contentPreviewLen {
		t.Errorf("preview length = %d, want %d", len(sl.Content), contentPreviewLen)
	}
	if sl.FullContent != long {
		t.Error("full content truncated")
	}
}

func TestPreviewCutsOnRuneBoundary(t *testing.T) {
	// Place a four-byte emoji straddling the preview limit.
	long := strings.Repeat("x", contentPreviewLen-2) + "🎉" + strings.Repeat("y", 100)

	got := preview(long)
	if !utf8.ValidString(got) {
		t.Errorf("preview is not valid UTF-8: %q", got[len(got)-8:])
	}
	if len(got) > contentPreviewLen {
		t.Errorf("preview length = %d, want <= %d", len(got), contentPreviewLen)
	}
	if want := strings.Repeat("x", contentPreviewLen-2); got != want {
		t.Errorf("preview cut at byte %d, want %d", len(got), len(want))
	}
}

func TestPreviewEmptyContent(t *testing.T) {
	if got := preview(""); got != "Content unavailable" {
		t.Errorf("preview(\"\") = %q", got)
	}
}
