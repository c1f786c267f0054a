package slide

import (
	"context"
	"log/slog"

	"github.com/szaher/meemo/internal/gen"
	"github.com/szaher/meemo/internal/llm"
	"github.com/szaher/meemo/internal/visual"
)

// Builder converts generated teaching content into slides. Build never
// fails: every error path degrades to a slide without a visual.
type Builder struct {
	port     gen.Generator
	renderer visual.Renderer
	logger   *slog.Logger
}

// NewBuilder creates a slide builder.
func NewBuilder(port gen.Generator, renderer visual.Renderer, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{port: port, renderer: renderer, logger: logger}
}

// Build produces a slide for the content. slideContext is a short
// phrase describing the occasion (e.g. "Learning Mitochondria") used
// to synthesize a fallback visual description.
func (b *Builder) Build(ctx context.Context, content, title, slideContext string, slideNumber int) Slide {
	visualDesc := "Illustration showing " + slideContext
	var keyPoints []string

	var extraction gen.SlideExtraction
	tool := gen.ToolFor[gen.SlideExtraction]("record_slide",
		"Record the key points and a visual description for a teaching slide.")
	err := b.port.Extract(ctx, tool,
		"Extract key points and a one-sentence visual description from the teaching content.",
		[]llm.Message{{Role: llm.RoleUser, Content: "Content: " + content}},
		&extraction)
	if err != nil {
		b.logger.Warn("slide extraction failed, using fallback description",
			"title", title, "error", err)
	} else {
		if extraction.VisualDescription != "" {
			visualDesc = extraction.VisualDescription
		}
		keyPoints = extraction.KeyPoints
	}

	v := visual.Visual{Type: visual.TypeNone, FallbackText: visualDesc}
	if b.renderer != nil {
		v = b.renderer.Render(ctx, visualDesc, title, content)
	}

	if title == "" {
		title = "Learning Slide"
	}

	return Slide{
		SlideNumber:       slideNumber,
		Title:             title,
		Content:           preview(content),
		FullContent:       content,
		Topic:             title,
		KeyPoints:         keyPoints,
		VisualDescription: visualDesc,
		VisualType:        v.Type,
		VisualData:        v.Data,
	}
}
