// Package visual converts a textual description of a diagram into a
// renderable visual spec. Rendering never fails: every error path
// degrades to a type-none visual carrying the description as fallback
// text.
package visual

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/szaher/meemo/internal/gen"
	"github.com/szaher/meemo/internal/llm"
)

// Visual types.
const (
	TypeMermaid = "mermaid"
	TypeSVG     = "svg"
	TypePremade = "premade"
	TypeNone    = "none"
)

// Visual is a renderable diagram spec. Data matches Type: mermaid
// diagram source, an SVGSpec, or a premade asset reference.
type Visual struct {
	Type         string `json:"type"`
	Data         any    `json:"data,omitempty"`
	FallbackText string `json:"fallback_text,omitempty"`
}

// PremadeAsset references a shipped asset, optionally with its payload
// resolved from the asset store.
type PremadeAsset struct {
	Key     string `json:"key"`
	Payload string `json:"payload,omitempty"`
}

// SVGSpec is a structured shape list for simple diagrams.
type SVGSpec struct {
	Shapes []SVGShape `json:"shapes"`
	Arrows []SVGArrow `json:"arrows,omitempty"`
}

// SVGShape is one labeled shape on a 450x350 canvas.
type SVGShape struct {
	Type   string  `json:"type"` // rect, circle, ellipse
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Fill   string  `json:"fill"`
	Label  string  `json:"label,omitempty"`
	LabelX float64 `json:"labelX,omitempty"`
	LabelY float64 `json:"labelY,omitempty"`
}

// SVGArrow connects two points, optionally labeled.
type SVGArrow struct {
	From  [2]float64 `json:"from"`
	To    [2]float64 `json:"to"`
	Label string     `json:"label,omitempty"`
}

// Renderer produces a visual for a slide. Implementations must not
// return errors; failure is expressed as a type-none visual.
type Renderer interface {
	Render(ctx context.Context, description, topic, content string) Visual
}

// premadeAssets maps concept keywords to shipped asset keys.
var premadeAssets = map[string]string{
	"cell":           "cell-structure",
	"mitochondria":   "mitochondria",
	"nucleus":        "nucleus",
	"ribosome":       "ribosome",
	"dna":            "dna-helix",
	"chromosome":     "chromosome",
	"membrane":       "cell-membrane",
	"protein":        "protein-structure",
	"enzyme":         "enzyme-substrate",
	"photosynthesis": "photosynthesis-cycle",
	"respiration":    "cellular-respiration",
	"mitosis":        "mitosis-stages",
	"meiosis":        "meiosis-stages",
}

// Generator implements Renderer using the generation port for
// classification and diagram synthesis.
type Generator struct {
	port   gen.Generator
	assets AssetStore
	logger *slog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithAssetStore sets the premade asset payload store.
func WithAssetStore(s AssetStore) GeneratorOption {
	return func(g *Generator) { g.assets = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator creates a visual generator.
func NewGenerator(port gen.Generator, opts ...GeneratorOption) *Generator {
	g := &Generator{port: port, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Render produces the best available visual for the description.
func (g *Generator) Render(ctx context.Context, description, topic, content string) Visual {
	if key := MatchPremadeAsset(topic, description); key != "" {
		return g.premade(ctx, key, description)
	}

	switch g.classify(ctx, description, content) {
	case TypeMermaid:
		return g.mermaid(ctx, description, topic, content)
	case TypeSVG:
		return g.svg(ctx, description, topic)
	default:
		return Visual{Type: TypeNone, FallbackText: description}
	}
}

// MatchPremadeAsset returns the asset key whose keyword appears in the
// topic or description, or "" if none match.
func MatchPremadeAsset(topic, description string) string {
	topicLower := strings.ToLower(topic)
	descLower := strings.ToLower(description)
	for keyword, asset := range premadeAssets {
		if strings.Contains(topicLower, keyword) || strings.Contains(descLower, keyword) {
			return asset
		}
	}
	return ""
}

func (g *Generator) premade(ctx context.Context, key, description string) Visual {
	asset := PremadeAsset{Key: key}
	if g.assets != nil {
		payload, err := g.assets.Fetch(ctx, key)
		if err != nil {
			g.logger.Warn("premade asset fetch failed", "key", key, "error", err)
		} else {
			asset.Payload = payload
		}
	}
	return Visual{Type: TypePremade, Data: asset, FallbackText: description}
}

// classify decides mermaid, svg, or none for the description.
func (g *Generator) classify(ctx context.Context, description, content string) string {
	if len(content) > 500 {
		content = content[:500]
	}

	system := `Analyze this visual description and determine the best way to visualize it.

Choose ONE:
- "mermaid" if it involves: processes, flows, cycles, steps, hierarchies, relationships, sequences, comparisons
- "svg" if it involves: simple shapes, basic structures, labeled diagrams, spatial layouts, geometric forms
- "none" if it is too complex or better left as a text description

Respond with ONLY one word: mermaid, svg, or none`

	out, err := g.port.Generate(ctx, system, []llm.Message{{
		Role:    llm.RoleUser,
		Content: "Visual description: " + description + "\n\nContent context: " + content,
	}})
	if err != nil {
		g.logger.Warn("visual classification failed", "error", err)
		return TypeNone
	}

	switch v := strings.ToLower(strings.TrimSpace(out)); v {
	case TypeMermaid, TypeSVG, TypeNone:
		return v
	default:
		g.logger.Warn("invalid visual type, defaulting to none", "got", v)
		return TypeNone
	}
}

func (g *Generator) mermaid(ctx context.Context, description, topic, content string) Visual {
	if len(content) > 500 {
		content = content[:500]
	}

	system := `Convert the description into a Mermaid diagram.

Generate VALID Mermaid syntax. Choose the most appropriate diagram type:
- flowchart TD/LR for processes, flows
- graph TD/LR for relationships
- sequenceDiagram for interactions
- classDiagram for structures

Rules:
1. Use simple, short node IDs (A, B, C1, etc)
2. Keep labels concise (max 20 chars)
3. Use emojis sparingly
4. Ensure all syntax is valid

Return ONLY the Mermaid code, no explanation, no markdown fences.`

	out, err := g.port.Generate(ctx, system, []llm.Message{{
		Role:    llm.RoleUser,
		Content: "Topic: " + topic + "\nVisual description: " + description + "\nContent: " + content,
	}})
	if err != nil {
		g.logger.Warn("mermaid generation failed", "topic", topic, "error", err)
		return Visual{Type: TypeNone, FallbackText: description}
	}

	code := CleanMermaid(out)
	if code == "" {
		return Visual{Type: TypeNone, FallbackText: description}
	}
	return Visual{Type: TypeMermaid, Data: code, FallbackText: description}
}

// CleanMermaid strips markdown code fences the model sometimes wraps
// diagrams in.
func CleanMermaid(code string) string {
	code = strings.TrimSpace(code)
	code = strings.TrimPrefix(code, "```mermaid")
	code = strings.TrimPrefix(code, "```")
	code = strings.TrimSuffix(strings.TrimSpace(code), "```")
	return strings.TrimSpace(code)
}

func (g *Generator) svg(ctx context.Context, description, topic string) Visual {
	system := `Create instructions for a simple SVG diagram.

Generate a JSON object with this structure:
{
  "shapes": [
    {"type": "rect|circle|ellipse", "x": 0-400, "y": 0-300, "width": 0-200, "height": 0-200, "fill": "color", "label": "text", "labelX": 0-400, "labelY": 0-300}
  ],
  "arrows": [
    {"from": [x1, y1], "to": [x2, y2], "label": "text"}
  ]
}

Rules:
1. Keep it simple (max 5 shapes)
2. Use colors: #4CAF50 (green), #2196F3 (blue), #FF9800 (orange), #9C27B0 (purple)
3. Canvas size: 450x350
4. Make labels short
5. Ensure shapes do not overlap

Return ONLY valid JSON, no markdown.`

	out, err := g.port.Generate(ctx, system, []llm.Message{{
		Role:    llm.RoleUser,
		Content: "Topic: " + topic + "\nDescription: " + description,
	}})
	if err != nil {
		g.logger.Warn("svg generation failed", "topic", topic, "error", err)
		return Visual{Type: TypeNone, FallbackText: description}
	}

	var spec SVGSpec
	if err := json.Unmarshal([]byte(cleanJSON(out)), &spec); err != nil || len(spec.Shapes) == 0 {
		g.logger.Warn("svg spec did not parse", "topic", topic, "error", err)
		return Visual{Type: TypeNone, FallbackText: description}
	}
	return Visual{Type: TypeSVG, Data: spec, FallbackText: description}
}

func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
