package gen

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/szaher/meemo/internal/llm"
)

// NameExtraction is the structured record for pulling a learner's name
// out of free-form chat.
type NameExtraction struct {
	Name       string `json:"name" jsonschema:"description=The person's name; empty if no name was given"`
	Confidence string `json:"confidence" jsonschema:"enum=high,enum=medium,enum=low,description=How confident the extraction is"`
}

// GoalExtraction is the structured record for the learner's goal, or
// their wish to skip stating one.
type GoalExtraction struct {
	Goal        string `json:"goal" jsonschema:"description=The learning goal; empty if none stated"`
	WantsToSkip bool   `json:"wants_to_skip" jsonschema:"description=True if the user wants to skip goal setting"`
}

// ConversationAnalysis classifies a learner utterance for routing. Its
// result is advisory input to the deterministic router, never a bypass.
type ConversationAnalysis struct {
	IsQuestion     bool   `json:"is_question" jsonschema:"description=True if the message asks a question"`
	SuggestedRoute string `json:"suggested_route,omitempty" jsonschema:"description=Optional suggested next node"`
}

// AssessmentEvaluation is the structured judgment of an assessment
// answer.
type AssessmentEvaluation struct {
	Judgment       string `json:"judgment" jsonschema:"enum=correct,enum=partial,enum=incorrect,description=Overall judgment of the answer"`
	ShouldPass     bool   `json:"should_pass" jsonschema:"description=True if the answer demonstrates sufficient understanding"`
	NeedsReview    bool   `json:"needs_review" jsonschema:"description=True if the topic should be re-taught"`
	WhatWasCorrect string `json:"what_was_correct" jsonschema:"description=What the answer got right"`
	WhatWasMissing string `json:"what_was_missing" jsonschema:"description=What the answer missed"`
}

// SlideExtraction is the structured record of key points and a visual
// description for a slide.
type SlideExtraction struct {
	KeyPoints         []string `json:"key_points" jsonschema:"description=Short key points from the content"`
	VisualDescription string   `json:"visual_description" jsonschema:"description=One-sentence description of a diagram for the content"`
}

// ToolFor builds a tool definition whose input schema is reflected
// from the given record type.
func ToolFor[T any](name, description string) llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        name,
		Description: description,
		InputSchema: schemaProperties[T](),
	}
}

// schemaProperties reflects T into the JSON-schema properties object
// expected as a tool input schema.
func schemaProperties[T any]() map[string]interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	raw, err := json.Marshal(schema.Properties)
	if err != nil {
		return map[string]interface{}{}
	}
	props := make(map[string]interface{})
	if err := json.Unmarshal(raw, &props); err != nil {
		return map[string]interface{}{}
	}
	return props
}
