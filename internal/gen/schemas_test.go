package gen

import (
	"testing"
)

func TestToolForReflectsSchema(t *testing.T) {
	tool := ToolFor[AssessmentEvaluation]("evaluate_answer", "Judge the answer")

	if tool.Name != "evaluate_answer" {
		t.Errorf("name = %q", tool.Name)
	}
	for _, field := range []string{"judgment", "should_pass", "needs_review", "what_was_correct", "what_was_missing"} {
		if _, ok := tool.InputSchema[field]; !ok {
			t.Errorf("schema missing field %q: %v", field, tool.InputSchema)
		}
	}
}

func TestToolForEnumFields(t *testing.T) {
	tool := ToolFor[NameExtraction]("extract_name", "")

	prop, ok := tool.InputSchema["confidence"].(map[string]interface{})
	if !ok {
		t.Fatalf("confidence property shape: %T", tool.InputSchema["confidence"])
	}
	enum, ok := prop["enum"].([]interface{})
	if !ok || len(enum) != 3 {
		t.Errorf("confidence enum = %v", prop["enum"])
	}
}
