package tutor

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// RoutingPolicy holds the configurable heuristics the router consults:
// question detection and goal-skip keywords. The exact heuristic is a
// policy choice, not a contract, so both are configuration.
type RoutingPolicy struct {
	questionSrc     string
	questionProgram *vm.Program
	skipKeywords    []string
	useClassifier   bool
}

// DefaultQuestionExpr flags any utterance containing a question mark.
const DefaultQuestionExpr = `text contains "?"`

// DefaultSkipKeywords are the phrases accepted as a goal skip.
func DefaultSkipKeywords() []string {
	return []string{"skip", "let's start", "lets start", "no goal"}
}

// NewRoutingPolicy compiles the question-detection expression. The
// expression sees {text, stage} and must evaluate to a bool.
func NewRoutingPolicy(questionExpr string, skipKeywords []string, useClassifier bool) (*RoutingPolicy, error) {
	if questionExpr == "" {
		questionExpr = DefaultQuestionExpr
	}
	if skipKeywords == nil {
		skipKeywords = DefaultSkipKeywords()
	}

	program, err := expr.Compile(questionExpr, expr.Env(map[string]interface{}{
		"text":  "",
		"stage": "",
	}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile question expression: %w", err)
	}

	lowered := make([]string, len(skipKeywords))
	for i, k := range skipKeywords {
		lowered[i] = strings.ToLower(strings.TrimSpace(k))
	}

	return &RoutingPolicy{
		questionSrc:     questionExpr,
		questionProgram: program,
		skipKeywords:    lowered,
		useClassifier:   useClassifier,
	}, nil
}

// LooksLikeQuestion evaluates the configured expression against the
// utterance. Evaluation errors count as "not a question".
func (p *RoutingPolicy) LooksLikeQuestion(text string, stage Stage) bool {
	if p == nil || p.questionProgram == nil {
		return strings.Contains(text, "?")
	}
	out, err := expr.Run(p.questionProgram, map[string]interface{}{
		"text":  text,
		"stage": string(stage),
	})
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

// UseClassifier reports whether the LLM intent classifier should also
// be consulted.
func (p *RoutingPolicy) UseClassifier() bool { return p.useClassifier }

// IsSkip reports whether the answer is a goal skip. An empty answer
// counts as a skip.
func (p *RoutingPolicy) IsSkip(answer string) bool {
	t := strings.ToLower(strings.TrimSpace(answer))
	if t == "" {
		return true
	}
	for _, k := range p.skipKeywords {
		if k != "" && strings.Contains(t, k) {
			return true
		}
	}
	return false
}
