package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/szaher/meemo/internal/gen"
	"github.com/szaher/meemo/internal/llm"
)

// Node names, used for routing, events, and failure reports.
const (
	nodeIntroduction      = "introduction"
	nodeTeaching          = "teaching"
	nodeAssessment        = "assessment"
	nodeEvaluateAnswer    = "evaluate_answer"
	nodeQuestionAnswering = "question_answering"
)

func userMsg(content string) []llm.Message {
	return []llm.Message{{Role: llm.RoleUser, Content: content}}
}

// recentHistory converts the tail of the session transcript for use as
// generation context.
func recentHistory(st *State, n int) []llm.Message {
	msgs := st.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		role := llm.RoleUser
		if m.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	if len(out) == 0 {
		out = userMsg("(hello)")
	}
	return out
}

// runIntroduction walks the four introduction phases: greeting, name
// collection, goal collection, personalized welcome. The collection
// phases suspend the turn until the learner answers.
func (e *Engine) runIntroduction(ctx context.Context, st *State, tc *turnContext) error {
	if !st.Greeted {
		greeting, err := e.port.GenerateStream(ctx, fmt.Sprintf(
			`You are Meemo, a friendly AI learning companion for %s.

Introduce yourself warmly (3-4 sentences):
- Greet the user
- Explain what you'll do together
- Ask them to say hello

**Use markdown formatting with emojis.**`, e.course),
			userMsg("(Generate greeting)"), tc.sink.Token)
		if err != nil {
			return err
		}
		st.AppendAssistant(greeting)
		st.Greeted = true

		sl := e.slides.Build(ctx, greeting, "Meet Meemo! 👋", "Welcome", 0)
		st.AppendSlide(sl)
		tc.sink.Slide(sl)
	}

	if st.UserName == "" {
		prompt, err := e.port.GenerateStream(ctx,
			"You are Meemo. Ask for their name warmly. **Use markdown.**",
			recentHistory(st, 2), tc.sink.Token)
		if err != nil {
			return err
		}
		return e.suspend(st, AwaitingName, prompt)
	}

	if !st.GoalSet {
		prompt, err := e.port.GenerateStream(ctx, fmt.Sprintf(
			`You are Meemo. Ask %s about their learning goal for %s.
Mention they can say 'skip'. **Use markdown with emojis.**`, st.UserName, e.course),
			userMsg("Name: "+st.UserName), tc.sink.Token)
		if err != nil {
			return err
		}
		return e.suspend(st, AwaitingGoal, prompt)
	}

	goal := st.Goal
	if goal == "" {
		goal = "general learning"
	}
	firstTopic := "basics"
	if len(st.TopicsRemaining) > 0 {
		firstTopic = st.TopicsRemaining[0]
	}
	preview := st.TopicsRemaining
	if len(preview) > 5 {
		preview = preview[:5]
	}

	welcome, err := e.port.GenerateStream(ctx, fmt.Sprintf(
		`Generate personalized welcome for %s.
Goal: %s
First topic: %s
Topics: %s

**Use markdown with headings, lists, emojis.**`,
		st.UserName, goal, firstTopic, strings.Join(preview, ", ")),
		userMsg("(Generate welcome)"), tc.sink.Token)
	if err != nil {
		return err
	}
	st.AppendAssistant(welcome)

	sl := e.slides.Build(ctx, welcome, fmt.Sprintf("Welcome, %s! 🎉", st.UserName),
		"Course welcome", len(st.Slides))
	st.AppendSlide(sl)
	tc.sink.Slide(sl)

	if len(st.TopicsRemaining) > 0 {
		st.CurrentTopic = st.TopicsRemaining[0]
		st.TopicsRemaining = st.TopicsRemaining[1:]
	}
	st.TopicsCovered = []string{}
	st.Stage = StageTeaching
	return nil
}

// runTeaching generates teaching content for the current topic, builds
// a slide for it, and hands off to assessment.
func (e *Engine) runTeaching(ctx context.Context, st *State, tc *turnContext) error {
	topic := st.CurrentTopic
	if topic == "" {
		topic = e.course
	}

	content, err := e.port.GenerateStream(ctx, fmt.Sprintf(
		`Teach %s in %s.

Include:
1. Clear definition
2. Key characteristics
3. Visual description for diagrams
4. Relevance to %s

3-4 paragraphs. **Use markdown: headings, bold, lists, emojis.**`,
		topic, e.course, e.course),
		userMsg("Teach "+topic), tc.sink.Token)
	if err != nil {
		return err
	}
	st.AppendAssistant(content)

	sl := e.slides.Build(ctx, content, topic, "Learning "+topic, len(st.Slides))
	st.AppendSlide(sl)
	tc.sink.Slide(sl)

	covered := false
	for _, t := range st.TopicsCovered {
		if t == topic {
			covered = true
			break
		}
	}
	if !covered {
		st.TopicsCovered = append(st.TopicsCovered, topic)
	}

	st.Stage = StageAssessment
	tc.ranTeaching = true
	return nil
}

// runAssessment asks one comprehension question about the current
// topic. If a question is already outstanding it does nothing, so
// re-entry never re-asks.
func (e *Engine) runAssessment(ctx context.Context, st *State, tc *turnContext) error {
	if st.AssessmentQuestion != "" {
		return nil
	}

	question, err := e.port.GenerateStream(ctx, fmt.Sprintf(
		`Ask ONE clear question about %s.
Make it beginner-friendly and open-ended.
**Use markdown with bold and emojis.**`, st.CurrentTopic),
		userMsg("Check understanding"), tc.sink.Token)
	if err != nil {
		return err
	}

	st.AssessmentQuestion = question
	st.AssessmentAttempts = 0
	st.AppendAssistant(question)
	st.Stage = StageAssessment
	return nil
}

// runEvaluateAnswer judges the latest user turn against the outstanding
// assessment question and picks the follow-up stage.
func (e *Engine) runEvaluateAnswer(ctx context.Context, st *State, tc *turnContext) error {
	answer := st.LastUserMessage()
	st.AssessmentAttempts++
	attempts := st.AssessmentAttempts

	var eval gen.AssessmentEvaluation
	tool := gen.ToolFor[gen.AssessmentEvaluation]("evaluate_answer",
		"Record the structured judgment of a learner's assessment answer.")
	err := e.port.Extract(ctx, tool, fmt.Sprintf(
		`Evaluate understanding of %s.
Question: %s
Answer: %s
Attempt: %d`, st.CurrentTopic, st.AssessmentQuestion, answer, attempts),
		userMsg("Evaluate answer"), &eval)
	if err != nil {
		return err
	}

	feedback, err := e.port.GenerateStream(ctx, fmt.Sprintf(
		`Generate warm feedback:
Judgment: %s
Correct: %s
Missing: %s

**Use markdown with emojis.**`, eval.Judgment, eval.WhatWasCorrect, eval.WhatWasMissing),
		userMsg("(Generate feedback)"), tc.sink.Token)
	if err != nil {
		return err
	}
	st.AppendAssistant(feedback)

	switch {
	case eval.ShouldPass || eval.Judgment == "correct":
		st.RecordPass()
		st.AssessmentQuestion = ""
		st.AssessmentAttempts = 0
		st.Stage = StageEvaluationComplete
	case eval.NeedsReview || attempts >= 2:
		st.AssessmentQuestion = ""
		st.AssessmentAttempts = 0
		st.Stage = StageNeedsReview
	case eval.Judgment == "partial":
		st.Stage = StageNeedsHint
	default:
		st.Stage = StageNeedsRetry
	}
	return nil
}

// runQuestionAnswering answers a learner question directly. It never
// creates a slide or moves the slide pointer.
func (e *Engine) runQuestionAnswering(ctx context.Context, st *State, tc *turnContext) error {
	question := st.LastUserMessage()

	answer, err := e.port.GenerateStream(ctx, fmt.Sprintf(
		`Answer the learner's question clearly.
Use examples and relate to %s.
**Use markdown: headings, bold, lists, emojis.**`, e.course),
		userMsg(question), tc.sink.Token)
	if err != nil {
		return err
	}

	st.AppendAssistant(answer)
	st.QuestionsAsked++
	return nil
}

// extractName pulls a name out of a resume answer. The trimmed answer
// itself is the deterministic fallback when extraction fails.
func (e *Engine) extractName(ctx context.Context, answer string) string {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return ""
	}

	var extraction gen.NameExtraction
	tool := gen.ToolFor[gen.NameExtraction]("extract_name",
		"Record the person's name from their message.")
	err := e.port.Extract(ctx, tool,
		`Extract name from message. Look for patterns like:
- "I'm [Name]" or "My name is [Name]"
- Just "[Name]" if short message after being asked`,
		userMsg("User: "+trimmed), &extraction)
	if err != nil {
		e.logger.Warn("name extraction failed, using raw answer", "error", err)
		return trimmed
	}
	if extraction.Name != "" && (extraction.Confidence == "high" || extraction.Confidence == "medium") {
		return strings.TrimSpace(extraction.Name)
	}
	return trimmed
}

// extractGoal interprets a resume answer as a learning goal or a skip.
// Returns the goal, empty when skipped.
func (e *Engine) extractGoal(ctx context.Context, answer string) string {
	if e.policy.IsSkip(answer) {
		return ""
	}
	trimmed := strings.TrimSpace(answer)

	var extraction gen.GoalExtraction
	tool := gen.ToolFor[gen.GoalExtraction]("extract_goal",
		"Record the learning goal, or that the user wants to skip goal setting.")
	err := e.port.Extract(ctx, tool,
		`Extract learning goal or detect if user wants to skip.
Look for goals like "I want to learn X" or skip words like "skip", "let's start".`,
		userMsg("User: "+trimmed), &extraction)
	if err != nil {
		e.logger.Warn("goal extraction failed, using raw answer", "error", err)
		return trimmed
	}
	if extraction.WantsToSkip {
		return ""
	}
	if extraction.Goal != "" {
		return strings.TrimSpace(extraction.Goal)
	}
	return trimmed
}
