// Package tutor implements the learning-session state machine: the
// node graph that decides, given the session state and a new learner
// utterance, which teaching action runs next, how curriculum position
// advances, and how execution suspends for required user input.
package tutor

// Stage is the learning session's current phase.
type Stage string

const (
	StageIntroduction       Stage = "introduction"
	StageTeaching           Stage = "teaching"
	StageAssessment         Stage = "assessment"
	StageEvaluationComplete Stage = "evaluation_complete"
	StageNeedsHint          Stage = "needs_hint"
	StageNeedsRetry         Stage = "needs_retry"
	StageNeedsReview        Stage = "needs_review"
	StageQuestionAnswering  Stage = "question_answering"
	StageCompleted          Stage = "completed"

	// StageAwaitingInput is a caller-visible status, never stored as a
	// session stage: a node is paused mid-execution waiting on input.
	StageAwaitingInput Stage = "awaiting_user_input"
)

// Understanding levels, ordered. The level never moves backward.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Pass-count thresholds for leveling up.
const (
	intermediateThreshold = 3
	advancedThreshold     = 6
)

// midAssessment reports whether the stage is part of an active
// assessment loop. The opportunistic question interrupt never fires
// mid-assessment.
func midAssessment(s Stage) bool {
	switch s {
	case StageAssessment, StageNeedsRetry, StageNeedsHint, StageNeedsReview:
		return true
	}
	return false
}
