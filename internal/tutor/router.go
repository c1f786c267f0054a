package tutor

import (
	"context"

	"github.com/szaher/meemo/internal/gen"
)

// entryRoute picks the first node of a turn from the persisted state.
func (e *Engine) entryRoute(st *State) string {
	if st.UserName == "" {
		return nodeIntroduction
	}
	if !st.GoalSet && st.Stage == StageIntroduction {
		return nodeIntroduction
	}
	if st.Stage == StageAssessment && st.AssessmentQuestion != "" {
		return nodeEvaluateAnswer
	}

	switch st.Stage {
	case StageIntroduction:
		return nodeIntroduction
	case StageAssessment:
		return nodeAssessment
	case StageNeedsHint, StageNeedsRetry:
		return nodeEvaluateAnswer
	case StageQuestionAnswering:
		return nodeQuestionAnswering
	case StageTeaching, StageEvaluationComplete, StageNeedsReview:
		return nodeTeaching
	default:
		return nodeTeaching
	}
}

// postRoute decides what follows a completed node. It returns the next
// node name, or false to end the turn. Stage mutations made here
// (topic advance, review hand-off) are reported through the sink.
func (e *Engine) postRoute(ctx context.Context, st *State, tc *turnContext, ran string) (string, bool) {
	// Opportunistic question interrupt: at most once per turn, judged
	// against the stage the turn entered with so an active assessment
	// is never abandoned mid-answer.
	if !tc.ranQA && ran != nodeQuestionAnswering &&
		!midAssessment(tc.entryStage) && e.looksLikeQuestion(ctx, st, tc) {
		tc.ranQA = true
		return nodeQuestionAnswering, true
	}

	switch ran {
	case nodeIntroduction:
		// Completion already set stage to teaching; teaching starts on
		// the learner's next message.
		return "", false

	case nodeTeaching:
		return nodeAssessment, true

	case nodeAssessment:
		return "", false

	case nodeEvaluateAnswer:
		switch st.Stage {
		case StageEvaluationComplete:
			if len(st.TopicsRemaining) == 0 {
				e.setStage(st, tc, StageCompleted)
				return "", false
			}
			st.CurrentTopic = st.TopicsRemaining[0]
			st.TopicsRemaining = st.TopicsRemaining[1:]
			e.setStage(st, tc, StageTeaching)
			return nodeTeaching, true
		case StageNeedsReview:
			e.setStage(st, tc, StageTeaching)
			return nodeTeaching, true
		default:
			// needs_hint / needs_retry: wait for the next attempt.
			return "", false
		}

	case nodeQuestionAnswering:
		if tc.ranTeaching || st.Stage == StageCompleted || st.CurrentTopic == "" {
			return "", false
		}
		return nodeTeaching, true
	}

	return "", false
}

// looksLikeQuestion evaluates the routing policy's question heuristic
// against this turn's utterance, consulting the advisory intent
// classifier when enabled. The verdict is computed once per turn.
func (e *Engine) looksLikeQuestion(ctx context.Context, st *State, tc *turnContext) bool {
	if tc.questionChecked {
		return tc.isQuestion
	}
	tc.questionChecked = true

	if tc.utterance == "" {
		return false
	}
	tc.isQuestion = e.policy.LooksLikeQuestion(tc.utterance, tc.entryStage)

	if !tc.isQuestion && e.policy.UseClassifier() {
		var analysis gen.ConversationAnalysis
		tool := gen.ToolFor[gen.ConversationAnalysis]("classify_intent",
			"Record whether the message is a question and an optional routing suggestion.")
		err := e.port.Extract(ctx, tool,
			"Analyze this message in learning context.\n\nCurrent stage: "+string(tc.entryStage)+
				"\nCurrent topic: "+st.CurrentTopic+"\n\nDetermine the routing.",
			userMsg("User message: "+tc.utterance), &analysis)
		if err != nil {
			e.logger.Warn("intent classification failed, using expression verdict", "error", err)
		} else {
			tc.isQuestion = analysis.IsQuestion
		}
	}

	return tc.isQuestion
}
