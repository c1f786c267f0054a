package tutor

import (
	"errors"
	"fmt"
	"strings"
)

// Validation sentinels. These are rejected before the state machine
// runs.
var (
	ErrEmptySessionID      = errors.New("session id cannot be empty")
	ErrEmptyMessage        = errors.New("message cannot be empty")
	ErrNoPendingSuspension = errors.New("no pending suspension to resume")
	ErrInvalidDirection    = errors.New("direction must be \"next\" or \"previous\"")
	errSuspended           = errors.New("suspended awaiting user input")
)

// NodeFailure is a node-level error after retries were exhausted.
// Message is the learner-facing text already appended to the session
// as an assistant turn; Stage is the stage the session was left at.
type NodeFailure struct {
	Node    string
	Stage   Stage
	Message string
	Err     error
}

func (f *NodeFailure) Error() string {
	return fmt.Sprintf("node %s failed: %v", f.Node, f.Err)
}

func (f *NodeFailure) Unwrap() error { return f.Err }

// stageErrorMessages maps a stage to the learner-facing message used
// when its node fails. Never technical.
var stageErrorMessages = map[Stage]string{
	StageIntroduction:       "Oops! Let's start over with introductions. Hi, I'm Meemo! 👋",
	StageTeaching:           "Hmm, I got a bit confused while teaching. Let me try explaining that again! 📚",
	StageAssessment:         "I had trouble with that question. Let me ask you something else! ❓",
	StageEvaluationComplete: "Something went wrong checking your answer. Let's move on! ✅",
	StageNeedsHint:          "I got stuck giving you a hint. Let me try a different approach! 💡",
	StageNeedsRetry:         "Oops! Let's try that question again! 🔁",
	StageNeedsReview:        "I had trouble reviewing. Let's go over this topic one more time! 📖",
	StageQuestionAnswering:  "I couldn't quite answer that. Can you ask me in a different way? 🤔",
}

// StageErrorMessage returns the friendly message for a failing stage.
func StageErrorMessage(stage Stage) string {
	if msg, ok := stageErrorMessages[stage]; ok {
		return msg
	}
	return "Something went wrong, but we can keep learning! 🚀"
}

// errorClassMessages maps error text fragments to friendly messages.
var errorClassMessages = []struct {
	fragment string
	message  string
}{
	{"rate limit", "Whoa, I'm thinking too fast! Let's slow down for just a moment. 😅"},
	{"timeout", "That's taking too long. Can you ask me that in a simpler way? ⏱️"},
	{"deadline", "That's taking too long. Can you ask me that in a simpler way? ⏱️"},
	{"connection", "I'm having trouble connecting. Check your internet? 🌐"},
	{"decode", "I got confused reading that. Can you try again? 📄"},
	{"cannot be empty", "Hmm, something doesn't look right with that input. Can you try again? ✏️"},
}

// FriendlyError converts any error into an encouraging learner-facing
// message. Technical detail stays in logs only.
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}
	lower := strings.ToLower(err.Error())
	for _, c := range errorClassMessages {
		if strings.Contains(lower, c.fragment) {
			return c.message
		}
	}
	return "Something unexpected happened. Mind trying that again? I'm here to help! 💪"
}
