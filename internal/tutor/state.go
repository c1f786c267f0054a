package tutor

import (
	"time"

	"github.com/szaher/meemo/internal/slide"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one conversation turn. The message log is append-only
// within a turn and never reordered.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Suspension kinds.
const (
	AwaitingName = "awaiting_name"
	AwaitingGoal = "awaiting_goal"
)

// Suspension marks a node paused mid-execution waiting on a piece of
// user input. It is persisted in the state so resume works across
// process restarts with a durable store.
type Suspension struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Prompt string `json:"prompt"`
}

// State is the unit of persistence for one learning session.
//
// The learning goal distinguishes "not yet asked" (GoalSet false) from
// "explicitly skipped" (GoalSet true, Goal empty).
type State struct {
	Messages []Message `json:"messages"`
	Stage    Stage     `json:"stage"`

	Course          string   `json:"course"`
	CurrentTopic    string   `json:"current_topic,omitempty"`
	TopicsCovered   []string `json:"topics_covered"`
	TopicsRemaining []string `json:"topics_remaining"`

	UnderstandingLevel string `json:"understanding_level"`
	QuestionsAsked     int    `json:"questions_asked"`
	AssessmentsPassed  int    `json:"assessments_passed"`
	AssessmentAttempts int    `json:"assessment_attempts"`
	AssessmentQuestion string `json:"current_assessment_question,omitempty"`

	Slides            []slide.Slide `json:"slides"`
	CurrentSlideIndex int           `json:"current_slide_index"`

	UserName string `json:"user_name,omitempty"`
	Goal     string `json:"learning_goal,omitempty"`
	GoalSet  bool   `json:"learning_goal_set"`
	Greeted  bool   `json:"greeted"`

	Pending *Suspension `json:"pending,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState initializes a fresh session over the given curriculum. The
// full topic list starts in TopicsRemaining; the introduction node
// moves the head into CurrentTopic when teaching begins.
func NewState(course string, topics []string) *State {
	remaining := make([]string, len(topics))
	copy(remaining, topics)
	now := time.Now().UTC()
	return &State{
		Stage:              StageIntroduction,
		Course:             course,
		TopicsCovered:      []string{},
		TopicsRemaining:    remaining,
		UnderstandingLevel: LevelBeginner,
		Slides:             []slide.Slide{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Clone returns a deep copy. The engine mutates a clone and the
// controller persists it only at node boundaries, keeping nodes atomic
// with respect to the stored state.
func (s *State) Clone() *State {
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	c.TopicsCovered = append([]string(nil), s.TopicsCovered...)
	c.TopicsRemaining = append([]string(nil), s.TopicsRemaining...)
	c.Slides = append([]slide.Slide(nil), s.Slides...)
	for i := range c.Slides {
		c.Slides[i].KeyPoints = append([]string(nil), s.Slides[i].KeyPoints...)
	}
	if s.Pending != nil {
		p := *s.Pending
		c.Pending = &p
	}
	return &c
}

// AppendUser appends a user turn.
func (s *State) AppendUser(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleUser, Content: content})
}

// AppendAssistant appends an assistant turn.
func (s *State) AppendAssistant(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleAssistant, Content: content})
}

// LastUserMessage returns the content of the most recent user turn.
func (s *State) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// LastAssistantMessage returns the content of the most recent
// assistant turn.
func (s *State) LastAssistantMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}

// UserMessageCount counts user turns.
func (s *State) UserMessageCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// AppendSlide appends a slide, numbering it by position, and moves the
// slide pointer onto it.
func (s *State) AppendSlide(sl slide.Slide) {
	sl.SlideNumber = len(s.Slides)
	s.Slides = append(s.Slides, sl)
	s.CurrentSlideIndex = sl.SlideNumber
}

// CurrentSlide returns the slide in view, or nil before the first
// slide exists.
func (s *State) CurrentSlide() *slide.Slide {
	if len(s.Slides) == 0 || s.CurrentSlideIndex < 0 || s.CurrentSlideIndex >= len(s.Slides) {
		return nil
	}
	return &s.Slides[s.CurrentSlideIndex]
}

// NavigateSlide moves the slide pointer one step. At either end it
// returns nil without mutating the pointer.
func (s *State) NavigateSlide(direction string) *slide.Slide {
	if len(s.Slides) == 0 {
		return nil
	}
	switch direction {
	case "next":
		if s.CurrentSlideIndex >= len(s.Slides)-1 {
			return nil
		}
		s.CurrentSlideIndex++
	case "previous":
		if s.CurrentSlideIndex <= 0 {
			return nil
		}
		s.CurrentSlideIndex--
	default:
		return nil
	}
	return &s.Slides[s.CurrentSlideIndex]
}

// RecordPass counts a passed assessment and levels up understanding at
// the fixed thresholds. Levels never move backward.
func (s *State) RecordPass() {
	s.AssessmentsPassed++
	switch {
	case s.AssessmentsPassed >= advancedThreshold && s.UnderstandingLevel == LevelIntermediate:
		s.UnderstandingLevel = LevelAdvanced
	case s.AssessmentsPassed >= intermediateThreshold && s.UnderstandingLevel == LevelBeginner:
		s.UnderstandingLevel = LevelIntermediate
	}
}

// Summary is the read-only view of session progress exposed to the
// transport layer.
type Summary struct {
	Stage              Stage    `json:"current_stage"`
	CurrentTopic       string   `json:"current_topic,omitempty"`
	TopicsCovered      []string `json:"topics_covered"`
	TopicsRemaining    []string `json:"topics_remaining"`
	QuestionsAsked     int      `json:"questions_asked"`
	UnderstandingLevel string   `json:"understanding_level"`
	CurrentSlideIndex  int      `json:"current_slide_index"`
	TotalSlides        int      `json:"total_slides"`
}

// Summary derives the progress view.
func (s *State) Summary() Summary {
	stage := s.Stage
	if s.Pending != nil {
		stage = StageAwaitingInput
	}
	return Summary{
		Stage:              stage,
		CurrentTopic:       s.CurrentTopic,
		TopicsCovered:      append([]string(nil), s.TopicsCovered...),
		TopicsRemaining:    append([]string(nil), s.TopicsRemaining...),
		QuestionsAsked:     s.QuestionsAsked,
		UnderstandingLevel: s.UnderstandingLevel,
		CurrentSlideIndex:  s.CurrentSlideIndex,
		TotalSlides:        len(s.Slides),
	}
}
