package tutor

import (
	"testing"

	"github.com/szaher/meemo/internal/slide"
)

func TestRecordPassThresholds(t *testing.T) {
	tests := []struct {
		name       string
		passes     int
		startLevel string
		wantLevel  string
	}{
		{"stays beginner below threshold", 2, LevelBeginner, LevelBeginner},
		{"levels to intermediate at three", 3, LevelBeginner, LevelIntermediate},
		{"levels to advanced at six", 6, LevelBeginner, LevelAdvanced},
		{"never moves backward", 1, LevelAdvanced, LevelAdvanced},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewState("Cell Biology", nil)
			st.UnderstandingLevel = tt.startLevel
			for i := 0; i < tt.passes; i++ {
				st.RecordPass()
			}
			if st.UnderstandingLevel != tt.wantLevel {
				t.Errorf("level = %s, want %s", st.UnderstandingLevel, tt.wantLevel)
			}
			if st.AssessmentsPassed != tt.passes {
				t.Errorf("passes = %d, want %d", st.AssessmentsPassed, tt.passes)
			}
		})
	}
}

func TestNavigateSlide(t *testing.T) {
	st := NewState("Cell Biology", nil)
	st.AppendSlide(slide.Slide{Title: "one"})
	st.AppendSlide(slide.Slide{Title: "two"})
	st.AppendSlide(slide.Slide{Title: "three"})

	if st.CurrentSlideIndex != 2 {
		t.Fatalf("index = %d, appending should move the pointer", st.CurrentSlideIndex)
	}

	if s := st.NavigateSlide("next"); s != nil {
		t.Errorf("next past the end = %+v, want nil", s)
	}
	if st.CurrentSlideIndex != 2 {
		t.Errorf("index moved on a failed navigation: %d", st.CurrentSlideIndex)
	}

	if s := st.NavigateSlide("previous"); s == nil || s.Title != "two" {
		t.Errorf("previous = %+v, want slide two", s)
	}
	st.NavigateSlide("previous")
	if s := st.NavigateSlide("previous"); s != nil {
		t.Errorf("previous past the start = %+v, want nil", s)
	}

	if s := st.NavigateSlide("sideways"); s != nil {
		t.Errorf("bad direction = %+v, want nil", s)
	}
}

func TestNavigateSlideEmpty(t *testing.T) {
	st := NewState("Cell Biology", nil)
	if s := st.NavigateSlide("next"); s != nil {
		t.Errorf("navigation with no slides = %+v, want nil", s)
	}
	if st.CurrentSlide() != nil {
		t.Error("current slide should be nil before any exist")
	}
}

func TestCloneIsDeep(t *testing.T) {
	st := NewState("Cell Biology", []string{"a", "b"})
	st.AppendUser("hello")
	st.AppendSlide(slide.Slide{Title: "one", KeyPoints: []string{"k"}})
	st.Pending = &Suspension{ID: "x", Kind: AwaitingName}

	c := st.Clone()
	c.AppendUser("changed")
	c.TopicsRemaining[0] = "z"
	c.Slides[0].KeyPoints[0] = "changed"
	c.Pending.Kind = AwaitingGoal

	if len(st.Messages) != 1 {
		t.Error("clone shares the message slice")
	}
	if st.TopicsRemaining[0] != "a" {
		t.Error("clone shares the topic slice")
	}
	if st.Slides[0].KeyPoints[0] != "k" {
		t.Error("clone shares slide key points")
	}
	if st.Pending.Kind != AwaitingName {
		t.Error("clone shares the suspension")
	}
}

func TestSummaryReportsAwaitingInput(t *testing.T) {
	st := NewState("Cell Biology", []string{"a"})
	st.Pending = &Suspension{ID: "x", Kind: AwaitingName}

	if got := st.Summary().Stage; got != StageAwaitingInput {
		t.Errorf("summary stage = %s, want %s", got, StageAwaitingInput)
	}

	st.Pending = nil
	st.Stage = StageTeaching
	if got := st.Summary().Stage; got != StageTeaching {
		t.Errorf("summary stage = %s, want teaching", got)
	}
}
