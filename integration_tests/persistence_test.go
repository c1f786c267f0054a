package integration_tests

import (
	"context"
	"testing"

	"github.com/szaher/meemo/internal/curriculum"
	"github.com/szaher/meemo/internal/slide"
	"github.com/szaher/meemo/internal/stream"
	"github.com/szaher/meemo/internal/tutor"
)

// TestSuspensionSurvivesRestart suspends a session, rebuilds the whole
// engine stack around the same store, and resumes. The suspension
// marker must carry everything needed to continue.
func TestSuspensionSurvivesRestart(t *testing.T) {
	port := passingPort()
	controller, store := newStack(t, port, []string{"Cell Theory"})
	ctx := context.Background()

	sessionID, err := controller.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	result, err := controller.SubmitMessage(ctx, sessionID, "(start)", nil)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if !result.Suspended {
		t.Fatalf("expected suspension, got %+v", result)
	}
	firstInterrupt := result.InterruptID

	// A fresh controller and engine over the same store stands in for a
	// process restart.
	builder := slide.NewBuilder(port, nil, nil)
	engine := tutor.NewEngine(port, builder, "Cell Biology")
	provider := curriculum.NewProvider(curriculum.Curriculum{Course: "Cell Biology", Topics: []string{"Cell Theory"}})
	restarted := stream.NewController(engine, store, provider)

	result, err = restarted.SubmitResumeAnswer(ctx, sessionID, "I'm Sam", nil)
	if err != nil {
		t.Fatalf("resume after restart: %v", err)
	}
	if !result.Suspended {
		t.Fatalf("expected chained goal suspension, got %+v", result)
	}
	if result.InterruptID == firstInterrupt {
		t.Error("interrupt id not refreshed for the new suspension")
	}

	result, err = restarted.SubmitResumeAnswer(ctx, sessionID, "skip", nil)
	if err != nil {
		t.Fatalf("resume goal: %v", err)
	}
	if result.Stage != tutor.StageTeaching {
		t.Errorf("stage = %s, want teaching", result.Stage)
	}
	if result.Summary.CurrentTopic != "Cell Theory" {
		t.Errorf("current topic = %q", result.Summary.CurrentTopic)
	}
}

// TestCommitPerNodeDurability fails a session store after the first
// turn and confirms the committed transcript reflects every completed
// node, not just terminal turns.
func TestCommitPerNodeDurability(t *testing.T) {
	controller, store := newStack(t, passingPort(), []string{"Cell Theory"})
	ctx := context.Background()

	sessionID, err := controller.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := controller.SubmitMessage(ctx, sessionID, "(start)", nil); err != nil {
		t.Fatal(err)
	}

	st, err := store.Get(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if st.Pending == nil || st.Pending.Kind != tutor.AwaitingName {
		t.Fatalf("pending = %+v", st.Pending)
	}
	if !st.Greeted {
		t.Error("greeting not committed")
	}
	if len(st.Slides) != 1 {
		t.Errorf("slides committed = %d, want the welcome slide", len(st.Slides))
	}
	// The bootstrap utterance is not part of the transcript.
	if n := st.UserMessageCount(); n != 0 {
		t.Errorf("user messages = %d, want 0", n)
	}
}
