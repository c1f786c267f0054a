package integration_tests

import (
	"context"
	"testing"

	"github.com/szaher/meemo/internal/tutor"
	"github.com/szaher/meemo/sdk/go/meemo"
)

// TestFullCourseFlow walks a two-topic course end to end through the
// HTTP API: introduction with both suspensions, teaching, assessment,
// and completion.
func TestFullCourseFlow(t *testing.T) {
	ts := newHTTPStack(t, passingPort(), []string{"Cell Theory", "Organelles"})
	client := meemo.NewClient(ts.URL)
	ctx := context.Background()

	sess, err := client.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Bootstrap: the greeting ends in the name suspension.
	result, err := client.SendMessage(ctx, sess.SessionID, "(start)")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if !result.Suspended || result.InterruptID == "" {
		t.Fatalf("expected name suspension, got %+v", result)
	}

	// Name answer chains into the goal suspension.
	result, err = client.Resume(ctx, sess.SessionID, "I'm Sam")
	if err != nil {
		t.Fatalf("resume name: %v", err)
	}
	if !result.Suspended {
		t.Fatalf("expected goal suspension, got %+v", result)
	}

	// Goal answer finishes the introduction.
	result, err = client.Resume(ctx, sess.SessionID, "I want to understand cells")
	if err != nil {
		t.Fatalf("resume goal: %v", err)
	}
	if result.Suspended || result.Stage != string(tutor.StageTeaching) {
		t.Fatalf("introduction should end at teaching, got %+v", result)
	}

	// First teaching turn lands on an open assessment question.
	result, err = client.SendMessage(ctx, sess.SessionID, "ready")
	if err != nil {
		t.Fatalf("teaching turn: %v", err)
	}
	if result.Stage != string(tutor.StageAssessment) {
		t.Fatalf("stage = %s, want assessment", result.Stage)
	}

	// Passing the first topic re-teaches on the second and asks again.
	result, err = client.SendMessage(ctx, sess.SessionID, "cells are the basic unit of life")
	if err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if result.Stage != string(tutor.StageAssessment) {
		t.Fatalf("stage = %s, want assessment on next topic", result.Stage)
	}
	if result.Summary.CurrentTopic != "Organelles" {
		t.Errorf("current topic = %q, want Organelles", result.Summary.CurrentTopic)
	}

	// Passing the last topic completes the course.
	result, err = client.SendMessage(ctx, sess.SessionID, "organelles are cell machinery")
	if err != nil {
		t.Fatalf("second answer: %v", err)
	}
	if result.Stage != string(tutor.StageCompleted) {
		t.Fatalf("stage = %s, want completed", result.Stage)
	}

	summary, err := client.Summary(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(summary.TopicsCovered) != 2 || len(summary.TopicsRemaining) != 0 {
		t.Errorf("summary = %+v", summary)
	}

	// Introduction welcome, personalized welcome, and one per topic.
	slides, err := client.Slides(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("Slides: %v", err)
	}
	if len(slides) < 4 {
		t.Errorf("slides = %d, want at least 4", len(slides))
	}
}

// TestRetryThenReviewFlow drives a learner through two failed answers
// into a re-teach of the same topic.
func TestRetryThenReviewFlow(t *testing.T) {
	port := passingPort()
	port.extractions["evaluate_answer"] = map[string]any{
		"judgment":    "incorrect",
		"should_pass": false,
	}
	ts := newHTTPStack(t, port, []string{"Cell Theory"})
	client := meemo.NewClient(ts.URL)
	ctx := context.Background()

	sess, _ := client.CreateSession(ctx)
	mustTurn := func(input string, resume bool) *meemo.TurnResult {
		t.Helper()
		var result *meemo.TurnResult
		var err error
		if resume {
			result, err = client.Resume(ctx, sess.SessionID, input)
		} else {
			result, err = client.SendMessage(ctx, sess.SessionID, input)
		}
		if err != nil {
			t.Fatalf("turn %q: %v", input, err)
		}
		return result
	}

	mustTurn("(start)", false)
	mustTurn("I'm Sam", true)
	mustTurn("skip", true)
	mustTurn("ready", false)

	// First miss asks for another try.
	result := mustTurn("no idea", false)
	if result.Stage != string(tutor.StageNeedsRetry) {
		t.Fatalf("stage = %s, want needs_retry", result.Stage)
	}

	// Second miss triggers review: the topic is re-taught and a fresh
	// question asked.
	result = mustTurn("still no idea", false)
	if result.Stage != string(tutor.StageAssessment) {
		t.Fatalf("stage = %s, want assessment after review", result.Stage)
	}

	summary, err := client.Summary(ctx, sess.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if summary.CurrentTopic != "Cell Theory" {
		t.Errorf("current topic = %q, want unchanged", summary.CurrentTopic)
	}
}

// TestQuestionDetour asks an off-script question during teaching and
// checks the session answers it without losing its place.
func TestQuestionDetour(t *testing.T) {
	ts := newHTTPStack(t, passingPort(), []string{"Cell Theory", "Organelles"})
	client := meemo.NewClient(ts.URL)
	ctx := context.Background()

	sess, _ := client.CreateSession(ctx)
	_, _ = client.SendMessage(ctx, sess.SessionID, "(start)")
	_, _ = client.Resume(ctx, sess.SessionID, "I'm Sam")
	result, err := client.Resume(ctx, sess.SessionID, "skip")
	if err != nil || result.Stage != string(tutor.StageTeaching) {
		t.Fatalf("introduction: %v %+v", err, result)
	}

	result, err = client.SendMessage(ctx, sess.SessionID, "wait, what is a cell?")
	if err != nil {
		t.Fatalf("question turn: %v", err)
	}

	summary, err := client.Summary(ctx, sess.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if summary.QuestionsAsked != 1 {
		t.Errorf("questions asked = %d, want 1", summary.QuestionsAsked)
	}
	if summary.CurrentTopic != "Cell Theory" {
		t.Errorf("current topic = %q, want unchanged", summary.CurrentTopic)
	}
}
