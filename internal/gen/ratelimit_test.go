package gen

import (
	"context"
	"testing"
	"time"
)

func TestLimiterAllowsBurstThenThrottles(t *testing.T) {
	l := NewLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("request %d within burst denied", i)
		}
	}
	if l.Allow() {
		t.Error("request beyond burst allowed")
	}
}

func TestLimiterRefills(t *testing.T) {
	l := NewLimiter(1000, 1)

	if !l.Allow() {
		t.Fatal("first request denied")
	}
	if l.Allow() {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(5 * time.Millisecond)
	if !l.Allow() {
		t.Error("bucket did not refill")
	}
}

func TestLimiterWaitImmediate(t *testing.T) {
	l := NewLimiter(1, 1)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestLimiterWaitCancelled(t *testing.T) {
	l := NewLimiter(0.001, 1)
	l.Allow() // drain the bucket

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Wait() = %v, want deadline exceeded", err)
	}
}

func TestLimiterDefaults(t *testing.T) {
	l := NewLimiter(0, 0)
	if !l.Allow() {
		t.Error("sanitized limiter denied its single token")
	}
}
