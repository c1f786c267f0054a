package curriculum

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "course.yaml")
	if err := os.WriteFile(path, []byte("course: First\ntopics:\n  - A\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	provider := NewProvider(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, provider, path, slog.Default())
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("course: Second\ntopics:\n  - B\n  - C\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for provider.Current().Course != "Second" {
		select {
		case <-deadline:
			t.Fatalf("curriculum not reloaded, still %q", provider.Current().Course)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestWatchKeepsCurriculumOnBadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "course.yaml")
	if err := os.WriteFile(path, []byte("course: Good\ntopics:\n  - A\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, _ := LoadFile(path)
	provider := NewProvider(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = Watch(ctx, provider, path, slog.Default()) }()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("topics: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)
	if got := provider.Current().Course; got != "Good" {
		t.Errorf("course = %q, want unchanged", got)
	}
}
