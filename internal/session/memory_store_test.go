package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/szaher/meemo/internal/tutor"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	st := tutor.NewState("Cell Biology", []string{"Cell Theory"})
	st.UserName = "Sam"

	if err := store.Put(ctx, "sess_1", st); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "sess_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserName != "Sam" {
		t.Errorf("user name = %q, want Sam", got.UserName)
	}

	// The store must hand out copies, not shared state.
	got.UserName = "changed"
	again, err := store.Get(ctx, "sess_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.UserName != "Sam" {
		t.Error("store returned shared state")
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore(0)
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	st := tutor.NewState("Cell Biology", nil)
	if err := store.Put(ctx, "sess_1", st); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Delete(ctx, "sess_1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "sess_1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after delete", err)
	}
	if err := store.Delete(ctx, "sess_1"); err != nil {
		t.Errorf("deleting an absent session: %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Millisecond)
	ctx := context.Background()

	if err := store.Put(ctx, "sess_1", tutor.NewState("Cell Biology", nil)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := store.Get(ctx, "sess_1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for expired session", err)
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	if err := store.Put(ctx, "old", tutor.NewState("Cell Biology", nil)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := store.Put(ctx, "fresh", tutor.NewState("Cell Biology", nil)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	removed, err := store.Sweep(ctx, 2*time.Millisecond)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := store.Get(ctx, "fresh"); err != nil {
		t.Errorf("fresh session swept: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("len = %d, want 1", store.Len())
	}
}
