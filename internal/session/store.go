// Package session persists learning-session state keyed by session id.
// Stores hold whole-state snapshots; callers follow a single-writer-
// per-session discipline via Locker, so stores never merge.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/szaher/meemo/internal/tutor"
)

// ErrNotFound reports that no session exists for the id.
var ErrNotFound = errors.New("session not found")

// Store manages session state lifecycle.
type Store interface {
	// Get retrieves the state for a session id.
	Get(ctx context.Context, id string) (*tutor.State, error)

	// Put stores the state snapshot for a session id.
	Put(ctx context.Context, id string, st *tutor.State) error

	// Delete removes a session. Deleting an absent session is not an
	// error.
	Delete(ctx context.Context, id string) error
}

// Sweeper is implemented by stores that can drop idle sessions in
// bulk. The cron sweep uses it when available.
type Sweeper interface {
	// Sweep removes sessions idle longer than olderThan and reports
	// how many were removed.
	Sweep(ctx context.Context, olderThan time.Duration) (int, error)
}
