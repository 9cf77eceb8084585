package state

import (
	"context"
	"errors"
	"time"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// ErrNoSession is returned by Get when the user has no active flow.
var ErrNoSession = errors.New("state: no active session")

// Session stores conversation state and the flow payload for a user.
type Session[T any] struct {
	State     State     `json:"state"`
	Data      T         `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store keeps one session per user. Implementations must be safe for concurrent
// use by different users; callers serialize access for the same user with Locks.
type Store[T any] interface {
	// Start creates the session, overwriting any existing one.
	Start(ctx context.Context, userID int64, s Session[T]) error
	// Get returns the session or ErrNoSession.
	Get(ctx context.Context, userID int64) (Session[T], error)
	// Save replaces an existing or new session.
	Save(ctx context.Context, userID int64, s Session[T]) error
	// Clear removes the session. Clearing a missing session is not an error.
	Clear(ctx context.Context, userID int64) error
}
