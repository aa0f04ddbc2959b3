package state

import (
	"context"
	"time"

	tele "gopkg.in/telebot.v4"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores the conversation state and the typed form accumulator for a
// user. LastSeen tracks activity for idle eviction.
type Session[F any] struct {
	State    State
	Form     F
	LastSeen time.Time
}

// Manager orchestrates user sessions and FSM state transitions. F is the
// form type accumulated across conversation steps.
type Manager[F any] interface {
	// State returns the current FSM state of a user, or StateIdle if none exists.
	State(userID int64) State
	// SetState sets the FSM state for the given user, creating a session if needed.
	SetState(userID int64, st State)
	// Form returns a copy of the user's accumulated form data.
	Form(userID int64) F
	// Update mutates the user's session under the manager lock.
	Update(userID int64, fn func(s *Session[F]))
	// Clear removes the entire session for a user.
	Clear(userID int64)
	// InProgress reports whether the user currently has an active FSM state.
	InProgress(userID int64) bool
	// Len returns the number of live sessions.
	Len() int
	// EvictIdle drops sessions idle longer than the TTL and reports how many.
	EvictIdle(now time.Time) int

	// Handle associates a state with its handler.
	Handle(st State, h tele.HandlerFunc)
	// ManagerHandler executes the handler registered for the user's current state, if any.
	ManagerHandler(c tele.Context) error
	// StartSweeper runs periodic idle eviction until the context is done.
	StartSweeper(ctx context.Context, every time.Duration)
}
