package state

import (
	"context"
	"sync"
	"time"

	"github.com/mihaja/abobot/core/logger"
	tghelpers "github.com/mihaja/abobot/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

type memoryManager[F any] struct {
	mu       sync.RWMutex
	sessions map[int64]*Session[F]
	handlers map[State]tele.HandlerFunc
	ttl      time.Duration
}

// NewMemoryManager constructs an in-memory Manager implementation. Sessions
// idle longer than ttl become eligible for eviction; ttl <= 0 disables it.
func NewMemoryManager[F any](ttl time.Duration) Manager[F] {
	return &memoryManager[F]{
		sessions: make(map[int64]*Session[F]),
		handlers: make(map[State]tele.HandlerFunc),
		ttl:      ttl,
	}
}

func (m *memoryManager[F]) session(userID int64) *Session[F] {
	session, ok := m.sessions[userID]
	if !ok {
		session = &Session[F]{State: StateIdle}
		m.sessions[userID] = session
	}
	session.LastSeen = time.Now()
	return session
}

// State returns the current FSM state of a user, or StateIdle if none exists.
func (m *memoryManager[F]) State(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if session, ok := m.sessions[userID]; ok {
		return session.State
	}
	return StateIdle
}

// SetState updates the state for a user, creating a new session if necessary.
func (m *memoryManager[F]) SetState(userID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(userID).State = st
}

// Form returns a copy of the accumulated form data for the given user session.
func (m *memoryManager[F]) Form(userID int64) F {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if session, ok := m.sessions[userID]; ok {
		return session.Form
	}
	var zero F
	return zero
}

// Update mutates the user's session under the manager lock.
func (m *memoryManager[F]) Update(userID int64, fn func(s *Session[F])) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.session(userID))
}

// Clear removes the entire session for a user.
func (m *memoryManager[F]) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// InProgress reports whether the user currently has an active FSM state.
func (m *memoryManager[F]) InProgress(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[userID]
	return ok && session.State != StateIdle
}

// Len returns the number of live sessions.
func (m *memoryManager[F]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EvictIdle drops sessions idle longer than the TTL and reports how many.
func (m *memoryManager[F]) EvictIdle(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, session := range m.sessions {
		if now.Sub(session.LastSeen) > m.ttl {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Handle associates a state with its handler.
func (m *memoryManager[F]) Handle(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[st] = h
}

// ManagerHandler executes the handler function registered for the user's current state, if any.
func (m *memoryManager[F]) ManagerHandler(c tele.Context) error {
	userID := c.Sender().ID

	m.mu.Lock()
	session := m.session(userID)
	current := session.State
	handler := m.handlers[current]
	m.mu.Unlock()

	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "tg", "fsm.manager",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("state", string(current)),
	)

	if handler != nil {
		return handler(c)
	}
	return nil
}

// StartSweeper runs periodic idle eviction until the context is done.
func (m *memoryManager[F]) StartSweeper(ctx context.Context, every time.Duration) {
	if m.ttl <= 0 {
		return
	}
	if every <= 0 {
		every = time.Minute
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if evicted := m.EvictIdle(now); evicted > 0 {
					logger.Debug(ctx, "tg", "fsm.evict",
						slog.String("status", "ok"),
						slog.Int("count", evicted),
					)
				}
			}
		}
	}()
}
