// Package core provides the agent lifecycle engine.
//
// Every agent cycles through Planning, Working and Testing until it reaches
// Done. The agent supplies one handler per state; the handler does the work
// of that state and names the next one. Run drives the loop and keeps an
// audit trail of every transition.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// --- State Enum ---

// AgentState represents the discrete states of an agent lifecycle.
type AgentState string

const (
	StatePlanning AgentState = "planning"
	StateWorking  AgentState = "working"
	StateTesting  AgentState = "testing"
	StateDone     AgentState = "done"
)

// Valid reports whether s is one of the four lifecycle states.
func (s AgentState) Valid() bool {
	switch s {
	case StatePlanning, StateWorking, StateTesting, StateDone:
		return true
	}
	return false
}

// --- State Transition Record ---

// StateTransition is recorded on every state change. A failed handler is
// recorded with FromState == ToState and ErrorMessage set.
type StateTransition struct {
	ID           string     `json:"id"`
	AgentID      string     `json:"agent_id"`
	Position     string     `json:"position"`
	FromState    AgentState `json:"from_state"`
	ToState      AgentState `json:"to_state"`
	Timestamp    time.Time  `json:"timestamp"`
	DurationMs   int64      `json:"duration_ms"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Handler performs the work of one state and returns the next state.
type Handler func(ctx context.Context) (AgentState, error)

// Observer is called synchronously after every recorded transition.
type Observer func(StateTransition)

// --- Lifecycle ---

// Lifecycle is the state machine owned by one agent.
type Lifecycle struct {
	mu sync.RWMutex

	AgentID  string
	Position string

	state       AgentState
	startTime   time.Time
	lastTransAt time.Time
	history     []StateTransition
	observers   []Observer
}

// NewLifecycle creates a lifecycle in the Planning state.
func NewLifecycle(position string) *Lifecycle {
	now := time.Now()
	return &Lifecycle{
		AgentID:     uuid.New().String(),
		Position:    position,
		state:       StatePlanning,
		startTime:   now,
		lastTransAt: now,
		history:     make([]StateTransition, 0, 8),
	}
}

// CurrentState returns the current state (thread-safe).
func (l *Lifecycle) CurrentState() AgentState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsTerminal returns true once the lifecycle reached Done.
func (l *Lifecycle) IsTerminal() bool {
	return l.CurrentState() == StateDone
}

// Observe registers fn to be called after every transition.
func (l *Lifecycle) Observe(fn Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// Run drives the lifecycle until Done.
//
// A state without a handler, or a handler naming an unknown state, forces
// Done. A handler error is recorded and returned; the state is left where
// the failure happened. ctx is checked between states only.
func (l *Lifecycle) Run(ctx context.Context, handlers map[AgentState]Handler) error {
	for {
		state := l.CurrentState()
		if state == StateDone {
			return nil
		}
		if err := ctx.Err(); err != nil {
			l.record(state, state, err)
			return err
		}

		handler, ok := handlers[state]
		if !ok {
			l.record(state, StateDone, nil)
			continue
		}

		next, err := handler(ctx)
		if err != nil {
			l.record(state, state, err)
			return err
		}
		if !next.Valid() {
			next = StateDone
		}
		l.record(state, next, nil)
	}
}

// record applies a transition and notifies observers.
func (l *Lifecycle) record(from, to AgentState, cause error) {
	l.mu.Lock()
	now := time.Now()
	rec := StateTransition{
		ID:         uuid.New().String(),
		AgentID:    l.AgentID,
		Position:   l.Position,
		FromState:  from,
		ToState:    to,
		Timestamp:  now,
		DurationMs: now.Sub(l.lastTransAt).Milliseconds(),
	}
	if cause != nil {
		rec.ErrorMessage = cause.Error()
	}

	l.state = to
	l.lastTransAt = now
	l.history = append(l.history, rec)
	observers := make([]Observer, len(l.observers))
	copy(observers, l.observers)
	l.mu.Unlock()

	for _, fn := range observers {
		fn(rec)
	}
}

// --- History / Serialization ---

// History returns a copy of all state transitions.
func (l *Lifecycle) History() []StateTransition {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]StateTransition, len(l.history))
	copy(result, l.history)
	return result
}

// Visits counts the recorded transitions from one state to another.
func (l *Lifecycle) Visits(from, to AgentState) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, t := range l.history {
		if t.FromState == from && t.ToState == to && t.ErrorMessage == "" {
			n++
		}
	}
	return n
}

// Snapshot returns a JSON-serializable snapshot of the lifecycle.
func (l *Lifecycle) Snapshot() (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := map[string]interface{}{
		"agent_id":    l.AgentID,
		"position":    l.Position,
		"state":       l.state,
		"elapsed_ms":  time.Since(l.startTime).Milliseconds(),
		"transitions": len(l.history),
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to serialize lifecycle snapshot: %w", err)
	}
	return string(data), nil
}
