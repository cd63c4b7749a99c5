package store

import (
	"fmt"
	"log/slog"

	"github.com/starford/modelstore/internal/apperr"
)

// State is the store-wide lifecycle state. It only moves forward.
type State int32

const (
	StateActive State = iota
	StateDestroying
	StateDestroyed
)

// String implements fmt.Stringer.
func (st State) String() string {
	switch st {
	case StateActive:
		return "active"
	case StateDestroying:
		return "destroying"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("State(%d)", int32(st))
}

// DeprecationID tags the warning emitted by the transitional lifecycle mode.
const DeprecationID = "modelstore:method-calls-on-destroyed-store"

// State returns the current lifecycle state.
func (s *Store) State() State {
	return State(s.state.Load())
}

// BeginDestroy moves an active store to destroying.
func (s *Store) BeginDestroy() {
	s.state.CompareAndSwap(int32(StateActive), int32(StateDestroying))
}

// Destroy moves the store to destroyed.
func (s *Store) Destroy() {
	s.BeginDestroy()
	s.state.Store(int32(StateDestroyed))
}

// assertNotDestroying trips once destruction has begun.
func (s *Store) assertNotDestroying(op string) error {
	st := s.State()
	return s.guard(op, st, st != StateActive)
}

// assertNotDestroyed trips only once destruction has completed.
func (s *Store) assertNotDestroyed(op string) error {
	st := s.State()
	return s.guard(op, st, st == StateDestroyed)
}

func (s *Store) guard(op string, st State, violated bool) error {
	if !violated {
		return nil
	}
	if s.strict {
		return apperr.LifecycleViolation(op, fmt.Sprintf("called while the store is %s", st))
	}
	s.logger.Warn("store method called after destruction began",
		slog.String("op", op),
		slog.String("state", st.String()),
		slog.String("deprecation_id", DeprecationID))
	return nil
}
