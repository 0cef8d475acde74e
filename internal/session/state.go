package session

import (
	"errors"
	"slices"

	"github.com/nao1215/a11yscan/internal/model"
)

var (
	// ErrTerminal is returned for any change to a terminal session.
	ErrTerminal = errors.New("session is in a terminal state")

	// ErrInvalidTransition is returned for a transition the state table forbids.
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// transitions lists the allowed successor states.
var transitions = map[model.SessionStatus][]model.SessionStatus{
	model.StatusPending: {model.StatusRunning, model.StatusFailed, model.StatusCancelled},
	model.StatusRunning: {model.StatusPaused, model.StatusCompleted, model.StatusFailed, model.StatusCancelled},
	model.StatusPaused:  {model.StatusRunning, model.StatusFailed, model.StatusCancelled},
}

// Allowed reports whether a session of the given kind may move from one
// state to another.
func Allowed(kind model.SessionKind, from, to model.SessionStatus) bool {
	if to == model.StatusPaused && kind != model.KindScan {
		return false
	}
	return slices.Contains(transitions[from], to)
}
