package game

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a session wraps exactly one of them.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrAlreadyConsumed = errors.New("already consumed")
	ErrExternal        = errors.New("external failure")
)

var (
	ErrSessionNotFound  = fmt.Errorf("session %w", ErrNotFound)
	ErrPlayerNotFound   = fmt.Errorf("player %w", ErrNotFound)
	ErrCardNotFound     = fmt.Errorf("card %w", ErrNotFound)
	ErrNotPlaying       = fmt.Errorf("%w: match is not in progress", ErrInvalidState)
	ErrSessionFull      = fmt.Errorf("%w: session is full", ErrInvalidState)
	ErrAlreadyInSession = fmt.Errorf("%w: player already in a session", ErrInvalidState)
	ErrCardTrapped      = fmt.Errorf("%w: card is trapped", ErrInvalidState)
	ErrManaLocked       = fmt.Errorf("%w: mana conversion locked", ErrInvalidState)
	ErrInvalidAmount    = fmt.Errorf("%w: invalid amount", ErrInvalidState)
	ErrInitialHandDrawn = fmt.Errorf("initial hand %w", ErrAlreadyConsumed)
	ErrDeckUnavailable  = fmt.Errorf("deck %w", ErrExternal)
)

// ErrorCode maps an error to the stable code reported to clients.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrAlreadyConsumed):
		return "already_consumed"
	case errors.Is(err, ErrExternal):
		return "external_failure"
	default:
		return "internal"
	}
}
