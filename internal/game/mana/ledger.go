package mana

import (
	"errors"
	"fmt"
)

// StartingMana is what every player has on turn one.
const StartingMana = 1

var (
	// ErrLocked is returned when conversion is attempted before the lock expires.
	ErrLocked = errors.New("mana conversion locked")
	// ErrInvalidAmount is returned for conversions of less than one.
	ErrInvalidAmount = errors.New("invalid mana amount")
)

// Ledger tracks a player's mana and health-to-mana conversions.
//
// Converting raises both the mana available right now and the per-turn cap;
// at every turn boundary available mana is refilled to min(turn, cap).
type Ledger struct {
	Available       int
	Converted       int
	LockedUntilTurn int
}

// NewLedger returns a ledger holding the starting mana.
func NewLedger() Ledger {
	return Ledger{Available: StartingMana}
}

// Cap is the most mana the player can hold at a turn boundary.
func (l *Ledger) Cap() int {
	return StartingMana + l.Converted
}

// CanConvert reports whether a conversion is allowed during turn.
func (l *Ledger) CanConvert(turn int) bool {
	return turn >= l.LockedUntilTurn
}

// Convert records the conversion of amount health into mana during turn.
// The caller subtracts the health.
func (l *Ledger) Convert(amount, turn int) error {
	if amount < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if !l.CanConvert(turn) {
		return fmt.Errorf("%w until turn %d", ErrLocked, l.LockedUntilTurn)
	}
	l.Available += amount
	l.Converted += amount
	l.LockedUntilTurn = turn + amount
	return nil
}

// Refill sets the available mana for a new turn.
func (l *Ledger) Refill(turn int) {
	l.Available = min(turn, l.Cap())
}
