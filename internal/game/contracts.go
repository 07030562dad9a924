package game

import (
	"context"
	"fmt"

	"github.com/pantheon/duel-server-go/internal/game/cards"
)

// ConnID is an opaque handle to a player's connection.
type ConnID string

// PlayerRef identifies a player and the connection they act through.
type PlayerRef struct {
	ID   string
	Conn ConnID
}

// DeckSource supplies a player's full card pool. Instances must carry keys
// that are unique within the match.
type DeckSource interface {
	FetchDeck(ctx context.Context, playerID string) ([]*cards.Instance, error)
}

// Notifier delivers an event to one connection. Send is fire-and-forget and
// must not block; unknown or closed connections are ignored.
type Notifier interface {
	Send(conn ConnID, event string, payload any)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(conn ConnID, event string, payload any)

// Send calls f.
func (f NotifierFunc) Send(conn ConnID, event string, payload any) {
	f(conn, event, payload)
}

type nopNotifier struct{}

func (nopNotifier) Send(ConnID, string, any) {}

// Status is the lifecycle state of a session.
type Status int

const (
	StatusWaiting Status = iota
	StatusPlaying
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "WAITING"
	case StatusPlaying:
		return "PLAYING"
	case StatusFinished:
		return "FINISHED"
	default:
		return fmt.Sprintf("STATUS_%d", int(s))
	}
}
