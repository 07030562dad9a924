package game

import (
	"math/rand/v2"

	"github.com/pantheon/duel-server-go/internal/game/cards"
	"github.com/pantheon/duel-server-go/internal/game/mana"
)

const (
	// StartingHealth is each player's health at match start.
	StartingHealth = 20
	// InitialHandSize is the number of cards drawn by DrawInitialHand.
	InitialHandSize = 5
)

// playerState is one seat of a session. Guarded by the owning session's mutex.
type playerState struct {
	ref    PlayerRef
	health int
	mana   mana.Ledger

	// deck is the shuffled order as dealt, kept as an immutable copy.
	deck     []*cards.Instance
	drawPile *cards.DrawPile
	hand     *cards.Pile
	field    *cards.Pile
	grave    *cards.Pile

	hasActed        bool
	drewInitialHand bool
}

func newPlayerState(ref PlayerRef) *playerState {
	return &playerState{
		ref:      ref,
		health:   StartingHealth,
		mana:     mana.NewLedger(),
		drawPile: cards.NewDrawPile(nil),
		hand:     cards.NewPile(cards.ZoneHand),
		field:    cards.NewPile(cards.ZoneField),
		grave:    cards.NewPile(cards.ZoneGrave),
	}
}

// deal shuffles pool into a fresh draw pile.
func (p *playerState) deal(pool []*cards.Instance, rng *rand.Rand) {
	live := make([]*cards.Instance, len(pool))
	copy(live, pool)
	cards.Shuffle(live, rng)

	p.deck = make([]*cards.Instance, len(live))
	for i, c := range live {
		p.deck[i] = c.Clone()
	}
	p.drawPile = cards.NewDrawPile(live)
}

// startTurn restores the field and refills mana for turn.
func (p *playerState) startTurn(turn int) {
	p.field.Each(func(c *cards.Instance) {
		c.Refresh()
	})
	p.hasActed = false
	p.mana.Refill(turn)
}
