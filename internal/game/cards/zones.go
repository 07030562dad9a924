package cards

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
)

var (
	// ErrTrapped is returned when the owner tries to move a trapped card out of defense.
	ErrTrapped = errors.New("card is trapped")
	// ErrDuplicateKey is returned when a pile already holds a card with the same key.
	ErrDuplicateKey = errors.New("duplicate card key")
	// ErrNotInZone is returned when a move names a card the source pile lacks.
	ErrNotInZone = errors.New("card not in zone")
)

// Pile is an unordered zone indexed by card key.
type Pile struct {
	zone  Zone
	cards map[string]*Instance
}

// NewPile creates an empty pile for zone z.
func NewPile(z Zone) *Pile {
	return &Pile{zone: z, cards: make(map[string]*Instance)}
}

// Zone returns the zone the pile represents.
func (p *Pile) Zone() Zone {
	return p.zone
}

// Add inserts c and moves it into the pile's zone.
func (p *Pile) Add(c *Instance) error {
	if _, exists := p.cards[c.Key]; exists {
		return fmt.Errorf("%w: %s in %s", ErrDuplicateKey, c.Key, p.zone)
	}
	c.Zone = p.zone
	p.cards[c.Key] = c
	return nil
}

// Get looks up a card by key.
func (p *Pile) Get(key string) (*Instance, bool) {
	c, ok := p.cards[key]
	return c, ok
}

// Remove takes the card out of the pile.
func (p *Pile) Remove(key string) (*Instance, bool) {
	c, ok := p.cards[key]
	if ok {
		delete(p.cards, key)
	}
	return c, ok
}

// Len returns the number of cards.
func (p *Pile) Len() int {
	return len(p.cards)
}

// List returns the cards sorted by key so views are stable.
func (p *Pile) List() []*Instance {
	out := make([]*Instance, 0, len(p.cards))
	for _, c := range p.cards {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Each calls fn for every card in unspecified order.
func (p *Pile) Each(fn func(*Instance)) {
	for _, c := range p.cards {
		fn(c)
	}
}

// DrawPile is the ordered remainder of a deck. Cards are drawn from the end.
type DrawPile struct {
	cards []*Instance
}

// NewDrawPile wraps cards; the slice is owned by the pile afterwards.
func NewDrawPile(cards []*Instance) *DrawPile {
	for _, c := range cards {
		c.Zone = ZoneDeck
	}
	return &DrawPile{cards: cards}
}

// Pop removes the top card. It reports false when the pile is empty.
func (d *DrawPile) Pop() (*Instance, bool) {
	n := len(d.cards)
	if n == 0 {
		return nil, false
	}
	c := d.cards[n-1]
	d.cards[n-1] = nil
	d.cards = d.cards[:n-1]
	return c, true
}

// Len returns the number of cards left.
func (d *DrawPile) Len() int {
	return len(d.cards)
}

// Shuffle permutes cards in place with a uniform Fisher-Yates shuffle.
func Shuffle(cards []*Instance, rng *rand.Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// Draw moves the top card of the draw pile into hand.
func Draw(from *DrawPile, hand *Pile) (*Instance, bool) {
	c, ok := from.Pop()
	if !ok {
		return nil, false
	}
	if err := hand.Add(c); err != nil {
		// keys are unique per match, so this only happens on a corrupted deck
		from.cards = append(from.cards, c)
		return nil, false
	}
	return c, true
}

// Play moves a card from hand to field with the declared stances. On error
// both piles are left as they were.
func Play(hand, field *Pile, key string, combat CombatStance, reveal RevealStance) (*Instance, error) {
	c, err := move(hand, field, key)
	if err != nil {
		return nil, err
	}
	c.Combat = combat
	c.Reveal = reveal
	return c, nil
}

// Bury moves a dead card from field to grave.
func Bury(field, grave *Pile, key string) (*Instance, error) {
	return move(field, grave, key)
}

func move(from, to *Pile, key string) (*Instance, error) {
	c, ok := from.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s not in %s", ErrNotInZone, key, from.zone)
	}
	if err := to.Add(c); err != nil {
		return nil, err
	}
	delete(from.cards, key)
	return c, nil
}
