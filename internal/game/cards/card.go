package cards

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pantheon/duel-server-go/internal/game/effects"
)

// CombatStance selects which value a card fights with.
type CombatStance int

const (
	StanceAttack CombatStance = iota
	StanceDefense
)

func (s CombatStance) String() string {
	switch s {
	case StanceAttack:
		return "attack"
	case StanceDefense:
		return "defense"
	default:
		return fmt.Sprintf("stance_%d", int(s))
	}
}

// ParseCombatStance accepts "attack" or "defense".
func ParseCombatStance(s string) (CombatStance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "attack":
		return StanceAttack, nil
	case "defense", "defence":
		return StanceDefense, nil
	default:
		return 0, fmt.Errorf("unknown combat stance %q", s)
	}
}

// RevealStance tells whether a card was played face up or face down.
type RevealStance int

const (
	RevealOpen RevealStance = iota
	RevealHidden
)

func (r RevealStance) String() string {
	switch r {
	case RevealOpen:
		return "open"
	case RevealHidden:
		return "hidden"
	default:
		return fmt.Sprintf("reveal_%d", int(r))
	}
}

// ParseRevealStance accepts "open" or "hidden".
func ParseRevealStance(s string) (RevealStance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open", "":
		return RevealOpen, nil
	case "hidden":
		return RevealHidden, nil
	default:
		return 0, fmt.Errorf("unknown reveal stance %q", s)
	}
}

// Zone is where a card instance currently lives.
type Zone int

const (
	ZoneDeck Zone = iota
	ZoneHand
	ZoneField
	ZoneGrave
)

func (z Zone) String() string {
	switch z {
	case ZoneDeck:
		return "deck"
	case ZoneHand:
		return "hand"
	case ZoneField:
		return "field"
	case ZoneGrave:
		return "grave"
	default:
		return fmt.Sprintf("zone_%d", int(z))
	}
}

// Card is a catalogue entry.
type Card struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Mana     int      `yaml:"mana"`
	Religion string   `yaml:"religion_type"`
	Attack   int      `yaml:"attack"`
	Defense  int      `yaml:"defense"`
	Text     string   `yaml:"text"`
	Image    string   `yaml:"img"`
	Effects  []string `yaml:"effect"`
}

// Instance is an in-match copy of a catalogue card.
type Instance struct {
	ID       string
	Key      string
	Name     string
	Mana     int
	Religion string
	Text     string
	Image    string

	Attack      int
	Defense     int
	BaseAttack  int
	BaseDefense int

	Effects effects.Set
	Combat  CombatStance
	Reveal  RevealStance
	Trapped bool
	Zone    Zone
}

// NewInstance creates an instance of c identified by key. Unknown effect tags
// are ignored; they have no combat meaning.
func NewInstance(c Card, key string) *Instance {
	set, _ := effects.ParseSet(c.Effects)
	return &Instance{
		ID:          c.ID,
		Key:         key,
		Name:        c.Name,
		Mana:        c.Mana,
		Religion:    c.Religion,
		Text:        c.Text,
		Image:       c.Image,
		Attack:      c.Attack,
		Defense:     c.Defense,
		BaseAttack:  c.Attack,
		BaseDefense: c.Defense,
		Effects:     set,
		Zone:        ZoneDeck,
	}
}

// Instantiate turns a card pool into instances with fresh unique keys.
func Instantiate(pool []Card) []*Instance {
	out := make([]*Instance, 0, len(pool))
	for _, c := range pool {
		out = append(out, NewInstance(c, uuid.NewString()))
	}
	return out
}

// FightsWithAttack reports whether the card uses its attack value in combat.
// Hidden or defending cards always fight with defense.
func (c *Instance) FightsWithAttack() bool {
	return c.Combat == StanceAttack && c.Reveal == RevealOpen
}

// FightValue is the number used for this card in a fight.
func (c *Instance) FightValue() int {
	if c.FightsWithAttack() {
		return c.Attack
	}
	return c.Defense
}

// TakeDamage reduces the value the card fights with. Values may go negative.
func (c *Instance) TakeDamage(amount int) {
	if amount <= 0 {
		return
	}
	if c.FightsWithAttack() {
		c.Attack -= amount
		return
	}
	c.Defense -= amount
}

// StripEffects removes the given effects from the card.
func (c *Instance) StripEffects(s effects.Set) {
	c.Effects = c.Effects.Without(s)
}

// Trap forces the card into defense stance until released.
func (c *Instance) Trap() {
	c.Trapped = true
	c.Combat = StanceDefense
}

// SetCombatStance changes the stance unless the card is trapped.
func (c *Instance) SetCombatStance(s CombatStance) error {
	if c.Trapped {
		return ErrTrapped
	}
	c.Combat = s
	return nil
}

// RevealCard turns a hidden card face up.
func (c *Instance) RevealCard() {
	c.Reveal = RevealOpen
}

// Refresh restores catalogue values. Stances and the trap survive.
func (c *Instance) Refresh() {
	c.Attack = c.BaseAttack
	c.Defense = c.BaseDefense
}

// Clone returns an independent copy.
func (c *Instance) Clone() *Instance {
	cp := *c
	return &cp
}
