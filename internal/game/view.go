package game

import (
	"github.com/pantheon/duel-server-go/internal/game/cards"
)

// CardView is the client-facing shape of a card instance.
type CardView struct {
	Key       string   `json:"key"`
	ID        string   `json:"id,omitempty"`
	Name      string   `json:"name,omitempty"`
	Mana      int      `json:"mana,omitempty"`
	Religion  string   `json:"religion_type,omitempty"`
	Text      string   `json:"text,omitempty"`
	Image     string   `json:"img,omitempty"`
	Attack    int      `json:"attack"`
	Defense   int      `json:"defense"`
	Effects   []string `json:"effects,omitempty"`
	Stance    string   `json:"stance"`
	Reveal    string   `json:"reveal"`
	Trapped   bool     `json:"trapped,omitempty"`
	Concealed bool     `json:"concealed,omitempty"`
}

func viewOf(c *cards.Instance) CardView {
	return CardView{
		Key:      c.Key,
		ID:       c.ID,
		Name:     c.Name,
		Mana:     c.Mana,
		Religion: c.Religion,
		Text:     c.Text,
		Image:    c.Image,
		Attack:   c.Attack,
		Defense:  c.Defense,
		Effects:  c.Effects.Strings(),
		Stance:   c.Combat.String(),
		Reveal:   c.Reveal.String(),
		Trapped:  c.Trapped,
	}
}

// publicView hides a face-down card from the opponent.
func publicView(c *cards.Instance) CardView {
	if c.Reveal != cards.RevealHidden {
		return viewOf(c)
	}
	return CardView{
		Key:       c.Key,
		Stance:    c.Combat.String(),
		Reveal:    c.Reveal.String(),
		Trapped:   c.Trapped,
		Concealed: true,
	}
}

func viewsOf(list []*cards.Instance, view func(*cards.Instance) CardView) []CardView {
	out := make([]CardView, 0, len(list))
	for _, c := range list {
		out = append(out, view(c))
	}
	return out
}

// PlayerView is one side of the board.
type PlayerView struct {
	PlayerID            string     `json:"player_id"`
	Health              int        `json:"health"`
	Mana                int        `json:"mana"`
	ManaCap             int        `json:"mana_cap"`
	ManaLockedUntilTurn int        `json:"mana_locked_until_turn"`
	DeckSize            int        `json:"deck_size"`
	DrawPile            int        `json:"draw_pile"`
	HandSize            int        `json:"hand_size"`
	Hand                []CardView `json:"hand,omitempty"`
	Field               []CardView `json:"field"`
	Grave               []CardView `json:"grave"`
	HasActed            bool       `json:"has_acted"`
}

// SessionView is the whole match from one player's perspective.
type SessionView struct {
	SessionID string      `json:"session_id"`
	Status    string      `json:"status"`
	Turn      int         `json:"turn"`
	FirstTurn bool        `json:"first_turn"` // leads the current turn
	You       *PlayerView `json:"you"`
	Opponent  *PlayerView `json:"opponent,omitempty"`
}

func (p *playerState) view(own bool) PlayerView {
	v := PlayerView{
		PlayerID:            p.ref.ID,
		Health:              p.health,
		Mana:                p.mana.Available,
		ManaCap:             p.mana.Cap(),
		ManaLockedUntilTurn: p.mana.LockedUntilTurn,
		DeckSize:            len(p.deck),
		DrawPile:            p.drawPile.Len(),
		HandSize:            p.hand.Len(),
		Grave:               viewsOf(p.grave.List(), viewOf),
		HasActed:            p.hasActed,
	}
	if own {
		v.Hand = viewsOf(p.hand.List(), viewOf)
		v.Field = viewsOf(p.field.List(), viewOf)
	} else {
		v.Field = viewsOf(p.field.List(), publicView)
	}
	return v
}
