package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantheon/duel-server-go/internal/game/cards"
	"github.com/pantheon/duel-server-go/internal/game/effects"
)

func TestToCards(t *testing.T) {
	rows := []cardRow{
		{ID: 7, Name: "Anubis", Mana: 4, Religion: "egyptian", Attack: 3, Defense: 6, Text: "Guide of souls", Image: "anubis.png", Effects: []string{"CAGE"}},
		{ID: 7, Name: "Anubis", Mana: 4, Religion: "egyptian", Attack: 3, Defense: 6, Effects: []string{"CAGE"}},
		{ID: 9, Name: "Thor", Mana: 5, Religion: "norse", Attack: 7, Defense: 2},
	}

	out := toCards(rows)
	require.Len(t, out, 3)
	assert.Equal(t, cards.Card{
		ID:       "7",
		Name:     "Anubis",
		Mana:     4,
		Religion: "egyptian",
		Attack:   3,
		Defense:  6,
		Text:     "Guide of souls",
		Image:    "anubis.png",
		Effects:  []string{"CAGE"},
	}, out[0])
	assert.Equal(t, "9", out[2].ID)
	assert.Empty(t, out[2].Effects)

	instances := cards.Instantiate(out)
	assert.NotEqual(t, instances[0].Key, instances[1].Key, "owned copies become distinct instances")
	assert.True(t, instances[0].Effects.Has(effects.Cage))
}

func TestToCards_Empty(t *testing.T) {
	assert.Empty(t, toCards(nil))
}
