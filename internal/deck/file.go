package deck

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pantheon/duel-server-go/internal/game/cards"
	"github.com/pantheon/duel-server-go/internal/game/effects"
)

// ErrNoDeck is returned for a player without deck entries.
var ErrNoDeck = errors.New("player has no deck")

// File is the YAML layout: a card catalogue plus one deck per player.
type File struct {
	Cards []cards.Card `yaml:"cards"`
	Decks []Entry      `yaml:"decks"`
}

// Entry is one player's deck.
type Entry struct {
	Player string      `yaml:"player"`
	Cards  []CardCount `yaml:"cards"`
}

// CardCount references a catalogue card by id.
type CardCount struct {
	ID    string `yaml:"id"`
	Count int    `yaml:"count"`
}

// FileSource serves decks from a YAML file loaded once at startup.
type FileSource struct {
	catalogue map[string]cards.Card
	decks     map[string][]CardCount
	logger    *zap.Logger
}

// LoadFile reads and validates a deck file.
func LoadFile(path string, logger *zap.Logger) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deck file: %w", err)
	}
	return Parse(data, logger)
}

// Parse builds a FileSource from YAML. Every deck entry must reference a
// catalogue card with a positive count.
func Parse(data []byte, logger *zap.Logger) (*FileSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse deck YAML: %w", err)
	}

	src := &FileSource{
		catalogue: make(map[string]cards.Card, len(f.Cards)),
		decks:     make(map[string][]CardCount, len(f.Decks)),
		logger:    logger,
	}
	for _, c := range f.Cards {
		if c.ID == "" {
			return nil, fmt.Errorf("card %q has no id", c.Name)
		}
		if _, dup := src.catalogue[c.ID]; dup {
			return nil, fmt.Errorf("duplicate card id %q", c.ID)
		}
		if _, unknown := effects.ParseSet(c.Effects); len(unknown) > 0 {
			logger.Warn("ignoring unknown card effects", zap.String("card_id", c.ID), zap.Strings("effects", unknown))
		}
		src.catalogue[c.ID] = c
	}
	for _, d := range f.Decks {
		for _, cc := range d.Cards {
			if _, ok := src.catalogue[cc.ID]; !ok {
				return nil, fmt.Errorf("deck %q references unknown card %q", d.Player, cc.ID)
			}
			if cc.Count < 1 {
				return nil, fmt.Errorf("deck %q has non-positive count for %q", d.Player, cc.ID)
			}
		}
		src.decks[d.Player] = append(src.decks[d.Player], d.Cards...)
	}

	logger.Info("deck file loaded",
		zap.Int("cards", len(src.catalogue)),
		zap.Int("decks", len(src.decks)),
	)
	return src, nil
}

// FetchDeck returns freshly keyed instances of the player's deck.
func (s *FileSource) FetchDeck(ctx context.Context, playerID string) ([]*cards.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, ok := s.decks[playerID]
	if !ok || len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDeck, playerID)
	}

	var pool []cards.Card
	for _, cc := range entries {
		for range cc.Count {
			pool = append(pool, s.catalogue[cc.ID])
		}
	}
	return cards.Instantiate(pool), nil
}
