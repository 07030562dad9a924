package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/pantheon/duel-server-go/internal/game/cards"
)

// ErrNoCards is returned when a player owns no catalogue cards.
var ErrNoCards = errors.New("player has no cards")

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const importBatchSize = 500

// CardRepository reads player decks from the card catalogue.
type CardRepository struct {
	db     querier
	logger *zap.Logger
}

// NewCardRepository creates a repository on db's pool.
func NewCardRepository(db *DB, logger *zap.Logger) *CardRepository {
	return &CardRepository{db: db.Pool(), logger: logger}
}

type cardRow struct {
	ID       int64    `db:"id"`
	Name     string   `db:"name"`
	Mana     int32    `db:"mana"`
	Religion string   `db:"religion_type"`
	Attack   int32    `db:"attack"`
	Defense  int32    `db:"defense"`
	Text     string   `db:"text"`
	Image    string   `db:"img"`
	Effects  []string `db:"effect"`
}

const deckQuery = `
	SELECT c.id, c.name, c.mana, c.religion_type, c.attack, c.defense,
	       COALESCE(c.text, '') AS text, COALESCE(c.img, '') AS img, c.effect
	FROM users u
	JOIN user_cards uc ON uc.user_id = u.id
	JOIN cards c ON c.id = uc.card_id
	WHERE u.name = $1
	ORDER BY uc.position`

// FetchDeck loads every card the player owns, one instance per owned copy.
func (r *CardRepository) FetchDeck(ctx context.Context, playerID string) ([]*cards.Instance, error) {
	rows, err := r.db.Query(ctx, deckQuery, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deck for %s: %w", playerID, err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[cardRow])
	if err != nil {
		return nil, fmt.Errorf("failed to read deck for %s: %w", playerID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCards, playerID)
	}

	r.logger.Debug("deck loaded", zap.String("player_id", playerID), zap.Int("cards", len(records)))
	return cards.Instantiate(toCards(records)), nil
}

// GrantCard gives playerID one more copy of cardID, creating the user on
// first use.
func (r *CardRepository) GrantCard(ctx context.Context, playerID string, cardID int64) error {
	_, err := r.db.Exec(ctx, `
		WITH u AS (
			INSERT INTO users (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		)
		INSERT INTO user_cards (user_id, card_id) SELECT u.id, $2 FROM u`,
		playerID, cardID,
	)
	if err != nil {
		return fmt.Errorf("failed to grant card %d to %s: %w", cardID, playerID, err)
	}
	return nil
}

// ImportCards inserts catalogue cards in batches, one transaction per batch.
// With replace set the catalogue, and every ownership row with it, is
// truncated first. It returns how many cards were inserted.
func (r *CardRepository) ImportCards(ctx context.Context, catalogue []cards.Card, replace bool) (int, error) {
	if replace {
		if _, err := r.db.Exec(ctx, "TRUNCATE cards RESTART IDENTITY CASCADE"); err != nil {
			return 0, fmt.Errorf("failed to clear cards: %w", err)
		}
		r.logger.Info("card catalogue cleared")
	}

	imported := 0
	for start := 0; start < len(catalogue); start += importBatchSize {
		end := min(start+importBatchSize, len(catalogue))
		chunk := catalogue[start:end]

		err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
			batch := &pgx.Batch{}
			for _, c := range chunk {
				batch.Queue(`
					INSERT INTO cards (name, mana, religion_type, attack, defense, text, img, effect)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
					c.Name, c.Mana, c.Religion, c.Attack, c.Defense, c.Text, c.Image, effectsOrEmpty(c.Effects),
				)
			}
			return tx.SendBatch(ctx, batch).Close()
		})
		if err != nil {
			return imported, fmt.Errorf("failed to import cards %d-%d: %w", start, end, err)
		}
		imported += len(chunk)
		r.logger.Debug("card batch imported", zap.Int("imported", imported), zap.Int("total", len(catalogue)))
	}

	r.logger.Info("card catalogue imported", zap.Int("cards", imported))
	return imported, nil
}

func effectsOrEmpty(effects []string) []string {
	if effects == nil {
		return []string{}
	}
	return effects
}

func toCards(rows []cardRow) []cards.Card {
	out := make([]cards.Card, 0, len(rows))
	for _, row := range rows {
		out = append(out, cards.Card{
			ID:       strconv.FormatInt(row.ID, 10),
			Name:     row.Name,
			Mana:     int(row.Mana),
			Religion: row.Religion,
			Attack:   int(row.Attack),
			Defense:  int(row.Defense),
			Text:     row.Text,
			Image:    row.Image,
			Effects:  row.Effects,
		})
	}
	return out
}
