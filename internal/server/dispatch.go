package server

import (
	"context"
	"fmt"

	"github.com/pantheon/duel-server-go/internal/game"
	"github.com/pantheon/duel-server-go/internal/game/cards"
)

// ClientMessage is an inbound request from a player.
type ClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	CardKey   string `json:"card_key,omitempty"`
	TargetKey string `json:"target_key,omitempty"`
	Amount    int    `json:"amount,omitempty"`
	Stance    string `json:"stance,omitempty"`
	Reveal    string `json:"reveal,omitempty"`
}

const (
	MsgQuickMatch      = "quick_match"
	MsgCreatePrivate   = "create_private"
	MsgJoin            = "join"
	MsgLeave           = "leave"
	MsgDrawInitialHand = "draw_initial_hand"
	MsgDrawCard        = "draw_card"
	MsgConvertMana     = "convert_mana"
	MsgPlayCard        = "play_card"
	MsgSetStance       = "set_stance"
	MsgAttack          = "attack"
	MsgAttackPlayer    = "attack_player"
	MsgEndTurn         = "end_turn"
	MsgState           = "state"
)

var (
	ErrUnknownMessage = fmt.Errorf("%w: unknown message type", game.ErrInvalidState)
	ErrBadRequest     = fmt.Errorf("%w: malformed request", game.ErrInvalidState)
)

// Actions is the matchmaking and gameplay surface the transport drives.
type Actions interface {
	QuickMatch(ctx context.Context, ref game.PlayerRef) (string, error)
	CreatePrivate(ref game.PlayerRef) (string, error)
	JoinByID(ctx context.Context, ref game.PlayerRef, id string) error
	Leave(conn game.ConnID) error
	OnDisconnect(conn game.ConnID)
	SessionOf(conn game.ConnID) (string, bool)

	DrawInitialHand(sessionID string, conn game.ConnID) error
	DrawCard(sessionID string, conn game.ConnID) error
	ConvertMana(sessionID string, conn game.ConnID, amount int) error
	PlayCard(sessionID string, conn game.ConnID, key string, stance cards.CombatStance, reveal cards.RevealStance) error
	SetCombatStance(sessionID string, conn game.ConnID, key string, stance cards.CombatStance) error
	DeclareAttack(sessionID string, conn game.ConnID, attackKey, defendKey string) error
	AttackPlayer(sessionID string, conn game.ConnID, key string) error
	EndTurn(sessionID string, conn game.ConnID) error
	View(sessionID string, conn game.ConnID) (game.SessionView, error)
}

// dispatch runs one message. A non-nil reply is sent back as a state event.
func dispatch(ctx context.Context, actions Actions, ref game.PlayerRef, msg ClientMessage) (reply any, err error) {
	switch msg.Type {
	case MsgQuickMatch:
		_, err = actions.QuickMatch(ctx, ref)
		return nil, err
	case MsgCreatePrivate:
		_, err = actions.CreatePrivate(ref)
		return nil, err
	case MsgJoin:
		if msg.SessionID == "" {
			return nil, fmt.Errorf("%w: session_id is required", ErrBadRequest)
		}
		return nil, actions.JoinByID(ctx, ref, msg.SessionID)
	case MsgLeave:
		return nil, actions.Leave(ref.Conn)
	}

	sessionID := msg.SessionID
	if sessionID == "" {
		id, ok := actions.SessionOf(ref.Conn)
		if !ok {
			return nil, fmt.Errorf("%w: not in a session", game.ErrSessionNotFound)
		}
		sessionID = id
	}

	switch msg.Type {
	case MsgDrawInitialHand:
		return nil, actions.DrawInitialHand(sessionID, ref.Conn)
	case MsgDrawCard:
		return nil, actions.DrawCard(sessionID, ref.Conn)
	case MsgConvertMana:
		return nil, actions.ConvertMana(sessionID, ref.Conn, msg.Amount)
	case MsgPlayCard:
		stance, err := parseStance(msg.Stance)
		if err != nil {
			return nil, err
		}
		reveal, err := cards.ParseRevealStance(msg.Reveal)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		return nil, actions.PlayCard(sessionID, ref.Conn, msg.CardKey, stance, reveal)
	case MsgSetStance:
		stance, err := parseStance(msg.Stance)
		if err != nil {
			return nil, err
		}
		return nil, actions.SetCombatStance(sessionID, ref.Conn, msg.CardKey, stance)
	case MsgAttack:
		return nil, actions.DeclareAttack(sessionID, ref.Conn, msg.CardKey, msg.TargetKey)
	case MsgAttackPlayer:
		return nil, actions.AttackPlayer(sessionID, ref.Conn, msg.CardKey)
	case MsgEndTurn:
		return nil, actions.EndTurn(sessionID, ref.Conn)
	case MsgState:
		view, err := actions.View(sessionID, ref.Conn)
		if err != nil {
			return nil, err
		}
		return view, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}

func parseStance(s string) (cards.CombatStance, error) {
	stance, err := cards.ParseCombatStance(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return stance, nil
}
