package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pantheon/duel-server-go/internal/game"
	"github.com/pantheon/duel-server-go/internal/server"
)

// Options configures one bot.
type Options struct {
	URL       string
	Player    string
	Token     string
	SessionID string // join this private session instead of quick matching
	Private   bool   // host a private session
	MaxTurns  int    // leave once the shared turn counter passes this; 0 plays on
}

type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Result is how a bot's match ended.
type Result struct {
	SessionID string
	Outcome   string // one of the match-ending event names, or "left"
	Turns     int
}

type bot struct {
	opts   Options
	conn   *websocket.Conn
	logger *zap.Logger

	sessionID string
	turn      int
	planning  bool
}

// Run connects, plays one match and returns how it ended.
func Run(ctx context.Context, opts Options, logger *zap.Logger) (Result, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return Result{}, fmt.Errorf("invalid url: %w", err)
	}
	q := u.Query()
	q.Set("player", opts.Player)
	if opts.Token != "" {
		q.Set("token", opts.Token)
	}
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return Result{}, fmt.Errorf("dial %s: %w (HTTP %d)", opts.URL, err, resp.StatusCode)
		}
		return Result{}, fmt.Errorf("dial %s: %w", opts.URL, err)
	}
	defer conn.Close()

	b := &bot{opts: opts, conn: conn, logger: logger.With(zap.String("player_id", opts.Player))}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	return b.play()
}

func (b *bot) send(msg server.ClientMessage) error {
	if msg.SessionID == "" {
		msg.SessionID = b.sessionID
	}
	return b.conn.WriteJSON(msg)
}

func (b *bot) play() (Result, error) {
	first := server.ClientMessage{Type: server.MsgQuickMatch}
	switch {
	case b.opts.SessionID != "":
		first = server.ClientMessage{Type: server.MsgJoin, SessionID: b.opts.SessionID}
	case b.opts.Private:
		first = server.ClientMessage{Type: server.MsgCreatePrivate}
	}
	if err := b.send(first); err != nil {
		return Result{}, err
	}

	for {
		var env envelope
		if err := b.conn.ReadJSON(&env); err != nil {
			return b.result("disconnected"), fmt.Errorf("read: %w", err)
		}
		done, err := b.handle(env)
		if err != nil {
			return b.result("error"), err
		}
		if done != "" {
			return b.result(done), nil
		}
	}
}

func (b *bot) result(outcome string) Result {
	return Result{SessionID: b.sessionID, Outcome: outcome, Turns: b.turn}
}

// handle reacts to one server event. A non-empty return ends the match.
func (b *bot) handle(env envelope) (string, error) {
	switch env.Event {
	case game.EventMatchCreated:
		var p game.MatchCreated
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return "", err
		}
		b.sessionID = p.SessionID
		b.logger.Info("waiting for an opponent", zap.String("session_id", p.SessionID), zap.Bool("private", p.Private))

	case game.EventMatchStart:
		var p game.MatchStart
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return "", err
		}
		b.sessionID = p.SessionID
		b.turn = p.Turn
		b.logger.Info("match started",
			zap.String("session_id", p.SessionID),
			zap.String("opponent", p.Opponent),
			zap.Bool("first_turn", p.FirstTurn),
		)
		if err := b.send(server.ClientMessage{Type: server.MsgDrawInitialHand}); err != nil {
			return "", err
		}
		return "", b.startTurn(false)

	case game.EventNewTurn:
		var p game.NewTurn
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return "", err
		}
		b.turn = p.Turn
		if b.opts.MaxTurns > 0 && p.Turn > b.opts.MaxTurns {
			b.logger.Info("turn limit reached, leaving", zap.Int("turn", p.Turn))
			return "left", nil
		}
		return "", b.startTurn(true)

	case game.EventState:
		if !b.planning {
			return "", nil
		}
		b.planning = false
		var view game.SessionView
		if err := json.Unmarshal(env.Payload, &view); err != nil {
			return "", err
		}
		for _, msg := range plan(view) {
			if err := b.send(msg); err != nil {
				return "", err
			}
		}

	case game.EventFightResult:
		var p game.FightResult
		if err := json.Unmarshal(env.Payload, &p); err == nil {
			b.logger.Debug("fight", zap.Any("result", p))
		}

	case game.EventError:
		var p game.ErrorNotice
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return "", err
		}
		b.logger.Warn("action rejected", zap.String("action", p.Action), zap.String("code", p.Code), zap.String("message", p.Message))

	case game.EventMatchWon, game.EventMatchLost, game.EventMatchDraw,
		game.EventOpponentDisconnected, game.EventMatchExpired:
		b.logger.Info("match over", zap.String("outcome", env.Event), zap.Int("turn", b.turn))
		return env.Event, nil
	}
	return "", nil
}

// startTurn optionally draws, then asks for the state the plan is built on.
func (b *bot) startTurn(draw bool) error {
	if draw {
		if err := b.send(server.ClientMessage{Type: server.MsgDrawCard}); err != nil {
			return err
		}
	}
	b.planning = true
	return b.send(server.ClientMessage{Type: server.MsgState})
}

// plan plays the first card in hand, sends every ready attacker at the
// opponent's field (or face when it is empty) and ends the turn.
func plan(view game.SessionView) []server.ClientMessage {
	var out []server.ClientMessage
	if view.You == nil {
		return []server.ClientMessage{{Type: server.MsgEndTurn}}
	}

	if len(view.You.Hand) > 0 {
		out = append(out, server.ClientMessage{
			Type:    server.MsgPlayCard,
			CardKey: view.You.Hand[0].Key,
			Stance:  "attack",
			Reveal:  "open",
		})
	}

	var targets []game.CardView
	if view.Opponent != nil {
		targets = view.Opponent.Field
	}
	next := 0
	for _, c := range view.You.Field {
		if c.Trapped || c.Stance != "attack" {
			continue
		}
		if next < len(targets) {
			out = append(out, server.ClientMessage{Type: server.MsgAttack, CardKey: c.Key, TargetKey: targets[next].Key})
			next++
			continue
		}
		out = append(out, server.ClientMessage{Type: server.MsgAttackPlayer, CardKey: c.Key})
	}

	return append(out, server.ClientMessage{Type: server.MsgEndTurn})
}
