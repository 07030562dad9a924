package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pantheon/duel-server-go/internal/game/cards"
	"github.com/pantheon/duel-server-go/internal/game/combat"
	"github.com/pantheon/duel-server-go/internal/game/effects"
	"github.com/pantheon/duel-server-go/internal/game/mana"
)

// Session is one two-player match. All state is guarded by mu; events are
// delivered only after mu is released.
type Session struct {
	ID        string
	createdAt time.Time

	mu      sync.Mutex
	status  Status
	turn    int
	first   int
	players [2]*playerState

	source   DeckSource
	notifier Notifier
	logger   *zap.Logger
	rng      *rand.Rand
}

// Option configures a Session.
type Option func(*Session)

// WithRand sets the source used for shuffling and first-player selection.
func WithRand(rng *rand.Rand) Option {
	return func(s *Session) {
		s.rng = rng
	}
}

// NewSession creates a Waiting session hosted by host.
func NewSession(id string, host PlayerRef, source DeckSource, notifier Notifier, logger *zap.Logger, opts ...Option) *Session {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		ID:        id,
		createdAt: time.Now(),
		status:    StatusWaiting,
		source:    source,
		notifier:  notifier,
		logger:    logger.With(zap.String("session_id", id)),
	}
	s.players[0] = newPlayerState(host)
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Status returns the lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Turn returns the current turn number, 0 before the match starts.
func (s *Session) Turn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// Players returns the seated players, host first.
func (s *Session) Players() []PlayerRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := make([]PlayerRef, 0, 2)
	for _, p := range s.players {
		if p != nil {
			refs = append(refs, p.ref)
		}
	}
	return refs
}

// HasConn reports whether conn is seated in this session.
func (s *Session) HasConn(conn ConnID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seat(conn)
	return ok
}

// Opponent returns the other player seated opposite conn.
func (s *Session) Opponent(conn ConnID) (PlayerRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.seat(conn)
	if !ok || s.players[1-i] == nil {
		return PlayerRef{}, false
	}
	return s.players[1-i].ref, true
}

// Attach seats guest, fetches both decks and starts the match. On any error
// the session stays Waiting and unchanged.
func (s *Session) Attach(ctx context.Context, guest PlayerRef) error {
	return s.do("attach", guest.Conn, func(out *outbox) error {
		if s.players[1] != nil {
			return ErrSessionFull
		}
		if s.status != StatusWaiting {
			return fmt.Errorf("%w: session %s is %s", ErrInvalidState, s.ID, s.status)
		}
		host := s.players[0]
		if host.ref.Conn == guest.Conn {
			return fmt.Errorf("%w: cannot join own session", ErrInvalidState)
		}

		decks, err := s.fetchDecks(ctx, host.ref.ID, guest.ID)
		if err != nil {
			return err
		}

		visitor := newPlayerState(guest)
		host.deal(decks[0], s.rng)
		visitor.deal(decks[1], s.rng)
		s.players[1] = visitor
		s.turn = 1
		s.first = s.rng.IntN(2)
		s.status = StatusPlaying

		for i, p := range s.players {
			out.send(p.ref.Conn, EventMatchStart, MatchStart{
				SessionID: s.ID,
				Opponent:  s.players[1-i].ref.ID,
				FirstTurn: i == s.first,
				Turn:      s.turn,
				Health:    p.health,
				Mana:      p.mana.Available,
				DeckSize:  len(p.deck),
			})
		}
		s.logger.Info("match started",
			zap.String("host", host.ref.ID),
			zap.String("guest", guest.ID),
			zap.String("first", s.players[s.first].ref.ID),
		)
		return nil
	})
}

// fetchDecks loads both decks concurrently and checks their keys are unique
// across the match.
func (s *Session) fetchDecks(ctx context.Context, hostID, guestID string) ([2][]*cards.Instance, error) {
	var decks [2][]*cards.Instance
	if s.source == nil {
		return decks, fmt.Errorf("%w: no deck source configured", ErrDeckUnavailable)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range [2]string{hostID, guestID} {
		g.Go(func() error {
			deck, err := s.source.FetchDeck(gctx, id)
			if err != nil {
				return fmt.Errorf("%w: player %s: %w", ErrDeckUnavailable, id, err)
			}
			if len(deck) == 0 {
				return fmt.Errorf("%w: player %s has no cards", ErrDeckUnavailable, id)
			}
			decks[i] = deck
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return decks, err
	}

	seen := make(map[string]struct{}, len(decks[0])+len(decks[1]))
	for _, deck := range decks {
		for _, c := range deck {
			if _, dup := seen[c.Key]; dup {
				return decks, fmt.Errorf("%w: duplicate card key %s", ErrDeckUnavailable, c.Key)
			}
			seen[c.Key] = struct{}{}
		}
	}
	return decks, nil
}

// DrawInitialHand draws up to InitialHandSize cards. It may be called once.
func (s *Session) DrawInitialHand(conn ConnID) error {
	return s.do("draw_initial_hand", conn, func(out *outbox) error {
		me, opp, err := s.acting(conn)
		if err != nil {
			return err
		}
		if me.drewInitialHand {
			return ErrInitialHandDrawn
		}

		drawn := make([]CardView, 0, InitialHandSize)
		for range InitialHandSize {
			c, ok := cards.Draw(me.drawPile, me.hand)
			if !ok {
				break
			}
			drawn = append(drawn, viewOf(c))
		}
		me.drewInitialHand = true

		out.send(me.ref.Conn, EventInitialHand, InitialHand{Cards: drawn, DrawPile: me.drawPile.Len()})
		out.send(opp.ref.Conn, EventOpponentDrew, OpponentDrew{Count: len(drawn), DrawPile: me.drawPile.Len()})
		return nil
	})
}

// DrawCard draws one card. An empty draw pile is a silent no-op.
func (s *Session) DrawCard(conn ConnID) error {
	return s.do("draw_card", conn, func(out *outbox) error {
		me, opp, err := s.acting(conn)
		if err != nil {
			return err
		}
		c, ok := cards.Draw(me.drawPile, me.hand)
		if !ok {
			return nil
		}
		out.send(me.ref.Conn, EventCardDrawn, CardDrawn{Card: viewOf(c), DrawPile: me.drawPile.Len()})
		out.send(opp.ref.Conn, EventOpponentDrew, OpponentDrew{Count: 1, DrawPile: me.drawPile.Len()})
		return nil
	})
}

// ConvertMana trades amount health for amount mana and locks further
// conversions for amount turns.
func (s *Session) ConvertMana(conn ConnID, amount int) error {
	return s.do("convert_mana", conn, func(out *outbox) error {
		me, opp, err := s.acting(conn)
		if err != nil {
			return err
		}
		if err := me.mana.Convert(amount, s.turn); err != nil {
			if errors.Is(err, mana.ErrLocked) {
				return fmt.Errorf("%w until turn %d", ErrManaLocked, me.mana.LockedUntilTurn)
			}
			return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
		}
		me.health -= amount

		ev := ManaConverted{
			PlayerID:        me.ref.ID,
			Amount:          amount,
			Health:          me.health,
			Mana:            me.mana.Available,
			LockedUntilTurn: me.mana.LockedUntilTurn,
		}
		out.send(me.ref.Conn, EventManaConverted, ev)
		out.send(opp.ref.Conn, EventManaConverted, ev)
		s.checkMatchEnd(out)
		return nil
	})
}

// PlayCard moves a card from hand to field. A key not in hand is ignored.
func (s *Session) PlayCard(conn ConnID, key string, stance cards.CombatStance, reveal cards.RevealStance) error {
	return s.do("play_card", conn, func(out *outbox) error {
		me, opp, err := s.acting(conn)
		if err != nil {
			return err
		}
		c, err := cards.Play(me.hand, me.field, key, stance, reveal)
		if errors.Is(err, cards.ErrNotInZone) {
			s.logger.Debug("play ignored, card not in hand",
				zap.String("player_id", me.ref.ID),
				zap.String("card_key", key),
			)
			return nil
		}
		if err != nil {
			return err
		}
		out.send(me.ref.Conn, EventCardPlayed, CardPlayed{PlayerID: me.ref.ID, Card: viewOf(c)})
		out.send(opp.ref.Conn, EventOpponentCardPlayed, CardPlayed{PlayerID: me.ref.ID, Card: publicView(c)})
		return nil
	})
}

// SetCombatStance switches a field card between attack and defense.
func (s *Session) SetCombatStance(conn ConnID, key string, stance cards.CombatStance) error {
	return s.do("set_stance", conn, func(out *outbox) error {
		me, opp, err := s.acting(conn)
		if err != nil {
			return err
		}
		c, ok := me.field.Get(key)
		if !ok {
			return fmt.Errorf("%w: %s", ErrCardNotFound, key)
		}
		if err := c.SetCombatStance(stance); err != nil {
			return fmt.Errorf("%w: %s", ErrCardTrapped, key)
		}
		out.send(me.ref.Conn, EventStanceChanged, StanceChanged{PlayerID: me.ref.ID, Card: viewOf(c)})
		out.send(opp.ref.Conn, EventStanceChanged, StanceChanged{PlayerID: me.ref.ID, Card: publicView(c)})
		return nil
	})
}

// DeclareAttack fights attackKey on the caller's field against defendKey on
// the opponent's field and applies the outcome.
func (s *Session) DeclareAttack(conn ConnID, attackKey, defendKey string) error {
	return s.do("attack", conn, func(out *outbox) error {
		me, opp, err := s.acting(conn)
		if err != nil {
			return err
		}
		atk, ok := me.field.Get(attackKey)
		if !ok {
			return fmt.Errorf("%w: attacker %s", ErrCardNotFound, attackKey)
		}
		def, ok := opp.field.Get(defendKey)
		if !ok {
			return fmt.Errorf("%w: defender %s", ErrCardNotFound, defendKey)
		}

		outcome := combat.Resolve(*atk, *def)
		if err := applyOutcome(me, opp, atk, def, outcome); err != nil {
			return err
		}

		ev := FightResult{
			AttackerID:           me.ref.ID,
			DefenderID:           opp.ref.ID,
			AttackerCard:         viewOf(atk),
			DefenderCard:         viewOf(def),
			AttackerValue:        outcome.AttackerValue,
			DefenderValue:        outcome.DefenderValue,
			AttackerDies:         outcome.AttackerDies,
			DefenderDies:         outcome.DefenderDies,
			AttackerCardDamage:   outcome.AttackerCardDamage,
			DefenderCardDamage:   outcome.DefenderCardDamage,
			AttackerPlayerDamage: outcome.AttackerPlayerDamage,
			DefenderPlayerDamage: outcome.DefenderPlayerDamage,
			EffectsConsumed:      outcome.ConsumedFromDefender.Strings(),
			EffectsOnAttacker:    outcome.AppliedToAttacker.Strings(),
			AttackerHealth:       me.health,
			DefenderHealth:       opp.health,
		}
		out.send(me.ref.Conn, EventFightResult, ev)
		out.send(opp.ref.Conn, EventFightResult, ev)

		s.logger.Debug("fight resolved",
			zap.String("attacker", attackKey),
			zap.String("defender", defendKey),
			zap.Int("attacker_value", outcome.AttackerValue),
			zap.Int("defender_value", outcome.DefenderValue),
			zap.Bool("attacker_dies", outcome.AttackerDies),
			zap.Bool("defender_dies", outcome.DefenderDies),
		)
		s.checkMatchEnd(out)
		return nil
	})
}

// applyOutcome mutates both sides. Dead cards are buried first so a failed
// move leaves the fight unapplied. Damage lands on the stat each card fought
// with, so it is applied before the cards are revealed.
func applyOutcome(me, opp *playerState, atk, def *cards.Instance, o combat.Outcome) error {
	if o.AttackerDies {
		if _, err := cards.Bury(me.field, me.grave, atk.Key); err != nil {
			return err
		}
	}
	if o.DefenderDies {
		if _, err := cards.Bury(opp.field, opp.grave, def.Key); err != nil {
			if o.AttackerDies {
				me.grave.Remove(atk.Key)
				_ = me.field.Add(atk)
			}
			return err
		}
	}

	if !o.AttackerDies {
		atk.TakeDamage(o.AttackerCardDamage)
		if effects.Traps(o.AppliedToAttacker) {
			atk.Trap()
		}
	}
	atk.RevealCard()

	if !o.DefenderDies {
		def.TakeDamage(o.DefenderCardDamage)
		def.StripEffects(o.ConsumedFromDefender)
	}
	def.RevealCard()

	me.health -= o.AttackerPlayerDamage
	opp.health -= o.DefenderPlayerDamage
	return nil
}

// AttackPlayer hits the opponent directly with a field card's attack value.
func (s *Session) AttackPlayer(conn ConnID, key string) error {
	return s.do("attack_player", conn, func(out *outbox) error {
		me, opp, err := s.acting(conn)
		if err != nil {
			return err
		}
		c, ok := me.field.Get(key)
		if !ok {
			return fmt.Errorf("%w: %s", ErrCardNotFound, key)
		}
		damage := max(c.Attack, 0)
		opp.health -= damage

		ev := PlayerAttacked{AttackerID: me.ref.ID, CardKey: key, Damage: damage, Health: opp.health}
		out.send(me.ref.Conn, EventPlayerAttacked, ev)
		out.send(opp.ref.Conn, EventPlayerAttacked, ev)
		s.checkMatchEnd(out)
		return nil
	})
}

// EndTurn marks the caller as done. Once both players are done the turn
// advances, fields are refreshed and mana refilled.
func (s *Session) EndTurn(conn ConnID) error {
	return s.do("end_turn", conn, func(out *outbox) error {
		me, opp, err := s.acting(conn)
		if err != nil {
			return err
		}
		if me.hasActed {
			return nil
		}
		me.hasActed = true
		out.send(opp.ref.Conn, EventTurnEnded, TurnEnded{PlayerID: me.ref.ID})
		if !opp.hasActed {
			return nil
		}

		s.turn++
		for i, p := range s.players {
			p.startTurn(s.turn)
			out.send(p.ref.Conn, EventNewTurn, NewTurn{
				Turn:     s.turn,
				Mana:     p.mana.Available,
				Health:   p.health,
				YourMove: i == s.leader(),
			})
		}
		s.logger.Debug("turn advanced", zap.Int("turn", s.turn))
		return nil
	})
}

// Terminate finishes the session without a result. It is idempotent.
func (s *Session) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusFinished {
		s.status = StatusFinished
		s.logger.Info("session terminated", zap.Int("turn", s.turn))
	}
}

// Abandon finishes the session if it is still Waiting and reports whether it
// did. A session that already started is left alone.
func (s *Session) Abandon() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusWaiting {
		return false
	}
	s.status = StatusFinished
	s.logger.Info("waiting session abandoned", zap.Duration("age", time.Since(s.createdAt)))
	return true
}

// View returns the match as seen by conn.
func (s *Session) View(conn ConnID) (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.seat(conn)
	if !ok {
		return SessionView{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, conn)
	}
	v := SessionView{
		SessionID: s.ID,
		Status:    s.status.String(),
		Turn:      s.turn,
		FirstTurn: s.status != StatusWaiting && i == s.leader(),
	}
	own := s.players[i].view(true)
	v.You = &own
	if opp := s.players[1-i]; opp != nil {
		ov := opp.view(false)
		v.Opponent = &ov
	}
	return v, nil
}

// leader is the seat that moves first in the current turn. It starts with
// first and alternates every turn.
func (s *Session) leader() int {
	return (s.first + s.turn - 1) % 2
}

// checkMatchEnd finishes the match when a player's health is gone.
func (s *Session) checkMatchEnd(out *outbox) {
	if s.status != StatusPlaying {
		return
	}
	dead := [2]bool{s.players[0].health <= 0, s.players[1].health <= 0}
	if !dead[0] && !dead[1] {
		return
	}
	s.status = StatusFinished

	if dead[0] && dead[1] {
		for _, p := range s.players {
			out.send(p.ref.Conn, EventMatchDraw, MatchOver{SessionID: s.ID, Health: p.health})
		}
		s.logger.Info("match drawn", zap.Int("turn", s.turn))
		return
	}

	loser := 0
	if dead[1] {
		loser = 1
	}
	winner := s.players[1-loser]
	out.send(winner.ref.Conn, EventMatchWon, MatchOver{SessionID: s.ID, Winner: winner.ref.ID, Health: winner.health})
	out.send(s.players[loser].ref.Conn, EventMatchLost, MatchOver{SessionID: s.ID, Winner: winner.ref.ID, Health: s.players[loser].health})
	s.logger.Info("match won", zap.String("winner", winner.ref.ID), zap.Int("turn", s.turn))
}

// seat returns the index of conn. Caller holds mu.
func (s *Session) seat(conn ConnID) (int, bool) {
	for i, p := range s.players {
		if p != nil && p.ref.Conn == conn {
			return i, true
		}
	}
	return 0, false
}

// acting resolves conn for an in-match action. Caller holds mu.
func (s *Session) acting(conn ConnID) (me, opp *playerState, err error) {
	if s.status != StatusPlaying {
		return nil, nil, ErrNotPlaying
	}
	i, ok := s.seat(conn)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, conn)
	}
	return s.players[i], s.players[1-i], nil
}

// do runs fn under the session lock and flushes its events afterwards.
func (s *Session) do(action string, conn ConnID, fn func(out *outbox) error) error {
	var out outbox
	err := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(&out)
	}()
	for _, m := range out {
		s.notifier.Send(m.conn, m.event, m.payload)
	}
	if err != nil {
		s.logger.Debug("action rejected",
			zap.String("action", action),
			zap.String("conn_id", string(conn)),
			zap.Error(err),
		)
	}
	return err
}
