package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pantheon/duel-server-go/internal/game/cards"
)

type fakeSource struct {
	pools map[string][]cards.Card
	err   error
}

func (f *fakeSource) FetchDeck(_ context.Context, playerID string) ([]*cards.Instance, error) {
	if f.err != nil {
		return nil, f.err
	}
	pool, ok := f.pools[playerID]
	if !ok {
		return nil, fmt.Errorf("no cards for %s", playerID)
	}
	out := make([]*cards.Instance, 0, len(pool))
	for i, c := range pool {
		out = append(out, cards.NewInstance(c, fmt.Sprintf("%s-%d", playerID, i)))
	}
	return out, nil
}

type sent struct {
	conn    ConnID
	event   string
	payload any
}

type recorder struct {
	mu   sync.Mutex
	msgs []sent
}

func (r *recorder) Send(conn ConnID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{conn: conn, event: event, payload: payload})
}

func (r *recorder) to(conn ConnID, event string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, m := range r.msgs {
		if m.conn == conn && m.event == event {
			out = append(out, m.payload)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}

func plainPool(n int) []cards.Card {
	pool := make([]cards.Card, 0, n)
	for i := range n {
		pool = append(pool, cards.Card{ID: fmt.Sprintf("c%d", i), Name: fmt.Sprintf("Card %d", i), Attack: 3, Defense: 3})
	}
	return pool
}

var (
	alice = PlayerRef{ID: "alice", Conn: "conn-a"}
	bob   = PlayerRef{ID: "bob", Conn: "conn-b"}
)

func newTestSession(t *testing.T, src DeckSource) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := NewSession("ABCDE", alice, src, rec, zaptest.NewLogger(t), WithRand(rand.New(rand.NewPCG(1, 2))))
	return s, rec
}

func startedSession(t *testing.T) (*Session, *recorder) {
	t.Helper()
	src := &fakeSource{pools: map[string][]cards.Card{
		"alice": plainPool(10),
		"bob":   plainPool(10),
	}}
	s, rec := newTestSession(t, src)
	require.NoError(t, s.Attach(context.Background(), bob))
	rec.reset()
	return s, rec
}

// place puts a card straight onto a player's field.
func place(t *testing.T, s *Session, seat int, c *cards.Instance) {
	t.Helper()
	require.NoError(t, s.players[seat].field.Add(c))
}

func TestSession_AttachStartsMatch(t *testing.T) {
	src := &fakeSource{pools: map[string][]cards.Card{"alice": plainPool(8), "bob": plainPool(6)}}
	s, rec := newTestSession(t, src)
	assert.Equal(t, StatusWaiting, s.Status())
	assert.Equal(t, 0, s.Turn())

	require.NoError(t, s.Attach(context.Background(), bob))

	assert.Equal(t, StatusPlaying, s.Status())
	assert.Equal(t, 1, s.Turn())

	startA := rec.to(alice.Conn, EventMatchStart)
	startB := rec.to(bob.Conn, EventMatchStart)
	require.Len(t, startA, 1)
	require.Len(t, startB, 1)
	a := startA[0].(MatchStart)
	b := startB[0].(MatchStart)
	assert.NotEqual(t, a.FirstTurn, b.FirstTurn, "exactly one player moves first")
	assert.Equal(t, "bob", a.Opponent)
	assert.Equal(t, "alice", b.Opponent)
	assert.Equal(t, 8, a.DeckSize)
	assert.Equal(t, 6, b.DeckSize)
	assert.Equal(t, StartingHealth, a.Health)
	assert.Equal(t, 1, a.Mana)
}

func TestSession_AttachDeckFailureKeepsWaiting(t *testing.T) {
	tests := []struct {
		name string
		src  *fakeSource
	}{
		{"source error", &fakeSource{err: errors.New("db down")}},
		{"missing player", &fakeSource{pools: map[string][]cards.Card{"alice": plainPool(3)}}},
		{"empty deck", &fakeSource{pools: map[string][]cards.Card{"alice": plainPool(3), "bob": {}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec := newTestSession(t, tt.src)
			err := s.Attach(context.Background(), bob)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDeckUnavailable)
			assert.Equal(t, "external_failure", ErrorCode(err))
			assert.Equal(t, StatusWaiting, s.Status())
			assert.Len(t, s.Players(), 1)
			assert.Empty(t, rec.to(alice.Conn, EventMatchStart))
		})
	}
}

func TestSession_AttachDuplicateKeys(t *testing.T) {
	// both players resolve to the same keys when they share an id
	src := &fakeSource{pools: map[string][]cards.Card{"alice": plainPool(3)}}
	s, _ := newTestSession(t, src)
	err := s.Attach(context.Background(), PlayerRef{ID: "alice", Conn: "conn-other"})
	assert.ErrorIs(t, err, ErrDeckUnavailable)
	assert.Equal(t, StatusWaiting, s.Status())
}

func TestSession_AttachRejectsSecondGuest(t *testing.T) {
	s, _ := startedSession(t)
	err := s.Attach(context.Background(), PlayerRef{ID: "carol", Conn: "conn-c"})
	assert.ErrorIs(t, err, ErrSessionFull)

	src := &fakeSource{pools: map[string][]cards.Card{"alice": plainPool(3)}}
	waiting, _ := newTestSession(t, src)
	err = waiting.Attach(context.Background(), alice)
	assert.ErrorIs(t, err, ErrInvalidState, "host cannot join itself")
}

func TestSession_ActionsRequirePlaying(t *testing.T) {
	src := &fakeSource{pools: map[string][]cards.Card{"alice": plainPool(3)}}
	s, _ := newTestSession(t, src)

	assert.ErrorIs(t, s.DrawCard(alice.Conn), ErrNotPlaying)
	assert.ErrorIs(t, s.ConvertMana(alice.Conn, 1), ErrNotPlaying)
	assert.ErrorIs(t, s.EndTurn(alice.Conn), ErrNotPlaying)

	s.Terminate()
	assert.Equal(t, StatusFinished, s.Status())
	assert.ErrorIs(t, s.DrawInitialHand(alice.Conn), ErrNotPlaying)
}

func TestSession_Abandon(t *testing.T) {
	src := &fakeSource{pools: map[string][]cards.Card{"alice": plainPool(3), "bob": plainPool(3)}}
	s, _ := newTestSession(t, src)

	assert.True(t, s.Abandon())
	assert.False(t, s.Abandon())
	assert.ErrorIs(t, s.Attach(context.Background(), bob), ErrInvalidState)

	started, _ := startedSession(t)
	assert.False(t, started.Abandon())
	assert.Equal(t, StatusPlaying, started.Status())
}

func TestSession_UnknownConnection(t *testing.T) {
	s, _ := startedSession(t)
	err := s.DrawCard("stranger")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	assert.Equal(t, "not_found", ErrorCode(err))
}

func TestSession_DrawInitialHand(t *testing.T) {
	s, rec := startedSession(t)

	require.NoError(t, s.DrawInitialHand(alice.Conn))
	hands := rec.to(alice.Conn, EventInitialHand)
	require.Len(t, hands, 1)
	hand := hands[0].(InitialHand)
	assert.Len(t, hand.Cards, InitialHandSize)
	assert.Equal(t, 5, hand.DrawPile)

	drew := rec.to(bob.Conn, EventOpponentDrew)
	require.Len(t, drew, 1)
	assert.Equal(t, InitialHandSize, drew[0].(OpponentDrew).Count)

	err := s.DrawInitialHand(alice.Conn)
	assert.ErrorIs(t, err, ErrInitialHandDrawn)
	assert.Equal(t, "already_consumed", ErrorCode(err))
	assert.Equal(t, InitialHandSize, s.players[0].hand.Len())
}

func TestSession_DrawInitialHandShortDeck(t *testing.T) {
	src := &fakeSource{pools: map[string][]cards.Card{"alice": plainPool(3), "bob": plainPool(10)}}
	s, rec := newTestSession(t, src)
	require.NoError(t, s.Attach(context.Background(), bob))

	require.NoError(t, s.DrawInitialHand(alice.Conn))
	hand := rec.to(alice.Conn, EventInitialHand)[0].(InitialHand)
	assert.Len(t, hand.Cards, 3)
	assert.Equal(t, 0, hand.DrawPile)
}

func TestSession_DrawCardEmptyPile(t *testing.T) {
	src := &fakeSource{pools: map[string][]cards.Card{"alice": plainPool(1), "bob": plainPool(1)}}
	s, rec := newTestSession(t, src)
	require.NoError(t, s.Attach(context.Background(), bob))

	require.NoError(t, s.DrawCard(alice.Conn))
	require.Len(t, rec.to(alice.Conn, EventCardDrawn), 1)

	rec.reset()
	require.NoError(t, s.DrawCard(alice.Conn))
	assert.Empty(t, rec.to(alice.Conn, EventCardDrawn))
	assert.Empty(t, rec.to(bob.Conn, EventOpponentDrew))
	assert.Equal(t, 1, s.players[0].hand.Len())
}

func TestSession_ConvertMana(t *testing.T) {
	s, rec := startedSession(t)

	require.NoError(t, s.ConvertMana(alice.Conn, 2))
	me := s.players[0]
	assert.Equal(t, StartingHealth-2, me.health)
	assert.Equal(t, 3, me.mana.Available)
	assert.Equal(t, 3, me.mana.LockedUntilTurn)
	require.Len(t, rec.to(bob.Conn, EventManaConverted), 1)

	err := s.ConvertMana(alice.Conn, 1)
	assert.ErrorIs(t, err, ErrManaLocked)
	assert.Equal(t, "invalid_state", ErrorCode(err))
	assert.Equal(t, StartingHealth-2, me.health, "rejected conversion costs nothing")

	assert.ErrorIs(t, s.ConvertMana(bob.Conn, 0), ErrInvalidAmount)
	assert.Equal(t, StartingHealth, s.players[1].health)
}

func TestSession_ConvertManaCanLoseTheMatch(t *testing.T) {
	s, rec := startedSession(t)

	require.NoError(t, s.ConvertMana(alice.Conn, StartingHealth))

	assert.Equal(t, StatusFinished, s.Status())
	require.Len(t, rec.to(alice.Conn, EventMatchLost), 1)
	require.Len(t, rec.to(bob.Conn, EventMatchWon), 1)
	assert.Equal(t, "bob", rec.to(bob.Conn, EventMatchWon)[0].(MatchOver).Winner)
}

func TestSession_PlayCard(t *testing.T) {
	s, rec := startedSession(t)
	require.NoError(t, s.DrawInitialHand(alice.Conn))
	key := s.players[0].hand.List()[0].Key

	require.NoError(t, s.PlayCard(alice.Conn, key, cards.StanceAttack, cards.RevealHidden))

	c, ok := s.players[0].field.Get(key)
	require.True(t, ok)
	assert.Equal(t, cards.ZoneField, c.Zone)
	assert.Equal(t, cards.StanceAttack, c.Combat)
	assert.Equal(t, cards.RevealHidden, c.Reveal)
	_, inHand := s.players[0].hand.Get(key)
	assert.False(t, inHand)

	own := rec.to(alice.Conn, EventCardPlayed)
	require.Len(t, own, 1)
	assert.Contains(t, own[0].(CardPlayed).Card.Name, "Card ")

	seen := rec.to(bob.Conn, EventOpponentCardPlayed)
	require.Len(t, seen, 1)
	hidden := seen[0].(CardPlayed).Card
	assert.True(t, hidden.Concealed)
	assert.Empty(t, hidden.Name)
	assert.Zero(t, hidden.Attack)
	assert.Equal(t, key, hidden.Key)
}

func TestSession_PlayCardUnknownKeyIgnored(t *testing.T) {
	s, rec := startedSession(t)

	require.NoError(t, s.PlayCard(alice.Conn, "nope", cards.StanceAttack, cards.RevealOpen))
	assert.Equal(t, 0, s.players[0].field.Len())
	assert.Empty(t, rec.to(bob.Conn, EventOpponentCardPlayed))
}

func TestSession_SetCombatStance(t *testing.T) {
	s, rec := startedSession(t)
	c := cards.NewInstance(cards.Card{Attack: 2, Defense: 2}, "free")
	place(t, s, 0, c)

	require.NoError(t, s.SetCombatStance(alice.Conn, "free", cards.StanceDefense))
	assert.Equal(t, cards.StanceDefense, c.Combat)
	require.Len(t, rec.to(bob.Conn, EventStanceChanged), 1)

	caged := cards.NewInstance(cards.Card{Attack: 2, Defense: 2}, "caged")
	caged.Trap()
	place(t, s, 0, caged)
	err := s.SetCombatStance(alice.Conn, "caged", cards.StanceAttack)
	assert.ErrorIs(t, err, ErrCardTrapped)
	assert.Equal(t, cards.StanceDefense, caged.Combat)

	assert.ErrorIs(t, s.SetCombatStance(alice.Conn, "missing", cards.StanceAttack), ErrCardNotFound)
}

func TestSession_DeclareAttackKillsDefender(t *testing.T) {
	s, rec := startedSession(t)
	atk := cards.NewInstance(cards.Card{Attack: 5, Defense: 2}, "atk")
	atk.Combat = cards.StanceAttack
	def := cards.NewInstance(cards.Card{Attack: 3, Defense: 4}, "def")
	def.Combat = cards.StanceDefense
	place(t, s, 0, atk)
	place(t, s, 1, def)

	require.NoError(t, s.DeclareAttack(alice.Conn, "atk", "def"))

	_, onField := s.players[1].field.Get("def")
	assert.False(t, onField)
	buried, inGrave := s.players[1].grave.Get("def")
	require.True(t, inGrave)
	assert.Equal(t, cards.ZoneGrave, buried.Zone)

	assert.Equal(t, 1, atk.Attack, "card damage lands on the attack it fought with")
	assert.Equal(t, StartingHealth, s.players[1].health, "defense stance blocks carry-through")

	results := rec.to(bob.Conn, EventFightResult)
	require.Len(t, results, 1)
	res := results[0].(FightResult)
	assert.True(t, res.DefenderDies)
	assert.False(t, res.AttackerDies)
	assert.Equal(t, 4, res.AttackerCardDamage)
}

func TestSession_DeclareAttackCarriesThrough(t *testing.T) {
	s, _ := startedSession(t)
	atk := cards.NewInstance(cards.Card{Attack: 7, Defense: 1}, "atk")
	atk.Combat = cards.StanceAttack
	def := cards.NewInstance(cards.Card{Attack: 2, Defense: 9}, "def")
	def.Combat = cards.StanceAttack
	place(t, s, 0, atk)
	place(t, s, 1, def)

	require.NoError(t, s.DeclareAttack(alice.Conn, "atk", "def"))
	assert.Equal(t, StartingHealth-5, s.players[1].health)
}

func TestSession_DeclareAttackCage(t *testing.T) {
	s, _ := startedSession(t)
	atk := cards.NewInstance(cards.Card{Attack: 1, Defense: 1}, "atk")
	atk.Combat = cards.StanceAttack
	def := cards.NewInstance(cards.Card{Attack: 0, Defense: 9, Effects: []string{"CAGE"}}, "def")
	place(t, s, 0, atk)
	place(t, s, 1, def)

	require.NoError(t, s.DeclareAttack(alice.Conn, "atk", "def"))

	assert.Equal(t, 0, s.players[1].field.Len())
	assert.True(t, atk.Trapped)
	assert.Equal(t, cards.StanceDefense, atk.Combat)
	assert.ErrorIs(t, s.SetCombatStance(alice.Conn, "atk", cards.StanceAttack), ErrCardTrapped)
}

func TestSession_DeclareAttackShield(t *testing.T) {
	s, _ := startedSession(t)
	atk := cards.NewInstance(cards.Card{Attack: 6, Defense: 10}, "atk")
	atk.Combat = cards.StanceAttack
	def := cards.NewInstance(cards.Card{Attack: 0, Defense: 6, Effects: []string{"SHIELD"}}, "def")
	def.Combat = cards.StanceDefense
	place(t, s, 0, atk)
	place(t, s, 1, def)

	require.NoError(t, s.DeclareAttack(alice.Conn, "atk", "def"))

	assert.Equal(t, 0, atk.Attack)
	assert.Equal(t, 1, s.players[0].field.Len())
	assert.Equal(t, 1, s.players[1].field.Len())
	assert.True(t, def.Effects.Empty(), "shield is consumed")
}

func TestSession_DeclareAttackRevealsHiddenSurvivor(t *testing.T) {
	s, _ := startedSession(t)
	atk := cards.NewInstance(cards.Card{Attack: 1, Defense: 1}, "atk")
	atk.Combat = cards.StanceAttack
	def := cards.NewInstance(cards.Card{Attack: 0, Defense: 5}, "def")
	def.Reveal = cards.RevealHidden
	place(t, s, 0, atk)
	place(t, s, 1, def)

	require.NoError(t, s.DeclareAttack(alice.Conn, "atk", "def"))

	assert.Equal(t, 0, s.players[0].field.Len())
	assert.Equal(t, cards.RevealOpen, def.Reveal)
	assert.Equal(t, 4, def.Defense)
}

func TestSession_DeclareAttackErrorLeavesStateUnchanged(t *testing.T) {
	s, rec := startedSession(t)
	atk := cards.NewInstance(cards.Card{Attack: 5, Defense: 5}, "atk")
	atk.Combat = cards.StanceAttack
	place(t, s, 0, atk)

	before, err := s.View(alice.Conn)
	require.NoError(t, err)

	err = s.DeclareAttack(alice.Conn, "atk", "ghost")
	assert.ErrorIs(t, err, ErrCardNotFound)
	err = s.DeclareAttack(alice.Conn, "ghost", "atk")
	assert.ErrorIs(t, err, ErrCardNotFound)

	after, err := s.View(alice.Conn)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, rec.to(bob.Conn, EventFightResult))
}

func TestSession_DeclareAttackFailedBurialLeavesStateUnchanged(t *testing.T) {
	s, rec := startedSession(t)
	atk := cards.NewInstance(cards.Card{Attack: 4, Defense: 4}, "atk")
	atk.Combat = cards.StanceAttack
	def := cards.NewInstance(cards.Card{Attack: 4, Defense: 4}, "def")
	def.Combat = cards.StanceAttack
	place(t, s, 0, atk)
	place(t, s, 1, def)
	require.NoError(t, s.players[1].grave.Add(cards.NewInstance(cards.Card{Attack: 1, Defense: 1}, "def")))

	before, err := s.View(alice.Conn)
	require.NoError(t, err)

	err = s.DeclareAttack(alice.Conn, "atk", "def")
	assert.ErrorIs(t, err, cards.ErrDuplicateKey)

	after, err := s.View(alice.Conn)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, cards.ZoneField, atk.Zone)
	assert.Equal(t, cards.ZoneField, def.Zone)
	assert.Empty(t, rec.to(bob.Conn, EventFightResult))
}

func TestSession_AttackPlayerEndsMatch(t *testing.T) {
	s, rec := startedSession(t)
	big := cards.NewInstance(cards.Card{Attack: 12, Defense: 1}, "big")
	place(t, s, 0, big)

	require.NoError(t, s.AttackPlayer(alice.Conn, "big"))
	assert.Equal(t, StartingHealth-12, s.players[1].health)
	assert.Equal(t, StatusPlaying, s.Status())

	require.NoError(t, s.AttackPlayer(alice.Conn, "big"))
	assert.Equal(t, StatusFinished, s.Status())
	require.Len(t, rec.to(alice.Conn, EventMatchWon), 1)
	require.Len(t, rec.to(bob.Conn, EventMatchLost), 1)

	assert.ErrorIs(t, s.AttackPlayer(alice.Conn, "big"), ErrNotPlaying)
}

func TestSession_MatchDraw(t *testing.T) {
	s, rec := startedSession(t)
	s.players[0].health = 0
	s.players[1].health = -3

	var out outbox
	s.mu.Lock()
	s.checkMatchEnd(&out)
	s.mu.Unlock()
	for _, m := range out {
		rec.Send(m.conn, m.event, m.payload)
	}

	assert.Equal(t, StatusFinished, s.Status())
	assert.Len(t, rec.to(alice.Conn, EventMatchDraw), 1)
	assert.Len(t, rec.to(bob.Conn, EventMatchDraw), 1)
	assert.Empty(t, rec.to(alice.Conn, EventMatchWon))
}

func TestSession_EndTurn(t *testing.T) {
	s, rec := startedSession(t)
	c := cards.NewInstance(cards.Card{Attack: 4, Defense: 4}, "hurt")
	c.Combat = cards.StanceAttack
	c.Trap()
	c.TakeDamage(3)
	place(t, s, 0, c)
	require.NoError(t, s.ConvertMana(alice.Conn, 2))
	s.players[0].mana.Available = 0

	require.NoError(t, s.EndTurn(alice.Conn))
	require.NoError(t, s.EndTurn(alice.Conn), "ending twice is a no-op")
	assert.Equal(t, 1, s.Turn())
	assert.Len(t, rec.to(bob.Conn, EventTurnEnded), 1)

	require.NoError(t, s.EndTurn(bob.Conn))
	assert.Equal(t, 2, s.Turn())
	assert.Equal(t, 4, c.Defense, "damage is healed at the turn boundary")
	assert.True(t, c.Trapped, "trap survives the refresh")
	assert.Equal(t, 2, s.players[0].mana.Available, "refill is bounded by the turn")
	assert.False(t, s.players[0].hasActed)
	assert.False(t, s.players[1].hasActed)
	assert.Len(t, rec.to(alice.Conn, EventNewTurn), 1)
	assert.Len(t, rec.to(bob.Conn, EventNewTurn), 1)
}

func TestSession_NewTurnAlternatesLeader(t *testing.T) {
	s, rec := startedSession(t)
	first := s.players[s.first].ref
	second := s.players[1-s.first].ref

	v, err := s.View(first.Conn)
	require.NoError(t, err)
	assert.True(t, v.FirstTurn)

	for range 3 {
		require.NoError(t, s.EndTurn(alice.Conn))
		require.NoError(t, s.EndTurn(bob.Conn))
	}

	lead := func(conn ConnID) []bool {
		var out []bool
		for _, p := range rec.to(conn, EventNewTurn) {
			out = append(out, p.(NewTurn).YourMove)
		}
		return out
	}
	assert.Equal(t, []bool{false, true, false}, lead(first.Conn), "turns 2, 3 and 4")
	assert.Equal(t, []bool{true, false, true}, lead(second.Conn))

	v, err = s.View(second.Conn)
	require.NoError(t, err)
	assert.Equal(t, 4, v.Turn)
	assert.True(t, v.FirstTurn)
}

func TestSession_ViewConcealsOpponent(t *testing.T) {
	s, _ := startedSession(t)
	require.NoError(t, s.DrawInitialHand(bob.Conn))
	hidden := cards.NewInstance(cards.Card{Name: "Trick", Attack: 9, Defense: 9}, "trick")
	hidden.Reveal = cards.RevealHidden
	place(t, s, 1, hidden)

	v, err := s.View(alice.Conn)
	require.NoError(t, err)
	require.NotNil(t, v.Opponent)
	assert.Empty(t, v.Opponent.Hand)
	assert.Equal(t, InitialHandSize, v.Opponent.HandSize)
	require.Len(t, v.Opponent.Field, 1)
	assert.True(t, v.Opponent.Field[0].Concealed)
	assert.Empty(t, v.Opponent.Field[0].Name)

	own, err := s.View(bob.Conn)
	require.NoError(t, err)
	require.NotNil(t, own.You)
	assert.Len(t, own.You.Hand, InitialHandSize)
	assert.Equal(t, "Trick", own.You.Field[0].Name)

	_, err = s.View("stranger")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

// Cards are never duplicated or lost however actions interleave.
func TestSession_ConcurrentActionsConserveCards(t *testing.T) {
	s, _ := startedSession(t)
	require.NoError(t, s.DrawInitialHand(alice.Conn))
	require.NoError(t, s.DrawInitialHand(bob.Conn))

	var wg sync.WaitGroup
	for _, ref := range []PlayerRef{alice, bob} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				_ = s.DrawCard(ref.Conn)
				v, err := s.View(ref.Conn)
				if err != nil {
					return
				}
				for _, c := range v.You.Hand {
					_ = s.PlayCard(ref.Conn, c.Key, cards.StanceAttack, cards.RevealOpen)
				}
				if v.Opponent != nil && len(v.You.Field) > 0 && len(v.Opponent.Field) > 0 {
					_ = s.DeclareAttack(ref.Conn, v.You.Field[0].Key, v.Opponent.Field[0].Key)
				}
				_ = s.EndTurn(ref.Conn)
			}
		}()
	}
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		total := p.drawPile.Len() + p.hand.Len() + p.field.Len() + p.grave.Len()
		assert.Equal(t, len(p.deck), total, "player %s", p.ref.ID)
	}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "not_found", ErrorCode(ErrSessionNotFound))
	assert.Equal(t, "invalid_state", ErrorCode(fmt.Errorf("wrap: %w", ErrSessionFull)))
	assert.Equal(t, "already_consumed", ErrorCode(ErrInitialHandDrawn))
	assert.Equal(t, "external_failure", ErrorCode(ErrDeckUnavailable))
	assert.Equal(t, "internal", ErrorCode(errors.New("boom")))
}
