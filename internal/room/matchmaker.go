package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/pantheon/duel-server-go/internal/game"
	"github.com/pantheon/duel-server-go/internal/game/cards"
)

// Disconnector forcibly closes a connection.
type Disconnector interface {
	Disconnect(conn game.ConnID)
}

// Matchmaker pairs players into sessions and routes their actions.
type Matchmaker struct {
	registry     *Registry
	source       game.DeckSource
	notifier     game.Notifier
	disconnector Disconnector
	recorder     *game.ReplayRecorder
	logger       *zap.Logger

	// newRand seeds each session; nil means a random seed.
	newRand func() *rand.Rand
	// popped runs between taking a free session and binding to it.
	popped func(s *game.Session)
}

// NewMatchmaker wires a matchmaker. disconnector may be nil.
func NewMatchmaker(registry *Registry, source game.DeckSource, notifier game.Notifier, disconnector Disconnector, logger *zap.Logger) *Matchmaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matchmaker{
		registry:     registry,
		source:       source,
		notifier:     notifier,
		disconnector: disconnector,
		logger:       logger,
	}
}

// SetDisconnector sets the component used to drop opponents. The transport
// usually needs the matchmaker before it can be built.
func (m *Matchmaker) SetDisconnector(d Disconnector) {
	m.disconnector = d
}

// SetRecorder records the events of every session created from now on.
func (m *Matchmaker) SetRecorder(rr *game.ReplayRecorder) {
	m.recorder = rr
}

// Registry exposes the underlying registry.
func (m *Matchmaker) Registry() *Registry {
	return m.registry
}

func (m *Matchmaker) newSession(host game.PlayerRef) func(id string) *game.Session {
	return func(id string) *game.Session {
		var opts []game.Option
		if m.newRand != nil {
			opts = append(opts, game.WithRand(m.newRand()))
		}
		notifier := m.notifier
		if m.recorder != nil {
			notifier = m.recorder.Wrap(id, notifier)
		}
		return game.NewSession(id, host, m.source, notifier, m.logger, opts...)
	}
}

// QuickMatch joins the oldest free session or opens a new one.
func (m *Matchmaker) QuickMatch(ctx context.Context, ref game.PlayerRef) (string, error) {
	if s, bound := m.registry.SessionFor(ref.Conn); bound {
		return "", fmt.Errorf("%w: %s", game.ErrAlreadyInSession, s.ID)
	}

	for {
		s, ok := m.registry.PopFree()
		if !ok {
			break
		}
		if m.popped != nil {
			m.popped(s)
		}
		if err := m.registry.Bind(ref.Conn, s.ID); err != nil {
			if errors.Is(err, game.ErrSessionNotFound) {
				// removed by its host or the sweeper after the pop
				m.logger.Debug("free session gone", zap.String("session_id", s.ID))
				continue
			}
			m.registry.PushFree(s.ID)
			return "", err
		}

		err := s.Attach(ctx, ref)
		if err == nil {
			m.logger.Info("quick match paired",
				zap.String("session_id", s.ID),
				zap.String("player_id", ref.ID),
			)
			return s.ID, nil
		}
		m.registry.Unbind(ref.Conn, s.ID)
		if errors.Is(err, game.ErrExternal) {
			if s.Status() == game.StatusWaiting {
				m.registry.PushFree(s.ID)
			}
			return "", err
		}
		// lost a race with a join, leave or sweep; try the next one
		m.logger.Debug("free session unavailable", zap.String("session_id", s.ID), zap.Error(err))
	}

	return m.create(ref, true)
}

// CreatePrivate opens a session reachable only by its id.
func (m *Matchmaker) CreatePrivate(ref game.PlayerRef) (string, error) {
	return m.create(ref, false)
}

func (m *Matchmaker) create(ref game.PlayerRef, free bool) (string, error) {
	s, err := m.registry.Create(ref.Conn, free, m.newSession(ref))
	if err != nil {
		return "", err
	}
	m.notify(ref.Conn, game.EventMatchCreated, game.MatchCreated{SessionID: s.ID, Private: !free})
	return s.ID, nil
}

// JoinByID attaches ref to the Waiting session id.
func (m *Matchmaker) JoinByID(ctx context.Context, ref game.PlayerRef, id string) error {
	if s, bound := m.registry.SessionFor(ref.Conn); bound {
		return fmt.Errorf("%w: %s", game.ErrAlreadyInSession, s.ID)
	}
	s, wasFree, err := m.registry.Claim(id)
	if err != nil {
		return err
	}
	if err := m.registry.Bind(ref.Conn, id); err != nil {
		if wasFree {
			m.registry.PushFree(id)
		}
		return err
	}

	if err := s.Attach(ctx, ref); err != nil {
		m.registry.Unbind(ref.Conn, id)
		if wasFree && s.Status() == game.StatusWaiting {
			m.registry.PushFree(id)
		}
		return err
	}
	m.logger.Info("player joined session", zap.String("session_id", id), zap.String("player_id", ref.ID))
	return nil
}

// Leave closes a Waiting session hosted by conn.
func (m *Matchmaker) Leave(conn game.ConnID) error {
	s, ok := m.registry.SessionFor(conn)
	if !ok {
		return fmt.Errorf("%w: no session for connection", game.ErrSessionNotFound)
	}
	if !s.Abandon() {
		return fmt.Errorf("%w: match already started", game.ErrInvalidState)
	}
	m.remove(s)
	return nil
}

// OnDisconnect tears down the session conn was in and drops the opponent.
func (m *Matchmaker) OnDisconnect(conn game.ConnID) {
	s, ok := m.registry.SessionFor(conn)
	if !ok {
		return
	}
	s.Terminate()
	if !m.remove(s) {
		return
	}

	opp, ok := s.Opponent(conn)
	m.logger.Info("session closed on disconnect",
		zap.String("session_id", s.ID),
		zap.String("conn_id", string(conn)),
		zap.Bool("had_opponent", ok),
	)
	if !ok {
		return
	}
	m.notify(opp.Conn, game.EventOpponentDisconnected, game.SessionNotice{SessionID: s.ID, Reason: "opponent disconnected"})
	if m.disconnector != nil {
		m.disconnector.Disconnect(opp.Conn)
	}
}

// CleanupStaleSessions closes sessions that have waited longer than ttl for an
// opponent, checking every interval until ctx is done.
func (m *Matchmaker) CleanupStaleSessions(ctx context.Context, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("stale session sweeper stopped")
			return
		case now := <-ticker.C:
			if n := m.SweepStale(now.Add(-ttl)); n > 0 {
				m.logger.Info("swept stale sessions", zap.Int("count", n))
			}
		}
	}
}

// SweepStale abandons Waiting sessions created before cutoff and returns how
// many were removed.
func (m *Matchmaker) SweepStale(cutoff time.Time) int {
	removed := 0
	for _, s := range m.registry.CreatedBefore(cutoff) {
		if !s.Abandon() {
			continue
		}
		m.remove(s)
		for _, p := range s.Players() {
			m.notify(p.Conn, game.EventMatchExpired, game.SessionNotice{SessionID: s.ID, Reason: "no opponent joined"})
		}
		removed++
	}
	return removed
}

// SessionOf returns the id of the session conn is bound to.
func (m *Matchmaker) SessionOf(conn game.ConnID) (string, bool) {
	s, ok := m.registry.SessionFor(conn)
	if !ok {
		return "", false
	}
	return s.ID, true
}

// session resolves sessionID and checks that conn is seated in it.
func (m *Matchmaker) session(sessionID string, conn game.ConnID) (*game.Session, error) {
	s, err := m.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !s.HasConn(conn) {
		return nil, fmt.Errorf("%w: %s not in session %s", game.ErrPlayerNotFound, conn, sessionID)
	}
	return s, nil
}

// act runs one session action and removes the session once it has finished.
func (m *Matchmaker) act(sessionID string, conn game.ConnID, fn func(s *game.Session) error) error {
	s, err := m.session(sessionID, conn)
	if err != nil {
		return err
	}
	err = fn(s)
	if s.Status() == game.StatusFinished {
		m.remove(s)
	}
	return err
}

// remove drops s from the registry and closes its replay. It reports whether
// this call did the removal.
func (m *Matchmaker) remove(s *game.Session) bool {
	if m.registry.Remove(s.ID) == nil {
		return false
	}
	if m.recorder != nil {
		if err := m.recorder.Finish(s.ID, s.Turn() > 0); err != nil {
			m.logger.Error("failed to finish replay", zap.String("session_id", s.ID), zap.Error(err))
		}
	}
	return true
}

func (m *Matchmaker) DrawInitialHand(sessionID string, conn game.ConnID) error {
	return m.act(sessionID, conn, func(s *game.Session) error {
		return s.DrawInitialHand(conn)
	})
}

func (m *Matchmaker) DrawCard(sessionID string, conn game.ConnID) error {
	return m.act(sessionID, conn, func(s *game.Session) error {
		return s.DrawCard(conn)
	})
}

func (m *Matchmaker) ConvertMana(sessionID string, conn game.ConnID, amount int) error {
	return m.act(sessionID, conn, func(s *game.Session) error {
		return s.ConvertMana(conn, amount)
	})
}

func (m *Matchmaker) PlayCard(sessionID string, conn game.ConnID, key string, stance cards.CombatStance, reveal cards.RevealStance) error {
	return m.act(sessionID, conn, func(s *game.Session) error {
		return s.PlayCard(conn, key, stance, reveal)
	})
}

func (m *Matchmaker) SetCombatStance(sessionID string, conn game.ConnID, key string, stance cards.CombatStance) error {
	return m.act(sessionID, conn, func(s *game.Session) error {
		return s.SetCombatStance(conn, key, stance)
	})
}

func (m *Matchmaker) DeclareAttack(sessionID string, conn game.ConnID, attackKey, defendKey string) error {
	return m.act(sessionID, conn, func(s *game.Session) error {
		return s.DeclareAttack(conn, attackKey, defendKey)
	})
}

func (m *Matchmaker) AttackPlayer(sessionID string, conn game.ConnID, key string) error {
	return m.act(sessionID, conn, func(s *game.Session) error {
		return s.AttackPlayer(conn, key)
	})
}

func (m *Matchmaker) EndTurn(sessionID string, conn game.ConnID) error {
	return m.act(sessionID, conn, func(s *game.Session) error {
		return s.EndTurn(conn)
	})
}

// View returns conn's view of its session.
func (m *Matchmaker) View(sessionID string, conn game.ConnID) (game.SessionView, error) {
	s, err := m.session(sessionID, conn)
	if err != nil {
		return game.SessionView{}, err
	}
	return s.View(conn)
}

func (m *Matchmaker) notify(conn game.ConnID, event string, payload any) {
	if m.notifier != nil {
		m.notifier.Send(conn, event, payload)
	}
}
