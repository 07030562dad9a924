package room

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pantheon/duel-server-go/internal/game"
)

// Registry tracks active sessions, the free-session queue and which session
// each connection belongs to. Its lock is never held while a session lock is
// taken.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*game.Session
	free     []string
	byConn   map[game.ConnID]string
	newID    IDGenerator
	logger   *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIDGenerator replaces RandomID.
func WithIDGenerator(gen IDGenerator) RegistryOption {
	return func(r *Registry) {
		r.newID = gen
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		sessions: make(map[string]*game.Session),
		byConn:   make(map[game.ConnID]string),
		newID:    RandomID,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new session built under a fresh id and binds host to it.
// Free sessions are queued for quick matching.
func (r *Registry) Create(host game.ConnID, free bool, build func(id string) *game.Session) (*game.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, bound := r.byConn[host]; bound {
		return nil, fmt.Errorf("%w: %s", game.ErrAlreadyInSession, id)
	}

	id := r.newID()
	for attempts := 1; ; attempts++ {
		if _, taken := r.sessions[id]; !taken {
			break
		}
		r.logger.Debug("session id collision", zap.String("session_id", id), zap.Int("attempt", attempts))
		id = r.newID()
	}

	s := build(id)
	r.sessions[id] = s
	r.byConn[host] = id
	if free {
		r.free = append(r.free, id)
	}

	r.logger.Info("session created",
		zap.String("session_id", id),
		zap.String("host_conn", string(host)),
		zap.Bool("free", free),
	)
	return s, nil
}

// Get returns a session by id.
func (r *Registry) Get(id string) (*game.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", game.ErrSessionNotFound, id)
	}
	return s, nil
}

// PopFree dequeues the oldest free session still registered.
func (r *Registry) PopFree() (*game.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.free) > 0 {
		id := r.free[0]
		r.free = r.free[1:]
		if s, ok := r.sessions[id]; ok {
			return s, true
		}
	}
	return nil, false
}

// PushFree returns a session to the front of the free queue.
func (r *Registry) PushFree(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok || slices.Contains(r.free, id) {
		return
	}
	r.free = slices.Insert(r.free, 0, id)
}

// Claim takes a session out of the free queue for a direct join. wasFree
// reports whether it had been queued.
func (r *Registry) Claim(id string) (s *game.Session, wasFree bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", game.ErrSessionNotFound, id)
	}
	if i := slices.Index(r.free, id); i >= 0 {
		r.free = slices.Delete(r.free, i, i+1)
		wasFree = true
	}
	return s, wasFree, nil
}

// Bind records that conn belongs to session id.
func (r *Registry) Bind(conn game.ConnID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bound, ok := r.byConn[conn]; ok {
		return fmt.Errorf("%w: %s", game.ErrAlreadyInSession, bound)
	}
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", game.ErrSessionNotFound, id)
	}
	r.byConn[conn] = id
	return nil
}

// Unbind drops conn's binding if it points at id.
func (r *Registry) Unbind(conn game.ConnID, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byConn[conn] == id {
		delete(r.byConn, conn)
	}
}

// SessionFor returns the session conn is bound to.
func (r *Registry) SessionFor(conn game.ConnID) (*game.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byConn[conn]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[id]
	return s, ok
}

// Remove deletes a session and every binding to it. It returns nil if the
// session was already gone.
func (r *Registry) Remove(id string) *game.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	if i := slices.Index(r.free, id); i >= 0 {
		r.free = slices.Delete(r.free, i, i+1)
	}
	for conn, bound := range r.byConn {
		if bound == id {
			delete(r.byConn, conn)
		}
	}

	r.logger.Info("session removed", zap.String("session_id", id))
	return s
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// FreeLen returns the number of queued free sessions.
func (r *Registry) FreeLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.free)
}

// CreatedBefore lists sessions opened before cutoff, whatever their status.
func (r *Registry) CreatedBefore(cutoff time.Time) []*game.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*game.Session
	for _, s := range r.sessions {
		if s.CreatedAt().Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}
