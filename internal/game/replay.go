package game

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const replayVersion = 1

// ReplayEntry is one event as it was delivered to a player.
type ReplayEntry struct {
	At      time.Time       `json:"at"`
	Conn    ConnID          `json:"conn"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Replay is the ordered event log of one session.
type Replay struct {
	SessionID string

	mu      sync.RWMutex
	entries []ReplayEntry
}

// NewReplay creates an empty replay.
func NewReplay(sessionID string) *Replay {
	return &Replay{SessionID: sessionID}
}

// Record appends an event.
func (r *Replay) Record(entry ReplayEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

// Size returns the number of recorded events.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns a copy of the log.
func (r *Replay) Entries() []ReplayEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ReplayEntry(nil), r.entries...)
}

type replayHeader struct {
	SessionID string    `json:"session_id"`
	SavedAt   time.Time `json:"saved_at"`
	Version   int       `json:"version"`
	Events    int       `json:"events"`
}

// SaveToFile writes the replay as gzipped JSON lines to
// directory/<session>.replay: a header line, then one line per event.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(replayPath(directory, r.SessionID))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	enc := json.NewEncoder(gz)
	if err := enc.Encode(replayHeader{
		SessionID: r.SessionID,
		SavedAt:   time.Now(),
		Version:   replayVersion,
		Events:    len(r.entries),
	}); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	for i, e := range r.entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to encode event %d: %w", i, err)
		}
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to flush replay: %w", err)
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(directory, sessionID string) (*Replay, error) {
	file, err := os.Open(replayPath(directory, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	dec := json.NewDecoder(gz)
	var header replayHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}
	if header.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", header.Version)
	}

	replay := NewReplay(header.SessionID)
	for {
		var e ReplayEntry
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode event %d: %w", len(replay.entries), err)
		}
		replay.entries = append(replay.entries, e)
	}
	if len(replay.entries) != header.Events {
		return nil, fmt.Errorf("replay truncated: %d of %d events", len(replay.entries), header.Events)
	}
	return replay, nil
}

func replayPath(directory, sessionID string) string {
	return filepath.Join(directory, sessionID+".replay")
}

// ReplayRecorder keeps a replay per live session and writes finished ones
// to saveDir. An empty saveDir keeps nothing on disk.
type ReplayRecorder struct {
	logger  *zap.Logger
	saveDir string

	mu      sync.RWMutex
	replays map[string]*Replay
}

// NewReplayRecorder creates a recorder.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger:  logger,
		saveDir: saveDir,
		replays: make(map[string]*Replay),
	}
}

// Wrap starts recording sessionID and returns a Notifier that logs every
// event before handing it to next.
func (rr *ReplayRecorder) Wrap(sessionID string, next Notifier) Notifier {
	if next == nil {
		next = nopNotifier{}
	}
	replay := NewReplay(sessionID)
	rr.mu.Lock()
	rr.replays[sessionID] = replay
	rr.mu.Unlock()

	return NotifierFunc(func(conn ConnID, event string, payload any) {
		entry := ReplayEntry{At: time.Now(), Conn: conn, Event: event}
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				rr.logger.Warn("replay: failed to encode payload",
					zap.String("session_id", sessionID),
					zap.String("event", event),
					zap.Error(err),
				)
			} else {
				entry.Payload = data
			}
		}
		replay.Record(entry)
		next.Send(conn, event, payload)
	})
}

// Get returns the live replay for sessionID.
func (rr *ReplayRecorder) Get(sessionID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	r, ok := rr.replays[sessionID]
	return r, ok
}

// Finish stops recording sessionID and saves it when a directory is
// configured and the match got past matchmaking.
func (rr *ReplayRecorder) Finish(sessionID string, started bool) error {
	rr.mu.Lock()
	replay, ok := rr.replays[sessionID]
	delete(rr.replays, sessionID)
	rr.mu.Unlock()

	if !ok || !started || rr.saveDir == "" {
		return nil
	}
	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}
	rr.logger.Info("saved replay to disk",
		zap.String("session_id", sessionID),
		zap.Int("events", replay.Size()),
		zap.String("directory", rr.saveDir),
	)
	return nil
}

// Load reads a saved replay.
func (rr *ReplayRecorder) Load(sessionID string) (*Replay, error) {
	if rr.saveDir == "" {
		return nil, errors.New("replay directory not configured")
	}
	return LoadReplayFromFile(rr.saveDir, sessionID)
}

// Len returns the number of sessions being recorded.
func (rr *ReplayRecorder) Len() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.replays)
}
