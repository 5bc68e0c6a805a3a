// Package fixstate deduplicates fix attempts. It counts attempts per error
// signature, remembers recently fixed signatures for a cooldown window and
// keeps a bounded history of every attempt.
package fixstate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/mender/internal/filelock"
	"github.com/harrison/mender/internal/models"
)

// Config bounds the state.
type Config struct {
	Cooldown    time.Duration // skip a signature fixed less than this long ago
	MaxAttempts int           // skip a signature once it has this many attempts
	HistorySize int           // attempt history ring capacity
	TTL         time.Duration // recent-fix entries older than this are evicted by Cleanup
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		Cooldown:    30 * time.Second,
		MaxAttempts: 3,
		HistorySize: 50,
		TTL:         5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	if c.TTL <= 0 {
		c.TTL = d.TTL
	}
	return c
}

// AttemptRecord is one entry of the attempt history.
type AttemptRecord struct {
	ID        string             `json:"id"`
	Signature string             `json:"signature"`
	Category  models.Category    `json:"category,omitempty"`
	Strategy  models.FixStrategy `json:"strategy,omitempty"`
	Success   bool               `json:"success"`
	Duration  time.Duration      `json:"duration"`
	Error     string             `json:"error,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// SkipDecision tells the engine whether to decline an error, and why.
type SkipDecision struct {
	Skip   bool
	Reason string
}

// State is safe for concurrent use.
type State struct {
	mu          sync.Mutex
	cfg         Config
	attempts    map[string]int
	recentFixes map[string]time.Time
	history     []AttemptRecord
	path        string
	now         func() time.Time
}

// New returns an empty in-memory state.
func New(cfg Config) *State {
	return &State{
		cfg:         cfg.withDefaults(),
		attempts:    make(map[string]int),
		recentFixes: make(map[string]time.Time),
		now:         time.Now,
	}
}

type snapshot struct {
	Attempts    map[string]int       `json:"attempts"`
	RecentFixes map[string]time.Time `json:"recent_fixes"`
	History     []AttemptRecord      `json:"history"`
}

// Open loads state persisted at path, or starts empty when the file does not
// exist yet. Save writes back to the same path.
func Open(path string, cfg Config) (*State, error) {
	s := New(cfg)
	s.path = path

	data, err := filelock.LockAndRead(path)
	if err != nil {
		return nil, fmt.Errorf("load fix state: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse fix state %s: %w", path, err)
	}
	for k, v := range snap.Attempts {
		s.attempts[k] = v
	}
	for k, v := range snap.RecentFixes {
		s.recentFixes[k] = v
	}
	s.history = snap.History
	if over := len(s.history) - s.cfg.HistorySize; over > 0 {
		s.history = s.history[over:]
	}
	return s, nil
}

// Save persists the state when it was opened from a path. It is a no-op for
// in-memory state.
func (s *State) Save() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	data, err := json.MarshalIndent(snapshot{
		Attempts:    s.attempts,
		RecentFixes: s.recentFixes,
		History:     s.history,
	}, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode fix state: %w", err)
	}
	if err := filelock.LockAndWrite(s.path, data); err != nil {
		return fmt.Errorf("save fix state: %w", err)
	}
	return nil
}

// ShouldSkip reports whether the error was fixed within the cooldown window
// or has used up its attempts.
func (s *State) ShouldSkip(message string) SkipDecision {
	sig := Signature(message)

	s.mu.Lock()
	defer s.mu.Unlock()

	if fixedAt, ok := s.recentFixes[sig]; ok {
		if age := s.now().Sub(fixedAt); age < s.cfg.Cooldown {
			return SkipDecision{
				Skip:   true,
				Reason: fmt.Sprintf("recently fixed (%s ago, cooldown %s)", age.Round(time.Second), s.cfg.Cooldown),
			}
		}
	}
	if n := s.attempts[sig]; n >= s.cfg.MaxAttempts {
		return SkipDecision{
			Skip:   true,
			Reason: fmt.Sprintf("max attempts reached (%d/%d)", n, s.cfg.MaxAttempts),
		}
	}
	return SkipDecision{}
}

// RecordAttempt counts an attempt for the message's signature and appends it
// to the history. Only a successful attempt starts the cooldown. ID,
// Signature and Timestamp are filled in when empty; the stored record is
// returned.
func (s *State) RecordAttempt(message string, rec AttemptRecord) AttemptRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Signature == "" {
		rec.Signature = Signature(message)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}

	s.attempts[rec.Signature]++
	if rec.Success {
		s.recentFixes[rec.Signature] = now
	}

	s.history = append(s.history, rec)
	if over := len(s.history) - s.cfg.HistorySize; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
	return rec
}

// Attempts returns the attempt count recorded for the message's signature.
func (s *State) Attempts(message string) int {
	sig := Signature(message)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[sig]
}

// History returns a copy of the attempt history, oldest first.
func (s *State) History() []AttemptRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AttemptRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Reset forgets everything recorded for the message's signature.
func (s *State) Reset(message string) {
	sig := Signature(message)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, sig)
	delete(s.recentFixes, sig)
}

// Cleanup evicts recent-fix entries older than the TTL and returns how many
// were removed.
func (s *State) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.cfg.TTL)
	removed := 0
	for sig, fixedAt := range s.recentFixes {
		if fixedAt.Before(cutoff) {
			delete(s.recentFixes, sig)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done. A
// non-positive interval uses the configured TTL. The returned channel is
// closed once the background goroutine has exited.
func (s *State) StartCleanup(ctx context.Context, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = s.cfg.TTL
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
	return done
}
