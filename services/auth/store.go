package auth

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"

	"gongbridge/models"
)

// Store holds the single current session plus an append-only history of every
// session installed during the process lifetime. It is an explicit handle
// passed to whoever needs it; there is no package-level current session.
//
// Current is read on every outbound request and written only on refresh, so a
// read-write lock with whole-object replacement is enough: readers see the old
// session or the new one, never a torn mix.
type Store struct {
	mu      sync.RWMutex
	current *models.Session
	history map[string]models.Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{history: make(map[string]models.Session)}
}

// Current returns a snapshot of the current session. The second return is
// false when no session has been installed yet.
func (s *Store) Current() (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.Session{}, false
	}
	return *s.current, true
}

// Replace atomically installs sess as the current session and records it in
// history. The previous session is superseded, not mutated.
func (s *Store) Replace(sess models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &sess
	s.history[sess.ID] = sess
}

// Touch bumps the current session's last-activity timestamp. No-op when no
// session is installed.
func (s *Store) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.LastActivity = now
	}
}

// Deactivate marks the current session inactive after a hard invalidation.
func (s *Store) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Active = false
	}
}

// History returns diagnostic summaries of every session seen so far.
func (s *Store) History() []models.SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := make([]models.SessionSummary, 0, len(s.history))
	for _, sess := range s.history {
		summaries = append(summaries, sess.Summary())
	}
	return summaries
}

// SaveHistory persists session summaries for diagnostics. Only identity and
// counts are written; token and cookie values never touch disk.
func (s *Store) SaveHistory(fs afero.Fs, path string) error {
	summaries := s.History()

	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session history: %w", err)
	}

	// Write to temp file first, then rename (atomic write)
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session history: %w", err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("replace session history: %w", err)
	}
	return nil
}
