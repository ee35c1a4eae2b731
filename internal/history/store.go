// Package history keeps a short rolling conversation window per session.
package history

import (
	"sync"

	"ragchat/internal/domain"
	"ragchat/internal/prompt"
)

// Default limits.
const (
	DefaultWindow         = 6
	DefaultAssistantChars = 400
)

// Store maps session ids to their most recent turns. It lives only in
// process memory. Appends replace the session slice wholesale, so a slice
// returned by Turns is never modified afterwards.
type Store struct {
	mu             sync.Mutex
	window         int
	assistantChars int
	sessions       map[string][]domain.Turn
}

// NewStore creates a store keeping at most window turns per session and
// truncating stored assistant text to assistantChars runes.
func NewStore(window, assistantChars int) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	if assistantChars <= 0 {
		assistantChars = DefaultAssistantChars
	}
	return &Store{
		window:         window,
		assistantChars: assistantChars,
		sessions:       map[string][]domain.Turn{},
	}
}

// Turns returns the stored turns of a session, oldest first.
func (s *Store) Turns(sessionID string) []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionID]
}

// Append records a turn and evicts the oldest ones beyond the window.
func (s *Store) Append(sessionID, user, assistant string) {
	turn := domain.Turn{User: user, Assistant: prompt.Truncate(assistant, s.assistantChars)}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.sessions[sessionID]
	start := max(0, len(prev)+1-s.window)
	next := make([]domain.Turn, 0, len(prev)+1-start)
	next = append(next, prev[start:]...)
	next = append(next, turn)
	s.sessions[sessionID] = next
}

// Len returns the number of known sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
