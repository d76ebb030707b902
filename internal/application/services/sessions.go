package services

import (
	"sync"
	"time"

	"github.com/mshogin/assistant/internal/domain/models"
)

// session holds one sender's conversation state. The embedded mutex
// serializes all message handling for that sender: the step machine is
// only ever read and mutated under it.
type session struct {
	mu           sync.Mutex
	state        *models.ConversationState
	lastActivity time.Time
}

// sessionRegistry maps sender identifiers to sessions.
//
// The registry mutex guards only the map itself; per-sender work runs
// under the session mutex, so different senders proceed fully in
// parallel while messages from one sender are strictly serialized.
//
// Entries without an open conversation are removed on release, so the
// map holds only senders that are mid-flow or mid-message.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*session)}
}

// acquire returns the sender's session with its mutex held. The caller
// must release it when message handling completes.
func (r *sessionRegistry) acquire(senderID string) *session {
	for {
		r.mu.Lock()
		s, ok := r.sessions[senderID]
		if !ok {
			s = &session{}
			r.sessions[senderID] = s
		}
		r.mu.Unlock()

		s.mu.Lock()

		// The entry may have been evicted between the map lookup and
		// taking the session lock; retry on a fresh entry so two
		// goroutines never run on different sessions of one sender.
		r.mu.Lock()
		current := r.sessions[senderID]
		r.mu.Unlock()
		if current == s {
			return s
		}
		s.mu.Unlock()
	}
}

// release unlocks a session acquired with acquire. A session left with
// no conversation state is dropped from the registry so distinct sender
// IDs never accumulate.
func (r *sessionRegistry) release(senderID string, s *session) {
	if s.state == nil {
		r.mu.Lock()
		if r.sessions[senderID] == s {
			delete(r.sessions, senderID)
		}
		r.mu.Unlock()
	}
	s.mu.Unlock()
}

// openCount returns the number of senders with an open conversation.
func (r *sessionRegistry) openCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, s := range r.sessions {
		// A session busy handling a message counts as open.
		if !s.mu.TryLock() {
			count++
			continue
		}
		if s.state != nil {
			count++
		}
		s.mu.Unlock()
	}
	return count
}

// size returns the number of tracked sessions, open or not.
func (r *sessionRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
