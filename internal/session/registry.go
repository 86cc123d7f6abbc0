// Package session caches per-user backend sessions: the pairing of a
// Direct Line token and an open conversation id.
package session

import (
	"context"
	"sync"
	"time"
)

// Session is one user's backend session. Immutable once created.
type Session struct {
	UserID         string
	Token          string
	ConversationID string
	CreatedAt      time.Time
}

// Opener creates a fresh backend session for a user. Implemented by the
// directline client wiring in the serve command.
type Opener func(ctx context.Context, userID string) (token, conversationID string, err error)

// Registry maps user ids to cached sessions. It is the single source of
// truth for whether a user has an active session, and serializes creation
// per user so concurrent first contacts collapse into one backend call.
type Registry struct {
	open Opener
	// ttl bounds how long a session is reused; zero disables expiry.
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	inflight map[string]*call
}

type call struct {
	done    chan struct{}
	session *Session
	err     error
}

// NewRegistry creates a registry that delegates session creation to open.
func NewRegistry(open Opener, ttl time.Duration) *Registry {
	return &Registry{
		open:     open,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
		inflight: make(map[string]*call),
	}
}

// GetOrCreate returns the cached session for userID, creating one if none
// is live. Concurrent callers for the same new user share a single
// creation; all observe the same session or the same error. A failed
// creation caches nothing.
func (r *Registry) GetOrCreate(ctx context.Context, userID string) (*Session, error) {
	r.mu.Lock()
	if s := r.sessions[userID]; s != nil && r.live(s) {
		r.mu.Unlock()
		return s, nil
	}
	if c := r.inflight[userID]; c != nil {
		r.mu.Unlock()
		select {
		case <-c.done:
			return c.session, c.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	r.inflight[userID] = c
	r.mu.Unlock()

	token, conversationID, err := r.open(ctx, userID)
	var s *Session
	if err == nil {
		s = &Session{
			UserID:         userID,
			Token:          token,
			ConversationID: conversationID,
			CreatedAt:      r.now(),
		}
	}

	r.mu.Lock()
	delete(r.inflight, userID)
	if s != nil {
		r.sessions[userID] = s
	}
	r.mu.Unlock()

	c.session = s
	c.err = err
	close(c.done)
	return s, err
}

// Lookup returns the live cached session for userID, if any. No side
// effects.
func (r *Registry) Lookup(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[userID]
	if s == nil || !r.live(s) {
		return nil, false
	}
	return s, true
}

// Len returns the number of cached sessions, expired entries included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) live(s *Session) bool {
	if r.ttl <= 0 {
		return true
	}
	return r.now().Sub(s.CreatedAt) < r.ttl
}
