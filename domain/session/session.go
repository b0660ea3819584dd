package session

import (
	"sync"
	"time"

	"chat-relay/auth"
	"chat-relay/errors"
)

// Session is the authentication state attached to a single transport
// connection. The identity transitions nil -> bound exactly once and is never
// reset while the connection lives; every identity-requiring action goes
// through Identity() as its authorization gate.
type Session struct {
	mu            sync.RWMutex
	identity      *auth.Identity
	boundAt       time.Time
	username      *string
	profilePicURL *string
}

func New() *Session {
	return &Session{}
}

// Bind attaches the verified identity to the session. A second call fails
// with ErrSessionAlreadyBound: a connection cannot re-authenticate.
func (s *Session) Bind(identity auth.Identity, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity != nil {
		return errors.ErrSessionAlreadyBound
	}
	s.identity = &identity
	s.boundAt = at
	return nil
}

// Identity returns the bound identity, or false while the session is still
// unauthenticated.
func (s *Session) Identity() (auth.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.identity == nil {
		return auth.Identity{}, false
	}
	return *s.identity, true
}

func (s *Session) BoundAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.boundAt
}

// SetProfile refreshes the cached display attributes after a successful
// profile resolution or update. Nil means "unset", mirroring the store.
func (s *Session) SetProfile(username, profilePicURL *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.profilePicURL = profilePicURL
}

// Profile returns the cached display attributes.
func (s *Session) Profile() (username, profilePicURL *string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username, s.profilePicURL
}
