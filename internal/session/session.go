// Package session holds the authentication credential for one user session.
//
// The credential is an explicit value threaded into the REST client and the
// push channel at construction time, not a hidden process-wide singleton.
// This keeps multiple concurrent sessions testable side by side.
package session

import "sync"

// Session carries the bearer token for one authenticated user session.
// The zero value is a logged-out session. Safe for concurrent use.
type Session struct {
	mu    sync.RWMutex
	token string
}

// New creates a session with the given bearer token. An empty token creates
// a logged-out session.
func New(token string) *Session {
	return &Session{token: token}
}

// Token returns the current credential, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken stores a new credential. Called at login/signup/OAuth completion.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Clear removes the credential. Called at logout.
func (s *Session) Clear() {
	s.SetToken("")
}

// Authenticated reports whether a credential is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}
