package apiclient

import "sync/atomic"

// Session carries the logged-out flag. Once marked, every error propagation
// to staff is suppressed until Reset (next successful login).
type Session struct {
	loggedOut atomic.Bool
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) MarkLoggedOut() { s.loggedOut.Store(true) }
func (s *Session) Reset()         { s.loggedOut.Store(false) }

func (s *Session) LoggedOut() bool {
	return s != nil && s.loggedOut.Load()
}
