package library

import "errors"

// ErrNotLoggedIn is returned by Session.RequireUser when nobody has logged in.
// It is a shell-level condition, not a record store error.
var ErrNotLoggedIn = errors.New("not logged in")

// Session holds at most one authenticated user id for the life of the
// process. There is no logout.
type Session struct {
	userID   int64
	loggedIn bool
}

// Login records id as the current user, replacing any previous one.
func (s *Session) Login(id int64) {
	s.userID = id
	s.loggedIn = true
}

// UserID returns the current user id and whether one is set.
func (s *Session) UserID() (int64, bool) { return s.userID, s.loggedIn }

func (s *Session) RequireUser() (int64, error) {
	if !s.loggedIn {
		return 0, ErrNotLoggedIn
	}
	return s.userID, nil
}
