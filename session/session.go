// Package session owns the portal's authentication state: the current user,
// the token pair, and the operations that are allowed to change them.
package session

import (
	"github.com/jrsteele09/scan-portal/users"
)

// Session is a point-in-time copy of the authentication state.
// Authenticated implies AccessToken is non-empty.
type Session struct {
	User          *users.User
	AccessToken   string
	RefreshToken  string
	Authenticated bool
	Loading       bool
	Error         string
}

func (s Session) IsAuthenticated() bool {
	return s.Authenticated && s.AccessToken != ""
}

func (s Session) IsLoading() bool {
	return s.Loading
}

// Role predicates are false whenever no user record is present,
// including the degraded login where the user fetch failed.
func (s Session) IsDoctor() bool {
	return s.User.IsDoctor()
}

func (s Session) IsPatient() bool {
	return s.User.IsPatient()
}

func (s Session) IsAdmin() bool {
	return s.User.IsAdmin()
}

func (s Session) HasRole(role users.Role) bool {
	return s.User.HasRole(role)
}

func (s Session) clone() Session {
	s.User = s.User.Clone()
	return s
}
