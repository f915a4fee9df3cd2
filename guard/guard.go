// Package guard decides whether a page may render for a session. Decisions are
// pure: the same subject and path always give the same answer.
package guard

import (
	"strings"

	"github.com/jrsteele09/scan-portal/users"
)

type Access int

const (
	Public Access = iota
	Protected
	RoleScoped
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case RoleScoped:
		return "role-scoped"
	default:
		return "unknown"
	}
}

// Rule classifies the paths it matches. Role is only used by RoleScoped rules.
type Rule struct {
	Prefix string
	Exact  bool
	Access Access
	Role   users.Role
}

func (r Rule) Matches(path string) bool {
	if r.Exact {
		return path == r.Prefix
	}
	return strings.HasPrefix(path, r.Prefix)
}

type State int

const (
	Loading State = iota
	Authorized
	Redirecting
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authorized:
		return "authorized"
	case Redirecting:
		return "redirecting"
	default:
		return "unknown"
	}
}

// Decision is the outcome for one path. Location is set only when redirecting.
type Decision struct {
	State    State
	Location string
}

// Subject is the session state a decision depends on
type Subject interface {
	IsLoading() bool
	IsAuthenticated() bool
	HasRole(role users.Role) bool
}

// Table is an ordered rule list; the first matching rule wins and unmatched paths are public.
type Table struct {
	Rules         []Rule
	LoginPath     string
	DashboardPath string
	// EntryPaths are the login and register pages an authenticated user is sent away from
	EntryPaths []string
}

func DefaultTable() Table {
	return Table{
		Rules: []Rule{
			{Prefix: "/", Exact: true, Access: Public},
			{Prefix: "/login", Exact: true, Access: Public},
			{Prefix: "/register", Exact: true, Access: Public},
			{Prefix: "/dashboard", Access: Protected},
			{Prefix: "/upload", Access: Protected},
			// before /patient, which it would otherwise match
			{Prefix: "/patients", Access: Protected},
			{Prefix: "/profile", Access: Protected},
			{Prefix: "/settings", Access: Protected},
			{Prefix: "/doctor", Access: RoleScoped, Role: users.RoleDoctor},
			{Prefix: "/patient", Access: RoleScoped, Role: users.RolePatient},
		},
		LoginPath:     "/login",
		DashboardPath: "/dashboard",
		EntryPaths:    []string{"/login", "/register"},
	}
}

// Match returns the first rule matching path
func (t Table) Match(path string) (Rule, bool) {
	for _, r := range t.Rules {
		if r.Matches(path) {
			return r, true
		}
	}
	return Rule{}, false
}

func (t Table) isEntryPath(path string) bool {
	for _, p := range t.EntryPaths {
		if p == path {
			return true
		}
	}
	return false
}

func (t Table) Decide(s Subject, path string) Decision {
	if s.IsLoading() {
		return Decision{State: Loading}
	}

	rule, _ := t.Match(path)
	authenticated := s.IsAuthenticated()

	switch {
	case !authenticated && rule.Access != Public:
		return redirect(t.LoginPath)
	case authenticated && t.isEntryPath(path):
		return redirect(t.DashboardPath)
	case authenticated && rule.Access == RoleScoped && !s.HasRole(rule.Role):
		return redirect(t.DashboardPath)
	}
	return Decision{State: Authorized}
}

func redirect(location string) Decision {
	return Decision{State: Redirecting, Location: location}
}
