package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/scan-portal/users"
	"github.com/rs/zerolog/log"
)

const (
	noticeLoggedIn         = "Login successful!"
	noticeLoggedInNoRecord = "Logged in but could not retrieve user profile"
	noticeLoggedOut        = "You have been logged out."
)

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPageData(r, "Log in")
		data.Email = r.URL.Query().Get("email")
		s.render(w, http.StatusOK, "login.html", data)
	}
}

// LoginSubmissionHandler processes the login form submission
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		creds := users.Credentials{
			Email:    strings.TrimSpace(r.FormValue("email")),
			Password: r.FormValue("password"),
		}
		if creds.Email == "" || creds.Password == "" {
			loginError(w, r, "Email and password are required", creds.Email)
			return
		}

		store := s.newStore(w, r)
		if err := store.Login(r.Context(), creds); err != nil {
			loginError(w, r, store.Snapshot().Error, creds.Email)
			return
		}

		notice := noticeLoggedIn
		if store.Snapshot().User == nil {
			notice = noticeLoggedInNoRecord
		}
		log.Info().Str("email", creds.Email).Msg("[Server Login] user logged in")
		redirectWithNotice(w, r, RouteDashboard, notice)
	}
}

func loginError(w http.ResponseWriter, r *http.Request, msg, email string) {
	redirectWithQuery(w, r, RouteLogin, url.Values{"error": {msg}, "email": {email}})
}

// LogoutHandler clears the session cookies. It never fails.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.newStore(w, r).Logout()
		redirectWithNotice(w, r, RouteLogin, noticeLoggedOut)
	}
}
