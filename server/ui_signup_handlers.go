package server

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/jrsteele09/scan-portal/internal/errors"
	"github.com/jrsteele09/scan-portal/users"
	"github.com/rs/zerolog/log"
)

const noticeRegistered = "Registration successful! Please login."

// RegisterPageHandler renders the sign-up form (GET /register)
func (s *Server) RegisterPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		data := s.newPageData(r, "Register")
		data.Email = query.Get("email")
		data.FullName = query.Get("full_name")
		data.Role = string(users.ParseRole(query.Get("role")))
		data.MinPasswordLength = users.MinPasswordLength
		s.render(w, http.StatusOK, "register.html", data)
	}
}

// RegisterSubmissionHandler creates the account and sends the user to log in.
// Registering never logs the user in.
func (s *Server) RegisterSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		reg := users.Registration{
			Email:    strings.TrimSpace(r.FormValue("email")),
			Password: r.FormValue("password"),
			Role:     users.ParseRole(r.FormValue("role")),
			FullName: strings.TrimSpace(r.FormValue("full_name")),
		}
		if r.FormValue("role") != "" && reg.Role == users.RoleUnset {
			registerError(w, r, errors.ErrInvalidRole.Error(), reg)
			return
		}
		if err := reg.Validate(); err != nil {
			registerError(w, r, err.Error(), reg)
			return
		}

		store := s.newStore(w, r)
		if err := store.Register(r.Context(), reg); err != nil {
			registerError(w, r, "Registration failed: "+store.Snapshot().Error, reg)
			return
		}

		log.Info().Str("email", reg.Email).Str("role", string(reg.RoleOrDefault())).Msg("[Server Register] account created")
		redirectWithQuery(w, r, RouteLogin, url.Values{"notice": {noticeRegistered}, "email": {reg.Email}})
	}
}

func registerError(w http.ResponseWriter, r *http.Request, msg string, reg users.Registration) {
	redirectWithQuery(w, r, RouteRegister, url.Values{
		"error":     {msg},
		"email":     {reg.Email},
		"full_name": {reg.FullName},
		"role":      {string(reg.Role)},
	})
}

type passwordHint struct {
	Strong    bool
	Message   string
	Length    int
	MinLength int
}

// ValidatePasswordHandler renders the live strength hint under the register
// form's password field (POST /api/validate-password). The page listens for
// the password-checked event to toggle the submit button.
func (s *Server) ValidatePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		password := r.FormValue("password")
		w.Header().Set("Content-Type", contentTypeHTML)
		if password == "" {
			w.WriteHeader(http.StatusOK)
			return
		}

		hint := passwordHint{
			Strong:    true,
			Length:    utf8.RuneCountInString(password),
			MinLength: users.MinPasswordLength,
		}
		if err := users.ValidatePasswordStrength(password); err != nil {
			hint.Strong = false
			hint.Message = err.Error()
		}

		var buf bytes.Buffer
		if err := s.pages.passwordHint.ExecuteTemplate(&buf, "password_hint", hint); err != nil {
			log.Err(err).Msg("[Server ValidatePassword] failed to render hint")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		trigger, _ := json.Marshal(map[string]any{"password-checked": map[string]bool{"strong": hint.Strong}})
		w.Header().Set("HX-Trigger", string(trigger))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}
