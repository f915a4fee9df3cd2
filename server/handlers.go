package server

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/jrsteele09/scan-portal/users"
	"github.com/rs/zerolog/log"
)

// SessionState is the JSON view of a session. Tokens are never exposed.
type SessionState struct {
	Authenticated bool        `json:"authenticated"`
	Loading       bool        `json:"loading"`
	User          *users.User `json:"user"`
	IsDoctor      bool        `json:"is_doctor"`
	IsPatient     bool        `json:"is_patient"`
	IsAdmin       bool        `json:"is_admin"`
}

// SessionStateHandler reports the caller's session for scripts on the page (GET /api/session)
func (s *Server) SessionStateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := s.loadSession(w, r).Snapshot()
		writeJSON(w, http.StatusOK, SessionState{
			Authenticated: st.IsAuthenticated(),
			Loading:       st.Loading,
			User:          st.User,
			IsDoctor:      st.IsDoctor(),
			IsPatient:     st.IsPatient(),
			IsAdmin:       st.IsAdmin(),
		})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Err(err).Msg("[Server writeJSON] failed to encode response")
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
