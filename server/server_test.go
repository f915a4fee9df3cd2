package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/scan-portal/internal/config"
	"github.com/jrsteele09/scan-portal/server"
	"github.com/jrsteele09/scan-portal/token/tokentest"
	"github.com/jrsteele09/scan-portal/transport"
	"github.com/jrsteele09/scan-portal/usercache"
	"github.com/stretchr/testify/require"
)

const password = "password123"

type backendUser struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	IsSuperuser bool   `json:"is_superuser"`
}

// fakeBackend serves the REST endpoints the portal consumes
type fakeBackend struct {
	t      *testing.T
	server *httptest.Server

	mu         sync.Mutex
	users      map[string]backendUser // email -> user
	tokens     map[string]string      // access token -> email
	tokenTTL   time.Duration
	minted     int
	refreshes  int
	userCalls  int
	registered []map[string]any
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		t: t,
		users: map[string]backendUser{
			"doc@example.com": {ID: 1, Email: "doc@example.com", Role: "doctor"},
			"pat@example.com": {ID: 2, Email: "pat@example.com", Role: "patient"},
		},
		tokens:   map[string]string{},
		tokenTTL: time.Hour,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login-simple", fb.login)
	mux.HandleFunc("POST /api/auth/test-token", fb.testToken)
	mux.HandleFunc("POST /api/auth/refresh-token", fb.refresh)
	mux.HandleFunc("POST /api/auth/register", fb.register)
	fb.server = httptest.NewServer(mux)
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) issue(email string) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	// Tokens minted in the same second for the same subject are identical
	fb.minted++
	accessToken := tokentest.Mint(fb.t, email, time.Now().Add(fb.tokenTTL).Add(time.Duration(fb.minted)*time.Second))
	fb.tokens[accessToken] = email
	return accessToken
}

func (fb *fakeBackend) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (fb *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&creds)

	fb.mu.Lock()
	_, ok := fb.users[creds.Email]
	fb.mu.Unlock()
	if !ok || creds.Password != password {
		fb.writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Incorrect email or password"})
		return
	}
	fb.writeJSON(w, http.StatusOK, map[string]string{
		"access_token":  fb.issue(creds.Email),
		"refresh_token": "refresh-" + creds.Email,
		"token_type":    "bearer",
	})
}

func (fb *fakeBackend) bearerEmail(r *http.Request) (string, bool) {
	accessToken := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	fb.mu.Lock()
	defer fb.mu.Unlock()
	email, ok := fb.tokens[accessToken]
	return email, ok
}

func (fb *fakeBackend) testToken(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	fb.userCalls++
	fb.mu.Unlock()

	email, ok := fb.bearerEmail(r)
	if !ok {
		fb.writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
		return
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.writeJSON(w, http.StatusOK, fb.users[email])
}

func (fb *fakeBackend) refresh(w http.ResponseWriter, r *http.Request) {
	email, ok := fb.bearerEmail(r)
	if !ok || r.Header.Get("refreshToken") != "refresh-"+email {
		fb.writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid refresh token"})
		return
	}
	fb.mu.Lock()
	fb.refreshes++
	fb.tokenTTL = time.Hour
	fb.mu.Unlock()

	fb.writeJSON(w, http.StatusOK, map[string]string{
		"access_token":  fb.issue(email),
		"refresh_token": "refresh-" + email,
		"token_type":    "bearer",
	})
}

func (fb *fakeBackend) register(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	fb.mu.Lock()
	defer fb.mu.Unlock()
	email, _ := body["email"].(string)
	if _, exists := fb.users[email]; exists {
		fb.writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "A user with this email already exists in the system."})
		return
	}
	fb.registered = append(fb.registered, body)
	fb.users[email] = backendUser{ID: int64(len(fb.users) + 1), Email: email, Role: body["role"].(string)}
	fb.writeJSON(w, http.StatusOK, map[string]any{"id": len(fb.users)})
}

type harness struct {
	backend *fakeBackend
	server  *server.Server
}

func newHarness(t *testing.T, opts ...server.Option) *harness {
	t.Helper()
	t.Setenv("ENV", "TEST")
	fb := newFakeBackend(t)
	client := transport.New(fb.server.URL+"/api", transport.WithLoginFallback(false))
	return &harness{backend: fb, server: server.New(config.New(), client, opts...)}
}

func (h *harness) do(t *testing.T, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.server.ServeHTTP(w, r)
	return w
}

func (h *harness) get(t *testing.T, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return h.do(t, r)
}

func (h *harness) postForm(t *testing.T, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return h.do(t, r)
}

// login returns the session cookies for email
func (h *harness) login(t *testing.T, email string) []*http.Cookie {
	t.Helper()
	w := h.postForm(t, server.RouteAuthLogin, url.Values{"email": {email}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 2)
	return cookies
}

func cookieByName(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func requireRedirect(t *testing.T, w *httptest.ResponseRecorder, path string) url.Values {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, path, location.Path)
	return location.Query()
}

func TestServer_AnonymousAccess(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/dashboard", "/upload", "/patients", "/profile", "/settings", "/doctor", "/doctor/patients", "/patient", "/patient/scans"} {
		t.Run(path, func(t *testing.T) {
			requireRedirect(t, h.get(t, path), "/login")
		})
	}

	for _, path := range []string{"/", "/login", "/register"} {
		t.Run(path, func(t *testing.T) {
			w := h.get(t, path)
			require.Equal(t, http.StatusOK, w.Code)
			require.Contains(t, w.Header().Get("Content-Type"), "text/html")
			require.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))
		})
	}
}

func TestServer_Login(t *testing.T) {
	t.Run("success sets both cookies", func(t *testing.T) {
		h := newHarness(t)
		w := h.postForm(t, server.RouteAuthLogin, url.Values{"email": {"doc@example.com"}, "password": {password}})

		query := requireRedirect(t, w, "/dashboard")
		require.Equal(t, "Login successful!", query.Get("notice"))

		access := cookieByName(w, "token")
		require.NotNil(t, access)
		require.NotEmpty(t, access.Value)
		require.Equal(t, 86400, access.MaxAge)
		require.True(t, access.HttpOnly)

		refresh := cookieByName(w, "refreshToken")
		require.NotNil(t, refresh)
		require.Equal(t, "refresh-doc@example.com", refresh.Value)
		require.Equal(t, 604800, refresh.MaxAge)

		page := h.get(t, "/dashboard", access, refresh)
		require.Equal(t, http.StatusOK, page.Code)
		require.Contains(t, page.Body.String(), "Welcome back, doc@example.com")
	})

	t.Run("wrong password", func(t *testing.T) {
		h := newHarness(t)
		w := h.postForm(t, server.RouteAuthLogin, url.Values{"email": {"doc@example.com"}, "password": {"nope"}})

		query := requireRedirect(t, w, "/login")
		require.Equal(t, "Incorrect email or password", query.Get("error"))
		require.Equal(t, "doc@example.com", query.Get("email"))
		require.Empty(t, w.Result().Cookies())

		page := h.get(t, "/login?"+query.Encode())
		require.Contains(t, page.Body.String(), "Incorrect email or password")
	})

	t.Run("missing fields", func(t *testing.T) {
		h := newHarness(t)
		query := requireRedirect(t, h.postForm(t, server.RouteAuthLogin, url.Values{"email": {"doc@example.com"}}), "/login")
		require.Equal(t, "Email and password are required", query.Get("error"))
	})

	t.Run("htmx", func(t *testing.T) {
		h := newHarness(t)
		r := httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, strings.NewReader(url.Values{"email": {"pat@example.com"}, "password": {password}}.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.Header.Set("HX-Request", "true")

		w := h.do(t, r)
		require.Equal(t, http.StatusNoContent, w.Code)
		require.True(t, strings.HasPrefix(w.Header().Get("HX-Redirect"), "/dashboard?"))
	})

	t.Run("rate limited", func(t *testing.T) {
		t.Setenv("LOGIN_RATE_LIMIT", "1")
		h := newHarness(t)
		form := url.Values{"email": {"doc@example.com"}, "password": {"nope"}}

		requireRedirect(t, h.postForm(t, server.RouteAuthLogin, form), "/login")
		query := requireRedirect(t, h.postForm(t, server.RouteAuthLogin, form), "/login")
		require.Contains(t, query.Get("error"), "Too many attempts")
	})
}

func TestServer_AuthenticatedRouting(t *testing.T) {
	h := newHarness(t)
	doctor := h.login(t, "doc@example.com")
	patient := h.login(t, "pat@example.com")

	tests := []struct {
		name     string
		cookies  []*http.Cookie
		path     string
		redirect string
	}{
		{name: "patient on login", cookies: patient, path: "/login", redirect: "/dashboard"},
		{name: "doctor on register", cookies: doctor, path: "/register", redirect: "/dashboard"},
		{name: "patient on doctor area", cookies: patient, path: "/doctor", redirect: "/dashboard"},
		{name: "doctor on patient area", cookies: doctor, path: "/patient/scans", redirect: "/dashboard"},
		{name: "doctor on doctor area", cookies: doctor, path: "/doctor/patients"},
		{name: "doctor on patients list", cookies: doctor, path: "/patients"},
		{name: "patient on patient area", cookies: patient, path: "/patient"},
		{name: "patient on upload", cookies: patient, path: "/upload"},
		{name: "landing", cookies: patient, path: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.get(t, tt.path, tt.cookies...)
			if tt.redirect != "" {
				requireRedirect(t, w, tt.redirect)
				return
			}
			require.Equal(t, http.StatusOK, w.Code)
			require.Contains(t, w.Body.String(), "Log out")
		})
	}
}

func TestServer_RejectedCookieIsCleared(t *testing.T) {
	h := newHarness(t)
	w := h.get(t, "/dashboard", &http.Cookie{Name: "token", Value: "revoked"}, &http.Cookie{Name: "refreshToken", Value: "old"})

	requireRedirect(t, w, "/login")
	require.Equal(t, -1, cookieByName(w, "token").MaxAge)
	require.Equal(t, -1, cookieByName(w, "refreshToken").MaxAge)
}

func TestServer_RefreshesNearExpiry(t *testing.T) {
	h := newHarness(t)
	h.backend.tokenTTL = 2 * time.Minute
	cookies := h.login(t, "doc@example.com")
	original := cookies[0].Value

	w := h.get(t, "/dashboard", cookies...)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, h.backend.refreshes)

	renewed := cookieByName(w, "token")
	require.NotNil(t, renewed)
	require.NotEqual(t, original, renewed.Value)
	require.Equal(t, 86400, renewed.MaxAge)
}

func TestServer_UserCacheAvoidsBackendCalls(t *testing.T) {
	h := newHarness(t, server.WithUserCache(usercache.NewInMemory()))
	cookies := h.login(t, "pat@example.com")

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, h.get(t, "/dashboard", cookies...).Code)
	}
	require.Equal(t, 1, h.backend.userCalls, "only the login fetched the user")
}

func TestServer_Logout(t *testing.T) {
	h := newHarness(t)
	cookies := h.login(t, "doc@example.com")

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			r := httptest.NewRequest(method, server.RouteAuthLogout, nil)
			for _, c := range cookies {
				r.AddCookie(c)
			}
			w := h.do(t, r)

			query := requireRedirect(t, w, "/login")
			require.Equal(t, "You have been logged out.", query.Get("notice"))
			require.Equal(t, -1, cookieByName(w, "token").MaxAge)
			require.Equal(t, -1, cookieByName(w, "refreshToken").MaxAge)
		})
	}
}

func TestServer_Register(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := newHarness(t)
		w := h.postForm(t, server.RouteAuthRegister, url.Values{
			"email":     {"new@example.com"},
			"password":  {password},
			"full_name": {"New Doctor"},
			"role":      {"doctor"},
		})

		query := requireRedirect(t, w, "/login")
		require.Equal(t, "Registration successful! Please login.", query.Get("notice"))
		require.Equal(t, "new@example.com", query.Get("email"))
		require.Empty(t, w.Result().Cookies(), "registering does not log in")

		require.Len(t, h.backend.registered, 1)
		require.Equal(t, "doctor", h.backend.registered[0]["role"])
		require.Equal(t, "New Doctor", h.backend.registered[0]["full_name"])
	})

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{name: "short password", form: url.Values{"email": {"a@example.com"}, "password": {"short"}}, want: "password must be at least 8 characters long"},
		{name: "bad email", form: url.Values{"email": {"not-an-email"}, "password": {password}}, want: "email is required"},
		{name: "admin role", form: url.Values{"email": {"a@example.com"}, "password": {password}, "role": {"admin"}}, want: "role must be doctor or patient"},
		{name: "unknown role", form: url.Values{"email": {"a@example.com"}, "password": {password}, "role": {"nurse"}}, want: "role must be doctor or patient"},
		{name: "existing account", form: url.Values{"email": {"doc@example.com"}, "password": {password}}, want: "Registration failed: A user with this email already exists in the system."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			query := requireRedirect(t, h.postForm(t, server.RouteAuthRegister, tt.form), "/register")
			require.Equal(t, tt.want, query.Get("error"))
			require.Equal(t, tt.form.Get("email"), query.Get("email"))
		})
	}
}

func TestServer_ValidatePassword(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name     string
		password string
		body     string
		strong   bool
	}{
		{name: "too short", password: "short", body: "password must be at least 8 characters long (5 so far)"},
		{name: "multibyte counts characters", password: "ééééééé", body: "(7 so far)"},
		{name: "long enough", password: password, body: "Meets the 8-character minimum", strong: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.postForm(t, server.RouteAPIValidatePassword, url.Values{"password": {tt.password}})
			require.Equal(t, http.StatusOK, w.Code)
			require.Contains(t, w.Body.String(), tt.body)

			var trigger map[string]map[string]bool
			require.NoError(t, json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &trigger))
			require.Equal(t, tt.strong, trigger["password-checked"]["strong"])
		})
	}

	t.Run("empty clears the hint", func(t *testing.T) {
		w := h.postForm(t, server.RouteAPIValidatePassword, url.Values{"password": {""}})
		require.Equal(t, http.StatusOK, w.Code)
		require.Empty(t, w.Body.String())
		require.Empty(t, w.Header().Get("HX-Trigger"))
	})
}

func TestServer_SessionState(t *testing.T) {
	h := newHarness(t)

	var anonymous server.SessionState
	w := h.get(t, server.RouteAPISession)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &anonymous))
	require.False(t, anonymous.Authenticated)
	require.Nil(t, anonymous.User)

	var doctor server.SessionState
	w = h.get(t, server.RouteAPISession, h.login(t, "doc@example.com")...)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doctor))
	require.True(t, doctor.Authenticated)
	require.True(t, doctor.IsDoctor)
	require.False(t, doctor.IsPatient)
	require.Equal(t, "doc@example.com", doctor.User.Email)
	require.NotContains(t, w.Body.String(), "refresh-doc", "tokens are not exposed")
}

func TestServer_Misc(t *testing.T) {
	h := newHarness(t)

	t.Run("health", func(t *testing.T) {
		w := h.get(t, server.RouteHealth)
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("stylesheet", func(t *testing.T) {
		w := h.get(t, "/css/portal.css")
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Header().Get("Content-Type"), "text/css")
		require.NotEmpty(t, w.Header().Get("Cache-Control"))
	})

	t.Run("not found", func(t *testing.T) {
		w := h.get(t, "/nowhere")
		require.Equal(t, http.StatusNotFound, w.Code)
		require.Contains(t, w.Body.String(), "/nowhere")
	})

	t.Run("request id", func(t *testing.T) {
		require.NotEmpty(t, h.get(t, "/login").Header().Get("X-Request-ID"))

		r := httptest.NewRequest(http.MethodGet, "/login", nil)
		r.Header.Set("X-Request-ID", "abc")
		require.Equal(t, "abc", h.do(t, r).Header().Get("X-Request-ID"))
	})

	t.Run("www redirect", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/login", nil)
		r.Host = "www.portal.example"
		w := h.do(t, r)
		require.Equal(t, http.StatusMovedPermanently, w.Code)
		require.Equal(t, "http://portal.example/login", w.Header().Get("Location"))
	})
}
