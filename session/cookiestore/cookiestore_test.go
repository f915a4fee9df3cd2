package cookiestore_test

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/scan-portal/session/cookiestore"
	"github.com/stretchr/testify/require"
)

func responseCookies(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	cookies := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		cookies[c.Name] = c
	}
	return cookies
}

func TestStorage_GetFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.AddCookie(&http.Cookie{Name: "token", Value: "abc"})
	r.AddCookie(&http.Cookie{Name: "refreshToken", Value: ""})

	s := cookiestore.New(httptest.NewRecorder(), r)

	v, ok := s.Get("token")
	require.True(t, ok)
	require.Equal(t, "abc", v)

	_, ok = s.Get("refreshToken")
	require.False(t, ok, "empty cookies count as absent")

	_, ok = s.Get("missing")
	require.False(t, ok)
}

func TestStorage_Set(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	s := cookiestore.New(w, r, cookiestore.WithClock(func() time.Time { return now }))

	s.Set("token", "first", time.Hour)
	s.Set("token", "access", 24*time.Hour)
	s.Set("refreshToken", "refresh", 7*24*time.Hour)

	v, ok := s.Get("token")
	require.True(t, ok)
	require.Equal(t, "access", v)

	require.Len(t, w.Result().Cookies(), 2, "a cookie set twice is sent once")
	cookies := responseCookies(w)

	access := cookies["token"]
	require.Equal(t, "access", access.Value)
	require.Equal(t, 86400, access.MaxAge)
	require.Equal(t, "/", access.Path)
	require.True(t, access.HttpOnly)
	require.False(t, access.Secure)
	require.Equal(t, http.SameSiteLaxMode, access.SameSite)

	require.Equal(t, 604800, cookies["refreshToken"].MaxAge)
}

func TestStorage_Remove(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	r.AddCookie(&http.Cookie{Name: "token", Value: "abc"})
	s := cookiestore.New(w, r)

	s.Set("token", "new", time.Hour)
	s.Remove("token")

	_, ok := s.Get("token")
	require.False(t, ok, "removal hides the request cookie")

	cookies := responseCookies(w)
	require.Len(t, cookies, 1)
	require.Equal(t, "", cookies["token"].Value)
	require.Equal(t, -1, cookies["token"].MaxAge)
}

func TestStorage_Secure(t *testing.T) {
	t.Run("tls request", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.TLS = &tls.ConnectionState{}

		cookiestore.New(w, r).Set("token", "abc", time.Hour)
		require.True(t, responseCookies(w)["token"].Secure)
	})

	t.Run("forwarded https", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Forwarded-Proto", "https")

		cookiestore.New(w, r).Set("token", "abc", time.Hour)
		require.True(t, responseCookies(w)["token"].Secure)
	})

	t.Run("configured", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		cookiestore.New(w, r, cookiestore.WithSecure(true)).Set("token", "abc", time.Hour)
		require.True(t, responseCookies(w)["token"].Secure)
	})
}
