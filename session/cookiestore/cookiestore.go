// Package cookiestore persists session tokens as HTTP cookies on a single request/response pair.
package cookiestore

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// Storage reads cookies from the request and writes Set-Cookie headers to the response.
// Values set or removed during the request are visible to later Gets.
type Storage struct {
	w      http.ResponseWriter
	r      *http.Request
	secure bool
	path   string
	now    func() time.Time

	mu      sync.Mutex
	overlay map[string]*string
}

type Option func(*Storage)

// WithSecure forces the Secure attribute. Requests that arrived over TLS always get it.
func WithSecure(secure bool) Option {
	return func(s *Storage) {
		s.secure = secure
	}
}

func WithPath(path string) Option {
	return func(s *Storage) {
		s.path = path
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

func New(w http.ResponseWriter, r *http.Request, options ...Option) *Storage {
	s := &Storage{
		w:       w,
		r:       r,
		path:    "/",
		now:     time.Now,
		overlay: make(map[string]*string),
	}
	for _, opt := range options {
		opt(s)
	}
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		s.secure = true
	}
	return s
}

func (s *Storage) Get(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.overlay[name]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}

	c, err := s.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (s *Storage) Set(name, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cookie(name, value)
	if ttl > 0 {
		c.MaxAge = int(ttl.Seconds())
		c.Expires = s.now().Add(ttl).UTC()
	}
	s.write(c)
	s.overlay[name] = &value
}

func (s *Storage) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cookie(name, "")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0).UTC()
	s.write(c)
	s.overlay[name] = nil
}

func (s *Storage) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.path,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// write replaces any Set-Cookie already queued for the same name so the
// response carries only the final value.
func (s *Storage) write(c *http.Cookie) {
	header := s.w.Header()
	prefix := c.Name + "="
	var kept []string
	for _, v := range header.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	header.Del("Set-Cookie")
	for _, v := range kept {
		header.Add("Set-Cookie", v)
	}
	http.SetCookie(s.w, c)
}
