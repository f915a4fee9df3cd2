package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/scan-portal/guard"
	"github.com/jrsteele09/scan-portal/internal/config"
	"github.com/jrsteele09/scan-portal/session"
)

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	router     *chi.Mux
	routes     []string
	config     config.Config
	transport  session.Transport
	userCache  session.UserCache
	guardTable guard.Table
	pages      *pageTemplates
}

type Option func(*Server)

// WithUserCache lets requests rehydrate sessions without a backend call per request
func WithUserCache(cache session.UserCache) Option {
	return func(s *Server) {
		s.userCache = cache
	}
}

func WithGuardTable(table guard.Table) Option {
	return func(s *Server) {
		s.guardTable = table
	}
}

func New(cfg config.Config, t session.Transport, options ...Option) *Server {
	s := &Server{
		env:        cfg.GetEnv(),
		router:     chi.NewRouter(),
		config:     cfg,
		transport:  t,
		guardTable: guard.DefaultTable(),
		pages:      mustParsePages(),
	}
	for _, opt := range options {
		opt(s)
	}

	s.router.NotFound(ChainMiddleware(s.NotFoundHandler(), s.HTMLMiddleWare()...))
	s.initRoutes()
	s.logRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RegisterRouteHandler registers handler for a "METHOD /path" pattern. A pattern
// without a method matches every method.
func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	method, path := splitPattern(pattern)
	if method == "" {
		s.router.Handle(path, handler)
		return
	}
	s.router.Method(method, path, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.RegisterRouteHandler(pattern, http.HandlerFunc(handler))
}

func splitPattern(pattern string) (method, path string) {
	parts := strings.SplitN(pattern, " ", 2)
	if len(parts) > 1 {
		return parts[0], parts[1]
	}
	return "", parts[0]
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		logRoute(splitPattern(route))
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
