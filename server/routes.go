package server

import (
	"net/http"
	"strings"
)

type portalPage struct {
	route       string
	title       string
	template    string
	description string
}

var portalPages = []portalPage{
	{route: RouteDashboard, title: "Dashboard", template: "dashboard.html"},
	{route: RouteUpload, title: "Upload Medical Scan", template: "page.html", description: "Upload CT, MRI, or X-ray images for AI analysis."},
	{route: RoutePatients, title: "Patient Records", template: "page.html", description: "View and manage patient records and scan history."},
	{route: RouteProfile, title: "Your Profile", template: "page.html", description: "Manage your account settings and preferences."},
	{route: RouteSettings, title: "Settings", template: "page.html", description: "Notification and display preferences."},
	{route: RouteDoctor, title: "Doctor Workspace", template: "page.html", description: "Scans awaiting your review appear here."},
	{route: RoutePatient, title: "My Scans", template: "page.html", description: "Your uploaded scans and their analysis appear here."},
}

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteIndex, ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare(s.SessionGuard)...))

	// LOGIN / REGISTER
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare(s.SessionGuard)...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare(s.SubmissionRateLimit(RouteLogin))...))
	s.RegisterRouteHandler("GET "+RouteRegister, ChainMiddleware(s.RegisterPageHandler(), s.HTMLMiddleWare(s.SessionGuard)...))
	s.RegisterRouteHandler("POST "+RouteAuthRegister, ChainMiddleware(s.RegisterSubmissionHandler(), s.HTMLMiddleWare(s.SubmissionRateLimit(RouteRegister))...))
	s.RegisterRouteHandler("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	// Guarded portal pages, each with its sub paths
	for _, page := range portalPages {
		handler := ChainMiddleware(s.PageHandler(page), s.HTMLMiddleWare(s.SessionGuard)...)
		s.RegisterRouteHandler("GET "+page.route, handler)
		s.RegisterRouteHandler("GET "+page.route+"/*", handler)
	}

	// API routes
	s.RegisterRouteHandler("POST "+RouteAPIValidatePassword, ChainMiddleware(s.ValidatePasswordHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionStateHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPISession, ChainMiddleware(s.SessionStateHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	s.RegisterRouteHandler("GET "+RouteStaticCSS, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		err := StreamFile(w, r, filePath)
		if err != nil {
			logError(r.Method, filePath, err.Error())
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}
