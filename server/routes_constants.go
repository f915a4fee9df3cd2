package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/"

	// Auth Routes - Login, Registration & Logout
	RouteLogin        = "/login"
	RouteRegister     = "/register"
	RouteAuthLogin    = "/auth/login"
	RouteAuthRegister = "/auth/register"
	RouteAuthLogout   = "/auth/logout"

	// Portal pages
	RouteDashboard = "/dashboard"
	RouteUpload    = "/upload"
	RoutePatients  = "/patients"
	RouteProfile   = "/profile"
	RouteSettings  = "/settings"
	RouteDoctor    = "/doctor"
	RoutePatient   = "/patient"

	// API Routes
	RouteAPIValidatePassword = "/api/validate-password"
	RouteAPISession          = "/api/session"
	RouteHealth              = "/healthz"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
)
