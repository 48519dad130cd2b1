package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthLogin   = "/auth/login"
	RouteAuthVerify  = "/auth/verify-otp"
	RouteAuthRefresh = "/auth/refresh-token"
	RouteAuthLogout  = "/auth/logout"

	// Employee Routes
	RouteEmployeeMe = "/employees/me"

	// Time tracker Routes
	RouteCheckIn  = "/timetrackers/check-in"
	RouteCheckOut = "/timetrackers/check-out"
	RouteDailyLog = "/timetrackers/daily-log/{userId}"

	RouteHealth = "/healthz"
)
