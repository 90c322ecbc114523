package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: no active session
	Error string `json:"error" example:"no active session"`
	// HTTP status code.
	// example: 503
	Code int `json:"code" example:"503"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall agent state (starting, listening, connected, stopped).
	// example: connected
	State string `json:"state" example:"connected"`
	// Transport variant serving clients.
	// example: socket
	Transport string `json:"transport" example:"socket"`
	// Listen address or device path.
	// example: :6000
	Endpoint string `json:"endpoint" example:":6000"`
	// Currently connected client, if any.
	Session *SessionStatus `json:"session,omitempty"`
	// Runtime tunables shared by all sessions.
	Settings SettingsStatus `json:"settings"`
	// Total number of sessions served since start.
	// example: 3
	SessionsTotal uint64 `json:"sessions_total" example:"3"`
	// Reason the previous session ended (if any).
	// example: transport: peer closed connection
	LastError string `json:"last_error,omitempty"`
	// Uptime of the agent in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
