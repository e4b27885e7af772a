package api

// HealthCheck is the status of one checked component.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status      string                 `json:"status"`
	Version     string                 `json:"version"`
	Checks      map[string]HealthCheck `json:"checks"`
	Sessions    int                    `json:"sessions"`
	Connections int                    `json:"connections"`
}
