package domain

// ============================================================
// Health & API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of one backing dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	Error       string `json:"error,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// SuccessResponse wraps a plain confirmation message.
type SuccessResponse struct {
	Message string `json:"message"`
}

// SeedResult is returned by POST /api/txns/seed-fraud.
type SeedResult struct {
	Message        string  `json:"message"`
	CurrentBalance float64 `json:"currentBalance"`
}
