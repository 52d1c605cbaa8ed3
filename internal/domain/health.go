package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latency_ms"`
	LastChecked string `json:"last_checked"`
	Error       string `json:"error,omitempty"`
}

// AccessMetrics is returned by GET /v1/metrics/access.
type AccessMetrics struct {
	LoginsTotal        int64            `json:"logins_total"`
	LoginsByOutcome    map[string]int64 `json:"logins_by_outcome"`
	ScheduleDenials    map[string]int64 `json:"schedule_denials"`
	RoleRequestsByStep map[string]int64 `json:"role_requests"`
	ExternalErrors     int64            `json:"external_errors"`
	DenialRate         float64          `json:"denial_rate"`
	Period             string           `json:"period"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// ListResponse wraps paginated list results.
type ListResponse[T any] struct {
	Data     []T  `json:"data"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasMore  bool `json:"has_more"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
