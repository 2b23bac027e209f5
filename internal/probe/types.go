package probe

import "context"

// CheckResult holds the outcome of a single connectivity probe.
type CheckResult struct {
	Name       string  `json:"name"`
	Target     string  `json:"target"`
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	StatusCode int     `json:"status_code,omitempty"` // 0 for transport/DNS errors
	LatencyMS  float64 `json:"latency_ms,omitempty"`
}

// Checker is implemented by any connectivity probe (HTTP, DNS).
type Checker interface {
	Check(ctx context.Context, target string) CheckResult
}

// Probe binds a checker to the target it should be run against.
type Probe struct {
	Checker Checker
	Target  string
}
