package netquality

import (
	"context"
	"time"
)

// ServerInfo describes the measurement server picked for a run.
type ServerInfo struct {
	ID      string
	Name    string
	Sponsor string
	Host    string
	PingMs  float64
}

// Client acquires a measurement session. Configure must return a
// *ConfigError when the configuration or server list cannot be retrieved.
type Client interface {
	Configure(ctx context.Context, timeout time.Duration) (Session, error)
}

// Session runs the individual steps of one speed test.
type Session interface {
	// SelectBestServer picks the lowest-latency candidate. Its PingMs is the
	// ping reported and classified for the whole run.
	SelectBestServer(ctx context.Context) (ServerInfo, error)
	// MeasureDownload returns download throughput in bits/second.
	MeasureDownload(ctx context.Context) (float64, error)
	// MeasureUpload returns upload throughput in bits/second.
	MeasureUpload(ctx context.Context) (float64, error)
}
