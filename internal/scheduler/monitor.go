package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netmanager/internal/domain"
	"github.com/hamed0406/netmanager/internal/repo"
)

const SourceMonitor = "monitor"

// Assessor is satisfied by *netquality.Assessor.
type Assessor interface {
	Assess(ctx context.Context) (domain.MeasurementResult, error)
}

// Monitor periodically assesses the link and appends each result to history.
type Monitor struct {
	Logger   *zap.Logger
	Assessor Assessor
	History  repo.HistoryStore
	Link     string
	Interval time.Duration
}

func NewMonitor(logger *zap.Logger, a Assessor, h repo.HistoryStore, link string, interval time.Duration) *Monitor {
	if interval < 0 {
		interval = 0
	}
	if link == "" {
		link = "default"
	}
	return &Monitor{Logger: logger, Assessor: a, History: h, Link: link, Interval: interval}
}

// Run does an immediate pass, then one per tick. Stops when ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	if m.Interval == 0 {
		m.Logger.Info("monitor_disabled")
		return
	}
	t := time.NewTicker(m.Interval)
	defer t.Stop()

	m.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			m.Logger.Info("monitor_stopped")
			return
		case <-t.C:
			m.runOnce(ctx)
		}
	}
}

func (m *Monitor) runOnce(ctx context.Context) {
	res, err := m.Assessor.Assess(ctx)
	if err != nil {
		m.Logger.Warn("monitor_assess_error", zap.String("link", m.Link), zap.Error(err))
		return
	}
	rec := &domain.MeasurementRecord{
		Link:              m.Link,
		Source:            SourceMonitor,
		MeasurementResult: res,
	}
	if err := m.History.Append(ctx, rec); err != nil {
		m.Logger.Warn("monitor_append_error", zap.String("link", m.Link), zap.Error(err))
		return
	}
	m.Logger.Debug("monitor_assessed",
		zap.String("link", m.Link),
		zap.String("tier", string(res.Tier)),
		zap.Float64("ping_ms", res.PingMs),
		zap.Float64("download_mbps", res.DownloadMbps),
		zap.Float64("upload_mbps", res.UploadMbps),
	)
}
