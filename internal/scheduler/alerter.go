package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netmanager/internal/domain"
	"github.com/hamed0406/netmanager/internal/notify"
	"github.com/hamed0406/netmanager/internal/repo"
)

type AlerterConfig struct {
	Link            string
	AlertOnRecovery bool
	Cooldown        time.Duration
	PollInterval    time.Duration
}

// Alerter watches the latest monitored tier and notifies when the link
// degrades to Poor or recovers from it.
type Alerter struct {
	log      *zap.Logger
	history  repo.HistoryStore
	alertDB  repo.AlertStore
	notifier notify.Notifier
	cfg      AlerterConfig
	now      func() time.Time
}

func NewAlerter(
	log *zap.Logger,
	history repo.HistoryStore,
	alertDB repo.AlertStore,
	notifier notify.Notifier,
	cfg AlerterConfig,
) *Alerter {
	if cfg.Link == "" {
		cfg.Link = "default"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m, ok := notifier.(notify.Multi); ok && len(m) == 0 {
		notifier = nil
	}
	return &Alerter{
		log:      log,
		history:  history,
		alertDB:  alertDB,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	t := time.NewTicker(a.cfg.PollInterval)
	defer t.Stop()

	// initial pass
	a.logScan(a.scanOnce(ctx))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			a.logScan(a.scanOnce(ctx))
		}
	}
}

func (a *Alerter) logScan(err error) {
	if err != nil {
		a.log.Warn("alerter_scan_error", zap.Error(err))
	}
}

func (a *Alerter) scanOnce(ctx context.Context) error {
	r, err := a.history.Latest(ctx, a.cfg.Link)
	if err != nil {
		return err
	}
	if r == nil {
		return nil
	}

	rec, err := a.alertDB.Get(ctx, a.cfg.Link)
	if err != nil {
		return err
	}
	now := a.now()

	poor := r.Tier == domain.TierPoor
	wasPoor := rec != nil && rec.LastTier == domain.TierPoor
	changed := rec == nil || rec.LastTier != r.Tier

	// Cooldown only suppresses repeated degradation alerts.
	cooled := true
	if rec != nil && rec.LastSentAt != nil {
		cooled = now.Sub(*rec.LastSentAt) >= a.cfg.Cooldown
	}

	degraded := changed && poor && cooled
	recovered := changed && wasPoor && !poor && a.cfg.AlertOnRecovery

	if degraded || recovered {
		title := "🔴 Network quality POOR"
		if recovered {
			title = "🟢 Network quality RECOVERED"
		}
		text := fmt.Sprintf(
			"Link: %s\nStatus: %s\nDownload: %.2f Mbps\nUpload: %.2f Mbps\nPing: %.2f ms\nMeasured: %s",
			r.Link, r.Tier, r.DownloadMbps, r.UploadMbps, r.PingMs, r.Timestamp.Format(time.RFC3339),
		)
		if a.notifier == nil {
			a.log.Info("alert_log_only",
				zap.String("link", a.cfg.Link), zap.String("title", title), zap.String("tier", string(r.Tier)))
			return a.alertDB.Set(ctx, a.cfg.Link, r.Tier, now)
		}
		// Leave the record untouched on failure so the next poll retries.
		if err := a.notifier.Send(ctx, title, text); err != nil {
			a.log.Warn("alert_send_error", zap.String("link", a.cfg.Link), zap.Error(err))
			return nil
		}
		a.log.Info("alert_sent", zap.String("link", a.cfg.Link), zap.String("tier", string(r.Tier)))
		return a.alertDB.Set(ctx, a.cfg.Link, r.Tier, now)
	}

	// Still record tier changes we did not notify about.
	if changed {
		return a.alertDB.Set(ctx, a.cfg.Link, r.Tier, time.Time{})
	}
	return nil
}
