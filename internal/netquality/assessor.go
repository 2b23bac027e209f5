package netquality

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netmanager/internal/domain"
)

const (
	DefaultConfigTimeout  = 3 * time.Second
	DefaultMeasureTimeout = 60 * time.Second
)

// Recorder receives one observation per Assess call. Outcome is "ok" or the
// ErrorKind string; tier is empty on failure.
type Recorder interface {
	ObserveAssessment(outcome string, tier domain.Tier, d time.Duration)
}

type Options struct {
	// ConfigTimeout bounds configuration retrieval and server selection.
	ConfigTimeout time.Duration
	// MeasureTimeout bounds the download and upload tests together.
	// Zero leaves them bounded only by the caller's context.
	MeasureTimeout time.Duration
	Now            func() time.Time
	Recorder       Recorder
}

// Assessor runs one speed test per call and classifies the result. It holds
// no per-call state and is safe for concurrent use.
type Assessor struct {
	client Client
	log    *zap.Logger
	opts   Options
}

func NewAssessor(c Client, log *zap.Logger, opts Options) *Assessor {
	if opts.ConfigTimeout <= 0 {
		opts.ConfigTimeout = DefaultConfigTimeout
	}
	if opts.MeasureTimeout < 0 {
		opts.MeasureTimeout = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Assessor{client: c, log: log, opts: opts}
}

// Assess runs an assessment with the configured timeout.
func (a *Assessor) Assess(ctx context.Context) (domain.MeasurementResult, error) {
	return a.AssessWithTimeout(ctx, a.opts.ConfigTimeout)
}

// AssessWithTimeout runs an assessment whose configuration and server
// discovery are bounded by timeout. Any error returned is an *AssessmentError.
func (a *Assessor) AssessWithTimeout(ctx context.Context, timeout time.Duration) (res domain.MeasurementResult, err error) {
	if timeout <= 0 {
		timeout = a.opts.ConfigTimeout
	}
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = domain.MeasurementResult{}
			err = &AssessmentError{Kind: MeasurementFailed, Err: fmt.Errorf("measurement client panic: %v", p)}
		}
		a.observe(res, err, time.Since(start))
	}()

	res, err = a.run(ctx, timeout)
	if err != nil {
		return domain.MeasurementResult{}, err
	}
	return res, nil
}

func (a *Assessor) run(ctx context.Context, timeout time.Duration) (domain.MeasurementResult, error) {
	cfgCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sess, err := a.client.Configure(cfgCtx, timeout)
	if err != nil {
		return domain.MeasurementResult{}, classifyErr("configure", err)
	}
	server, err := sess.SelectBestServer(cfgCtx)
	if err != nil {
		return domain.MeasurementResult{}, classifyErr("select server", err)
	}
	a.log.Debug("speedtest_server_selected",
		zap.String("server_id", server.ID),
		zap.String("sponsor", server.Sponsor),
		zap.Float64("ping_ms", server.PingMs),
	)

	mctx := ctx
	if a.opts.MeasureTimeout > 0 {
		var mcancel context.CancelFunc
		mctx, mcancel = context.WithTimeout(ctx, a.opts.MeasureTimeout)
		defer mcancel()
	}

	down, err := sess.MeasureDownload(mctx)
	if err != nil {
		return domain.MeasurementResult{}, classifyErr("download", err)
	}
	up, err := sess.MeasureUpload(mctx)
	if err != nil {
		return domain.MeasurementResult{}, classifyErr("upload", err)
	}

	return domain.NewMeasurementResult(
		domain.Round2(server.PingMs),
		domain.BitsToMbps(down),
		domain.BitsToMbps(up),
		a.opts.Now(),
	), nil
}

func (a *Assessor) observe(res domain.MeasurementResult, err error, d time.Duration) {
	if err != nil {
		a.log.Warn("network_assessment_failed",
			zap.String("kind", KindOf(err).String()),
			zap.Error(err),
			zap.Duration("took", d),
		)
		if a.opts.Recorder != nil {
			a.opts.Recorder.ObserveAssessment(KindOf(err).String(), "", d)
		}
		return
	}
	a.log.Info("network_assessed",
		zap.Float64("download_mbps", res.DownloadMbps),
		zap.Float64("upload_mbps", res.UploadMbps),
		zap.Float64("ping_ms", res.PingMs),
		zap.String("tier", string(res.Tier)),
		zap.Duration("took", d),
	)
	if a.opts.Recorder != nil {
		a.opts.Recorder.ObserveAssessment("ok", res.Tier, d)
	}
}
