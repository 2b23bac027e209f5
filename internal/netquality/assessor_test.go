package netquality

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/netmanager/internal/domain"
)

type fakeClient struct {
	configureErr error
	selectErr    error
	downloadErr  error
	uploadErr    error
	panicOn      string

	pingMs   float64
	download float64
	upload   float64

	mu          sync.Mutex
	gotTimeout  time.Duration
	hadDeadline bool
	downloads   int
}

func (f *fakeClient) Configure(ctx context.Context, timeout time.Duration) (Session, error) {
	f.mu.Lock()
	f.gotTimeout = timeout
	_, f.hadDeadline = ctx.Deadline()
	f.mu.Unlock()
	if f.panicOn == "configure" {
		panic("boom")
	}
	if f.configureErr != nil {
		return nil, f.configureErr
	}
	return f, nil
}

func (f *fakeClient) SelectBestServer(ctx context.Context) (ServerInfo, error) {
	if f.selectErr != nil {
		return ServerInfo{}, f.selectErr
	}
	return ServerInfo{ID: "1", Sponsor: "test", PingMs: f.pingMs}, nil
}

func (f *fakeClient) MeasureDownload(ctx context.Context) (float64, error) {
	f.mu.Lock()
	f.downloads++
	f.mu.Unlock()
	if f.panicOn == "download" {
		panic(errors.New("nil transport"))
	}
	if f.downloadErr != nil {
		return 0, f.downloadErr
	}
	return f.download, nil
}

func (f *fakeClient) MeasureUpload(ctx context.Context) (float64, error) {
	if f.uploadErr != nil {
		return 0, f.uploadErr
	}
	return f.upload, nil
}

type recorded struct {
	outcome string
	tier    domain.Tier
}

type fakeRecorder struct {
	mu  sync.Mutex
	obs []recorded
}

func (r *fakeRecorder) ObserveAssessment(outcome string, tier domain.Tier, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, recorded{outcome, tier})
}

func newTestAssessor(c Client, rec Recorder) *Assessor {
	return NewAssessor(c, zap.NewNop(), Options{Recorder: rec})
}

func TestAssess_Success_ConvertsAndClassifies(t *testing.T) {
	c := &fakeClient{pingMs: 12.3456, download: 20456789, upload: 10_500_000}
	rec := &fakeRecorder{}
	fixed := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	a := NewAssessor(c, zap.NewNop(), Options{Recorder: rec, Now: func() time.Time { return fixed }})

	res, err := a.Assess(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 20.46, res.DownloadMbps)
	assert.Equal(t, 10.5, res.UploadMbps)
	assert.Equal(t, 12.35, res.PingMs)
	assert.Equal(t, domain.TierGood, res.Tier)
	assert.True(t, res.Timestamp.Equal(fixed))

	assert.Equal(t, DefaultConfigTimeout, c.gotTimeout)
	assert.True(t, c.hadDeadline, "configure should run under a deadline")
	require.Len(t, rec.obs, 1)
	assert.Equal(t, recorded{"ok", domain.TierGood}, rec.obs[0])
}

func TestAssess_ClassifiesWithSelectionPing(t *testing.T) {
	c := &fakeClient{pingMs: 60, download: 25_000_000, upload: 15_000_000}
	res, err := newTestAssessor(c, nil).Assess(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 60.0, res.PingMs)
	assert.Equal(t, domain.TierModerate, res.Tier)
	assert.Equal(t, domain.Classify(res.PingMs, res.DownloadMbps, res.UploadMbps), res.Tier)
}

func TestAssess_ExplicitTimeoutIsPassedThrough(t *testing.T) {
	c := &fakeClient{pingMs: 1, download: 1, upload: 1}
	_, err := newTestAssessor(c, nil).AssessWithTimeout(context.Background(), 750*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, c.gotTimeout)
}

func TestAssess_ConfigFailureIsConfigUnavailable(t *testing.T) {
	cases := map[string]*fakeClient{
		"configure": {configureErr: &ConfigError{Op: "fetch server list", Err: errors.New("dial tcp: no route")}},
		"select":    {selectErr: &ConfigError{Op: "server list", Err: errors.New("malformed xml")}},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			rec := &fakeRecorder{}
			res, err := newTestAssessor(c, rec).Assess(context.Background())
			require.Error(t, err)
			assert.Equal(t, domain.MeasurementResult{}, res)

			var ae *AssessmentError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, ConfigUnavailable, ae.Kind)
			assert.NotEqual(t, MeasurementFailed, ae.Kind)
			assert.Equal(t, ConfigUnavailableMessage, err.Error())
			assert.Equal(t, 0, c.downloads)
			assert.Equal(t, []recorded{{"config_unavailable", ""}}, rec.obs)
		})
	}
}

func TestAssess_GenericFailuresAreMeasurementFailed(t *testing.T) {
	cases := map[string]*fakeClient{
		"configure": {configureErr: errors.New("unexpected client state")},
		"select":    {selectErr: errors.New("no server answered")},
		"download":  {downloadErr: errors.New("connection reset by peer")},
		"upload":    {uploadErr: errors.New("i/o timeout")},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := newTestAssessor(c, nil).Assess(context.Background())
			require.Error(t, err)
			assert.Equal(t, domain.MeasurementResult{}, res)
			assert.Equal(t, MeasurementFailed, KindOf(err))
			assert.NotEmpty(t, err.Error())
		})
	}
}

func TestAssess_DownloadFailureKeepsDescription(t *testing.T) {
	cause := errors.New("connection reset by peer")
	_, err := newTestAssessor(&fakeClient{downloadErr: cause}, nil).Assess(context.Background())
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset by peer")
}

func TestAssess_EmptyErrorStillHasDescription(t *testing.T) {
	_, err := newTestAssessor(&fakeClient{uploadErr: errors.New("")}, nil).Assess(context.Background())
	require.Error(t, err)
	assert.NotEmpty(t, err.Error())
}

func TestAssess_PanicsBecomeMeasurementFailed(t *testing.T) {
	for _, step := range []string{"configure", "download"} {
		res, err := newTestAssessor(&fakeClient{panicOn: step}, nil).Assess(context.Background())
		require.Error(t, err, step)
		assert.Equal(t, MeasurementFailed, KindOf(err), step)
		assert.Equal(t, domain.MeasurementResult{}, res, step)
	}
}

func TestAssess_MeasureTimeoutBoundsThroughputTests(t *testing.T) {
	c := &blockingClient{}
	a := NewAssessor(c, zap.NewNop(), Options{MeasureTimeout: 20 * time.Millisecond})
	start := time.Now()
	_, err := a.Assess(context.Background())
	require.Error(t, err)
	assert.Equal(t, MeasurementFailed, KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAssess_TimestampsNonDecreasing(t *testing.T) {
	a := newTestAssessor(&fakeClient{pingMs: 30, download: 30e6, upload: 20e6}, nil)
	first, err := a.Assess(context.Background())
	require.NoError(t, err)
	second, err := a.Assess(context.Background())
	require.NoError(t, err)
	assert.False(t, second.Timestamp.Before(first.Timestamp))
}

type blockingClient struct{ fakeClient }

func (b *blockingClient) Configure(ctx context.Context, timeout time.Duration) (Session, error) {
	return b, nil
}

func (b *blockingClient) MeasureDownload(ctx context.Context) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}
