package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/netmanager/internal/domain"
	"github.com/hamed0406/netmanager/internal/notify"
	"github.com/hamed0406/netmanager/internal/repo/memory"
)

// ---- shared helpers ----

type memNotifier struct {
	n      int
	titles []string
	err    error
}

func (m *memNotifier) Send(ctx context.Context, title, text string) error {
	m.n++
	m.titles = append(m.titles, title)
	return m.err
}

func record(t *testing.T, s *memory.Store, tier domain.Tier) {
	t.Helper()
	res := domain.MeasurementResult{Tier: tier, Timestamp: time.Now()}
	switch tier {
	case domain.TierGood:
		res.PingMs, res.DownloadMbps, res.UploadMbps = 10, 100, 50
	case domain.TierModerate:
		res.PingMs, res.DownloadMbps, res.UploadMbps = 80, 10, 3
	default:
		res.PingMs, res.DownloadMbps, res.UploadMbps = 300, 1, 0.5
	}
	require.NoError(t, s.Append(context.Background(), &domain.MeasurementRecord{
		Link: "home", Source: SourceMonitor, MeasurementResult: res,
	}))
}

func newTestAlerter(s *memory.Store, nt *memNotifier, recovery bool, cooldown time.Duration) *Alerter {
	return NewAlerter(zap.NewNop(), s, s, nt, AlerterConfig{
		Link:            "home",
		AlertOnRecovery: recovery,
		Cooldown:        cooldown,
		PollInterval:    10 * time.Millisecond,
	})
}

// ---- tests ----

func TestAlerter_NoHistory_NoAlert(t *testing.T) {
	s := memory.New()
	nt := &memNotifier{}
	al := newTestAlerter(s, nt, true, time.Minute)

	require.NoError(t, al.scanOnce(context.Background()))
	assert.Equal(t, 0, nt.n)
}

func TestAlerter_SendsOnPoor_Once(t *testing.T) {
	s := memory.New()
	nt := &memNotifier{}
	al := newTestAlerter(s, nt, true, time.Minute)

	record(t, s, domain.TierPoor)
	require.NoError(t, al.scanOnce(context.Background()))
	assert.Equal(t, 1, nt.n)

	// same tier again -> no duplicate
	record(t, s, domain.TierPoor)
	require.NoError(t, al.scanOnce(context.Background()))
	assert.Equal(t, 1, nt.n)

	rec, err := s.Get(context.Background(), "home")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.TierPoor, rec.LastTier)
	assert.NotNil(t, rec.LastSentAt)
}

func TestAlerter_GoodFirstSeen_NoAlert(t *testing.T) {
	s := memory.New()
	nt := &memNotifier{}
	al := newTestAlerter(s, nt, true, time.Minute)

	record(t, s, domain.TierGood)
	require.NoError(t, al.scanOnce(context.Background()))
	assert.Equal(t, 0, nt.n)

	rec, err := s.Get(context.Background(), "home")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.TierGood, rec.LastTier)
	assert.Nil(t, rec.LastSentAt)
}

func TestAlerter_Recovery(t *testing.T) {
	s := memory.New()
	nt := &memNotifier{}
	al := newTestAlerter(s, nt, true, time.Hour)

	record(t, s, domain.TierPoor)
	require.NoError(t, al.scanOnce(context.Background()))
	record(t, s, domain.TierModerate)
	require.NoError(t, al.scanOnce(context.Background()))

	require.Equal(t, 2, nt.n)
	assert.Contains(t, nt.titles[1], "RECOVERED")
}

func TestAlerter_RecoveryDisabled(t *testing.T) {
	s := memory.New()
	nt := &memNotifier{}
	al := newTestAlerter(s, nt, false, time.Minute)

	record(t, s, domain.TierPoor)
	require.NoError(t, al.scanOnce(context.Background()))
	record(t, s, domain.TierGood)
	require.NoError(t, al.scanOnce(context.Background()))

	assert.Equal(t, 1, nt.n)
	rec, _ := s.Get(context.Background(), "home")
	assert.Equal(t, domain.TierGood, rec.LastTier)
}

func TestAlerter_CooldownSuppressesFlapping(t *testing.T) {
	s := memory.New()
	nt := &memNotifier{}
	al := newTestAlerter(s, nt, false, time.Hour)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	al.now = func() time.Time { return base }

	record(t, s, domain.TierPoor)
	require.NoError(t, al.scanOnce(context.Background()))
	record(t, s, domain.TierGood)
	require.NoError(t, al.scanOnce(context.Background()))

	// degrade again inside the cooldown window
	al.now = func() time.Time { return base.Add(10 * time.Minute) }
	record(t, s, domain.TierPoor)
	require.NoError(t, al.scanOnce(context.Background()))
	assert.Equal(t, 1, nt.n)

	// and once more after it elapsed
	record(t, s, domain.TierGood)
	require.NoError(t, al.scanOnce(context.Background()))
	al.now = func() time.Time { return base.Add(2 * time.Hour) }
	record(t, s, domain.TierPoor)
	require.NoError(t, al.scanOnce(context.Background()))
	assert.Equal(t, 2, nt.n)
}

func TestAlerter_SendErrorRetriesNextPoll(t *testing.T) {
	s := memory.New()
	nt := &memNotifier{err: errors.New("webhook down")}
	al := newTestAlerter(s, nt, true, time.Minute)

	record(t, s, domain.TierPoor)
	require.NoError(t, al.scanOnce(context.Background()))
	assert.Equal(t, 1, nt.n)

	rec, err := s.Get(context.Background(), "home")
	require.NoError(t, err)
	assert.Nil(t, rec, "failed send must not mark the alert as delivered")

	nt.err = nil
	require.NoError(t, al.scanOnce(context.Background()))
	assert.Equal(t, 2, nt.n)

	rec, err = s.Get(context.Background(), "home")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.TierPoor, rec.LastTier)
	assert.NotNil(t, rec.LastSentAt)

	// delivered now, so no third attempt
	require.NoError(t, al.scanOnce(context.Background()))
	assert.Equal(t, 2, nt.n)
}

func TestAlerter_NoNotifierStillRecordsTier(t *testing.T) {
	for name, n := range map[string]notify.Notifier{
		"nil":         nil,
		"empty multi": notify.Multi{},
	} {
		t.Run(name, func(t *testing.T) {
			s := memory.New()
			al := NewAlerter(nil, s, s, n, AlerterConfig{Link: "home", Cooldown: time.Minute})

			record(t, s, domain.TierPoor)
			require.NoError(t, al.scanOnce(context.Background()))

			rec, err := s.Get(context.Background(), "home")
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, domain.TierPoor, rec.LastTier)
			assert.NotNil(t, rec.LastSentAt)
		})
	}
}

func TestAlerter_Run_StopsOnCancel(t *testing.T) {
	s := memory.New()
	nt := &memNotifier{}
	al := newTestAlerter(s, nt, true, time.Minute)
	record(t, s, domain.TierPoor)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- al.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("alerter did not stop")
	}
	assert.Equal(t, 1, nt.n)
}
