package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hamed0406/netmanager/internal/domain"
	"github.com/hamed0406/netmanager/internal/repo"
)

func TestMemoryStore_CreateAndLookupUsers(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &domain.User{Email: "ada@example.com", FullName: "Ada", PasswordHash: "h", IsActive: true}
	if err := s.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" || u.CreatedAt.IsZero() {
		t.Fatalf("expected ID and CreatedAt to be set, got %+v", u)
	}

	got, err := s.GetByEmail(ctx, "ADA@example.com")
	if err != nil || got.ID != u.ID {
		t.Fatalf("GetByEmail: %+v err=%v", got, err)
	}
	if _, err := s.GetByID(ctx, u.ID); err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	dup := &domain.User{Email: "Ada@Example.com", FullName: "Other"}
	if err := s.Create(ctx, dup); !errors.Is(err, repo.ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}

	if _, err := s.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	all, err := s.List(ctx)
	if err != nil || len(all) != 1 || all[0].Email != "ada@example.com" {
		t.Fatalf("List: %+v err=%v", all, err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := &domain.User{Email: "a@example.com", FullName: "A"}
	_ = s.Create(ctx, u)

	got, _ := s.GetByID(ctx, u.ID)
	got.FullName = "mutated"
	again, _ := s.GetByID(ctx, u.ID)
	if again.FullName != "A" {
		t.Fatalf("store leaked internal pointer: %+v", again)
	}
}

func TestMemoryStore_HistoryLatestAndRecent(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

	if r, err := s.Latest(ctx, "home"); err != nil || r != nil {
		t.Fatalf("expected nil latest on empty store, got %+v err=%v", r, err)
	}

	for i, tier := range []float64{10, 60, 200} {
		rec := &domain.MeasurementRecord{
			Link:              "home",
			Source:            "monitor",
			MeasurementResult: domain.NewMeasurementResult(tier, 30, 15, base.Add(time.Duration(i)*time.Minute)),
		}
		if err := s.Append(ctx, rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if rec.ID == "" {
			t.Fatalf("expected record ID")
		}
	}
	_ = s.Append(ctx, &domain.MeasurementRecord{Link: "office", MeasurementResult: domain.NewMeasurementResult(1, 1, 1, base.Add(time.Hour))})

	latest, err := s.Latest(ctx, "home")
	if err != nil || latest == nil {
		t.Fatalf("Latest: %+v err=%v", latest, err)
	}
	if latest.PingMs != 200 || latest.Tier != domain.TierPoor {
		t.Fatalf("unexpected latest: %+v", latest)
	}

	recent, err := s.Recent(ctx, "home", 2)
	if err != nil || len(recent) != 2 {
		t.Fatalf("Recent: %+v err=%v", recent, err)
	}
	if recent[0].PingMs != 200 || recent[1].PingMs != 60 {
		t.Fatalf("recent not newest-first: %+v", recent)
	}
}

func TestMemoryStore_AlertsKeepSendTime(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	if err := s.Set(ctx, "home", domain.TierPoor, now); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "home", domain.TierGood, time.Time{}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	rec, err := s.Get(ctx, "home")
	if err != nil || rec == nil {
		t.Fatalf("Get: %+v err=%v", rec, err)
	}
	if rec.LastTier != domain.TierGood || rec.LastSentAt == nil || !rec.LastSentAt.Equal(now) {
		t.Fatalf("unexpected alert record: %+v", rec)
	}
}

func TestMemoryStore_HistoryCappedPerLink(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.HistoryLimit = 3
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		rec := &domain.MeasurementRecord{
			Link:              "home",
			MeasurementResult: domain.NewMeasurementResult(10, 50, 20, base.Add(time.Duration(i)*time.Minute)),
		}
		if err := s.Append(ctx, rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := s.Append(ctx, &domain.MeasurementRecord{Link: "office", MeasurementResult: domain.NewMeasurementResult(10, 50, 20, base)}); err != nil {
		t.Fatalf("Append office: %v", err)
	}

	recs, _ := s.Recent(ctx, "home", 0)
	if len(recs) != 3 {
		t.Fatalf("want 3 records kept, got %d", len(recs))
	}
	if !recs[0].Timestamp.Equal(base.Add(9*time.Minute)) || !recs[2].Timestamp.Equal(base.Add(7*time.Minute)) {
		t.Fatalf("oldest records should be dropped first: %v .. %v", recs[0].Timestamp, recs[2].Timestamp)
	}
	if office, _ := s.Recent(ctx, "office", 0); len(office) != 1 {
		t.Fatalf("other links unaffected; got %d", len(office))
	}
	if latest, _ := s.Latest(ctx, "home"); latest == nil || !latest.Timestamp.Equal(base.Add(9*time.Minute)) {
		t.Fatalf("latest=%+v", latest)
	}
}
