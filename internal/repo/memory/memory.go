package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/netmanager/internal/domain"
	"github.com/hamed0406/netmanager/internal/repo"
)

var (
	_ repo.UserStore    = (*Store)(nil)
	_ repo.HistoryStore = (*Store)(nil)
	_ repo.AlertStore   = (*Store)(nil)
)

// DefaultHistoryLimit is how many records are kept per link.
const DefaultHistoryLimit = 1000

type Store struct {
	mu      sync.RWMutex
	users   map[domain.UserID]*domain.User
	byEmail map[string]domain.UserID
	history map[string][]domain.MeasurementRecord // per link, append order
	alerts  map[string]repo.AlertRecord

	// HistoryLimit caps records per link; the oldest are dropped first.
	HistoryLimit int
}

func New() *Store {
	return &Store{
		users:        make(map[domain.UserID]*domain.User),
		byEmail:      make(map[string]domain.UserID),
		history:      make(map[string][]domain.MeasurementRecord),
		alerts:       make(map[string]repo.AlertRecord),
		HistoryLimit: DefaultHistoryLimit,
	}
}

// ---- UserStore ----

func (m *Store) Create(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := m.byEmail[key]; ok {
		return repo.ErrDuplicate
	}
	if u.ID == "" {
		u.ID = domain.UserID(uuid.NewString())
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	cp := *u
	m.users[u.ID] = &cp
	m.byEmail[key] = u.ID
	return nil
}

func (m *Store) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *Store) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Store) List(ctx context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ---- HistoryStore ----

func (m *Store) Append(ctx context.Context, r *domain.MeasurementRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = domain.RecordID(uuid.NewString())
	}
	recs := append(m.history[r.Link], *r)
	if m.HistoryLimit > 0 && len(recs) > m.HistoryLimit {
		// copy so the dropped prefix can be collected
		recs = append([]domain.MeasurementRecord(nil), recs[len(recs)-m.HistoryLimit:]...)
	}
	m.history[r.Link] = recs
	return nil
}

func (m *Store) Recent(ctx context.Context, link string, limit int) ([]domain.MeasurementRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.history[link]
	out := make([]domain.MeasurementRecord, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) Latest(ctx context.Context, link string) (*domain.MeasurementRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.MeasurementRecord
	for _, r := range m.history[link] {
		if latest == nil || !r.Timestamp.Before(latest.Timestamp) {
			latest = &r
		}
	}
	return latest, nil
}

// ---- AlertStore ----

func (m *Store) Get(ctx context.Context, link string) (*repo.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.alerts[link]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Store) Set(ctx context.Context, link string, tier domain.Tier, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.alerts[link]
	rec.Link = link
	rec.LastTier = tier
	if !sentAt.IsZero() {
		ts := sentAt
		rec.LastSentAt = &ts
	}
	m.alerts[link] = rec
	return nil
}
