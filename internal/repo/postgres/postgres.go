package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/netmanager/internal/domain"
	"github.com/hamed0406/netmanager/internal/repo"
)

var (
	_ repo.UserStore    = (*Store)(nil)
	_ repo.HistoryStore = (*Store)(nil)
	_ repo.AlertStore   = (*Store)(nil)
)

const uniqueViolation = "23505"

// Schema is applied by EnsureSchema; statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
  id            TEXT PRIMARY KEY,
  email         TEXT NOT NULL,
  fullname      VARCHAR(255) NOT NULL,
  password_hash TEXT NOT NULL,
  is_active     BOOLEAN NOT NULL DEFAULT TRUE,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (lower(email));

CREATE TABLE IF NOT EXISTS measurements (
  id            TEXT PRIMARY KEY,
  link          TEXT NOT NULL,
  source        TEXT NOT NULL,
  download_mbps DOUBLE PRECISION NOT NULL,
  upload_mbps   DOUBLE PRECISION NOT NULL,
  ping_ms       DOUBLE PRECISION NOT NULL,
  tier          TEXT NOT NULL,
  measured_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_measurements_link_time ON measurements (link, measured_at DESC);

CREATE TABLE IF NOT EXISTS alerts (
  link         TEXT PRIMARY KEY,
  last_tier    TEXT NOT NULL,
  last_sent_at TIMESTAMPTZ NULL
);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.log.Info("postgres_schema_ready")
	return nil
}

// ---- UserStore ----

func (s *Store) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = domain.UserID(uuid.NewString())
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, fullname, password_hash, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		string(u.ID), u.Email, u.FullName, u.PasswordHash, u.IsActive, u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repo.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const userColumns = `id, email, fullname, password_hash, is_active, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u  domain.User
		id string
	)
	if err := row.Scan(&id, &u.Email, &u.FullName, &u.PasswordHash, &u.IsActive, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID = domain.UserID(id)
	return &u, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (s *Store) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, string(id)))
}

func (s *Store) List(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// ---- HistoryStore ----

func (s *Store) Append(ctx context.Context, r *domain.MeasurementRecord) error {
	if r.ID == "" {
		r.ID = domain.RecordID(uuid.NewString())
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO measurements
		   (id, link, source, download_mbps, upload_mbps, ping_ms, tier, measured_at)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(r.ID), r.Link, r.Source, r.DownloadMbps, r.UploadMbps, r.PingMs, string(r.Tier), r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	return nil
}

const measurementColumns = `id, link, source, download_mbps, upload_mbps, ping_ms, tier, measured_at`

func scanMeasurement(row pgx.Row) (domain.MeasurementRecord, error) {
	var (
		r    domain.MeasurementRecord
		id   string
		tier string
	)
	err := row.Scan(&id, &r.Link, &r.Source, &r.DownloadMbps, &r.UploadMbps, &r.PingMs, &tier, &r.Timestamp)
	r.ID = domain.RecordID(id)
	r.Tier = domain.Tier(tier)
	return r, err
}

func (s *Store) Recent(ctx context.Context, link string, limit int) ([]domain.MeasurementRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+measurementColumns+`
		   FROM measurements
		  WHERE link = $1
		  ORDER BY measured_at DESC
		  LIMIT $2`, link, limit)
	if err != nil {
		return nil, fmt.Errorf("recent measurements: %w", err)
	}
	defer rows.Close()

	out := make([]domain.MeasurementRecord, 0, limit)
	for rows.Next() {
		r, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Latest(ctx context.Context, link string) (*domain.MeasurementRecord, error) {
	r, err := scanMeasurement(s.pool.QueryRow(ctx,
		`SELECT `+measurementColumns+`
		   FROM measurements
		  WHERE link = $1
		  ORDER BY measured_at DESC
		  LIMIT 1`, link))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest measurement: %w", err)
	}
	return &r, nil
}

// ---- AlertStore ----

func (s *Store) Get(ctx context.Context, link string) (*repo.AlertRecord, error) {
	const q = `SELECT last_tier, last_sent_at FROM alerts WHERE link = $1`
	var (
		tier     string
		lastSent *time.Time
	)
	err := s.pool.QueryRow(ctx, q, link).Scan(&tier, &lastSent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &repo.AlertRecord{Link: link, LastTier: domain.Tier(tier), LastSentAt: lastSent}, nil
}

func (s *Store) Set(ctx context.Context, link string, tier domain.Tier, sentAt time.Time) error {
	const q = `
		INSERT INTO alerts (link, last_tier, last_sent_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (link)
		DO UPDATE SET last_tier = EXCLUDED.last_tier,
		              last_sent_at = COALESCE(EXCLUDED.last_sent_at, alerts.last_sent_at)
	`
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	if _, err := s.pool.Exec(ctx, q, link, string(tier), ts); err != nil {
		return fmt.Errorf("set alert: %w", err)
	}
	return nil
}
