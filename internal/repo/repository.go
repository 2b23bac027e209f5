package repo

import (
	"context"
	"errors"

	"github.com/hamed0406/netmanager/internal/domain"
)

var (
	ErrDuplicate = errors.New("already exists")
	ErrNotFound  = errors.New("not found")
)

// Ports implemented by the memory and postgres adapters.
type UserStore interface {
	// Create stores a new user; ErrDuplicate if the email is taken.
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

type HistoryStore interface {
	Append(ctx context.Context, r *domain.MeasurementRecord) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, link string, limit int) ([]domain.MeasurementRecord, error)
	// Latest returns nil, nil when the link has no records yet.
	Latest(ctx context.Context, link string) (*domain.MeasurementRecord, error)
}
