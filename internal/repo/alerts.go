package repo

import (
	"context"
	"time"

	"github.com/hamed0406/netmanager/internal/domain"
)

// AlertRecord holds the last tier we saw for a monitored link and the last
// time a notification went out (used for cooldown).
type AlertRecord struct {
	Link       string
	LastTier   domain.Tier
	LastSentAt *time.Time
}

type AlertStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, link string) (*AlertRecord, error)
	// Set upserts the record. If sentAt.IsZero() the previous send time is kept.
	Set(ctx context.Context, link string, tier domain.Tier, sentAt time.Time) error
}
