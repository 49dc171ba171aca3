package notification

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNoIDs          = errors.New("at least one notification id is required")
	ErrNothingToApply = errors.New("read or hidden must be set")
)

// Store persists notifications.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	List(ctx context.Context, a Audience, includeHidden bool, limit int) ([]Notification, error)
	SetFlags(ctx context.Context, a Audience, ids []uuid.UUID, read, hidden *bool) (int64, error)
	MarkAllRead(ctx context.Context, a Audience) (int64, error)
}
