package notification

import (
	"context"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, a Audience, includeHidden bool, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	list, err := s.store.List(ctx, a, includeHidden, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Notification{}
	}
	return list, nil
}

// Update flips read and/or hidden on the caller's own notifications.
func (s *Service) Update(ctx context.Context, a Audience, ids []uuid.UUID, read, hidden *bool) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrNoIDs
	}
	if read == nil && hidden == nil {
		return 0, ErrNothingToApply
	}
	return s.store.SetFlags(ctx, a, ids, read, hidden)
}

// Hide is the DELETE operation: records are never removed, only hidden.
func (s *Service) Hide(ctx context.Context, a Audience, ids []uuid.UUID) (int64, error) {
	hidden := true
	return s.Update(ctx, a, ids, nil, &hidden)
}

func (s *Service) MarkAllRead(ctx context.Context, a Audience) (int64, error) {
	return s.store.MarkAllRead(ctx, a)
}
