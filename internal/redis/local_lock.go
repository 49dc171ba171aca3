package redisclient

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

const localStripes = 64

type localPairLocker struct {
	stripes [localStripes]sync.Mutex
}

// NewLocalPairLocker serializes pairs within one process. It is used when no
// Redis address is configured.
func NewLocalPairLocker() Locker {
	return &localPairLocker{}
}

func (l *localPairLocker) WithPairLock(ctx context.Context, practitionerID, clientID uuid.UUID, fn func(ctx context.Context) error) error {
	h := fnv.New32a()
	_, _ = h.Write([]byte(PairKey(practitionerID, clientID)))
	mu := &l.stripes[h.Sum32()%localStripes]

	mu.Lock()
	defer mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
