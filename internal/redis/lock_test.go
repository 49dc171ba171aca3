package redisclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPairKey_StablePerPair(t *testing.T) {
	p := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	c := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	got := PairKey(p, c)
	want := "lock:pair:11111111-1111-1111-1111-111111111111:22222222-2222-2222-2222-222222222222"
	if got != want {
		t.Fatalf("PairKey = %q, want %q", got, want)
	}
	if PairKey(c, p) == got {
		t.Error("pair key must depend on argument order")
	}
}

func TestLocalPairLocker_Serializes(t *testing.T) {
	l := NewLocalPairLocker()
	p, c := uuid.New(), uuid.New()

	var mu sync.Mutex
	inside, maxInside := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.WithPairLock(context.Background(), p, c, func(ctx context.Context) error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("expected one holder at a time, saw %d", maxInside)
	}
}

func TestLocalPairLocker_ReturnsFnError(t *testing.T) {
	l := NewLocalPairLocker()
	want := errors.New("boom")
	err := l.WithPairLock(context.Background(), uuid.New(), uuid.New(), func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("expected fn error, got %v", err)
	}
}
