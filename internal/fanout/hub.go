// Package fanout broadcasts appointment and license events to every
// connected push subscriber. Delivery is best-effort: a subscriber whose
// buffer is full misses the frame, and subscribers that keep missing frames
// are removed by the periodic sweep.
package fanout

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	EventAppointmentBooked = "appointment_booked"
	EventAppointmentStatus = "appointment_status"
	EventLicensePending    = "license_request_pending"
	EventPing              = "ping"
)

const (
	defaultBuffer    = 64
	defaultMaxMissed = 32
)

// Event is one frame on the push channel.
type Event struct {
	Name   string    `json:"event"`
	Data   any       `json:"data,omitempty"`
	SentAt time.Time `json:"sentAt"`
}

// NewEvent builds an unstamped event; Publish sets SentAt.
func NewEvent(name string, data any) Event {
	return Event{Name: name, Data: data}
}

// Relay forwards encoded frames to other instances. Frames published through
// a relay come back to this hub via Deliver.
type Relay interface {
	Publish(ctx context.Context, frame []byte) error
}

// Subscriber is one live push connection.
type Subscriber struct {
	ID     string
	UserID string
	Role   string
	Send   chan []byte

	missed atomic.Int32
	closed bool // guarded by Hub.mu
}

// Hub is the process-wide subscriber registry. It is created at startup and
// all access goes through its mutex.
type Hub struct {
	mu        sync.RWMutex
	subs      map[*Subscriber]struct{}
	relay     Relay
	log       zerolog.Logger
	maxMissed int32
	now       func() time.Time
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs:      make(map[*Subscriber]struct{}),
		log:       log.With().Str("component", "fanout").Logger(),
		maxMissed: defaultMaxMissed,
		now:       time.Now,
	}
}

// SetRelay routes Publish through r. Call before serving traffic.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = r
}

func NewSubscriber(userID, role string) *Subscriber {
	return &Subscriber{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		Send:   make(chan []byte, defaultBuffer),
	}
}

func (h *Hub) Register(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[s] = struct{}{}
	h.log.Debug().Str("subscriber", s.ID).Str("user_id", s.UserID).Str("role", s.Role).
		Int("subscribers", len(h.subs)).Msg("subscriber connected")
}

// Unregister removes s and closes its Send channel. Calling it twice is safe.
func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

func (h *Hub) removeLocked(s *Subscriber) {
	if _, ok := h.subs[s]; !ok || s.closed {
		return
	}
	delete(h.subs, s)
	s.closed = true
	close(s.Send)
	h.log.Debug().Str("subscriber", s.ID).Str("user_id", s.UserID).Str("role", s.Role).
		Int32("missed", s.missed.Load()).Msg("subscriber removed")
}

// Publish stamps and encodes ev, then hands it to the relay or, when there is
// no relay or the relay fails, straight to local subscribers. It never
// blocks on a subscriber and never reports failure to the caller.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	if ev.SentAt.IsZero() {
		ev.SentAt = h.now().UTC()
	}
	frame, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("event", ev.Name).Msg("marshal event")
		return
	}

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()

	if relay != nil {
		err := relay.Publish(ctx, frame)
		if err == nil {
			return
		}
		h.log.Warn().Err(err).Str("event", ev.Name).Msg("relay publish failed, delivering locally")
	}
	h.Deliver(frame)
}

// Deliver pushes an encoded frame to every local subscriber without blocking.
func (h *Hub) Deliver(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		select {
		case s.Send <- frame:
			s.missed.Store(0)
		default:
			s.missed.Add(1)
		}
	}
}

// Sweep drops subscribers that have missed too many consecutive frames and
// returns how many were removed.
func (h *Hub) Sweep() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for s := range h.subs {
		if s.missed.Load() >= h.maxMissed {
			h.removeLocked(s)
			removed++
		}
	}
	return removed
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Run sends heartbeat frames and sweeps stalled subscribers until ctx is
// cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context, heartbeat, sweep time.Duration) error {
	hb := time.NewTicker(heartbeat)
	defer hb.Stop()
	sw := time.NewTicker(sweep)
	defer sw.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case <-hb.C:
			h.heartbeat()
		case <-sw.C:
			if n := h.Sweep(); n > 0 {
				h.log.Info().Int("removed", n).Int("remaining", h.Count()).Msg("swept stalled subscribers")
			}
		}
	}
}

func (h *Hub) heartbeat() {
	frame, err := json.Marshal(Event{Name: EventPing, SentAt: h.now().UTC()})
	if err != nil {
		return
	}
	h.Deliver(frame)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		h.removeLocked(s)
	}
}
