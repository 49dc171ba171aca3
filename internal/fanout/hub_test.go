package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func newTestHub() *Hub {
	return NewHub(zerolog.Nop())
}

func recv(t *testing.T, s *Subscriber) Event {
	t.Helper()
	select {
	case frame, ok := <-s.Send:
		if !ok {
			t.Fatal("subscriber channel closed")
		}
		var ev Event
		if err := json.Unmarshal(frame, &ev); err != nil {
			t.Fatalf("failed to unmarshal frame: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive frame")
	}
	return Event{}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := newTestHub()
	s := NewSubscriber("user-1", "client")

	hub.Register(s)
	if hub.Count() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Count())
	}

	hub.Unregister(s)
	hub.Unregister(s)
	if hub.Count() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.Count())
	}
	if _, ok := <-s.Send; ok {
		t.Fatal("expected Send to be closed")
	}
}

func TestHub_LogsSubscriberIdentity(t *testing.T) {
	var buf strings.Builder
	hub := NewHub(zerolog.New(&buf).Level(zerolog.DebugLevel))
	s := NewSubscriber("user-7", "practitioner")

	hub.Register(s)
	hub.Unregister(s)

	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		lines = append(lines, entry)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	for i, msg := range []string{"subscriber connected", "subscriber removed"} {
		entry := lines[i]
		if entry["message"] != msg || entry["user_id"] != "user-7" || entry["role"] != "practitioner" || entry["subscriber"] != s.ID {
			t.Errorf("line %d = %v", i, entry)
		}
	}
}

func TestHub_PublishReachesEverySubscriber(t *testing.T) {
	hub := newTestHub()
	a := NewSubscriber("a", "client")
	b := NewSubscriber("b", "practitioner")
	hub.Register(a)
	hub.Register(b)

	hub.Publish(context.Background(), Event{Name: EventAppointmentBooked, Data: map[string]string{"time": "09:00"}})

	for _, s := range []*Subscriber{a, b} {
		ev := recv(t, s)
		if ev.Name != EventAppointmentBooked {
			t.Errorf("subscriber %s got %q", s.UserID, ev.Name)
		}
		if ev.SentAt.IsZero() {
			t.Errorf("subscriber %s got unstamped event", s.UserID)
		}
	}
}

func TestHub_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	hub := newTestHub()
	slow := NewSubscriber("slow", "client")
	fast := NewSubscriber("fast", "client")
	hub.Register(slow)
	hub.Register(fast)

	// fill the slow subscriber's buffer without draining it
	for i := 0; i < cap(slow.Send); i++ {
		slow.Send <- []byte(`{}`)
	}

	done := make(chan struct{})
	go func() {
		hub.Publish(context.Background(), Event{Name: EventAppointmentStatus})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	if ev := recv(t, fast); ev.Name != EventAppointmentStatus {
		t.Errorf("fast subscriber got %q", ev.Name)
	}
	if slow.missed.Load() != 1 {
		t.Errorf("expected slow subscriber to miss 1 frame, got %d", slow.missed.Load())
	}
}

func TestHub_SweepRemovesStalledSubscribers(t *testing.T) {
	hub := newTestHub()
	hub.maxMissed = 2
	stalled := NewSubscriber("stalled", "client")
	healthy := NewSubscriber("healthy", "client")
	hub.Register(stalled)
	hub.Register(healthy)

	for i := 0; i < cap(stalled.Send); i++ {
		stalled.Send <- []byte(`{}`)
	}
	for i := 0; i < 2; i++ {
		hub.Deliver([]byte(`{"event":"ping"}`))
		<-healthy.Send
	}

	if removed := hub.Sweep(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if hub.Count() != 1 {
		t.Fatalf("expected 1 subscriber left, got %d", hub.Count())
	}
}

type fakeRelay struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (r *fakeRelay) Publish(_ context.Context, frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, frame)
	return nil
}

func TestHub_PublishGoesThroughRelay(t *testing.T) {
	hub := newTestHub()
	relay := &fakeRelay{}
	hub.SetRelay(relay)
	s := NewSubscriber("u", "client")
	hub.Register(s)

	hub.Publish(context.Background(), Event{Name: EventLicensePending})

	if len(relay.frames) != 1 {
		t.Fatalf("expected relay to get 1 frame, got %d", len(relay.frames))
	}
	select {
	case <-s.Send:
		t.Fatal("frame should arrive via the relay subscription, not locally")
	default:
	}

	hub.Deliver(relay.frames[0])
	if ev := recv(t, s); ev.Name != EventLicensePending {
		t.Errorf("got %q", ev.Name)
	}
}

func TestHub_RelayFailureFallsBackToLocal(t *testing.T) {
	hub := newTestHub()
	hub.SetRelay(&fakeRelay{err: errors.New("redis down")})
	s := NewSubscriber("u", "client")
	hub.Register(s)

	hub.Publish(context.Background(), Event{Name: EventAppointmentStatus})

	if ev := recv(t, s); ev.Name != EventAppointmentStatus {
		t.Errorf("got %q", ev.Name)
	}
}

func TestHub_RunSendsHeartbeatAndClosesOnShutdown(t *testing.T) {
	hub := newTestHub()
	s := NewSubscriber("u", "client")
	hub.Register(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx, 10*time.Millisecond, time.Hour)
		close(done)
	}()

	if ev := recv(t, s); ev.Name != EventPing {
		t.Fatalf("expected ping, got %q", ev.Name)
	}

	cancel()
	<-done
	if hub.Count() != 0 {
		t.Fatalf("expected hub to be empty after shutdown, got %d", hub.Count())
	}
}

func TestServeWS_StreamsFrames(t *testing.T) {
	hub := newTestHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.ServeWS(w, r, "client-1", "client"); err != nil {
			t.Errorf("ServeWS: %v", err)
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Count() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Count())
	}

	hub.Publish(context.Background(), Event{Name: EventAppointmentBooked})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Name != EventAppointmentBooked {
		t.Errorf("got %q", ev.Name)
	}

	conn.Close()
	deadline = time.Now().Add(time.Second)
	for hub.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Count() != 0 {
		t.Fatalf("expected subscriber removed on disconnect, got %d", hub.Count())
	}
}
