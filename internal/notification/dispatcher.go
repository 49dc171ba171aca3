package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/practice-booking/internal/fanout"
)

const persistTimeout = 5 * time.Second

// Publisher pushes an event to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev fanout.Event)
}

type job struct {
	n  *Notification
	ev *fanout.Event
}

// Dispatcher persists notifications and publishes fanout events off the
// request path. Callers enqueue and return immediately; a full queue drops
// the job.
type Dispatcher struct {
	store   Store
	pub     Publisher
	queue   chan job
	workers int
	log     zerolog.Logger
}

func NewDispatcher(store Store, pub Publisher, queueSize, workers int, log zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		store:   store,
		pub:     pub,
		queue:   make(chan job, queueSize),
		workers: workers,
		log:     log.With().Str("component", "notify").Logger(),
	}
}

// Notify enqueues a notification and/or event. Either may be nil. It reports
// false when the job was dropped.
func (d *Dispatcher) Notify(n *Notification, ev *fanout.Event) bool {
	if n == nil && ev == nil {
		return true
	}
	select {
	case d.queue <- job{n: n, ev: ev}:
		return true
	default:
		kind := ""
		if n != nil {
			kind = n.Kind
		}
		d.log.Warn().Str("kind", kind).Msg("notification queue full, dropping")
		return false
	}
}

// Run processes jobs until ctx is cancelled, then drains what is already
// queued.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case j := <-d.queue:
					d.handle(j)
				}
			}
		})
	}
	err := g.Wait()
	d.drain()
	return err
}

func (d *Dispatcher) drain() {
	for {
		select {
		case j := <-d.queue:
			d.handle(j)
		default:
			return
		}
	}
}

func (d *Dispatcher) handle(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if j.n != nil {
		if err := d.store.Create(ctx, j.n); err != nil {
			d.log.Error().Err(err).
				Str("kind", j.n.Kind).
				Str("audience", string(j.n.AudienceType)).
				Msg("persist notification")
		}
	}
	if j.ev != nil && d.pub != nil {
		d.pub.Publish(ctx, *j.ev)
	}
}
