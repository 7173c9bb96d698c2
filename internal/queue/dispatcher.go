package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/salon-appointment-scheduler/internal/metrics"
	"github.com/iliyamo/salon-appointment-scheduler/internal/notification"
	"github.com/iliyamo/salon-appointment-scheduler/internal/scheduling"
	"github.com/iliyamo/salon-appointment-scheduler/pkg/logging"
)

type renderer interface {
	Render(ev scheduling.Event) ([]notification.Message, error)
}

// ErrUndeliverable marks events no redelivery can fix: malformed bodies,
// events without an id and events the renderer rejects.
var ErrUndeliverable = errors.New("undeliverable event")

// Dispatcher turns booking events into notifications. Each message is
// retried with exponential backoff; an event is claimed once so broker
// redeliveries do not notify twice.
type Dispatcher struct {
	renderer    renderer
	notifier    notification.Notifier
	dedupe      Deduper
	logger      *logging.Logger
	metrics     *metrics.SchedulingMetrics
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(r renderer, n notification.Notifier, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		renderer:    r,
		notifier:    n,
		dedupe:      NewMemoryDeduper(0),
		logger:      logger,
		maxAttempts: 3,
		baseDelay:   1500 * time.Millisecond,
		sleep:       sleepCtx,
	}
}

func (d *Dispatcher) WithDeduper(dd Deduper) *Dispatcher {
	if dd != nil {
		d.dedupe = dd
	}
	return d
}

func (d *Dispatcher) WithMetrics(m *metrics.SchedulingMetrics) *Dispatcher {
	d.metrics = m
	return d
}

func (d *Dispatcher) WithMaxAttempts(n int) *Dispatcher {
	if n > 0 {
		d.maxAttempts = n
	}
	return d
}

func (d *Dispatcher) WithBaseDelay(delay time.Duration) *Dispatcher {
	if delay > 0 {
		d.baseDelay = delay
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// nextDelay is the wait before retry number attempt+1.
func (d *Dispatcher) nextDelay(attempt int) time.Duration {
	return d.baseDelay * time.Duration(1<<attempt)
}

// HandleMessage decodes a broker message body and dispatches it.
func (d *Dispatcher) HandleMessage(ctx context.Context, body []byte) error {
	var ev scheduling.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		d.metrics.ObserveDispatch("unknown", "malformed")
		return fmt.Errorf("%w: unmarshal: %v", ErrUndeliverable, err)
	}
	return d.Dispatch(ctx, ev)
}

// Dispatch notifies every audience of ev. A duplicate event is a no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, ev scheduling.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("%w: event without id", ErrUndeliverable)
	}
	// Rendered before the claim so a rejected event never holds one.
	msgs, err := d.renderer.Render(ev)
	if err != nil {
		d.metrics.ObserveDispatch(string(ev.Type), "failed")
		return fmt.Errorf("%w: render %s: %v", ErrUndeliverable, ev.ID, err)
	}

	claimed, err := d.dedupe.Claim(ctx, ev.ID)
	if err != nil {
		// Without the dedupe store delivery degrades to at-least-once.
		d.logger.Warn("dedupe claim failed", "event_id", ev.ID, "error", err)
		claimed = true
	}
	if !claimed {
		d.logger.Info("duplicate event skipped", "event_id", ev.ID, "event_type", ev.Type)
		d.metrics.ObserveDispatch(string(ev.Type), "duplicate")
		return nil
	}

	for _, m := range msgs {
		if err := d.deliver(ctx, m); err != nil {
			_ = d.dedupe.Release(context.WithoutCancel(ctx), ev.ID)
			d.metrics.ObserveDispatch(string(ev.Type), "failed")
			d.logger.Error("notification failed",
				"event_id", ev.ID,
				"booking_id", ev.Booking.ID,
				"audience", m.Audience,
				"attempts", d.maxAttempts,
				"error", err,
			)
			return err
		}
	}
	d.metrics.ObserveDispatch(string(ev.Type), "delivered")
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, m notification.Message) error {
	var err error
	for attempt := 0; attempt < d.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := d.nextDelay(attempt - 1)
			d.logger.Warn("retrying notification", "event_id", m.EventID, "attempt", attempt+1, "delay", delay, "error", err)
			if serr := d.sleep(ctx, delay); serr != nil {
				return serr
			}
		}
		if err = d.notifier.Notify(ctx, m); err == nil {
			return nil
		}
	}
	return err
}

// LocalPublisher dispatches events in process on a background goroutine.
// It is used when no broker is configured.
type LocalPublisher struct {
	d  *Dispatcher
	wg sync.WaitGroup
}

func NewLocalPublisher(d *Dispatcher) *LocalPublisher { return &LocalPublisher{d: d} }

func (p *LocalPublisher) Publish(ctx context.Context, ev scheduling.Event) error {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_ = p.d.Dispatch(context.WithoutCancel(ctx), ev)
	}()
	return nil
}

// Wait blocks until every in-flight dispatch has finished.
func (p *LocalPublisher) Wait() { p.wg.Wait() }
