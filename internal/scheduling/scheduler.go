package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/salon-appointment-scheduler/internal/metrics"
	"github.com/iliyamo/salon-appointment-scheduler/pkg/logging"
)

// Policy holds the tunable business rules.
type Policy struct {
	SlotStep               time.Duration
	CancellationNotice     time.Duration
	AutoConfirm            bool
	DefaultMinAdvanceHours int
	DefaultMaxAdvanceDays  int
}

// DefaultPolicy is a 15 minute grid, 24h cancellation notice, manual
// confirmation and a 2 hour to 30 day booking window.
func DefaultPolicy() Policy {
	return Policy{
		SlotStep:               DefaultSlotStep,
		CancellationNotice:     DefaultCancellationNotice,
		DefaultMinAdvanceHours: 2,
		DefaultMaxAdvanceDays:  30,
	}
}

// Scheduler runs the booking operations against a Store. It is safe for
// concurrent use; all coordination between requests happens in the store.
type Scheduler struct {
	store    Store
	events   EventPublisher
	logger   *logging.Logger
	metrics  *metrics.SchedulingMetrics
	validate *validator.Validate
	now      func() time.Time
	loc      *time.Location
	policy   Policy
}

func NewScheduler(store Store, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		store:    store,
		events:   discardPublisher{},
		logger:   logger,
		validate: newValidator(),
		now:      time.Now,
		loc:      time.UTC,
		policy:   DefaultPolicy(),
	}
}

func (s *Scheduler) WithPublisher(p EventPublisher) *Scheduler {
	if p != nil {
		s.events = p
	}
	return s
}

func (s *Scheduler) WithMetrics(m *metrics.SchedulingMetrics) *Scheduler {
	s.metrics = m
	return s
}

func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	if now != nil {
		s.now = now
	}
	return s
}

// WithLocation sets the business time zone used to read availability
// templates and calendar dates.
func (s *Scheduler) WithLocation(loc *time.Location) *Scheduler {
	if loc != nil {
		s.loc = loc
	}
	return s
}

func (s *Scheduler) WithPolicy(p Policy) *Scheduler {
	if p.SlotStep <= 0 {
		p.SlotStep = DefaultSlotStep
	}
	if p.CancellationNotice <= 0 {
		p.CancellationNotice = DefaultCancellationNotice
	}
	if p.DefaultMaxAdvanceDays <= 0 {
		p.DefaultMaxAdvanceDays = DefaultPolicy().DefaultMaxAdvanceDays
	}
	s.policy = p
	return s
}

// Location is the business time zone.
func (s *Scheduler) Location() *time.Location { return s.loc }

func (s *Scheduler) observe(op string, err error) {
	s.metrics.ObserveOperation(op, outcome(err))
}

func outcome(err error) string {
	var nf *NotFoundError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotUnavailable):
		return "conflict"
	case IsValidation(err):
		return "invalid"
	case errors.As(err, &nf):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrNotCancellable),
		errors.Is(err, ErrFeedbackAlreadySubmitted),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrForbidden):
		return "rejected"
	default:
		return "error"
	}
}

// publish hands ev to the dispatcher. The booking change has already
// committed, so a failure is logged and counted but not returned.
func (s *Scheduler) publish(ctx context.Context, ev Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish event failed", "event_type", ev.Type, "booking_id", ev.Booking.ID, "error", err)
		s.metrics.ObserveDispatch(string(ev.Type), "publish_failed")
		return
	}
	s.metrics.ObserveDispatch(string(ev.Type), "published")
}
