// Package reminder runs the periodic sweep that emits booking reminders.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/iliyamo/salon-appointment-scheduler/internal/metrics"
	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
	"github.com/iliyamo/salon-appointment-scheduler/internal/scheduling"
	"github.com/iliyamo/salon-appointment-scheduler/pkg/logging"
)

// Store is what the sweep needs from persistence.
type Store interface {
	FindRemindersDue(ctx context.Context, from, to time.Time, minNotice time.Duration, limit int) ([]model.Booking, error)
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
}

// Service finds upcoming bookings that have not been reminded, publishes a
// reminder event for each and marks them.
type Service struct {
	store     Store
	events    scheduling.EventPublisher
	logger    *logging.Logger
	metrics   *metrics.SchedulingMetrics
	lead      time.Duration
	minNotice time.Duration
	limit     int
	now       func() time.Time
}

func NewService(store Store, events scheduling.EventPublisher, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:     store,
		events:    events,
		logger:    logger,
		lead:      24 * time.Hour,
		minNotice: 26 * time.Hour,
		limit:     200,
		now:       time.Now,
	}
}

func (s *Service) WithMetrics(m *metrics.SchedulingMetrics) *Service {
	s.metrics = m
	return s
}

// WithWindow sets how far ahead bookings are reminded and how long before
// its start a booking must have been made to get a reminder.
func (s *Service) WithWindow(lead, minNotice time.Duration) *Service {
	if lead > 0 {
		s.lead = lead
	}
	if minNotice >= 0 {
		s.minNotice = minNotice
	}
	return s
}

func (s *Service) WithBatchLimit(n int) *Service {
	if n > 0 {
		s.limit = n
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Sweep runs one pass and returns how many reminders were emitted. A
// booking is marked only after its event was published, so a failed
// publish is retried on the next pass.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.store.FindRemindersDue(ctx, now, now.Add(s.lead), s.minNotice, s.limit)
	if err != nil {
		return 0, fmt.Errorf("find reminders: %w", err)
	}
	sent := 0
	for _, b := range due {
		if err := s.events.Publish(ctx, scheduling.NewEvent(scheduling.EventBookingReminder, b, now)); err != nil {
			s.logger.Warn("reminder publish failed", "booking_id", b.ID, "error", err)
			continue
		}
		if err := s.store.MarkReminderSent(ctx, b.ID, now.UTC()); err != nil {
			s.logger.Error("mark reminder sent failed", "booking_id", b.ID, "error", err)
			continue
		}
		sent++
	}
	s.metrics.ObserveReminders(sent)
	if sent > 0 || len(due) > 0 {
		s.logger.Info("reminder sweep finished", "due", len(due), "sent", sent)
	}
	return sent, nil
}

// Start schedules Sweep on the cron spec and starts the scheduler. Stop the
// returned cron to end it; ctx bounds each pass.
func (s *Service) Start(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("reminder sweep failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("reminder schedule %q: %w", spec, err)
	}
	c.Start()
	s.logger.Info("reminder scheduler started", "schedule", spec)
	return c, nil
}
