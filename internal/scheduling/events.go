package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
)

// EventType names a domain event. The value doubles as the AMQP message type.
type EventType string

const (
	EventBookingCreated     EventType = "booking.created"
	EventBookingCancelled   EventType = "booking.cancelled"
	EventStatusChanged      EventType = "booking.status_changed"
	EventBookingRescheduled EventType = "booking.rescheduled"
	EventBookingReminder    EventType = "booking.reminder"
)

// Event is emitted after a booking change commits. It carries the booking
// as stored so consumers never need to query the database.
type Event struct {
	ID             string              `json:"id"`
	Type           EventType           `json:"type"`
	OccurredAt     time.Time           `json:"occurred_at"`
	Booking        model.Booking       `json:"booking"`
	PreviousStatus model.BookingStatus `json:"previous_status,omitempty"`
	PreviousStart  *time.Time          `json:"previous_start,omitempty"`
	Actor          ActorRole           `json:"actor,omitempty"`
}

// NewEvent stamps a fresh id and time on an event for b.
func NewEvent(t EventType, b model.Booking, now time.Time) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: now.UTC(), Booking: b}
}

// EventPublisher delivers events to whatever dispatches notifications.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to EventPublisher.
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, Event) error { return nil }
