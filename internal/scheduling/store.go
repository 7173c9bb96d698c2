package scheduling

import (
	"context"
	"time"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
)

// ServiceStore persists the service catalog.
type ServiceStore interface {
	// FindServiceByID returns a NotFoundError when id is unknown.
	FindServiceByID(ctx context.Context, id string) (*model.Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]model.Service, error)
	CreateService(ctx context.Context, s *model.Service) error
	UpdateService(ctx context.Context, s *model.Service) error
}

// BlackoutStore persists blackout periods.
type BlackoutStore interface {
	// FindBlackouts returns blackouts of the service that intersect the
	// inclusive date range [fromDate, toDate] (YYYY-MM-DD).
	FindBlackouts(ctx context.Context, serviceID, fromDate, toDate string) ([]model.Blackout, error)
	CreateBlackout(ctx context.Context, b *model.Blackout) error
	DeleteBlackout(ctx context.Context, id string) error
}

// BookingMutator changes a booking in place inside UpdateBooking. Returning
// an error aborts the update without writing anything.
type BookingMutator func(b *model.Booking) error

// BookingStore persists bookings. Implementations own the atomicity of the
// conflict re-check.
type BookingStore interface {
	FindBookingByID(ctx context.Context, id string) (*model.Booking, error)

	// FindBookingsInRange returns live bookings of the service whose
	// interval overlaps [from, to).
	FindBookingsInRange(ctx context.Context, serviceID string, from, to time.Time) ([]model.Booking, error)

	ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)

	// InsertBookingIfNoConflict checks for overlapping live bookings of the
	// same service and inserts b in one atomic unit, returning
	// ErrSlotUnavailable on overlap. When b.CustomerID is empty the guest
	// customer is resolved by email, then phone, or created, in the same
	// unit.
	InsertBookingIfNoConflict(ctx context.Context, b *model.Booking) error

	// UpdateBooking loads the booking under a row lock, applies mutate and
	// writes the result. If mutate changed the service or interval of a live
	// booking the conflict check is re-run excluding the booking itself.
	UpdateBooking(ctx context.Context, id string, mutate BookingMutator) (*model.Booking, error)
}

// Store is everything the Scheduler needs from persistence.
type Store interface {
	ServiceStore
	BlackoutStore
	BookingStore
}
