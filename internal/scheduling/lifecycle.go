package scheduling

import (
	"time"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
)

// DefaultCancellationNotice is how far ahead a non-admin must cancel.
const DefaultCancellationNotice = 24 * time.Hour

var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.StatusPending:    {model.StatusConfirmed, model.StatusCancelled, model.StatusNoShow},
	model.StatusConfirmed:  {model.StatusInProgress, model.StatusCancelled, model.StatusNoShow},
	model.StatusInProgress: {model.StatusCompleted, model.StatusCancelled, model.StatusNoShow},
}

// CanTransition reports whether the state machine allows from -> to.
// Terminal states have no outgoing transitions.
func CanTransition(from, to model.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ActorRole identifies who is asking for a lifecycle change.
type ActorRole string

const (
	ActorAdmin    ActorRole = "admin"
	ActorCustomer ActorRole = "customer"
	ActorSystem   ActorRole = "system"
)

// Actor is the caller of a lifecycle operation.
type Actor struct {
	Role ActorRole
	ID   string
}

func (a Actor) isAdmin() bool { return a.Role == ActorAdmin }

// checkCancellable applies the cancellation policy. Admins may cancel any
// non-terminal booking; everyone else only confirmed bookings that start at
// least notice from now.
func checkCancellable(b model.Booking, actor Actor, now time.Time, notice time.Duration) error {
	if b.Status.Terminal() {
		return ErrNotCancellable
	}
	if actor.isAdmin() {
		return nil
	}
	if b.Status != model.StatusConfirmed {
		return ErrNotCancellable
	}
	if b.StartTime.Sub(now) < notice {
		return ErrNotCancellable
	}
	return nil
}

// applyStatus moves b to status and stamps the matching timestamp.
func applyStatus(b *model.Booking, to model.BookingStatus, now time.Time) error {
	if !CanTransition(b.Status, to) {
		return &TransitionError{From: b.Status, To: to}
	}
	b.Status = to
	if to == model.StatusCompleted {
		t := now
		b.CompletedAt = &t
	}
	return nil
}
