package scheduling

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
)

const (
	maxReasonLength  = 500
	maxCommentLength = 1000
)

// CreateBookingRequest is the input of CreateBooking. CustomerID is
// optional; without it the store resolves or creates a guest customer from
// Customer.
type CreateBookingRequest struct {
	ServiceID     string
	StartTime     time.Time
	Customer      model.CustomerInfo
	CustomerID    string
	DiscountCents int64
	Source        model.BookingSource
}

// ListAvailableSlots returns the free start times of a service on a
// calendar date (YYYY-MM-DD, business time zone). The result is a snapshot;
// CreateBooking re-checks at commit time.
func (s *Scheduler) ListAvailableSlots(ctx context.Context, serviceID, date string) ([]Slot, error) {
	started := time.Now()
	slots, err := s.listAvailableSlots(ctx, serviceID, date)
	s.metrics.ObserveSlotQuery(outcome(err), time.Since(started).Seconds())
	return slots, err
}

func (s *Scheduler) listAvailableSlots(ctx context.Context, serviceID, date string) ([]Slot, error) {
	day, err := time.ParseInLocation(model.DateLayout, strings.TrimSpace(date), s.loc)
	if err != nil {
		return nil, invalid("date", "must be YYYY-MM-DD")
	}
	svc, err := s.store.FindServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return []Slot{}, nil
	}
	key := day.Format(model.DateLayout)
	blackouts, err := s.store.FindBlackouts(ctx, svc.ID, key, key)
	if err != nil {
		return nil, err
	}
	if blackedOut(day, blackouts) {
		return []Slot{}, nil
	}
	bookings, err := s.store.FindBookingsInRange(ctx, svc.ID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	slots := GenerateSlots(*svc, day, bookings, blackouts, s.now(), s.policy.SlotStep)
	if slots == nil {
		slots = []Slot{}
	}
	return slots, nil
}

// checkBookable applies the same rules the slot generator uses to a single
// requested interval: advance window, blackout dates and the weekly template.
func (s *Scheduler) checkBookable(ctx context.Context, svc model.Service, start, end, now time.Time) error {
	if !withinAdvanceWindow(svc, start, now) {
		return invalid("start_time", "must be at least %d hours and at most %d days ahead", svc.MinAdvanceHours, svc.MaxAdvanceDays)
	}
	day := startOfDay(start)
	key := day.Format(model.DateLayout)
	blackouts, err := s.store.FindBlackouts(ctx, svc.ID, key, key)
	if err != nil {
		return err
	}
	if blackedOut(day, blackouts) {
		return invalid("start_time", "falls on a date the service is closed")
	}
	if !fitsTemplate(svc, start, end) {
		return invalid("start_time", "is outside the service's opening hours")
	}
	return nil
}

func (s *Scheduler) activeService(ctx context.Context, id string) (*model.Service, error) {
	svc, err := s.store.FindServiceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, &NotFoundError{Kind: "service", ID: id}
	}
	if err := checkDuration(*svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func normalizeCustomer(c model.CustomerInfo) model.CustomerInfo {
	return model.CustomerInfo{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.ToLower(strings.TrimSpace(c.Email)),
		Phone: strings.TrimSpace(c.Phone),
		Notes: strings.TrimSpace(c.Notes),
	}
}

func validSource(src model.BookingSource) bool {
	switch src {
	case model.SourceWebsite, model.SourcePhone, model.SourceWalkIn, model.SourceAdmin:
		return true
	}
	return false
}

// CreateBooking allocates a new interval for a customer. The booking starts
// pending, or confirmed when the policy auto-confirms.
func (s *Scheduler) CreateBooking(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	b, err := s.createBooking(ctx, req)
	s.observe("create_booking", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("booking created",
		"booking_id", b.ID,
		"service_id", b.ServiceID,
		"start_time", b.StartTime,
		"status", b.Status,
	)
	s.publish(ctx, NewEvent(EventBookingCreated, *b, s.now()))
	return b, nil
}

func (s *Scheduler) createBooking(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	customer := normalizeCustomer(req.Customer)
	if err := validateStruct(s.validate, customer); err != nil {
		return nil, err
	}
	if req.StartTime.IsZero() {
		return nil, invalid("start_time", "is required")
	}
	if req.Source == "" {
		req.Source = model.SourceWebsite
	}
	if !validSource(req.Source) {
		return nil, invalid("source", "must be one of: website, phone, walk-in, admin")
	}
	svc, err := s.activeService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	start := req.StartTime.In(s.loc)
	end := start.Add(TotalDuration(*svc))
	if err := s.checkBookable(ctx, *svc, start, end, now); err != nil {
		return nil, err
	}
	pricing, err := ResolvePricing(*svc, req.DiscountCents)
	if err != nil {
		return nil, err
	}

	status := model.StatusPending
	if s.policy.AutoConfirm {
		status = model.StatusConfirmed
	}
	b := &model.Booking{
		ID:            uuid.NewString(),
		ServiceID:     svc.ID,
		ServiceName:   svc.Name,
		CustomerID:    req.CustomerID,
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
		Status:        status,
		Pricing:       pricing,
		Customer:      customer,
		Source:        req.Source,
		PaymentStatus: model.PaymentPending,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
	if err := s.store.InsertBookingIfNoConflict(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBookingSchedule moves a pending or confirmed booking to a new start
// time and/or service. The end time is recomputed from the target service;
// the pricing snapshot is kept.
func (s *Scheduler) UpdateBookingSchedule(ctx context.Context, bookingID string, newStart *time.Time, newServiceID *string) (*model.Booking, error) {
	var previous time.Time
	b, err := s.reschedule(ctx, bookingID, newStart, newServiceID, &previous)
	s.observe("reschedule_booking", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("booking rescheduled",
		"booking_id", b.ID,
		"service_id", b.ServiceID,
		"previous_start", previous,
		"start_time", b.StartTime,
	)
	ev := NewEvent(EventBookingRescheduled, *b, s.now())
	ev.PreviousStart = &previous
	s.publish(ctx, ev)
	return b, nil
}

func (s *Scheduler) reschedule(ctx context.Context, bookingID string, newStart *time.Time, newServiceID *string, previous *time.Time) (*model.Booking, error) {
	if newStart == nil && (newServiceID == nil || *newServiceID == "") {
		return nil, invalid("start_time", "or service_id is required")
	}
	current, err := s.store.FindBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	serviceID := current.ServiceID
	if newServiceID != nil && *newServiceID != "" {
		serviceID = *newServiceID
	}
	svc, err := s.activeService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	start := current.StartTime
	if newStart != nil {
		if newStart.IsZero() {
			return nil, invalid("start_time", "is required")
		}
		start = *newStart
	}

	now := s.now()
	start = start.In(s.loc)
	end := start.Add(TotalDuration(*svc))
	if err := s.checkBookable(ctx, *svc, start, end, now); err != nil {
		return nil, err
	}

	return s.store.UpdateBooking(ctx, bookingID, func(b *model.Booking) error {
		if b.Status != model.StatusPending && b.Status != model.StatusConfirmed {
			return ErrInvalidState
		}
		*previous = b.StartTime
		if !b.StartTime.Equal(start) {
			b.ReminderSentAt = nil
		}
		b.ServiceID = svc.ID
		b.ServiceName = svc.Name
		b.StartTime = start.UTC()
		b.EndTime = end.UTC()
		b.UpdatedAt = now.UTC()
		return nil
	})
}

// ChangeStatus applies a lifecycle transition. Only admins and the system
// may change status directly; a change to cancelled goes through the
// cancellation rules.
func (s *Scheduler) ChangeStatus(ctx context.Context, bookingID string, to model.BookingStatus, actor Actor) (*model.Booking, error) {
	if !to.Valid() {
		err := invalid("status", "must be one of: pending, confirmed, in-progress, completed, cancelled, no-show")
		s.observe("change_status", err)
		return nil, err
	}
	if actor.Role != ActorAdmin && actor.Role != ActorSystem {
		s.observe("change_status", ErrForbidden)
		return nil, ErrForbidden
	}
	if to == model.StatusCancelled {
		b, err := s.CancelBooking(ctx, bookingID, "", actor)
		s.observe("change_status", err)
		return b, err
	}

	now := s.now()
	var from model.BookingStatus
	b, err := s.store.UpdateBooking(ctx, bookingID, func(b *model.Booking) error {
		from = b.Status
		if err := applyStatus(b, to, now.UTC()); err != nil {
			return err
		}
		b.UpdatedAt = now.UTC()
		return nil
	})
	s.observe("change_status", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("booking status changed", "booking_id", b.ID, "from", from, "to", b.Status, "actor", actor.Role)
	ev := NewEvent(EventStatusChanged, *b, now)
	ev.PreviousStatus = from
	ev.Actor = actor.Role
	s.publish(ctx, ev)
	return b, nil
}

func defaultCancelReason(actor Actor) string {
	if actor.isAdmin() {
		return "Cancelled by admin"
	}
	return "Cancelled by customer"
}

// CancelBooking cancels a booking subject to the cancellation policy.
func (s *Scheduler) CancelBooking(ctx context.Context, bookingID, reason string, actor Actor) (*model.Booking, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultCancelReason(actor)
	}
	if utf8.RuneCountInString(reason) > maxReasonLength {
		err := invalid("reason", "must be at most %d characters", maxReasonLength)
		s.observe("cancel_booking", err)
		return nil, err
	}
	if actor.Role == "" {
		actor.Role = ActorCustomer
	}

	now := s.now()
	var from model.BookingStatus
	b, err := s.store.UpdateBooking(ctx, bookingID, func(b *model.Booking) error {
		if err := checkCancellable(*b, actor, now, s.policy.CancellationNotice); err != nil {
			return err
		}
		from = b.Status
		cancelledAt := now.UTC()
		b.Status = model.StatusCancelled
		b.CancelledAt = &cancelledAt
		b.CancelledBy = string(actor.Role)
		b.CancellationReason = reason
		b.UpdatedAt = now.UTC()
		return nil
	})
	s.observe("cancel_booking", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("booking cancelled", "booking_id", b.ID, "from", from, "actor", actor.Role, "reason", reason)
	ev := NewEvent(EventBookingCancelled, *b, now)
	ev.PreviousStatus = from
	ev.Actor = actor.Role
	s.publish(ctx, ev)
	return b, nil
}

// SubmitFeedback records the customer's rating on a completed booking.
// Feedback can be submitted once.
func (s *Scheduler) SubmitFeedback(ctx context.Context, bookingID string, rating int, comment string) (*model.Booking, error) {
	b, err := s.submitFeedback(ctx, bookingID, rating, comment)
	s.observe("submit_feedback", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("feedback submitted", "booking_id", b.ID, "rating", rating)
	return b, nil
}

func (s *Scheduler) submitFeedback(ctx context.Context, bookingID string, rating int, comment string) (*model.Booking, error) {
	if rating < 1 || rating > 5 {
		return nil, invalid("rating", "must be between 1 and 5")
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return nil, invalid("comment", "must be at most %d characters", maxCommentLength)
	}
	now := s.now().UTC()
	return s.store.UpdateBooking(ctx, bookingID, func(b *model.Booking) error {
		if b.Status != model.StatusCompleted {
			return ErrInvalidState
		}
		if b.Feedback != nil {
			return ErrFeedbackAlreadySubmitted
		}
		b.Feedback = &model.Feedback{Rating: rating, Comment: comment, SubmittedAt: now}
		b.UpdatedAt = now
		return nil
	})
}

// GetBooking loads one booking.
func (s *Scheduler) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	return s.store.FindBookingByID(ctx, id)
}

// ListBookings returns bookings matching f, ordered by start time.
func (s *Scheduler) ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid("status", "is not a known booking status")
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 500
	}
	return s.store.ListBookings(ctx, f)
}
