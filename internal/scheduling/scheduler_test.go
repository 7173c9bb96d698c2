package scheduling_test

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/salon-appointment-scheduler/internal/metrics"
	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
	"github.com/iliyamo/salon-appointment-scheduler/internal/repository/memstore"
	"github.com/iliyamo/salon-appointment-scheduler/internal/scheduling"
	"github.com/iliyamo/salon-appointment-scheduler/pkg/logging"
)

var (
	// Sunday noon; the next day is a Monday.
	sundayNoon = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	monday     = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	tuesday    = monday.AddDate(0, 0, 1)

	admin    = scheduling.Actor{Role: scheduling.ActorAdmin}
	customer = scheduling.Actor{Role: scheduling.ActorCustomer}
)

type recorder struct {
	mu     sync.Mutex
	events []scheduling.Event
}

func (r *recorder) Publish(_ context.Context, ev scheduling.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []scheduling.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]scheduling.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	ctx    context.Context
	now    time.Time
	store  *memstore.Store
	events *recorder
	sched  *scheduling.Scheduler
	svc    *model.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:    context.Background(),
		now:    sundayNoon,
		store:  memstore.New(),
		events: &recorder{},
	}
	f.sched = scheduling.NewScheduler(f.store, logging.NewWithWriter(io.Discard, "error")).
		WithClock(func() time.Time { return f.now }).
		WithPublisher(f.events)
	f.svc = f.createService(t, "Signature Facial", 60)
	return f
}

func (f *fixture) createService(t *testing.T, name string, minutes int) *model.Service {
	t.Helper()
	svc := f.sched.NewServiceDefaults()
	svc.Name = name
	svc.Category = model.CategorySkincare
	svc.DurationMinutes = minutes
	svc.PriceCents = 8500
	created, err := f.sched.CreateService(f.ctx, svc)
	require.NoError(t, err)
	return created
}

func guest() model.CustomerInfo {
	return model.CustomerInfo{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+1 (555) 010-2000"}
}

func clock(day time.Time, hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func (f *fixture) book(t *testing.T, start time.Time) *model.Booking {
	t.Helper()
	b, err := f.sched.CreateBooking(f.ctx, scheduling.CreateBookingRequest{
		ServiceID: f.svc.ID,
		StartTime: start,
		Customer:  guest(),
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) complete(t *testing.T, id string) {
	t.Helper()
	for _, st := range []model.BookingStatus{model.StatusConfirmed, model.StatusInProgress, model.StatusCompleted} {
		_, err := f.sched.ChangeStatus(f.ctx, id, st, admin)
		require.NoError(t, err)
	}
}

func slotStarts(slots []scheduling.Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Start.Format("15:04")
	}
	return out
}

func TestListAvailableSlotsOpenMonday(t *testing.T) {
	f := newFixture(t)
	slots, err := f.sched.ListAvailableSlots(f.ctx, f.svc.ID, "2026-03-02")
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, "09:00", slots[0].Start.Format("15:04"))
	assert.Equal(t, "15:40", slots[len(slots)-1].Start.Format("15:04"))
}

func TestListAvailableSlotsAfterBooking(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, clock(monday, 10, 0))
	assert.Equal(t, clock(monday, 11, 20), b.EndTime)

	slots, err := f.sched.ListAvailableSlots(f.ctx, f.svc.ID, "2026-03-02")
	require.NoError(t, err)
	got := slotStarts(slots)
	assert.NotContains(t, got, "09:50")
	assert.Contains(t, got, "11:20")
}

func TestListAvailableSlotsEdgeCases(t *testing.T) {
	f := newFixture(t)

	_, err := f.sched.ListAvailableSlots(f.ctx, f.svc.ID, "03/02/2026")
	assert.True(t, scheduling.IsValidation(err))

	_, err = f.sched.ListAvailableSlots(f.ctx, "missing", "2026-03-02")
	assert.ErrorIs(t, err, scheduling.ErrNotFound)

	slots, err := f.sched.ListAvailableSlots(f.ctx, f.svc.ID, "2026-03-01")
	require.NoError(t, err)
	assert.Empty(t, slots, "sunday is closed by default")

	_, err = f.sched.AddBlackout(f.ctx, model.Blackout{ServiceID: f.svc.ID, StartDate: "2026-03-02", EndDate: "2026-03-03", Reason: "training"})
	require.NoError(t, err)
	slots, err = f.sched.ListAvailableSlots(f.ctx, f.svc.ID, "2026-03-03")
	require.NoError(t, err)
	assert.Empty(t, slots)

	_, err = f.sched.SetServiceActive(f.ctx, f.svc.ID, false)
	require.NoError(t, err)
	slots, err = f.sched.ListAvailableSlots(f.ctx, f.svc.ID, "2026-03-04")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestListAvailableSlotsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.book(t, clock(monday, 11, 5))
	first, err := f.sched.ListAvailableSlots(f.ctx, f.svc.ID, "2026-03-02")
	require.NoError(t, err)
	second, err := f.sched.ListAvailableSlots(f.ctx, f.svc.ID, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEverySlotCanBeBooked(t *testing.T) {
	f := newFixture(t)
	f.book(t, clock(monday, 10, 0))
	f.book(t, clock(monday, 13, 35))

	slots, err := f.sched.ListAvailableSlots(f.ctx, f.svc.ID, "2026-03-02")
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	for _, s := range slots {
		b, err := f.sched.CreateBooking(f.ctx, scheduling.CreateBookingRequest{ServiceID: f.svc.ID, StartTime: s.Start, Customer: guest()})
		require.NoError(t, err, "slot %s", s.Start.Format("15:04"))
		_, err = f.sched.CancelBooking(f.ctx, b.ID, "", admin)
		require.NoError(t, err)
	}
}

func TestCreateBookingSnapshotsPricingAndTiming(t *testing.T) {
	f := newFixture(t)
	b, err := f.sched.CreateBooking(f.ctx, scheduling.CreateBookingRequest{
		ServiceID:     f.svc.ID,
		StartTime:     clock(monday, 9, 0),
		Customer:      model.CustomerInfo{Name: "  Ada Lovelace ", Email: "ADA@Example.com", Phone: "555-0100"},
		DiscountCents: 500,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, b.Status)
	assert.Equal(t, model.SourceWebsite, b.Source)
	assert.Equal(t, model.PaymentPending, b.PaymentStatus)
	assert.Equal(t, clock(monday, 10, 20), b.EndTime)
	assert.Equal(t, model.Pricing{BasePriceCents: 8500, DiscountCents: 500, FinalPriceCents: 8000}, b.Pricing)
	assert.Equal(t, "Ada Lovelace", b.Customer.Name)
	assert.Equal(t, "ada@example.com", b.Customer.Email)
	assert.NotEmpty(t, b.CustomerID)
	assert.Equal(t, "Signature Facial", b.ServiceName)
	assert.Equal(t, []scheduling.EventType{scheduling.EventBookingCreated}, f.events.types())
}

func TestCreateBookingResolvesGuestCustomer(t *testing.T) {
	f := newFixture(t)
	first := f.book(t, clock(monday, 9, 0))
	second := f.book(t, clock(monday, 13, 0))
	assert.Equal(t, first.CustomerID, second.CustomerID)
}

func TestCreateBookingAutoConfirm(t *testing.T) {
	f := newFixture(t)
	p := scheduling.DefaultPolicy()
	p.AutoConfirm = true
	f.sched.WithPolicy(p)
	b := f.book(t, clock(monday, 9, 0))
	assert.Equal(t, model.StatusConfirmed, b.Status)
}

func TestCreateBookingRejections(t *testing.T) {
	f := newFixture(t)
	_, err := f.sched.AddBlackout(f.ctx, model.Blackout{ServiceID: f.svc.ID, StartDate: "2026-03-05", EndDate: "2026-03-05"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		mutate    func(r *scheduling.CreateBookingRequest)
		wantField string
		wantErr   error
	}{
		{"bad email", func(r *scheduling.CreateBookingRequest) { r.Customer.Email = "not-an-email" }, "email", nil},
		{"short name", func(r *scheduling.CreateBookingRequest) { r.Customer.Name = "A" }, "name", nil},
		{"bad phone", func(r *scheduling.CreateBookingRequest) { r.Customer.Phone = "call me" }, "phone", nil},
		{"missing start", func(r *scheduling.CreateBookingRequest) { r.StartTime = time.Time{} }, "start_time", nil},
		{"in the past", func(r *scheduling.CreateBookingRequest) { r.StartTime = sundayNoon.Add(-time.Hour) }, "start_time", nil},
		{"too soon", func(r *scheduling.CreateBookingRequest) { r.StartTime = sundayNoon.Add(time.Hour) }, "start_time", nil},
		{"closed sunday", func(r *scheduling.CreateBookingRequest) { r.StartTime = clock(monday.AddDate(0, 0, 6), 10, 0) }, "start_time", nil},
		{"runs past closing", func(r *scheduling.CreateBookingRequest) { r.StartTime = clock(monday, 16, 0) }, "start_time", nil},
		{"blackout", func(r *scheduling.CreateBookingRequest) { r.StartTime = clock(monday.AddDate(0, 0, 3), 10, 0) }, "start_time", nil},
		{"too far ahead", func(r *scheduling.CreateBookingRequest) { r.StartTime = clock(monday.AddDate(0, 0, 42), 10, 0) }, "start_time", nil},
		{"discount above price", func(r *scheduling.CreateBookingRequest) { r.DiscountCents = 9000 }, "discount_cents", nil},
		{"unknown source", func(r *scheduling.CreateBookingRequest) { r.Source = "fax" }, "source", nil},
		{"unknown service", func(r *scheduling.CreateBookingRequest) { r.ServiceID = "nope" }, "", scheduling.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := scheduling.CreateBookingRequest{ServiceID: f.svc.ID, StartTime: clock(monday, 9, 0), Customer: guest()}
			tt.mutate(&req)
			_, err := f.sched.CreateBooking(f.ctx, req)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			var ve *scheduling.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}

	all, err := f.sched.ListBookings(f.ctx, model.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.events.types())
}

func TestCreateBookingOnInactiveService(t *testing.T) {
	f := newFixture(t)
	_, err := f.sched.SetServiceActive(f.ctx, f.svc.ID, false)
	require.NoError(t, err)
	_, err = f.sched.CreateBooking(f.ctx, scheduling.CreateBookingRequest{ServiceID: f.svc.ID, StartTime: clock(monday, 9, 0), Customer: guest()})
	assert.ErrorIs(t, err, scheduling.ErrNotFound)
}

func TestCreateBookingConflict(t *testing.T) {
	f := newFixture(t)
	f.book(t, clock(monday, 10, 0))
	_, err := f.sched.CreateBooking(f.ctx, scheduling.CreateBookingRequest{ServiceID: f.svc.ID, StartTime: clock(monday, 11, 0), Customer: guest()})
	assert.ErrorIs(t, err, scheduling.ErrSlotUnavailable)

	other := f.createService(t, "Brow Shaping", 30)
	_, err = f.sched.CreateBooking(f.ctx, scheduling.CreateBookingRequest{ServiceID: other.ID, StartTime: clock(monday, 10, 0), Customer: guest()})
	assert.NoError(t, err, "conflicts are per service")
}

func TestConcurrentOverlappingCreates(t *testing.T) {
	for round := 0; round < 25; round++ {
		f := newFixture(t)
		starts := []time.Time{clock(monday, 14, 0), clock(monday, 14, 10)}
		errs := make([]error, len(starts))

		var wg sync.WaitGroup
		gate := make(chan struct{})
		for i, start := range starts {
			wg.Add(1)
			go func(i int, start time.Time) {
				defer wg.Done()
				<-gate
				_, errs[i] = f.sched.CreateBooking(f.ctx, scheduling.CreateBookingRequest{ServiceID: f.svc.ID, StartTime: start, Customer: guest()})
			}(i, start)
		}
		close(gate)
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, scheduling.ErrSlotUnavailable)
		}
		require.Equal(t, 1, succeeded, "round %d", round)
	}
}

func TestCancellationWindow(t *testing.T) {
	f := newFixture(t)
	f.now = monday
	b := f.book(t, clock(monday, 10, 0))

	_, err := f.sched.CancelBooking(f.ctx, b.ID, "changed my mind", customer)
	assert.ErrorIs(t, err, scheduling.ErrNotCancellable)
	unchanged, err := f.sched.GetBooking(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, unchanged.Status)
	assert.Nil(t, unchanged.CancelledAt)

	cancelled, err := f.sched.CancelBooking(f.ctx, b.ID, "", admin)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Equal(t, "Cancelled by admin", cancelled.CancellationReason)
	assert.Equal(t, "admin", cancelled.CancelledBy)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, monday, *cancelled.CancelledAt)
}

func TestCustomerCancelsConfirmedBookingWithNotice(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, clock(tuesday, 10, 0))
	_, err := f.sched.ChangeStatus(f.ctx, b.ID, model.StatusConfirmed, admin)
	require.NoError(t, err)

	cancelled, err := f.sched.CancelBooking(f.ctx, b.ID, "", customer)
	require.NoError(t, err)
	assert.Equal(t, "Cancelled by customer", cancelled.CancellationReason)
	assert.Equal(t, "customer", cancelled.CancelledBy)

	_, err = f.sched.CancelBooking(f.ctx, b.ID, "", admin)
	assert.ErrorIs(t, err, scheduling.ErrNotCancellable)

	assert.Equal(t, []scheduling.EventType{
		scheduling.EventBookingCreated,
		scheduling.EventStatusChanged,
		scheduling.EventBookingCancelled,
	}, f.events.types())
}

func TestCancelledIntervalIsReleased(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, clock(monday, 10, 0))
	_, err := f.sched.CancelBooking(f.ctx, b.ID, "", admin)
	require.NoError(t, err)
	f.book(t, clock(monday, 10, 0))
}

func TestFeedbackOnlyOnceAfterCompletion(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, clock(monday, 9, 0))

	_, err := f.sched.SubmitFeedback(f.ctx, b.ID, 5, "lovely")
	assert.ErrorIs(t, err, scheduling.ErrInvalidState)

	f.complete(t, b.ID)
	got, err := f.sched.SubmitFeedback(f.ctx, b.ID, 5, "lovely")
	require.NoError(t, err)
	require.NotNil(t, got.Feedback)
	assert.Equal(t, 5, got.Feedback.Rating)
	require.NotNil(t, got.CompletedAt)

	_, err = f.sched.SubmitFeedback(f.ctx, b.ID, 1, "second thoughts")
	assert.ErrorIs(t, err, scheduling.ErrFeedbackAlreadySubmitted)

	stored, err := f.sched.GetBooking(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Feedback.Rating)
	assert.Equal(t, "lovely", stored.Feedback.Comment)
}

func TestFeedbackRatingBounds(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, clock(monday, 9, 0))
	f.complete(t, b.ID)
	for _, rating := range []int{0, 6, -1} {
		_, err := f.sched.SubmitFeedback(f.ctx, b.ID, rating, "")
		assert.True(t, scheduling.IsValidation(err), rating)
	}
}

func TestChangeStatus(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, clock(monday, 9, 0))

	_, err := f.sched.ChangeStatus(f.ctx, b.ID, model.StatusConfirmed, customer)
	assert.ErrorIs(t, err, scheduling.ErrForbidden)

	_, err = f.sched.ChangeStatus(f.ctx, b.ID, model.StatusCompleted, admin)
	var te *scheduling.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, model.StatusPending, te.From)

	_, err = f.sched.ChangeStatus(f.ctx, b.ID, "archived", admin)
	assert.True(t, scheduling.IsValidation(err))

	noShow, err := f.sched.ChangeStatus(f.ctx, b.ID, model.StatusNoShow, admin)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoShow, noShow.Status)

	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, scheduling.EventStatusChanged, last.Type)
	assert.Equal(t, model.StatusPending, last.PreviousStatus)
}

func TestChangeStatusToCancelledUsesCancellation(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, clock(monday, 9, 0))
	got, err := f.sched.ChangeStatus(f.ctx, b.ID, model.StatusCancelled, admin)
	require.NoError(t, err)
	assert.Equal(t, "Cancelled by admin", got.CancellationReason)
	require.NotNil(t, got.CancelledAt)
}

func TestTerminalBookingsRejectEveryTransition(t *testing.T) {
	f := newFixture(t)
	completed := f.book(t, clock(monday, 9, 0))
	f.complete(t, completed.ID)
	cancelled := f.book(t, clock(monday, 11, 0))
	_, err := f.sched.CancelBooking(f.ctx, cancelled.ID, "", admin)
	require.NoError(t, err)
	noShow := f.book(t, clock(monday, 13, 0))
	_, err = f.sched.ChangeStatus(f.ctx, noShow.ID, model.StatusNoShow, admin)
	require.NoError(t, err)

	statuses := []model.BookingStatus{
		model.StatusPending, model.StatusConfirmed, model.StatusInProgress,
		model.StatusCompleted, model.StatusCancelled, model.StatusNoShow,
	}
	for _, b := range []*model.Booking{completed, cancelled, noShow} {
		before, err := f.sched.GetBooking(f.ctx, b.ID)
		require.NoError(t, err)
		for _, to := range statuses {
			_, err := f.sched.ChangeStatus(f.ctx, b.ID, to, admin)
			assert.Error(t, err, "%s -> %s", before.Status, to)
		}
		after, err := f.sched.GetBooking(f.ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	}
}

func TestServiceEditsDoNotTouchBookings(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, clock(monday, 9, 0))

	edited := *f.svc
	edited.PriceCents = 12000
	edited.DurationMinutes = 90
	_, err := f.sched.UpdateService(f.ctx, edited)
	require.NoError(t, err)

	stored, err := f.sched.GetBooking(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Pricing, stored.Pricing)
	assert.Equal(t, b.EndTime, stored.EndTime)

	slots, err := f.sched.ListAvailableSlots(f.ctx, f.svc.ID, "2026-03-03")
	require.NoError(t, err)
	assert.Equal(t, "15:10", slots[len(slots)-1].Start.Format("15:04"))
}

func TestUpdateBookingSchedule(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, clock(monday, 9, 0))
	blocker := f.book(t, clock(monday, 13, 0))

	newStart := clock(monday, 11, 0)
	moved, err := f.sched.UpdateBookingSchedule(f.ctx, b.ID, &newStart, nil)
	require.NoError(t, err)
	assert.Equal(t, newStart, moved.StartTime)
	assert.Equal(t, clock(monday, 12, 20), moved.EndTime)
	assert.Equal(t, b.Pricing, moved.Pricing)

	clash := clock(monday, 12, 30)
	_, err = f.sched.UpdateBookingSchedule(f.ctx, b.ID, &clash, nil)
	assert.ErrorIs(t, err, scheduling.ErrSlotUnavailable)
	stored, err := f.sched.GetBooking(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, newStart, stored.StartTime, "a rejected reschedule leaves the booking untouched")

	// Overlapping its own previous interval is fine.
	nudge := clock(monday, 11, 15)
	_, err = f.sched.UpdateBookingSchedule(f.ctx, b.ID, &nudge, nil)
	require.NoError(t, err)

	longer := f.createService(t, "Deluxe Facial", 120)
	switched, err := f.sched.UpdateBookingSchedule(f.ctx, blocker.ID, nil, &longer.ID)
	require.NoError(t, err)
	assert.Equal(t, longer.ID, switched.ServiceID)
	assert.Equal(t, clock(monday, 15, 20), switched.EndTime)
	assert.Equal(t, blocker.Pricing, switched.Pricing)

	_, err = f.sched.UpdateBookingSchedule(f.ctx, b.ID, nil, nil)
	assert.True(t, scheduling.IsValidation(err))

	f.complete(t, b.ID)
	later := clock(tuesday, 10, 0)
	_, err = f.sched.UpdateBookingSchedule(f.ctx, b.ID, &later, nil)
	assert.ErrorIs(t, err, scheduling.ErrInvalidState)
}

func TestServiceValidation(t *testing.T) {
	f := newFixture(t)
	svc := f.sched.NewServiceDefaults()
	svc.Name = "Lash Lift"
	svc.Category = model.CategoryLashes
	svc.PriceCents = 4000

	svc.DurationMinutes = 10
	_, err := f.sched.CreateService(f.ctx, svc)
	var ve *scheduling.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "duration_minutes", ve.Field)

	svc.DurationMinutes = 481
	_, err = f.sched.CreateService(f.ctx, svc)
	assert.True(t, scheduling.IsValidation(err))

	svc.DurationMinutes = 45
	svc.Category = "tattoo"
	_, err = f.sched.CreateService(f.ctx, svc)
	assert.True(t, scheduling.IsValidation(err))

	svc.Category = model.CategoryLashes
	svc.Offer = &model.Offer{Type: model.OfferPercentage, Value: 150}
	_, err = f.sched.CreateService(f.ctx, svc)
	assert.True(t, scheduling.IsValidation(err))

	svc.Offer = nil
	created, err := f.sched.CreateService(f.ctx, svc)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive)
}

func TestBlackoutLifecycle(t *testing.T) {
	f := newFixture(t)
	_, err := f.sched.AddBlackout(f.ctx, model.Blackout{ServiceID: f.svc.ID, StartDate: "2026-03-04", EndDate: "2026-03-02"})
	assert.True(t, scheduling.IsValidation(err))

	b, err := f.sched.AddBlackout(f.ctx, model.Blackout{ServiceID: f.svc.ID, StartDate: "2026-03-02", EndDate: "2026-03-02", Reason: "holiday"})
	require.NoError(t, err)

	list, err := f.sched.ListBlackouts(f.ctx, f.svc.ID, "", "")
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, f.sched.RemoveBlackout(f.ctx, b.ID))
	slots, err := f.sched.ListAvailableSlots(f.ctx, f.svc.ID, "2026-03-02")
	require.NoError(t, err)
	assert.NotEmpty(t, slots)

	assert.ErrorIs(t, f.sched.RemoveBlackout(f.ctx, b.ID), scheduling.ErrNotFound)
}

// Random interleavings of create, cancel and reschedule must never leave two
// live bookings of the same service overlapping.
func TestNoOverlapUnderRandomOperations(t *testing.T) {
	f := newFixture(t)
	second := f.createService(t, "Gel Nails", 45)
	services := []*model.Service{f.svc, second}
	days := []time.Time{monday, tuesday}
	rng := rand.New(rand.NewSource(42))

	randomStart := func() time.Time {
		return clock(days[rng.Intn(len(days))], 9+rng.Intn(7), 5*rng.Intn(12))
	}

	var ids []string
	for i := 0; i < 400; i++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(ids) == 0:
			svc := services[rng.Intn(len(services))]
			b, err := f.sched.CreateBooking(f.ctx, scheduling.CreateBookingRequest{ServiceID: svc.ID, StartTime: randomStart(), Customer: guest()})
			if err == nil {
				ids = append(ids, b.ID)
			}
		case op == 1:
			_, _ = f.sched.CancelBooking(f.ctx, ids[rng.Intn(len(ids))], "", admin)
		default:
			start := randomStart()
			var svcID *string
			if rng.Intn(2) == 0 {
				svcID = &services[rng.Intn(len(services))].ID
			}
			_, _ = f.sched.UpdateBookingSchedule(f.ctx, ids[rng.Intn(len(ids))], &start, svcID)
		}
		assertNoOverlap(t, f)
	}
}

func assertNoOverlap(t *testing.T, f *fixture) {
	t.Helper()
	all, err := f.sched.ListBookings(f.ctx, model.BookingFilter{})
	require.NoError(t, err)
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			a, b := all[i], all[j]
			if a.ServiceID != b.ServiceID || !a.Status.Live() || !b.Status.Live() {
				continue
			}
			require.False(t, scheduling.Overlaps(a.StartTime, a.EndTime, b.StartTime, b.EndTime),
				"bookings %s and %s overlap", a.ID, b.ID)
		}
	}
}

func operationCount(t *testing.T, reg *prometheus.Registry, op, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "salon_scheduling_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["operation"] == op && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestCatalogAndStatusOperationsAreCounted(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	f.sched.WithMetrics(metrics.NewSchedulingMetrics(reg))

	b := f.book(t, clock(monday, 9, 0))
	_, err := f.sched.ChangeStatus(f.ctx, b.ID, model.StatusCancelled, admin)
	require.NoError(t, err)

	_, err = f.sched.SetServiceActive(f.ctx, f.svc.ID, false)
	require.NoError(t, err)
	_, err = f.sched.SetServiceActive(f.ctx, "missing", true)
	require.Error(t, err)

	bo, err := f.sched.AddBlackout(f.ctx, model.Blackout{ServiceID: f.svc.ID, StartDate: "2026-03-03", EndDate: "2026-03-03"})
	require.NoError(t, err)
	_, err = f.sched.AddBlackout(f.ctx, model.Blackout{ServiceID: f.svc.ID, StartDate: "03/03/2026", EndDate: "2026-03-03"})
	require.Error(t, err)
	require.NoError(t, f.sched.RemoveBlackout(f.ctx, bo.ID))

	assert.Equal(t, 1.0, operationCount(t, reg, "change_status", "ok"))
	assert.Equal(t, 1.0, operationCount(t, reg, "cancel_booking", "ok"))
	assert.Equal(t, 1.0, operationCount(t, reg, "set_service_active", "ok"))
	assert.Equal(t, 1.0, operationCount(t, reg, "set_service_active", "not_found"))
	assert.Equal(t, 1.0, operationCount(t, reg, "add_blackout", "ok"))
	assert.Equal(t, 1.0, operationCount(t, reg, "add_blackout", "invalid"))
	assert.Equal(t, 1.0, operationCount(t, reg, "remove_blackout", "ok"))
}
