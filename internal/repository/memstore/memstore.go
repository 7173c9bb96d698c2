// Package memstore is an in-memory scheduling.Store. A single mutex
// serializes every write, which gives InsertBookingIfNoConflict and
// UpdateBooking the same all-or-nothing behavior as the MySQL store. It
// backs the test suites and local runs without a database.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
	"github.com/iliyamo/salon-appointment-scheduler/internal/scheduling"
)

type Store struct {
	mu        sync.RWMutex
	services  map[string]model.Service
	bookings  map[string]model.Booking
	blackouts map[string]model.Blackout
	customers map[string]model.Customer
}

func New() *Store {
	return &Store{
		services:  make(map[string]model.Service),
		bookings:  make(map[string]model.Booking),
		blackouts: make(map[string]model.Blackout),
		customers: make(map[string]model.Customer),
	}
}

var _ scheduling.Store = (*Store)(nil)

func cloneService(s model.Service) model.Service {
	if s.Availability != nil {
		a := make(model.Availability, len(s.Availability))
		for k, v := range s.Availability {
			v.Slots = append([]model.TimeRange(nil), v.Slots...)
			a[k] = v
		}
		s.Availability = a
	}
	if s.Offer != nil {
		o := *s.Offer
		s.Offer = &o
	}
	return s
}

func cloneBooking(b model.Booking) model.Booking {
	if b.Feedback != nil {
		f := *b.Feedback
		b.Feedback = &f
	}
	return b
}

// ---- services ----

func (s *Store) FindServiceByID(_ context.Context, id string) (*model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, &scheduling.NotFoundError{Kind: "service", ID: id}
	}
	out := cloneService(svc)
	return &out, nil
}

func (s *Store) ListServices(_ context.Context, activeOnly bool) ([]model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Service, 0, len(s.services))
	for _, svc := range s.services {
		if activeOnly && !svc.IsActive {
			continue
		}
		out = append(out, cloneService(svc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateService(_ context.Context, svc *model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	if _, ok := s.services[svc.ID]; ok {
		return fmt.Errorf("service %s already exists", svc.ID)
	}
	s.services[svc.ID] = cloneService(*svc)
	return nil
}

func (s *Store) UpdateService(_ context.Context, svc *model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[svc.ID]; !ok {
		return &scheduling.NotFoundError{Kind: "service", ID: svc.ID}
	}
	s.services[svc.ID] = cloneService(*svc)
	return nil
}

// ---- blackouts ----

func (s *Store) FindBlackouts(_ context.Context, serviceID, fromDate, toDate string) ([]model.Blackout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Blackout
	for _, b := range s.blackouts {
		if b.ServiceID != serviceID {
			continue
		}
		if b.StartDate <= toDate && b.EndDate >= fromDate {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate < out[j].StartDate })
	return out, nil
}

func (s *Store) CreateBlackout(_ context.Context, b *model.Blackout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	s.blackouts[b.ID] = *b
	return nil
}

func (s *Store) DeleteBlackout(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blackouts[id]; !ok {
		return &scheduling.NotFoundError{Kind: "blackout", ID: id}
	}
	delete(s.blackouts, id)
	return nil
}

// ---- bookings ----

func (s *Store) FindBookingByID(_ context.Context, id string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, &scheduling.NotFoundError{Kind: "booking", ID: id}
	}
	out := cloneBooking(b)
	return &out, nil
}

func (s *Store) FindBookingsInRange(_ context.Context, serviceID string, from, to time.Time) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.ServiceID == serviceID && b.Status.Live() && scheduling.Overlaps(b.StartTime, b.EndTime, from, to) {
			out = append(out, cloneBooking(b))
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *Store) ListBookings(_ context.Context, f model.BookingFilter) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if f.ServiceID != "" && b.ServiceID != f.ServiceID {
			continue
		}
		if f.CustomerID != "" && b.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && b.StartTime.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !b.StartTime.Before(f.To) {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	sortByStart(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func sortByStart(bs []model.Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].StartTime.Equal(bs[j].StartTime) {
			return bs[i].ID < bs[j].ID
		}
		return bs[i].StartTime.Before(bs[j].StartTime)
	})
}

// conflictLocked must be called with s.mu held.
func (s *Store) conflictLocked(serviceID string, start, end time.Time, excludeID string) bool {
	for _, b := range s.bookings {
		if b.ServiceID != serviceID || b.ID == excludeID || !b.Status.Live() {
			continue
		}
		if scheduling.Overlaps(start, end, b.StartTime, b.EndTime) {
			return true
		}
	}
	return false
}

func (s *Store) InsertBookingIfNoConflict(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; ok {
		return fmt.Errorf("booking %s already exists", b.ID)
	}
	if b.Status.Live() && s.conflictLocked(b.ServiceID, b.StartTime, b.EndTime, "") {
		return scheduling.ErrSlotUnavailable
	}
	if b.CustomerID == "" {
		b.CustomerID = s.resolveGuestLocked(b.Customer).ID
	}
	s.bookings[b.ID] = cloneBooking(*b)
	return nil
}

func (s *Store) UpdateBooking(_ context.Context, id string, mutate scheduling.BookingMutator) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.bookings[id]
	if !ok {
		return nil, &scheduling.NotFoundError{Kind: "booking", ID: id}
	}
	next := cloneBooking(current)
	if err := mutate(&next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	moved := next.ServiceID != current.ServiceID ||
		!next.StartTime.Equal(current.StartTime) ||
		!next.EndTime.Equal(current.EndTime)
	if moved && next.Status.Live() && s.conflictLocked(next.ServiceID, next.StartTime, next.EndTime, id) {
		return nil, scheduling.ErrSlotUnavailable
	}
	s.bookings[id] = next
	out := cloneBooking(next)
	return &out, nil
}

// ---- reminders ----

func (s *Store) FindRemindersDue(_ context.Context, from, to time.Time, minNotice time.Duration, limit int) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.Status != model.StatusPending && b.Status != model.StatusConfirmed {
			continue
		}
		if b.ReminderSentAt != nil || !b.StartTime.After(from) || b.StartTime.After(to) {
			continue
		}
		if b.CreatedAt.After(b.StartTime.Add(-minNotice)) {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	sortByStart(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkReminderSent(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return &scheduling.NotFoundError{Kind: "booking", ID: id}
	}
	b.ReminderSentAt = &at
	s.bookings[id] = b
	return nil
}

// ---- customers ----

// resolveGuestLocked finds an unlinked customer by email, then phone, or
// creates one.
func (s *Store) resolveGuestLocked(info model.CustomerInfo) model.Customer {
	email := strings.ToLower(strings.TrimSpace(info.Email))
	phone := strings.TrimSpace(info.Phone)
	for _, match := range []func(model.Customer) bool{
		func(c model.Customer) bool { return email != "" && c.Email == email },
		func(c model.Customer) bool { return phone != "" && c.Phone == phone },
	} {
		if c, ok := s.oldestLocked(func(c model.Customer) bool { return c.UserID == nil && match(c) }); ok {
			return c
		}
	}
	c := model.Customer{ID: uuid.NewString(), Name: strings.TrimSpace(info.Name), Email: email, Phone: phone, CreatedAt: time.Now().UTC()}
	s.customers[c.ID] = c
	return c
}

func (s *Store) oldestLocked(match func(model.Customer) bool) (model.Customer, bool) {
	var (
		out   model.Customer
		found bool
	)
	for _, c := range s.customers {
		if match(c) && (!found || c.CreatedAt.Before(out.CreatedAt)) {
			out, found = c, true
		}
	}
	return out, found
}

// CustomerForUser returns the customer linked to userID, adopting the
// unlinked guest record with the account's email or creating one.
func (s *Store) CustomerForUser(_ context.Context, userID uint64, accountEmail string, info model.CustomerInfo) (*model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.oldestLocked(func(c model.Customer) bool { return c.UserID != nil && *c.UserID == userID }); ok {
		return &c, nil
	}
	email := strings.ToLower(strings.TrimSpace(accountEmail))
	c, ok := s.oldestLocked(func(c model.Customer) bool { return c.UserID == nil && c.Email == email })
	if !ok {
		c = model.Customer{
			ID:        uuid.NewString(),
			Name:      strings.TrimSpace(info.Name),
			Email:     email,
			Phone:     strings.TrimSpace(info.Phone),
			CreatedAt: time.Now().UTC(),
		}
	}
	uid := userID
	c.UserID = &uid
	s.customers[c.ID] = c
	return &c, nil
}

func (s *Store) FindCustomerByUserID(_ context.Context, userID uint64) (*model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if c.UserID != nil && *c.UserID == userID {
			return &c, nil
		}
	}
	return nil, &scheduling.NotFoundError{Kind: "customer", ID: fmt.Sprint(userID)}
}
