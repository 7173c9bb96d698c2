package scheduling

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
)

// NewServiceDefaults returns a service pre-filled with the catalog defaults:
// 10 minute buffers, the policy booking window, one staff member and the
// Monday to Saturday template. Callers overlay what they were given.
func (s *Scheduler) NewServiceDefaults() model.Service {
	return model.Service{
		Category:           model.CategoryOther,
		PreparationMinutes: 10,
		CleanupMinutes:     10,
		Availability:       model.DefaultAvailability(),
		MinAdvanceHours:    s.policy.DefaultMinAdvanceHours,
		MaxAdvanceDays:     s.policy.DefaultMaxAdvanceDays,
		StaffRequired:      1,
		IsActive:           true,
	}
}

func (s *Scheduler) validateService(svc *model.Service) error {
	svc.Name = strings.TrimSpace(svc.Name)
	svc.Description = strings.TrimSpace(svc.Description)
	if err := validateStruct(s.validate, svc); err != nil {
		return err
	}
	if err := checkDuration(*svc); err != nil {
		return err
	}
	if svc.Availability == nil {
		svc.Availability = model.DefaultAvailability()
	}
	if err := ValidateAvailability(svc.Availability); err != nil {
		return err
	}
	if o := svc.Offer; o != nil {
		if o.Type == model.OfferPercentage && o.Value > 100 {
			return invalid("offer.value", "must be at most 100 for a percentage offer")
		}
		if o.ValidFrom != nil && o.ValidUntil != nil && o.ValidUntil.Before(*o.ValidFrom) {
			return invalid("offer.valid_until", "must not be before valid_from")
		}
	}
	return nil
}

// ListServices returns the catalog ordered by name.
func (s *Scheduler) ListServices(ctx context.Context, activeOnly bool) ([]model.Service, error) {
	return s.store.ListServices(ctx, activeOnly)
}

// GetService loads one service, active or not.
func (s *Scheduler) GetService(ctx context.Context, id string) (*model.Service, error) {
	return s.store.FindServiceByID(ctx, id)
}

// CreateService validates and stores a new service.
func (s *Scheduler) CreateService(ctx context.Context, svc model.Service) (*model.Service, error) {
	if err := s.validateService(&svc); err != nil {
		s.observe("create_service", err)
		return nil, err
	}
	now := s.now().UTC()
	svc.ID = uuid.NewString()
	svc.CreatedAt = now
	svc.UpdatedAt = now
	err := s.store.CreateService(ctx, &svc)
	s.observe("create_service", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("service created", "service_id", svc.ID, "name", svc.Name)
	return &svc, nil
}

// UpdateService replaces the editable fields of a service. Existing
// bookings keep their own timing and pricing snapshot; only future slot
// generation sees the change.
func (s *Scheduler) UpdateService(ctx context.Context, svc model.Service) (*model.Service, error) {
	existing, err := s.store.FindServiceByID(ctx, svc.ID)
	if err != nil {
		s.observe("update_service", err)
		return nil, err
	}
	if err := s.validateService(&svc); err != nil {
		s.observe("update_service", err)
		return nil, err
	}
	svc.CreatedAt = existing.CreatedAt
	svc.UpdatedAt = s.now().UTC()
	err = s.store.UpdateService(ctx, &svc)
	s.observe("update_service", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("service updated", "service_id", svc.ID)
	return &svc, nil
}

// SetServiceActive soft-activates or deactivates a service. Services are
// never deleted so historical bookings keep a valid reference.
func (s *Scheduler) SetServiceActive(ctx context.Context, id string, active bool) (*model.Service, error) {
	svc, err := s.setServiceActive(ctx, id, active)
	s.observe("set_service_active", err)
	return svc, err
}

func (s *Scheduler) setServiceActive(ctx context.Context, id string, active bool) (*model.Service, error) {
	svc, err := s.store.FindServiceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc.IsActive == active {
		return svc, nil
	}
	svc.IsActive = active
	svc.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateService(ctx, svc); err != nil {
		return nil, err
	}
	s.logger.Info("service activity changed", "service_id", svc.ID, "active", active)
	return svc, nil
}

// AddBlackout closes a service for an inclusive date range.
func (s *Scheduler) AddBlackout(ctx context.Context, b model.Blackout) (*model.Blackout, error) {
	out, err := s.addBlackout(ctx, b)
	s.observe("add_blackout", err)
	return out, err
}

func (s *Scheduler) addBlackout(ctx context.Context, b model.Blackout) (*model.Blackout, error) {
	start, err := time.Parse(model.DateLayout, strings.TrimSpace(b.StartDate))
	if err != nil {
		return nil, invalid("start_date", "must be YYYY-MM-DD")
	}
	end, err := time.Parse(model.DateLayout, strings.TrimSpace(b.EndDate))
	if err != nil {
		return nil, invalid("end_date", "must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return nil, invalid("end_date", "must not be before start_date")
	}
	b.Reason = strings.TrimSpace(b.Reason)
	if utf8.RuneCountInString(b.Reason) > 200 {
		return nil, invalid("reason", "must be at most 200 characters")
	}
	if _, err := s.store.FindServiceByID(ctx, b.ServiceID); err != nil {
		return nil, err
	}
	b.ID = uuid.NewString()
	b.StartDate = start.Format(model.DateLayout)
	b.EndDate = end.Format(model.DateLayout)
	b.CreatedAt = s.now().UTC()
	if err := s.store.CreateBlackout(ctx, &b); err != nil {
		return nil, err
	}
	s.logger.Info("blackout added", "blackout_id", b.ID, "service_id", b.ServiceID, "start_date", b.StartDate, "end_date", b.EndDate)
	return &b, nil
}

// ListBlackouts returns the blackouts of a service. Empty bounds are open.
func (s *Scheduler) ListBlackouts(ctx context.Context, serviceID, fromDate, toDate string) ([]model.Blackout, error) {
	if fromDate == "" {
		fromDate = "0001-01-01"
	}
	if toDate == "" {
		toDate = "9999-12-31"
	}
	for field, v := range map[string]string{"from": fromDate, "to": toDate} {
		if _, err := time.Parse(model.DateLayout, v); err != nil {
			return nil, invalid(field, "must be YYYY-MM-DD")
		}
	}
	if _, err := s.store.FindServiceByID(ctx, serviceID); err != nil {
		return nil, err
	}
	return s.store.FindBlackouts(ctx, serviceID, fromDate, toDate)
}

// RemoveBlackout reopens the dates of a blackout.
func (s *Scheduler) RemoveBlackout(ctx context.Context, id string) error {
	err := s.store.DeleteBlackout(ctx, id)
	s.observe("remove_blackout", err)
	if err != nil {
		return err
	}
	s.logger.Info("blackout removed", "blackout_id", id)
	return nil
}
