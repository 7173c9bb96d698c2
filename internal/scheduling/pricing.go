package scheduling

import (
	"time"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
)

// Duration bounds for a service, in minutes.
const (
	MinServiceMinutes = 15
	MaxServiceMinutes = 480
)

// TotalDuration is the occupied time of one booking: preparation, the
// service itself and cleanup.
func TotalDuration(s model.Service) time.Duration {
	return time.Duration(s.PreparationMinutes+s.DurationMinutes+s.CleanupMinutes) * time.Minute
}

func checkDuration(s model.Service) error {
	if s.DurationMinutes < MinServiceMinutes || s.DurationMinutes > MaxServiceMinutes {
		return invalid("duration_minutes", "must be between %d and %d", MinServiceMinutes, MaxServiceMinutes)
	}
	if s.PreparationMinutes < 0 || s.CleanupMinutes < 0 {
		return invalid("preparation_minutes", "and cleanup_minutes must not be negative")
	}
	return nil
}

// ResolvePricing snapshots the price for a new booking. The discount is
// supplied by the caller and defaults to zero; offers on the service are
// not applied.
func ResolvePricing(s model.Service, discountCents int64) (model.Pricing, error) {
	if discountCents < 0 {
		return model.Pricing{}, invalid("discount_cents", "must not be negative")
	}
	if discountCents > s.PriceCents {
		return model.Pricing{}, invalid("discount_cents", "must not exceed the base price")
	}
	return model.Pricing{
		BasePriceCents:  s.PriceCents,
		DiscountCents:   discountCents,
		FinalPriceCents: s.PriceCents - discountCents,
	}, nil
}
