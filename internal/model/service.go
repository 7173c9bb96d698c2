package model

import "time"

// ServiceCategory tags a service for browsing.
type ServiceCategory string

const (
	CategoryMakeup   ServiceCategory = "makeup"
	CategorySkincare ServiceCategory = "skincare"
	CategoryEyebrows ServiceCategory = "eyebrows"
	CategoryLashes   ServiceCategory = "lashes"
	CategoryHair     ServiceCategory = "hair"
	CategoryNails    ServiceCategory = "nails"
	CategoryOther    ServiceCategory = "other"
)

// OfferType selects how Offer.Value is applied.
type OfferType string

const (
	OfferPercentage OfferType = "percentage"
	OfferFixed      OfferType = "fixed"
)

// Offer is an advertised discount. It only affects the displayed price;
// bookings snapshot the plain service price.
type Offer struct {
	Type       OfferType  `json:"type" validate:"required,oneof=percentage fixed"`
	Value      int64      `json:"value" validate:"min=0"` // percent (0-100) or cents
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// Active reports whether the offer window contains now.
func (o *Offer) Active(now time.Time) bool {
	if o == nil {
		return false
	}
	if o.ValidFrom != nil && now.Before(*o.ValidFrom) {
		return false
	}
	if o.ValidUntil != nil && now.After(*o.ValidUntil) {
		return false
	}
	return true
}

// Service mirrors the `services` table. Availability and Offer are stored
// as JSON columns.
type Service struct {
	ID                 string          `json:"id"`                                                                                  // services.id (uuid)
	Name               string          `json:"name" validate:"required,min=2,max=100"`                                              // services.name
	Description        string          `json:"description" validate:"max=500"`                                                      // services.description
	Category           ServiceCategory `json:"category" validate:"required,oneof=makeup skincare eyebrows lashes hair nails other"` // services.category
	DurationMinutes    int             `json:"duration_minutes" validate:"min=15,max=480"`                                          // services.duration_minutes
	PreparationMinutes int             `json:"preparation_minutes" validate:"min=0,max=60"`                                         // services.preparation_minutes
	CleanupMinutes     int             `json:"cleanup_minutes" validate:"min=0,max=60"`                                             // services.cleanup_minutes
	PriceCents         int64           `json:"price_cents" validate:"min=0"`                                                        // services.price_cents
	Availability       Availability    `json:"availability"`                                                                        // services.availability (JSON)
	MinAdvanceHours    int             `json:"min_advance_hours" validate:"min=0,max=168"`                                          // services.min_advance_hours
	MaxAdvanceDays     int             `json:"max_advance_days" validate:"min=1,max=365"`                                           // services.max_advance_days
	StaffRequired      int             `json:"staff_required" validate:"min=1,max=10"`                                              // services.staff_required
	IsActive           bool            `json:"is_active"`                                                                           // services.is_active
	Offer              *Offer          `json:"offer,omitempty"`                                                                     // services.offer (JSON, nullable)
	CreatedAt          time.Time       `json:"created_at"`                                                                          // services.created_at
	UpdatedAt          time.Time       `json:"updated_at"`                                                                          // services.updated_at
}

// DisplayPriceCents is the advertised price at now, with an active offer applied.
func (s Service) DisplayPriceCents(now time.Time) int64 {
	if !s.Offer.Active(now) {
		return s.PriceCents
	}
	var price int64
	switch s.Offer.Type {
	case OfferPercentage:
		price = s.PriceCents - s.PriceCents*s.Offer.Value/100
	case OfferFixed:
		price = s.PriceCents - s.Offer.Value
	default:
		return s.PriceCents
	}
	if price < 0 {
		return 0
	}
	return price
}
