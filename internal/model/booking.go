package model

import "time"

// BookingStatus is a state of the booking lifecycle.
type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in-progress"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
	StatusNoShow     BookingStatus = "no-show"
)

// LiveStatuses are the statuses whose bookings occupy their interval.
var LiveStatuses = []BookingStatus{StatusPending, StatusConfirmed, StatusInProgress}

// Live reports whether a booking in this status blocks its time.
func (s BookingStatus) Live() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusInProgress
}

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	return s.Live() || s.Terminal()
}

// BookingSource records the channel a booking came through.
type BookingSource string

const (
	SourceWebsite BookingSource = "website"
	SourcePhone   BookingSource = "phone"
	SourceWalkIn  BookingSource = "walk-in"
	SourceAdmin   BookingSource = "admin"
)

// PaymentStatus is informational; no payment processing happens here.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Pricing is captured when the booking is created and never recomputed.
type Pricing struct {
	BasePriceCents  int64 `json:"base_price_cents"`
	DiscountCents   int64 `json:"discount_cents"`
	FinalPriceCents int64 `json:"final_price_cents"`
}

// CustomerInfo is the contact snapshot stored on the booking.
type CustomerInfo struct {
	Name  string `json:"name" validate:"required,min=2,max=50"`
	Email string `json:"email" validate:"required,email,max=254"`
	Phone string `json:"phone" validate:"required,max=20,phone"`
	Notes string `json:"notes,omitempty" validate:"max=500"`
}

// Feedback is left by the customer once the booking is completed.
type Feedback struct {
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Booking mirrors the `bookings` table. All timestamps are UTC.
type Booking struct {
	ID                 string        `json:"id"`
	ServiceID          string        `json:"service_id"`
	ServiceName        string        `json:"service_name"`
	CustomerID         string        `json:"customer_id,omitempty"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            time.Time     `json:"end_time"`
	Status             BookingStatus `json:"status"`
	Pricing            Pricing       `json:"pricing"`
	Customer           CustomerInfo  `json:"customer"`
	Source             BookingSource `json:"source"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	CancelledBy        string        `json:"cancelled_by,omitempty"`
	Feedback           *Feedback     `json:"feedback,omitempty"`
	ReminderSentAt     *time.Time    `json:"reminder_sent_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// BookingFilter narrows ListBookings. Zero values mean "any".
type BookingFilter struct {
	ServiceID  string
	CustomerID string
	Status     BookingStatus
	From       time.Time // start_time >= From
	To         time.Time // start_time < To
	Limit      int
}
