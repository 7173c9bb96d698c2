package model

import "time"

// DateLayout is the calendar date format used for blackout bounds and slot queries.
const DateLayout = "2006-01-02"

// Blackout closes a service for an inclusive range of calendar dates in the
// business time zone, regardless of its weekly template.
type Blackout struct {
	ID        string    `json:"id"`         // blackouts.id
	ServiceID string    `json:"service_id"` // blackouts.service_id
	StartDate string    `json:"start_date"` // blackouts.start_date (YYYY-MM-DD)
	EndDate   string    `json:"end_date"`   // blackouts.end_date (YYYY-MM-DD, inclusive)
	Reason    string    `json:"reason"`     // blackouts.reason
	CreatedAt time.Time `json:"created_at"` // blackouts.created_at
}

// Covers reports whether the date key (YYYY-MM-DD) falls inside the blackout.
// Keys compare lexicographically in calendar order.
func (b Blackout) Covers(dateKey string) bool {
	return b.StartDate <= dateKey && dateKey <= b.EndDate
}
