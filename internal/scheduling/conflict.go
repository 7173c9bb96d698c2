package scheduling

import (
	"time"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
)

// Overlaps reports whether [a1,a2) and [b1,b2) intersect. Touching
// endpoints do not overlap.
func Overlaps(a1, a2, b1, b2 time.Time) bool {
	return a1.Before(b2) && a2.After(b1)
}

// HasConflict reports whether [start,end) overlaps any live booking in
// bookings other than excludeID. Bookings are expected to belong to the
// same service.
func HasConflict(start, end time.Time, bookings []model.Booking, excludeID string) bool {
	for _, b := range bookings {
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		if !b.Status.Live() {
			continue
		}
		if Overlaps(start, end, b.StartTime, b.EndTime) {
			return true
		}
	}
	return false
}
