package scheduling

import (
	"sort"
	"time"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
)

// DefaultSlotStep is the spacing between candidate start times.
const DefaultSlotStep = 15 * time.Minute

// Slot is a bookable start time with the end of its occupied interval.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// blackedOut reports whether any blackout covers the calendar date of day.
func blackedOut(day time.Time, blackouts []model.Blackout) bool {
	key := day.Format(model.DateLayout)
	for _, b := range blackouts {
		if b.Covers(key) {
			return true
		}
	}
	return false
}

// withinAdvanceWindow applies the "strictly in the future" rule and the
// service's minimum and maximum advance booking thresholds.
func withinAdvanceWindow(s model.Service, start, now time.Time) bool {
	if !start.After(now) {
		return false
	}
	if start.Before(now.Add(time.Duration(s.MinAdvanceHours) * time.Hour)) {
		return false
	}
	if s.MaxAdvanceDays > 0 && start.After(now.AddDate(0, 0, s.MaxAdvanceDays)) {
		return false
	}
	return true
}

// GenerateSlots lists the bookable start times of service s on the
// calendar date of day, in day's location. Each open interval is walked
// independently so no candidate spans a gap in the template.
//
// Candidates are the step grid anchored at the interval start plus packing
// points: the latest start that still ends at closing time, and the starts
// that sit flush against a live booking on either side. Packing points keep
// back-to-back appointments possible when the grid does not line up with
// the service length.
func GenerateSlots(s model.Service, day time.Time, existing []model.Booking, blackouts []model.Blackout, now time.Time, step time.Duration) []Slot {
	if step <= 0 {
		step = DefaultSlotStep
	}
	day = startOfDay(day)
	if blackedOut(day, blackouts) {
		return nil
	}
	total := TotalDuration(s)
	if total <= 0 {
		return nil
	}

	var slots []Slot
	for _, iv := range openIntervals(s.Availability, day) {
		for _, t := range candidates(iv, total, step, existing) {
			end := t.Add(total)
			if HasConflict(t, end, existing, "") {
				continue
			}
			if !withinAdvanceWindow(s, t, now) {
				continue
			}
			slots = append(slots, Slot{Start: t, End: end})
		}
	}
	return slots
}

// candidates returns the ordered, de-duplicated start times inside iv that
// leave room for total.
func candidates(iv interval, total, step time.Duration, existing []model.Booking) []time.Time {
	last := iv.end.Add(-total)
	if last.Before(iv.start) {
		return nil
	}
	seen := make(map[int64]bool)
	var out []time.Time
	add := func(t time.Time) {
		if t.Before(iv.start) || t.After(last) || seen[t.UnixNano()] {
			return
		}
		seen[t.UnixNano()] = true
		out = append(out, t)
	}
	for t := iv.start; !t.After(last); t = t.Add(step) {
		add(t)
	}
	add(last)
	for _, b := range existing {
		if !b.Status.Live() {
			continue
		}
		add(b.EndTime.In(iv.start.Location()))
		add(b.StartTime.In(iv.start.Location()).Add(-total))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// fitsTemplate reports whether [start,end) lies inside a single open
// interval of the template for start's local date.
func fitsTemplate(s model.Service, start, end time.Time) bool {
	for _, iv := range openIntervals(s.Availability, startOfDay(start)) {
		if !start.Before(iv.start) && !end.After(iv.end) {
			return true
		}
	}
	return false
}
