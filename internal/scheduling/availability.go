package scheduling

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
)

// clockMinutes parses "HH:MM" into minutes after midnight. "24:00" is
// accepted as the end of the day.
func clockMinutes(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	h, err1 := strconv.Atoi(s[:2])
	m, err2 := strconv.Atoi(s[3:])
	if err1 != nil || err2 != nil || h < 0 || m < 0 {
		return 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	if m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time %q is out of range", s)
	}
	return h*60 + m, nil
}

// ValidateAvailability checks every weekday entry: known weekday names,
// well-formed times, start before end and no overlapping intervals.
func ValidateAvailability(a model.Availability) error {
	known := make(map[string]bool, len(model.Weekdays))
	for _, d := range model.Weekdays {
		known[d] = true
	}
	for day, entry := range a {
		if !known[day] {
			return invalid("availability", "has unknown weekday %q", day)
		}
		type span struct{ start, end int }
		spans := make([]span, 0, len(entry.Slots))
		for _, r := range entry.Slots {
			start, err := clockMinutes(r.Start)
			if err != nil {
				return invalid("availability."+day, "%v", err)
			}
			end, err := clockMinutes(r.End)
			if err != nil {
				return invalid("availability."+day, "%v", err)
			}
			if start >= end {
				return invalid("availability."+day, "interval %s-%s must start before it ends", r.Start, r.End)
			}
			spans = append(spans, span{start, end})
		}
		sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
		for i := 1; i < len(spans); i++ {
			if spans[i].start < spans[i-1].end {
				return invalid("availability."+day, "intervals overlap")
			}
		}
	}
	return nil
}

// interval is a concrete [start, end) range.
type interval struct {
	start time.Time
	end   time.Time
}

// openIntervals resolves the template entry for day (midnight in the
// business location) into concrete intervals, ordered by start. Malformed
// entries are skipped; templates are validated on write.
func openIntervals(a model.Availability, day time.Time) []interval {
	entry := a.Day(day.Weekday())
	if !entry.Enabled || len(entry.Slots) == 0 {
		return nil
	}
	out := make([]interval, 0, len(entry.Slots))
	for _, r := range entry.Slots {
		start, err1 := clockMinutes(r.Start)
		end, err2 := clockMinutes(r.End)
		if err1 != nil || err2 != nil || start >= end {
			continue
		}
		out = append(out, interval{start: atMinute(day, start), end: atMinute(day, end)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })
	return out
}

// atMinute builds the wall-clock instant minutes after midnight of day,
// resolving DST through time.Date.
func atMinute(day time.Time, minutes int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, minutes, 0, 0, day.Location())
}

// startOfDay truncates t to local midnight.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
