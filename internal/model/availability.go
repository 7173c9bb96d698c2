package model

import (
	"strings"
	"time"
)

// TimeRange is an open interval of local wall-clock time, both ends "HH:MM".
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DayAvailability is the template entry for one weekday.
type DayAvailability struct {
	Enabled bool        `json:"enabled"`
	Slots   []TimeRange `json:"slots"`
}

// Availability maps a lowercase weekday name ("monday") to its template entry.
// Missing weekdays are treated as disabled.
type Availability map[string]DayAvailability

// Weekdays lists the template keys in Sunday-first order.
var Weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// WeekdayKey returns the template key for wd.
func WeekdayKey(wd time.Weekday) string {
	return strings.ToLower(wd.String())
}

// Day returns the entry for the weekday of the given date.
func (a Availability) Day(wd time.Weekday) DayAvailability {
	if a == nil {
		return DayAvailability{}
	}
	return a[WeekdayKey(wd)]
}

// DefaultAvailability opens Monday to Saturday 09:00-17:00 and closes Sunday.
func DefaultAvailability() Availability {
	a := make(Availability, len(Weekdays))
	for _, d := range Weekdays {
		if d == "sunday" {
			a[d] = DayAvailability{Enabled: false, Slots: []TimeRange{}}
			continue
		}
		a[d] = DayAvailability{Enabled: true, Slots: []TimeRange{{Start: "09:00", End: "17:00"}}}
	}
	return a
}
