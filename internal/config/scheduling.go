package config

import (
	"log"
	"time"
	_ "time/tzdata"
)

// SchedulingConfig holds the business rules fed into scheduling.Policy.
type SchedulingConfig struct {
	Location               *time.Location // BUSINESS_TIMEZONE
	SlotStep               time.Duration
	CancellationNotice     time.Duration
	AutoConfirm            bool
	DefaultMinAdvanceHours int
	DefaultMaxAdvanceDays  int
}

func LoadSchedulingConfig() SchedulingConfig {
	tz := envStr("BUSINESS_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Fatalf("invalid BUSINESS_TIMEZONE %q: %v", tz, err)
	}
	return SchedulingConfig{
		Location:               loc,
		SlotStep:               envDur("SLOT_STEP", 15*time.Minute),
		CancellationNotice:     envDur("CANCELLATION_NOTICE", 24*time.Hour),
		AutoConfirm:            envBool("AUTO_CONFIRM", false),
		DefaultMinAdvanceHours: envInt("DEFAULT_MIN_ADVANCE_HOURS", 2),
		DefaultMaxAdvanceDays:  envInt("DEFAULT_MAX_ADVANCE_DAYS", 30),
	}
}
