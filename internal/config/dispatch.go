package config

import "time"

// DispatchConfig configures event publishing and the notification consumer.
// An empty RabbitMQURL keeps dispatch in process.
type DispatchConfig struct {
	RabbitMQURL     string
	Queue           string
	MaxAttempts     int
	BaseDelay       time.Duration
	RetryDelay      time.Duration // broker redelivery delay after a failed dispatch
	MaxRedeliveries int           // failed dispatches before an event is parked
	DedupeTTL       time.Duration
	DedupePrefix    string
	NotificationLog string
	OwnerEmail      string
}

func LoadDispatchConfig() DispatchConfig {
	return DispatchConfig{
		RabbitMQURL:     envStr("RABBITMQ_URL", ""),
		Queue:           envStr("RABBITMQ_QUEUE", "booking.events"),
		MaxAttempts:     envInt("DISPATCH_MAX_ATTEMPTS", 3),
		BaseDelay:       envDur("DISPATCH_BASE_DELAY", 1500*time.Millisecond),
		RetryDelay:      envDur("DISPATCH_RETRY_DELAY", time.Minute),
		MaxRedeliveries: envInt("DISPATCH_MAX_REDELIVERIES", 5),
		DedupeTTL:       envDur("DISPATCH_DEDUPE_TTL", 24*time.Hour),
		DedupePrefix:    envStr("DISPATCH_DEDUPE_PREFIX", "salon:event"),
		NotificationLog: envStr("NOTIFICATION_LOG", "notifications.log"),
		OwnerEmail:      envStr("OWNER_EMAIL", ""),
	}
}

// ReminderConfig schedules the reminder sweep.
type ReminderConfig struct {
	Enabled    bool
	Schedule   string        // cron spec
	Lead       time.Duration // remind bookings starting within this window
	MinNotice  time.Duration // skip bookings made closer than this to their start
	BatchLimit int
}

func LoadReminderConfig() ReminderConfig {
	return ReminderConfig{
		Enabled:    envBool("REMINDER_ENABLED", true),
		Schedule:   envStr("REMINDER_SCHEDULE", "*/5 * * * *"),
		Lead:       envDur("REMINDER_LEAD", 24*time.Hour),
		MinNotice:  envDur("REMINDER_MIN_NOTICE", 26*time.Hour),
		BatchLimit: envInt("REMINDER_BATCH_LIMIT", 200),
	}
}
