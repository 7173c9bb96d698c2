package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iliyamo/salon-appointment-scheduler/pkg/logging"
)

// Notifier delivers one message.
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, m Message) error

func (f NotifierFunc) Notify(ctx context.Context, m Message) error { return f(ctx, m) }

// LogNotifier appends each message as a JSON line to a file and echoes it
// to the structured log. It stands in for SMS and email delivery.
type LogNotifier struct {
	mu     sync.Mutex
	path   string
	logger *logging.Logger
	now    func() time.Time
}

func NewLogNotifier(path string, logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogNotifier{path: path, logger: logger, now: time.Now}
}

type logLine struct {
	SentAt time.Time `json:"sent_at"`
	Message
}

func (n *LogNotifier) Notify(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(logLine{SentAt: n.now().UTC(), Message: m})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if dir := filepath.Dir(n.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(n.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open notification log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write notification log: %w", err)
	}

	n.logger.Info("notification sent",
		"event_id", m.EventID,
		"event_type", m.EventType,
		"booking_id", m.BookingID,
		"audience", m.Audience,
	)
	return nil
}
