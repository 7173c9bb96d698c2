package scheduling

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
)

var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrSlotUnavailable is returned when the requested interval overlaps a
	// live booking at commit time.
	ErrSlotUnavailable = errors.New("this time slot is no longer available")

	// ErrInvalidTransition is matched by every TransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrNotCancellable           = errors.New("booking cannot be cancelled")
	ErrFeedbackAlreadySubmitted = errors.New("feedback already submitted")
	ErrInvalidState             = errors.New("booking is not in a state that allows this operation")
	ErrForbidden                = errors.New("forbidden")
)

// ValidationError reports malformed input. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", strings.ToLower(e.Kind), e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// TransitionError is returned when the state machine rejects a status change.
type TransitionError struct {
	From model.BookingStatus
	To   model.BookingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
