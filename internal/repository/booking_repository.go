package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
	"github.com/iliyamo/salon-appointment-scheduler/internal/scheduling"
)

// BookingRepo persists bookings. Every write that can change which
// intervals are occupied runs in a transaction holding the service row
// lock, so the overlap check and the write are one atomic unit.
type BookingRepo struct {
	db        *sql.DB
	customers *CustomerRepo
	now       func() time.Time
}

func NewBookingRepo(db *sql.DB, customers *CustomerRepo) *BookingRepo {
	return &BookingRepo{db: db, customers: customers, now: time.Now}
}

const bookingColumns = `id, service_id, service_name, customer_id, start_time, end_time, status,
	base_price_cents, discount_cents, final_price_cents,
	customer_name, customer_email, customer_phone, customer_notes,
	source, payment_status, cancellation_reason, cancelled_at, cancelled_by,
	feedback_rating, feedback_comment, feedback_at, reminder_sent_at, completed_at,
	created_at, updated_at`

const bookingPlaceholders = "?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?"

// liveStatusList is the SQL IN list for statuses that occupy time.
const liveStatusList = "('pending','confirmed','in-progress')"

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b                                           model.Booking
		cancelledAt, feedbackAt, reminderAt, doneAt sql.NullTime
		rating                                      sql.NullInt64
		comment                                     sql.NullString
	)
	err := row.Scan(&b.ID, &b.ServiceID, &b.ServiceName, &b.CustomerID, &b.StartTime, &b.EndTime, &b.Status,
		&b.Pricing.BasePriceCents, &b.Pricing.DiscountCents, &b.Pricing.FinalPriceCents,
		&b.Customer.Name, &b.Customer.Email, &b.Customer.Phone, &b.Customer.Notes,
		&b.Source, &b.PaymentStatus, &b.CancellationReason, &cancelledAt, &b.CancelledBy,
		&rating, &comment, &feedbackAt, &reminderAt, &doneAt,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.StartTime = b.StartTime.UTC()
	b.EndTime = b.EndTime.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	b.CancelledAt = timePtr(cancelledAt)
	b.ReminderSentAt = timePtr(reminderAt)
	b.CompletedAt = timePtr(doneAt)
	if rating.Valid {
		b.Feedback = &model.Feedback{Rating: int(rating.Int64), Comment: comment.String}
		if feedbackAt.Valid {
			b.Feedback.SubmittedAt = feedbackAt.Time.UTC()
		}
	}
	return &b, nil
}

func bookingArgs(b *model.Booking) []any {
	var rating, comment, feedbackAt any
	if b.Feedback != nil {
		rating = b.Feedback.Rating
		comment = b.Feedback.Comment
		feedbackAt = b.Feedback.SubmittedAt.UTC()
	}
	return []any{
		b.ID, b.ServiceID, b.ServiceName, b.CustomerID, b.StartTime.UTC(), b.EndTime.UTC(), b.Status,
		b.Pricing.BasePriceCents, b.Pricing.DiscountCents, b.Pricing.FinalPriceCents,
		b.Customer.Name, b.Customer.Email, b.Customer.Phone, b.Customer.Notes,
		b.Source, b.PaymentStatus, b.CancellationReason, nullTime(b.CancelledAt), b.CancelledBy,
		rating, comment, feedbackAt, nullTime(b.ReminderSentAt), nullTime(b.CompletedAt),
		b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	}
}

func (r *BookingRepo) queryBookings(ctx context.Context, q string, args ...any) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *BookingRepo) FindBookingByID(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return b, nil
}

// FindBookingsInRange returns live bookings of the service overlapping
// [from, to). Intervals are half-open, so touching bookings are excluded.
func (r *BookingRepo) FindBookingsInRange(ctx context.Context, serviceID string, from, to time.Time) ([]model.Booking, error) {
	return r.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE service_id = ? AND status IN `+liveStatusList+` AND start_time < ? AND end_time > ?
		 ORDER BY start_time, id`,
		serviceID, to.UTC(), from.UTC())
}

func (r *BookingRepo) ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	var (
		where []string
		args  []any
	)
	if f.ServiceID != "" {
		where = append(where, "service_id = ?")
		args = append(args, f.ServiceID)
	}
	if f.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if !f.From.IsZero() {
		where = append(where, "start_time >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where = append(where, "start_time < ?")
		args = append(args, f.To.UTC())
	}
	q := "SELECT " + bookingColumns + " FROM bookings"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY start_time, id"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return r.queryBookings(ctx, q, args...)
}

// hasConflictTx counts live bookings of the service overlapping
// [start, end), ignoring excludeID.
func hasConflictTx(ctx context.Context, tx *sql.Tx, serviceID string, start, end time.Time, excludeID string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings
		 WHERE service_id = ? AND status IN `+liveStatusList+` AND start_time < ? AND end_time > ? AND id <> ?`,
		serviceID, end.UTC(), start.UTC(), excludeID).Scan(&n)
	return n > 0, err
}

func (r *BookingRepo) InsertBookingIfNoConflict(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := lockServiceTx(ctx, tx, b.ServiceID); err != nil {
		return err
	}
	if b.Status.Live() {
		conflict, err := hasConflictTx(ctx, tx, b.ServiceID, b.StartTime, b.EndTime, "")
		if err != nil {
			return err
		}
		if conflict {
			return scheduling.ErrSlotUnavailable
		}
	}
	if b.CustomerID == "" {
		c, err := r.customers.ResolveGuestTx(ctx, tx, b.Customer, r.now())
		if err != nil {
			return err
		}
		b.CustomerID = c.ID
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO bookings ("+bookingColumns+") VALUES ("+bookingPlaceholders+")",
		bookingArgs(b)...); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *BookingRepo) UpdateBooking(ctx context.Context, id string, mutate scheduling.BookingMutator) (*model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	current, err := scanBooking(tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ? FOR UPDATE", id))
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	next := *current
	if current.Feedback != nil {
		fb := *current.Feedback
		next.Feedback = &fb
	}
	if err := mutate(&next); err != nil {
		return nil, err
	}
	next.ID = current.ID

	moved := next.ServiceID != current.ServiceID ||
		!next.StartTime.Equal(current.StartTime) ||
		!next.EndTime.Equal(current.EndTime)
	if moved && next.Status.Live() {
		if err := lockServiceTx(ctx, tx, next.ServiceID); err != nil {
			return nil, err
		}
		conflict, err := hasConflictTx(ctx, tx, next.ServiceID, next.StartTime, next.EndTime, id)
		if err != nil {
			return nil, err
		}
		if conflict {
			return nil, scheduling.ErrSlotUnavailable
		}
	}

	// bookingArgs without id and created_at matches the SET list.
	args := bookingArgs(&next)
	set := append(append([]any{}, args[1:24]...), args[25], next.ID)
	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET service_id=?, service_name=?, customer_id=?, start_time=?, end_time=?, status=?,
			base_price_cents=?, discount_cents=?, final_price_cents=?,
			customer_name=?, customer_email=?, customer_phone=?, customer_notes=?,
			source=?, payment_status=?, cancellation_reason=?, cancelled_at=?, cancelled_by=?,
			feedback_rating=?, feedback_comment=?, feedback_at=?, reminder_sent_at=?, completed_at=?,
			updated_at=?
		 WHERE id=?`, set...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return &next, nil
}

// FindRemindersDue returns pending or confirmed bookings starting in
// (from, to] that have not been reminded and were booked at least
// minNotice before their start.
func (r *BookingRepo) FindRemindersDue(ctx context.Context, from, to time.Time, minNotice time.Duration, limit int) ([]model.Booking, error) {
	return r.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE status IN ('pending','confirmed') AND reminder_sent_at IS NULL
		   AND start_time > ? AND start_time <= ?
		   AND created_at <= DATE_SUB(start_time, INTERVAL ? SECOND)
		 ORDER BY start_time, id
		 LIMIT ?`,
		from.UTC(), to.UTC(), int64(minNotice/time.Second), limit)
}

func (r *BookingRepo) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, "UPDATE bookings SET reminder_sent_at = ? WHERE id = ?", at.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(sql.ErrNoRows, "booking", id)
	}
	return nil
}
