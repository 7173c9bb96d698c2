package repository

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
	"github.com/iliyamo/salon-appointment-scheduler/internal/scheduling"
)

var (
	start = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	end   = start.Add(80 * time.Minute)
)

func columns(list string) []string {
	parts := strings.Split(list, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func sampleBooking() *model.Booking {
	return &model.Booking{
		ID:            "bk-1",
		ServiceID:     "svc-1",
		ServiceName:   "Signature Facial",
		StartTime:     start,
		EndTime:       end,
		Status:        model.StatusPending,
		Pricing:       model.Pricing{BasePriceCents: 8500, FinalPriceCents: 8500},
		Customer:      model.CustomerInfo{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "555-0100"},
		Source:        model.SourceWebsite,
		PaymentStatus: model.PaymentPending,
		CreatedAt:     start.Add(-48 * time.Hour),
		UpdatedAt:     start.Add(-48 * time.Hour),
	}
}

func bookingRows(bs ...*model.Booking) *sqlmock.Rows {
	rows := sqlmock.NewRows(columns(bookingColumns))
	for _, b := range bs {
		vals := make([]driver.Value, 0, 26)
		for _, a := range bookingArgs(b) {
			switch v := a.(type) {
			case model.BookingStatus:
				vals = append(vals, string(v))
			case model.BookingSource:
				vals = append(vals, string(v))
			case model.PaymentStatus:
				vals = append(vals, string(v))
			case int:
				vals = append(vals, int64(v))
			default:
				vals = append(vals, v)
			}
		}
		rows.AddRow(vals...)
	}
	return rows
}

func TestInsertBookingIfNoConflict_RejectsOverlap(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db, NewCustomerRepo(db))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM services WHERE id = \? FOR UPDATE`).
		WithArgs("svc-1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings`).
		WithArgs("svc-1", end, start, "").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err = repo.InsertBookingIfNoConflict(context.Background(), sampleBooking())
	assert.ErrorIs(t, err, scheduling.ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBookingIfNoConflict_CreatesGuestCustomer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db, NewCustomerRepo(db))
	repo.now = func() time.Time { return start.Add(-48 * time.Hour) }

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM services WHERE id = \? FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM customers WHERE email = \? AND user_id IS NULL`).
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows(columns(customerColumns)))
	mock.ExpectQuery(`FROM customers WHERE phone = \? AND user_id IS NULL`).
		WithArgs("555-0100").
		WillReturnRows(sqlmock.NewRows(columns(customerColumns)))
	mock.ExpectExec(`INSERT INTO customers`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO bookings`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b := sampleBooking()
	require.NoError(t, repo.InsertBookingIfNoConflict(context.Background(), b))
	assert.NotEmpty(t, b.CustomerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBookingIfNoConflict_ReusesExistingCustomer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db, NewCustomerRepo(db))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM services`).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM customers WHERE email = \?`).
		WillReturnRows(sqlmock.NewRows(columns(customerColumns)).
			AddRow("cus-7", nil, "Ada Lovelace", "ada@example.com", "555-0100", start))
	mock.ExpectExec(`INSERT INTO bookings`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b := sampleBooking()
	require.NoError(t, repo.InsertBookingIfNoConflict(context.Background(), b))
	assert.Equal(t, "cus-7", b.CustomerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBookingIfNoConflict_UnknownService(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db, NewCustomerRepo(db))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM services`).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectRollback()

	err = repo.InsertBookingIfNoConflict(context.Background(), sampleBooking())
	assert.ErrorIs(t, err, scheduling.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBooking_RechecksConflictWhenMoved(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db, NewCustomerRepo(db))
	current := sampleBooking()
	current.CustomerID = "cus-1"
	moved := start.Add(30 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings WHERE id = \? FOR UPDATE`).
		WithArgs("bk-1").
		WillReturnRows(bookingRows(current))
	mock.ExpectQuery(`SELECT 1 FROM services WHERE id = \? FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings`).
		WithArgs("svc-1", moved.Add(80*time.Minute), moved, "bk-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err = repo.UpdateBooking(context.Background(), "bk-1", func(b *model.Booking) error {
		b.StartTime = moved
		b.EndTime = moved.Add(80 * time.Minute)
		return nil
	})
	assert.ErrorIs(t, err, scheduling.ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBooking_StatusChangeSkipsConflictCheck(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db, NewCustomerRepo(db))
	current := sampleBooking()
	current.CustomerID = "cus-1"

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings WHERE id = \? FOR UPDATE`).
		WillReturnRows(bookingRows(current))
	mock.ExpectExec(`UPDATE bookings SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.UpdateBooking(context.Background(), "bk-1", func(b *model.Booking) error {
		b.Status = model.StatusConfirmed
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.Equal(t, current.Pricing, got.Pricing)
	assert.Equal(t, "cus-1", got.CustomerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBooking_MutatorErrorWritesNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db, NewCustomerRepo(db))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings WHERE id = \? FOR UPDATE`).
		WillReturnRows(bookingRows(sampleBooking()))
	mock.ExpectRollback()

	_, err = repo.UpdateBooking(context.Background(), "bk-1", func(*model.Booking) error {
		return scheduling.ErrFeedbackAlreadySubmitted
	})
	assert.ErrorIs(t, err, scheduling.ErrFeedbackAlreadySubmitted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindBookingByID_ScansNullableColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db, NewCustomerRepo(db))

	b := sampleBooking()
	b.Status = model.StatusCompleted
	done := end
	b.CompletedAt = &done
	b.Feedback = &model.Feedback{Rating: 4, Comment: "great", SubmittedAt: end.Add(time.Hour)}

	mock.ExpectQuery(`FROM bookings WHERE id = \?`).
		WithArgs("bk-1").
		WillReturnRows(bookingRows(b))

	got, err := repo.FindBookingByID(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.Feedback)
	assert.Equal(t, 4, got.Feedback.Rating)
	assert.Equal(t, "great", got.Feedback.Comment)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(end))
	assert.Nil(t, got.CancelledAt)
	assert.Nil(t, got.ReminderSentAt)

	mock.ExpectQuery(`FROM bookings WHERE id = \?`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(columns(bookingColumns)))
	_, err = repo.FindBookingByID(context.Background(), "missing")
	assert.ErrorIs(t, err, scheduling.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBookings_BuildsFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db, NewCustomerRepo(db))

	mock.ExpectQuery(`FROM bookings WHERE service_id = \? AND status = \? AND start_time >= \? ORDER BY start_time, id LIMIT \?`).
		WithArgs("svc-1", "confirmed", start, 50).
		WillReturnRows(bookingRows(sampleBooking()))

	got, err := repo.ListBookings(context.Background(), model.BookingFilter{
		ServiceID: "svc-1",
		Status:    model.StatusConfirmed,
		From:      start,
		Limit:     50,
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReminderSent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db, NewCustomerRepo(db))

	mock.ExpectExec(`UPDATE bookings SET reminder_sent_at = \? WHERE id = \?`).
		WithArgs(start, "bk-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkReminderSent(context.Background(), "bk-1", start))

	mock.ExpectExec(`UPDATE bookings SET reminder_sent_at`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.MarkReminderSent(context.Background(), "gone", start), scheduling.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
