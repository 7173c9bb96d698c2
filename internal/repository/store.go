package repository

import (
	"database/sql"

	"github.com/iliyamo/salon-appointment-scheduler/internal/scheduling"
)

// Store bundles the repos into the scheduling.Store the Scheduler runs on.
type Store struct {
	*ServiceRepo
	*BlackoutRepo
	*BookingRepo
	*CustomerRepo
}

func NewStore(db *sql.DB) *Store {
	customers := NewCustomerRepo(db)
	return &Store{
		ServiceRepo:  NewServiceRepo(db),
		BlackoutRepo: NewBlackoutRepo(db),
		BookingRepo:  NewBookingRepo(db, customers),
		CustomerRepo: customers,
	}
}

var _ scheduling.Store = (*Store)(nil)
