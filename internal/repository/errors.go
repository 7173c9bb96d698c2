// Package repository holds the MySQL persistence layer. Each repo wraps a
// *sql.DB; the ones that take part in booking writes also expose Tx
// variants so a single transaction can span several tables.
package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/salon-appointment-scheduler/internal/scheduling"
)

// ErrEmailExists is returned when registering an email that already has an account.
var ErrEmailExists = errors.New("email already exists")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// notFound turns sql.ErrNoRows into the domain NotFoundError.
func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &scheduling.NotFoundError{Kind: kind, ID: id}
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
