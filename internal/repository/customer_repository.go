package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
)

// CustomerRepo persists customers. Guests are matched by email first and
// phone second so repeat bookings land on one record; account-linked
// records are reached only through the account.
type CustomerRepo struct {
	db *sql.DB
}

func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

const customerColumns = "id, user_id, name, email, phone, created_at"

func scanCustomer(row rowScanner) (*model.Customer, error) {
	var (
		c      model.Customer
		userID sql.NullInt64
	)
	if err := row.Scan(&c.ID, &userID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		uid := uint64(userID.Int64)
		c.UserID = &uid
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// ResolveGuestTx returns the guest customer matching info by email, then
// phone, creating one when neither matches. Records linked to an account
// are never matched, so a guest booking cannot land on someone's account.
// The matched row is locked.
func (r *CustomerRepo) ResolveGuestTx(ctx context.Context, tx *sql.Tx, info model.CustomerInfo, now time.Time) (*model.Customer, error) {
	email := strings.ToLower(strings.TrimSpace(info.Email))
	phone := strings.TrimSpace(info.Phone)
	for _, lookup := range []struct{ column, value string }{{"email", email}, {"phone", phone}} {
		if lookup.value == "" {
			continue
		}
		c, err := scanCustomer(tx.QueryRowContext(ctx,
			"SELECT "+customerColumns+" FROM customers WHERE "+lookup.column+" = ? AND user_id IS NULL ORDER BY created_at LIMIT 1 FOR UPDATE",
			lookup.value))
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	c := &model.Customer{ID: uuid.NewString(), Name: strings.TrimSpace(info.Name), Email: email, Phone: phone, CreatedAt: now.UTC()}
	_, err := tx.ExecContext(ctx,
		"INSERT INTO customers (id, user_id, name, email, phone, created_at) VALUES (?,NULL,?,?,?,?)",
		c.ID, c.Name, c.Email, c.Phone, c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CustomerForUser returns the customer linked to userID. On first use it
// adopts the unlinked guest record carrying accountEmail, or creates one.
// accountEmail is the address stored on the account; contact details typed
// into a booking never decide which record an account owns.
func (r *CustomerRepo) CustomerForUser(ctx context.Context, userID uint64, accountEmail string, info model.CustomerInfo) (*model.Customer, error) {
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

	c, err := scanCustomer(tx.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE user_id = ? LIMIT 1 FOR UPDATE", userID))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(accountEmail))
	c, err = scanCustomer(tx.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE email = ? AND user_id IS NULL ORDER BY created_at LIMIT 1 FOR UPDATE",
		email))
	switch {
	case err == nil:
		_, err = tx.ExecContext(ctx, "UPDATE customers SET user_id = ? WHERE id = ?", userID, c.ID)
	case errors.Is(err, sql.ErrNoRows):
		c = &model.Customer{
			ID:        uuid.NewString(),
			Name:      strings.TrimSpace(info.Name),
			Email:     email,
			Phone:     strings.TrimSpace(info.Phone),
			CreatedAt: time.Now().UTC(),
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO customers (id, user_id, name, email, phone, created_at) VALUES (?,?,?,?,?,?)",
			c.ID, userID, c.Name, c.Email, c.Phone, c.CreatedAt)
	}
	if isDuplicate(err) {
		// A concurrent first booking of the same account won the link.
		_ = tx.Rollback()
		return r.FindCustomerByUserID(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	uid := userID
	c.UserID = &uid
	return c, nil
}

func (r *CustomerRepo) FindCustomerByUserID(ctx context.Context, userID uint64) (*model.Customer, error) {
	c, err := scanCustomer(r.db.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE user_id = ? LIMIT 1", userID))
	if err != nil {
		return nil, notFound(err, "customer", strconv.FormatUint(userID, 10))
	}
	return c, nil
}
