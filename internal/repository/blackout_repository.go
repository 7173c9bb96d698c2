package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
)

// BlackoutRepo persists blackout periods. Dates are DATE columns read and
// written as YYYY-MM-DD strings.
type BlackoutRepo struct {
	db *sql.DB
}

func NewBlackoutRepo(db *sql.DB) *BlackoutRepo { return &BlackoutRepo{db: db} }

// FindBlackouts returns the blackouts of a service intersecting the
// inclusive range [fromDate, toDate].
func (r *BlackoutRepo) FindBlackouts(ctx context.Context, serviceID, fromDate, toDate string) ([]model.Blackout, error) {
	const q = `SELECT id, service_id, DATE_FORMAT(start_date, '%Y-%m-%d'), DATE_FORMAT(end_date, '%Y-%m-%d'), reason, created_at
	           FROM blackouts
	           WHERE service_id = ? AND start_date <= ? AND end_date >= ?
	           ORDER BY start_date, id`
	rows, err := r.db.QueryContext(ctx, q, serviceID, toDate, fromDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Blackout
	for rows.Next() {
		var b model.Blackout
		if err := rows.Scan(&b.ID, &b.ServiceID, &b.StartDate, &b.EndDate, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.CreatedAt = b.CreatedAt.UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BlackoutRepo) CreateBlackout(ctx context.Context, b *model.Blackout) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO blackouts (id, service_id, start_date, end_date, reason, created_at) VALUES (?,?,?,?,?,?)",
		b.ID, b.ServiceID, b.StartDate, b.EndDate, b.Reason, b.CreatedAt.UTC())
	return err
}

func (r *BlackoutRepo) DeleteBlackout(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM blackouts WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(sql.ErrNoRows, "blackout", id)
	}
	return nil
}
