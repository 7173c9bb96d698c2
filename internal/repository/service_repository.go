package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
)

// ServiceRepo persists the service catalog. The weekly template and the
// optional offer are stored as JSON columns.
type ServiceRepo struct {
	db *sql.DB
}

func NewServiceRepo(db *sql.DB) *ServiceRepo { return &ServiceRepo{db: db} }

const serviceColumns = `id, name, description, category, duration_minutes, preparation_minutes,
	cleanup_minutes, price_cents, availability, min_advance_hours, max_advance_days,
	staff_required, is_active, offer, created_at, updated_at`

func scanService(row rowScanner) (*model.Service, error) {
	var (
		s            model.Service
		availability []byte
		offer        []byte
	)
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Category, &s.DurationMinutes, &s.PreparationMinutes,
		&s.CleanupMinutes, &s.PriceCents, &availability, &s.MinAdvanceHours, &s.MaxAdvanceDays,
		&s.StaffRequired, &s.IsActive, &offer, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(availability) > 0 {
		if err := json.Unmarshal(availability, &s.Availability); err != nil {
			return nil, fmt.Errorf("service %s availability: %w", s.ID, err)
		}
	}
	if len(offer) > 0 {
		s.Offer = &model.Offer{}
		if err := json.Unmarshal(offer, s.Offer); err != nil {
			return nil, fmt.Errorf("service %s offer: %w", s.ID, err)
		}
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

// encodeJSONColumns renders the availability and offer columns.
func encodeJSONColumns(s *model.Service) (availability []byte, offer any, err error) {
	availability, err = json.Marshal(s.Availability)
	if err != nil {
		return nil, nil, err
	}
	if s.Offer != nil {
		b, err := json.Marshal(s.Offer)
		if err != nil {
			return nil, nil, err
		}
		offer = b
	}
	return availability, offer, nil
}

func (r *ServiceRepo) FindServiceByID(ctx context.Context, id string) (*model.Service, error) {
	s, err := scanService(r.db.QueryRowContext(ctx,
		"SELECT "+serviceColumns+" FROM services WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "service", id)
	}
	return s, nil
}

// ListServices returns the catalog ordered by name.
func (r *ServiceRepo) ListServices(ctx context.Context, activeOnly bool) ([]model.Service, error) {
	q := "SELECT " + serviceColumns + " FROM services"
	if activeOnly {
		q += " WHERE is_active = TRUE"
	}
	q += " ORDER BY name, id"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *ServiceRepo) CreateService(ctx context.Context, s *model.Service) error {
	availability, offer, err := encodeJSONColumns(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO services (`+serviceColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.Name, s.Description, s.Category, s.DurationMinutes, s.PreparationMinutes,
		s.CleanupMinutes, s.PriceCents, availability, s.MinAdvanceHours, s.MaxAdvanceDays,
		s.StaffRequired, s.IsActive, offer, s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	return err
}

func (r *ServiceRepo) UpdateService(ctx context.Context, s *model.Service) error {
	availability, offer, err := encodeJSONColumns(s)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE services SET name=?, description=?, category=?, duration_minutes=?, preparation_minutes=?,
			cleanup_minutes=?, price_cents=?, availability=?, min_advance_hours=?, max_advance_days=?,
			staff_required=?, is_active=?, offer=?, updated_at=?
		 WHERE id=?`,
		s.Name, s.Description, s.Category, s.DurationMinutes, s.PreparationMinutes,
		s.CleanupMinutes, s.PriceCents, availability, s.MinAdvanceHours, s.MaxAdvanceDays,
		s.StaffRequired, s.IsActive, offer, s.UpdatedAt.UTC(), s.ID)
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows when nothing changed, so only a missing
	// row is treated as not found.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := r.FindServiceByID(ctx, s.ID); err != nil {
			return err
		}
	}
	return nil
}

// lockServiceTx takes the row lock that serializes every booking write for
// one service.
func lockServiceTx(ctx context.Context, tx *sql.Tx, serviceID string) error {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM services WHERE id = ? FOR UPDATE", serviceID).Scan(&one)
	return notFound(err, "service", serviceID)
}
