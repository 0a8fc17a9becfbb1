package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bookwell/bookwell/internal/model"
	"github.com/bookwell/bookwell/internal/schedule"
)

// CatalogRepository stores the bookable surface of a business: its services
// and staff.
type CatalogRepository struct {
	db DB
}

func NewCatalogRepository(db DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

const serviceColumns = `
	id::text, business_id::text, name, service_type, duration_minutes, capacity,
	class_days, class_start_minute, sessions_per_month, price::text, created_at`

func scanService(row pgx.Row) (model.Service, error) {
	var svc model.Service
	var classDays []int32
	err := row.Scan(
		&svc.ID,
		&svc.BusinessID,
		&svc.Name,
		&svc.Type,
		&svc.DurationMinutes,
		&svc.Capacity,
		&classDays,
		&svc.ClassStartMinute,
		&svc.SessionsPerMonth,
		&svc.Price,
		&svc.CreatedAt,
	)
	if err != nil {
		return model.Service{}, err
	}
	for _, d := range classDays {
		svc.ClassDays = append(svc.ClassDays, int(d))
	}
	return svc, nil
}

func (r *CatalogRepository) CreateService(ctx context.Context, svc *model.Service) (string, error) {
	if err := svc.Validate(); err != nil {
		return "", err
	}
	classDays := make([]int32, 0, len(svc.ClassDays))
	for _, d := range svc.ClassDays {
		classDays = append(classDays, int32(d))
	}
	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO business_services
			(business_id, name, service_type, duration_minutes, capacity,
			 class_days, class_start_minute, sessions_per_month, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id::text
	`, svc.BusinessID, svc.Name, svc.Type, svc.DurationMinutes, svc.Capacity,
		classDays, svc.ClassStartMinute, svc.SessionsPerMonth, svc.Price).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *CatalogRepository) ServiceByID(ctx context.Context, businessID, serviceID string) (model.Service, error) {
	return scanService(r.db.QueryRow(ctx, `
		SELECT `+serviceColumns+`
		FROM business_services
		WHERE id = $1 AND business_id = $2
	`, serviceID, businessID))
}

func (r *CatalogRepository) ListServices(ctx context.Context, businessID string) ([]model.Service, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+serviceColumns+`
		FROM business_services
		WHERE business_id = $1
		ORDER BY created_at ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return services, nil
}

// CreateStaff inserts the staff member and seeds the default weekly schedule
// in the same transaction so a new staff member is immediately bookable.
func (r *CatalogRepository) CreateStaff(ctx context.Context, st *model.Staff) (string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id := uuid.NewString()
	if _, err := tx.Exec(ctx, `
		INSERT INTO staff (id, business_id, name, is_active)
		VALUES ($1, $2, $3, TRUE)
	`, id, st.BusinessID, st.Name); err != nil {
		return "", err
	}

	for _, w := range schedule.DefaultWeek(id) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO staff_availability (staff_id, weekday, is_available, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)
		`, id, w.Weekday, w.Available, w.StartMinute, w.EndMinute); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (r *CatalogRepository) StaffByID(ctx context.Context, businessID, staffID string) (model.Staff, error) {
	var st model.Staff
	err := r.db.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, is_active, created_at
		FROM staff
		WHERE id = $1 AND business_id = $2
	`, staffID, businessID).Scan(&st.ID, &st.BusinessID, &st.Name, &st.IsActive, &st.CreatedAt)
	if err != nil {
		return model.Staff{}, err
	}
	return st, nil
}

func (r *CatalogRepository) ListStaff(ctx context.Context, businessID string) ([]model.Staff, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, business_id::text, name, is_active, created_at
		FROM staff
		WHERE business_id = $1 AND is_active
		ORDER BY created_at ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []model.Staff
	for rows.Next() {
		var st model.Staff
		if err := rows.Scan(&st.ID, &st.BusinessID, &st.Name, &st.IsActive, &st.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, st)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return members, nil
}

// DeactivateStaff soft-deletes: the staff member stops being offered but
// existing appointments keep their reference.
func (r *CatalogRepository) DeactivateStaff(ctx context.Context, businessID, staffID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE staff SET is_active = FALSE WHERE id = $1 AND business_id = $2
	`, staffID, businessID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
