package repositories

import (
	"context"

	"smartcrm/internal/models"
)

type DesignationRepository struct {
	db DBTX
}

func NewDesignationRepository(db DBTX) *DesignationRepository {
	return &DesignationRepository{db: db}
}

func (r *DesignationRepository) List(ctx context.Context) ([]models.Designation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM designations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Designation{}
	for rows.Next() {
		var d models.Designation
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Create returns created=false when the name already exists.
func (r *DesignationRepository) Create(ctx context.Context, name string) (*models.Designation, bool, error) {
	d := models.Designation{Name: name}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO designations (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, created_at
	`, name).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &d, true, nil
}
