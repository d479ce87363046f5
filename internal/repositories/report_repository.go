package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"smartcrm/internal/models"
)

type ReportRepository struct {
	db DBTX
}

func NewReportRepository(db DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) WithTx(tx *sql.Tx) *ReportRepository {
	return &ReportRepository{db: tx}
}

func (r *ReportRepository) Create(ctx context.Context, rep *models.LeadReport) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO lead_reports (id, lead_id, name, description, filename, uploaded_at, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, NOW(), $6)
		RETURNING uploaded_at
	`, rep.ID, rep.LeadID, rep.Name, rep.Description, rep.Filename, rep.UploadedBy).Scan(&rep.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert lead report: %w", err)
	}
	return nil
}

func (r *ReportRepository) ListByLead(ctx context.Context, leadID int) ([]models.LeadReport, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, lead_id, name, description, filename, uploaded_at, uploaded_by
		FROM lead_reports
		WHERE lead_id = $1
		ORDER BY uploaded_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.LeadReport{}
	for rows.Next() {
		var rep models.LeadReport
		if err := rows.Scan(&rep.ID, &rep.LeadID, &rep.Name, &rep.Description, &rep.Filename, &rep.UploadedAt, &rep.UploadedBy); err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (r *ReportRepository) Get(ctx context.Context, leadID int, id string) (*models.LeadReport, error) {
	var rep models.LeadReport
	err := r.db.QueryRowContext(ctx, `
		SELECT id, lead_id, name, description, filename, uploaded_at, uploaded_by
		FROM lead_reports
		WHERE id = $1 AND lead_id = $2
	`, id, leadID).Scan(&rep.ID, &rep.LeadID, &rep.Name, &rep.Description, &rep.Filename, &rep.UploadedAt, &rep.UploadedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM lead_reports WHERE id = $1`, id)
	return err
}

// FilenamesByLead lists stored object keys so they can be removed after the lead is gone.
func (r *ReportRepository) FilenamesByLead(ctx context.Context, leadID int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT filename FROM lead_reports WHERE lead_id = $1`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
