package repositories

import (
	"context"
	"fmt"

	"smartcrm/internal/models"
)

type AuditRepository struct {
	db DBTX
}

func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, e *models.AuditLog) error {
	var details any
	if len(e.Details) > 0 {
		details = []byte(e.Details)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			user_id, username, action, resource_type, resource_id, method, path,
			ip_address, user_agent, status_code, success, details, session_token, description
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		e.UserID, e.Username, e.Action, e.ResourceType, e.ResourceID, e.Method, e.Path,
		e.IPAddress, e.UserAgent, e.StatusCode, e.Success, details, e.SessionToken, e.Description,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

const auditColumns = `
	id, user_id, username, action, resource_type, resource_id, method, path,
	ip_address, user_agent, status_code, success, details, description, created_at`

func scanAudit(row rowScanner) (*models.AuditLog, error) {
	var (
		e       models.AuditLog
		details []byte
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Username, &e.Action, &e.ResourceType, &e.ResourceID, &e.Method, &e.Path,
		&e.IPAddress, &e.UserAgent, &e.StatusCode, &e.Success, &details, &e.Description, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		e.Details = details
	}
	return &e, nil
}

// List applies the filter and returns one page plus the total.
func (r *AuditRepository) List(ctx context.Context, f models.AuditFilter) ([]models.AuditLog, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	if f.UserID > 0 {
		args = append(args, f.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		where += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if f.ResourceType != "" {
		args = append(args, f.ResourceType)
		where += fmt.Sprintf(" AND resource_type = $%d", len(args))
	}
	if f.DateFrom != "" {
		args = append(args, f.DateFrom)
		where += fmt.Sprintf(" AND created_at::date >= $%d", len(args))
	}
	if f.DateTo != "" {
		args = append(args, f.DateTo)
		where += fmt.Sprintf(" AND created_at::date <= $%d", len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	n := len(args)
	q := "SELECT " + auditColumns + " FROM audit_logs" + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.AuditLog{}
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+auditColumns+" FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.AuditLog{}
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
