package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartcrm/internal/models"
)

type TargetRepository struct {
	db DBTX
}

func NewTargetRepository(db DBTX) *TargetRepository {
	return &TargetRepository{db: db}
}

const targetColumns = `
	t.id, t.name, t.type, t.target_value, t.current_value, t.assigned_to, u.full_name, t.period,
	t.context_tab, t.description, t.is_active, t.created_by, t.created_at, t.updated_at`

func scanTarget(row rowScanner) (*models.Target, error) {
	var t models.Target
	err := row.Scan(&t.ID, &t.Name, &t.Type, &t.TargetValue, &t.CurrentValue, &t.AssignedTo, &t.AssignedToName,
		&t.Period, &t.ContextTab, &t.Description, &t.IsActive, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListActive returns active targets; assignee > 0 restricts to that user. limit <= 0 means no limit.
func (r *TargetRepository) ListActive(ctx context.Context, assignee, limit int) ([]models.Target, error) {
	q := `SELECT ` + targetColumns + ` FROM targets t LEFT JOIN users u ON u.id = t.assigned_to WHERE t.is_active`
	args := []any{}
	if assignee > 0 {
		args = append(args, assignee)
		q += fmt.Sprintf(" AND t.assigned_to = $%d", len(args))
	}
	q += " ORDER BY t.created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Target{}
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *TargetRepository) GetByID(ctx context.Context, id int) (*models.Target, error) {
	q := `SELECT ` + targetColumns + ` FROM targets t LEFT JOIN users u ON u.id = t.assigned_to WHERE t.id = $1`
	t, err := scanTarget(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (r *TargetRepository) Create(ctx context.Context, t *models.Target) (int, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO targets (name, type, target_value, current_value, assigned_to, period, context_tab, description, is_active, created_by)
		VALUES ($1, $2, $3, 0, $4, $5, $6, $7, TRUE, $8)
		RETURNING id, created_at
	`, t.Name, t.Type, t.TargetValue, t.AssignedTo, t.Period, t.ContextTab, t.Description, t.CreatedBy,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert target: %w", err)
	}
	t.IsActive = true
	return t.ID, nil
}

var targetUpdatable = map[string]bool{
	"name": true, "type": true, "target_value": true, "assigned_to": true,
	"period": true, "context_tab": true, "description": true, "is_active": true,
}

// Update applies a partial update. Returns false if the target does not exist.
func (r *TargetRepository) Update(ctx context.Context, id int, fields map[string]any) (bool, error) {
	sets := []string{}
	args := []any{}
	for _, col := range sortedKeys(fields) {
		if !targetUpdatable[col] {
			return false, fmt.Errorf("target column %q is not updatable", col)
		}
		args = append(args, fields[col])
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)
	q := fmt.Sprintf("UPDATE targets SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *TargetRepository) Deactivate(ctx context.Context, id int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE targets SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *TargetRepository) SetCurrentValue(ctx context.Context, id int, value float64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE targets SET current_value = $1, updated_at = NOW() WHERE id = $2`, value, id)
	return err
}

// ---- progress aggregation over history tables

var closedStatuses = []string{"Closed", "Won", "Converted"}

// ProgressScope narrows an aggregation to one user, one period and optionally
// one lead column equal to Value.
type ProgressScope struct {
	UserID int
	Start  time.Time
	End    time.Time
	Column string // already whitelisted lead column, "" for none
	Value  string
}

func (s ProgressScope) leadFilter(alias string, args *[]any) string {
	if s.Column == "" {
		return ""
	}
	*args = append(*args, s.Value)
	col := s.Column
	if col == "system" {
		col = `"system"`
	}
	return fmt.Sprintf(" AND %s.%s = $%d", alias, col, len(*args))
}

func (r *TargetRepository) count(ctx context.Context, q string, args ...any) (float64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return float64(n), nil
}

// CountStatusReached counts distinct leads moved to status by the user.
func (r *TargetRepository) CountStatusReached(ctx context.Context, s ProgressScope, status string) (float64, error) {
	return r.count(ctx, `
		SELECT COUNT(DISTINCT lead_id)
		FROM lead_status_history
		WHERE new_status = $1 AND changed_by = $2 AND changed_at BETWEEN $3 AND $4
	`, status, s.UserID, s.Start, s.End)
}

// CountConverted counts distinct leads the user moved to a closed status.
func (r *TargetRepository) CountConverted(ctx context.Context, s ProgressScope) (float64, error) {
	args := []any{s.UserID, s.Start, s.End}
	q := `
		SELECT COUNT(DISTINCT h.lead_id)
		FROM lead_status_history h
		JOIN leads l ON l.id = h.lead_id
		WHERE h.new_status IN ('` + strings.Join(closedStatuses, "','") + `')
		  AND h.changed_by = $1 AND h.changed_at BETWEEN $2 AND $3`
	q += s.leadFilter("l", &args)
	return r.count(ctx, q, args...)
}

// CountTouched counts distinct leads with any status change by the user.
func (r *TargetRepository) CountTouched(ctx context.Context, s ProgressScope) (float64, error) {
	return r.count(ctx, `
		SELECT COUNT(DISTINCT lead_id)
		FROM lead_status_history
		WHERE changed_by = $1 AND changed_at BETWEEN $2 AND $3
	`, s.UserID, s.Start, s.End)
}

// CountFieldSet counts history rows where the user set field to value.
func (r *TargetRepository) CountFieldSet(ctx context.Context, s ProgressScope, field, value string) (float64, error) {
	return r.count(ctx, `
		SELECT COUNT(*)
		FROM lead_history
		WHERE field_name = $1 AND new_value = $2 AND changed_by = $3 AND changed_at BETWEEN $4 AND $5
	`, field, value, s.UserID, s.Start, s.End)
}

// SumRevenue adds up closing_amount values the user recorded in the period.
func (r *TargetRepository) SumRevenue(ctx context.Context, s ProgressScope) (float64, error) {
	args := []any{s.UserID, s.Start, s.End}
	q := `
		SELECT COALESCE(SUM(CAST(h.new_value AS NUMERIC(15,2))), 0)::float8
		FROM lead_history h
		JOIN leads l ON l.id = h.lead_id
		WHERE h.field_name = 'closing_amount'
		  AND h.new_value IS NOT NULL AND h.new_value <> '' AND h.new_value <> '0'
		  AND h.new_value ~ '^-?[0-9]+(\.[0-9]+)?$'
		  AND h.changed_by = $1 AND h.changed_at BETWEEN $2 AND $3`
	q += s.leadFilter("l", &args)

	var total float64
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
