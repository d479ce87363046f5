package repositories

import (
	"context"
	"fmt"

	"smartcrm/internal/models"
)

type DashboardRepository struct {
	db DBTX
}

func NewDashboardRepository(db DBTX) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// scope builds the role filter; userID 0 means no restriction.
func scope(userID int, args []any) (string, []any) {
	if userID <= 0 {
		return "", args
	}
	args = append(args, userID)
	n := len(args)
	return fmt.Sprintf(" AND (created_by = $%d OR assigned_to = $%d)", n, n), args
}

func (r *DashboardRepository) CountLeads(ctx context.Context, userID int) (int, error) {
	cond, args := scope(userID, nil)
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM leads WHERE 1=1"+cond, args...).Scan(&n)
	return n, err
}

// CountFollowUpsBetween counts leads with a follow-up in [from, to] (dates, inclusive).
func (r *DashboardRepository) CountFollowUpsBetween(ctx context.Context, userID int, from, to string) (int, error) {
	cond, args := scope(userID, []any{from, to})
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM leads WHERE next_follow_up_date BETWEEN $1 AND $2"+cond, args...,
	).Scan(&n)
	return n, err
}

func (r *DashboardRepository) CountFollowUpsBefore(ctx context.Context, userID int, day string) (int, error) {
	cond, args := scope(userID, []any{day})
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM leads WHERE next_follow_up_date < $1"+cond, args...,
	).Scan(&n)
	return n, err
}

// CountAging counts open leads whose lead_date is older than days.
func (r *DashboardRepository) CountAging(ctx context.Context, userID, days int) (int, error) {
	cond, args := scope(userID, []any{days})
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM leads WHERE CURRENT_DATE - lead_date > $1 AND lead_status NOT IN ('Won', 'Lost', 'Closed')"+cond, args...,
	).Scan(&n)
	return n, err
}

func (r *DashboardRepository) LeadsByStatus(ctx context.Context, userID int) (map[string]int, error) {
	cond, args := scope(userID, nil)
	rows, err := r.db.QueryContext(ctx,
		"SELECT lead_status, COUNT(*) FROM leads WHERE 1=1"+cond+" GROUP BY lead_status", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *DashboardRepository) ValueMetrics(ctx context.Context, userID int) (models.ValueMetrics, error) {
	cond, args := scope(userID, nil)
	var m models.ValueMetrics
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(approx_value), 0)::float8,
		       COALESCE(SUM(negotiated_value), 0)::float8,
		       COALESCE(SUM(closing_amount), 0)::float8
		FROM leads WHERE 1=1`+cond, args...,
	).Scan(&m.TotalApproxValue, &m.TotalNegotiatedValue, &m.TotalClosingAmount)
	return m, err
}
