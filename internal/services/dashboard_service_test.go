package services

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcrm/internal/authz"
	"smartcrm/internal/models"
	"smartcrm/internal/repositories"
)

func newDashboardService(t *testing.T) (*DashboardService, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	settings := NewSettingsService(newMemSettings(map[string]string{
		models.SettingStatusPercentages: `{"New": 10, "Qualified": 40, "Won": 100}`,
	}))
	svc := NewDashboardService(
		repositories.NewDashboardRepository(db),
		repositories.NewLeadRepository(db),
		repositories.NewTargetRepository(db),
		settings,
	)
	svc.now = func() time.Time { return refNow }
	return svc, mock, db
}

func countRow(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func TestDashboardStatsScopedToOwnLeads(t *testing.T) {
	svc, mock, db := newDashboardService(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM leads WHERE 1=1 AND (created_by = $1 OR assigned_to = $1)")).
		WithArgs(7).WillReturnRows(countRow(5))
	mock.ExpectQuery(regexp.QuoteMeta("BETWEEN $1 AND $2 AND (created_by = $3 OR assigned_to = $3)")).
		WithArgs("2025-05-14", "2025-05-21", 7).WillReturnRows(countRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("next_follow_up_date < $1 AND (created_by = $2 OR assigned_to = $2)")).
		WithArgs("2025-05-14", 7).WillReturnRows(countRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("CURRENT_DATE - lead_date > $1")).
		WithArgs(30, 7).WillReturnRows(countRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY lead_status")).
		WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"lead_status", "count"}).AddRow("Qualified", 5))
	mock.ExpectQuery(regexp.QuoteMeta("SUM(approx_value)")).
		WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"a", "n", "c"}).AddRow(100.0, 0.0, 0.0))
	mock.ExpectQuery(regexp.QuoteMeta("(l.created_by = $1 OR l.assigned_to = $1) ORDER BY l.created_at DESC LIMIT $2")).
		WithArgs(7, dashboardRecent).
		WillReturnRows(leadFixture{id: 12, leadID: "CS1000000012", status: "Qualified", createdBy: 7, assignedTo: 7}.row())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.is_active AND t.assigned_to = $1 ORDER BY t.created_at DESC LIMIT $2")).
		WithArgs(7, dashboardTargets).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	st, err := svc.Stats(context.Background(), sales)
	require.NoError(t, err)
	assert.Equal(t, 5, st.TotalLeads)
	assert.Equal(t, 2, st.UpcomingFollowups)
	assert.Equal(t, 1, st.MissedFollowups)
	assert.Equal(t, 3, st.AgingAlerts)
	assert.Equal(t, map[string]int{"Qualified": 5}, st.LeadsByStatus)
	require.Len(t, st.RecentLeads, 1)
	assert.Equal(t, 13, st.RecentLeads[0].LeadAging)
	assert.Equal(t, 40, st.RecentLeads[0].LeadPercentage, "zero percentage comes from the status mapping")
	assert.Empty(t, st.Targets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDashboardStatsAdminUnscoped(t *testing.T) {
	svc, mock, db := newDashboardService(t)
	defer db.Close()
	admin := &authz.Subject{UserID: 1, Role: authz.RoleAdmin}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM leads WHERE 1=1") + "$").WithoutArgs().WillReturnRows(countRow(40))
	mock.ExpectQuery(regexp.QuoteMeta("BETWEEN $1 AND $2") + "$").WithArgs("2025-05-14", "2025-05-21").WillReturnRows(countRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("next_follow_up_date < $1") + "$").WithArgs("2025-05-14").WillReturnRows(countRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("'Closed')") + "$").WithArgs(30).WillReturnRows(countRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 GROUP BY lead_status")).WithoutArgs().
		WillReturnRows(sqlmock.NewRows([]string{"lead_status", "count"}))
	mock.ExpectQuery(regexp.QuoteMeta("SUM(approx_value)")).WithoutArgs().
		WillReturnRows(sqlmock.NewRows([]string{"a", "n", "c"}).AddRow(0.0, 0.0, 0.0))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 ORDER BY l.created_at DESC LIMIT $1")).
		WithArgs(dashboardRecent).
		WillReturnRows(leadFixture{id: 3, leadID: "CS1000000003", status: "Won", percentage: 70, createdBy: 2, assignedTo: 2}.row())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.is_active ORDER BY t.created_at DESC LIMIT $1")).
		WithArgs(dashboardTargets).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	st, err := svc.Stats(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, 40, st.TotalLeads)
	require.Len(t, st.RecentLeads, 1)
	assert.Equal(t, 70, st.RecentLeads[0].LeadPercentage, "stored percentage is kept")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPercentOf(t *testing.T) {
	assert.Equal(t, 33.33, percentOf(1, 3))
	assert.Equal(t, 0.0, percentOf(5, 0))
	assert.Equal(t, 150.0, percentOf(3, 2))
}
