package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcrm/internal/authz"
	"smartcrm/internal/models"
	"smartcrm/internal/notify"
	"smartcrm/internal/repositories"
)

const leadColumnCount = 53

type leadFixture struct {
	id         int
	leadID     string
	status     string
	percentage int
	createdBy  int
	assignedTo int
}

// row lays values out in LeadRepository's select order.
func (f leadFixture) row() *sqlmock.Rows {
	cols := make([]string, leadColumnCount)
	for i := range cols {
		cols[i] = fmt.Sprintf("c%d", i)
	}
	vals := make([]driver.Value, leadColumnCount)
	vals[0] = f.id
	vals[1] = f.leadID
	vals[2] = "2025-05-01"
	vals[8] = "Acme Corp"
	vals[27] = f.status
	vals[45] = 0
	vals[46] = f.percentage
	vals[47] = f.createdBy
	vals[48] = f.assignedTo
	vals[49] = refNow
	return sqlmock.NewRows(cols).AddRow(vals...)
}

func snapshotRow(values map[string]string) *sqlmock.Rows {
	cols := make([]string, len(models.LeadFields))
	vals := make([]driver.Value, len(models.LeadFields))
	for i, f := range models.LeadFields {
		cols[i] = f.Key
		if v, ok := values[f.Key]; ok {
			vals[i] = v
		}
	}
	return sqlmock.NewRows(cols).AddRow(vals...)
}

func newLeadService(t *testing.T, users *mockUserRepo) (*leadService, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	settings := NewSettingsService(newMemSettings(map[string]string{
		models.SettingStatusPercentages: `{"New": 10, "Qualified": 40, "Won": 100}`,
	}))
	svc := NewLeadService(db,
		repositories.NewLeadRepository(db),
		repositories.NewReportRepository(db),
		users, settings, nil, nil, nil,
	).(*leadService)
	svc.now = func() time.Time { return refNow }
	return svc, mock, db
}

var sales = &authz.Subject{UserID: 7, Username: "asha", FullName: "Asha K", Role: authz.RoleSales}

func TestLeadUpdateStatusChange(t *testing.T) {
	svc, mock, db := newLeadService(t, &mockUserRepo{})
	defer db.Close()
	lead := leadFixture{id: 12, leadID: "CS1000000012", status: "New", percentage: 10, createdBy: 7, assignedTo: 7}

	mock.ExpectQuery(regexp.QuoteMeta("FROM leads l LEFT JOIN users cb")).WithArgs(12).WillReturnRows(lead.row())
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM leads WHERE id = $1 FOR UPDATE")).WithArgs(12).
		WillReturnRows(snapshotRow(map[string]string{
			"lead_date": "2025-05-01", "company_name": "Acme Corp", "lead_status": "New", "lead_percentage": "10",
		}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lead_status_history")).
		WithArgs(12, "New", "Qualified", "call went well", 7).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET lead_status = $1, remarks = $2, lead_percentage = $3, updated_at = NOW() WHERE id = $4")).
		WithArgs("Qualified", "call went well", 40, 12).
		WillReturnResult(sqlmock.NewResult(0, 1))

	history := []struct {
		field, old, new, desc string
	}{
		{"lead_status", "New", "Qualified", "Changed Lead Status from 'New' to 'Qualified'"},
		{"remarks", "", "call went well", "Changed Remarks from '' to 'call went well'"},
		{"lead_percentage", "10", "40", "Changed Lead Percentage from '10' to '40'"},
	}
	for _, h := range history {
		var old driver.Value
		if h.old != "" {
			old = h.old
		}
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lead_history")).
			WithArgs(12, h.field, old, h.new, 7).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lead_activities")).
			WithArgs(12, "field_update", h.desc, 7).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()
	lead.status, lead.percentage = "Qualified", 40
	mock.ExpectQuery(regexp.QuoteMeta("FROM leads l LEFT JOIN users cb")).WithArgs(12).WillReturnRows(lead.row())

	got, err := svc.Update(context.Background(), sales, 12, map[string]any{
		"lead_status": "Qualified",
		"remarks":     "call went well",
	})
	require.NoError(t, err)
	assert.Equal(t, "Qualified", got.LeadStatus)
	assert.Equal(t, 40, got.LeadPercentage)
	assert.Equal(t, 13, got.LeadAging)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadUpdateNoChanges(t *testing.T) {
	svc, mock, db := newLeadService(t, &mockUserRepo{})
	defer db.Close()
	lead := leadFixture{id: 12, leadID: "CS1000000012", status: "New", percentage: 10, createdBy: 7}

	mock.ExpectQuery(regexp.QuoteMeta("FROM leads l LEFT JOIN users cb")).WithArgs(12).WillReturnRows(lead.row())
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs(12).
		WillReturnRows(snapshotRow(map[string]string{"city": "Pune", "lead_status": "New"}))
	mock.ExpectRollback()

	_, err := svc.Update(context.Background(), sales, 12, map[string]any{"city": "Pune"})
	assert.ErrorIs(t, err, ErrNoChanges)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadAccessIsScoped(t *testing.T) {
	svc, mock, db := newLeadService(t, &mockUserRepo{})
	defer db.Close()
	lead := leadFixture{id: 30, leadID: "CS1000000030", status: "New", createdBy: 2, assignedTo: 3}

	mock.ExpectQuery(regexp.QuoteMeta("FROM leads l LEFT JOIN users cb")).WithArgs(30).WillReturnRows(lead.row())
	_, err := svc.Update(context.Background(), sales, 30, map[string]any{"city": "Pune"})
	assert.ErrorIs(t, err, ErrForbidden)

	mock.ExpectQuery(regexp.QuoteMeta("FROM leads l LEFT JOIN users cb")).WithArgs(30).WillReturnRows(lead.row())
	_, err = svc.Delete(context.Background(), sales, 30)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadCreateValidation(t *testing.T) {
	svc, _, db := newLeadService(t, &mockUserRepo{})
	defer db.Close()

	_, err := svc.Create(context.Background(), sales, map[string]any{"company_name": "Acme"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "Missing required fields: lead_date, lead_source")
}

func TestLeadCreateUnknownAssignee(t *testing.T) {
	users := &mockUserRepo{}
	svc, _, db := newLeadService(t, users)
	defer db.Close()

	in := map[string]any{"assigned_to": float64(99)}
	for _, k := range models.RequiredLeadFields {
		in[k] = "x"
	}
	in["lead_date"] = "2025-05-01"
	users.On("GetByID", context.Background(), 99).Return(nil, nil)

	_, err := svc.Create(context.Background(), sales, in)
	assert.ErrorIs(t, err, ErrValidation)
	users.AssertExpectations(t)
}

func TestResolveLeadRef(t *testing.T) {
	svc, mock, db := newLeadService(t, &mockUserRepo{})
	defer db.Close()

	id, err := svc.Resolve(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM leads WHERE lead_id = $1")).
		WithArgs("CS1000000042").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	id, err = svc.Resolve(context.Background(), "CS1000000042")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM leads WHERE lead_id = $1")).
		WithArgs("CS404").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = svc.Resolve(context.Background(), "CS404")
	assert.ErrorIs(t, err, ErrNotFound)
}

type recordingMessenger struct {
	chats []int64
	texts []string
}

func (m *recordingMessenger) SendMessage(chatID int64, text string) error {
	m.chats = append(m.chats, chatID)
	m.texts = append(m.texts, text)
	return nil
}

// expectHistory expects one history row plus its activity per changed field, in field order.
func expectHistory(mock sqlmock.Sqlmock, leadID int, rows map[string][2]string) {
	for _, f := range models.LeadFields {
		r, ok := rows[f.Key]
		if !ok {
			continue
		}
		var old driver.Value
		if r[0] != "" {
			old = r[0]
		}
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lead_history")).
			WithArgs(leadID, f.Key, old, r[1], 7).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lead_activities")).
			WithArgs(leadID, "field_update", fmt.Sprintf("Changed %s from '%s' to '%s'", f.Label, r[0], r[1]), 7).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
}

func TestLeadCreate(t *testing.T) {
	users := &mockUserRepo{}
	svc, mock, db := newLeadService(t, users)
	defer db.Close()
	msgr := &recordingMessenger{}
	svc.notifier = notify.New(nil, msgr)

	chat := int64(4242)
	users.On("GetByID", context.Background(), 9).
		Return(&models.User{ID: 9, FullName: "Ravi S", TelegramChatID: &chat}, nil)

	input := map[string]any{"assigned_to": float64(9)}
	provided := map[string]string{"assigned_to": "9"}
	for _, k := range models.RequiredLeadFields {
		input[k] = k + " value"
		provided[k] = k + " value"
	}
	input["lead_date"], provided["lead_date"] = "2025-05-01", "2025-05-01"
	input["company_name"], provided["company_name"] = "Acme Corp", "Acme Corp"
	input["customer_name"], provided["customer_name"] = "Priya M", "Priya M"

	stored := map[string]any{
		"lead_owner":              "Ravi S",
		"lead_status":             "New",
		"method_of_communication": "Email",
		"lead_percentage":         10,
		"assigned_to":             9,
	}
	for k, v := range provided {
		if _, ok := stored[k]; !ok {
			stored[k] = v
		}
	}
	cols := []string{"lead_id"}
	args := []driver.Value{"CS1000000042"}
	for _, f := range models.LeadFields {
		if v, ok := stored[f.Key]; ok {
			cols = append(cols, f.Column())
			args = append(args, v)
		}
	}
	cols = append(cols, "lead_aging", "created_by")
	args = append(args, 13, 7)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext('leads.lead_id'))")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(CAST(substr(lead_id, $2) AS BIGINT))")).
		WithArgs("CS%", 3).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(1000000041)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO leads (" + strings.Join(cols, ", ") + ", created_at, updated_at)")).
		WithArgs(args...).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(31))
	for _, f := range models.LeadFields {
		v, ok := provided[f.Key]
		if !ok {
			continue
		}
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lead_history")).
			WithArgs(31, f.Key, nil, v, 7).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lead_status_history")).
		WithArgs(31, nil, "New", "Lead created", 7).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lead_activities")).
		WithArgs(31, "created", "Lead created: Acme Corp - Priya M", 7).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	lead := leadFixture{id: 31, leadID: "CS1000000042", status: "New", percentage: 10, createdBy: 7, assignedTo: 9}
	mock.ExpectQuery(regexp.QuoteMeta("FROM leads l LEFT JOIN users cb")).WithArgs(31).WillReturnRows(lead.row())

	got, err := svc.Create(context.Background(), sales, input)
	require.NoError(t, err)
	assert.Equal(t, "CS1000000042", got.LeadID)
	assert.Equal(t, 10, got.LeadPercentage)
	assert.NoError(t, mock.ExpectationsWereMet())

	require.Equal(t, []int64{4242}, msgr.chats)
	assert.Contains(t, msgr.texts[0], "CS1000000042")
	assert.Contains(t, msgr.texts[0], "Asha K")
	users.AssertExpectations(t)
}

func TestLeadUpdateSetsCloserDateAtFullPercentage(t *testing.T) {
	svc, mock, db := newLeadService(t, &mockUserRepo{})
	defer db.Close()
	lead := leadFixture{id: 12, leadID: "CS1000000012", status: "Qualified", percentage: 40, createdBy: 7}

	mock.ExpectQuery(regexp.QuoteMeta("FROM leads l LEFT JOIN users cb")).WithArgs(12).WillReturnRows(lead.row())
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs(12).
		WillReturnRows(snapshotRow(map[string]string{"lead_status": "Qualified", "lead_percentage": "40"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lead_status_history")).
		WithArgs(12, "Qualified", "Won", nil, 7).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET lead_status = $1, lead_closer_date = $2, lead_percentage = $3, updated_at = NOW() WHERE id = $4")).
		WithArgs("Won", "2025-05-14", 100, 12).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectHistory(mock, 12, map[string][2]string{
		"lead_status":      {"Qualified", "Won"},
		"lead_closer_date": {"", "2025-05-14"},
		"lead_percentage":  {"40", "100"},
	})
	mock.ExpectCommit()
	lead.status, lead.percentage = "Won", 100
	mock.ExpectQuery(regexp.QuoteMeta("FROM leads l LEFT JOIN users cb")).WithArgs(12).WillReturnRows(lead.row())

	_, err := svc.Update(context.Background(), sales, 12, map[string]any{"lead_status": "Won"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadUpdateExplicitPercentageWins(t *testing.T) {
	svc, mock, db := newLeadService(t, &mockUserRepo{})
	defer db.Close()
	lead := leadFixture{id: 12, leadID: "CS1000000012", status: "Qualified", percentage: 40, createdBy: 7}

	mock.ExpectQuery(regexp.QuoteMeta("FROM leads l LEFT JOIN users cb")).WithArgs(12).WillReturnRows(lead.row())
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs(12).
		WillReturnRows(snapshotRow(map[string]string{"lead_status": "Qualified", "lead_percentage": "40"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lead_status_history")).
		WithArgs(12, "Qualified", "Won", nil, 7).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET lead_status = $1, lead_percentage = $2, updated_at = NOW() WHERE id = $3")).
		WithArgs("Won", 90, 12).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectHistory(mock, 12, map[string][2]string{
		"lead_status":     {"Qualified", "Won"},
		"lead_percentage": {"40", "90"},
	})
	mock.ExpectCommit()
	lead.status, lead.percentage = "Won", 90
	mock.ExpectQuery(regexp.QuoteMeta("FROM leads l LEFT JOIN users cb")).WithArgs(12).WillReturnRows(lead.row())

	got, err := svc.Update(context.Background(), sales, 12, map[string]any{"lead_status": "Won", "lead_percentage": float64(90)})
	require.NoError(t, err)
	assert.Equal(t, 90, got.LeadPercentage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadUpdateReassignNotifies(t *testing.T) {
	users := &mockUserRepo{}
	svc, mock, db := newLeadService(t, users)
	defer db.Close()
	msgr := &recordingMessenger{}
	svc.notifier = notify.New(nil, msgr)

	chat := int64(9090)
	users.On("GetByID", context.Background(), 9).
		Return(&models.User{ID: 9, FullName: "Ravi S", TelegramChatID: &chat}, nil)
	lead := leadFixture{id: 12, leadID: "CS1000000012", status: "New", percentage: 10, createdBy: 7, assignedTo: 7}

	mock.ExpectQuery(regexp.QuoteMeta("FROM leads l LEFT JOIN users cb")).WithArgs(12).WillReturnRows(lead.row())
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs(12).
		WillReturnRows(snapshotRow(map[string]string{"lead_status": "New", "lead_percentage": "10", "assigned_to": "7"}))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET assigned_to = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs(9, 12).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectHistory(mock, 12, map[string][2]string{"assigned_to": {"7", "9"}})
	mock.ExpectCommit()
	lead.assignedTo = 9
	mock.ExpectQuery(regexp.QuoteMeta("FROM leads l LEFT JOIN users cb")).WithArgs(12).WillReturnRows(lead.row())

	_, err := svc.Update(context.Background(), sales, 12, map[string]any{"assigned_to": float64(9)})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	require.Equal(t, []int64{9090}, msgr.chats)
	assert.Contains(t, msgr.texts[0], "CS1000000012")
	assert.Contains(t, msgr.texts[0], "Acme Corp")
}
