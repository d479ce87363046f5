package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"smartcrm/internal/models"
)

type LeadRepository struct {
	db DBTX
}

func NewLeadRepository(db DBTX) *LeadRepository {
	return &LeadRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *LeadRepository) WithTx(tx *sql.Tx) *LeadRepository {
	return &LeadRepository{db: tx}
}

const leadColumns = `
	l.id, l.lead_id, to_char(l.lead_date, 'YYYY-MM-DD'), l.lead_source, l.lead_type, l.lead_owner,
	l.staff_location, l.designation, l.company_name, l.industry_type, l."system", l.project_amc,
	l.state, l.district, l.city, l.pin_code, l.full_address, l.company_website,
	l.company_linkedin_link, l.sub_industry, l.gstin, l.customer_name, l.contact_no, l.email_id,
	l.linkedin_profile, l.designation_customer, l.method_of_communication, l.lead_status,
	l.purpose_of_meeting, l.meeting_outcome, l.discussion_held, l.remarks,
	to_char(l.next_follow_up_date, 'YYYY-MM-DD'), l.prospect, l.approx_value, l.negotiated_value,
	l.closing_amount, l.margin_percent, l.gross_margin_amount, l.net_margin_amount,
	l.received_amount, l.balance_amount, l.payment_term, to_char(l.lead_closer_date, 'YYYY-MM-DD'),
	l.expected_lead_closer_month, l.lead_aging, l.lead_percentage, l.created_by, l.assigned_to,
	l.created_at, l.updated_at, cb.full_name, au.full_name`

const leadFrom = `
	FROM leads l
	LEFT JOIN users cb ON cb.id = l.created_by
	LEFT JOIN users au ON au.id = l.assigned_to`

func scanLead(row rowScanner) (*models.Lead, error) {
	var l models.Lead
	err := row.Scan(
		&l.ID, &l.LeadID, &l.LeadDate, &l.LeadSource, &l.LeadType, &l.LeadOwner,
		&l.StaffLocation, &l.Designation, &l.CompanyName, &l.IndustryType, &l.System, &l.ProjectAMC,
		&l.State, &l.District, &l.City, &l.PinCode, &l.FullAddress, &l.CompanyWebsite,
		&l.CompanyLinkedinLink, &l.SubIndustry, &l.GSTIN, &l.CustomerName, &l.ContactNo, &l.EmailID,
		&l.LinkedinProfile, &l.DesignationCustomer, &l.MethodOfCommunication, &l.LeadStatus,
		&l.PurposeOfMeeting, &l.MeetingOutcome, &l.DiscussionHeld, &l.Remarks,
		&l.NextFollowUpDate, &l.Prospect, &l.ApproxValue, &l.NegotiatedValue,
		&l.ClosingAmount, &l.MarginPercent, &l.GrossMarginAmount, &l.NetMarginAmount,
		&l.ReceivedAmount, &l.BalanceAmount, &l.PaymentTerm, &l.LeadCloserDate,
		&l.ExpectedLeadCloserMonth, &l.LeadAging, &l.LeadPercentage, &l.CreatedBy, &l.AssignedTo,
		&l.CreatedAt, &l.UpdatedAt, &l.CreatedByName, &l.AssignedToName,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// LockLeadIDs serializes lead id generation until the surrounding tx ends.
func (r *LeadRepository) LockLeadIDs(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('leads.lead_id'))`)
	return err
}

// likeEscaper escapes LIKE wildcards so user text matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// MaxLeadSeq returns the highest numeric suffix among lead ids made of prefix
// followed by digits only. found is false when there is none.
func (r *LeadRepository) MaxLeadSeq(ctx context.Context, prefix string) (seq int64, found bool, err error) {
	var n sql.NullInt64
	err = r.db.QueryRowContext(ctx, `
		SELECT MAX(CAST(substr(lead_id, $2) AS BIGINT))
		FROM leads
		WHERE lead_id LIKE $1 ESCAPE '\' AND substr(lead_id, $2) ~ '^[0-9]{1,18}$'
	`, likeEscaper.Replace(prefix)+"%", utf8.RuneCountInString(prefix)+1).Scan(&n)
	if err != nil {
		return 0, false, err
	}
	return n.Int64, n.Valid, nil
}

// Insert stores a new lead from normalized values and returns its row id.
func (r *LeadRepository) Insert(ctx context.Context, leadID string, values models.LeadValues, aging, createdBy int) (int, error) {
	cols := []string{"lead_id"}
	args := []any{leadID}
	for _, f := range models.LeadFields {
		v, ok := values[f.Key]
		if !ok {
			continue
		}
		cols = append(cols, f.Column())
		args = append(args, v)
	}
	cols = append(cols, "lead_aging", "created_by")
	args = append(args, aging, createdBy)

	ph := make([]string, len(args))
	for i := range args {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf(
		"INSERT INTO leads (%s, created_at, updated_at) VALUES (%s, NOW(), NOW()) RETURNING id",
		strings.Join(cols, ", "), strings.Join(ph, ", "),
	)

	var id int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert lead: %w", err)
	}
	return id, nil
}

// Snapshot locks the lead row and returns every writable field as text ("" for NULL).
// Returns nil when the lead does not exist.
func (r *LeadRepository) Snapshot(ctx context.Context, id int) (map[string]string, error) {
	exprs := make([]string, len(models.LeadFields))
	for i, f := range models.LeadFields {
		exprs[i] = f.Column() + "::text"
	}
	q := fmt.Sprintf("SELECT %s FROM leads WHERE id = $1 FOR UPDATE", strings.Join(exprs, ", "))

	raw := make([]sql.NullString, len(models.LeadFields))
	dest := make([]any, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := r.db.QueryRowContext(ctx, q, id).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for i, f := range models.LeadFields {
		out[f.Key] = raw[i].String
	}
	return out, nil
}

// UpdateFields writes the given values and bumps updated_at.
func (r *LeadRepository) UpdateFields(ctx context.Context, id int, values models.LeadValues) error {
	if len(values) == 0 {
		return nil
	}
	sets := make([]string, 0, len(values)+1)
	args := make([]any, 0, len(values)+1)
	i := 1
	for _, f := range models.LeadFields {
		v, ok := values[f.Key]
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", f.Column(), i))
		args = append(args, v)
		i++
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)
	q := fmt.Sprintf("UPDATE leads SET %s WHERE id = $%d", strings.Join(sets, ", "), i)
	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}

func (r *LeadRepository) InsertFieldChange(ctx context.Context, leadID int, field string, oldValue, newValue *string, by int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lead_history (lead_id, field_name, old_value, new_value, changed_by)
		VALUES ($1, $2, $3, $4, $5)
	`, leadID, field, oldValue, newValue, by)
	return err
}

func (r *LeadRepository) InsertStatusChange(ctx context.Context, leadID int, oldStatus *string, newStatus string, remarks *string, by int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lead_status_history (lead_id, old_status, new_status, remarks, changed_by)
		VALUES ($1, $2, $3, $4, $5)
	`, leadID, oldStatus, newStatus, remarks, by)
	return err
}

func (r *LeadRepository) InsertActivity(ctx context.Context, leadID int, activityType, description string, by int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lead_activities (lead_id, activity_type, description, performed_by)
		VALUES ($1, $2, $3, $4)
	`, leadID, activityType, description, by)
	return err
}

func (r *LeadRepository) GetByID(ctx context.Context, id int) (*models.Lead, error) {
	q := `SELECT ` + leadColumns + leadFrom + ` WHERE l.id = $1`
	l, err := scanLead(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

// ResolveID maps a business lead id (e.g. CS0000000001) to the row id; 0 if unknown.
func (r *LeadRepository) ResolveID(ctx context.Context, leadID string) (int, error) {
	var id int
	err := r.db.QueryRowContext(ctx, `SELECT id FROM leads WHERE lead_id = $1`, leadID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

func buildLeadWhere(f models.LeadFilter) (string, []any) {
	where := " WHERE 1=1"
	args := []any{}
	i := 1

	if f.ScopeUserID > 0 {
		where += fmt.Sprintf(" AND (l.created_by = $%d OR l.assigned_to = $%d)", i, i)
		args = append(args, f.ScopeUserID)
		i++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND l.lead_status = $%d", i)
		args = append(args, f.Status)
		i++
	}
	if f.Owner != "" {
		where += fmt.Sprintf(" AND l.lead_owner = $%d", i)
		args = append(args, f.Owner)
		i++
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where += fmt.Sprintf(
			" AND (l.lead_id ILIKE $%d OR l.company_name ILIKE $%d OR l.customer_name ILIKE $%d OR l.email_id ILIKE $%d OR l.contact_no ILIKE $%d)",
			i, i, i, i, i,
		)
		args = append(args, "%"+likeEscaper.Replace(s)+"%")
	}
	return where, args
}

// List returns one page of leads plus the total count for the filter.
func (r *LeadRepository) List(ctx context.Context, f models.LeadFilter) ([]models.Lead, int, error) {
	where, args := buildLeadWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM leads l"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	n := len(args)
	q := "SELECT " + leadColumns + leadFrom + where +
		fmt.Sprintf(" ORDER BY l.updated_at DESC NULLS LAST, l.id DESC LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *l)
	}
	return out, total, rows.Err()
}

// Recent returns the newest leads, optionally scoped to a user.
func (r *LeadRepository) Recent(ctx context.Context, scopeUserID, limit int) ([]models.Lead, error) {
	where, args := buildLeadWhere(models.LeadFilter{ScopeUserID: scopeUserID})
	q := "SELECT " + leadColumns + leadFrom + where +
		fmt.Sprintf(" ORDER BY l.created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *LeadRepository) Activities(ctx context.Context, leadID int) ([]models.LeadActivity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.lead_id, a.activity_type, COALESCE(a.description, ''), a.performed_by, u.full_name, a.created_at
		FROM lead_activities a
		LEFT JOIN users u ON u.id = a.performed_by
		WHERE a.lead_id = $1
		ORDER BY a.created_at DESC, a.id DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.LeadActivity{}
	for rows.Next() {
		var a models.LeadActivity
		if err := rows.Scan(&a.ID, &a.LeadID, &a.ActivityType, &a.Description, &a.PerformedBy, &a.PerformedByName, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *LeadRepository) StatusHistory(ctx context.Context, leadID int) ([]models.LeadStatusChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT h.id, h.lead_id, h.old_status, h.new_status, h.remarks, h.changed_by, u.full_name, h.changed_at
		FROM lead_status_history h
		LEFT JOIN users u ON u.id = h.changed_by
		WHERE h.lead_id = $1
		ORDER BY h.changed_at DESC, h.id DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.LeadStatusChange{}
	for rows.Next() {
		var h models.LeadStatusChange
		if err := rows.Scan(&h.ID, &h.LeadID, &h.OldStatus, &h.NewStatus, &h.Remarks, &h.ChangedBy, &h.ChangedByName, &h.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *LeadRepository) FieldHistory(ctx context.Context, leadID int) ([]models.LeadFieldChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT h.id, h.lead_id, h.field_name, h.old_value, h.new_value, h.changed_by, u.full_name, h.changed_at
		FROM lead_history h
		LEFT JOIN users u ON u.id = h.changed_by
		WHERE h.lead_id = $1
		ORDER BY h.changed_at DESC, h.id DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.LeadFieldChange{}
	for rows.Next() {
		var h models.LeadFieldChange
		if err := rows.Scan(&h.ID, &h.LeadID, &h.FieldName, &h.OldValue, &h.NewValue, &h.ChangedBy, &h.ChangedByName, &h.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Delete removes the lead and everything hanging off it. Returns false if it did not exist.
func (r *LeadRepository) Delete(ctx context.Context, id int) (bool, error) {
	for _, q := range []string{
		`DELETE FROM lead_history WHERE lead_id = $1`,
		`DELETE FROM lead_status_history WHERE lead_id = $1`,
		`DELETE FROM lead_activities WHERE lead_id = $1`,
		`DELETE FROM lead_reports WHERE lead_id = $1`,
	} {
		if _, err := r.db.ExecContext(ctx, q, id); err != nil {
			return false, err
		}
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ApplyStatusPercentages rewrites lead_percentage from mapping; unmapped statuses get 0.
func (r *LeadRepository) ApplyStatusPercentages(ctx context.Context, mapping map[string]int) (int64, error) {
	if len(mapping) == 0 {
		res, err := r.db.ExecContext(ctx, `UPDATE leads SET lead_percentage = 0`)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString("UPDATE leads SET lead_percentage = CASE lead_status")
	i := 1
	for _, status := range sortedKeys(mapping) {
		fmt.Fprintf(&b, " WHEN $%d THEN $%d", i, i+1)
		args = append(args, status, mapping[status])
		i += 2
	}
	b.WriteString(" ELSE 0 END")

	res, err := r.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RefreshAging persists lead_aging as whole days since lead_date.
func (r *LeadRepository) RefreshAging(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE leads SET lead_aging = GREATEST(0, CURRENT_DATE - lead_date)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FollowUpsDue lists assigned leads with a follow-up on day (YYYY-MM-DD).
func (r *LeadRepository) FollowUpsDue(ctx context.Context, day string) ([]models.FollowUp, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT lead_id, company_name, COALESCE(customer_name, ''), lead_status, assigned_to
		FROM leads
		WHERE next_follow_up_date = $1 AND assigned_to IS NOT NULL
		ORDER BY assigned_to, lead_id
	`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FollowUp
	for rows.Next() {
		var f models.FollowUp
		if err := rows.Scan(&f.LeadID, &f.CompanyName, &f.CustomerName, &f.Status, &f.AssignedTo); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
