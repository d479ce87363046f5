package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"smartcrm/internal/authz"
	"smartcrm/internal/database"
	"smartcrm/internal/models"
	"smartcrm/internal/notify"
	"smartcrm/internal/pdf"
	"smartcrm/internal/repositories"
	"smartcrm/internal/storage"
)

const (
	LeadMaxLimit    = 500
	defaultStatus   = "New"
	defaultChannel  = "Email"
	createdActivity = "created"
	updateActivity  = "field_update"
)

type LeadService interface {
	Resolve(ctx context.Context, ref string) (int, error)
	List(ctx context.Context, s *authz.Subject, f models.LeadFilter) ([]models.Lead, models.Pagination, error)
	Get(ctx context.Context, s *authz.Subject, id int) (*models.LeadDetail, error)
	Create(ctx context.Context, s *authz.Subject, input map[string]any) (*models.Lead, error)
	Update(ctx context.Context, s *authz.Subject, id int, input map[string]any) (*models.Lead, error)
	Delete(ctx context.Context, s *authz.Subject, id int) (string, error)
	RecalculatePercentages(ctx context.Context) (int64, error)
	Export(ctx context.Context, s *authz.Subject, id int) ([]byte, string, error)
}

type leadService struct {
	db       *sql.DB
	leads    *repositories.LeadRepository
	reports  *repositories.ReportRepository
	users    repositories.UserRepository
	settings *SettingsService
	files    storage.Backend
	renderer pdf.Renderer
	notifier *notify.Notifier
	now      func() time.Time
}

func NewLeadService(
	db *sql.DB,
	leads *repositories.LeadRepository,
	reports *repositories.ReportRepository,
	users repositories.UserRepository,
	settings *SettingsService,
	files storage.Backend,
	renderer pdf.Renderer,
	notifier *notify.Notifier,
) LeadService {
	return &leadService{
		db:       db,
		leads:    leads,
		reports:  reports,
		users:    users,
		settings: settings,
		files:    files,
		renderer: renderer,
		notifier: notifier,
		now:      time.Now,
	}
}

// Resolve accepts either the numeric row id or the business lead id.
func (s *leadService) Resolve(ctx context.Context, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil && id > 0 {
		return id, nil
	}
	id, err := s.leads.ResolveID(ctx, ref)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, notFound("Lead")
	}
	return id, nil
}

func scopeFor(sub *authz.Subject) int {
	if sub == nil || sub.IsAdmin() {
		return 0
	}
	return sub.UserID
}

func canAccessLead(sub *authz.Subject, l *models.Lead) bool {
	if sub.IsAdmin() {
		return true
	}
	if l.CreatedBy != nil && *l.CreatedBy == sub.UserID {
		return true
	}
	return l.AssignedTo != nil && *l.AssignedTo == sub.UserID
}

func (s *leadService) fillDerived(l *models.Lead, mapping map[string]int) {
	fillLeadDerived(l, mapping, s.now())
}

// fillLeadDerived recomputes aging and fills a zero percentage from the mapping.
func fillLeadDerived(l *models.Lead, mapping map[string]int, now time.Time) {
	l.LeadAging = leadAging(l.LeadDate, now)
	if l.LeadPercentage == 0 {
		l.LeadPercentage = mapping[l.LeadStatus]
	}
}

func (s *leadService) mapping(ctx context.Context) map[string]int {
	m, err := s.settings.StatusPercentages(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("[leads][mapping] read failed")
		return map[string]int{}
	}
	return m
}

func (s *leadService) List(ctx context.Context, sub *authz.Subject, f models.LeadFilter) ([]models.Lead, models.Pagination, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = s.settings.Preferences(ctx).DefaultPageSize
	}
	if f.Limit > LeadMaxLimit {
		f.Limit = LeadMaxLimit
	}
	f.ScopeUserID = scopeFor(sub)

	leads, total, err := s.leads.List(ctx, f)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	m := s.mapping(ctx)
	for i := range leads {
		s.fillDerived(&leads[i], m)
	}
	return leads, models.NewPagination(f.Page, f.Limit, total), nil
}

func (s *leadService) load(ctx context.Context, sub *authz.Subject, id int) (*models.Lead, error) {
	l, err := s.leads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, notFound("Lead")
	}
	if !canAccessLead(sub, l) {
		return nil, newError(ErrForbidden, "No permission to access this lead")
	}
	return l, nil
}

func (s *leadService) Get(ctx context.Context, sub *authz.Subject, id int) (*models.LeadDetail, error) {
	l, err := s.load(ctx, sub, id)
	if err != nil {
		return nil, err
	}
	s.fillDerived(l, s.mapping(ctx))

	d := &models.LeadDetail{Lead: l}
	if d.Activities, err = s.leads.Activities(ctx, id); err != nil {
		return nil, err
	}
	if d.StatusHistory, err = s.leads.StatusHistory(ctx, id); err != nil {
		return nil, err
	}
	if d.FieldHistory, err = s.leads.FieldHistory(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

func missingRequired(v models.LeadValues) []string {
	var missing []string
	for _, k := range models.RequiredLeadFields {
		if v[k] == nil {
			missing = append(missing, k)
		}
	}
	return missing
}

func (s *leadService) Create(ctx context.Context, sub *authz.Subject, input map[string]any) (*models.Lead, error) {
	provided, err := normalizeLeadInput(input)
	if err != nil {
		return nil, err
	}
	if missing := missingRequired(provided); len(missing) > 0 {
		return nil, invalid("Missing required fields: %s", strings.Join(missing, ", "))
	}

	values := make(models.LeadValues, len(provided)+4)
	for k, v := range provided {
		values[k] = v
	}

	assigneeID := sub.UserID
	if v, ok := values["assigned_to"].(int); ok && v > 0 {
		assigneeID = v
	}
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		return nil, err
	}
	if assignee == nil {
		return nil, invalid("Assigned user not found")
	}
	values["assigned_to"] = assignee.ID

	if values["lead_owner"] == nil {
		owner := assignee.FullName
		if owner == "" {
			owner = sub.FullName
		}
		values["lead_owner"] = nilIfEmpty(owner)
	}
	status, _ := values["lead_status"].(string)
	if status == "" {
		status = defaultStatus
	}
	values["lead_status"] = status
	if values["method_of_communication"] == nil {
		values["method_of_communication"] = defaultChannel
	}
	values["lead_percentage"] = s.settings.StatusPercentage(ctx, status)

	leadDate := values["lead_date"].(string)
	aging := leadAging(leadDate, s.now())

	var (
		rowID  int
		leadID string
	)
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.leads.WithTx(tx)
		if err := repo.LockLeadIDs(ctx); err != nil {
			return err
		}
		var err error
		if leadID, err = s.settings.NextLeadID(ctx, repo); err != nil {
			return err
		}
		if rowID, err = repo.Insert(ctx, leadID, values, aging, sub.UserID); err != nil {
			return err
		}
		for _, f := range models.LeadFields {
			v, ok := provided[f.Key]
			if !ok || v == nil {
				continue
			}
			if err := repo.InsertFieldChange(ctx, rowID, f.Key, nil, strPtr(leadValueText(v)), sub.UserID); err != nil {
				return fmt.Errorf("insert history %s: %w", f.Key, err)
			}
		}
		if err := repo.InsertStatusChange(ctx, rowID, nil, status, strPtr("Lead created"), sub.UserID); err != nil {
			return err
		}
		company := leadValueText(values["company_name"])
		customer := leadValueText(values["customer_name"])
		return repo.InsertActivity(ctx, rowID, createdActivity, fmt.Sprintf("Lead created: %s - %s", company, customer), sub.UserID)
	})
	if err != nil {
		log.Error().Err(err).Int("user_id", sub.UserID).Msg("[leads][create] failed")
		return nil, err
	}
	log.Info().Str("lead_id", leadID).Int("id", rowID).Int("by", sub.UserID).Msg("[leads][create] done")

	lead, err := s.leads.GetByID(ctx, rowID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, notFound("Lead")
	}
	s.fillDerived(lead, s.mapping(ctx))

	if assignee.ID != sub.UserID {
		s.notifier.LeadAssigned(assignee, leadID, lead.CompanyName, sub.FullName)
	}
	return lead, nil
}

// nilIfEmpty maps "" to a cleared LeadValues entry.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *leadService) Update(ctx context.Context, sub *authz.Subject, id int, input map[string]any) (*models.Lead, error) {
	values, err := normalizeLeadInput(input)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrNoChanges
	}
	current, err := s.load(ctx, sub, id)
	if err != nil {
		return nil, err
	}
	if v, ok := values["lead_status"]; ok && v == nil {
		return nil, invalid("lead_status cannot be empty")
	}
	if v, ok := values["lead_date"]; ok && v == nil {
		return nil, invalid("lead_date cannot be empty")
	}
	if v, ok := values["company_name"]; ok && v == nil {
		return nil, invalid("company_name cannot be empty")
	}

	var newAssignee *models.User
	if v, ok := values["assigned_to"].(int); ok {
		u, err := s.users.GetByID(ctx, v)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, invalid("Assigned user not found")
		}
		newAssignee = u
	}

	_, explicitPct := values["lead_percentage"]
	var statusMapped int
	if st, ok := values["lead_status"].(string); ok {
		statusMapped = s.settings.StatusPercentage(ctx, st)
	}
	today := s.now().Format("2006-01-02")
	assigneeChanged := false

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.leads.WithTx(tx)
		snap, err := repo.Snapshot(ctx, id)
		if err != nil {
			return err
		}
		if snap == nil {
			return notFound("Lead")
		}

		changes := models.LeadValues{}
		for k, v := range values {
			f, _ := models.LookupLeadField(k)
			if !sameLeadValue(f, snap[k], v) {
				changes[k] = v
			}
		}

		if newStatus, ok := changes["lead_status"].(string); ok {
			var remarks *string
			if r, ok := values["remarks"].(string); ok {
				remarks = &r
			}
			if err := repo.InsertStatusChange(ctx, id, strPtr(snap["lead_status"]), newStatus, remarks, sub.UserID); err != nil {
				return err
			}
			if statusMapped > 0 && !explicitPct {
				f, _ := models.LookupLeadField("lead_percentage")
				if !sameLeadValue(f, snap["lead_percentage"], statusMapped) {
					changes["lead_percentage"] = statusMapped
				}
			}
		}

		finalPct, _ := strconv.Atoi(snap["lead_percentage"])
		if p, ok := changes["lead_percentage"].(int); ok {
			finalPct = p
		}
		closer := snap["lead_closer_date"]
		if v, ok := values["lead_closer_date"]; ok {
			closer = leadValueText(v)
		}
		if finalPct == 100 && closer == "" {
			changes["lead_closer_date"] = today
		}

		if len(changes) == 0 {
			return ErrNoChanges
		}
		if err := repo.UpdateFields(ctx, id, changes); err != nil {
			return fmt.Errorf("update lead: %w", err)
		}

		for _, f := range models.LeadFields {
			v, ok := changes[f.Key]
			if !ok {
				continue
			}
			old := snap[f.Key]
			next := leadValueText(v)
			if err := repo.InsertFieldChange(ctx, id, f.Key, strPtr(old), strPtr(next), sub.UserID); err != nil {
				return fmt.Errorf("insert history %s: %w", f.Key, err)
			}
			desc := fmt.Sprintf("Changed %s from '%s' to '%s'", f.Label, old, next)
			if v == nil {
				desc = fmt.Sprintf("Cleared %s (was '%s')", f.Label, old)
			}
			if err := repo.InsertActivity(ctx, id, updateActivity, desc, sub.UserID); err != nil {
				return err
			}
		}
		_, assigneeChanged = changes["assigned_to"]
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("id", id).Int("by", sub.UserID).Msg("[leads][update] done")

	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, notFound("Lead")
	}
	s.fillDerived(lead, s.mapping(ctx))

	if assigneeChanged && newAssignee != nil && newAssignee.ID != sub.UserID {
		s.notifier.LeadAssigned(newAssignee, current.LeadID, lead.CompanyName, sub.FullName)
	}
	return lead, nil
}

// Delete removes the lead with its history and reports, returning its business id.
func (s *leadService) Delete(ctx context.Context, sub *authz.Subject, id int) (string, error) {
	current, err := s.load(ctx, sub, id)
	if err != nil {
		return "", err
	}
	var files []string
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if files, err = s.reports.WithTx(tx).FilenamesByLead(ctx, id); err != nil {
			return err
		}
		ok, err := s.leads.WithTx(tx).Delete(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("Lead")
		}
		return nil
	})
	if err != nil {
		return current.LeadID, err
	}

	for _, key := range files {
		if err := s.files.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("[leads][delete] report file not removed")
		}
	}
	log.Info().Str("lead_id", current.LeadID).Int("by", sub.UserID).Int("files", len(files)).Msg("[leads][delete] done")
	return current.LeadID, nil
}

func (s *leadService) RecalculatePercentages(ctx context.Context) (int64, error) {
	m, err := s.settings.StatusPercentages(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.leads.ApplyStatusPercentages(ctx, m)
	if err != nil {
		return 0, err
	}
	log.Info().Int64("updated", n).Int("statuses", len(m)).Msg("[leads][recalc] done")
	return n, nil
}

// Export renders the lead dossier; the second value is the download file name.
func (s *leadService) Export(ctx context.Context, sub *authz.Subject, id int) ([]byte, string, error) {
	d, err := s.Get(ctx, sub, id)
	if err != nil {
		return nil, "", err
	}
	by := sub.FullName
	if by == "" {
		by = sub.Username
	}
	out, err := s.renderer.LeadDossier(d, by, s.now())
	if err != nil {
		return nil, "", fmt.Errorf("render dossier: %w", err)
	}
	return out, d.LeadID + ".pdf", nil
}
