package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"smartcrm/internal/authz"
	"smartcrm/internal/models"
	"smartcrm/internal/repositories"
)

// contextFields maps a target context tab onto the lead column it filters.
var contextFields = map[string]string{
	"sources":              "lead_source",
	"statuses":             "lead_status",
	"types":                "lead_type",
	"systems":              "system",
	"project_amc":          "project_amc",
	"communication_method": "method_of_communication",
	"industries":           "industry_type",
}

var (
	quarterPeriod = regexp.MustCompile(`^(\d{4})-Q([1-4])$`)
	yearPeriod    = regexp.MustCompile(`^\d{4}$`)
	monthPeriod   = regexp.MustCompile(`^(\d{4})-(0[1-9]|1[0-2])$`)
)

func dayStart(y int, m time.Month, d int, loc *time.Location) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// lastSecond returns 23:59:59 of the day before next.
func lastSecond(next time.Time) time.Time {
	return next.Add(-time.Second)
}

// ParsePeriod turns a target period into an inclusive [start, end] range.
// Unknown values fall back to the current month.
func ParsePeriod(period string, now time.Time) (time.Time, time.Time) {
	loc := now.Location()
	y, m, d := now.Date()
	period = strings.TrimSpace(period)

	switch period {
	case "daily":
		start := dayStart(y, m, d, loc)
		return start, lastSecond(start.AddDate(0, 0, 1))
	case "weekly":
		offset := (int(now.Weekday()) + 6) % 7
		start := dayStart(y, m, d-offset, loc)
		return start, lastSecond(start.AddDate(0, 0, 7))
	case "quarterly":
		q := (int(m) - 1) / 3
		start := dayStart(y, time.Month(q*3+1), 1, loc)
		return start, lastSecond(start.AddDate(0, 3, 0))
	case "yearly":
		start := dayStart(y, time.January, 1, loc)
		return start, lastSecond(start.AddDate(1, 0, 0))
	}

	if g := quarterPeriod.FindStringSubmatch(period); g != nil {
		year, _ := strconv.Atoi(g[1])
		q, _ := strconv.Atoi(g[2])
		start := dayStart(year, time.Month((q-1)*3+1), 1, loc)
		return start, lastSecond(start.AddDate(0, 3, 0))
	}
	if yearPeriod.MatchString(period) {
		year, _ := strconv.Atoi(period)
		start := dayStart(year, time.January, 1, loc)
		return start, lastSecond(start.AddDate(1, 0, 0))
	}
	if g := monthPeriod.FindStringSubmatch(period); g != nil {
		year, _ := strconv.Atoi(g[1])
		month, _ := strconv.Atoi(g[2])
		start := dayStart(year, time.Month(month), 1, loc)
		return start, lastSecond(start.AddDate(0, 1, 0))
	}

	// monthly and anything unrecognised
	start := dayStart(y, m, 1, loc)
	return start, lastSecond(start.AddDate(0, 1, 0))
}

type TargetService struct {
	repo  *repositories.TargetRepository
	users repositories.UserRepository
	now   func() time.Time
}

func NewTargetService(repo *repositories.TargetRepository, users repositories.UserRepository) *TargetService {
	return &TargetService{repo: repo, users: users, now: time.Now}
}

func (s *TargetService) List(ctx context.Context, sub *authz.Subject) ([]models.Target, error) {
	assignee := 0
	if !authz.Check(sub, "target_management") {
		assignee = sub.UserID
	}
	targets, err := s.repo.ListActive(ctx, assignee, 0)
	if err != nil {
		return nil, err
	}
	for i := range targets {
		targets[i].Percentage = percentOf(targets[i].CurrentValue, targets[i].TargetValue)
	}
	return targets, nil
}

func (s *TargetService) checkAssignee(ctx context.Context, id int) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return invalid("Assigned user not found")
	}
	return nil
}

func (s *TargetService) Create(ctx context.Context, sub *authz.Subject, in models.TargetCreate) (*models.Target, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("Target name is required")
	}
	if in.TargetValue <= 0 {
		return nil, invalid("target_value must be positive")
	}
	assignee := sub.UserID
	if in.AssignedTo != nil && *in.AssignedTo > 0 {
		assignee = *in.AssignedTo
		if err := s.checkAssignee(ctx, assignee); err != nil {
			return nil, err
		}
	}
	createdBy := sub.UserID
	t := &models.Target{
		Name:        name,
		Type:        in.Type,
		TargetValue: in.TargetValue,
		AssignedTo:  &assignee,
		Period:      strings.TrimSpace(in.Period),
		ContextTab:  in.ContextTab,
		Description: in.Description,
		CreatedBy:   &createdBy,
	}
	if _, err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	log.Info().Int("target", t.ID).Int("assignee", assignee).Str("type", t.Type).Msg("[targets][create] done")
	return t, nil
}

func (s *TargetService) Update(ctx context.Context, id int, in models.TargetUpdate) error {
	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return invalid("Target name cannot be empty")
		}
		fields["name"] = name
	}
	if in.Type != nil {
		fields["type"] = *in.Type
	}
	if in.TargetValue != nil {
		fields["target_value"] = *in.TargetValue
	}
	if in.AssignedTo != nil {
		if err := s.checkAssignee(ctx, *in.AssignedTo); err != nil {
			return err
		}
		fields["assigned_to"] = *in.AssignedTo
	}
	if in.Period != nil {
		fields["period"] = strings.TrimSpace(*in.Period)
	}
	if in.ContextTab != nil {
		fields["context_tab"] = *in.ContextTab
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}
	if len(fields) == 0 {
		return ErrNoChanges
	}
	ok, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Target")
	}
	return nil
}

// Delete deactivates the target; rows are kept for history.
func (s *TargetService) Delete(ctx context.Context, id int) error {
	ok, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Target")
	}
	return nil
}

func (s *TargetService) measure(ctx context.Context, t *models.Target, scope repositories.ProgressScope) (float64, error) {
	ctxTab := ""
	if t.ContextTab != nil {
		ctxTab = *t.ContextTab
	}
	column := contextFields[ctxTab]

	switch t.Type {
	case models.TargetDeals:
		if ctxTab == "statuses" {
			return s.repo.CountStatusReached(ctx, scope, t.Name)
		}
		if column != "" {
			scope.Column, scope.Value = column, t.Name
		}
		return s.repo.CountConverted(ctx, scope)
	case models.TargetRevenue:
		if column != "" {
			scope.Column, scope.Value = column, t.Name
		}
		return s.repo.SumRevenue(ctx, scope)
	case models.TargetUnits:
		switch ctxTab {
		case "communication_method", "sources":
			return s.repo.CountFieldSet(ctx, scope, column, t.Name)
		}
		return s.repo.CountTouched(ctx, scope)
	case models.TargetConversion:
		touched, err := s.repo.CountTouched(ctx, scope)
		if err != nil {
			return 0, err
		}
		converted, err := s.repo.CountConverted(ctx, scope)
		if err != nil {
			return 0, err
		}
		return percentOf(converted, touched), nil
	}
	return 0, invalid("Unknown target type: %s", t.Type)
}

// CalculateProgress recomputes current_value from lead history and stores it.
func (s *TargetService) CalculateProgress(ctx context.Context, id int) (*models.TargetProgress, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, notFound("Target")
	}
	return s.calculate(ctx, t)
}

func (s *TargetService) calculate(ctx context.Context, t *models.Target) (*models.TargetProgress, error) {
	start, end := ParsePeriod(t.Period, s.now())
	scope := repositories.ProgressScope{Start: start, End: end}
	if t.AssignedTo != nil {
		scope.UserID = *t.AssignedTo
	}

	value, err := s.measure(ctx, t, scope)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetCurrentValue(ctx, t.ID, value); err != nil {
		return nil, fmt.Errorf("store progress: %w", err)
	}
	return &models.TargetProgress{
		TargetID:     t.ID,
		CurrentValue: value,
		TargetValue:  t.TargetValue,
		Percentage:   percentOf(value, t.TargetValue),
		Period:       t.Period,
		DateRange: models.DateRange{
			Start: start.Format("2006-01-02 15:04:05"),
			End:   end.Format("2006-01-02 15:04:05"),
		},
	}, nil
}

// CalculateAll recalculates every active target; failures are collected, not fatal.
func (s *TargetService) CalculateAll(ctx context.Context) (*models.TargetRecalcResult, error) {
	targets, err := s.repo.ListActive(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	res := &models.TargetRecalcResult{Errors: []string{}}
	for i := range targets {
		if _, err := s.calculate(ctx, &targets[i]); err != nil {
			log.Warn().Err(err).Int("target", targets[i].ID).Msg("[targets][recalc] failed")
			res.Errors = append(res.Errors, fmt.Sprintf("target %d: %v", targets[i].ID, err))
			continue
		}
		res.Updated++
	}
	log.Info().Int("updated", res.Updated).Int("errors", len(res.Errors)).Msg("[targets][recalc] done")
	return res, nil
}
