package services

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"smartcrm/internal/authz"
	"smartcrm/internal/models"
	"smartcrm/internal/repositories"
)

const (
	dashboardRecent  = 10
	dashboardTargets = 10
)

type DashboardService struct {
	dash     *repositories.DashboardRepository
	leads    *repositories.LeadRepository
	targets  *repositories.TargetRepository
	settings *SettingsService
	now      func() time.Time
}

func NewDashboardService(dash *repositories.DashboardRepository, leads *repositories.LeadRepository, targets *repositories.TargetRepository, settings *SettingsService) *DashboardService {
	return &DashboardService{dash: dash, leads: leads, targets: targets, settings: settings, now: time.Now}
}

// Stats builds the dashboard payload; non-admins only see their own leads.
func (s *DashboardService) Stats(ctx context.Context, sub *authz.Subject) (*models.DashboardStats, error) {
	scope := scopeFor(sub)
	prefs := s.settings.Preferences(ctx)
	now := s.now()
	today := now.Format("2006-01-02")
	horizon := now.AddDate(0, 0, prefs.FollowUpDays).Format("2006-01-02")

	var (
		st  models.DashboardStats
		err error
	)
	if st.TotalLeads, err = s.dash.CountLeads(ctx, scope); err != nil {
		return nil, err
	}
	if st.UpcomingFollowups, err = s.dash.CountFollowUpsBetween(ctx, scope, today, horizon); err != nil {
		return nil, err
	}
	if st.MissedFollowups, err = s.dash.CountFollowUpsBefore(ctx, scope, today); err != nil {
		return nil, err
	}
	if st.AgingAlerts, err = s.dash.CountAging(ctx, scope, prefs.AgingAlertDays); err != nil {
		return nil, err
	}
	if st.LeadsByStatus, err = s.dash.LeadsByStatus(ctx, scope); err != nil {
		return nil, err
	}
	if st.ValueMetrics, err = s.dash.ValueMetrics(ctx, scope); err != nil {
		return nil, err
	}
	if st.RecentLeads, err = s.leads.Recent(ctx, scope, dashboardRecent); err != nil {
		return nil, err
	}
	mapping, err := s.settings.StatusPercentages(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("[dashboard][stats] status mapping read failed")
		mapping = map[string]int{}
	}
	for i := range st.RecentLeads {
		fillLeadDerived(&st.RecentLeads[i], mapping, now)
	}
	if st.Targets, err = s.targets.ListActive(ctx, scope, dashboardTargets); err != nil {
		return nil, err
	}
	for i := range st.Targets {
		st.Targets[i].Percentage = percentOf(st.Targets[i].CurrentValue, st.Targets[i].TargetValue)
	}
	return &st, nil
}

// percentOf returns part/whole*100 rounded to two decimals, 0 for an empty whole.
func percentOf(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return round2(part / whole * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
