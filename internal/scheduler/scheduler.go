// Package scheduler runs the periodic CRM jobs on cron specs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"smartcrm/internal/config"
	"smartcrm/internal/models"
)

const jobTimeout = 10 * time.Minute

type TargetCalculator interface {
	CalculateAll(ctx context.Context) (*models.TargetRecalcResult, error)
}

type LeadMaintainer interface {
	RefreshAging(ctx context.Context) (int64, error)
	FollowUpsDue(ctx context.Context, day string) ([]models.FollowUp, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
}

type PreferencesSource interface {
	Preferences(ctx context.Context) models.Preferences
}

type DigestSender interface {
	Digest(u *models.User, items []models.FollowUp, email bool)
}

type SessionSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron     *cron.Cron
	targets  TargetCalculator
	leads    LeadMaintainer
	users    UserLookup
	prefs    PreferencesSource
	digest   DigestSender
	sessions SessionSweeper
	now      func() time.Time
}

func New(targets TargetCalculator, leads LeadMaintainer, users UserLookup, prefs PreferencesSource, digest DigestSender, sessions SessionSweeper) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		targets:  targets,
		leads:    leads,
		users:    users,
		prefs:    prefs,
		digest:   digest,
		sessions: sessions,
		now:      time.Now,
	}
}

// Register adds the jobs with the specs from cfg. An invalid spec is an error.
func (s *Scheduler) Register(cfg config.SchedulerConfig) error {
	jobs := []struct {
		name string
		spec string
		fn   func(ctx context.Context)
	}{
		{"targets", cfg.Targets, s.RecalculateTargets},
		{"aging", cfg.Aging, s.RefreshAging},
		{"digest", cfg.Digest, s.SendDigest},
	}
	if s.sessions != nil {
		jobs = append(jobs, struct {
			name string
			spec string
			fn   func(ctx context.Context)
		}{"sessions", cfg.Sessions, s.SweepSessions})
	}
	for _, j := range jobs {
		fn, name := j.fn, j.name
		if _, err := s.cron.AddFunc(j.spec, func() { s.run(name, fn) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", name, j.spec, err)
		}
		log.Info().Str("job", name).Str("spec", j.spec).Msg("[scheduler] registered")
	}
	return nil
}

func (s *Scheduler) run(name string, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	start := s.now()
	fn(ctx)
	log.Debug().Str("job", name).Dur("took", s.now().Sub(start)).Msg("[scheduler] finished")
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Warn().Msg("[scheduler] stop timed out")
	}
}

func (s *Scheduler) RecalculateTargets(ctx context.Context) {
	res, err := s.targets.CalculateAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("[scheduler][targets] failed")
		return
	}
	log.Info().Int("updated", res.Updated).Int("errors", len(res.Errors)).Msg("[scheduler][targets] done")
}

func (s *Scheduler) RefreshAging(ctx context.Context) {
	n, err := s.leads.RefreshAging(ctx)
	if err != nil {
		log.Error().Err(err).Msg("[scheduler][aging] failed")
		return
	}
	log.Info().Int64("rows", n).Msg("[scheduler][aging] done")
}

func (s *Scheduler) SweepSessions(ctx context.Context) {
	n, err := s.sessions.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("[scheduler][sessions] sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int("removed", n).Msg("[scheduler][sessions] done")
	}
}

// SendDigest groups today's follow-ups by assignee and notifies each of them.
func (s *Scheduler) SendDigest(ctx context.Context) {
	prefs := s.prefs.Preferences(ctx)
	if !prefs.DailyDigest {
		return
	}
	items, err := s.leads.FollowUpsDue(ctx, s.now().Format("2006-01-02"))
	if err != nil {
		log.Error().Err(err).Msg("[scheduler][digest] load follow-ups failed")
		return
	}

	byUser := map[int][]models.FollowUp{}
	var order []int
	for _, it := range items {
		if _, ok := byUser[it.AssignedTo]; !ok {
			order = append(order, it.AssignedTo)
		}
		byUser[it.AssignedTo] = append(byUser[it.AssignedTo], it)
	}

	sent := 0
	for _, uid := range order {
		u, err := s.users.GetByID(ctx, uid)
		if err != nil {
			log.Warn().Err(err).Int("user_id", uid).Msg("[scheduler][digest] user lookup failed")
			continue
		}
		if u == nil || !u.IsActive {
			continue
		}
		s.digest.Digest(u, byUser[uid], prefs.EmailNotifications)
		sent++
	}
	log.Info().Int("users", sent).Int("items", len(items)).Msg("[scheduler][digest] done")
}
