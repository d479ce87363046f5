package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcrm/internal/config"
	"smartcrm/internal/models"
)

type fakeTargets struct{ calls int }

func (f *fakeTargets) CalculateAll(context.Context) (*models.TargetRecalcResult, error) {
	f.calls++
	return &models.TargetRecalcResult{Updated: 2}, nil
}

type fakeLeads struct {
	day   string
	items []models.FollowUp
	err   error
}

func (f *fakeLeads) RefreshAging(context.Context) (int64, error) { return 3, nil }

func (f *fakeLeads) FollowUpsDue(_ context.Context, day string) ([]models.FollowUp, error) {
	f.day = day
	return f.items, f.err
}

type fakeUsers map[int]*models.User

func (f fakeUsers) GetByID(_ context.Context, id int) (*models.User, error) { return f[id], nil }

type fakePrefs models.Preferences

func (f fakePrefs) Preferences(context.Context) models.Preferences { return models.Preferences(f) }

type sentDigest struct {
	userID int
	items  int
	email  bool
}

type fakeDigest struct{ sent []sentDigest }

func (f *fakeDigest) Digest(u *models.User, items []models.FollowUp, email bool) {
	f.sent = append(f.sent, sentDigest{userID: u.ID, items: len(items), email: email})
}

func newTestScheduler(leads *fakeLeads, prefs models.Preferences, d *fakeDigest) *Scheduler {
	users := fakeUsers{
		1: {ID: 1, IsActive: true},
		2: {ID: 2, IsActive: false},
		3: {ID: 3, IsActive: true},
	}
	s := New(&fakeTargets{}, leads, users, fakePrefs(prefs), d, nil)
	s.now = func() time.Time { return time.Date(2025, 5, 14, 8, 0, 0, 0, time.UTC) }
	return s
}

func TestSendDigest_GroupsByAssignee(t *testing.T) {
	leads := &fakeLeads{items: []models.FollowUp{
		{LeadID: "CS1", AssignedTo: 1},
		{LeadID: "CS2", AssignedTo: 3},
		{LeadID: "CS3", AssignedTo: 1},
		{LeadID: "CS4", AssignedTo: 2},
		{LeadID: "CS5", AssignedTo: 9},
	}}
	d := &fakeDigest{}
	s := newTestScheduler(leads, models.Preferences{DailyDigest: true, EmailNotifications: true}, d)

	s.SendDigest(context.Background())

	assert.Equal(t, "2025-05-14", leads.day)
	assert.Equal(t, []sentDigest{
		{userID: 1, items: 2, email: true},
		{userID: 3, items: 1, email: true},
	}, d.sent)
}

func TestSendDigest_EmailFollowsPreference(t *testing.T) {
	leads := &fakeLeads{items: []models.FollowUp{{LeadID: "CS1", AssignedTo: 1}}}
	d := &fakeDigest{}
	s := newTestScheduler(leads, models.Preferences{DailyDigest: true}, d)

	s.SendDigest(context.Background())

	require.Len(t, d.sent, 1)
	assert.False(t, d.sent[0].email)
}

func TestSendDigest_Disabled(t *testing.T) {
	leads := &fakeLeads{items: []models.FollowUp{{LeadID: "CS1", AssignedTo: 1}}}
	d := &fakeDigest{}
	s := newTestScheduler(leads, models.Preferences{EmailNotifications: true}, d)

	s.SendDigest(context.Background())

	assert.Empty(t, d.sent)
	assert.Empty(t, leads.day)
}

func TestSendDigest_LoadError(t *testing.T) {
	leads := &fakeLeads{err: errors.New("db down")}
	d := &fakeDigest{}
	s := newTestScheduler(leads, models.Preferences{DailyDigest: true}, d)

	s.SendDigest(context.Background())
	assert.Empty(t, d.sent)
}

func TestRegister(t *testing.T) {
	s := newTestScheduler(&fakeLeads{}, models.Preferences{}, &fakeDigest{})
	require.NoError(t, s.Register(config.SchedulerConfig{Targets: "@every 1h", Aging: "5 0 * * *", Digest: "0 8 * * *"}))
	assert.Len(t, s.cron.Entries(), 3)

	bad := newTestScheduler(&fakeLeads{}, models.Preferences{}, &fakeDigest{})
	err := bad.Register(config.SchedulerConfig{Targets: "every hour", Aging: "5 0 * * *", Digest: "0 8 * * *"})
	assert.ErrorContains(t, err, "schedule targets")
}

func TestRecalculateTargets(t *testing.T) {
	targets := &fakeTargets{}
	s := New(targets, &fakeLeads{}, fakeUsers{}, fakePrefs{}, &fakeDigest{}, nil)
	s.RecalculateTargets(context.Background())
	assert.Equal(t, 1, targets.calls)
}

type fakeSweeper struct {
	calls   int
	removed int
}

func (f *fakeSweeper) Sweep(context.Context) (int, error) {
	f.calls++
	return f.removed, nil
}

func TestSessionSweepJob(t *testing.T) {
	sw := &fakeSweeper{removed: 3}
	s := New(&fakeTargets{}, &fakeLeads{}, fakeUsers{}, fakePrefs{}, &fakeDigest{}, sw)
	require.NoError(t, s.Register(config.SchedulerConfig{
		Targets: "@every 1h", Aging: "5 0 * * *", Digest: "0 8 * * *", Sessions: "@every 15m",
	}))
	assert.Len(t, s.cron.Entries(), 4)

	s.SweepSessions(context.Background())
	assert.Equal(t, 1, sw.calls)
}
