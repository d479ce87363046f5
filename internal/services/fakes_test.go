package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"smartcrm/internal/authz"
	"smartcrm/internal/models"
	"smartcrm/internal/repositories"
)

// mockUserRepo mocks the calls a test sets up; anything else panics on the nil embed.
type mockUserRepo struct {
	mock.Mock
	repositories.UserRepository
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id int, hash string) error {
	return m.Called(ctx, id, hash).Error(0)
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id int, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *mockUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, u *models.User) (int, error) {
	args := m.Called(ctx, u)
	return args.Int(0), args.Error(1)
}

func (m *mockUserRepo) SetActive(ctx context.Context, id int, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *mockUserRepo) SetPhoto(ctx context.Context, id int, key string) error {
	return m.Called(ctx, id, key).Error(0)
}

func (m *mockUserRepo) Delete(ctx context.Context, id int) error {
	return m.Called(ctx, id).Error(0)
}

type stubSubjects struct {
	subject *authz.Subject
	err     error
}

func (s stubSubjects) LoadSubject(_ context.Context, userID int) (*authz.Subject, error) {
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.subject
	cp.UserID = userID
	return &cp, nil
}

// memSettings is an in-memory settings store.
type memSettings struct {
	rows map[string]json.RawMessage
}

func newMemSettings(rows map[string]string) *memSettings {
	m := &memSettings{rows: map[string]json.RawMessage{}}
	for k, v := range rows {
		m.rows[k] = json.RawMessage(v)
	}
	return m
}

func (m *memSettings) GetAll(context.Context) (map[string]json.RawMessage, error) {
	return m.rows, nil
}

func (m *memSettings) Get(_ context.Context, t string) (json.RawMessage, error) {
	return m.rows[t], nil
}

func (m *memSettings) Upsert(_ context.Context, t string, data json.RawMessage, _ *int) error {
	m.rows[t] = data
	return nil
}

func (m *memSettings) InsertIfMissing(_ context.Context, t string, data json.RawMessage) error {
	if _, ok := m.rows[t]; !ok {
		m.rows[t] = data
	}
	return nil
}

// fixedLeadSeq reports seq as the highest existing suffix; 0 means no leads yet.
type fixedLeadSeq int64

func (f fixedLeadSeq) MaxLeadSeq(context.Context, string) (int64, bool, error) {
	return int64(f), f > 0, nil
}
