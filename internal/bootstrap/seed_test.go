package bootstrap

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
	"smartcrm/internal/config"
	"smartcrm/internal/repositories"
	"smartcrm/internal/services"
)

func newSeeder(t *testing.T) (*Seeder, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := NewSeeder(db,
		repositories.NewUserRepository(db),
		repositories.NewPermissionRepository(db),
		services.NewSettingsService(repositories.NewSettingsRepository(db)),
	)
	return s, mock
}

var cfg = config.BootstrapConfig{AdminUsername: "admin", AdminPassword: "admin123", AdminEmail: "admin@example.com"}

func expectTail(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users WHERE role = 'admin'`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT $1, id, TRUE FROM permissions`)).
		WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (setting_type) DO NOTHING`)).
		WithArgs("status_percentages", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (setting_type) DO NOTHING`)).
		WithArgs("preferences", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
}

func TestSeeder_FreshDatabase(t *testing.T) {
	s, mock := newSeeder(t)
	entries, err := authz.Catalog()
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM permissions`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	for i, e := range entries {
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO permissions`)).
			WithArgs(e.Key, e.Name, sqlmock.AnyArg(), e.Category, e.Level, e.Description).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(i + 1))
	}
	mock.ExpectCommit()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users u WHERE u.username = $1`)).
		WithArgs("admin").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("admin", sqlmock.AnyArg(), nil, nil, "Administrator", "admin@example.com", nil,
			nil, nil, authz.RoleAdmin, sqlmock.AnyArg(), true, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))
	expectTail(mock)

	require.NoError(t, s.Run(context.Background(), cfg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeeder_AlreadySeeded(t *testing.T) {
	s, mock := newSeeder(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM permissions`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(180))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users u WHERE u.username = $1`)).
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "password", "first_name", "last_name", "full_name", "email",
			"designation", "mobile_no", "date_of_birth", "photo", "role",
			"permissions", "is_active", "telegram_chat_id", "created_by", "created_at", "last_login",
		}).AddRow(1, "admin", "hash", nil, nil, "Administrator", "", nil, nil, nil, nil, "admin",
			[]byte(`{}`), true, nil, nil, time.Now(), nil))
	expectTail(mock)

	require.NoError(t, s.Run(context.Background(), cfg))
	assert.NoError(t, mock.ExpectationsWereMet())
}
