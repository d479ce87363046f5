package repositories

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{
	"id", "username", "password", "first_name", "last_name", "full_name", "email",
	"designation", "mobile_no", "date_of_birth", "photo", "role",
	"permissions", "is_active", "telegram_chat_id", "created_by", "created_at", "last_login",
}

func TestUserRepository_GetByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users u WHERE u.username = $1`)).
		WithArgs("anna").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			7, "anna", "$2a$10$hash", nil, nil, "Anna K", "anna@example.com",
			nil, nil, "1990-04-01", nil, "sales",
			[]byte(`{"can_view_leads":true}`), true, int64(555), 1, created, nil,
		))

	u, err := NewUserRepository(db).GetByUsername(context.Background(), "anna")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, 7, u.ID)
	assert.True(t, u.Permissions["can_view_leads"])
	require.NotNil(t, u.DateOfBirth)
	assert.Equal(t, "1990-04-01", *u.DateOfBirth)
	require.NotNil(t, u.TelegramChatID)
	assert.Equal(t, int64(555), *u.TelegramChatID)
	assert.Nil(t, u.LastLogin)
}

func TestUserRepository_GetByIDMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users u WHERE u.id = $1`)).
		WithArgs(99).WillReturnError(sql.ErrNoRows)

	u, err := NewUserRepository(db).GetByID(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUserRepository_ListAdminIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users WHERE role = 'admin'`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(4))

	ids, err := NewUserRepository(db).ListAdminIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, ids)
}
