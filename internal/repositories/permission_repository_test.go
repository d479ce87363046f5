package repositories

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionRepository_ReplaceForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM user_permissions WHERE user_id = $1`)).
		WithArgs(4).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT $1, unnest($2::int[]), TRUE, $3`)).
		WithArgs(4, pq.Array([]int{1, 2}), 9).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, NewPermissionRepository(db).WithTx(tx).ReplaceForUser(context.Background(), 4, []int{1, 2}, 9))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepository_ReplaceWithNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM user_permissions WHERE user_id = $1`)).
		WithArgs(4).WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, NewPermissionRepository(db).ReplaceForUser(context.Background(), 4, nil, 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepository_Revoke(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPermissionRepository(db)

	q := regexp.QuoteMeta(`DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2`)
	mock.ExpectExec(q).WithArgs(4, 11).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(4, 12).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Revoke(context.Background(), 4, 11)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Revoke(context.Background(), 4, 12)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepository_KeysForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT p.permission_key`)).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"permission_key"}).AddRow("dashboard").AddRow("leads.view_table"))

	keys, err := NewPermissionRepository(db).KeysForUser(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"dashboard", "leads.view_table"}, keys)
}

func TestPermissionRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"id", "permission_key", "permission_name", "parent_id", "category", "level", "description"}
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY p.level, p.parent_id NULLS FIRST, p.permission_key`)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "leads", "Leads", nil, "page", 0, "").
			AddRow(2, "leads.actions", "Actions", 1, "section", 1, ""))

	list, err := NewPermissionRepository(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Nil(t, list[0].ParentID)
	require.NotNil(t, list[1].ParentID)
	assert.Equal(t, 1, *list[1].ParentID)
}
