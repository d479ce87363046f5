package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"smartcrm/internal/models"
)

type PermissionRepository struct {
	db DBTX
}

func NewPermissionRepository(db DBTX) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) WithTx(tx *sql.Tx) *PermissionRepository {
	return &PermissionRepository{db: tx}
}

func (r *PermissionRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM permissions`).Scan(&n)
	return n, err
}

func (r *PermissionRepository) Insert(ctx context.Context, p models.Permission) (int, error) {
	var id int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO permissions (permission_key, permission_name, parent_id, category, level, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (permission_key) DO UPDATE SET permission_name = EXCLUDED.permission_name
		RETURNING id
	`, p.Key, p.Name, p.ParentID, p.Category, p.Level, p.Description).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert permission %s: %w", p.Key, err)
	}
	return id, nil
}

const permissionColumns = `p.id, p.permission_key, p.permission_name, p.parent_id, p.category, p.level, p.description`

func scanPermissions(rows *sql.Rows) ([]models.Permission, error) {
	defer rows.Close()
	out := []models.Permission{}
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Name, &p.ParentID, &p.Category, &p.Level, &p.Description); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PermissionRepository) List(ctx context.Context) ([]models.Permission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+permissionColumns+`
		FROM permissions p
		ORDER BY p.level, p.parent_id NULLS FIRST, p.permission_key
	`)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

func (r *PermissionRepository) ForUser(ctx context.Context, userID int) ([]models.Permission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+permissionColumns+`
		FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1 AND up.granted
		ORDER BY p.level, p.permission_key
	`, userID)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

func (r *PermissionRepository) KeysForUser(ctx context.Context, userID int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.permission_key
		FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1 AND up.granted
		ORDER BY p.permission_key
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// CountExisting reports how many of ids exist in the catalog.
func (r *PermissionRepository) CountExisting(ctx context.Context, ids []int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM permissions WHERE id = ANY($1)`, pq.Array(ids),
	).Scan(&n)
	return n, err
}

// ReplaceForUser swaps the user's grants for ids. Call inside a transaction.
func (r *PermissionRepository) ReplaceForUser(ctx context.Context, userID int, ids []int, grantedBy int) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_permissions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear grants: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_permissions (user_id, permission_id, granted, granted_by)
		SELECT $1, unnest($2::int[]), TRUE, $3
		ON CONFLICT (user_id, permission_id) DO NOTHING
	`, userID, pq.Array(ids), grantedBy)
	if err != nil {
		return fmt.Errorf("insert grants: %w", err)
	}
	return nil
}

func (r *PermissionRepository) Revoke(ctx context.Context, userID, permissionID int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2`, userID, permissionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GrantAll gives the user every catalog permission it does not have yet.
func (r *PermissionRepository) GrantAll(ctx context.Context, userID int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO user_permissions (user_id, permission_id, granted)
		SELECT $1, id, TRUE FROM permissions
		ON CONFLICT (user_id, permission_id) DO NOTHING
	`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PermissionRepository) DeleteForUser(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_permissions WHERE user_id = $1`, userID)
	return err
}
