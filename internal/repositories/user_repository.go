package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartcrm/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) (int, error)
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	List(ctx context.Context, excludeID int) ([]*models.User, error)
	ListActive(ctx context.Context) ([]models.ActiveUser, error)
	ListAdminIDs(ctx context.Context) ([]int, error)
	Update(ctx context.Context, id int, fields map[string]any) error
	UpdatePassword(ctx context.Context, id int, hash string) error
	UpdateLastLogin(ctx context.Context, id int, at time.Time) error
	UpdateLegacyPermissions(ctx context.Context, id int, perms map[string]bool) error
	SetActive(ctx context.Context, id int, active bool) error
	SetPhoto(ctx context.Context, id int, key string) error
	Delete(ctx context.Context, id int) error
}

type userRepository struct {
	DB DBTX
}

func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `
	u.id, u.username, u.password, u.first_name, u.last_name, u.full_name, u.email,
	u.designation, u.mobile_no, to_char(u.date_of_birth, 'YYYY-MM-DD'), u.photo, u.role,
	u.permissions, u.is_active, u.telegram_chat_id, u.created_by, u.created_at, u.last_login`

func scanUser(row rowScanner, extra ...any) (*models.User, error) {
	var (
		u     models.User
		perms []byte
	)
	dest := []any{
		&u.ID, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName, &u.FullName, &u.Email,
		&u.Designation, &u.MobileNo, &u.DateOfBirth, &u.Photo, &u.Role,
		&perms, &u.IsActive, &u.TelegramChatID, &u.CreatedBy, &u.CreatedAt, &u.LastLogin,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	u.Permissions = map[string]bool{}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &u.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions of user %d: %w", u.ID, err)
		}
	}
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (int, error) {
	perms, err := json.Marshal(user.Permissions)
	if err != nil {
		return 0, err
	}
	const q = `
		INSERT INTO users (
			username, password, first_name, last_name, full_name, email, designation,
			mobile_no, date_of_birth, role, permissions, is_active, telegram_chat_id, created_by
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id, created_at
	`
	err = r.DB.QueryRowContext(ctx, q,
		user.Username,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.FullName,
		user.Email,
		user.Designation,
		user.MobileNo,
		user.DateOfBirth,
		user.Role,
		perms,
		user.IsActive,
		user.TelegramChatID,
		user.CreatedBy,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return user.ID, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users u WHERE u.username = $1`
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// List returns every user except excludeID, with creator name and grant count.
func (r *userRepository) List(ctx context.Context, excludeID int) ([]*models.User, error) {
	q := `
		SELECT ` + userColumns + `, c.full_name,
			(SELECT COUNT(*) FROM user_permissions up WHERE up.user_id = u.id AND up.granted)
		FROM users u
		LEFT JOIN users c ON c.id = u.created_by
		WHERE u.id <> $1
		ORDER BY u.created_at DESC
	`
	rows, err := r.DB.QueryContext(ctx, q, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		var (
			createdByName sql.NullString
			count         int
		)
		u, err := scanUser(rows, &createdByName, &count)
		if err != nil {
			return nil, err
		}
		if createdByName.Valid {
			u.CreatedByName = &createdByName.String
		}
		u.PermissionCount = count
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *userRepository) ListActive(ctx context.Context) ([]models.ActiveUser, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, username, full_name, role
		FROM users
		WHERE is_active
		ORDER BY full_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ActiveUser{}
	for rows.Next() {
		var u models.ActiveUser
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.Role); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *userRepository) ListAdminIDs(ctx context.Context) ([]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM users WHERE role = 'admin'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// allowed columns for partial updates
var userUpdatable = map[string]bool{
	"full_name": true, "first_name": true, "last_name": true, "email": true,
	"designation": true, "mobile_no": true, "date_of_birth": true, "role": true,
	"permissions": true, "is_active": true, "password": true, "telegram_chat_id": true,
}

func (r *userRepository) Update(ctx context.Context, id int, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	i := 1
	for _, col := range sortedKeys(fields) {
		if !userUpdatable[col] {
			return fmt.Errorf("user column %q is not updatable", col)
		}
		val := fields[col]
		if col == "permissions" {
			b, err := json.Marshal(val)
			if err != nil {
				return err
			}
			val = b
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), i)
	_, err := r.DB.ExecContext(ctx, q, args...)
	return err
}

func (r *userRepository) UpdatePassword(ctx context.Context, id int, hash string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET password = $1 WHERE id = $2`, hash, id)
	return err
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id int, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, id)
	return err
}

func (r *userRepository) UpdateLegacyPermissions(ctx context.Context, id int, perms map[string]bool) error {
	b, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `UPDATE users SET permissions = $1 WHERE id = $2`, b, id)
	return err
}

func (r *userRepository) SetActive(ctx context.Context, id int, active bool) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET is_active = $1 WHERE id = $2`, active, id)
	return err
}

func (r *userRepository) SetPhoto(ctx context.Context, id int, key string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET photo = $1 WHERE id = $2`, key, id)
	return err
}

func (r *userRepository) Delete(ctx context.Context, id int) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
