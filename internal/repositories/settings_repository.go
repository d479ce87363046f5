package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type SettingsRepository interface {
	GetAll(ctx context.Context) (map[string]json.RawMessage, error)
	Get(ctx context.Context, settingType string) (json.RawMessage, error)
	Upsert(ctx context.Context, settingType string, data json.RawMessage, updatedBy *int) error
	InsertIfMissing(ctx context.Context, settingType string, data json.RawMessage) error
}

type settingsRepository struct {
	db DBTX
}

func NewSettingsRepository(db DBTX) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetAll(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT setting_type, setting_data FROM lead_settings ORDER BY setting_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]json.RawMessage{}
	for rows.Next() {
		var (
			t    string
			data []byte
		)
		if err := rows.Scan(&t, &data); err != nil {
			return nil, err
		}
		out[t] = json.RawMessage(data)
	}
	return out, rows.Err()
}

// Get returns nil when the setting was never saved.
func (r *settingsRepository) Get(ctx context.Context, settingType string) (json.RawMessage, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT setting_data FROM lead_settings WHERE setting_type = $1`, settingType,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %s: %w", settingType, err)
	}
	return json.RawMessage(data), nil
}

func (r *settingsRepository) Upsert(ctx context.Context, settingType string, data json.RawMessage, updatedBy *int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lead_settings (setting_type, setting_data, updated_by, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (setting_type)
		DO UPDATE SET setting_data = EXCLUDED.setting_data, updated_by = EXCLUDED.updated_by, updated_at = NOW()
	`, settingType, []byte(data), updatedBy)
	return err
}

func (r *settingsRepository) InsertIfMissing(ctx context.Context, settingType string, data json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lead_settings (setting_type, setting_data)
		VALUES ($1, $2)
		ON CONFLICT (setting_type) DO NOTHING
	`, settingType, []byte(data))
	return err
}
