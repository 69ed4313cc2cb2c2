package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bordercore/drill/store"
)

func (d *DB) UpsertUserSetting(ctx context.Context, upsert *store.UpsertUserSetting) (*store.UserSetting, error) {
	stmt := `
		INSERT INTO user_setting (user_id, settings)
		VALUES (?, ?)
		ON CONFLICT (user_id)
		DO UPDATE SET settings = EXCLUDED.settings, updated_ts = strftime('%s', 'now')
		RETURNING user_id, settings, created_ts, updated_ts`

	setting := &store.UserSetting{}
	if err := d.db.QueryRowContext(ctx, stmt, upsert.UserID, upsert.Settings).Scan(
		&setting.UserID,
		&setting.Settings,
		&setting.CreatedTs,
		&setting.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert user setting: %w", err)
	}
	return setting, nil
}

func (d *DB) GetUserSetting(ctx context.Context, find *store.FindUserSetting) (*store.UserSetting, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = ?"), append(args, *v)
	}

	query := `
		SELECT user_id, settings, created_ts, updated_ts
		FROM user_setting
		WHERE ` + strings.Join(where, " AND ")

	setting := &store.UserSetting{}
	err := d.db.QueryRowContext(ctx, query, args...).Scan(
		&setting.UserID,
		&setting.Settings,
		&setting.CreatedTs,
		&setting.UpdatedTs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user setting: %w", err)
	}
	return setting, nil
}
