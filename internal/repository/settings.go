package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
)

const SettingCurrentNetwork = "current_network"

func (r *Repository) Setting(ctx context.Context, name string) (string, error) {
	query, args, err := r.builder().
		Select("value").
		From("settings").
		Where(squirrel.Eq{"name": name}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build setting query: %w", err)
	}

	var value string
	if err := r.db.GetContext(ctx, &value, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get setting %s: %w", name, err)
	}

	return value, nil
}

func (r *Repository) SetSetting(ctx context.Context, name, value string) error {
	query, args, err := r.builder().
		Insert("settings").
		Columns("name", "value").
		Values(name, value).
		Suffix("ON CONFLICT (name) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build setting upsert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to store setting %s: %w", name, err)
	}

	return nil
}

// CurrentNetwork returns the stored network key, or fallback when none was stored.
func (r *Repository) CurrentNetwork(ctx context.Context, fallback string) (string, error) {
	value, err := r.Setting(ctx, SettingCurrentNetwork)
	if errors.Is(err, ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
