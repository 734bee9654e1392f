package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/samplerpa08-cpu/tourplan/internal/models"
)

// PostgresOverrideRepository persists the singleton admin week override.
type PostgresOverrideRepository struct {
	DB *sql.DB
}

// NewPostgresOverrideRepository creates a PostgresOverrideRepository using
// the provided *sql.DB.
func NewPostgresOverrideRepository(db *sql.DB) *PostgresOverrideRepository {
	return &PostgresOverrideRepository{DB: db}
}

// Get returns the current override, or nil when none is set.
func (r *PostgresOverrideRepository) Get(ctx context.Context) (*models.AdminOverride, error) {
	var o models.AdminOverride
	err := r.DB.QueryRowContext(ctx, `
		SELECT admin_name, override_week_start, ts FROM admin_override WHERE id = 1
	`).Scan(&o.AdminName, &o.OverrideWeekStart, &o.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get override: %w", err)
	}
	return &o, nil
}

// Set replaces the singleton override.
func (r *PostgresOverrideRepository) Set(ctx context.Context, o models.AdminOverride) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO admin_override (id, admin_name, override_week_start, ts)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			admin_name = EXCLUDED.admin_name,
			override_week_start = EXCLUDED.override_week_start,
			ts = EXCLUDED.ts
	`, o.AdminName, o.OverrideWeekStart, o.Timestamp)
	if err != nil {
		return fmt.Errorf("Set override: %w", err)
	}
	return nil
}

// Clear removes the override. Clearing an absent override is a no-op.
func (r *PostgresOverrideRepository) Clear(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM admin_override WHERE id = 1`); err != nil {
		return fmt.Errorf("Clear override: %w", err)
	}
	return nil
}
