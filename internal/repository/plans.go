package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresPlanRepository implements plan and custom-location persistence
// against PostgreSQL.
type PostgresPlanRepository struct {
	DB *sql.DB
}

// NewPostgresPlanRepository creates a PostgresPlanRepository using the
// provided *sql.DB.
func NewPostgresPlanRepository(db *sql.DB) *PostgresPlanRepository {
	return &PostgresPlanRepository{DB: db}
}

// PlansForWeek returns every user's 7-slot plan for one week, keyed by
// user name.
func (r *PostgresPlanRepository) PlansForWeek(ctx context.Context, weekStart string) (map[string][]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT user_name, locations FROM plans WHERE week_start = $1
	`, weekStart)
	if err != nil {
		return nil, fmt.Errorf("PlansForWeek: %w", err)
	}
	defer rows.Close()

	plans := make(map[string][]string)
	for rows.Next() {
		var name string
		var locations pq.StringArray
		if err := rows.Scan(&name, &locations); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		plans[name] = []string(locations)
	}
	return plans, rows.Err()
}

// UpsertPlan overwrites one user's plan for one week. Re-sending the same
// update lands on the same end state.
func (r *PostgresPlanRepository) UpsertPlan(ctx context.Context, weekStart, userName string, locations []string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO plans (week_start, user_name, locations)
		VALUES ($1, $2, $3)
		ON CONFLICT (week_start, user_name) DO UPDATE SET
			locations = EXCLUDED.locations
	`, weekStart, userName, pq.Array(locations))
	if err != nil {
		return fmt.Errorf("UpsertPlan: %w", err)
	}
	return nil
}

// AddCustomLocation records a one-off location for a single day. The same
// (user, week, day) key is overwritten on replay rather than duplicated.
func (r *PostgresPlanRepository) AddCustomLocation(ctx context.Context, userName, weekStart, dayDate, location string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO custom_locations (user_name, week_start, day_date, location)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_name, week_start, day_date) DO UPDATE SET
			location = EXCLUDED.location
	`, userName, weekStart, dayDate, location)
	if err != nil {
		return fmt.Errorf("AddCustomLocation: %w", err)
	}
	return nil
}
