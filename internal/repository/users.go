// Package repository provides PostgreSQL persistence for the tourplan
// datastore: users, weekly plans, custom locations, and the admin override.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/samplerpa08-cpu/tourplan/internal/models"
)

// PostgresUserRepository implements user persistence against PostgreSQL.
// PINs are stored as ciphertext; encryption is the service layer's concern.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresUserRepository creates a PostgresUserRepository using the
// provided *sql.DB.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// ListUsers returns every user's name and admin flag, ordered by name.
// Credentials are never included.
func (r *PostgresUserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT name, is_admin FROM users ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("ListUsers: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.Name, &u.IsAdmin); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserExists reports whether a user with the given name exists.
func (r *PostgresUserRepository) UserExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE name = $1)`,
		name,
	).Scan(&exists)
	return exists, err
}

// GetCredentials returns the stored PIN ciphertext and admin flag for one
// user. sql.ErrNoRows is passed through for an unknown name.
func (r *PostgresUserRepository) GetCredentials(ctx context.Context, name string) ([]byte, bool, error) {
	var cipher []byte
	var isAdmin bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT password, is_admin FROM users WHERE name = $1`,
		name,
	).Scan(&cipher, &isAdmin)
	if err != nil {
		return nil, false, err
	}
	return cipher, isAdmin, nil
}

// UpsertUser inserts or replaces a user. Replays of the same client
// mutation land on the same end state.
func (r *PostgresUserRepository) UpsertUser(ctx context.Context, name string, cipher []byte, isAdmin bool) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (name, password, is_admin)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			password = EXCLUDED.password,
			is_admin = EXCLUDED.is_admin
	`, name, cipher, isAdmin)
	if err != nil {
		return fmt.Errorf("UpsertUser: %w", err)
	}
	return nil
}

// DeleteUser removes a user along with every plan and custom location keyed
// by that name, in one transaction, and reports what the cascade removed.
func (r *PostgresUserRepository) DeleteUser(ctx context.Context, name string) (models.DeletedData, error) {
	var deleted models.DeletedData

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return deleted, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM plans WHERE user_name = $1`, name)
	if err != nil {
		return deleted, fmt.Errorf("delete plans: %w", err)
	}
	deleted.Plans, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM custom_locations WHERE user_name = $1`, name)
	if err != nil {
		return deleted, fmt.Errorf("delete custom locations: %w", err)
	}
	deleted.CustomLocations, _ = res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE name = $1`, name); err != nil {
		return deleted, fmt.Errorf("delete user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return deleted, fmt.Errorf("commit: %w", err)
	}
	return deleted, nil
}
