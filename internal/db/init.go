package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    name TEXT PRIMARY KEY,
    password BYTEA NOT NULL,
    is_admin BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS plans (
    week_start TEXT NOT NULL,
    user_name TEXT REFERENCES users(name) ON DELETE CASCADE,
    locations TEXT[] NOT NULL,
    PRIMARY KEY (week_start, user_name)
);

CREATE TABLE IF NOT EXISTS custom_locations (
    user_name TEXT REFERENCES users(name) ON DELETE CASCADE,
    week_start TEXT NOT NULL,
    day_date TEXT NOT NULL,
    location TEXT NOT NULL,
    PRIMARY KEY (user_name, week_start, day_date)
);

CREATE TABLE IF NOT EXISTS admin_override (
    id INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    admin_name TEXT NOT NULL,
    override_week_start TEXT NOT NULL,
    ts BIGINT NOT NULL
);
`

func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}
