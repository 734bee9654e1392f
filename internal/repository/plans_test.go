package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

func setupPlanMock(t *testing.T) (*PostgresPlanRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresPlanRepository(db)
	cleanup := func() {
		db.Close()
	}
	return repo, mock, cleanup
}

func TestPlansForWeek_Success(t *testing.T) {
	repo, mock, cleanup := setupPlanMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_name, locations FROM plans WHERE week_start = $1`)).
		WithArgs("20250811").
		WillReturnRows(sqlmock.NewRows([]string{"user_name", "locations"}).
			AddRow("ada", pq.StringArray{"X", "", "", "", "", "", ""}))

	plans, err := repo.PlansForWeek(context.Background(), "20250811")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plans) != 1 || plans["ada"][0] != "X" || len(plans["ada"]) != 7 {
		t.Errorf("unexpected plans: %+v", plans)
	}
}

func TestPlansForWeek_Error(t *testing.T) {
	repo, mock, cleanup := setupPlanMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_name, locations FROM plans WHERE week_start = $1`)).
		WithArgs("20250811").
		WillReturnError(errors.New("query fail"))

	if _, err := repo.PlansForWeek(context.Background(), "20250811"); err == nil {
		t.Error("expected error")
	}
}

func TestUpsertPlan(t *testing.T) {
	repo, mock, cleanup := setupPlanMock(t)
	defer cleanup()

	locs := []string{"X", "", "", "", "", "", "Weekly Off"}
	mock.ExpectExec(`INSERT INTO plans`).
		WithArgs("20250811", "ada", pq.Array(locs)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.UpsertPlan(context.Background(), "20250811", "ada", locs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestAddCustomLocation(t *testing.T) {
	repo, mock, cleanup := setupPlanMock(t)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO custom_locations`).
		WithArgs("ada", "20250811", "2025-08-12", "Depot").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.AddCustomLocation(context.Background(), "ada", "20250811", "2025-08-12", "Depot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
