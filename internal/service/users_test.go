package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/samplerpa08-cpu/tourplan/internal/models"
	"github.com/samplerpa08-cpu/tourplan/internal/service"
	"github.com/samplerpa08-cpu/tourplan/internal/week"
)

type mockUserRepo struct {
	ListUsersFunc      func(ctx context.Context) ([]models.User, error)
	UserExistsFunc     func(ctx context.Context, name string) (bool, error)
	GetCredentialsFunc func(ctx context.Context, name string) ([]byte, bool, error)
	UpsertUserFunc     func(ctx context.Context, name string, cipher []byte, isAdmin bool) error
	DeleteUserFunc     func(ctx context.Context, name string) (models.DeletedData, error)
}

func (m *mockUserRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	return m.ListUsersFunc(ctx)
}
func (m *mockUserRepo) UserExists(ctx context.Context, name string) (bool, error) {
	return m.UserExistsFunc(ctx, name)
}
func (m *mockUserRepo) GetCredentials(ctx context.Context, name string) ([]byte, bool, error) {
	return m.GetCredentialsFunc(ctx, name)
}
func (m *mockUserRepo) UpsertUser(ctx context.Context, name string, cipher []byte, isAdmin bool) error {
	return m.UpsertUserFunc(ctx, name, cipher, isAdmin)
}
func (m *mockUserRepo) DeleteUser(ctx context.Context, name string) (models.DeletedData, error) {
	return m.DeleteUserFunc(ctx, name)
}

type mockPlanRepo struct {
	PlansForWeekFunc      func(ctx context.Context, weekStart string) (map[string][]string, error)
	UpsertPlanFunc        func(ctx context.Context, weekStart, userName string, locations []string) error
	AddCustomLocationFunc func(ctx context.Context, userName, weekStart, dayDate, location string) error
}

func (m *mockPlanRepo) PlansForWeek(ctx context.Context, weekStart string) (map[string][]string, error) {
	return m.PlansForWeekFunc(ctx, weekStart)
}
func (m *mockPlanRepo) UpsertPlan(ctx context.Context, weekStart, userName string, locations []string) error {
	return m.UpsertPlanFunc(ctx, weekStart, userName, locations)
}
func (m *mockPlanRepo) AddCustomLocation(ctx context.Context, userName, weekStart, dayDate, location string) error {
	return m.AddCustomLocationFunc(ctx, userName, weekStart, dayDate, location)
}

func newPINCipher(t *testing.T) *service.PINCipher {
	t.Helper()
	pins, err := service.NewPINCipher("test-secret")
	if err != nil {
		t.Fatalf("NewPINCipher failed: %v", err)
	}
	return pins
}

func TestPINCipher_RoundTrip(t *testing.T) {
	pins := newPINCipher(t)
	cipher, err := pins.Encrypt("1234")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	plain, err := pins.Decrypt(cipher)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if plain != "1234" {
		t.Errorf("round trip = %q; want 1234", plain)
	}
	if _, err := pins.Decrypt([]byte("short")); err == nil {
		t.Error("expected error for truncated ciphertext")
	}
}

func TestAdd_NewUser(t *testing.T) {
	pins := newPINCipher(t)
	var gotName string
	var gotCipher []byte
	repo := &mockUserRepo{
		GetCredentialsFunc: func(context.Context, string) ([]byte, bool, error) {
			return nil, false, sql.ErrNoRows
		},
		UpsertUserFunc: func(_ context.Context, name string, cipher []byte, isAdmin bool) error {
			gotName, gotCipher = name, cipher
			return nil
		},
	}
	svc := service.NewUserService(repo, &mockPlanRepo{}, pins)

	if err := svc.Add(context.Background(), "ada", "1234", false); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if gotName != "ada" {
		t.Errorf("upserted name = %q", gotName)
	}
	plain, err := pins.Decrypt(gotCipher)
	if err != nil || plain != "1234" {
		t.Errorf("stored PIN not decryptable: %q %v", plain, err)
	}
}

func TestAdd_ValidationRejected(t *testing.T) {
	svc := service.NewUserService(&mockUserRepo{}, &mockPlanRepo{}, newPINCipher(t))
	var ve *service.ValidationError

	if err := svc.Add(context.Background(), "", "1234", false); !errors.As(err, &ve) {
		t.Errorf("empty name: expected ValidationError, got %v", err)
	}
	for _, pin := range []string{"12", "12345", "abcd", ""} {
		if err := svc.Add(context.Background(), "ada", pin, false); !errors.As(err, &ve) {
			t.Errorf("pin %q: expected ValidationError, got %v", pin, err)
		}
	}
}

func TestAdd_DuplicateIsIdempotentForSameData(t *testing.T) {
	pins := newPINCipher(t)
	stored, _ := pins.Encrypt("1234")
	repo := &mockUserRepo{
		GetCredentialsFunc: func(context.Context, string) ([]byte, bool, error) {
			return stored, false, nil
		},
	}
	svc := service.NewUserService(repo, &mockPlanRepo{}, pins)

	// Replaying the same queued mutation is a no-op.
	if err := svc.Add(context.Background(), "ada", "1234", false); err != nil {
		t.Errorf("identical re-add failed: %v", err)
	}
	// A genuine collision is rejected.
	if err := svc.Add(context.Background(), "ada", "9999", false); !errors.Is(err, service.ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	pins := newPINCipher(t)
	stored, _ := pins.Encrypt("1234")
	repo := &mockUserRepo{
		GetCredentialsFunc: func(_ context.Context, name string) ([]byte, bool, error) {
			if name != "ada" {
				return nil, false, sql.ErrNoRows
			}
			return stored, true, nil
		},
	}
	currentWeek := week.MustCompute(time.Now()).ID
	plans := &mockPlanRepo{
		PlansForWeekFunc: func(_ context.Context, weekStart string) (map[string][]string, error) {
			if weekStart != currentWeek {
				t.Errorf("login fetched week %q; want %q", weekStart, currentWeek)
			}
			return map[string][]string{"ada": {"X", "", "", "", "", "", ""}}, nil
		},
	}
	svc := service.NewUserService(repo, plans, pins)

	isAdmin, weekPlans, err := svc.Login(context.Background(), "ada", "1234")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !isAdmin || len(weekPlans) != 1 {
		t.Errorf("unexpected login result: admin=%v plans=%v", isAdmin, weekPlans)
	}

	if _, _, err := svc.Login(context.Background(), "ada", "0000"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("wrong PIN: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "ghost", "1234"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("unknown user: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestDecrypt(t *testing.T) {
	pins := newPINCipher(t)
	stored, _ := pins.Encrypt("4321")
	repo := &mockUserRepo{
		GetCredentialsFunc: func(_ context.Context, name string) ([]byte, bool, error) {
			if name != "ada" {
				return nil, false, sql.ErrNoRows
			}
			return stored, false, nil
		},
	}
	svc := service.NewUserService(repo, &mockPlanRepo{}, pins)

	pin, err := svc.Decrypt(context.Background(), "ada")
	if err != nil || pin != "4321" {
		t.Errorf("Decrypt = %q, %v; want 4321", pin, err)
	}
	if _, err := svc.Decrypt(context.Background(), "ghost"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_Propagates(t *testing.T) {
	want := models.DeletedData{Plans: 3, CustomLocations: 1}
	repo := &mockUserRepo{
		DeleteUserFunc: func(context.Context, string) (models.DeletedData, error) {
			return want, nil
		},
	}
	svc := service.NewUserService(repo, &mockPlanRepo{}, newPINCipher(t))

	got, err := svc.Delete(context.Background(), "ada")
	if err != nil || got != want {
		t.Errorf("Delete = %+v, %v; want %+v", got, err, want)
	}
}
