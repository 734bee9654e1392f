// Package service provides business logic for the tourplan datastore:
// user management with PIN encryption at rest, weekly plans, and the admin
// week override, delegating persistence to repository interfaces.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/samplerpa08-cpu/tourplan/internal/models"
	"github.com/samplerpa08-cpu/tourplan/internal/week"
)

var (
	// ErrExists means a user with the same name but different data exists.
	ErrExists = errors.New("user already exists")
	// ErrNotFound means the named user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidCredentials means the name/PIN pair did not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports a structurally invalid request the caller should
// not retry.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// UserRepository defines the persistence operations needed by UserService.
type UserRepository interface {
	// ListUsers returns every user without credentials, ordered by name.
	ListUsers(ctx context.Context) ([]models.User, error)
	// UserExists reports whether a user with the given name exists.
	UserExists(ctx context.Context, name string) (bool, error)
	// GetCredentials returns the PIN ciphertext and admin flag for a user;
	// sql.ErrNoRows for an unknown name.
	GetCredentials(ctx context.Context, name string) ([]byte, bool, error)
	// UpsertUser inserts or replaces a user record.
	UpsertUser(ctx context.Context, name string, cipher []byte, isAdmin bool) error
	// DeleteUser removes a user and cascades plans and custom locations.
	DeleteUser(ctx context.Context, name string) (models.DeletedData, error)
}

// UserService implements user management on top of a UserRepository, with
// PINs encrypted at rest.
type UserService struct {
	repo  UserRepository
	plans PlanRepository
	pins  *PINCipher
	now   func() time.Time
}

// NewUserService constructs a UserService. plans supplies the current-week
// plans attached to successful logins.
func NewUserService(repo UserRepository, plans PlanRepository, pins *PINCipher) *UserService {
	return &UserService{repo: repo, plans: plans, pins: pins, now: time.Now}
}

// List returns every user, credentials excluded.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.repo.ListUsers(ctx)
}

// Add creates a user with the given 4-digit PIN. Re-adding an identical
// user is a no-op so that queued client mutations replay cleanly; a name
// collision with different data is ErrExists.
func (s *UserService) Add(ctx context.Context, name, pin string, isAdmin bool) error {
	if name == "" {
		return &ValidationError{Message: "name is required"}
	}
	if !pinPattern.MatchString(pin) {
		return &ValidationError{Message: "password must be a 4-digit PIN"}
	}

	stored, storedAdmin, err := s.repo.GetCredentials(ctx, name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// New user.
	case err != nil:
		return fmt.Errorf("check existing user: %w", err)
	default:
		existing, derr := s.pins.Decrypt(stored)
		if derr == nil && existing == pin && storedAdmin == isAdmin {
			return nil
		}
		return ErrExists
	}

	cipher, err := s.pins.Encrypt(pin)
	if err != nil {
		return fmt.Errorf("encrypt PIN: %w", err)
	}
	return s.repo.UpsertUser(ctx, name, cipher, isAdmin)
}

// Delete removes a user along with all dependent plans and custom
// locations, and reports what the cascade removed.
func (s *UserService) Delete(ctx context.Context, name string) (models.DeletedData, error) {
	return s.repo.DeleteUser(ctx, name)
}

// Login checks the name/PIN pair and, on success, returns the admin flag
// and every user's plan for the current week.
func (s *UserService) Login(ctx context.Context, name, pin string) (bool, map[string][]string, error) {
	stored, isAdmin, err := s.repo.GetCredentials(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil, ErrInvalidCredentials
	}
	if err != nil {
		return false, nil, fmt.Errorf("load credentials: %w", err)
	}
	plain, err := s.pins.Decrypt(stored)
	if err != nil {
		return false, nil, fmt.Errorf("decrypt stored PIN: %w", err)
	}
	if plain != pin {
		return false, nil, ErrInvalidCredentials
	}

	current := week.MustCompute(s.now())
	plans, err := s.plans.PlansForWeek(ctx, current.ID)
	if err != nil {
		// Login still succeeds; plans are a convenience payload.
		plans = map[string][]string{}
	}
	return isAdmin, plans, nil
}

// Decrypt returns a user's plaintext PIN. The handler layer gates this
// behind the admin secret.
func (s *UserService) Decrypt(ctx context.Context, name string) (string, error) {
	stored, _, err := s.repo.GetCredentials(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load credentials: %w", err)
	}
	return s.pins.Decrypt(stored)
}
