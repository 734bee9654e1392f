// Package gateway wraps network calls to the remote datastore with timeout,
// bounded retry with exponential backoff, and an online/offline signal. It
// distinguishes requests that could not be delivered (retryable, the caller
// keeps them queued) from requests the server understood and refused
// (never retried).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/samplerpa08-cpu/tourplan/internal/models"
)

// UnavailableError means the request could not be delivered after all
// retries. The intended mutation should stay queued.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("remote unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// RejectedError means the server understood the request and refused it.
// Retrying would never succeed.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("remote rejected (%d): %s", e.Status, e.Message)
}

// transientError marks a failure worth retrying: a network-level error or a
// non-2xx status without a parseable JSON body.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Gateway issues requests against the datastore API.
type Gateway struct {
	client      *http.Client
	baseURL     string
	maxRetries  int
	baseDelay   time.Duration
	timeout     time.Duration
	adminSecret string
	log         *zap.Logger

	online      atomic.Bool
	transitions chan struct{}
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n int) Option { return func(g *Gateway) { g.maxRetries = n } }

// WithBaseDelay sets the backoff unit: attempt n waits 2^n * d.
func WithBaseDelay(d time.Duration) Option { return func(g *Gateway) { g.baseDelay = d } }

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option { return func(g *Gateway) { g.timeout = d } }

// WithAdminSecret attaches the admin secret header to every request.
func WithAdminSecret(secret string) Option { return func(g *Gateway) { g.adminSecret = secret } }

// New builds a Gateway. A nil client falls back to http.DefaultClient. The
// gateway starts in the online state; the signal is corrected by Call
// outcomes and the connectivity probe.
func New(baseURL string, client *http.Client, log *zap.Logger, opts ...Option) *Gateway {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gateway{
		client:      client,
		baseURL:     baseURL,
		maxRetries:  3,
		baseDelay:   250 * time.Millisecond,
		timeout:     5 * time.Second,
		log:         log,
		transitions: make(chan struct{}, 1),
	}
	g.online.Store(true)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Online reports the current connectivity belief. It gates whether the sync
// engine bothers attempting immediate delivery; correctness never depends
// on it being accurate.
func (g *Gateway) Online() bool { return g.online.Load() }

// SetOnline updates the connectivity signal. An offline-to-online flip
// emits a transition event.
func (g *Gateway) SetOnline(online bool) {
	was := g.online.Swap(online)
	if online && !was {
		select {
		case g.transitions <- struct{}{}:
		default:
		}
	}
}

// Transitions emits one event per offline-to-online flip.
func (g *Gateway) Transitions() <-chan struct{} { return g.transitions }

// StartProbe pings the health endpoint at the given interval and feeds the
// online signal until ctx is done.
func (g *Gateway) StartProbe(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.SetOnline(g.Health(ctx) == nil)
			}
		}
	}()
}

// Call performs one logical RPC. body (if non-nil) is sent as JSON; out (if
// non-nil) receives the decoded 2xx response. Transient failures are retried
// with exponential backoff up to the configured maximum, then reported as
// *UnavailableError. A non-2xx response with a parseable JSON envelope is a
// *RejectedError and is never retried. A malformed 2xx body is neither.
func (g *Gateway) Call(ctx context.Context, method, endpoint string, body, out any) error {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			delay := (1 << attempt) * g.baseDelay
			select {
			case <-ctx.Done():
				g.SetOnline(false)
				return &UnavailableError{Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		err := g.once(ctx, method, endpoint, body, out)
		if err == nil {
			g.SetOnline(true)
			return nil
		}
		var transient *transientError
		if !errors.As(err, &transient) {
			return err
		}
		lastErr = transient.err
		g.log.Debug("request attempt failed",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}
	g.SetOnline(false)
	return &UnavailableError{Err: lastErr}
}

func (g *Gateway) once(ctx context.Context, method, endpoint string, body, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, g.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.adminSecret != "" {
		req.Header.Set("X-Admin-Secret", g.adminSecret)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &transientError{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transientError{err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env models.Envelope
		if json.Unmarshal(data, &env) == nil {
			msg := env.Message
			if msg == "" {
				msg = http.StatusText(resp.StatusCode)
			}
			return &RejectedError{Status: resp.StatusCode, Message: msg}
		}
		return &transientError{err: fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(data))}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// rejectIfNotOK converts a 2xx ok:false envelope into a RejectedError.
func rejectIfNotOK(env models.Envelope) error {
	if env.OK {
		return nil
	}
	return &RejectedError{Status: http.StatusOK, Message: env.Message}
}

// Health checks the datastore health endpoint with a single attempt.
func (g *Gateway) Health(ctx context.Context) error {
	return g.once(ctx, http.MethodGet, "/api/health", nil, nil)
}

// ListUsers fetches the user list. Passwords are never included.
func (g *Gateway) ListUsers(ctx context.Context) (*models.UsersResponse, error) {
	var resp models.UsersResponse
	if err := g.Call(ctx, http.MethodGet, "/api/users", nil, &resp); err != nil {
		return nil, err
	}
	if err := rejectIfNotOK(resp.Envelope); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login authenticates a user and returns the current week's plans.
func (g *Gateway) Login(ctx context.Context, name, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	body := map[string]string{"name": name, "password": password}
	if err := g.Call(ctx, http.MethodPost, "/api/login", body, &resp); err != nil {
		return nil, err
	}
	if err := rejectIfNotOK(resp.Envelope); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPlans fetches all plans for one week.
func (g *Gateway) GetPlans(ctx context.Context, weekStart string) (*models.PlansResponse, error) {
	var resp models.PlansResponse
	body := map[string]string{"weekStart": weekStart}
	if err := g.Call(ctx, http.MethodPost, "/api/plans/get", body, &resp); err != nil {
		return nil, err
	}
	if err := rejectIfNotOK(resp.Envelope); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetPlan overwrites one user's 7-slot plan for one week.
func (g *Gateway) SetPlan(ctx context.Context, p models.PlanPayload) error {
	var resp models.Envelope
	if err := g.Call(ctx, http.MethodPost, "/api/plans/set", p, &resp); err != nil {
		return err
	}
	return rejectIfNotOK(resp)
}

// AddUser creates or replaces a user.
func (g *Gateway) AddUser(ctx context.Context, p models.UserPayload) error {
	var resp models.Envelope
	if err := g.Call(ctx, http.MethodPost, "/api/users/add", p, &resp); err != nil {
		return err
	}
	return rejectIfNotOK(resp)
}

// DeleteUser removes a user and all dependent data.
func (g *Gateway) DeleteUser(ctx context.Context, name string) (*models.DeleteUserResponse, error) {
	var resp models.DeleteUserResponse
	body := map[string]string{"name": name}
	if err := g.Call(ctx, http.MethodPost, "/api/users/delete", body, &resp); err != nil {
		return nil, err
	}
	if err := rejectIfNotOK(resp.Envelope); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DecryptPassword returns a user's PIN; the server gates this behind the
// admin secret header.
func (g *Gateway) DecryptPassword(ctx context.Context, name string) (*models.DecryptResponse, error) {
	var resp models.DecryptResponse
	body := map[string]string{"name": name}
	if err := g.Call(ctx, http.MethodPost, "/api/users/decrypt", body, &resp); err != nil {
		return nil, err
	}
	if err := rejectIfNotOK(resp.Envelope); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddCustomLocation records a one-off location for a single day.
func (g *Gateway) AddCustomLocation(ctx context.Context, p models.CustomLocationPayload) error {
	var resp models.Envelope
	if err := g.Call(ctx, http.MethodPost, "/api/custom/add", p, &resp); err != nil {
		return err
	}
	return rejectIfNotOK(resp)
}

// GetOverride fetches the admin week override, nil when unset.
func (g *Gateway) GetOverride(ctx context.Context) (*models.OverrideResponse, error) {
	var resp models.OverrideResponse
	if err := g.Call(ctx, http.MethodGet, "/api/override", nil, &resp); err != nil {
		return nil, err
	}
	if err := rejectIfNotOK(resp.Envelope); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetOverride sets or, with null fields, clears the admin week override.
func (g *Gateway) SetOverride(ctx context.Context, p models.OverridePayload) (*models.OverrideResponse, error) {
	var resp models.OverrideResponse
	if err := g.Call(ctx, http.MethodPost, "/api/override", p, &resp); err != nil {
		return nil, err
	}
	if err := rejectIfNotOK(resp.Envelope); err != nil {
		return nil, err
	}
	return &resp, nil
}
