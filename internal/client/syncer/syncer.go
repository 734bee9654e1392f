// Package syncer orchestrates the local cache and the remote gateway: every
// mutating action writes to the cache synchronously (and thereby enqueues
// its remote effect), and the engine replays the queue whenever
// connectivity allows, with at-least-once delivery, bounded retry, and
// pruning. Reads reconcile the server's view into the cache and fall back
// to it when the remote is unreachable.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/samplerpa08-cpu/tourplan/internal/client/cache"
	"github.com/samplerpa08-cpu/tourplan/internal/client/gateway"
	"github.com/samplerpa08-cpu/tourplan/internal/models"
	"github.com/samplerpa08-cpu/tourplan/internal/week"
)

// maxAttempts bounds delivery retries per queue item; an item failing its
// fifth attempt is dropped with a warning rather than blocking the queue
// forever.
const maxAttempts = 5

// Engine is the sync engine. Construct with New; the zero value is not
// usable.
type Engine struct {
	store    *cache.Store
	gw       *gateway.Gateway
	log      *zap.Logger
	interval time.Duration

	// replaying is the single-flight guard: at most one replay pass runs
	// at a time, later triggers coalesce into a no-op.
	replaying atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithInterval sets the periodic replay interval used by Run.
func WithInterval(d time.Duration) Option { return func(e *Engine) { e.interval = d } }

// New builds an Engine over the given store and gateway.
func New(store *cache.Store, gw *gateway.Gateway, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		store:    store,
		gw:       gw,
		log:      log,
		interval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run replays the queue on start, on every offline-to-online transition,
// and periodically, until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	e.Replay(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.gw.Transitions():
			e.Replay(ctx)
		case <-ticker.C:
			e.Replay(ctx)
		}
	}
}

// Replay runs one queue-replay pass. Offline, it is a no-op; a trigger that
// fires while another pass is in flight is coalesced. Items are processed
// strictly in insertion order; a delivery failure stops the pass so that a
// later mutation never overtakes an earlier one for the same key.
func (e *Engine) Replay(ctx context.Context) {
	if !e.gw.Online() {
		return
	}
	if !e.replaying.CompareAndSwap(false, true) {
		return
	}
	defer e.replaying.Store(false)

	for _, item := range e.store.Queue() {
		err := e.dispatch(ctx, item)
		if err == nil {
			if derr := e.store.Dequeue(item.ID); derr != nil {
				e.log.Error("failed to dequeue settled item", zap.String("id", item.ID), zap.Error(derr))
				break
			}
			continue
		}

		var unavailable *gateway.UnavailableError
		if errors.As(err, &unavailable) {
			attempts := item.Attempts + 1
			if attempts >= maxAttempts {
				e.log.Warn("dropping queued mutation after exhausting retries",
					zap.String("id", item.ID),
					zap.String("action", string(item.Action)),
					zap.Int("attempts", attempts))
				if derr := e.store.Dequeue(item.ID); derr != nil {
					e.log.Error("failed to drop exhausted item", zap.String("id", item.ID), zap.Error(derr))
				}
			} else if merr := e.store.MarkAttempt(item.ID, attempts); merr != nil {
				e.log.Error("failed to record attempt", zap.String("id", item.ID), zap.Error(merr))
			}
			// Later items must not overtake this one.
			break
		}

		// The server understood and refused, or the payload is unreadable:
		// retrying would never succeed.
		e.log.Warn("queued mutation rejected",
			zap.String("id", item.ID),
			zap.String("action", string(item.Action)),
			zap.Error(err))
		if derr := e.store.Dequeue(item.ID); derr != nil {
			e.log.Error("failed to dequeue rejected item", zap.String("id", item.ID), zap.Error(derr))
			break
		}
	}

	if err := e.store.SetLastSync(time.Now()); err != nil {
		e.log.Error("failed to stamp last sync", zap.Error(err))
	}
}

// dispatch maps one queue item onto its remote call. Unknown actions are
// vacuously successful so they never block the queue.
func (e *Engine) dispatch(ctx context.Context, item models.SyncItem) error {
	switch item.Action {
	case models.ActionUserUpdate:
		var p models.UserPayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", item.Action, err)
		}
		return e.gw.AddUser(ctx, p)

	case models.ActionUserDelete:
		var p models.UserDeletePayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", item.Action, err)
		}
		_, err := e.gw.DeleteUser(ctx, p.Name)
		return err

	case models.ActionPlanUpdate:
		var p models.PlanPayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", item.Action, err)
		}
		return e.gw.SetPlan(ctx, p)

	case models.ActionCustomLocationAdd:
		var p models.CustomLocationPayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", item.Action, err)
		}
		return e.gw.AddCustomLocation(ctx, p)

	case models.ActionOverrideSet, models.ActionOverrideClear:
		var p models.OverridePayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", item.Action, err)
		}
		_, err := e.gw.SetOverride(ctx, p)
		return err

	default:
		e.log.Warn("dropping queue item with unknown action",
			zap.String("id", item.ID),
			zap.String("action", string(item.Action)))
		return nil
	}
}

// SetUser records a user locally and schedules the remote update. The local
// write always decides the outcome; remote failures never surface here.
func (e *Engine) SetUser(ctx context.Context, name, password string, isAdmin bool) error {
	if err := e.store.SetUser(name, models.User{Password: password, IsAdmin: isAdmin}); err != nil {
		return err
	}
	e.replayIfOnline(ctx)
	return nil
}

// RemoveUser deletes a user locally (cascading plans and custom locations)
// and schedules the remote delete.
func (e *Engine) RemoveUser(ctx context.Context, name string) error {
	if err := e.store.RemoveUser(name); err != nil {
		return err
	}
	e.replayIfOnline(ctx)
	return nil
}

// SetPlan overwrites one user's 7-slot plan locally and schedules the
// remote update.
func (e *Engine) SetPlan(ctx context.Context, weekID, userName string, locations []string) error {
	if !week.ValidID(weekID) {
		return fmt.Errorf("invalid week id %q", weekID)
	}
	if err := e.store.SetPlan(weekID, userName, locations); err != nil {
		return err
	}
	e.replayIfOnline(ctx)
	return nil
}

// AddCustomLocation records a one-off location locally and schedules the
// remote add.
func (e *Engine) AddCustomLocation(ctx context.Context, userName, weekID, dayDate, location string) error {
	if err := e.store.AddCustomLocation(userName, weekID, dayDate, location); err != nil {
		return err
	}
	e.replayIfOnline(ctx)
	return nil
}

// SetOverride records the admin week override locally and schedules the
// remote set.
func (e *Engine) SetOverride(ctx context.Context, adminName, weekStart string) error {
	if err := e.store.SetAdminOverride(adminName, weekStart); err != nil {
		return err
	}
	e.replayIfOnline(ctx)
	return nil
}

// ClearOverride clears the admin week override locally and schedules the
// remote clear.
func (e *Engine) ClearOverride(ctx context.Context) error {
	if err := e.store.ClearAdminOverride(); err != nil {
		return err
	}
	e.replayIfOnline(ctx)
	return nil
}

func (e *Engine) replayIfOnline(ctx context.Context) {
	if e.gw.Online() {
		e.Replay(ctx)
	}
}

// Users returns the user list, reconciling the server's view into the cache
// when reachable and falling back to cached users otherwise.
func (e *Engine) Users(ctx context.Context) []models.User {
	if e.gw.Online() {
		resp, err := e.gw.ListUsers(ctx)
		if err != nil {
			e.log.Debug("user list fetch failed, serving cache", zap.Error(err))
		} else if merr := e.store.MergeUsers(resp.Users); merr != nil {
			e.log.Error("failed to merge user list", zap.Error(merr))
		}
	}
	return e.store.Users()
}

// Plans returns all plans for one week, server-reconciled when reachable.
func (e *Engine) Plans(ctx context.Context, weekID string) map[string][]string {
	if e.gw.Online() {
		resp, err := e.gw.GetPlans(ctx, weekID)
		if err != nil {
			e.log.Debug("plans fetch failed, serving cache", zap.String("week", weekID), zap.Error(err))
		} else if merr := e.store.MergePlans(weekID, resp.Plans); merr != nil {
			e.log.Error("failed to merge plans", zap.Error(merr))
		}
	}
	return e.store.Plans(weekID)
}

// Override returns the admin week override, server-reconciled when
// reachable, nil when unset.
func (e *Engine) Override(ctx context.Context) *models.AdminOverride {
	if e.gw.Online() {
		resp, err := e.gw.GetOverride(ctx)
		if err != nil {
			e.log.Debug("override fetch failed, serving cache", zap.Error(err))
		} else if merr := e.store.MergeOverride(resp.Override); merr != nil {
			e.log.Error("failed to merge override", zap.Error(merr))
		}
	}
	return e.store.AdminOverride()
}

// Login authenticates against the server when reachable; when it is not,
// credentials are checked against the cached user set so the app still
// opens offline. A server rejection (wrong PIN) is surfaced as-is.
func (e *Engine) Login(ctx context.Context, name, password string) (models.User, error) {
	resp, err := e.gw.Login(ctx, name, password)
	if err == nil {
		u := models.User{Name: name, Password: password, IsAdmin: resp.IsAdmin}
		if merr := e.store.MergeUsers([]models.User{u}); merr != nil {
			e.log.Error("failed to cache login result", zap.Error(merr))
		}
		if len(resp.PlansForCurrentWeek) > 0 {
			wk := week.MustCompute(time.Now())
			if merr := e.store.MergePlans(wk.ID, resp.PlansForCurrentWeek); merr != nil {
				e.log.Error("failed to cache login plans", zap.Error(merr))
			}
		}
		return u, nil
	}

	var unavailable *gateway.UnavailableError
	if !errors.As(err, &unavailable) {
		return models.User{}, err
	}

	u, ok := e.store.User(name)
	if !ok || u.Password == "" || u.Password != password {
		return models.User{}, fmt.Errorf("offline login for %q failed: %w", name, err)
	}
	e.log.Info("remote unreachable, logged in from cache", zap.String("user", name))
	return u, nil
}

// EffectiveWeek computes the week to display: the current week, unless an
// admin override is set locally.
func (e *Engine) EffectiveWeek(now time.Time) (week.Week, error) {
	override := ""
	if o := e.store.AdminOverride(); o != nil {
		override = o.OverrideWeekStart
	}
	return week.Compute(now, override)
}

// Status summarizes sync health for display.
type Status struct {
	Online    bool
	QueueLen  int
	LastSync  time.Time
	Replaying bool
}

// Status reports the engine's current sync health.
func (e *Engine) Status() Status {
	var last time.Time
	if ts := e.store.LastSync(); ts > 0 {
		last = time.Unix(ts, 0)
	}
	return Status{
		Online:    e.gw.Online(),
		QueueLen:  len(e.store.Queue()),
		LastSync:  last,
		Replaying: e.replaying.Load(),
	}
}
