// Package cache implements the client's durable local store: one JSON cache
// document holding users, plans, custom locations, the admin override, and
// the pending sync queue. Every mutating operation persists the whole
// document atomically and, when the mutation has a remote counterpart,
// appends the matching sync-queue item in the same call.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/samplerpa08-cpu/tourplan/internal/models"
)

// StorageError reports a failed persist. The in-memory document keeps its
// prior state; the rejected mutation is simply not applied.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("local storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrNotFound is returned by Read for a path that does not resolve.
var ErrNotFound = errors.New("path not found")

// seedUsers is the user set a brand-new installation starts with, so the
// app is usable before the first successful sync.
var seedUsers = []models.User{
	{Name: "admin", Password: "0000", IsAdmin: true},
}

// Store is the process-wide local cache. All operations are synchronous;
// the mutex only guards against accidental cross-goroutine use.
type Store struct {
	mu   sync.Mutex
	path string
	doc  models.CacheDocument
	log  *zap.Logger
}

// Open loads the cache document at path, creating it with defaults if it is
// absent or empty. Missing top-level keys of an existing document are
// backfilled without discarding present data.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{path: path, log: log}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0):
		s.doc = defaultDocument()
		if perr := s.persist(); perr != nil {
			return nil, perr
		}
		return s, nil
	case err != nil:
		return nil, &StorageError{Op: "open", Err: err}
	}

	if err := json.Unmarshal(data, &s.doc); err != nil {
		// A corrupt document would otherwise brick the app; start over.
		log.Warn("cache document unreadable, recreating", zap.Error(err))
		s.doc = defaultDocument()
		if perr := s.persist(); perr != nil {
			return nil, perr
		}
		return s, nil
	}

	s.backfill()
	return s, nil
}

func defaultDocument() models.CacheDocument {
	doc := models.CacheDocument{
		Users:           make(map[string]models.User),
		Plans:           make(map[string]map[string][]string),
		CustomLocations: []models.CustomLocation{},
		SyncQueue:       []models.SyncItem{},
	}
	for _, u := range seedUsers {
		doc.Users[u.Name] = u
	}
	return doc
}

// backfill initializes any top-level key missing from a loaded document.
func (s *Store) backfill() {
	if s.doc.Users == nil {
		s.doc.Users = make(map[string]models.User)
		for _, u := range seedUsers {
			s.doc.Users[u.Name] = u
		}
	}
	if s.doc.Plans == nil {
		s.doc.Plans = make(map[string]map[string][]string)
	}
	if s.doc.CustomLocations == nil {
		s.doc.CustomLocations = []models.CustomLocation{}
	}
	if s.doc.SyncQueue == nil {
		s.doc.SyncQueue = []models.SyncItem{}
	}
}

// persist writes the whole document atomically: temp file then rename.
// Callers hold s.mu.
func (s *Store) persist() error {
	data, err := json.Marshal(&s.doc)
	if err != nil {
		return &StorageError{Op: "encode", Err: err}
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return &StorageError{Op: "mkdir", Err: err}
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return &StorageError{Op: "rename", Err: err}
	}
	return nil
}

// mutate applies fn to a deep copy of the document and persists it. Only on
// success does the copy become the live document, so a failed persist never
// corrupts in-memory state.
func (s *Store) mutate(op string, fn func(doc *models.CacheDocument) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := copyDocument(&s.doc)
	if err != nil {
		return &StorageError{Op: op, Err: err}
	}
	if err := fn(snapshot); err != nil {
		return err
	}

	prev := s.doc
	s.doc = *snapshot
	if err := s.persist(); err != nil {
		s.doc = prev
		return err
	}
	return nil
}

func copyDocument(doc *models.CacheDocument) (*models.CacheDocument, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	out := &models.CacheDocument{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	// Unmarshal leaves absent collections nil.
	if out.Users == nil {
		out.Users = make(map[string]models.User)
	}
	if out.Plans == nil {
		out.Plans = make(map[string]map[string][]string)
	}
	if out.CustomLocations == nil {
		out.CustomLocations = []models.CustomLocation{}
	}
	if out.SyncQueue == nil {
		out.SyncQueue = []models.SyncItem{}
	}
	return out, nil
}

// newItem builds a queue item for action with the given payload.
func newItem(action models.Action, payload any) (models.SyncItem, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return models.SyncItem{}, err
	}
	now := time.Now()
	return models.SyncItem{
		ID:        fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		Action:    action,
		Payload:   raw,
		Timestamp: now.Unix(),
	}, nil
}

// SetUser adds or replaces a user and queues the matching remote update.
func (s *Store) SetUser(name string, u models.User) error {
	u.Name = name
	return s.mutate("set user", func(doc *models.CacheDocument) error {
		item, err := newItem(models.ActionUserUpdate, models.UserPayload{
			Name:     name,
			Password: u.Password,
			IsAdmin:  u.IsAdmin,
		})
		if err != nil {
			return &StorageError{Op: "set user", Err: err}
		}
		doc.Users[name] = u
		doc.SyncQueue = append(doc.SyncQueue, item)
		return nil
	})
}

// RemoveUser deletes a user and cascades to every plan entry and custom
// location keyed by that name, all in one transaction, and queues the
// remote delete.
func (s *Store) RemoveUser(name string) error {
	return s.mutate("remove user", func(doc *models.CacheDocument) error {
		item, err := newItem(models.ActionUserDelete, models.UserDeletePayload{Name: name})
		if err != nil {
			return &StorageError{Op: "remove user", Err: err}
		}
		delete(doc.Users, name)
		for weekID, byUser := range doc.Plans {
			delete(byUser, name)
			if len(byUser) == 0 {
				delete(doc.Plans, weekID)
			}
		}
		kept := doc.CustomLocations[:0]
		for _, cl := range doc.CustomLocations {
			if cl.UserName != name {
				kept = append(kept, cl)
			}
		}
		doc.CustomLocations = kept
		doc.SyncQueue = append(doc.SyncQueue, item)
		return nil
	})
}

// SetPlan overwrites the full 7-slot plan for one user and week and queues
// the matching remote update. Partial plans are rejected.
func (s *Store) SetPlan(weekID, userName string, locations []string) error {
	if len(locations) != models.DaysPerWeek {
		return fmt.Errorf("plan must have exactly %d locations, got %d", models.DaysPerWeek, len(locations))
	}
	locs := append([]string(nil), locations...)
	return s.mutate("set plan", func(doc *models.CacheDocument) error {
		item, err := newItem(models.ActionPlanUpdate, models.PlanPayload{
			WeekStart: weekID,
			Name:      userName,
			Locations: locs,
		})
		if err != nil {
			return &StorageError{Op: "set plan", Err: err}
		}
		if doc.Plans[weekID] == nil {
			doc.Plans[weekID] = make(map[string][]string)
		}
		doc.Plans[weekID][userName] = locs
		doc.SyncQueue = append(doc.SyncQueue, item)
		return nil
	})
}

// AddCustomLocation records a one-off location and queues the remote add.
func (s *Store) AddCustomLocation(userName, weekID, dayDate, location string) error {
	return s.mutate("add custom location", func(doc *models.CacheDocument) error {
		item, err := newItem(models.ActionCustomLocationAdd, models.CustomLocationPayload{
			Name:      userName,
			WeekStart: weekID,
			DayDate:   dayDate,
			Location:  location,
		})
		if err != nil {
			return &StorageError{Op: "add custom location", Err: err}
		}
		doc.CustomLocations = append(doc.CustomLocations, models.CustomLocation{
			UserName: userName,
			WeekID:   weekID,
			DayDate:  dayDate,
			Location: location,
		})
		doc.SyncQueue = append(doc.SyncQueue, item)
		return nil
	})
}

// SetAdminOverride replaces the singleton override and queues the remote set.
func (s *Store) SetAdminOverride(adminName, weekStart string) error {
	return s.mutate("set override", func(doc *models.CacheDocument) error {
		item, err := newItem(models.ActionOverrideSet, models.OverridePayload{
			AdminName:         &adminName,
			OverrideWeekStart: &weekStart,
		})
		if err != nil {
			return &StorageError{Op: "set override", Err: err}
		}
		doc.AdminOverride = &models.AdminOverride{
			AdminName:         adminName,
			OverrideWeekStart: weekStart,
			Timestamp:         time.Now().Unix(),
		}
		doc.SyncQueue = append(doc.SyncQueue, item)
		return nil
	})
}

// ClearAdminOverride nulls the override and queues the remote clear.
func (s *Store) ClearAdminOverride() error {
	return s.mutate("clear override", func(doc *models.CacheDocument) error {
		item, err := newItem(models.ActionOverrideClear, models.OverridePayload{})
		if err != nil {
			return &StorageError{Op: "clear override", Err: err}
		}
		doc.AdminOverride = nil
		doc.SyncQueue = append(doc.SyncQueue, item)
		return nil
	})
}

// Queue returns a copy of the pending queue in insertion order.
func (s *Store) Queue() []models.SyncItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SyncItem(nil), s.doc.SyncQueue...)
}

// Dequeue removes the item with the given id. Removing an id that is no
// longer queued is a no-op.
func (s *Store) Dequeue(itemID string) error {
	return s.mutate("dequeue", func(doc *models.CacheDocument) error {
		kept := doc.SyncQueue[:0]
		for _, it := range doc.SyncQueue {
			if it.ID != itemID {
				kept = append(kept, it)
			}
		}
		doc.SyncQueue = kept
		return nil
	})
}

// MarkAttempt records the attempt count of a queued item.
func (s *Store) MarkAttempt(itemID string, attempts int) error {
	return s.mutate("mark attempt", func(doc *models.CacheDocument) error {
		for i := range doc.SyncQueue {
			if doc.SyncQueue[i].ID == itemID {
				doc.SyncQueue[i].Attempts = attempts
				break
			}
		}
		return nil
	})
}

// SetLastSync stamps the completion time of a replay pass.
func (s *Store) SetLastSync(t time.Time) error {
	return s.mutate("set last sync", func(doc *models.CacheDocument) error {
		doc.LastSync = t.Unix()
		return nil
	})
}

// LastSync returns the unix time of the last completed replay pass, 0 if
// none has completed yet.
func (s *Store) LastSync() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.LastSync
}

// Users returns all cached users sorted by name.
func (s *Store) Users() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.doc.Users))
	for _, u := range s.doc.Users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// User returns one cached user by name.
func (s *Store) User(name string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.doc.Users[name]
	return u, ok
}

// Plans returns a copy of all plans for one week, keyed by user name.
func (s *Store) Plans(weekID string) map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]string, len(s.doc.Plans[weekID]))
	for user, locs := range s.doc.Plans[weekID] {
		out[user] = append([]string(nil), locs...)
	}
	return out
}

// Plan returns one user's plan for one week.
func (s *Store) Plan(weekID, userName string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	locs, ok := s.doc.Plans[weekID][userName]
	if !ok {
		return nil, false
	}
	return append([]string(nil), locs...), true
}

// CustomLocations returns a copy of every recorded custom location.
func (s *Store) CustomLocations() []models.CustomLocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CustomLocation(nil), s.doc.CustomLocations...)
}

// AdminOverride returns a copy of the current override, nil if unset.
func (s *Store) AdminOverride() *models.AdminOverride {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.AdminOverride == nil {
		return nil
	}
	o := *s.doc.AdminOverride
	return &o
}

// MergeUsers reconciles a server user list into the cache with
// server-wins-per-field semantics: fields the server sends (name, isAdmin)
// overwrite local values; fields it never sends (password) stay untouched.
// Local-only users are kept, since their creation may still be queued.
func (s *Store) MergeUsers(server []models.User) error {
	return s.mutate("merge users", func(doc *models.CacheDocument) error {
		for _, su := range server {
			local, ok := doc.Users[su.Name]
			if !ok {
				doc.Users[su.Name] = su
				continue
			}
			local.IsAdmin = su.IsAdmin
			if su.Password != "" {
				local.Password = su.Password
			}
			doc.Users[su.Name] = local
		}
		return nil
	})
}

// MergePlans reconciles one week's server plans into the cache. Entries the
// server sent overwrite local ones; local entries for users the server did
// not mention are kept (their updates may still be queued).
func (s *Store) MergePlans(weekID string, server map[string][]string) error {
	return s.mutate("merge plans", func(doc *models.CacheDocument) error {
		if doc.Plans[weekID] == nil {
			doc.Plans[weekID] = make(map[string][]string)
		}
		for user, locs := range server {
			doc.Plans[weekID][user] = append([]string(nil), locs...)
		}
		return nil
	})
}

// MergeOverride replaces the local override with the server's view.
func (s *Store) MergeOverride(o *models.AdminOverride) error {
	return s.mutate("merge override", func(doc *models.CacheDocument) error {
		if o == nil {
			doc.AdminOverride = nil
		} else {
			copied := *o
			doc.AdminOverride = &copied
		}
		return nil
	})
}

// Read resolves a dot-separated path ("users.admin.isAdmin") against the
// document and returns the value found there.
func (s *Store) Read(path string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(&s.doc)
	if err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}

	var cur any = tree
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
		}
		cur, ok = m[seg]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
		}
	}
	return cur, nil
}

// Write sets a dot-separated path in the document, creating intermediate
// objects as needed, and persists atomically. Unlike the typed mutators it
// queues nothing; it is the generic escape hatch for fields without a
// remote counterpart.
func (s *Store) Write(path string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(&s.doc)
	if err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return &StorageError{Op: "write", Err: err}
	}

	segs := strings.Split(path, ".")
	cur := tree
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value

	merged, err := json.Marshal(tree)
	if err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	next := models.CacheDocument{}
	if err := json.Unmarshal(merged, &next); err != nil {
		return &StorageError{Op: "write", Err: err}
	}

	prev := s.doc
	s.doc = next
	s.backfill()
	if err := s.persist(); err != nil {
		s.doc = prev
		return err
	}
	return nil
}
