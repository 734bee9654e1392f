// Package models defines the core data structures shared by the tourplan
// client cache, sync queue, and server API: users, weekly plans, custom
// locations, the admin override, and the wire envelopes of the datastore
// contract.
package models

import "encoding/json"

// DaysPerWeek is the fixed length of every plan: Monday through Sunday.
const DaysPerWeek = 7

// User represents a planner user with credentials.
type User struct {
	// Name is the unique, case-sensitive login name.
	Name string `json:"name"`
	// Password is the user's 4-digit PIN. The server never returns it from
	// the user-list endpoint, so it is omitted when empty.
	Password string `json:"password,omitempty"`
	// IsAdmin marks the user as able to view and edit everyone's plan.
	IsAdmin bool `json:"isAdmin"`
}

// CustomLocation is a one-off location a user records for a single day,
// outside the regular 7-slot plan. Append-only from the client's perspective.
type CustomLocation struct {
	UserName string `json:"userName"`
	WeekID   string `json:"weekId"`
	// DayDate is the ISO date (YYYY-MM-DD) the location applies to.
	DayDate  string `json:"dayDate"`
	Location string `json:"location"`
}

// AdminOverride lets an admin view the planner as of a different week.
// At most one override exists at a time.
type AdminOverride struct {
	AdminName string `json:"adminName"`
	// OverrideWeekStart is the ISO date (YYYY-MM-DD) of the week to display.
	OverrideWeekStart string `json:"overrideWeekStart"`
	Timestamp         int64  `json:"timestamp"`
}

// Action identifies the remote effect recorded by a sync-queue item.
type Action string

const (
	// ActionUserUpdate adds or replaces a user on the server.
	ActionUserUpdate Action = "user_update"
	// ActionUserDelete removes a user and all dependent data.
	ActionUserDelete Action = "user_delete"
	// ActionPlanUpdate overwrites a user's 7-slot plan for one week.
	ActionPlanUpdate Action = "plan_update"
	// ActionCustomLocationAdd records a custom location for one day.
	ActionCustomLocationAdd Action = "custom_location_add"
	// ActionOverrideSet sets the admin week override.
	ActionOverrideSet Action = "override_set"
	// ActionOverrideClear clears the admin week override.
	ActionOverrideClear Action = "override_clear"
)

// UserPayload is the payload of ActionUserUpdate.
type UserPayload struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"isAdmin"`
}

// UserDeletePayload is the payload of ActionUserDelete.
type UserDeletePayload struct {
	Name string `json:"name"`
}

// PlanPayload is the payload of ActionPlanUpdate.
type PlanPayload struct {
	WeekStart string   `json:"weekStart"`
	Name      string   `json:"name"`
	Locations []string `json:"locationsArray"`
}

// CustomLocationPayload is the payload of ActionCustomLocationAdd.
type CustomLocationPayload struct {
	Name      string `json:"name"`
	WeekStart string `json:"weekStart"`
	DayDate   string `json:"dayDate"`
	Location  string `json:"location"`
}

// OverridePayload is the payload of ActionOverrideSet and
// ActionOverrideClear. Null values clear the override.
type OverridePayload struct {
	AdminName         *string `json:"adminName"`
	OverrideWeekStart *string `json:"overrideWeekStart"`
}

// SyncItem is one durable record of an intended remote effect. Items are
// replayed strictly in insertion order and removed only on confirmed remote
// success, rejection, or retry exhaustion.
type SyncItem struct {
	// ID is unique per item (millisecond timestamp plus a uuid suffix).
	ID     string `json:"id"`
	Action Action `json:"action"`
	// Payload holds the action-specific payload struct, encoded.
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
	// Attempts counts failed delivery attempts so far.
	Attempts int `json:"attempts"`
}

// CacheDocument is the aggregate root persisted by the client cache: the
// whole local truth as one JSON document under a single durable key.
type CacheDocument struct {
	// Users is keyed by user name.
	Users map[string]User `json:"users"`
	// Plans maps weekId -> userName -> 7 locations (Mon..Sun, "" = unset).
	Plans map[string]map[string][]string `json:"plans"`
	// CustomLocations is append-only; entries die only with their user.
	CustomLocations []CustomLocation `json:"customLocations"`
	AdminOverride   *AdminOverride   `json:"adminOverride"`
	SyncQueue       []SyncItem       `json:"syncQueue"`
	// LastSync is the unix time of the last completed replay pass.
	LastSync int64 `json:"lastSync"`
}

// Envelope is the common response wrapper of every datastore endpoint.
type Envelope struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// UsersResponse is the response of GET /api/users.
type UsersResponse struct {
	Envelope
	Users []User `json:"users"`
}

// LoginResponse is the response of POST /api/login.
type LoginResponse struct {
	Envelope
	IsAdmin bool `json:"isAdmin"`
	// PlansForCurrentWeek maps userName -> 7 locations for the week of login.
	PlansForCurrentWeek map[string][]string `json:"plansForCurrentWeek,omitempty"`
}

// PlansResponse is the response of POST /api/plans/get.
type PlansResponse struct {
	Envelope
	Plans map[string][]string `json:"plans"`
}

// OverrideResponse is the response of the override endpoints.
type OverrideResponse struct {
	Envelope
	Override *AdminOverride `json:"override"`
}

// DecryptResponse is the response of POST /api/users/decrypt.
type DecryptResponse struct {
	Envelope
	Password string `json:"password"`
}

// DeleteUserResponse is the response of POST /api/users/delete.
type DeleteUserResponse struct {
	Envelope
	// DeletedData summarizes what the cascade removed.
	DeletedData DeletedData `json:"deletedData"`
}

// DeletedData counts the rows removed by a user delete cascade.
type DeletedData struct {
	Plans           int64 `json:"plans"`
	CustomLocations int64 `json:"customLocations"`
}
