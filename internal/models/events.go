// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package models

// EventType enumerates the notifications published on the in-process bus.
type EventType string

const (
	EventPreferenceSaved      EventType = "preference_saved"
	EventPreferenceCleared    EventType = "preference_cleared"
	EventOverrideSet          EventType = "override_set"
	EventOverrideCleared      EventType = "override_cleared"
	EventHistoryUpdated       EventType = "history_updated"
	EventCacheCleared         EventType = "cache_cleared"
	EventSyncRepaired         EventType = "sync_repaired"
	EventMaintenanceCompleted EventType = "maintenance_completed"
)

// Event is one bus notification. Payload contents depend on Type; it is
// a snapshot, listeners must not mutate it.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}
