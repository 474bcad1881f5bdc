// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

// Package store provides the two asymmetric storage adapters the
// subsystem is built on: a durable JSON key/value store (BadgerDB in
// production, in-memory for tests) and a small transport-visible store
// that carries only bare locale-code strings (cookies in production).
//
// Adapters never leak backend exceptions: every failure is mapped to one
// of the sentinel errors in errors.go so callers can convert it to a
// failed OperationResult.
package store

// Durable is the larger-capacity persistent key/value store. Values are
// JSON-serialized. It is not transmitted with requests.
type Durable interface {
	// Get unmarshals the value stored under key into out.
	// Returns ErrNotFound if the key is absent and ErrSerialization if
	// the stored bytes are not valid JSON for out.
	Get(key string, out any) error

	// Set marshals value as JSON and stores it under key.
	Set(key string, value any) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Keys returns all keys with the given prefix.
	Keys(prefix string) ([]string, error)
}

// Transport is the small store attached to every request. It holds only
// scalar strings (locale codes) and is size-constrained.
type Transport interface {
	// GetString returns the raw string stored under key.
	// Returns ErrNotFound if absent.
	GetString(key string) (string, error)

	// SetString stores a raw string under key. Values beyond the
	// transport size limit fail with ErrQuotaExceeded.
	SetString(key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}

// Well-known durable-store keys. The transport store carries only
// KeyPreference and KeyOverride, as bare locale-code strings.
const (
	KeyPreference      = "locale_preference"
	KeyHistory         = "locale_detection_history"
	KeyOverride        = "user_locale_override"
	KeyOverrideHistory = "override_history"

	// BackupKeyPrefix prefixes timestamped backup keys
	// (locale_backup_<epoch-ms>).
	BackupKeyPrefix = "locale_backup_"
)

// KnownKeys lists every non-backup durable key the subsystem manages.
var KnownKeys = []string{KeyPreference, KeyHistory, KeyOverride, KeyOverrideHistory}

// TransportKeys lists the keys mirrored into the transport store.
var TransportKeys = []string{KeyPreference, KeyOverride}
