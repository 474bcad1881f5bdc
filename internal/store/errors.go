// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package store

import "errors"

// Sentinel errors returned by storage adapters. Callers match with
// errors.Is; the concrete backend error is wrapped underneath.
var (
	// ErrNotFound indicates the key is absent. An explicit miss, not a
	// failure.
	ErrNotFound = errors.New("key not found")

	// ErrSerialization indicates persisted bytes could not be
	// (un)marshaled as JSON.
	ErrSerialization = errors.New("serialization failed")

	// ErrStorageUnavailable indicates the backend is disabled, closed,
	// or tripped its circuit breaker.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrQuotaExceeded indicates the write exceeds backend capacity.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)
