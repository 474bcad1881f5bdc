// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

// Package history implements the bounded detection-event log: append,
// recent reads, age-based expiry, one-minute-bucket deduplication, and
// size-cap eviction.
//
// The history object is persisted as a whole on every change
// (read-modify-write, no partial append). Records are stored in
// chronological order, oldest first; the lifetime TotalDetections
// counter survives eviction.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/localekit/localekit/internal/events"
	"github.com/localekit/localekit/internal/metrics"
	"github.com/localekit/localekit/internal/models"
	"github.com/localekit/localekit/internal/store"
	"github.com/localekit/localekit/internal/validation"
)

// Defaults for the retention policies.
const (
	DefaultMaxRecords = 100
	DefaultMaxAge     = 30 * 24 * time.Hour
)

// ErrValidation wraps record validation failures.
var ErrValidation = errors.New("validation failed")

// CleanupResult reports one cleanup pass.
type CleanupResult struct {
	Removed   int `json:"removed"`
	Remaining int `json:"remaining"`
}

// DuplicateResult reports one deduplication pass.
type DuplicateResult struct {
	DuplicateCount int `json:"duplicateCount"`
	Remaining      int `json:"remaining"`
}

// Manager owns the detection history stored under
// locale_detection_history in the durable store.
type Manager struct {
	durable    store.Durable
	bus        *events.Bus
	maxRecords int
	log        zerolog.Logger
}

// NewManager wires a history manager. maxRecords <= 0 falls back to
// DefaultMaxRecords.
func NewManager(durable store.Durable, bus *events.Bus, maxRecords int, log zerolog.Logger) *Manager {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Manager{
		durable:    durable,
		bus:        bus,
		maxRecords: maxRecords,
		log:        log.With().Str("component", "history").Logger(),
	}
}

// AddDetectionRecord validates and appends one record, updates the
// container bookkeeping, enforces the size cap, and persists the whole
// history object. Emits history_updated on success.
func (m *Manager) AddDetectionRecord(record models.DetectionRecord) models.OperationResult {
	started := time.Now()

	if record.Timestamp == 0 {
		record.Timestamp = started.UnixMilli()
	}
	if res := validation.ValidateDetectionRecord(&record, started); !res.Valid {
		return models.Fail(fmt.Errorf("%w: %v", ErrValidation, res.Errors), started)
	}

	hist, err := m.load()
	if err != nil {
		return models.Fail(err, started)
	}

	hist.Detections = append(hist.Detections, record)
	hist.TotalDetections++
	hist.LastUpdated = started.UnixMilli()
	m.enforceCap(hist)

	if err := m.durable.Set(store.KeyHistory, hist); err != nil {
		return models.Fail(err, started)
	}

	m.bus.Publish(models.EventHistoryUpdated, map[string]any{
		"locale": record.Locale,
		"source": string(record.Source),
		"count":  len(hist.Detections),
	})
	return models.OK(hist, started)
}

// GetRecentDetections returns up to limit most recent records, newest
// first. A non-positive limit returns everything.
func (m *Manager) GetRecentDetections(limit int) []models.DetectionRecord {
	hist, err := m.load()
	if err != nil {
		m.log.Warn().Err(err).Msg("History read failed")
		return nil
	}

	n := len(hist.Detections)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.DetectionRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, hist.Detections[i])
	}
	return out
}

// GetHistory returns the whole history object.
func (m *Manager) GetHistory() (*models.LocaleDetectionHistory, error) {
	return m.load()
}

// CleanupExpired removes records older than maxAge (default 30 days for
// a non-positive value). The history is persisted only if at least one
// record was removed.
func (m *Manager) CleanupExpired(maxAge time.Duration) (CleanupResult, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	hist, err := m.load()
	if err != nil {
		return CleanupResult{}, err
	}

	cutoff := time.Now().Add(-maxAge).UnixMilli()
	kept := hist.Detections[:0]
	for _, rec := range hist.Detections {
		if rec.Timestamp >= cutoff {
			kept = append(kept, rec)
		}
	}

	removed := len(hist.Detections) - len(kept)
	result := CleanupResult{Removed: removed, Remaining: len(kept)}
	if removed == 0 {
		return result, nil
	}

	hist.Detections = kept
	hist.LastUpdated = time.Now().UnixMilli()
	if err := m.durable.Set(store.KeyHistory, hist); err != nil {
		return result, err
	}

	metrics.HistoryRecordsRemoved.WithLabelValues("expired").Add(float64(removed))
	m.bus.Publish(models.EventHistoryUpdated, map[string]any{"removed": removed, "reason": "expired"})
	return result, nil
}

// CleanupDuplicates collapses records sharing (locale, source,
// one-minute bucket) down to the first occurrence per bucket, scanning
// chronologically. Persists only on change; running it twice in a row
// reports zero duplicates the second time.
func (m *Manager) CleanupDuplicates() (DuplicateResult, error) {
	hist, err := m.load()
	if err != nil {
		return DuplicateResult{}, err
	}

	kept, removed := dedupe(hist.Detections)
	result := DuplicateResult{DuplicateCount: removed, Remaining: len(kept)}
	if removed == 0 {
		return result, nil
	}

	hist.Detections = kept
	hist.LastUpdated = time.Now().UnixMilli()
	if err := m.durable.Set(store.KeyHistory, hist); err != nil {
		return result, err
	}

	metrics.HistoryRecordsRemoved.WithLabelValues("duplicate").Add(float64(removed))
	m.bus.Publish(models.EventHistoryUpdated, map[string]any{"removed": removed, "reason": "duplicate"})
	return result, nil
}

// load reads the stored history, returning an empty container when none
// exists yet.
func (m *Manager) load() (*models.LocaleDetectionHistory, error) {
	var hist models.LocaleDetectionHistory
	err := m.durable.Get(store.KeyHistory, &hist)
	if errors.Is(err, store.ErrNotFound) {
		return &models.LocaleDetectionHistory{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &hist, nil
}

// enforceCap trims the list down to maxRecords, evicting duplicates
// first and then the oldest records, mirroring the two cleanup routines
// so the cap is enforced idempotently.
func (m *Manager) enforceCap(hist *models.LocaleDetectionHistory) {
	if len(hist.Detections) <= m.maxRecords {
		return
	}

	kept, removed := dedupe(hist.Detections)
	if removed > 0 {
		metrics.HistoryRecordsRemoved.WithLabelValues("duplicate").Add(float64(removed))
	}

	if over := len(kept) - m.maxRecords; over > 0 {
		kept = kept[over:]
		metrics.HistoryRecordsRemoved.WithLabelValues("capacity").Add(float64(over))
	}
	hist.Detections = kept
}

// dedupe keeps the first occurrence per duplicate bucket, preserving
// chronological order.
func dedupe(records []models.DetectionRecord) ([]models.DetectionRecord, int) {
	seen := make(map[models.DetectionBucket]bool, len(records))
	kept := make([]models.DetectionRecord, 0, len(records))
	for _, rec := range records {
		bucket := rec.DuplicateBucket()
		if seen[bucket] {
			continue
		}
		seen[bucket] = true
		kept = append(kept, rec)
	}
	return kept, len(records) - len(kept)
}
