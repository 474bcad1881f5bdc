// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

// Package maintenance orchestrates cleanup, export/import, backup/
// restore, and full integrity validation over the subsystem's stores,
// composing the history manager and consistency checker.
package maintenance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/localekit/localekit/internal/cache"
	"github.com/localekit/localekit/internal/consistency"
	"github.com/localekit/localekit/internal/events"
	"github.com/localekit/localekit/internal/history"
	"github.com/localekit/localekit/internal/metrics"
	"github.com/localekit/localekit/internal/models"
	"github.com/localekit/localekit/internal/store"
	"github.com/localekit/localekit/internal/validation"
)

// ErrUnsupportedVersion rejects import envelopes whose version is not
// understood. Nothing is mutated when it is returned.
var ErrUnsupportedVersion = errors.New("unsupported envelope version")

// DefaultMaxBackups is the backup retention cap.
const DefaultMaxBackups = 5

// Options tunes one maintenance run. Zero values select the defaults.
type Options struct {
	// HistoryMaxAge is the expiry threshold for detection records.
	HistoryMaxAge time.Duration

	// MaxBackups caps retained backups; negative skips backup cleanup.
	MaxBackups int

	// SkipSync disables the reconciliation step.
	SkipSync bool
}

// Report aggregates the outcome of one maintenance run.
type Report struct {
	ExpiredRemoved     int      `json:"expiredRemoved"`
	DuplicatesRemoved  int      `json:"duplicatesRemoved"`
	InvalidCleaned     []string `json:"invalidCleaned,omitempty"`
	SyncAction         string   `json:"syncAction,omitempty"`
	BackupsDeleted     int      `json:"backupsDeleted"`
	Errors             []string `json:"errors,omitempty"`
	DurationMS         int64    `json:"durationMs"`
	CompletedTimestamp int64    `json:"completedTimestamp"`
}

// Manager is the maintenance orchestrator.
type Manager struct {
	durable   store.Durable
	transport store.Transport
	cache     *cache.Cache
	bus       *events.Bus
	history   *history.Manager
	checker   *consistency.Checker
	userAgent string
	log       zerolog.Logger
}

// NewManager wires a maintenance manager. userAgent labels export
// envelopes produced by this context.
func NewManager(
	durable store.Durable,
	transport store.Transport,
	c *cache.Cache,
	bus *events.Bus,
	hist *history.Manager,
	checker *consistency.Checker,
	userAgent string,
	log zerolog.Logger,
) *Manager {
	return &Manager{
		durable:   durable,
		transport: transport,
		cache:     c,
		bus:       bus,
		history:   hist,
		checker:   checker,
		userAgent: userAgent,
		log:       log.With().Str("component", "maintenance").Logger(),
	}
}

// ClearAll removes every known key from both backends, backups included.
// All-or-nothing is not guaranteed: a failure on one backend does not
// roll back the other, but any failure yields a failed result listing
// what went wrong.
func (m *Manager) ClearAll() models.OperationResult {
	started := time.Now()
	var failures []string

	keys := append([]string{}, store.KnownKeys...)
	if backupKeys, err := m.durable.Keys(store.BackupKeyPrefix); err == nil {
		keys = append(keys, backupKeys...)
	} else {
		failures = append(failures, fmt.Sprintf("backup key scan: %v", err))
	}

	for _, key := range keys {
		if err := m.durable.Delete(key); err != nil {
			failures = append(failures, fmt.Sprintf("durable %s: %v", key, err))
		}
	}
	for _, key := range store.TransportKeys {
		if err := m.transport.Delete(key); err != nil {
			failures = append(failures, fmt.Sprintf("transport %s: %v", key, err))
		}
	}

	m.cache.Clear()
	m.bus.Publish(models.EventCacheCleared, nil)

	if len(failures) > 0 {
		return models.Fail(fmt.Errorf("clear incomplete: %s", strings.Join(failures, "; ")), started)
	}
	m.bus.Publish(models.EventPreferenceCleared, nil)
	return models.OK(nil, started)
}

// PerformMaintenance runs expired and duplicate history cleanup,
// invalid-preference cleanup, and sync reconciliation, in that order,
// and returns an aggregate report. Individual step failures are
// collected; later steps still run.
func (m *Manager) PerformMaintenance(opts Options) Report {
	started := time.Now()
	var report Report

	if res, err := m.history.CleanupExpired(opts.HistoryMaxAge); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("expired cleanup: %v", err))
	} else {
		report.ExpiredRemoved = res.Removed
	}

	if res, err := m.history.CleanupDuplicates(); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("duplicate cleanup: %v", err))
	} else {
		report.DuplicatesRemoved = res.DuplicateCount
	}

	report.InvalidCleaned = m.cleanupInvalidPreferences(&report)

	if !opts.SkipSync {
		if res, err := m.checker.SyncPreferenceData(); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("sync: %v", err))
		} else {
			report.SyncAction = res.Action
		}
	}

	maxBackups := opts.MaxBackups
	if maxBackups == 0 {
		maxBackups = DefaultMaxBackups
	}
	if maxBackups > 0 {
		if deleted, err := m.CleanupOldBackups(maxBackups); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("backup cleanup: %v", err))
		} else {
			report.BackupsDeleted = deleted
		}
	}

	now := time.Now()
	report.DurationMS = now.Sub(started).Milliseconds()
	report.CompletedTimestamp = now.UnixMilli()

	outcome := "success"
	if len(report.Errors) > 0 {
		outcome = "partial"
	}
	metrics.MaintenanceRuns.WithLabelValues(outcome).Inc()
	m.bus.Publish(models.EventMaintenanceCompleted, map[string]any{
		"expiredRemoved":    report.ExpiredRemoved,
		"duplicatesRemoved": report.DuplicatesRemoved,
		"errors":            len(report.Errors),
	})
	return report
}

// cleanupInvalidPreferences removes records failing validation from
// either backend.
func (m *Manager) cleanupInvalidPreferences(report *Report) []string {
	var cleaned []string
	now := time.Now()

	var pref models.UserLocalePreference
	err := m.durable.Get(store.KeyPreference, &pref)
	switch {
	case err == nil:
		if res := validation.ValidatePreference(&pref, now); !res.Valid {
			if derr := m.durable.Delete(store.KeyPreference); derr != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("invalid preference removal: %v", derr))
			} else {
				cleaned = append(cleaned, "removed invalid durable preference")
				m.cache.Clear()
			}
		}
	case errors.Is(err, store.ErrSerialization):
		if derr := m.durable.Delete(store.KeyPreference); derr != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("corrupt preference removal: %v", derr))
		} else {
			cleaned = append(cleaned, "removed corrupt durable preference")
			m.cache.Clear()
		}
	case errors.Is(err, store.ErrNotFound):
		// nothing stored
	default:
		report.Errors = append(report.Errors, fmt.Sprintf("preference read: %v", err))
	}

	if locale, terr := m.transport.GetString(store.KeyPreference); terr == nil && !validation.IsLocaleCode(locale) {
		if derr := m.transport.Delete(store.KeyPreference); derr != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("invalid transport locale removal: %v", derr))
		} else {
			cleaned = append(cleaned, fmt.Sprintf("removed invalid transport locale %q", locale))
		}
	}
	return cleaned
}

// ValidateStorageIntegrity runs every validator across all known keys
// and returns an itemized issue list. Diagnostic only; nothing is
// mutated.
func (m *Manager) ValidateStorageIntegrity() []string {
	var issues []string
	now := time.Now()

	var pref models.UserLocalePreference
	err := m.durable.Get(store.KeyPreference, &pref)
	switch {
	case err == nil:
		if res := validation.ValidatePreference(&pref, now); !res.Valid {
			for _, e := range res.Errors {
				issues = append(issues, "preference: "+e)
			}
		}
	case errors.Is(err, store.ErrSerialization):
		issues = append(issues, "preference: stored value is not valid JSON")
	case !errors.Is(err, store.ErrNotFound):
		issues = append(issues, fmt.Sprintf("preference: read failed: %v", err))
	}

	var hist models.LocaleDetectionHistory
	err = m.durable.Get(store.KeyHistory, &hist)
	switch {
	case err == nil:
		if res := validation.ValidateHistory(&hist, now); !res.Valid {
			for _, e := range res.Errors {
				issues = append(issues, "history: "+e)
			}
		}
	case errors.Is(err, store.ErrSerialization):
		issues = append(issues, "history: stored value is not valid JSON")
	case !errors.Is(err, store.ErrNotFound):
		issues = append(issues, fmt.Sprintf("history: read failed: %v", err))
	}

	var override string
	err = m.durable.Get(store.KeyOverride, &override)
	switch {
	case err == nil:
		if !validation.IsLocaleCode(override) {
			issues = append(issues, fmt.Sprintf("override: %q is not a valid locale code", override))
		}
	case errors.Is(err, store.ErrSerialization):
		issues = append(issues, "override: stored value is not a JSON string")
	case !errors.Is(err, store.ErrNotFound):
		issues = append(issues, fmt.Sprintf("override: read failed: %v", err))
	}

	issues = append(issues, m.checker.CheckDataConsistency()...)

	if backups, err := m.ListBackups(); err != nil {
		issues = append(issues, fmt.Sprintf("backups: listing failed: %v", err))
	} else {
		for _, b := range backups {
			if !b.HasData {
				issues = append(issues, fmt.Sprintf("backups: %s holds no importable data", b.Key))
			}
		}
	}

	return issues
}
