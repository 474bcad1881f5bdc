// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package maintenance

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/zeebo/xxh3"

	"github.com/localekit/localekit/internal/models"
	"github.com/localekit/localekit/internal/store"
	"github.com/localekit/localekit/internal/validation"
)

// ImportReport records the outcome of one import: which parts were
// applied and which were skipped with errors. Partial imports are
// allowed and reported rather than aborted.
type ImportReport struct {
	Imported []string `json:"imported"`
	Errors   []string `json:"errors,omitempty"`
	Partial  bool     `json:"partial"`
}

// ExportData produces a backup envelope of whatever preference,
// override, and history state currently exists. Absent parts are simply
// omitted from the envelope.
func (m *Manager) ExportData() (*models.BackupEnvelope, error) {
	env := &models.BackupEnvelope{
		Version:   models.EnvelopeVersion,
		Timestamp: time.Now().UnixMilli(),
		Metadata: models.EnvelopeMetadata{
			UserAgent:  m.userAgent,
			ExportedBy: "localekit",
		},
	}

	var pref models.UserLocalePreference
	switch err := m.durable.Get(store.KeyPreference, &pref); {
	case err == nil:
		env.Preference = &pref
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("export preference: %w", err)
	}

	var override string
	switch err := m.durable.Get(store.KeyOverride, &override); {
	case err == nil:
		env.Override = override
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("export override: %w", err)
	}

	var overrideHistory []models.OverrideHistoryEntry
	switch err := m.durable.Get(store.KeyOverrideHistory, &overrideHistory); {
	case err == nil:
		env.OverrideHistory = overrideHistory
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("export override history: %w", err)
	}

	var hist models.LocaleDetectionHistory
	switch err := m.durable.Get(store.KeyHistory, &hist); {
	case err == nil:
		env.History = &hist
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("export history: %w", err)
	}

	integrity, err := ComputeIntegrity(env)
	if err != nil {
		return nil, err
	}
	env.Metadata.DataIntegrity = integrity
	return env, nil
}

// ImportData applies an envelope. Unknown versions are rejected outright
// with nothing mutated. Otherwise each present part is validated and
// imported independently; per-part failures accumulate in the report
// without aborting the rest. An integrity mismatch is reported as a
// drift hint, not a failure.
func (m *Manager) ImportData(env *models.BackupEnvelope) (ImportReport, error) {
	var report ImportReport

	if env == nil {
		return report, fmt.Errorf("%w: empty envelope", ErrUnsupportedVersion)
	}
	if env.Version != models.EnvelopeVersion {
		return report, fmt.Errorf("%w: %q (expected %q)", ErrUnsupportedVersion, env.Version, models.EnvelopeVersion)
	}

	if env.Metadata.DataIntegrity != "" {
		if computed, err := ComputeIntegrity(env); err == nil && computed != env.Metadata.DataIntegrity {
			m.log.Warn().
				Str("expected", env.Metadata.DataIntegrity).
				Str("computed", computed).
				Msg("Envelope integrity hash mismatch, data may have drifted")
		}
	}

	now := time.Now()

	if env.Preference != nil {
		if res := validation.ValidatePreference(env.Preference, now); !res.Valid {
			report.Errors = append(report.Errors, fmt.Sprintf("preference: %v", res.Errors))
		} else if err := m.durable.Set(store.KeyPreference, env.Preference); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("preference: %v", err))
		} else {
			if err := m.transport.SetString(store.KeyPreference, env.Preference.Locale); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("preference transport mirror: %v", err))
			}
			report.Imported = append(report.Imported, "preference")
		}
	}

	if env.Override != "" {
		if !validation.IsLocaleCode(env.Override) {
			report.Errors = append(report.Errors, fmt.Sprintf("override: %q is not a valid locale code", env.Override))
		} else if err := m.durable.Set(store.KeyOverride, env.Override); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("override: %v", err))
		} else {
			if err := m.transport.SetString(store.KeyOverride, env.Override); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("override transport mirror: %v", err))
			}
			report.Imported = append(report.Imported, "override")
		}
	}

	if len(env.OverrideHistory) > 0 {
		if err := m.durable.Set(store.KeyOverrideHistory, env.OverrideHistory); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("override history: %v", err))
		} else {
			report.Imported = append(report.Imported, "overrideHistory")
		}
	}

	if env.History != nil {
		if res := validation.ValidateHistory(env.History, now); !res.Valid {
			report.Errors = append(report.Errors, fmt.Sprintf("history: %v", res.Errors))
		} else if err := m.durable.Set(store.KeyHistory, env.History); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("history: %v", err))
		} else {
			report.Imported = append(report.Imported, "history")
		}
	}

	report.Partial = len(report.Errors) > 0 && len(report.Imported) > 0

	if len(report.Imported) > 0 {
		m.cache.Clear()
		m.bus.Publish(models.EventCacheCleared, nil)
	}
	return report, nil
}

// ComputeIntegrity hashes the envelope payload with the integrity field
// blanked, so export and verification agree. xxh3 is fast and
// non-cryptographic; the hash is a drift-detection hint only.
func ComputeIntegrity(env *models.BackupEnvelope) (string, error) {
	clone := *env
	clone.Metadata.DataIntegrity = ""
	data, err := json.Marshal(&clone)
	if err != nil {
		return "", fmt.Errorf("integrity hash: %w", err)
	}
	return fmt.Sprintf("%016x", xxh3.Hash(data)), nil
}
