// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package preference

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/localekit/localekit/internal/models"
	"github.com/localekit/localekit/internal/store"
	"github.com/localekit/localekit/internal/validation"
)

// OverrideHistoryCap bounds the newest-first override history list.
const OverrideHistoryCap = 50

// ErrNoOverride is the explicit miss returned when no override exists in
// any of the three lookup locations. A miss, not a failure.
var ErrNoOverride = errors.New("no override set")

// OverrideManager manages the higher-priority explicit user choice,
// layered on top of the preference core. The override is recorded three
// ways: as a source=user preference, as a dedicated marker in the
// durable store, and as a bare locale code in the transport store.
type OverrideManager struct {
	core      *Core
	durable   store.Durable
	transport store.Transport
	log       zerolog.Logger
}

// NewOverrideManager wires an override manager over core.
func NewOverrideManager(core *Core, log zerolog.Logger) *OverrideManager {
	return &OverrideManager{
		core:      core,
		durable:   core.durable,
		transport: core.transport,
		log:       log.With().Str("component", "override").Logger(),
	}
}

// SetOverride records locale as an explicit user choice: a
// source=user/confidence=1.0 preference saved through the core, the
// dedicated markers in both backends, and an override-history entry.
func (m *OverrideManager) SetOverride(locale string, metadata map[string]string) models.OperationResult {
	started := time.Now()

	if !validation.IsLocaleCode(locale) {
		return models.Fail(fmt.Errorf("%w: locale %q is not a valid locale code", ErrValidation, locale), started)
	}

	md := map[string]string{models.MetaIsOverride: "true"}
	for k, v := range metadata {
		md[k] = v
	}
	pref := &models.UserLocalePreference{
		Locale:     locale,
		Source:     models.SourceUser,
		Confidence: models.ConfidenceUser,
		Timestamp:  started.UnixMilli(),
		Metadata:   md,
	}

	if res := m.core.Save(pref); !res.Success {
		return res
	}

	if err := m.durable.Set(store.KeyOverride, locale); err != nil {
		return models.Fail(err, started)
	}
	if err := m.transport.SetString(store.KeyOverride, locale); err != nil {
		return models.Fail(err, started)
	}

	m.appendHistory(models.OverrideHistoryEntry{
		Locale:    locale,
		Action:    models.OverrideActionSet,
		Timestamp: started.UnixMilli(),
	})

	m.core.cache.Set(cacheKeyOverride, locale)
	m.core.bus.Publish(models.EventOverrideSet, map[string]any{"locale": locale})
	return models.OK(locale, started)
}

// GetOverride returns the active override locale. Lookup order: durable
// marker, transport marker (synced back to the durable store on hit),
// then the current preference's source=user flag. A miss is reported as
// a failed result wrapping ErrNoOverride, not an error condition.
func (m *OverrideManager) GetOverride() models.OperationResult {
	started := time.Now()

	if v, ok := m.core.cache.Get(cacheKeyOverride); ok {
		if locale, ok := v.(string); ok && locale != "" {
			return models.OK(locale, started)
		}
	}

	var locale string
	err := m.durable.Get(store.KeyOverride, &locale)
	if err == nil && locale != "" {
		m.core.cache.Set(cacheKeyOverride, locale)
		return models.OK(locale, started)
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		m.log.Warn().Err(err).Msg("Durable override read failed, falling through")
	}

	if tlocale, terr := m.transport.GetString(store.KeyOverride); terr == nil && validation.IsLocaleCode(tlocale) {
		if serr := m.durable.Set(store.KeyOverride, tlocale); serr != nil {
			m.log.Warn().Err(serr).Msg("Durable override sync-back failed")
		}
		m.core.cache.Set(cacheKeyOverride, tlocale)
		return models.OK(tlocale, started)
	}

	if pref := m.core.Get(); pref.Source == models.SourceUser {
		return models.OK(pref.Locale, started)
	}

	return models.Fail(ErrNoOverride, started)
}

// ClearOverride removes both dedicated markers. If the current
// preference was the override itself, it is degraded back to
// source=auto with a fixed lower confidence and a clearedAt stamp
// rather than deleted. Records an action=clear history entry.
func (m *OverrideManager) ClearOverride() models.OperationResult {
	started := time.Now()

	if err := m.durable.Delete(store.KeyOverride); err != nil {
		return models.Fail(err, started)
	}
	if err := m.transport.Delete(store.KeyOverride); err != nil {
		return models.Fail(err, started)
	}

	var cleared string
	var pref models.UserLocalePreference
	err := m.durable.Get(store.KeyPreference, &pref)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		// The markers are gone but the degrade step could not run;
		// report the failure instead of pretending the clear completed.
		return models.Fail(fmt.Errorf("read current preference: %w", err), started)
	}
	if err == nil && pref.Source == models.SourceUser {
		cleared = pref.Locale
		pref.Source = models.SourceAuto
		pref.Confidence = models.ConfidenceClearedOverride
		pref.Timestamp = started.UnixMilli()
		if pref.Metadata == nil {
			pref.Metadata = map[string]string{}
		}
		delete(pref.Metadata, models.MetaIsOverride)
		pref.Metadata[models.MetaClearedAt] = fmt.Sprintf("%d", started.UnixMilli())

		if res := m.core.Save(&pref); !res.Success {
			return res
		}
	}

	m.appendHistory(models.OverrideHistoryEntry{
		Locale:    cleared,
		Action:    models.OverrideActionClear,
		Timestamp: started.UnixMilli(),
	})

	m.core.cache.Clear()
	m.core.bus.Publish(models.EventOverrideCleared, map[string]any{"locale": cleared})
	return models.OK(nil, started)
}

// GetOverrideStats aggregates the override history: total count, most
// recent set timestamp, most frequently chosen locale, and a per-locale
// frequency map. The most-used tie-break is the first locale to reach
// the winning count in chronological scan order.
func (m *OverrideManager) GetOverrideStats() models.OverrideStats {
	stats := models.OverrideStats{Frequency: make(map[string]int)}

	history := m.loadHistory()
	// History is stored newest-first; walk it backwards for the
	// chronological scan the tie-break rule requires.
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		if entry.Action != models.OverrideActionSet {
			continue
		}
		stats.TotalOverrides++
		if entry.Timestamp > stats.LastSet {
			stats.LastSet = entry.Timestamp
		}
		stats.Frequency[entry.Locale]++
		if stats.Frequency[entry.Locale] > stats.Frequency[stats.MostUsed] || stats.MostUsed == "" {
			stats.MostUsed = entry.Locale
		}
	}
	return stats
}

// loadHistory reads the override history list, tolerating absence.
func (m *OverrideManager) loadHistory() []models.OverrideHistoryEntry {
	var history []models.OverrideHistoryEntry
	if err := m.durable.Get(store.KeyOverrideHistory, &history); err != nil && !errors.Is(err, store.ErrNotFound) {
		m.log.Warn().Err(err).Msg("Override history read failed")
	}
	return history
}

// appendHistory prepends an entry (newest first) and enforces the cap.
func (m *OverrideManager) appendHistory(entry models.OverrideHistoryEntry) {
	history := append([]models.OverrideHistoryEntry{entry}, m.loadHistory()...)
	if len(history) > OverrideHistoryCap {
		history = history[:OverrideHistoryCap]
	}
	if err := m.durable.Set(store.KeyOverrideHistory, history); err != nil {
		m.log.Warn().Err(err).Msg("Override history write failed")
	}
}
