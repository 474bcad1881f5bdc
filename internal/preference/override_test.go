// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package preference

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/localekit/localekit/internal/models"
	"github.com/localekit/localekit/internal/store"
)

func newOverrideFixture(t *testing.T) (*OverrideManager, *coreFixture) {
	t.Helper()
	f := newCoreFixture(t)
	return NewOverrideManager(f.core, zerolog.Nop()), f
}

func TestSetOverride(t *testing.T) {
	m, f := newOverrideFixture(t)

	res := m.SetOverride("zh", nil)
	if !res.Success {
		t.Fatalf("SetOverride failed: %s", res.Error)
	}

	// The preference itself becomes the override.
	pref := f.core.Get()
	if pref.Locale != "zh" || pref.Source != models.SourceUser {
		t.Errorf("preference = %q/%s, want zh/user", pref.Locale, pref.Source)
	}
	if pref.Confidence != models.ConfidenceUser {
		t.Errorf("confidence = %v, want 1.0", pref.Confidence)
	}
	if pref.Metadata[models.MetaIsOverride] != "true" {
		t.Error("preference missing isOverride metadata flag")
	}

	// Both dedicated markers are written.
	var marker string
	if err := f.durable.Get(store.KeyOverride, &marker); err != nil || marker != "zh" {
		t.Errorf("durable marker = (%q, %v), want (zh, nil)", marker, err)
	}
	if v, err := f.transport.GetString(store.KeyOverride); err != nil || v != "zh" {
		t.Errorf("transport marker = (%q, %v), want (zh, nil)", v, err)
	}
}

func TestSetOverrideRejectsBadLocale(t *testing.T) {
	m, f := newOverrideFixture(t)
	res := m.SetOverride("not a locale!", nil)
	if res.Success {
		t.Fatal("malformed locale accepted as override")
	}
	var marker string
	if err := f.durable.Get(store.KeyOverride, &marker); !errors.Is(err, store.ErrNotFound) {
		t.Error("rejected override still wrote a marker")
	}
}

func TestGetOverride(t *testing.T) {
	m, _ := newOverrideFixture(t)

	res := m.GetOverride()
	if res.Success {
		t.Fatal("GetOverride succeeded with nothing set")
	}
	if !strings.Contains(res.Error, ErrNoOverride.Error()) {
		t.Errorf("miss error = %q, want no-override", res.Error)
	}

	m.SetOverride("zh", nil)
	res = m.GetOverride()
	if !res.Success || res.Data != "zh" {
		t.Errorf("GetOverride = (%v, %q), want (true, zh)", res.Success, res.Data)
	}
}

func TestGetOverrideRecoversFromTransport(t *testing.T) {
	m, f := newOverrideFixture(t)

	// Only the transport store holds the marker (durable wiped).
	if err := f.transport.SetString(store.KeyOverride, "ja"); err != nil {
		t.Fatalf("seed transport: %v", err)
	}

	res := m.GetOverride()
	if !res.Success || res.Data != "ja" {
		t.Fatalf("GetOverride = (%v, %v), want (true, ja)", res.Success, res.Data)
	}

	// Transport hit is synced back to the durable store.
	var marker string
	if err := f.durable.Get(store.KeyOverride, &marker); err != nil || marker != "ja" {
		t.Errorf("durable sync-back = (%q, %v), want (ja, nil)", marker, err)
	}
}

func TestGetOverrideFallsBackToUserPreference(t *testing.T) {
	m, f := newOverrideFixture(t)

	// A source=user preference with no markers (e.g. markers lost).
	f.core.Save(&models.UserLocalePreference{
		Locale:     "de",
		Source:     models.SourceUser,
		Confidence: models.ConfidenceUser,
	})

	res := m.GetOverride()
	if !res.Success || res.Data != "de" {
		t.Errorf("GetOverride = (%v, %v), want (true, de)", res.Success, res.Data)
	}
}

func TestClearOverrideDegradesPreference(t *testing.T) {
	m, f := newOverrideFixture(t)
	m.SetOverride("zh", nil)

	res := m.ClearOverride()
	if !res.Success {
		t.Fatalf("ClearOverride failed: %s", res.Error)
	}

	// Markers are gone from both backends.
	var marker string
	if err := f.durable.Get(store.KeyOverride, &marker); !errors.Is(err, store.ErrNotFound) {
		t.Error("durable marker survived ClearOverride")
	}
	if _, err := f.transport.GetString(store.KeyOverride); !errors.Is(err, store.ErrNotFound) {
		t.Error("transport marker survived ClearOverride")
	}

	// The preference is degraded, not deleted.
	pref := f.core.Get()
	if pref.Locale != "zh" {
		t.Errorf("locale = %q after clear, want zh retained", pref.Locale)
	}
	if pref.Source != models.SourceAuto {
		t.Errorf("source = %s after clear, want auto", pref.Source)
	}
	if pref.Confidence != models.ConfidenceClearedOverride {
		t.Errorf("confidence = %v after clear, want %v", pref.Confidence, models.ConfidenceClearedOverride)
	}
	if pref.Metadata[models.MetaIsOverride] != "" {
		t.Error("isOverride flag survived the degrade")
	}
	if pref.Metadata[models.MetaClearedAt] == "" {
		t.Error("degraded preference missing clearedAt stamp")
	}

	if m.GetOverride().Success {
		t.Error("GetOverride still succeeds after clear")
	}
}

func TestClearOverrideWithoutOverride(t *testing.T) {
	m, f := newOverrideFixture(t)
	f.core.Save(validPref("en"))

	res := m.ClearOverride()
	if !res.Success {
		t.Fatalf("ClearOverride on clean state failed: %s", res.Error)
	}

	// A non-override preference is left untouched.
	pref := f.core.Get()
	if pref.Source != models.SourceAuto || pref.Confidence != 0.9 {
		t.Errorf("preference modified by no-op clear: %s/%v", pref.Source, pref.Confidence)
	}
}

func TestClearOverrideReportsPreferenceReadFailure(t *testing.T) {
	m, f := newOverrideFixture(t)
	m.SetOverride("zh", nil)

	// The stored preference is corrupt, so the degrade step cannot run.
	f.durable.SetRaw(store.KeyPreference, []byte("{not json"))

	res := m.ClearOverride()
	if res.Success {
		t.Fatal("ClearOverride reported success although the degrade step could not run")
	}
	if !strings.Contains(res.Error, store.ErrSerialization.Error()) {
		t.Errorf("error = %q, want the preference read failure surfaced", res.Error)
	}

	// No clear entry is recorded for the failed operation.
	for _, entry := range m.loadHistory() {
		if entry.Action == models.OverrideActionClear {
			t.Error("failed clear still recorded a history entry")
		}
	}
}

func TestOverrideHistoryCap(t *testing.T) {
	m, f := newOverrideFixture(t)

	for i := 0; i < OverrideHistoryCap+10; i++ {
		m.SetOverride("en", nil)
	}

	var history []models.OverrideHistoryEntry
	if err := f.durable.Get(store.KeyOverrideHistory, &history); err != nil {
		t.Fatalf("history read: %v", err)
	}
	if len(history) != OverrideHistoryCap {
		t.Errorf("history length = %d, want cap %d", len(history), OverrideHistoryCap)
	}
}

func TestGetOverrideStats(t *testing.T) {
	m, _ := newOverrideFixture(t)

	m.SetOverride("zh", nil)
	m.SetOverride("en", nil)
	m.SetOverride("zh", nil)
	m.ClearOverride()

	stats := m.GetOverrideStats()
	if stats.TotalOverrides != 3 {
		t.Errorf("TotalOverrides = %d, want 3 (clears don't count)", stats.TotalOverrides)
	}
	if stats.MostUsed != "zh" {
		t.Errorf("MostUsed = %q, want zh", stats.MostUsed)
	}
	if stats.Frequency["zh"] != 2 || stats.Frequency["en"] != 1 {
		t.Errorf("Frequency = %v, want zh:2 en:1", stats.Frequency)
	}
	if stats.LastSet == 0 {
		t.Error("LastSet not populated")
	}
}

func TestGetOverrideStatsTieBreak(t *testing.T) {
	m, _ := newOverrideFixture(t)

	// en reaches count 1 first; zh ties later. First to reach the
	// winning count in chronological order wins.
	m.SetOverride("en", nil)
	m.SetOverride("zh", nil)

	stats := m.GetOverrideStats()
	if stats.MostUsed != "en" {
		t.Errorf("MostUsed = %q, want en (first to reach the tied count)", stats.MostUsed)
	}
}
