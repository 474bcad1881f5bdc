// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package maintenance

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/localekit/localekit/internal/cache"
	"github.com/localekit/localekit/internal/consistency"
	"github.com/localekit/localekit/internal/events"
	"github.com/localekit/localekit/internal/history"
	"github.com/localekit/localekit/internal/models"
	"github.com/localekit/localekit/internal/store"
)

type fixture struct {
	manager   *Manager
	durable   *store.MemoryDurable
	transport *store.MemoryTransport
	cache     *cache.Cache
	history   *history.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		durable:   store.NewMemoryDurable(),
		transport: store.NewMemoryTransport(),
		cache:     cache.New(5 * time.Minute),
	}
	bus := events.NewBus(100, zerolog.Nop())
	f.history = history.NewManager(f.durable, bus, 100, zerolog.Nop())
	checker := consistency.NewChecker(f.durable, f.transport, f.cache, bus, zerolog.Nop())
	f.manager = NewManager(f.durable, f.transport, f.cache, bus, f.history, checker, "test-agent", zerolog.Nop())
	return f
}

func (f *fixture) seedState(t *testing.T) {
	t.Helper()
	now := time.Now().UnixMilli()
	pref := &models.UserLocalePreference{
		Locale: "zh", Source: models.SourceUser, Confidence: 1.0, Timestamp: now,
	}
	if err := f.durable.Set(store.KeyPreference, pref); err != nil {
		t.Fatalf("seed preference: %v", err)
	}
	f.transport.SetString(store.KeyPreference, "zh")
	f.durable.Set(store.KeyOverride, "zh")
	f.transport.SetString(store.KeyOverride, "zh")
	f.durable.Set(store.KeyOverrideHistory, []models.OverrideHistoryEntry{
		{Locale: "zh", Action: models.OverrideActionSet, Timestamp: now},
	})
	f.durable.Set(store.KeyHistory, &models.LocaleDetectionHistory{
		Detections: []models.DetectionRecord{
			{Locale: "zh", Source: models.SourceBrowser, Timestamp: now, Confidence: 0.9},
		},
		LastUpdated:     now,
		TotalDetections: 1,
	})
}

func TestExportImportRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.seedState(t)

	env, err := f.manager.ExportData()
	if err != nil {
		t.Fatalf("ExportData: %v", err)
	}
	if env.Version != models.EnvelopeVersion {
		t.Errorf("version = %q, want %q", env.Version, models.EnvelopeVersion)
	}
	if env.Metadata.DataIntegrity == "" {
		t.Error("integrity hash not populated")
	}
	if env.Preference == nil || env.Preference.Locale != "zh" {
		t.Fatalf("envelope preference = %+v, want zh", env.Preference)
	}
	if env.Override != "zh" || env.History == nil || len(env.OverrideHistory) != 1 {
		t.Errorf("envelope incomplete: override %q, history %v", env.Override, env.History)
	}

	// Integrity verifies against the serialized envelope.
	computed, err := ComputeIntegrity(env)
	if err != nil {
		t.Fatalf("ComputeIntegrity: %v", err)
	}
	if computed != env.Metadata.DataIntegrity {
		t.Errorf("integrity = %q, recomputed %q", env.Metadata.DataIntegrity, computed)
	}

	// Wipe and restore into a fresh fixture.
	g := newFixture(t)
	report, err := g.manager.ImportData(env)
	if err != nil {
		t.Fatalf("ImportData: %v", err)
	}
	if len(report.Errors) != 0 || report.Partial {
		t.Fatalf("report = %+v, want clean import", report)
	}
	if len(report.Imported) != 4 {
		t.Errorf("imported = %v, want all four parts", report.Imported)
	}

	var pref models.UserLocalePreference
	if err := g.durable.Get(store.KeyPreference, &pref); err != nil || pref.Locale != "zh" {
		t.Errorf("restored preference = (%+v, %v)", pref, err)
	}
	if v, _ := g.transport.GetString(store.KeyPreference); v != "zh" {
		t.Errorf("transport mirror = %q after import, want zh", v)
	}
	if v, _ := g.transport.GetString(store.KeyOverride); v != "zh" {
		t.Errorf("override mirror = %q after import, want zh", v)
	}
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	f := newFixture(t)

	env := &models.BackupEnvelope{
		Version:   "2.0.0",
		Timestamp: time.Now().UnixMilli(),
		Preference: &models.UserLocalePreference{
			Locale: "zh", Source: models.SourceUser, Confidence: 1.0, Timestamp: time.Now().UnixMilli(),
		},
	}

	_, err := f.manager.ImportData(env)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("ImportData = %v, want ErrUnsupportedVersion", err)
	}

	// Nothing was mutated.
	var pref models.UserLocalePreference
	if err := f.durable.Get(store.KeyPreference, &pref); !errors.Is(err, store.ErrNotFound) {
		t.Error("rejected import still wrote the preference")
	}

	if _, err := f.manager.ImportData(nil); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("nil envelope = %v, want ErrUnsupportedVersion", err)
	}
}

func TestImportPartial(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UnixMilli()

	env := &models.BackupEnvelope{
		Version:   models.EnvelopeVersion,
		Timestamp: now,
		Preference: &models.UserLocalePreference{
			Locale: "zh", Source: models.SourceUser, Confidence: 1.0, Timestamp: now,
		},
		Override: "not a locale!",
	}

	report, err := f.manager.ImportData(env)
	if err != nil {
		t.Fatalf("ImportData: %v", err)
	}
	if !report.Partial {
		t.Errorf("report = %+v, want partial (good preference, bad override)", report)
	}
	if len(report.Imported) != 1 || report.Imported[0] != "preference" {
		t.Errorf("imported = %v, want just the preference", report.Imported)
	}
	var marker string
	if err := f.durable.Get(store.KeyOverride, &marker); !errors.Is(err, store.ErrNotFound) {
		t.Error("invalid override was imported")
	}
}

func TestCreateAndRestoreBackup(t *testing.T) {
	f := newFixture(t)
	f.seedState(t)

	key, res := f.manager.CreateBackup()
	if !res.Success {
		t.Fatalf("CreateBackup failed: %s", res.Error)
	}

	// Damage the live state, then restore.
	f.durable.Delete(store.KeyPreference)
	f.transport.Delete(store.KeyPreference)

	report, err := f.manager.RestoreBackup(key)
	if err != nil {
		t.Fatalf("RestoreBackup: %v", err)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("restore errors: %v", report.Errors)
	}
	var pref models.UserLocalePreference
	if err := f.durable.Get(store.KeyPreference, &pref); err != nil || pref.Locale != "zh" {
		t.Errorf("restored preference = (%+v, %v)", pref, err)
	}
}

func TestRestoreMissingBackup(t *testing.T) {
	f := newFixture(t)
	if _, err := f.manager.RestoreBackup(store.BackupKeyPrefix + "12345"); !errors.Is(err, ErrBackupNotFound) {
		t.Errorf("RestoreBackup = %v, want ErrBackupNotFound", err)
	}
	if err := f.manager.DeleteBackup("some_other_key"); !errors.Is(err, ErrBackupNotFound) {
		t.Errorf("DeleteBackup with foreign key = %v, want ErrBackupNotFound", err)
	}
}

func seedBackups(t *testing.T, f *fixture, timestamps ...int64) {
	t.Helper()
	for _, ts := range timestamps {
		env := &models.BackupEnvelope{Version: models.EnvelopeVersion, Timestamp: ts}
		key := store.BackupKeyPrefix + strconv.FormatInt(ts, 10)
		if err := f.durable.Set(key, env); err != nil {
			t.Fatalf("seed backup %s: %v", key, err)
		}
	}
}

func TestListBackupsNewestFirst(t *testing.T) {
	f := newFixture(t)
	seedBackups(t, f, 1000, 3000, 2000)

	backups, err := f.manager.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(backups) != 3 {
		t.Fatalf("got %d backups, want 3", len(backups))
	}
	if backups[0].Timestamp != 3000 || backups[2].Timestamp != 1000 {
		t.Errorf("order = %d,%d,%d, want newest first", backups[0].Timestamp, backups[1].Timestamp, backups[2].Timestamp)
	}
}

func TestCleanupOldBackups(t *testing.T) {
	f := newFixture(t)
	seedBackups(t, f, 1000, 2000, 3000, 4000, 5000, 6000, 7000)

	deleted, err := f.manager.CleanupOldBackups(5)
	if err != nil {
		t.Fatalf("CleanupOldBackups: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	backups, _ := f.manager.ListBackups()
	if len(backups) != 5 {
		t.Fatalf("remaining = %d, want 5", len(backups))
	}
	// The two oldest were the ones removed.
	for _, b := range backups {
		if b.Timestamp < 3000 {
			t.Errorf("old backup %d survived cleanup", b.Timestamp)
		}
	}
}

func TestClearAll(t *testing.T) {
	f := newFixture(t)
	f.seedState(t)
	seedBackups(t, f, 1000)
	f.cache.Set("preference", "zh")

	res := f.manager.ClearAll()
	if !res.Success {
		t.Fatalf("ClearAll failed: %s", res.Error)
	}

	keys, _ := f.durable.Keys("")
	if len(keys) != 0 {
		t.Errorf("durable keys remain after ClearAll: %v", keys)
	}
	if _, err := f.transport.GetString(store.KeyPreference); !errors.Is(err, store.ErrNotFound) {
		t.Error("transport locale survived ClearAll")
	}
	if f.cache.Len() != 0 {
		t.Error("cache survived ClearAll")
	}
}

func TestPerformMaintenance(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	// One expired record, one same-minute duplicate pair, drifted mirror.
	minute := now.Add(-time.Hour).Truncate(time.Minute).UnixMilli()
	f.durable.Set(store.KeyHistory, &models.LocaleDetectionHistory{
		Detections: []models.DetectionRecord{
			{Locale: "en", Source: models.SourceBrowser, Timestamp: now.AddDate(0, 0, -31).UnixMilli(), Confidence: 0.9},
			{Locale: "zh", Source: models.SourceBrowser, Timestamp: minute, Confidence: 0.9},
			{Locale: "zh", Source: models.SourceBrowser, Timestamp: minute + 5_000, Confidence: 0.9},
		},
		LastUpdated:     now.UnixMilli(),
		TotalDetections: 3,
	})
	f.durable.Set(store.KeyPreference, &models.UserLocalePreference{
		Locale: "zh", Source: models.SourceAuto, Confidence: 0.9, Timestamp: now.UnixMilli(),
	})
	f.transport.SetString(store.KeyPreference, "en")

	report := f.manager.PerformMaintenance(Options{})
	if len(report.Errors) != 0 {
		t.Fatalf("maintenance errors: %v", report.Errors)
	}
	if report.ExpiredRemoved != 1 {
		t.Errorf("ExpiredRemoved = %d, want 1", report.ExpiredRemoved)
	}
	if report.DuplicatesRemoved != 1 {
		t.Errorf("DuplicatesRemoved = %d, want 1", report.DuplicatesRemoved)
	}
	if report.SyncAction == "" || report.SyncAction == "no data in either backend" {
		t.Errorf("SyncAction = %q, want a repair action", report.SyncAction)
	}
	if v, _ := f.transport.GetString(store.KeyPreference); v != "zh" {
		t.Errorf("transport locale = %q after maintenance, want zh", v)
	}
	if report.CompletedTimestamp == 0 {
		t.Error("CompletedTimestamp not stamped")
	}
}

func TestPerformMaintenanceRemovesCorruptPreference(t *testing.T) {
	f := newFixture(t)
	f.durable.SetRaw(store.KeyPreference, []byte("{not json"))
	f.transport.SetString(store.KeyPreference, "???")

	report := f.manager.PerformMaintenance(Options{SkipSync: true})
	if len(report.InvalidCleaned) != 2 {
		t.Errorf("InvalidCleaned = %v, want corrupt durable + invalid transport removals", report.InvalidCleaned)
	}

	var pref models.UserLocalePreference
	if err := f.durable.Get(store.KeyPreference, &pref); !errors.Is(err, store.ErrNotFound) {
		t.Error("corrupt preference survived maintenance")
	}
	if _, err := f.transport.GetString(store.KeyPreference); !errors.Is(err, store.ErrNotFound) {
		t.Error("invalid transport locale survived maintenance")
	}
}

func TestValidateStorageIntegrity(t *testing.T) {
	f := newFixture(t)
	f.seedState(t)

	if issues := f.manager.ValidateStorageIntegrity(); len(issues) != 0 {
		t.Errorf("clean state reported issues: %v", issues)
	}

	// Plant drift and a bad override marker.
	f.transport.SetString(store.KeyPreference, "en")
	f.durable.Set(store.KeyOverride, "not a locale!")

	issues := f.manager.ValidateStorageIntegrity()
	if len(issues) == 0 {
		t.Fatal("planted issues not reported")
	}

	// Diagnostic only: the drift is still there.
	if v, _ := f.transport.GetString(store.KeyPreference); v != "en" {
		t.Error("ValidateStorageIntegrity mutated the transport store")
	}
}
