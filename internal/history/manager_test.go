// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package history

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/localekit/localekit/internal/events"
	"github.com/localekit/localekit/internal/models"
	"github.com/localekit/localekit/internal/store"
)

func newTestManager(t *testing.T, maxRecords int) (*Manager, *store.MemoryDurable) {
	t.Helper()
	durable := store.NewMemoryDurable()
	bus := events.NewBus(100, zerolog.Nop())
	return NewManager(durable, bus, maxRecords, zerolog.Nop()), durable
}

func detection(locale string, ts int64) models.DetectionRecord {
	return models.DetectionRecord{
		Locale:     locale,
		Source:     models.SourceBrowser,
		Timestamp:  ts,
		Confidence: 0.9,
	}
}

func TestAddDetectionRecord(t *testing.T) {
	m, _ := newTestManager(t, 10)

	res := m.AddDetectionRecord(detection("en", time.Now().UnixMilli()))
	if !res.Success {
		t.Fatalf("AddDetectionRecord failed: %s", res.Error)
	}

	hist, err := m.GetHistory()
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(hist.Detections) != 1 || hist.TotalDetections != 1 {
		t.Errorf("history = %d records / %d lifetime, want 1/1", len(hist.Detections), hist.TotalDetections)
	}
	if hist.LastUpdated == 0 {
		t.Error("LastUpdated not stamped")
	}
}

func TestAddDetectionRecordDefaultsTimestamp(t *testing.T) {
	m, _ := newTestManager(t, 10)

	res := m.AddDetectionRecord(models.DetectionRecord{
		Locale: "en", Source: models.SourceBrowser, Confidence: 0.9,
	})
	if !res.Success {
		t.Fatalf("AddDetectionRecord failed: %s", res.Error)
	}
	hist, _ := m.GetHistory()
	if hist.Detections[0].Timestamp == 0 {
		t.Error("zero timestamp not defaulted to now")
	}
}

func TestAddDetectionRecordRejectsInvalid(t *testing.T) {
	m, _ := newTestManager(t, 10)

	bad := models.DetectionRecord{Locale: "", Source: models.SourceBrowser, Confidence: 0.9}
	if res := m.AddDetectionRecord(bad); res.Success {
		t.Error("record without locale accepted")
	}

	future := detection("en", time.Now().Add(time.Hour).UnixMilli())
	if res := m.AddDetectionRecord(future); res.Success {
		t.Error("future-dated record accepted")
	}
}

func TestGetRecentDetectionsNewestFirst(t *testing.T) {
	m, _ := newTestManager(t, 10)
	base := time.Now().Add(-time.Hour).UnixMilli()

	m.AddDetectionRecord(detection("en", base))
	m.AddDetectionRecord(detection("zh", base+120_000))
	m.AddDetectionRecord(detection("fr", base+240_000))

	recent := m.GetRecentDetections(2)
	if len(recent) != 2 {
		t.Fatalf("got %d records, want 2", len(recent))
	}
	if recent[0].Locale != "fr" || recent[1].Locale != "zh" {
		t.Errorf("order = %q,%q, want fr,zh (newest first)", recent[0].Locale, recent[1].Locale)
	}

	if all := m.GetRecentDetections(0); len(all) != 3 {
		t.Errorf("non-positive limit returned %d records, want all 3", len(all))
	}
}

func TestCleanupExpired(t *testing.T) {
	m, _ := newTestManager(t, 200)
	now := time.Now()

	m.AddDetectionRecord(detection("en", now.AddDate(0, 0, -31).UnixMilli()))
	m.AddDetectionRecord(detection("zh", now.AddDate(0, 0, -29).UnixMilli()))
	m.AddDetectionRecord(detection("fr", now.UnixMilli()))

	res, err := m.CleanupExpired(0) // defaults to 30 days
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if res.Removed != 1 || res.Remaining != 2 {
		t.Errorf("result = %+v, want removed 1, remaining 2", res)
	}

	hist, _ := m.GetHistory()
	if hist.TotalDetections != 3 {
		t.Errorf("lifetime counter = %d after expiry, want 3 (survives eviction)", hist.TotalDetections)
	}
	for _, rec := range hist.Detections {
		if rec.Locale == "en" {
			t.Error("expired record survived cleanup")
		}
	}
}

func TestCleanupDuplicates(t *testing.T) {
	m, _ := newTestManager(t, 200)
	minute := time.Now().Add(-time.Hour).Truncate(time.Minute).UnixMilli()

	// Six same-locale detections within one minute window.
	for i := int64(0); i < 6; i++ {
		m.AddDetectionRecord(detection("en", minute+i*5_000))
	}
	// A different locale in the same window survives.
	m.AddDetectionRecord(detection("zh", minute+10_000))

	res, err := m.CleanupDuplicates()
	if err != nil {
		t.Fatalf("CleanupDuplicates: %v", err)
	}
	if res.DuplicateCount != 5 || res.Remaining != 2 {
		t.Errorf("result = %+v, want 5 duplicates removed, 2 remaining", res)
	}

	// Idempotent: a second pass finds nothing.
	res, err = m.CleanupDuplicates()
	if err != nil {
		t.Fatalf("second CleanupDuplicates: %v", err)
	}
	if res.DuplicateCount != 0 || res.Remaining != 2 {
		t.Errorf("second pass = %+v, want 0 duplicates, 2 remaining", res)
	}
}

func TestCleanupDuplicatesKeepsFirstOccurrence(t *testing.T) {
	m, _ := newTestManager(t, 200)
	minute := time.Now().Add(-time.Hour).Truncate(time.Minute).UnixMilli()

	m.AddDetectionRecord(detection("en", minute+1_000))
	m.AddDetectionRecord(detection("en", minute+30_000))

	if _, err := m.CleanupDuplicates(); err != nil {
		t.Fatalf("CleanupDuplicates: %v", err)
	}
	hist, _ := m.GetHistory()
	if len(hist.Detections) != 1 || hist.Detections[0].Timestamp != minute+1_000 {
		t.Errorf("kept record = %+v, want the chronologically first occurrence", hist.Detections)
	}
}

func TestCapEvictsOldest(t *testing.T) {
	m, _ := newTestManager(t, 5)
	base := time.Now().Add(-time.Hour).UnixMilli()

	for i := int64(0); i < 8; i++ {
		// Distinct minute windows so dedupe cannot absorb the overflow.
		m.AddDetectionRecord(detection("en", base+i*120_000))
	}

	hist, _ := m.GetHistory()
	if len(hist.Detections) != 5 {
		t.Fatalf("history length = %d, want cap 5", len(hist.Detections))
	}
	if hist.Detections[0].Timestamp != base+3*120_000 {
		t.Errorf("oldest retained timestamp = %d, want the 4th record (oldest evicted first)", hist.Detections[0].Timestamp)
	}
	if hist.TotalDetections != 8 {
		t.Errorf("lifetime counter = %d, want 8", hist.TotalDetections)
	}
}

func TestCapPrefersDroppingDuplicates(t *testing.T) {
	m, _ := newTestManager(t, 3)
	minute := time.Now().Add(-time.Hour).Truncate(time.Minute).UnixMilli()

	m.AddDetectionRecord(detection("en", minute))
	m.AddDetectionRecord(detection("en", minute+1_000)) // duplicate of the first
	m.AddDetectionRecord(detection("zh", minute+2_000))
	m.AddDetectionRecord(detection("fr", minute+3_000)) // pushes over the cap

	hist, _ := m.GetHistory()
	if len(hist.Detections) != 3 {
		t.Fatalf("history length = %d, want 3", len(hist.Detections))
	}
	// The duplicate absorbed the overflow; all three locales survive.
	locales := map[string]bool{}
	for _, rec := range hist.Detections {
		locales[rec.Locale] = true
	}
	if !locales["en"] || !locales["zh"] || !locales["fr"] {
		t.Errorf("retained locales = %v, want en, zh, fr", locales)
	}
}

func TestEmptyHistoryReads(t *testing.T) {
	m, _ := newTestManager(t, 10)

	if recent := m.GetRecentDetections(5); len(recent) != 0 {
		t.Errorf("fresh history returned %d records", len(recent))
	}
	res, err := m.CleanupExpired(time.Hour)
	if err != nil || res.Removed != 0 {
		t.Errorf("cleanup on empty history = (%+v, %v)", res, err)
	}
}
