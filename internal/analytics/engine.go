// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

// Package analytics provides read-only aggregation over the preference
// core and history manager: storage stats, a 0-100 health score, and
// usage pattern/trend reports. It never mutates stored state.
package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/localekit/localekit/internal/cache"
	"github.com/localekit/localekit/internal/consistency"
	"github.com/localekit/localekit/internal/history"
	"github.com/localekit/localekit/internal/models"
	"github.com/localekit/localekit/internal/preference"
	"github.com/localekit/localekit/internal/store"
	"github.com/localekit/localekit/internal/validation"
)

// StorageStats is a snapshot of what the subsystem currently holds.
type StorageStats struct {
	HasPreference  bool                 `json:"hasPreference"`
	HasOverride    bool                 `json:"hasOverride"`
	CurrentLocale  string               `json:"currentLocale"`
	CurrentSource  models.Source        `json:"currentSource"`
	DetectionCount int                  `json:"detectionCount"`
	LifetimeCount  int64                `json:"lifetimeCount"`
	BackupCount    int                  `json:"backupCount"`
	OverrideStats  models.OverrideStats `json:"overrideStats"`
	CacheHitRate   float64              `json:"cacheHitRate"`
	CacheKeys      int64                `json:"cacheKeys"`
	GeneratedAt    int64                `json:"generatedAt"`
}

// HealthReport is the outcome of a full health check.
type HealthReport struct {
	Score  int      `json:"score"`
	Status string   `json:"status"`
	Issues []string `json:"issues,omitempty"`
}

// UsagePatterns summarizes the detection history by locale, source, and
// hour of day.
type UsagePatterns struct {
	ByLocale       map[string]int `json:"byLocale"`
	BySource       map[string]int `json:"bySource"`
	ByHour         map[int]int    `json:"byHour"`
	BusiestHour    int            `json:"busiestHour"`
	DominantLocale string         `json:"dominantLocale"`
}

// UsageTrends compares detection activity across the last two 7-day
// windows.
type UsageTrends struct {
	CurrentWeek  int            `json:"currentWeek"`
	PreviousWeek int            `json:"previousWeek"`
	Direction    string         `json:"direction"` // "up", "down", "flat"
	DailyCounts  map[string]int `json:"dailyCounts"`
}

// Engine aggregates over the other managers. Read-only.
type Engine struct {
	core     *preference.Core
	override *preference.OverrideManager
	history  *history.Manager
	checker  *consistency.Checker
	cache    *cache.Cache
	durable  store.Durable
	log      zerolog.Logger
}

// NewEngine wires an analytics engine.
func NewEngine(
	core *preference.Core,
	override *preference.OverrideManager,
	hist *history.Manager,
	checker *consistency.Checker,
	c *cache.Cache,
	durable store.Durable,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		core:     core,
		override: override,
		history:  hist,
		checker:  checker,
		cache:    c,
		durable:  durable,
		log:      log.With().Str("component", "analytics").Logger(),
	}
}

// GetStorageStats returns the current storage snapshot.
func (e *Engine) GetStorageStats() StorageStats {
	stats := StorageStats{GeneratedAt: time.Now().UnixMilli()}

	pref := e.core.Get()
	stats.CurrentLocale = pref.Locale
	stats.CurrentSource = pref.Source
	stats.HasPreference = pref.Source != models.SourceDefault

	stats.HasOverride = e.override.GetOverride().Success
	stats.OverrideStats = e.override.GetOverrideStats()

	if hist, err := e.history.GetHistory(); err == nil {
		stats.DetectionCount = len(hist.Detections)
		stats.LifetimeCount = hist.TotalDetections
	}

	if keys, err := e.durable.Keys(store.BackupKeyPrefix); err == nil {
		stats.BackupCount = len(keys)
	}

	stats.CacheHitRate = e.cache.HitRate()
	stats.CacheKeys = e.cache.GetStats().TotalKeys
	return stats
}

// PerformHealthCheck scores the subsystem from 100 downward: invalid
// stored records, cross-backend drift, and stale history all deduct.
// Status thresholds: healthy >= 80, degraded >= 50, unhealthy below.
func (e *Engine) PerformHealthCheck() HealthReport {
	report := HealthReport{Score: 100}
	now := time.Now()

	var pref models.UserLocalePreference
	err := e.durable.Get(store.KeyPreference, &pref)
	switch {
	case err == nil:
		if res := validation.ValidatePreference(&pref, now); !res.Valid {
			report.Score -= 30
			for _, msg := range res.Errors {
				report.Issues = append(report.Issues, "preference: "+msg)
			}
		}
	case errors.Is(err, store.ErrSerialization):
		report.Score -= 30
		report.Issues = append(report.Issues, "preference: stored value is corrupt")
	case errors.Is(err, store.ErrStorageUnavailable):
		report.Score -= 50
		report.Issues = append(report.Issues, "durable store unavailable")
	}

	syncIssues := e.checker.CheckDataConsistency()
	for _, issue := range syncIssues {
		report.Issues = append(report.Issues, "sync: "+issue)
	}
	deduction := 15 * len(syncIssues)
	if deduction > 30 {
		deduction = 30
	}
	report.Score -= deduction

	if hist, herr := e.history.GetHistory(); herr == nil && len(hist.Detections) > 0 {
		staleCutoff := now.Add(-history.DefaultMaxAge).UnixMilli()
		stale := 0
		for _, rec := range hist.Detections {
			if rec.Timestamp < staleCutoff {
				stale++
			}
		}
		if stale > 0 {
			report.Score -= 10
			report.Issues = append(report.Issues,
				fmt.Sprintf("history: %d records past the %s retention window", stale, history.DefaultMaxAge))
		}
	}

	if report.Score < 0 {
		report.Score = 0
	}
	switch {
	case report.Score >= 80:
		report.Status = "healthy"
	case report.Score >= 50:
		report.Status = "degraded"
	default:
		report.Status = "unhealthy"
	}
	return report
}

// GetUsagePatterns aggregates the detection history by locale, source,
// and hour of day.
func (e *Engine) GetUsagePatterns() UsagePatterns {
	patterns := UsagePatterns{
		ByLocale: make(map[string]int),
		BySource: make(map[string]int),
		ByHour:   make(map[int]int),
	}

	hist, err := e.history.GetHistory()
	if err != nil {
		e.log.Warn().Err(err).Msg("History read failed for usage patterns")
		return patterns
	}

	bestHour, bestHourCount := 0, 0
	bestLocale, bestLocaleCount := "", 0
	for _, rec := range hist.Detections {
		patterns.ByLocale[rec.Locale]++
		patterns.BySource[string(rec.Source)]++
		hour := time.UnixMilli(rec.Timestamp).UTC().Hour()
		patterns.ByHour[hour]++

		if patterns.ByHour[hour] > bestHourCount {
			bestHour, bestHourCount = hour, patterns.ByHour[hour]
		}
		if patterns.ByLocale[rec.Locale] > bestLocaleCount {
			bestLocale, bestLocaleCount = rec.Locale, patterns.ByLocale[rec.Locale]
		}
	}
	patterns.BusiestHour = bestHour
	patterns.DominantLocale = bestLocale
	return patterns
}

// GetUsageTrends compares the last 7 days of detections against the 7
// days before that.
func (e *Engine) GetUsageTrends() UsageTrends {
	trends := UsageTrends{DailyCounts: make(map[string]int)}

	hist, err := e.history.GetHistory()
	if err != nil {
		e.log.Warn().Err(err).Msg("History read failed for usage trends")
		trends.Direction = "flat"
		return trends
	}

	now := time.Now()
	weekAgo := now.AddDate(0, 0, -7).UnixMilli()
	twoWeeksAgo := now.AddDate(0, 0, -14).UnixMilli()

	for _, rec := range hist.Detections {
		switch {
		case rec.Timestamp >= weekAgo:
			trends.CurrentWeek++
		case rec.Timestamp >= twoWeeksAgo:
			trends.PreviousWeek++
		}
		day := time.UnixMilli(rec.Timestamp).UTC().Format("2006-01-02")
		trends.DailyCounts[day]++
	}

	switch {
	case trends.CurrentWeek > trends.PreviousWeek:
		trends.Direction = "up"
	case trends.CurrentWeek < trends.PreviousWeek:
		trends.Direction = "down"
	default:
		trends.Direction = "flat"
	}
	return trends
}
