// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

// Package models defines the core data types shared across the locale
// preference subsystem: preference records, detection history, override
// state, operation results, export envelopes, and bus events.
package models

import (
	"time"
)

// Source identifies the provenance of a locale preference or detection.
type Source string

const (
	// SourceUser marks an explicit user choice (always confidence 1.0).
	// Only the override manager produces records with this source.
	SourceUser Source = "user"

	// SourceAuto marks an automatically derived preference, including
	// overrides that were cleared and degraded back.
	SourceAuto Source = "auto"

	// SourceBrowser marks a preference detected from the client
	// environment (Accept-Language, transport store fallback).
	SourceBrowser Source = "browser"

	// SourceFallback marks a preference chosen from the fallback chain.
	SourceFallback Source = "fallback"

	// SourceDefault marks the synthesized default when no data exists.
	SourceDefault Source = "default"
)

// Valid reports whether s is one of the known source values.
func (s Source) Valid() bool {
	switch s {
	case SourceUser, SourceAuto, SourceBrowser, SourceFallback, SourceDefault:
		return true
	}
	return false
}

// Confidence levels used when the subsystem synthesizes records itself.
const (
	// ConfidenceUser is carried by every source=user record.
	ConfidenceUser = 1.0

	// ConfidenceClearedOverride is assigned when an override is cleared
	// and the record is degraded to source=auto.
	ConfidenceClearedOverride = 0.8

	// ConfidenceTransportFallback is assigned to preferences synthesized
	// from a bare transport-store locale code.
	ConfidenceTransportFallback = 0.7

	// ConfidenceDefault is carried by the synthesized default preference.
	ConfidenceDefault = 0.5
)

// Metadata keys written by the subsystem itself.
const (
	// MetaIsOverride mirrors the dedicated override marker on the
	// preference record ("true" when the record is an active override).
	MetaIsOverride = "isOverride"

	// MetaClearedAt records the epoch-ms timestamp at which an override
	// was cleared and the record degraded to auto.
	MetaClearedAt = "clearedAt"
)

// UserLocalePreference is the current best-known locale selection for a
// user, with provenance and confidence. Timestamps are epoch milliseconds.
type UserLocalePreference struct {
	Locale     string            `json:"locale" validate:"required,locale_code"`
	Source     Source            `json:"source" validate:"required,oneof=user auto browser fallback default"`
	Confidence float64           `json:"confidence" validate:"gte=0,lte=1"`
	Timestamp  int64             `json:"timestamp" validate:"gte=0"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy so callers can mutate freely.
func (p *UserLocalePreference) Clone() *UserLocalePreference {
	if p == nil {
		return nil
	}
	out := *p
	if p.Metadata != nil {
		out.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// Normalize clamps confidence into [0,1], defaults a zero timestamp to now,
// and ensures the metadata map is non-nil. Called on every save path.
func (p *UserLocalePreference) Normalize(now time.Time) {
	if p.Confidence < 0 {
		p.Confidence = 0
	}
	if p.Confidence > 1 {
		p.Confidence = 1
	}
	if p.Timestamp == 0 {
		p.Timestamp = now.UnixMilli()
	}
	if p.Metadata == nil {
		p.Metadata = make(map[string]string)
	}
}

// IsOverride reports whether the record represents an active user override.
func (p *UserLocalePreference) IsOverride() bool {
	if p == nil {
		return false
	}
	return p.Source == SourceUser || p.Metadata[MetaIsOverride] == "true"
}

// DetectionRecord captures one locale-detection event. Records are
// immutable once appended to the history.
type DetectionRecord struct {
	Locale     string  `json:"locale" validate:"required,locale_code"`
	Source     Source  `json:"source" validate:"required,oneof=user auto browser fallback default"`
	Timestamp  int64   `json:"timestamp" validate:"gte=0"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// DuplicateBucket returns the deduplication bucket for the record:
// same locale + source within the same one-minute window collapse
// to a single entry.
func (r DetectionRecord) DuplicateBucket() DetectionBucket {
	return DetectionBucket{
		Locale: r.Locale,
		Source: r.Source,
		Minute: r.Timestamp / 60_000,
	}
}

// DetectionBucket is the grouping key used by duplicate cleanup.
type DetectionBucket struct {
	Locale string
	Source Source
	Minute int64
}

// LocaleDetectionHistory is the bounded, chronologically ordered log of
// detection events. Detections are stored oldest-first; TotalDetections
// is a lifetime counter that survives eviction.
type LocaleDetectionHistory struct {
	Detections      []DetectionRecord `json:"detections"`
	LastUpdated     int64             `json:"lastUpdated"`
	TotalDetections int64             `json:"totalDetections"`
}

// OverrideAction distinguishes override-history entries.
type OverrideAction string

const (
	OverrideActionSet   OverrideAction = "set"
	OverrideActionClear OverrideAction = "clear"
)

// OverrideHistoryEntry records one override set/clear action.
// The override history list is kept newest-first and capped.
type OverrideHistoryEntry struct {
	Locale    string         `json:"locale"`
	Action    OverrideAction `json:"action"`
	Timestamp int64          `json:"timestamp"`
}

// OverrideStats aggregates the override history for analytics.
type OverrideStats struct {
	TotalOverrides int            `json:"totalOverrides"`
	LastSet        int64          `json:"lastSet"`
	MostUsed       string         `json:"mostUsed"`
	Frequency      map[string]int `json:"frequency"`
}
