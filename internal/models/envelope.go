// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package models

// EnvelopeVersion is the only export/import format currently understood.
// Import rejects any other version outright without touching stored data.
const EnvelopeVersion = "1.0.0"

// BackupEnvelope is the versioned, self-describing export of preference,
// override, and history state. Every field except Version/Timestamp/
// Metadata is optional; import applies whichever parts are present and
// individually valid.
type BackupEnvelope struct {
	Preference      *UserLocalePreference   `json:"preference,omitempty"`
	Override        string                  `json:"override,omitempty"`
	OverrideHistory []OverrideHistoryEntry  `json:"overrideHistory,omitempty"`
	History         *LocaleDetectionHistory `json:"history,omitempty"`
	Version         string                  `json:"version"`
	Timestamp       int64                   `json:"timestamp"`
	Metadata        EnvelopeMetadata        `json:"metadata"`
}

// EnvelopeMetadata describes the exporting context. DataIntegrity is a
// non-cryptographic hash over the payload used purely as a drift-detection
// hint; it carries no security guarantee.
type EnvelopeMetadata struct {
	UserAgent     string `json:"userAgent"`
	ExportedBy    string `json:"exportedBy"`
	DataIntegrity string `json:"dataIntegrity"`
}

// BackupInfo summarizes one stored backup for listing, newest first.
type BackupInfo struct {
	Key       string `json:"key"`
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
	HasData   bool   `json:"hasData"`
}
