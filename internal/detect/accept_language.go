// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

// Package detect derives locale preferences from HTTP Accept-Language
// headers. It produces detection records for the history log and a
// browser-sourced preference when nothing is stored yet.
package detect

import (
	"time"

	"golang.org/x/text/language"

	"github.com/localekit/localekit/internal/models"
)

// Detector matches Accept-Language headers against the supported
// locale set.
type Detector struct {
	supported     []language.Tag
	supportedStr  []string
	matcher       language.Matcher
	defaultLocale string
}

// NewDetector builds a detector. supported is the ordered list of
// locales the application can serve; the first entry doubles as the
// matcher's fallback. defaultLocale is returned when the header is
// empty or unparseable.
func NewDetector(supported []string, defaultLocale string) *Detector {
	tags := make([]language.Tag, 0, len(supported))
	kept := make([]string, 0, len(supported))
	for _, s := range supported {
		tag, err := language.Parse(s)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		kept = append(kept, s)
	}
	if len(tags) == 0 {
		tags = []language.Tag{language.English}
		kept = []string{"en"}
	}
	return &Detector{
		supported:     tags,
		supportedStr:  kept,
		matcher:       language.NewMatcher(tags),
		defaultLocale: defaultLocale,
	}
}

// Detect parses the Accept-Language header and returns the best-matching
// supported locale as a detection record. Confidence is the header's
// quality weight for the matched language, scaled into (0,1]; an empty
// or malformed header yields the default locale with source=fallback.
func (d *Detector) Detect(acceptLanguage string) models.DetectionRecord {
	now := time.Now().UnixMilli()

	if acceptLanguage == "" {
		return models.DetectionRecord{
			Locale:     d.defaultLocale,
			Source:     models.SourceFallback,
			Timestamp:  now,
			Confidence: models.ConfidenceDefault,
		}
	}

	desired, weights, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(desired) == 0 {
		return models.DetectionRecord{
			Locale:     d.defaultLocale,
			Source:     models.SourceFallback,
			Timestamp:  now,
			Confidence: models.ConfidenceDefault,
		}
	}

	_, index, conf := d.matcher.Match(desired...)
	locale := d.supportedStr[index]

	confidence := matchConfidence(conf)
	// Scale by the client's own weight for its top choice when present.
	if len(weights) > 0 && weights[0] > 0 && weights[0] < 1 {
		confidence *= float64(weights[0])
	}
	if confidence <= 0 {
		confidence = models.ConfidenceDefault
	}

	return models.DetectionRecord{
		Locale:     locale,
		Source:     models.SourceBrowser,
		Timestamp:  now,
		Confidence: confidence,
	}
}

// Preference converts a detection into a preference record.
func (d *Detector) Preference(rec models.DetectionRecord) *models.UserLocalePreference {
	return &models.UserLocalePreference{
		Locale:     rec.Locale,
		Source:     rec.Source,
		Confidence: rec.Confidence,
		Timestamp:  rec.Timestamp,
		Metadata:   map[string]string{},
	}
}

// matchConfidence maps the matcher's confidence level into [0,1].
func matchConfidence(c language.Confidence) float64 {
	switch c {
	case language.Exact:
		return 0.95
	case language.High:
		return 0.9
	case language.Low:
		return 0.6
	default:
		return 0.3
	}
}
