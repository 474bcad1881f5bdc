// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

// Package validation provides the pure validation engine for preference
// records, detection histories, and cross-backend sync state.
//
// Structural checks (required fields, ranges, enums) run through
// go-playground/validator v10 struct tags; semantic checks the tag
// language cannot express (future timestamps, source/confidence coupling,
// cross-backend presence) are layered on top. All functions are
// stateless, perform no I/O, and report rather than throw: malformed
// input yields Valid=false with populated Errors, never a panic.
package validation

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/localekit/localekit/internal/models"
)

// singleton validator instance; immutable after construction, safe for
// concurrent use, caches struct metadata across calls.
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// localeCodePattern accepts BCP 47-shaped codes: a 2-3 letter language
// subtag, optionally followed by script and/or region subtags
// ("en", "zh", "en-US", "zh-Hant-TW", "pt_BR" with either separator).
var localeCodePattern = regexp.MustCompile(`^[a-zA-Z]{2,3}([_-][a-zA-Z]{4})?([_-][a-zA-Z]{2}|[_-][0-9]{3})?$`)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// locale_code: structural locale tag check used by record tags.
		// MustRegisterValidation only fails for empty names or nil funcs.
		_ = validate.RegisterValidation("locale_code", func(fl validator.FieldLevel) bool {
			return localeCodePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// IsLocaleCode reports whether s is a structurally plausible locale code.
func IsLocaleCode(s string) bool {
	return localeCodePattern.MatchString(s)
}

// ValidatePreference checks a preference record for structural and
// semantic validity. A nil record is invalid, not a panic.
func ValidatePreference(p *models.UserLocalePreference, now time.Time) models.ValidationResult {
	res := models.ValidationResult{Valid: true}
	if p == nil {
		res.AddError("preference is missing")
		return res
	}

	collectStructErrors(&res, getValidator().Struct(p))

	// Checks the tag language cannot express.
	if p.Timestamp > now.UnixMilli() {
		res.AddError(fmt.Sprintf("timestamp %d is in the future", p.Timestamp))
	}
	if p.Source == models.SourceUser && p.Confidence != models.ConfidenceUser {
		res.AddWarning(fmt.Sprintf("source=user record carries confidence %.2f, expected 1.0", p.Confidence))
	}
	if p.Source == models.SourceDefault && p.Metadata[models.MetaIsOverride] == "true" {
		res.AddWarning("default preference is flagged as an override")
	}
	return res
}

// ValidateDetectionRecord checks one detection record with the same
// field-level constraints as a preference record.
func ValidateDetectionRecord(r *models.DetectionRecord, now time.Time) models.ValidationResult {
	res := models.ValidationResult{Valid: true}
	if r == nil {
		res.AddError("detection record is missing")
		return res
	}

	collectStructErrors(&res, getValidator().Struct(r))

	if r.Timestamp > now.UnixMilli() {
		res.AddError(fmt.Sprintf("timestamp %d is in the future", r.Timestamp))
	}
	return res
}

// ValidateHistory checks a detection history batch: the container fields
// plus every individual record.
func ValidateHistory(h *models.LocaleDetectionHistory, now time.Time) models.ValidationResult {
	res := models.ValidationResult{Valid: true}
	if h == nil {
		res.AddError("history is missing")
		return res
	}
	if h.LastUpdated < 0 {
		res.AddError("lastUpdated is negative")
	}
	if h.TotalDetections < 0 {
		res.AddError("totalDetections is negative")
	}
	if int64(len(h.Detections)) > h.TotalDetections {
		res.AddWarning(fmt.Sprintf("detections list (%d) exceeds lifetime counter (%d)",
			len(h.Detections), h.TotalDetections))
	}

	for i := range h.Detections {
		rec := ValidateDetectionRecord(&h.Detections[i], now)
		for _, e := range rec.Errors {
			res.AddError(fmt.Sprintf("detection[%d]: %s", i, e))
		}
		for _, w := range rec.Warnings {
			res.AddWarning(fmt.Sprintf("detection[%d]: %s", i, w))
		}
	}
	return res
}

// SyncState is the cross-backend snapshot ValidateStorageSync inspects.
// Empty strings / nil pointers mean "absent in that backend".
type SyncState struct {
	DurablePreference *models.UserLocalePreference
	TransportLocale   string
	DurableOverride   string
	TransportOverride string
}

// ValidateStorageSync flags asymmetries between the durable and
// transport backends for the preference and the override marker. It
// returns human-readable issue strings and never mutates state.
func ValidateStorageSync(state SyncState) []string {
	var issues []string

	switch {
	case state.DurablePreference != nil && state.TransportLocale == "":
		issues = append(issues, "preference present in durable store but absent in transport store")
	case state.DurablePreference == nil && state.TransportLocale != "":
		issues = append(issues, "locale present in transport store but no preference in durable store")
	case state.DurablePreference != nil && state.TransportLocale != "" &&
		state.DurablePreference.Locale != state.TransportLocale:
		issues = append(issues, fmt.Sprintf(
			"locale drift: durable store holds %q, transport store holds %q",
			state.DurablePreference.Locale, state.TransportLocale))
	}

	switch {
	case state.DurableOverride != "" && state.TransportOverride == "":
		issues = append(issues, "override marker present in durable store but absent in transport store")
	case state.DurableOverride == "" && state.TransportOverride != "":
		issues = append(issues, "override marker present in transport store but absent in durable store")
	case state.DurableOverride != "" && state.TransportOverride != "" &&
		state.DurableOverride != state.TransportOverride:
		issues = append(issues, fmt.Sprintf(
			"override drift: durable store holds %q, transport store holds %q",
			state.DurableOverride, state.TransportOverride))
	}

	return issues
}

// collectStructErrors translates validator.v10 errors into result entries.
func collectStructErrors(res *models.ValidationResult, err error) {
	if err == nil {
		return
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// InvalidValidationError or similar: report, don't panic.
		res.AddError(err.Error())
		return
	}
	for _, fe := range verrs {
		res.AddError(fieldErrorMessage(fe))
	}
}

// fieldErrorMessage renders one field error in the subsystem's
// human-readable style.
func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "locale_code":
		return fmt.Sprintf("%s %q is not a valid locale code", fe.Field(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s %q is not a recognized value (expected one of: %s)", fe.Field(), fe.Value(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
