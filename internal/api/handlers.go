// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

// Package api exposes the subsystem's operations over HTTP for UI and
// middleware collaborators. The transport store is realized as cookies
// bound per request; the durable store, cache, and bus are shared
// through the locale stack.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/localekit/localekit/internal/locale"
	"github.com/localekit/localekit/internal/logging"
	"github.com/localekit/localekit/internal/maintenance"
	"github.com/localekit/localekit/internal/models"
	"github.com/localekit/localekit/internal/preference"
	"github.com/localekit/localekit/internal/store"
)

// Handler carries the shared stack and per-request cookie settings.
type Handler struct {
	stack        *locale.Stack
	cookieMaxAge time.Duration
	cookieSecure bool
}

// NewHandler creates the API handler set.
func NewHandler(stack *locale.Stack, cookieMaxAge time.Duration, cookieSecure bool) *Handler {
	return &Handler{stack: stack, cookieMaxAge: cookieMaxAge, cookieSecure: cookieSecure}
}

// bind constructs the manager set for one request, with the transport
// store reading the inbound cookies and writing Set-Cookie headers.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request) *locale.Context {
	transport := store.NewCookieTransport(w, r, h.cookieMaxAge, h.cookieSecure)
	return h.stack.Bind(transport)
}

// apiError is the uniform error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Response encoding failed")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]apiError{"error": {Code: code, Message: message}})
}

// resultStatus maps a failed OperationResult to an HTTP status by error
// class.
func resultStatus(res models.OperationResult) int {
	switch {
	case res.Success:
		return http.StatusOK
	case errorContains(res, preference.ErrValidation), errorContains(res, preference.ErrNoPreference):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorContains matches a failed result against a sentinel by message
// text; OperationResult carries only the flattened message.
func errorContains(res models.OperationResult, err error) bool {
	return res.Error != "" && err != nil && strings.Contains(res.Error, err.Error())
}

// ---- Preference ----

// GetPreference returns the current preference; never fails, degrading
// to the default preference.
func (h *Handler) GetPreference(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	respondJSON(w, http.StatusOK, ctx.Preference.Get())
}

// SavePreference validates and stores a preference record.
func (h *Handler) SavePreference(w http.ResponseWriter, r *http.Request) {
	var pref models.UserLocalePreference
	if err := json.NewDecoder(r.Body).Decode(&pref); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not a valid preference record")
		return
	}
	ctx := h.bind(w, r)
	res := ctx.Preference.Save(&pref)
	respondJSON(w, resultStatus(res), res)
}

// ClearPreference removes the preference from both backends.
func (h *Handler) ClearPreference(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	res := ctx.Preference.Clear()
	respondJSON(w, resultStatus(res), res)
}

// UpdateConfidence rewrites the stored preference's confidence.
func (h *Handler) UpdateConfidence(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body must carry a confidence value")
		return
	}
	ctx := h.bind(w, r)
	res := ctx.Preference.UpdateConfidence(body.Confidence)
	respondJSON(w, resultStatus(res), res)
}

// DetectPreference derives a locale from the Accept-Language header,
// logs the detection, and saves a preference if none is stored yet.
func (h *Handler) DetectPreference(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)

	rec := h.stack.Detector.Detect(r.Header.Get("Accept-Language"))
	ctx.History.AddDetectionRecord(rec)

	current := ctx.Preference.Get()
	if current.Source == models.SourceDefault {
		ctx.Preference.Save(h.stack.Detector.Preference(rec))
		current = ctx.Preference.Get()
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"detection":  rec,
		"preference": current,
	})
}

// ---- Override ----

// SetOverride records an explicit user locale choice.
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Locale   string            `json:"locale"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body must carry a locale")
		return
	}
	ctx := h.bind(w, r)
	res := ctx.Override.SetOverride(body.Locale, body.Metadata)
	respondJSON(w, resultStatus(res), res)
}

// GetOverride returns the active override, or a 404-backed miss.
func (h *Handler) GetOverride(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	res := ctx.Override.GetOverride()
	if !res.Success {
		respondJSON(w, http.StatusNotFound, res)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// ClearOverride removes the override markers, degrading the preference.
func (h *Handler) ClearOverride(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	res := ctx.Override.ClearOverride()
	respondJSON(w, resultStatus(res), res)
}

// OverrideStats aggregates the override history.
func (h *Handler) OverrideStats(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	respondJSON(w, http.StatusOK, ctx.Override.GetOverrideStats())
}

// ---- History ----

// RecentDetections returns up to ?limit= most recent records.
func (h *Handler) RecentDetections(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	ctx := h.bind(w, r)
	respondJSON(w, http.StatusOK, map[string]any{
		"detections": ctx.History.GetRecentDetections(limit),
	})
}

// AddDetection appends one detection record.
func (h *Handler) AddDetection(w http.ResponseWriter, r *http.Request) {
	var rec models.DetectionRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not a valid detection record")
		return
	}
	ctx := h.bind(w, r)
	res := ctx.History.AddDetectionRecord(rec)
	respondJSON(w, resultStatus(res), res)
}

// CleanupExpired removes detection records past the retention window.
func (h *Handler) CleanupExpired(w http.ResponseWriter, r *http.Request) {
	maxAge := time.Duration(0)
	if v := r.URL.Query().Get("maxAgeHours"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours < 1 {
			respondError(w, http.StatusBadRequest, "INVALID_MAX_AGE", "maxAgeHours must be a positive integer")
			return
		}
		maxAge = time.Duration(hours) * time.Hour
	}
	ctx := h.bind(w, r)
	res, err := ctx.History.CleanupExpired(maxAge)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "CLEANUP_FAILED", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// CleanupDuplicates collapses same-minute duplicate detections.
func (h *Handler) CleanupDuplicates(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	res, err := ctx.History.CleanupDuplicates()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "CLEANUP_FAILED", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// ---- Consistency ----

// CheckConsistency reports cross-backend drift without repairing it.
func (h *Handler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	issues := ctx.Consistency.CheckDataConsistency()
	respondJSON(w, http.StatusOK, map[string]any{
		"consistent": len(issues) == 0,
		"issues":     issues,
	})
}

// SyncPreference applies the authority rule across the backends.
func (h *Handler) SyncPreference(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	res, err := ctx.Consistency.SyncPreferenceData()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SYNC_FAILED", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// FixConsistency repairs drift and reports the actions taken.
func (h *Handler) FixConsistency(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	res, err := ctx.Consistency.FixDataInconsistency()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "FIX_FAILED", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// ---- Maintenance ----

// ExportData produces a backup envelope of the current state.
func (h *Handler) ExportData(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	env, err := ctx.Maintenance.ExportData()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "EXPORT_FAILED", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, env)
}

// ImportData consumes a backup envelope; partial imports return 200
// with the per-part errors listed.
func (h *Handler) ImportData(w http.ResponseWriter, r *http.Request) {
	var env models.BackupEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not a valid backup envelope")
		return
	}
	ctx := h.bind(w, r)
	report, err := ctx.Maintenance.ImportData(&env)
	if err != nil {
		if errors.Is(err, maintenance.ErrUnsupportedVersion) {
			respondError(w, http.StatusUnprocessableEntity, "UNSUPPORTED_VERSION", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "IMPORT_FAILED", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// CreateBackup stores a timestamped full backup.
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	key, res := ctx.Maintenance.CreateBackup()
	if !res.Success {
		respondJSON(w, http.StatusInternalServerError, res)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"key": key, "result": res})
}

// ListBackups lists stored backups, newest first.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	backups, err := ctx.Maintenance.ListBackups()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"backups": backups})
}

// RestoreBackup re-imports the envelope stored under {key}.
func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	key := pathValue(r, "key")
	ctx := h.bind(w, r)
	report, err := ctx.Maintenance.RestoreBackup(key)
	if err != nil {
		if errors.Is(err, maintenance.ErrBackupNotFound) {
			respondError(w, http.StatusNotFound, "BACKUP_NOT_FOUND", err.Error())
			return
		}
		if errors.Is(err, maintenance.ErrUnsupportedVersion) {
			respondError(w, http.StatusUnprocessableEntity, "UNSUPPORTED_VERSION", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "RESTORE_FAILED", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// DeleteBackup removes one backup.
func (h *Handler) DeleteBackup(w http.ResponseWriter, r *http.Request) {
	key := pathValue(r, "key")
	ctx := h.bind(w, r)
	if err := ctx.Maintenance.DeleteBackup(key); err != nil {
		if errors.Is(err, maintenance.ErrBackupNotFound) {
			respondError(w, http.StatusNotFound, "BACKUP_NOT_FOUND", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "DELETE_FAILED", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": key})
}

// RunMaintenance triggers a full maintenance pass.
func (h *Handler) RunMaintenance(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	report := ctx.Maintenance.PerformMaintenance(maintenance.Options{})
	respondJSON(w, http.StatusOK, report)
}

// ValidateIntegrity runs every validator across the stored keys.
func (h *Handler) ValidateIntegrity(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	issues := ctx.Maintenance.ValidateStorageIntegrity()
	respondJSON(w, http.StatusOK, map[string]any{
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}

// ClearAll wipes every known key from both backends.
func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	res := ctx.Maintenance.ClearAll()
	respondJSON(w, resultStatus(res), res)
}

// ---- Analytics ----

// StorageStats returns the storage snapshot.
func (h *Handler) StorageStats(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	respondJSON(w, http.StatusOK, ctx.Analytics.GetStorageStats())
}

// HealthCheck returns the scored health report.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	report := ctx.Analytics.PerformHealthCheck()
	status := http.StatusOK
	if report.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, report)
}

// UsagePatterns returns locale/source/hour aggregations.
func (h *Handler) UsagePatterns(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	respondJSON(w, http.StatusOK, ctx.Analytics.GetUsagePatterns())
}

// UsageTrends returns week-over-week detection trends.
func (h *Handler) UsageTrends(w http.ResponseWriter, r *http.Request) {
	ctx := h.bind(w, r)
	respondJSON(w, http.StatusOK, ctx.Analytics.GetUsageTrends())
}

// ---- Events ----

// EventHistory returns the bus's retained event log, oldest first.
func (h *Handler) EventHistory(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"events": h.stack.Bus.History(),
	})
}

// pathValue reads a chi URL parameter.
func pathValue(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
