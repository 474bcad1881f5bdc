// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	AllowedOrigins []string
}

// NewRouter assembles the full route tree.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Accept-Language"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(300, time.Minute))

		r.Route("/preference", func(r chi.Router) {
			r.Get("/", h.GetPreference)
			r.Put("/", h.SavePreference)
			r.Delete("/", h.ClearPreference)
			r.Patch("/confidence", h.UpdateConfidence)
			r.Get("/detect", h.DetectPreference)
		})

		r.Route("/override", func(r chi.Router) {
			r.Get("/", h.GetOverride)
			r.Post("/", h.SetOverride)
			r.Delete("/", h.ClearOverride)
			r.Get("/stats", h.OverrideStats)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", h.RecentDetections)
			r.Post("/", h.AddDetection)
			r.Post("/cleanup/expired", h.CleanupExpired)
			r.Post("/cleanup/duplicates", h.CleanupDuplicates)
		})

		r.Route("/consistency", func(r chi.Router) {
			r.Get("/", h.CheckConsistency)
			r.Post("/sync", h.SyncPreference)
			r.Post("/fix", h.FixConsistency)
		})

		// Maintenance endpoints get a tighter limit: backup creation and
		// full maintenance passes are heavyweight.
		r.Route("/maintenance", func(r chi.Router) {
			r.Use(httprate.LimitByIP(30, time.Minute))

			r.Post("/run", h.RunMaintenance)
			r.Get("/integrity", h.ValidateIntegrity)
			r.Delete("/all", h.ClearAll)
			r.Get("/export", h.ExportData)
			r.Post("/import", h.ImportData)

			r.Route("/backups", func(r chi.Router) {
				r.Get("/", h.ListBackups)
				r.Post("/", h.CreateBackup)
				r.Post("/{key}/restore", h.RestoreBackup)
				r.Delete("/{key}", h.DeleteBackup)
			})
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/stats", h.StorageStats)
			r.Get("/health", h.HealthCheck)
			r.Get("/patterns", h.UsagePatterns)
			r.Get("/trends", h.UsageTrends)
		})

		r.Get("/events", h.EventHistory)
	})

	return r
}
