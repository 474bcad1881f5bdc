// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

// Package consistency detects and repairs drift between the durable and
// transport backends.
//
// The authority rule: a structurally valid durable record always wins,
// because the durable store is the higher-fidelity backend. The
// transport store only becomes the source of truth when the durable
// store holds nothing usable. This rule is the only cross-context
// ordering guarantee the subsystem provides; concurrent writers are
// last-write-wins by design.
package consistency

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/localekit/localekit/internal/cache"
	"github.com/localekit/localekit/internal/events"
	"github.com/localekit/localekit/internal/metrics"
	"github.com/localekit/localekit/internal/models"
	"github.com/localekit/localekit/internal/store"
	"github.com/localekit/localekit/internal/validation"
)

// ErrConsistency tags reported cross-backend drift.
var ErrConsistency = errors.New("consistency violation")

// SyncResult reports one reconciliation pass.
type SyncResult struct {
	Synced bool   `json:"synced"`
	Action string `json:"action"`
}

// FixResult lists the corrective actions an explicit repair performed.
type FixResult struct {
	Fixed   bool     `json:"fixed"`
	Actions []string `json:"actions"`
}

// Checker reconciles the two backends.
type Checker struct {
	durable   store.Durable
	transport store.Transport
	cache     *cache.Cache
	bus       *events.Bus
	log       zerolog.Logger
}

// NewChecker wires a consistency checker.
func NewChecker(durable store.Durable, transport store.Transport, c *cache.Cache, bus *events.Bus, log zerolog.Logger) *Checker {
	return &Checker{
		durable:   durable,
		transport: transport,
		cache:     c,
		bus:       bus,
		log:       log.With().Str("component", "consistency").Logger(),
	}
}

// SyncPreferenceData reads both backends independently and applies the
// authority rule:
//
//  1. Valid durable record: authoritative; a differing transport locale
//     is overwritten with the durable one.
//  2. No usable durable record but a transport locale: a source=browser
//     preference is synthesized into the durable store.
//  3. Neither: both stay empty; downstream readers fall back to the
//     default preference.
func (c *Checker) SyncPreferenceData() (SyncResult, error) {
	metrics.SyncChecks.Inc()
	now := time.Now()

	durablePref, transportLocale := c.read()

	if durablePref != nil {
		if transportLocale == durablePref.Locale {
			return SyncResult{Synced: true, Action: "in sync"}, nil
		}
		if err := c.transport.SetString(store.KeyPreference, durablePref.Locale); err != nil {
			return SyncResult{}, err
		}
		metrics.SyncRepairs.WithLabelValues("durable_to_transport").Inc()
		c.bus.Publish(models.EventSyncRepaired, map[string]any{"direction": "durable_to_transport"})
		return SyncResult{
			Synced: true,
			Action: fmt.Sprintf("transport locale rewritten to %q from durable store", durablePref.Locale),
		}, nil
	}

	if transportLocale != "" {
		synth := &models.UserLocalePreference{
			Locale:     transportLocale,
			Source:     models.SourceBrowser,
			Confidence: models.ConfidenceTransportFallback,
			Timestamp:  now.UnixMilli(),
			Metadata:   map[string]string{},
		}
		if err := c.durable.Set(store.KeyPreference, synth); err != nil {
			return SyncResult{}, err
		}
		metrics.SyncRepairs.WithLabelValues("transport_to_durable").Inc()
		c.bus.Publish(models.EventSyncRepaired, map[string]any{"direction": "transport_to_durable"})
		return SyncResult{
			Synced: true,
			Action: fmt.Sprintf("durable preference synthesized from transport locale %q", transportLocale),
		}, nil
	}

	return SyncResult{Synced: false, Action: "no data in either backend"}, nil
}

// CheckDataConsistency reports drift without mutating anything.
// Diagnostic only; repairs happen solely through FixDataInconsistency or
// maintenance.
func (c *Checker) CheckDataConsistency() []string {
	metrics.SyncChecks.Inc()

	durablePref, transportLocale := c.read()

	state := validation.SyncState{
		DurablePreference: durablePref,
		TransportLocale:   transportLocale,
	}
	if v, err := getString(c.durable, store.KeyOverride); err == nil {
		state.DurableOverride = v
	}
	if v, err := c.transport.GetString(store.KeyOverride); err == nil {
		state.TransportOverride = v
	}

	return validation.ValidateStorageSync(state)
}

// FixDataInconsistency applies the authority rule, clears the cache, and
// returns the corrective actions taken.
func (c *Checker) FixDataInconsistency() (FixResult, error) {
	var result FixResult

	syncRes, err := c.SyncPreferenceData()
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrConsistency, err)
	}
	if syncRes.Action != "in sync" && syncRes.Action != "no data in either backend" {
		result.Fixed = true
		result.Actions = append(result.Actions, syncRes.Action)
	}

	// Override markers follow the same authority rule.
	durableOverride, derr := getString(c.durable, store.KeyOverride)
	transportOverride, terr := c.transport.GetString(store.KeyOverride)
	switch {
	case derr == nil && durableOverride != "" && durableOverride != transportOverride:
		if err := c.transport.SetString(store.KeyOverride, durableOverride); err != nil {
			return result, fmt.Errorf("%w: %w", ErrConsistency, err)
		}
		result.Fixed = true
		result.Actions = append(result.Actions,
			fmt.Sprintf("transport override rewritten to %q from durable store", durableOverride))
	case errors.Is(derr, store.ErrNotFound) && terr == nil && validation.IsLocaleCode(transportOverride):
		if err := c.durable.Set(store.KeyOverride, transportOverride); err != nil {
			return result, fmt.Errorf("%w: %w", ErrConsistency, err)
		}
		result.Fixed = true
		result.Actions = append(result.Actions,
			fmt.Sprintf("durable override restored from transport locale %q", transportOverride))
	}

	c.cache.Clear()
	c.bus.Publish(models.EventCacheCleared, nil)
	if len(result.Actions) == 0 {
		result.Actions = append(result.Actions, "no repairs needed")
	}
	return result, nil
}

// read loads both backends, tolerating misses and treating invalid
// durable records as absent (they lose authority).
func (c *Checker) read() (*models.UserLocalePreference, string) {
	var durablePref *models.UserLocalePreference
	var pref models.UserLocalePreference
	if err := c.durable.Get(store.KeyPreference, &pref); err == nil {
		if res := validation.ValidatePreference(&pref, time.Now()); res.Valid {
			durablePref = &pref
		} else {
			c.log.Warn().Strs("errors", res.Errors).Msg("Durable preference invalid, treating as absent")
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		c.log.Warn().Err(err).Msg("Durable preference read failed during sync")
	}

	transportLocale, err := c.transport.GetString(store.KeyPreference)
	if err != nil || !validation.IsLocaleCode(transportLocale) {
		transportLocale = ""
	}
	return durablePref, transportLocale
}

// getString reads a JSON string value from the durable store.
func getString(d store.Durable, key string) (string, error) {
	var v string
	err := d.Get(key, &v)
	return v, err
}
