// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

// Package preference implements the preference core and the override
// manager: saving, reading, and clearing the single current locale
// preference across the durable and transport backends, and layering
// the explicit user-choice override on top of it.
package preference

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/localekit/localekit/internal/cache"
	"github.com/localekit/localekit/internal/events"
	"github.com/localekit/localekit/internal/models"
	"github.com/localekit/localekit/internal/store"
	"github.com/localekit/localekit/internal/validation"
)

// Cache keys used by the core. The cache is shared with the other
// managers in the same context, so keys are namespaced.
const (
	cacheKeyPreference = "preference"
	cacheKeyOverride   = "override"
)

// ErrValidation wraps validation failures reported through a failed
// OperationResult.
var ErrValidation = errors.New("validation failed")

// ErrNoPreference indicates an operation that requires an existing
// current preference found none.
var ErrNoPreference = errors.New("no current preference")

// Core composes the two storage adapters, the cache, and the validation
// engine into the save/get/clear surface for the current preference.
type Core struct {
	durable       store.Durable
	transport     store.Transport
	cache         *cache.Cache
	bus           *events.Bus
	defaultLocale string
	log           zerolog.Logger
}

// NewCore wires a preference core. defaultLocale is the locale of the
// synthesized default preference when no backend holds data.
func NewCore(durable store.Durable, transport store.Transport, c *cache.Cache, bus *events.Bus, defaultLocale string, log zerolog.Logger) *Core {
	return &Core{
		durable:       durable,
		transport:     transport,
		cache:         c,
		bus:           bus,
		defaultLocale: defaultLocale,
		log:           log.With().Str("component", "preference").Logger(),
	}
}

// Save validates and normalizes pref, writes it to the durable store,
// and mirrors the locale code to the transport store. Emits
// preference_saved on success. Validation failures and storage errors
// are reported as a failed result, never thrown.
func (c *Core) Save(pref *models.UserLocalePreference) models.OperationResult {
	started := time.Now()

	if res := validation.ValidatePreference(pref, started); !res.Valid {
		return models.Fail(fmt.Errorf("%w: %v", ErrValidation, res.Errors), started)
	}

	saved := pref.Clone()
	saved.Normalize(started)

	if err := c.durable.Set(store.KeyPreference, saved); err != nil {
		return models.Fail(err, started)
	}
	if err := c.transport.SetString(store.KeyPreference, saved.Locale); err != nil {
		// Durable write landed; the transport mirror is repairable by the
		// sync checker, so report failure without rolling back. The cache
		// must follow the durable store or reads would serve the old value
		// until the TTL expires.
		c.cache.Set(cacheKeyPreference, saved.Clone())
		c.log.Warn().Err(err).Msg("Transport mirror write failed after durable save")
		return models.Fail(err, started)
	}

	c.cache.Set(cacheKeyPreference, saved.Clone())
	c.bus.Publish(models.EventPreferenceSaved, map[string]any{
		"locale": saved.Locale,
		"source": string(saved.Source),
	})
	return models.OK(saved, started)
}

// Get returns the current preference, never an error. Read path: cache,
// then durable store, then transport store (synthesizing a low-confidence
// preference and re-writing the durable store so later reads hit the
// primary), then the configured default.
func (c *Core) Get() *models.UserLocalePreference {
	if v, ok := c.cache.Get(cacheKeyPreference); ok {
		if pref, ok := v.(*models.UserLocalePreference); ok {
			return pref.Clone()
		}
	}

	var pref models.UserLocalePreference
	err := c.durable.Get(store.KeyPreference, &pref)
	if err == nil {
		if res := validation.ValidatePreference(&pref, time.Now()); res.Valid {
			c.cache.Set(cacheKeyPreference, pref.Clone())
			return &pref
		}
		c.log.Warn().Str("locale", pref.Locale).Msg("Stored preference failed validation, falling through")
	} else if !errors.Is(err, store.ErrNotFound) {
		c.log.Warn().Err(err).Msg("Durable preference read failed, falling through")
	}

	if locale, terr := c.transport.GetString(store.KeyPreference); terr == nil && validation.IsLocaleCode(locale) {
		synth := c.synthesizeFromTransport(locale)
		// Re-write the primary so subsequent reads hit it.
		if serr := c.durable.Set(store.KeyPreference, synth); serr != nil {
			c.log.Warn().Err(serr).Msg("Durable re-write from transport fallback failed")
		}
		c.cache.Set(cacheKeyPreference, synth.Clone())
		return synth
	}

	return c.defaultPreference()
}

// Clear removes the preference from both backends and drops the cache.
// A backend error is surfaced but not retried.
func (c *Core) Clear() models.OperationResult {
	started := time.Now()

	derr := c.durable.Delete(store.KeyPreference)
	terr := c.transport.Delete(store.KeyPreference)
	c.cache.Clear()

	if derr != nil {
		return models.Fail(derr, started)
	}
	if terr != nil {
		return models.Fail(terr, started)
	}

	c.bus.Publish(models.EventPreferenceCleared, nil)
	return models.OK(nil, started)
}

// UpdateConfidence rewrites the current preference with a clamped
// confidence value. Fails if no current preference is stored.
func (c *Core) UpdateConfidence(value float64) models.OperationResult {
	started := time.Now()

	var pref models.UserLocalePreference
	if err := c.durable.Get(store.KeyPreference, &pref); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Fail(ErrNoPreference, started)
		}
		return models.Fail(err, started)
	}

	pref.Confidence = value
	pref.Normalize(started)
	pref.Timestamp = started.UnixMilli()
	return c.Save(&pref)
}

// WarmUp loads the current preference into the cache so the first
// collaborator read is a hit.
func (c *Core) WarmUp() {
	c.Get()
}

// DefaultLocale returns the configured default locale.
func (c *Core) DefaultLocale() string {
	return c.defaultLocale
}

// synthesizeFromTransport builds the low-confidence preference used when
// only the transport store holds a locale.
func (c *Core) synthesizeFromTransport(locale string) *models.UserLocalePreference {
	return &models.UserLocalePreference{
		Locale:     locale,
		Source:     models.SourceBrowser,
		Confidence: models.ConfidenceTransportFallback,
		Timestamp:  time.Now().UnixMilli(),
		Metadata:   map[string]string{},
	}
}

// defaultPreference builds the synthesized default returned when no
// backend holds usable data. It is not persisted: a fresh environment
// stays observably fresh.
func (c *Core) defaultPreference() *models.UserLocalePreference {
	return &models.UserLocalePreference{
		Locale:     c.defaultLocale,
		Source:     models.SourceDefault,
		Confidence: models.ConfidenceDefault,
		Timestamp:  time.Now().UnixMilli(),
		Metadata:   map[string]string{},
	}
}
