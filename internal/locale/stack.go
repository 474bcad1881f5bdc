// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

// Package locale wires the subsystem together behind one explicit
// context object. Nothing in the subsystem hangs off package-level
// singletons: a Stack is constructed once per application context and
// handed to every entry point, so tests can run independent instances
// side by side (e.g. to simulate multiple tabs).
package locale

import (
	"github.com/rs/zerolog"

	"github.com/localekit/localekit/internal/analytics"
	"github.com/localekit/localekit/internal/cache"
	"github.com/localekit/localekit/internal/consistency"
	"github.com/localekit/localekit/internal/detect"
	"github.com/localekit/localekit/internal/events"
	"github.com/localekit/localekit/internal/history"
	"github.com/localekit/localekit/internal/maintenance"
	"github.com/localekit/localekit/internal/preference"
	"github.com/localekit/localekit/internal/store"
)

// Options tunes a Stack.
type Options struct {
	DefaultLocale    string
	SupportedLocales []string
	HistoryMax       int
	UserAgent        string
}

// Stack holds the long-lived pieces shared by every request in one
// application context: the durable store, the process-local cache, the
// event bus, and the detector. The transport store is request-scoped
// and bound per call via Bind.
type Stack struct {
	Durable  store.Durable
	Cache    *cache.Cache
	Bus      *events.Bus
	Detector *detect.Detector
	opts     Options
	log      zerolog.Logger
}

// NewStack builds a stack over the given durable store and cache.
func NewStack(durable store.Durable, c *cache.Cache, bus *events.Bus, opts Options, log zerolog.Logger) *Stack {
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = "en"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "localekit"
	}
	return &Stack{
		Durable:  durable,
		Cache:    c,
		Bus:      bus,
		Detector: detect.NewDetector(opts.SupportedLocales, opts.DefaultLocale),
		opts:     opts,
		log:      log,
	}
}

// Context is the full manager set bound to one transport store (one
// request/response pair on the server, or a plain in-memory transport in
// tests). Managers are cheap structs over the shared stack state.
type Context struct {
	Preference  *preference.Core
	Override    *preference.OverrideManager
	History     *history.Manager
	Consistency *consistency.Checker
	Maintenance *maintenance.Manager
	Analytics   *analytics.Engine
}

// Bind constructs the manager set against one transport store.
func (s *Stack) Bind(transport store.Transport) *Context {
	core := preference.NewCore(s.Durable, transport, s.Cache, s.Bus, s.opts.DefaultLocale, s.log)
	override := preference.NewOverrideManager(core, s.log)
	hist := history.NewManager(s.Durable, s.Bus, s.opts.HistoryMax, s.log)
	checker := consistency.NewChecker(s.Durable, transport, s.Cache, s.Bus, s.log)
	maint := maintenance.NewManager(s.Durable, transport, s.Cache, s.Bus, hist, checker, s.opts.UserAgent, s.log)
	engine := analytics.NewEngine(core, override, hist, checker, s.Cache, s.Durable, s.log)

	return &Context{
		Preference:  core,
		Override:    override,
		History:     hist,
		Consistency: checker,
		Maintenance: maint,
		Analytics:   engine,
	}
}
