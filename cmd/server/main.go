// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

// Command server runs the Localekit HTTP server: a BadgerDB-backed
// locale preference store with cookie mirroring, detection history,
// and periodic maintenance, supervised by a suture tree.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/localekit/localekit/internal/api"
	"github.com/localekit/localekit/internal/cache"
	"github.com/localekit/localekit/internal/config"
	"github.com/localekit/localekit/internal/events"
	"github.com/localekit/localekit/internal/locale"
	"github.com/localekit/localekit/internal/logging"
	"github.com/localekit/localekit/internal/maintenance"
	"github.com/localekit/localekit/internal/store"
	"github.com/localekit/localekit/internal/supervisor"
)

const busHistoryCap = 100

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Timestamp: true,
	})
	log := logging.Logger()

	db, err := openDB(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open durable store: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Durable store close failed")
		}
	}()

	durable := store.NewBadgerStore(db, "localekit")
	c := cache.New(cfg.Cache.TTL)
	bus := events.NewBus(busHistoryCap, log)

	forwarder := events.NewForwarder(bus, log)
	defer func() {
		if cerr := forwarder.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Event forwarder close failed")
		}
	}()

	stack := locale.NewStack(durable, c, bus, locale.Options{
		DefaultLocale:    cfg.Locale.Default,
		SupportedLocales: cfg.Locale.Supported,
		HistoryMax:       cfg.History.MaxRecords,
		UserAgent:        "localekit-server",
	}, log)

	// Prime the cache so the first request read is a hit.
	stack.Bind(store.NewMemoryTransport()).Preference.WarmUp()

	handler := api.NewHandler(stack, cfg.Server.CookieMaxAge, cfg.Server.CookieSecure)
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)

	// Background maintenance has no request cookies to work with, so it
	// binds an in-memory transport; transport-side cleanup happens on
	// the request paths.
	maintOpts := maintenance.Options{
		HistoryMaxAge: cfg.History.MaxAge,
		MaxBackups:    cfg.Maintenance.MaxBackups,
	}
	tree.AddStorageService(supervisor.NewMaintenanceService(cfg.Maintenance.Interval, func() {
		ctx := stack.Bind(store.NewMemoryTransport())
		report := ctx.Maintenance.PerformMaintenance(maintOpts)
		log.Info().Interface("report", report).Msg("Maintenance pass finished")
	}, log))
	tree.AddAPIService(supervisor.NewHTTPService(httpServer, treeCfg.ShutdownTimeout, log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("addr", httpServer.Addr).
		Str("default_locale", cfg.Locale.Default).
		Strs("supported_locales", cfg.Locale.Supported).
		Msg("Localekit starting")

	if err := tree.Serve(ctx); err != nil && err != context.Canceled {
		return err
	}
	log.Info().Msg("Localekit stopped")
	return nil
}

// openDB opens BadgerDB at path, or in memory when path is empty.
func openDB(path string) (*badger.DB, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)
	return badger.Open(opts)
}
