// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPService runs an http.Server under supervision, shutting it down
// gracefully when the supervisor's context is cancelled.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
	log             zerolog.Logger
}

// NewHTTPService wraps a configured http.Server.
func NewHTTPService(server *http.Server, shutdownTimeout time.Duration, log zerolog.Logger) *HTTPService {
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		log:             log.With().Str("service", "http").Logger(),
	}
}

// Serve implements suture.Service.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("HTTP shutdown incomplete")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *HTTPService) String() string { return "http-server" }

// MaintenanceService runs a maintenance pass at a fixed interval. The
// run function is supplied by the caller so the service stays decoupled
// from the manager wiring.
type MaintenanceService struct {
	interval time.Duration
	run      func()
	log      zerolog.Logger
}

// NewMaintenanceService creates the periodic maintenance service. A
// zero interval disables the loop entirely.
func NewMaintenanceService(interval time.Duration, run func(), log zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		interval: interval,
		run:      run,
		log:      log.With().Str("service", "maintenance").Logger(),
	}
}

// Serve implements suture.Service. Runs one pass immediately, then on
// every tick until cancelled.
func (s *MaintenanceService) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.Info().Msg("Periodic maintenance disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	s.run()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.run()
		}
	}
}

func (s *MaintenanceService) String() string { return "maintenance-loop" }
