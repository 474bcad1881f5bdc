// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

// Package events provides the synchronous in-process event bus that
// notifies collaborators (UI, middleware) of preference, cache, and
// history changes, plus a watermill-based forwarder for out-of-process
// consumers.
package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/localekit/localekit/internal/metrics"
	"github.com/localekit/localekit/internal/models"
)

// DefaultHistoryCap bounds the retained event history for debugging and
// analytics; oldest entries are dropped first.
const DefaultHistoryCap = 100

// Wildcard subscribes a listener to every event type.
const Wildcard models.EventType = "*"

// Listener receives one event. A returned error (or panic) is caught and
// logged; it never prevents delivery to the remaining listeners.
type Listener func(models.Event) error

// Subscription identifies one registered listener for removal.
type Subscription struct {
	ID   string
	Type models.EventType
}

// Bus is a synchronous publish/subscribe bus. Construct one per
// application context; there is no package-level registry.
type Bus struct {
	mu        sync.RWMutex
	listeners map[models.EventType]map[string]Listener
	history   []models.Event
	cap       int
	log       zerolog.Logger
}

// NewBus creates a bus with the given history capacity. A non-positive
// cap falls back to DefaultHistoryCap.
func NewBus(historyCap int, log zerolog.Logger) *Bus {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &Bus{
		listeners: make(map[models.EventType]map[string]Listener),
		cap:       historyCap,
		log:       log,
	}
}

// AddEventListener registers fn for events of the given type. Use
// Wildcard to receive everything. The returned subscription removes the
// listener later.
func (b *Bus) AddEventListener(t models.EventType, fn Listener) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	if b.listeners[t] == nil {
		b.listeners[t] = make(map[string]Listener)
	}
	b.listeners[t][id] = fn
	return Subscription{ID: id, Type: t}
}

// RemoveEventListener deregisters a previously added listener. Removing
// an unknown subscription is a no-op.
func (b *Bus) RemoveEventListener(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners[sub.Type], sub.ID)
}

// Publish builds an event and delivers it synchronously to the typed
// listeners, then the wildcard listeners. Listener failures are isolated
// per listener.
func (b *Bus) Publish(t models.EventType, payload map[string]any) models.Event {
	evt := models.Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}

	b.mu.Lock()
	b.history = append(b.history, evt)
	if len(b.history) > b.cap {
		b.history = b.history[len(b.history)-b.cap:]
	}
	targets := make([]Listener, 0, len(b.listeners[t])+len(b.listeners[Wildcard]))
	for _, fn := range b.listeners[t] {
		targets = append(targets, fn)
	}
	for _, fn := range b.listeners[Wildcard] {
		targets = append(targets, fn)
	}
	b.mu.Unlock()

	metrics.EventsPublished.WithLabelValues(string(t)).Inc()

	for _, fn := range targets {
		b.deliver(fn, evt)
	}
	return evt
}

// deliver invokes one listener, absorbing errors and panics.
func (b *Bus) deliver(fn Listener, evt models.Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ListenerFailures.Inc()
			b.log.Error().
				Str("event", string(evt.Type)).
				Str("panic", fmt.Sprint(r)).
				Msg("Event listener panicked")
		}
	}()
	if err := fn(evt); err != nil {
		metrics.ListenerFailures.Inc()
		b.log.Warn().
			Str("event", string(evt.Type)).
			Err(err).
			Msg("Event listener failed")
	}
}

// History returns a copy of the retained events, oldest first.
func (b *Bus) History() []models.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.Event, len(b.history))
	copy(out, b.history)
	return out
}

// ListenerCount returns the number of registered listeners for t.
func (b *Bus) ListenerCount(t models.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[t])
}
