// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package events

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/localekit/localekit/internal/models"
)

func TestPublishDeliversToTypedAndWildcard(t *testing.T) {
	bus := NewBus(10, zerolog.Nop())

	var typed, wild, other int
	bus.AddEventListener(models.EventPreferenceSaved, func(models.Event) error {
		typed++
		return nil
	})
	bus.AddEventListener(Wildcard, func(models.Event) error {
		wild++
		return nil
	})
	bus.AddEventListener(models.EventOverrideSet, func(models.Event) error {
		other++
		return nil
	})

	evt := bus.Publish(models.EventPreferenceSaved, map[string]any{"locale": "en"})

	if typed != 1 {
		t.Errorf("typed listener called %d times, want 1", typed)
	}
	if wild != 1 {
		t.Errorf("wildcard listener called %d times, want 1", wild)
	}
	if other != 0 {
		t.Errorf("unrelated listener called %d times, want 0", other)
	}
	if evt.ID == "" || evt.Timestamp == 0 {
		t.Error("published event missing ID or timestamp")
	}
}

func TestListenerFailureIsolation(t *testing.T) {
	bus := NewBus(10, zerolog.Nop())

	var reached bool
	bus.AddEventListener(models.EventPreferenceSaved, func(models.Event) error {
		return errors.New("listener broke")
	})
	bus.AddEventListener(models.EventPreferenceSaved, func(models.Event) error {
		panic("listener panicked")
	})
	bus.AddEventListener(Wildcard, func(models.Event) error {
		reached = true
		return nil
	})

	bus.Publish(models.EventPreferenceSaved, nil)

	if !reached {
		t.Error("failing listeners prevented delivery to the remaining listener")
	}
}

func TestRemoveEventListener(t *testing.T) {
	bus := NewBus(10, zerolog.Nop())

	var calls int
	sub := bus.AddEventListener(models.EventCacheCleared, func(models.Event) error {
		calls++
		return nil
	})
	bus.Publish(models.EventCacheCleared, nil)
	bus.RemoveEventListener(sub)
	bus.Publish(models.EventCacheCleared, nil)

	if calls != 1 {
		t.Errorf("listener called %d times, want 1", calls)
	}
	if n := bus.ListenerCount(models.EventCacheCleared); n != 0 {
		t.Errorf("ListenerCount = %d after removal, want 0", n)
	}

	// Removing twice is a no-op.
	bus.RemoveEventListener(sub)
}

func TestHistoryCapDropsOldest(t *testing.T) {
	bus := NewBus(3, zerolog.Nop())

	bus.Publish(models.EventPreferenceSaved, map[string]any{"n": 1})
	bus.Publish(models.EventPreferenceSaved, map[string]any{"n": 2})
	bus.Publish(models.EventPreferenceSaved, map[string]any{"n": 3})
	bus.Publish(models.EventPreferenceSaved, map[string]any{"n": 4})

	hist := bus.History()
	if len(hist) != 3 {
		t.Fatalf("history length = %d, want 3", len(hist))
	}
	if hist[0].Payload["n"] != 2 {
		t.Errorf("oldest retained event payload = %v, want n=2", hist[0].Payload)
	}
	if hist[2].Payload["n"] != 4 {
		t.Errorf("newest retained event payload = %v, want n=4", hist[2].Payload)
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	bus := NewBus(10, zerolog.Nop())
	bus.Publish(models.EventPreferenceSaved, nil)

	hist := bus.History()
	hist[0].Type = "mutated"

	if bus.History()[0].Type != models.EventPreferenceSaved {
		t.Error("History should return a copy, not the internal slice")
	}
}
