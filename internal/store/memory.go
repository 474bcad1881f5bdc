// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// MemoryDurable is an in-memory Durable implementation. It backs tests
// and single-process deployments that do not need persistence. Values
// round-trip through JSON so serialization behavior matches BadgerStore.
type MemoryDurable struct {
	mu       sync.RWMutex
	data     map[string][]byte
	maxBytes int
	failing  bool
}

// NewMemoryDurable creates an empty in-memory durable store.
func NewMemoryDurable() *MemoryDurable {
	return &MemoryDurable{data: make(map[string][]byte)}
}

// SetQuota caps the total stored bytes; writes beyond the cap fail with
// ErrQuotaExceeded. Zero means unlimited.
func (s *MemoryDurable) SetQuota(maxBytes int) {
	s.mu.Lock()
	s.maxBytes = maxBytes
	s.mu.Unlock()
}

// SetFailing toggles simulated backend unavailability for tests.
func (s *MemoryDurable) SetFailing(failing bool) {
	s.mu.Lock()
	s.failing = failing
	s.mu.Unlock()
}

// Get implements Durable.
func (s *MemoryDurable) Get(key string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failing {
		return fmt.Errorf("%w: memory store disabled", ErrStorageUnavailable)
	}
	raw, ok := s.data[key]
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: key %s: %w", ErrSerialization, key, err)
	}
	return nil
}

// Set implements Durable.
func (s *MemoryDurable) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: key %s: %w", ErrSerialization, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return fmt.Errorf("%w: memory store disabled", ErrStorageUnavailable)
	}
	if s.maxBytes > 0 {
		total := len(raw)
		for k, v := range s.data {
			if k == key {
				continue
			}
			total += len(v)
		}
		if total > s.maxBytes {
			return fmt.Errorf("%w: key %s", ErrQuotaExceeded, key)
		}
	}
	s.data[key] = raw
	return nil
}

// Delete implements Durable.
func (s *MemoryDurable) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return fmt.Errorf("%w: memory store disabled", ErrStorageUnavailable)
	}
	delete(s.data, key)
	return nil
}

// Keys implements Durable.
func (s *MemoryDurable) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failing {
		return nil, fmt.Errorf("%w: memory store disabled", ErrStorageUnavailable)
	}
	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// SetRaw stores pre-serialized bytes, bypassing marshaling. Tests use it
// to plant malformed JSON for serialization-failure paths.
func (s *MemoryDurable) SetRaw(key string, raw []byte) {
	s.mu.Lock()
	s.data[key] = append([]byte(nil), raw...)
	s.mu.Unlock()
}

// transportValueLimit mirrors the 4 KB cookie-class value ceiling of the
// transport-visible store.
const transportValueLimit = 4096

// MemoryTransport is an in-memory Transport implementation used by tests
// and as the per-request staging area behind the cookie adapter.
type MemoryTransport struct {
	mu      sync.RWMutex
	data    map[string]string
	failing bool
}

// NewMemoryTransport creates an empty in-memory transport store.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{data: make(map[string]string)}
}

// SetFailing toggles simulated backend unavailability for tests.
func (s *MemoryTransport) SetFailing(failing bool) {
	s.mu.Lock()
	s.failing = failing
	s.mu.Unlock()
}

// GetString implements Transport.
func (s *MemoryTransport) GetString(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failing {
		return "", fmt.Errorf("%w: transport store disabled", ErrStorageUnavailable)
	}
	v, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// SetString implements Transport.
func (s *MemoryTransport) SetString(key, value string) error {
	if len(value) > transportValueLimit {
		return fmt.Errorf("%w: key %s: value %d bytes", ErrQuotaExceeded, key, len(value))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return fmt.Errorf("%w: transport store disabled", ErrStorageUnavailable)
	}
	s.data[key] = value
	return nil
}

// Delete implements Transport.
func (s *MemoryTransport) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return fmt.Errorf("%w: transport store disabled", ErrStorageUnavailable)
	}
	delete(s.data, key)
	return nil
}
