// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/localekit/localekit/internal/logging"
	"github.com/localekit/localekit/internal/metrics"
)

// BadgerStore implements Durable on top of BadgerDB. Keys are namespaced
// per session context so multiple contexts can share one database.
//
// A circuit breaker wraps every transaction: a backend that keeps failing
// is reported as ErrStorageUnavailable instead of being hammered, matching
// the "storage disabled" degradation the adapters must absorb.
type BadgerStore struct {
	db        *badger.DB
	namespace string
	cb        *gobreaker.CircuitBreaker[struct{}]
}

// NewBadgerStore creates a durable store over db. namespace scopes all
// keys (e.g. a session or user identifier); it may be empty for a
// single-context deployment.
func NewBadgerStore(db *badger.DB, namespace string) *BadgerStore {
	cbName := "durable-store"
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Durable store circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// Misses and malformed values are data conditions, not
			// backend failures; they must not trip the breaker.
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrSerialization)
		},
	})

	return &BadgerStore{db: db, namespace: namespace, cb: cb}
}

func (s *BadgerStore) fullKey(key string) []byte {
	if s.namespace == "" {
		return []byte(key)
	}
	return []byte(s.namespace + ":" + key)
}

// Get implements Durable.
func (s *BadgerStore) Get(key string, out any) error {
	started := time.Now()
	_, err := s.cb.Execute(func() (struct{}, error) {
		return struct{}{}, s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(s.fullKey(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("%w: get %s: %w", ErrStorageUnavailable, key, err)
			}
			return item.Value(func(val []byte) error {
				if err := json.Unmarshal(val, out); err != nil {
					return fmt.Errorf("%w: key %s: %w", ErrSerialization, key, err)
				}
				return nil
			})
		})
	})
	metrics.ObserveStorageOp("durable", "get", started, err != nil && !errors.Is(err, ErrNotFound))
	return mapBreakerErr(err)
}

// Set implements Durable.
func (s *BadgerStore) Set(key string, value any) error {
	started := time.Now()
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: key %s: %w", ErrSerialization, key, err)
	}

	_, err = s.cb.Execute(func() (struct{}, error) {
		return struct{}{}, s.db.Update(func(txn *badger.Txn) error {
			if err := txn.Set(s.fullKey(key), data); err != nil {
				if errors.Is(err, badger.ErrTxnTooBig) {
					return fmt.Errorf("%w: key %s: %w", ErrQuotaExceeded, key, err)
				}
				return fmt.Errorf("%w: set %s: %w", ErrStorageUnavailable, key, err)
			}
			return nil
		})
	})
	metrics.ObserveStorageOp("durable", "set", started, err != nil)
	return mapBreakerErr(err)
}

// Delete implements Durable.
func (s *BadgerStore) Delete(key string) error {
	started := time.Now()
	_, err := s.cb.Execute(func() (struct{}, error) {
		return struct{}{}, s.db.Update(func(txn *badger.Txn) error {
			if err := txn.Delete(s.fullKey(key)); err != nil {
				return fmt.Errorf("%w: delete %s: %w", ErrStorageUnavailable, key, err)
			}
			return nil
		})
	})
	metrics.ObserveStorageOp("durable", "delete", started, err != nil)
	return mapBreakerErr(err)
}

// Keys implements Durable. The scan is bounded by the number of stored
// keys in the namespace, not by user input.
func (s *BadgerStore) Keys(prefix string) ([]string, error) {
	started := time.Now()
	var keys []string
	scanPrefix := s.fullKey(prefix)
	strip := len(scanPrefix) - len(prefix)

	_, err := s.cb.Execute(func() (struct{}, error) {
		return struct{}{}, s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()
			for it.Seek(scanPrefix); it.ValidForPrefix(scanPrefix); it.Next() {
				k := it.Item().Key()
				keys = append(keys, string(k[strip:]))
			}
			return nil
		})
	})
	metrics.ObserveStorageOp("durable", "keys", started, err != nil)
	if err != nil {
		return nil, mapBreakerErr(err)
	}
	return keys, nil
}

// mapBreakerErr converts gobreaker rejection into the adapter's
// unavailable sentinel so callers see a single error vocabulary.
func mapBreakerErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit breaker open: %w", ErrStorageUnavailable, err)
	}
	return err
}
