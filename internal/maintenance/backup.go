// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package maintenance

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/localekit/localekit/internal/models"
	"github.com/localekit/localekit/internal/store"
)

// ErrBackupNotFound indicates the requested backup key does not exist.
var ErrBackupNotFound = errors.New("backup not found")

// CreateBackup stores a full export envelope under a timestamped key
// (locale_backup_<epoch-ms>) and returns the key.
func (m *Manager) CreateBackup() (string, models.OperationResult) {
	started := time.Now()

	env, err := m.ExportData()
	if err != nil {
		return "", models.Fail(err, started)
	}

	key := store.BackupKeyPrefix + strconv.FormatInt(started.UnixMilli(), 10)
	if err := m.durable.Set(key, env); err != nil {
		return "", models.Fail(err, started)
	}

	m.log.Info().Str("key", key).Msg("Backup created")
	return key, models.OK(key, started)
}

// RestoreBackup loads the envelope stored under key and re-runs the
// import path on it.
func (m *Manager) RestoreBackup(key string) (ImportReport, error) {
	var env models.BackupEnvelope
	if err := m.durable.Get(key, &env); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ImportReport{}, fmt.Errorf("%w: %s", ErrBackupNotFound, key)
		}
		return ImportReport{}, err
	}
	return m.ImportData(&env)
}

// ListBackups scans the durable store for backup keys and returns them
// newest first, sorted by the timestamp embedded in the key. The scan
// is bounded by the number of stored keys.
func (m *Manager) ListBackups() ([]models.BackupInfo, error) {
	keys, err := m.durable.Keys(store.BackupKeyPrefix)
	if err != nil {
		return nil, err
	}

	backups := make([]models.BackupInfo, 0, len(keys))
	for _, key := range keys {
		ts, perr := strconv.ParseInt(strings.TrimPrefix(key, store.BackupKeyPrefix), 10, 64)
		if perr != nil {
			m.log.Warn().Str("key", key).Msg("Skipping backup key without embedded timestamp")
			continue
		}
		info := models.BackupInfo{Key: key, Timestamp: ts}
		var env models.BackupEnvelope
		if err := m.durable.Get(key, &env); err == nil {
			info.Version = env.Version
			info.HasData = env.Preference != nil || env.Override != "" || env.History != nil
		}
		backups = append(backups, info)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp > backups[j].Timestamp
	})
	return backups, nil
}

// DeleteBackup removes one backup by key.
func (m *Manager) DeleteBackup(key string) error {
	if !strings.HasPrefix(key, store.BackupKeyPrefix) {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, key)
	}
	return m.durable.Delete(key)
}

// CleanupOldBackups deletes all but the newest maxBackups backups and
// returns the number removed. maxBackups <= 0 selects the default cap.
func (m *Manager) CleanupOldBackups(maxBackups int) (int, error) {
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}

	backups, err := m.ListBackups()
	if err != nil {
		return 0, err
	}
	if len(backups) <= maxBackups {
		return 0, nil
	}

	deleted := 0
	for _, b := range backups[maxBackups:] {
		if err := m.durable.Delete(b.Key); err != nil {
			return deleted, err
		}
		deleted++
	}
	m.log.Info().Int("deleted", deleted).Msg("Old backups removed")
	return deleted, nil
}
