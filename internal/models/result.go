// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package models

import "time"

// OperationResult is the uniform outcome of every storage-touching
// operation. Backend exceptions never escape past the adapter boundary;
// they are converted to a failed result carrying the error text.
type OperationResult struct {
	Success        bool   `json:"success"`
	Data           any    `json:"data,omitempty"`
	Error          string `json:"error,omitempty"`
	Timestamp      int64  `json:"timestamp"`
	ResponseTimeMS int64  `json:"responseTime"`
}

// OK builds a successful result stamped with the current time.
func OK(data any, started time.Time) OperationResult {
	now := time.Now()
	return OperationResult{
		Success:        true,
		Data:           data,
		Timestamp:      now.UnixMilli(),
		ResponseTimeMS: now.Sub(started).Milliseconds(),
	}
}

// Fail builds a failed result from err, stamped with the current time.
func Fail(err error, started time.Time) OperationResult {
	now := time.Now()
	res := OperationResult{
		Success:        false,
		Timestamp:      now.UnixMilli(),
		ResponseTimeMS: now.Sub(started).Milliseconds(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// ValidationResult is the structured outcome of the pure validators.
// Validators report, they never throw: a malformed input produces
// Valid=false with populated Errors, not a panic or error return.
type ValidationResult struct {
	Valid    bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// AddError appends an error and marks the result invalid.
func (r *ValidationResult) AddError(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}

// AddWarning appends a non-fatal warning.
func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
