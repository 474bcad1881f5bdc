// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package store

import (
	"fmt"
	"net/http"
	"time"
)

// CookieTransport implements Transport over HTTP cookies for one
// request/response pair. Reads come from the inbound request; writes go
// to the response so the client carries them on every subsequent request.
// This is the server-side rendition of the transport-visible store: small,
// automatically attached, and readable before any client code runs.
type CookieTransport struct {
	r      *http.Request
	w      http.ResponseWriter
	maxAge time.Duration
	secure bool
}

// NewCookieTransport binds a transport store to one request/response
// pair. maxAge controls cookie lifetime; secure marks cookies
// HTTPS-only.
func NewCookieTransport(w http.ResponseWriter, r *http.Request, maxAge time.Duration, secure bool) *CookieTransport {
	return &CookieTransport{r: r, w: w, maxAge: maxAge, secure: secure}
}

// GetString implements Transport. Writes within the same request shadow
// the inbound cookie, so read-after-write behaves like a plain store.
func (s *CookieTransport) GetString(key string) (string, error) {
	// A Set-Cookie issued earlier in this request wins over the inbound value.
	for _, c := range s.w.Header().Values("Set-Cookie") {
		if name, value, expired, ok := parseSetCookie(c); ok && name == key {
			if expired {
				return "", ErrNotFound
			}
			return value, nil
		}
	}
	c, err := s.r.Cookie(key)
	if err != nil {
		return "", ErrNotFound
	}
	if c.Value == "" {
		return "", ErrNotFound
	}
	return c.Value, nil
}

// SetString implements Transport.
func (s *CookieTransport) SetString(key, value string) error {
	if len(value) > transportValueLimit {
		return fmt.Errorf("%w: key %s: value %d bytes", ErrQuotaExceeded, key, len(value))
	}
	cookie := &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.maxAge.Seconds()),
		HttpOnly: false, // client code must be able to read the locale
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if err := cookie.Valid(); err != nil {
		return fmt.Errorf("%w: key %s: %w", ErrSerialization, key, err)
	}
	s.removePending(key)
	http.SetCookie(s.w, cookie)
	return nil
}

// Delete implements Transport by issuing an expired cookie.
func (s *CookieTransport) Delete(key string) error {
	s.removePending(key)
	http.SetCookie(s.w, &http.Cookie{
		Name:     key,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// removePending drops any Set-Cookie header already queued for key so a
// later write within the same request replaces it instead of stacking.
func (s *CookieTransport) removePending(key string) {
	existing := s.w.Header().Values("Set-Cookie")
	if len(existing) == 0 {
		return
	}
	s.w.Header().Del("Set-Cookie")
	for _, c := range existing {
		if name, _, _, ok := parseSetCookie(c); ok && name == key {
			continue
		}
		s.w.Header().Add("Set-Cookie", c)
	}
}

// parseSetCookie extracts name, value, and whether the header expires the
// cookie (Max-Age<=0) from a raw Set-Cookie header line.
func parseSetCookie(raw string) (name, value string, expired, ok bool) {
	parsed, err := http.ParseSetCookie(raw)
	if err != nil {
		return "", "", false, false
	}
	return parsed.Name, parsed.Value, parsed.MaxAge < 0, true
}
