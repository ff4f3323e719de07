// Package sanitizer is the semantic firewall: every text field that will
// cross into a validator prompt or into storage is normalized and screened
// here first. It never fails open — if the pattern table cannot be loaded,
// every call is refused.
package sanitizer

import (
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/text/unicode/norm"
)

// ErrTooLong is returned when input exceeds the caller-supplied max length.
var ErrTooLong = errors.New("sanitizer: input exceeds maximum length")

// ErrPolicyUnavailable is returned when the pattern table failed to load;
// the sanitizer refuses all input rather than letting anything through.
var ErrPolicyUnavailable = errors.New("sanitizer: pattern table unavailable")

// InjectionError is raised when input matches a suspicious pattern. The
// pattern ID is carried internally only — callers outside the trust
// boundary must use Public() to get the generic external message.
type InjectionError struct {
	PatternID string
	Field     string
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("sanitizer: input rejected (field=%s, pattern=%s)", e.Field, e.PatternID)
}

// Public returns the externally-visible error message. Pattern identifiers
// and matched text are never returned to untrusted callers.
func (e *InjectionError) Public() string { return "input rejected" }

// zeroWidth matches characters that are invisible but can smuggle
// structure into what looks like innocuous text.
var zeroWidth = regexp.MustCompile("[​‌‍⁠﻿]")

// Firewall screens and normalizes text before it reaches a validator prompt
// or storage. A Firewall is safe for concurrent use; it holds no mutable
// state beyond the immutable pattern table it was constructed with.
type Firewall struct {
	table *PatternTable
}

// New constructs a Firewall from a loaded pattern table. Returns
// ErrPolicyUnavailable if table is nil or carries no patterns, since an
// empty table is indistinguishable from a load failure and the firewall
// must not silently allow everything through.
func New(table *PatternTable) (*Firewall, error) {
	if table == nil || len(table.patterns) == 0 {
		return nil, ErrPolicyUnavailable
	}
	return &Firewall{table: table}, nil
}

// Version reports the active pattern table version, so observability
// events and tests can pin behavior to a specific table revision.
func (f *Firewall) Version() string { return f.table.Version }

// Sanitize normalizes raw and screens it against the pattern table.
// Normalization order is fixed: NFKC, then zero-width stripping, then
// pattern matching — changing this order would change what the patterns
// actually see.
func (f *Firewall) Sanitize(field string, raw string, maxLen int) (string, error) {
	if len(raw) > maxLen {
		return "", ErrTooLong
	}

	normalized := norm.NFKC.String(raw)
	normalized = zeroWidth.ReplaceAllString(normalized, "")

	if len(normalized) > maxLen {
		return "", ErrTooLong
	}

	if id, ok := f.table.FirstMatch(normalized); ok {
		return "", &InjectionError{PatternID: id, Field: field}
	}

	return normalized, nil
}
