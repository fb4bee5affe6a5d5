// Package errors provides error handling for Vantage.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for user-facing messages
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrSourceExhausted) {
//	    // every source failed or was skipped
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll

	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
)

// Sentinel errors for the data-access core.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrUnknownDataType indicates a fetch for a data type with no
	// registered sources and no direct-call mapping
	ErrUnknownDataType = New("unknown data type")

	// ErrNoSources indicates no sources are registered for a data type
	ErrNoSources = New("no sources registered")

	// ErrCircuitOpen indicates a source was skipped because its circuit
	// breaker is open
	ErrCircuitOpen = New("circuit open")

	// ErrRateLimited indicates a source was skipped because its rate
	// limiter denied the call
	ErrRateLimited = New("rate limited")

	// ErrSourceExhausted indicates every candidate source failed or was
	// skipped during a fetch
	ErrSourceExhausted = New("all sources exhausted")

	// ErrInvalidData indicates a source returned data that failed
	// validation
	ErrInvalidData = New("invalid data")

	// ErrSourceFailure indicates a single source attempt failed
	ErrSourceFailure = New("source failure")
)

// IsSourceFailure checks if an error is or wraps ErrSourceFailure.
func IsSourceFailure(err error) bool {
	return Is(err, ErrSourceFailure)
}

// IsExhausted checks if an error is or wraps ErrSourceExhausted.
func IsExhausted(err error) bool {
	return Is(err, ErrSourceExhausted)
}
