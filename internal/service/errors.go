package service

import "errors"

// Common errors for engine operations.
var (
	// ErrGroupNotFound is returned for queries against a group the
	// engine has never seen.
	ErrGroupNotFound = errors.New("group not found")

	// ErrNoEvent is returned for event queries when the group has no
	// event configured.
	ErrNoEvent = errors.New("no event configured")

	// ErrEventAlreadyActive rejects creating an event while the group's
	// current event is still running.
	ErrEventAlreadyActive = errors.New("event already active")

	// ErrInvalidEventConfig rejects event creation with a bad timeframe
	// or non-positive reward amounts.
	ErrInvalidEventConfig = errors.New("invalid event config")
)
