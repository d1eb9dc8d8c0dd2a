// Package common defines sentinel errors and small helpers shared by the
// client packages. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// ErrorNotFound is returned when an entity id is absent from the local cache.
	ErrorNotFound = errors.New("not found")

	// ErrOffline is returned by operations that require connectivity.
	ErrOffline = errors.New("offline")

	// ErrValidation wraps domain validation failures of create/update payloads.
	ErrValidation = errors.New("validation error")

	// ErrLocked is returned when encrypted local data is accessed before login.
	ErrLocked = errors.New("local store is locked")

	// ErrLocalDataNotAvailable is returned by offline login before any
	// successful online login on this device.
	ErrLocalDataNotAvailable = errors.New("local data unavailable")
)
