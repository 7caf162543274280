package store

import "errors"

var (
	// ErrRecordNotFound is returned when a record does not exist.
	ErrRecordNotFound = errors.New("record not found")
	// ErrTreeNotFound is returned when a link tree does not exist.
	ErrTreeNotFound = errors.New("link tree not found")
	// ErrEntryNotFound is returned when a tree has no matching entry.
	ErrEntryNotFound = errors.New("link tree entry not found")
	// ErrUnknownDriver is returned for an unsupported store driver.
	ErrUnknownDriver = errors.New("unknown store driver")
)
