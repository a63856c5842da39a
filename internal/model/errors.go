package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested conversation or message is
// absent from the archive.
var ErrNotFound = errors.New("not found")

// ErrAlreadyRunning is returned by the reconciliation engine when a run
// for the same scope is active.
var ErrAlreadyRunning = errors.New("sync already running")

// ValidationError marks a normalized record that violates a required
// field. The offending record is skipped and logged; the run continues.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %s: %s", e.Field, e.Reason)
}

// TransientFetchError wraps a failure at the remote client boundary.
// It is isolated per conversation during merging and contributes to a
// partially-failed run rather than a failed one.
type TransientFetchError struct {
	Op  string
	Err error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("transient fetch error: %s: %v", e.Op, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// StorageIntegrityError marks a transaction that would violate a storage
// invariant, such as inserting a message without its parent conversation.
// The transaction is rolled back and the error surfaced to the caller.
type StorageIntegrityError struct {
	Reason string
}

func (e *StorageIntegrityError) Error() string {
	return "storage integrity: " + e.Reason
}

// IndexCorruptionError indicates the search index and the store have
// diverged. Callers respond by rebuilding the index.
type IndexCorruptionError struct {
	Err error
}

func (e *IndexCorruptionError) Error() string {
	return fmt.Sprintf("search index corrupted: %v", e.Err)
}

func (e *IndexCorruptionError) Unwrap() error { return e.Err }
