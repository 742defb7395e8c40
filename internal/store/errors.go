package store

import "errors"

// Sentinel errors returned by ObjectStore, named after the original
// db_server dispatch arms (original_source/src/server/server.rs) so
// internal/dispatch can match on them with errors.Is.
var (
	// ErrNotFound is returned when an id or refid has no matching row.
	ErrNotFound = errors.New("store: object not found")

	// ErrNoSuchTransaction is returned when a caller passes a tid that was
	// never opened, or was already committed/rolled back.
	ErrNoSuchTransaction = errors.New("store: no such transaction")

	// ErrTransactionInactive is returned (by internal/dispatch) when a
	// mutating operation is called without a transaction, i.e. with tid 0.
	ErrTransactionInactive = errors.New("store: transaction inactive")

	// ErrConflict is returned by Update/UpdateMetadata when the caller's
	// expected update_counter does not match the stored row's, i.e. the
	// row was modified since the caller last read it.
	ErrConflict = errors.New("store: update conflict (stale update_counter)")
)
