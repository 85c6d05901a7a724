// Package repository defines error values shared across the data
// access layer. These sentinels let services and handlers distinguish
// failure scenarios without string matching: ErrNotFound maps to 404,
// ErrForbidden to 403 and ErrConflict to 409. Engine-specific typed
// errors (state and availability conflicts) live with the packages
// that raise them.
package repository

import "errors"

// ErrNotFound is returned when a referenced reservation, order,
// facility or payment method does not exist or does not belong to the
// calling store.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts to mutate a
// reservation they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// dependent state, such as deleting a reservation whose order has
// already been paid.
var ErrConflict = errors.New("conflict")

// ErrChainCorrupted signals that the ledger chain tail read while
// appending does not match the balance arithmetic. It must abort the
// enclosing transaction and is never downgraded to a soft failure.
var ErrChainCorrupted = errors.New("ledger chain corrupted")
