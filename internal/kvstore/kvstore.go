// Package kvstore abstracts the persistence layer behind a small key-value
// capability so the ledger and record store can be backed by memory (tests),
// flat JSON files, or PostgreSQL without changing their logic.
package kvstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrKeyNotFound is returned by Get for an absent key.
var ErrKeyNotFound = errors.New("kvstore: key not found")

// Store is the persistence capability injected into the ledger and the record
// store. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys returns every stored key with the given prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// WriteError reports a backing-store write failure, including quota exhaustion.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("storage write failed for key %q: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReadError reports a backing-store read failure. A missing key is not a
// ReadError; that is ErrKeyNotFound.
type ReadError struct {
	Key string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("storage read failed for key %q: %v", e.Key, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
