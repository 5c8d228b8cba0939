// Package store is the persistent key/value storage used to keep node lists
// across restarts.
package store

import "errors"

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("key not found")

// Store is a string-keyed storage interface. It should be goroutine-safe.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(key string, value string) error
	// Remove deletes the key. Removing a missing key is not an error.
	Remove(key string) error
	// Close releases the store. It should not be used afterwards.
	Close() error
}
