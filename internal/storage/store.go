// Package storage persists the service's records in a key-value store.
//
// Writes are last-writer-wins; callers that read-modify-write a record must
// serialize themselves.
package storage

import "context"

// KVStore is a string-keyed byte store
type KVStore interface {
	// Get returns the value stored at key and whether it exists
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value at key, replacing any previous value
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key; removing a missing key is not an error
	Remove(ctx context.Context, key string) error
}
