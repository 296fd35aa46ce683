// Package ycsb defines the contract between the benchmark harness and a
// document store binding: the DB interface, status codes, the stored
// document shape and the errors a binding may surface.
package ycsb

import "context"

// DB defines the operations a benchmark worker performs against a store.
// The table argument is accepted for compatibility with the harness model;
// bindings are free to ignore it.
type DB interface {
	// Read fetches the record stored under key.
	// Returns StatusOK if a value exists and StatusError if it is absent.
	// When result is non-nil it is filled with the record's fields.
	Read(ctx context.Context, table, key string, fields []string, result Fields) Status

	// Scan reads up to count records starting at startKey.
	Scan(ctx context.Context, table, startKey string, count int, fields []string) ([]Fields, Status)

	// Update replaces the record stored under key with values.
	// A non-nil error means the update could not be applied and the caller
	// must not continue as if it had been.
	Update(ctx context.Context, table, key string, values Fields) (Status, error)

	// Insert stores values under key, overwriting any existing record.
	Insert(ctx context.Context, table, key string, values Fields) Status

	// Delete removes the record stored under key.
	Delete(ctx context.Context, table, key string) Status

	// Cleanup releases the resources held by the binding.
	Cleanup() error
}
