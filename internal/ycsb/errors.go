package ycsb

import "errors"

var (
	// ErrConfiguration is returned at init when the binding configuration is invalid.
	ErrConfiguration = errors.New("configuration error")
	// ErrConnection is returned at init when the store cannot be reached.
	ErrConnection = errors.New("connection error")
	// ErrNotFound is returned by Update when the key does not exist.
	ErrNotFound = errors.New("value not found")
	// ErrCasMismatch is returned by Update when another writer modified the
	// value between the fetch and the swap.
	ErrCasMismatch = errors.New("value exists, but CAS did not match")
)
