// Package couchbase provides a generic abstraction layer over the Couchbase Go SDK.
// This package simplifies common operations and provides type-safe CRUD operations
// with built-in error handling and context support.
package couchbase

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchbase/gocb/v2"
)

// ErrInvalidContent is returned by Get when a document exists but its
// content cannot be decoded into the requested type.
var ErrInvalidContent = errors.New("invalid document content")

// kvCollection is the subset of *gocb.Collection the wrapper calls.
type kvCollection interface {
	Upsert(id string, val interface{}, opts *gocb.UpsertOptions) (*gocb.MutationResult, error)
	Get(id string, opts *gocb.GetOptions) (*gocb.GetResult, error)
	Replace(id string, val interface{}, opts *gocb.ReplaceOptions) (*gocb.MutationResult, error)
	Remove(id string, opts *gocb.RemoveOptions) (*gocb.MutationResult, error)
}

// Couchbase is a generic wrapper around Couchbase SDK operations.
// It provides type-safe CRUD operations for any type T and handles
// CAS (Compare-And-Swap) bookkeeping for types that embed Cas.
type Couchbase[T any] struct {
	cluster    *gocb.Cluster
	bucket     *gocb.Bucket
	collection *gocb.Collection
	kv         kvCollection
}

// NewCouchbase creates a new generic Couchbase wrapper instance.
// All parameters are required and the function will return an error if any are nil.
func NewCouchbase[T any](cluster *gocb.Cluster, bucket *gocb.Bucket, collection *gocb.Collection) (*Couchbase[T], error) {
	if cluster == nil || bucket == nil || collection == nil {
		return nil, errors.New("invalid Couchbase parameters: cluster, bucket, and collection must not be nil")
	}

	return &Couchbase[T]{
		cluster:    cluster,
		bucket:     bucket,
		collection: collection,
		kv:         collection,
	}, nil
}

// Upsert stores value under key whether or not a document already exists.
// It returns once the write has been acknowledged by the cluster.
func (c *Couchbase[T]) Upsert(ctx context.Context, key string, value T, opts *gocb.UpsertOptions) error {
	if opts == nil {
		opts = new(gocb.UpsertOptions)
	}
	opts.Context = ctx

	if _, err := c.kv.Upsert(key, value, opts); err != nil {
		return fmt.Errorf("failed to upsert document with key %s: %w", key, err)
	}

	return nil
}

// Get retrieves a document from Couchbase by key and unmarshals it into type T.
// Automatically sets CAS values on objects that implement CasSetter interface.
func (c *Couchbase[T]) Get(ctx context.Context, key string, opts *gocb.GetOptions) (*T, error) {
	if opts == nil {
		opts = new(gocb.GetOptions)
	}
	opts.Context = ctx

	res, err := c.kv.Get(key, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get document with key %s: %w", key, err)
	}

	var v T
	if err := res.Content(&v); err != nil {
		return nil, fmt.Errorf("failed to parse document content for key %s: %w: %w", key, ErrInvalidContent, err)
	}

	if s, ok := any(&v).(CasSetter); ok {
		s.SetCas(uint64(res.Cas()))
	}

	return &v, nil
}

// Replace updates an existing document in Couchbase with new content.
// When v implements CasGetter and opts carries no CAS, the document's CAS is
// used so the write only succeeds if nobody modified the document since it
// was read. The new CAS is written back through CasSetter.
func (c *Couchbase[T]) Replace(ctx context.Context, key string, v *T, opts *gocb.ReplaceOptions) error {
	if opts == nil {
		opts = new(gocb.ReplaceOptions)
	}
	opts.Context = ctx

	if g, ok := any(v).(CasGetter); ok && opts.Cas == 0 {
		opts.Cas = gocb.Cas(g.GetCas())
	}

	res, err := c.kv.Replace(key, v, opts)
	if err != nil {
		return fmt.Errorf("failed to replace document with key %s: %w", key, err)
	}

	if s, ok := any(v).(CasSetter); ok {
		s.SetCas(uint64(res.Cas()))
	}

	return nil
}

// Remove deletes a document from Couchbase by key.
// Does not return an error if the document doesn't exist.
func (c *Couchbase[T]) Remove(ctx context.Context, key string, opts *gocb.RemoveOptions) error {
	if opts == nil {
		opts = new(gocb.RemoveOptions)
	}
	opts.Context = ctx

	_, err := c.kv.Remove(key, opts)
	if err != nil && !errors.Is(err, gocb.ErrDocumentNotFound) {
		return fmt.Errorf("failed to remove document with key %s: %w", key, err)
	}

	return nil
}

// Collection returns the underlying Couchbase collection for advanced operations.
func (c *Couchbase[T]) Collection() *gocb.Collection {
	return c.collection
}

// Close closes the Couchbase cluster connection.
func (c *Couchbase[T]) Close() error {
	return c.cluster.Close(nil)
}
