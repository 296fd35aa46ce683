// Package adapter binds the benchmark harness to a Couchbase bucket. Records
// are stored as JSON documents under their keys in the bucket's default
// collection.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/couchbase/gocb/v2"
	"go.uber.org/zap"

	"cbycsb/internal/couchbase"
	"cbycsb/internal/validator"
	"cbycsb/internal/ycsb"
)

// Store is the document storage the adapter reads and writes.
// *couchbase.Couchbase[ycsb.Document] satisfies it.
type Store interface {
	Upsert(ctx context.Context, key string, value ycsb.Document, opts *gocb.UpsertOptions) error
	Get(ctx context.Context, key string, opts *gocb.GetOptions) (*ycsb.Document, error)
	Replace(ctx context.Context, key string, v *ycsb.Document, opts *gocb.ReplaceOptions) error
	Remove(ctx context.Context, key string, opts *gocb.RemoveOptions) error
	Collection() *gocb.Collection
	Close() error
}

// Transactor replaces a document inside a distributed transaction.
// *couchbase.Transactions satisfies it.
type Transactor interface {
	Replace(tc couchbase.TransactionCollection, key string, value any) (string, error)
}

// Adapter is the document store binding. One Adapter owns one connection
// and is meant to be used by a single worker.
type Adapter struct {
	store   Store
	txns    Transactor
	logger  *zap.Logger
	mode    UpdateMode
	retries int
}

var _ ycsb.DB = (*Adapter)(nil)

// Open parses cfg, connects to the cluster and returns a ready adapter.
// Configuration problems are reported before any connection attempt and
// wrap ycsb.ErrConfiguration; connection failures wrap ycsb.ErrConnection.
func Open(cfg Config, logger *zap.Logger) (*Adapter, error) {
	mode, err := ParseUpdateMode(cfg.UpdateMode)
	if err != nil {
		return nil, err
	}
	if cfg.UpdateRetries < 0 {
		return nil, fmt.Errorf("%w: update retries must not be negative, got %d", ycsb.ErrConfiguration, cfg.UpdateRetries)
	}

	endpoints, err := couchbase.ParseEndpoints(cfg.URIs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ycsb.ErrConfiguration, err)
	}
	connStr, err := couchbase.ConnectionString(endpoints)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ycsb.ErrConfiguration, err)
	}

	cluster, bucket, err := couchbase.Connect(couchbase.ConnectOptions{
		ConnectionString: connStr,
		Username:         cfg.username(),
		Password:         cfg.Password,
		Bucket:           Bucket,
		ConnectTimeout:   cfg.ConnectTimeout,
		KVTimeout:        cfg.KVTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ycsb.ErrConnection, err)
	}

	store, err := couchbase.NewCouchbase[ycsb.Document](cluster, bucket, bucket.DefaultCollection())
	if err != nil {
		_ = cluster.Close(nil)
		return nil, fmt.Errorf("%w: %w", ycsb.ErrConnection, err)
	}

	var txns Transactor
	if mode == UpdateModeTransaction {
		t, err := couchbase.NewTransactions(cluster, cfg.TransactionTimeout)
		if err != nil {
			_ = cluster.Close(nil)
			return nil, fmt.Errorf("%w: %w", ycsb.ErrConnection, err)
		}
		txns = t
	}

	logger.Debug("connected to couchbase",
		zap.String("connection_string", connStr),
		zap.String("bucket", Bucket),
		zap.String("update_mode", string(mode)),
	)

	return New(store, txns, logger, mode, cfg.UpdateRetries)
}

// New wraps an already connected store. txns is only required for
// UpdateModeTransaction.
func New(store Store, txns Transactor, logger *zap.Logger, mode UpdateMode, retries int) (*Adapter, error) {
	a := Adapter{
		store:   store,
		txns:    txns,
		logger:  logger,
		mode:    mode,
		retries: retries,
	}

	if err := validator.Validate("adapter", a.store, a.logger, a.mode); err != nil {
		return nil, fmt.Errorf("failed to validate adapter deps: %w", err)
	}
	if mode == UpdateModeTransaction {
		if err := validator.Validate("adapter transactions", a.txns); err != nil {
			return nil, fmt.Errorf("failed to validate adapter deps: %w", err)
		}
	}

	a.logger = logger.Named("couchbase")
	return &a, nil
}

// Insert stores values under key, overwriting whatever is there. It blocks
// until the cluster acknowledges the write; failures are logged and turned
// into StatusError without retrying.
func (a *Adapter) Insert(ctx context.Context, _ string, key string, values ycsb.Fields) ycsb.Status {
	if err := a.store.Upsert(ctx, key, ycsb.NewDocument(values), nil); err != nil {
		a.logger.Error("insert failed", zap.String("key", key), zap.Error(err))
		return ycsb.StatusError
	}

	return ycsb.StatusOK
}

// Read reports whether key exists. The requested fields are ignored; when
// result is non-nil every field of the stored document is copied into it.
// A value that is not a field map still counts as present and leaves result
// untouched.
func (a *Adapter) Read(ctx context.Context, _ string, key string, _ []string, result ycsb.Fields) ycsb.Status {
	doc, err := a.store.Get(ctx, key, nil)
	switch {
	case err == nil:
	case errors.Is(err, gocb.ErrDocumentNotFound):
		return ycsb.StatusError
	case errors.Is(err, couchbase.ErrInvalidContent):
		a.logger.Debug("stored value is not a field map", zap.String("key", key), zap.Error(err))
		return ycsb.StatusOK
	default:
		a.logger.Warn("read failed", zap.String("key", key), zap.Error(err))
		return ycsb.StatusError
	}

	if result != nil {
		maps.Copy(result, doc.Fields)
	}

	return ycsb.StatusOK
}

// Update writes values under key according to the configured update mode.
// In CAS mode the write is rejected if the record changed between the fetch
// and the swap; the returned error then wraps ycsb.ErrCasMismatch, or
// ycsb.ErrNotFound when the key is missing.
func (a *Adapter) Update(ctx context.Context, table, key string, values ycsb.Fields) (ycsb.Status, error) {
	doc := ycsb.NewDocument(values)

	var err error
	switch a.mode {
	case UpdateModeUpsert:
		return a.Insert(ctx, table, key, values), nil
	case UpdateModeTransaction:
		err = a.updateInTransaction(key, doc)
	default:
		err = a.updateWithCas(ctx, key, &doc)
	}

	if err != nil {
		a.logger.Error("update failed", zap.String("key", key), zap.Error(err))
		return ycsb.StatusError, err
	}

	return ycsb.StatusOK, nil
}

func (a *Adapter) updateWithCas(ctx context.Context, key string, doc *ycsb.Document) error {
	for attempt := 0; ; attempt++ {
		err := a.swap(ctx, key, doc)
		if err == nil || !errors.Is(err, ycsb.ErrCasMismatch) || attempt >= a.retries {
			return err
		}

		a.logger.Debug("cas mismatch, retrying update", zap.String("key", key), zap.Int("attempt", attempt+1))
	}
}

// swap is a single fetch-then-compare-and-swap round.
func (a *Adapter) swap(ctx context.Context, key string, doc *ycsb.Document) error {
	current, err := a.store.Get(ctx, key, nil)
	switch {
	case err == nil:
	case errors.Is(err, gocb.ErrDocumentNotFound):
		return fmt.Errorf("failed to get cas for key %s: %w", key, ycsb.ErrNotFound)
	default:
		return fmt.Errorf("failed to get cas for key %s: %w", key, err)
	}

	doc.SetCas(current.GetCas())

	err = a.store.Replace(ctx, key, doc, nil)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gocb.ErrCasMismatch):
		return fmt.Errorf("failed to swap key %s: %w", key, ycsb.ErrCasMismatch)
	case errors.Is(err, gocb.ErrDocumentNotFound):
		return fmt.Errorf("failed to swap key %s: %w", key, ycsb.ErrNotFound)
	default:
		return fmt.Errorf("failed to swap key %s: %w", key, err)
	}
}

func (a *Adapter) updateInTransaction(key string, doc ycsb.Document) error {
	if _, err := a.txns.Replace(a.store, key, doc); err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return fmt.Errorf("failed to update key %s in transaction: %w", key, ycsb.ErrNotFound)
		}
		return fmt.Errorf("failed to update key %s in transaction: %w", key, err)
	}

	return nil
}

// Delete removes key. It always reports StatusOK.
func (a *Adapter) Delete(ctx context.Context, _ string, key string) ycsb.Status {
	if err := a.store.Remove(ctx, key, nil); err != nil {
		a.logger.Debug("delete failed", zap.String("key", key), zap.Error(err))
	}

	return ycsb.StatusOK
}

// Scan is not supported by this binding: it returns no records and StatusOK.
func (a *Adapter) Scan(_ context.Context, table, startKey string, count int, _ []string) ([]ycsb.Fields, ycsb.Status) {
	a.logger.Debug("scan requested but not implemented",
		zap.String("table", table),
		zap.String("start_key", startKey),
		zap.Int("count", count),
	)

	return nil, ycsb.StatusOK
}

// Cleanup closes the connection.
func (a *Adapter) Cleanup() error {
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("failed to close couchbase connection: %w", err)
	}

	return nil
}
