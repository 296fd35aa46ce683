package couchbase

import (
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
)

const defaultTransactionTimeout = 10 * time.Second

// Transactions provides a wrapper around Couchbase distributed transactions.
// It simplifies transaction execution with consistent configuration and error handling.
type Transactions struct {
	cluster *gocb.Cluster
	timeout time.Duration
}

// NewTransactions creates a new transaction manager for the given cluster.
// A zero timeout falls back to ten seconds.
func NewTransactions(cluster *gocb.Cluster, timeout time.Duration) (*Transactions, error) {
	if cluster == nil {
		return nil, fmt.Errorf("couchbase cluster cannot be nil")
	}
	if timeout <= 0 {
		timeout = defaultTransactionTimeout
	}

	return &Transactions{
		cluster: cluster,
		timeout: timeout,
	}, nil
}

// Transaction executes a function within a Couchbase distributed transaction.
// Returns the transaction ID on success or an error if the transaction fails.
func (t *Transactions) Transaction(fn TransactionAttempt) (string, error) {
	opts := gocb.TransactionOptions{
		DurabilityLevel: gocb.DurabilityLevelNone,
		Timeout:         t.timeout,
	}
	run := func(actx *gocb.TransactionAttemptContext) error {
		return fn(newTransactionRunner(actx))
	}

	res, err := t.cluster.Transactions().Run(run, &opts)
	if err != nil {
		return "", fmt.Errorf("failed to run transaction: %w", err)
	}

	return res.TransactionID, nil
}

// Replace overwrites the document stored under key with value inside a
// transaction. The document must already exist.
func (t *Transactions) Replace(tc TransactionCollection, key string, value any) (string, error) {
	return t.Transaction(func(r TransactionRunner) error {
		doc, err := r.Get(tc, key)
		if err != nil {
			return fmt.Errorf("failed to get document with key %s: %w", key, err)
		}

		if _, err := r.Replace(doc, value); err != nil {
			return fmt.Errorf("failed to replace document with key %s: %w", key, err)
		}

		return nil
	})
}

// transactionRunner wraps the Couchbase transaction context to provide a simpler interface.
type transactionRunner struct {
	ctx *gocb.TransactionAttemptContext
}

func newTransactionRunner(ctx *gocb.TransactionAttemptContext) *transactionRunner {
	return &transactionRunner{ctx: ctx}
}

// Get retrieves a document within the transaction context.
func (t *transactionRunner) Get(tc TransactionCollection, key string) (*gocb.TransactionGetResult, error) {
	return t.ctx.Get(tc.Collection(), key)
}

// Replace updates an existing document within the transaction context.
func (t *transactionRunner) Replace(doc *gocb.TransactionGetResult, value any) (*gocb.TransactionGetResult, error) {
	return t.ctx.Replace(doc, value)
}

// TransactionRunner defines the interface for performing operations within a transaction.
type TransactionRunner interface {
	Get(tc TransactionCollection, key string) (*gocb.TransactionGetResult, error)
	Replace(doc *gocb.TransactionGetResult, value any) (*gocb.TransactionGetResult, error)
}

// TransactionCollection defines the interface for collections that can participate in transactions.
type TransactionCollection interface {
	Collection() *gocb.Collection
}

// TransactionAttempt defines the signature for functions that execute within a transaction.
type TransactionAttempt func(t TransactionRunner) error
