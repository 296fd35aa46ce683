package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/couchbase/gocb/v2"

	"cbycsb/internal/couchbase"
	"cbycsb/internal/ycsb"
)

type storedDoc struct {
	raw []byte
	cas uint64
}

// fakeStore is an in-memory Store with Couchbase CAS semantics.
type fakeStore struct {
	mu      sync.Mutex
	docs    map[string]storedDoc
	nextCas uint64

	upsertErr error
	getErr    error
	// beforeReplace runs after the adapter fetched the CAS and before the
	// swap is applied, to simulate a concurrent writer.
	beforeReplace func(key string)

	closed bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string]storedDoc{}}
}

func (f *fakeStore) put(key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextCas++
	f.docs[key] = storedDoc{raw: raw, cas: f.nextCas}
}

func (f *fakeStore) fields(key string) (map[string]string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[key]
	if !ok {
		return nil, false
	}
	var m map[string]string
	if err := json.Unmarshal(d.raw, &m); err != nil {
		panic(err)
	}
	return m, true
}

func (f *fakeStore) Upsert(_ context.Context, key string, value ycsb.Document, _ *gocb.UpsertOptions) error {
	if f.upsertErr != nil {
		return fmt.Errorf("failed to upsert document with key %s: %w", key, f.upsertErr)
	}
	f.put(key, value)
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string, _ *gocb.GetOptions) (*ycsb.Document, error) {
	if f.getErr != nil {
		return nil, fmt.Errorf("failed to get document with key %s: %w", key, f.getErr)
	}

	f.mu.Lock()
	d, ok := f.docs[key]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("failed to get document with key %s: %w", key, gocb.ErrDocumentNotFound)
	}

	var doc ycsb.Document
	if err := json.Unmarshal(d.raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document content for key %s: %w: %w", key, couchbase.ErrInvalidContent, err)
	}
	doc.SetCas(d.cas)
	return &doc, nil
}

func (f *fakeStore) Replace(_ context.Context, key string, v *ycsb.Document, _ *gocb.ReplaceOptions) error {
	if f.beforeReplace != nil {
		f.beforeReplace(key)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[key]
	switch {
	case !ok:
		return fmt.Errorf("failed to replace document with key %s: %w", key, gocb.ErrDocumentNotFound)
	case v.GetCas() != 0 && v.GetCas() != d.cas:
		return fmt.Errorf("failed to replace document with key %s: %w", key, gocb.ErrCasMismatch)
	}
	f.nextCas++
	f.docs[key] = storedDoc{raw: raw, cas: f.nextCas}
	v.SetCas(f.nextCas)
	return nil
}

func (f *fakeStore) Remove(_ context.Context, key string, _ *gocb.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, key)
	return nil
}

func (f *fakeStore) Collection() *gocb.Collection {
	return nil
}

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}

// fakeTransactor replaces documents in a fakeStore as a transaction would.
type fakeTransactor struct {
	store *fakeStore
	calls int
}

func (t *fakeTransactor) Replace(_ couchbase.TransactionCollection, key string, value any) (string, error) {
	t.calls++
	if _, ok := t.store.fields(key); !ok {
		return "", fmt.Errorf("failed to run transaction: %w", gocb.ErrDocumentNotFound)
	}
	t.store.put(key, value)
	return fmt.Sprintf("txn-%d", t.calls), nil
}
