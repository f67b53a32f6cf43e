// Package memory provides an in-process storage backend.
//
// A single RW mutex guards every collection. A transaction holds the write
// lock for its whole duration and restores a snapshot on error, so
// transactions are serializable. Repository calls made outside a transaction
// take the lock themselves.
package memory

import (
	"context"
	"maps"
	"sync"

	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/ledger"
)

// Store owns the four entity collections plus sequences and the audit log.
type Store struct {
	mu sync.RWMutex

	products  map[id.ID]*product.Product
	documents map[id.ID]*documents.Document
	items     map[id.ID][]documents.Item
	ledger    []ledger.Entry
	sequences map[string]int64
	audit     []audit.Entry
}

// New creates an empty store.
func New() *Store {
	return &Store{
		products:  make(map[id.ID]*product.Product),
		documents: make(map[id.ID]*documents.Document),
		items:     make(map[id.ID][]documents.Item),
		sequences: make(map[string]int64),
	}
}

var _ tx.Manager = (*Store)(nil)

type txKey struct{}

type txState struct {
	onCommit []func()
}

// RunInTransaction implements tx.Manager. Nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	state := &txState{}
	s.mu.Lock()
	snap := s.snapshot()

	err := fn(context.WithValue(ctx, txKey{}, state))
	if err != nil {
		s.restore(snap)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	for _, f := range state.onCommit {
		f()
	}
	return nil
}

// ReadOnly runs fn under the read lock.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(context.WithValue(ctx, txKey{}, &txState{}))
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}

// afterCommit runs f once the surrounding transaction commits, or immediately
// when ctx carries no transaction.
func afterCommit(ctx context.Context, f func()) {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		state.onCommit = append(state.onCommit, f)
		return
	}
	f()
}

func (s *Store) read(ctx context.Context, fn func() error) error {
	if inTx(ctx) {
		return fn()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

func (s *Store) write(ctx context.Context, fn func() error) error {
	if inTx(ctx) {
		return fn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

type snapshot struct {
	products  map[id.ID]*product.Product
	documents map[id.ID]*documents.Document
	items     map[id.ID][]documents.Item
	ledgerLen int
	sequences map[string]int64
	auditLen  int
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		products:  make(map[id.ID]*product.Product, len(s.products)),
		documents: make(map[id.ID]*documents.Document, len(s.documents)),
		items:     make(map[id.ID][]documents.Item, len(s.items)),
		ledgerLen: len(s.ledger),
		sequences: maps.Clone(s.sequences),
		auditLen:  len(s.audit),
	}
	for k, p := range s.products {
		cp := *p
		snap.products[k] = &cp
	}
	for k, d := range s.documents {
		snap.documents[k] = copyDocument(d)
	}
	for k, items := range s.items {
		snap.items[k] = append([]documents.Item(nil), items...)
	}
	return snap
}

// restore rolls back to snap. Ledger and audit are append-only, so truncation suffices.
func (s *Store) restore(snap snapshot) {
	s.products = snap.products
	s.documents = snap.documents
	s.items = snap.items
	s.ledger = s.ledger[:snap.ledgerLen]
	s.sequences = snap.sequences
	s.audit = s.audit[:snap.auditLen]
}

func copyDocument(d *documents.Document) *documents.Document {
	cp := *d
	if d.ValidatedAt != nil {
		at := *d.ValidatedAt
		cp.ValidatedAt = &at
	}
	cp.Items = nil
	return &cp
}
