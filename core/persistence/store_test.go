package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/asaidimu/go-n1ql/core/query"
	"github.com/asaidimu/go-n1ql/core/schema"
)

// memoryStore is an in-memory Querier and KeyValue with injectable failures.
type memoryStore struct {
	mu     sync.Mutex
	docs   map[string]*Item
	locked map[string]bool
	cas    uint64

	statements []query.Statement
	rows       []schema.Document
	execErr    error

	// insertErrs are returned, in order, by the next Insert calls.
	insertErrs []error
	// conflicts is the number of Replace calls to fail with a version conflict.
	conflicts int

	inserts  []string
	replaces int
	locks    int
	closed   bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: make(map[string]*Item), locked: make(map[string]bool)}
}

func (m *memoryStore) put(key string, doc schema.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cas++
	m.docs[key] = &Item{Key: key, Value: copyDocument(doc), Cas: m.cas}
}

func (m *memoryStore) Execute(_ context.Context, stmt query.Statement) ([]schema.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statements = append(m.statements, stmt)
	return m.rows, m.execErr
}

func (m *memoryStore) Get(_ context.Context, key string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.docs[key]
	if !ok {
		return nil, NewStoreError("get", key, ErrKeyNotFound)
	}
	return &Item{Key: key, Value: copyDocument(item.Value), Cas: item.Cas}, nil
}

func (m *memoryStore) GetAndLock(_ context.Context, key string, _ time.Duration) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks++
	item, ok := m.docs[key]
	if !ok {
		return nil, NewStoreError("getAndLock", key, ErrKeyNotFound)
	}
	if m.locked[key] {
		return nil, NewStoreError("getAndLock", key, ErrDocumentLocked)
	}
	m.locked[key] = true
	return &Item{Key: key, Value: copyDocument(item.Value), Cas: item.Cas}, nil
}

func (m *memoryStore) Insert(_ context.Context, key string, doc schema.Document, _ WriteOptions) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts = append(m.inserts, key)
	if len(m.insertErrs) > 0 {
		err := m.insertErrs[0]
		m.insertErrs = m.insertErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	if _, exists := m.docs[key]; exists {
		return 0, NewStoreError("insert", key, ErrKeyExists)
	}
	m.cas++
	m.docs[key] = &Item{Key: key, Value: copyDocument(doc), Cas: m.cas}
	return m.cas, nil
}

func (m *memoryStore) Replace(_ context.Context, key string, doc schema.Document, cas uint64, _ WriteOptions) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaces++
	if m.conflicts > 0 {
		m.conflicts--
		return 0, NewStoreError("replace", key, ErrVersionConflict)
	}
	item, ok := m.docs[key]
	if !ok {
		return 0, NewStoreError("replace", key, ErrKeyNotFound)
	}
	if item.Cas != cas {
		return 0, NewStoreError("replace", key, ErrVersionConflict)
	}
	m.cas++
	m.docs[key] = &Item{Key: key, Value: copyDocument(doc), Cas: m.cas}
	delete(m.locked, key)
	return m.cas, nil
}

func (m *memoryStore) Remove(_ context.Context, key string, _ WriteOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[key]; !ok {
		return NewStoreError("remove", key, ErrKeyNotFound)
	}
	delete(m.docs, key)
	return nil
}

func (m *memoryStore) Close() error {
	m.closed = true
	return nil
}

func (m *memoryStore) lastStatement() query.Statement {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.statements) == 0 {
		return query.Statement{}
	}
	return m.statements[len(m.statements)-1]
}
