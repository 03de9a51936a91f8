package persistence

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/asaidimu/go-n1ql/core/schema"
)

// Connection is one registered store connection together with the
// collections stored through it.
type Connection struct {
	Identity    string
	Config      Config
	Querier     Querier
	KV          KeyValue
	Collections schema.Registry
	// Closer releases the underlying store handle. It may be nil.
	Closer io.Closer
}

// ConnectionPool indexes connections by identity. It is owned by the caller
// and safe for concurrent use.
type ConnectionPool struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewConnectionPool creates an empty pool.
func NewConnectionPool() *ConnectionPool {
	return &ConnectionPool{conns: make(map[string]*Connection)}
}

// Register validates and adds a connection. Identities must be unique.
func (p *ConnectionPool) Register(conn *Connection) error {
	if conn == nil || conn.Identity == "" {
		return fmt.Errorf("connection must have an identity")
	}
	if conn.Querier == nil || conn.KV == nil {
		return fmt.Errorf("connection %q must provide a querier and a key-value store", conn.Identity)
	}
	if conn.Config.Identity == "" {
		conn.Config.Identity = conn.Identity
	}
	if err := conn.Config.Validate(); err != nil {
		return fmt.Errorf("connection %q: %w", conn.Identity, err)
	}
	if conn.Collections == nil {
		conn.Collections = schema.Registry{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.conns[conn.Identity]; exists {
		return fmt.Errorf("connection %q is already registered", conn.Identity)
	}
	p.conns[conn.Identity] = conn
	return nil
}

// Get returns the connection registered under identity.
func (p *ConnectionPool) Get(identity string) (*Connection, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	conn, ok := p.conns[identity]
	if !ok {
		return nil, fmt.Errorf("connection %q is not registered", identity)
	}
	return conn, nil
}

// Identities lists the registered connections in a stable order.
func (p *ConnectionPool) Identities() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.conns))
	for id := range p.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Teardown removes a connection and closes its store handle.
func (p *ConnectionPool) Teardown(identity string) error {
	p.mu.Lock()
	conn, ok := p.conns[identity]
	delete(p.conns, identity)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("connection %q is not registered", identity)
	}
	if conn.Closer != nil {
		return conn.Closer.Close()
	}
	return nil
}

// Close tears down every connection and returns the first error met.
func (p *ConnectionPool) Close() error {
	var first error
	for _, id := range p.Identities() {
		if err := p.Teardown(id); err != nil && first == nil {
			first = err
		}
	}
	return first
}
