// Package persistence dispatches document operations to a document store:
// direct key access for primary-key lookups and compiled statements for
// everything else. Connections live in a caller-owned ConnectionPool.
package persistence

import (
	"context"
	"time"

	"github.com/asaidimu/go-n1ql/core/query"
	"github.com/asaidimu/go-n1ql/core/schema"
)

// Querier executes compiled statements.
type Querier interface {
	// Execute runs the statement with its consistency level and returns the
	// raw rows.
	Execute(ctx context.Context, stmt query.Statement) ([]schema.Document, error)
}

// Item is a document read by key together with its version token (CAS).
type Item struct {
	Key   string
	Value schema.Document
	Cas   uint64
}

// WriteOptions carries the durability requirements of a write.
type WriteOptions struct {
	PersistTo   uint
	ReplicateTo uint
}

// KeyValue gives direct access to documents by key. Implementations report
// failures with the sentinel errors of this package, wrapped in a
// *StoreError.
type KeyValue interface {
	Get(ctx context.Context, key string) (*Item, error)
	// GetAndLock reads a document and locks it for at most lockTime. The lock
	// is released by the next Replace carrying the returned CAS.
	GetAndLock(ctx context.Context, key string, lockTime time.Duration) (*Item, error)
	// Insert fails with ErrKeyExists when the key is taken.
	Insert(ctx context.Context, key string, doc schema.Document, opts WriteOptions) (uint64, error)
	// Replace fails with ErrVersionConflict when cas is stale.
	Replace(ctx context.Context, key string, doc schema.Document, cas uint64, opts WriteOptions) (uint64, error)
	Remove(ctx context.Context, key string, opts WriteOptions) error
}

// EventType names an event emitted by the Adapter.
type EventType string

const (
	DocumentCreateStart   EventType = "document:create:start"
	DocumentCreateSuccess EventType = "document:create:success"
	DocumentCreateFailed  EventType = "document:create:failed"
	DocumentReadStart     EventType = "document:read:start"
	DocumentReadSuccess   EventType = "document:read:success"
	DocumentReadFailed    EventType = "document:read:failed"
	DocumentUpdateStart   EventType = "document:update:start"
	DocumentUpdateSuccess EventType = "document:update:success"
	DocumentUpdateFailed  EventType = "document:update:failed"
	DocumentDeleteStart   EventType = "document:delete:start"
	DocumentDeleteSuccess EventType = "document:delete:success"
	DocumentDeleteFailed  EventType = "document:delete:failed"
	CollectionDropStart   EventType = "collection:drop:start"
	CollectionDropSuccess EventType = "collection:drop:success"
	CollectionDropFailed  EventType = "collection:drop:failed"
	QueryStart            EventType = "query:start"
	QuerySuccess          EventType = "query:success"
	QueryFailed           EventType = "query:failed"
	// DocumentUpdateConflict is emitted for every version conflict retried
	// by an optimistic update.
	DocumentUpdateConflict EventType = "document:update:conflict"
	// DocumentKeyCollision is emitted when a generated key already exists.
	DocumentKeyCollision EventType = "document:create:collision"
)

// Event describes one step of an Adapter operation.
type Event struct {
	Type       EventType      `json:"type"`                 // The type of event (e.g., 'document:create:start').
	Timestamp  int64          `json:"timestamp"`            // Unix milliseconds.
	Operation  string         `json:"operation"`            // The operation being performed (e.g., 'create').
	Connection string         `json:"connection"`           // Identity of the connection used.
	Collection string         `json:"collection"`           // Name of the collection affected.
	Input      any            `json:"input,omitempty"`      // Data passed to the operation.
	Output     any            `json:"output,omitempty"`     // Data returned by the operation.
	Error      *string        `json:"error,omitempty"`      // Error message if the operation failed.
	Issues     []schema.Issue `json:"issues,omitempty"`     // Validation issues that caused the failure.
	Query      any            `json:"query,omitempty"`      // Options or statement used.
	Duration   *int64         `json:"duration,omitempty"`   // Duration of the operation in milliseconds.
	Context    map[string]any `json:"context,omitempty"`    // Additional details specific to the event.
}

// EventCallbackFunction handles an emitted event.
type EventCallbackFunction = func(ctx context.Context, event Event) error

// RegisterSubscriptionOptions describes a subscription to Adapter events.
type RegisterSubscriptionOptions struct {
	Event       EventType `json:"event"`
	Label       *string   `json:"label,omitempty"`
	Description *string   `json:"description,omitempty"`
	Callback    EventCallbackFunction
}

// SubscriptionInfo describes a registered subscription.
type SubscriptionInfo struct {
	Id          *string   `json:"id,omitempty"`
	Event       EventType `json:"event"`                 // The event subscribed to.
	Label       *string   `json:"label,omitempty"`       // Optional short identifier.
	Description *string   `json:"description,omitempty"` // Optional description.
	Unsubscribe func()    `json:"-"`
}
