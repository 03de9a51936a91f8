package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-n1ql/core/schema"
)

// Store failures. Implementations of Querier and KeyValue wrap these in a
// *StoreError so callers can test them with errors.Is.
var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrKeyExists       = errors.New("key already exists")
	ErrVersionConflict = errors.New("document version changed")
	ErrDocumentLocked  = errors.New("document is locked")
	ErrTransport       = errors.New("store transport failure")
)

// StoreError is a failure reported by the store.
type StoreError struct {
	Op  string
	Key string
	Err error
}

// NewStoreError wraps err for the operation op on key.
func NewStoreError(op, key string, err error) *StoreError {
	return &StoreError{Op: op, Key: key, Err: err}
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err carries a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// ValidationError is returned when a document written through the Adapter
// does not match its collection's schema.
type ValidationError struct {
	Collection string
	Issues     []schema.Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		msgs = append(msgs, issue.Message)
	}
	return fmt.Sprintf("invalid %s document: %s", e.Collection, strings.Join(msgs, "; "))
}
