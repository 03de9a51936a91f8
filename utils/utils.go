// Package utils converts between application structs and the documents the
// adapter reads and writes.
package utils

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/asaidimu/go-n1ql/core/schema"
)

// ToDocument converts a struct, or a pointer to one, into a document using
// its json tags. Nested structs become nested documents so that the
// normalizer can render them as object literals.
//
//	type Person struct {
//		Name string `json:"name"`
//		Age  int    `json:"age"`
//	}
//	doc, err := ToDocument(Person{Name: "Tomas", Age: 30})
//	// doc == schema.Document{"name": "Tomas", "age": float64(30)}
func ToDocument[T any](record T) (schema.Document, error) {
	val := reflect.ValueOf(record)
	if !val.IsValid() {
		return nil, fmt.Errorf("ToDocument: record cannot be nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, fmt.Errorf("ToDocument: record cannot be a nil pointer")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("ToDocument: record must be a struct or a pointer to a struct, got %s", val.Kind())
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("ToDocument: failed to marshal record: %w", err)
	}
	var doc schema.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ToDocument: failed to unmarshal record: %w", err)
	}
	return doc, nil
}

// FromDocument is the inverse of ToDocument. T must be a struct or a
// pointer to a struct.
func FromDocument[T any](doc schema.Document) (T, error) {
	var zero T
	if doc == nil {
		return zero, fmt.Errorf("FromDocument: document cannot be nil")
	}
	typ := reflect.TypeOf(zero)
	if typ == nil {
		return zero, fmt.Errorf("FromDocument: T must be a concrete struct type")
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("FromDocument: T must be a struct type (or pointer to struct), got %s", typ.Kind())
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return zero, fmt.Errorf("FromDocument: failed to marshal document: %w", err)
	}
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return zero, fmt.Errorf("FromDocument: failed to unmarshal into %s: %w", typ.Name(), err)
	}
	return result, nil
}

// FromDocuments converts every document of a result set, stopping at the
// first failure.
func FromDocuments[T any](docs []schema.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for i, doc := range docs {
		v, err := FromDocument[T](doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
