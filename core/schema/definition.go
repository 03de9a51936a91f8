// Package schema describes the collections handled by the adapter: the type of
// every attribute and which attribute acts as the primary key. Definitions are
// supplied once at registration time and are read-only afterwards.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// FieldType represents the attribute types understood by the query compiler.
type FieldType string

const (
	FieldTypeString  FieldType = "string"  // Text data, compared case-insensitively by default
	FieldTypeDate    FieldType = "date"    // Timestamps, compared as epoch milliseconds
	FieldTypeInteger FieldType = "integer" // Whole numbers
	FieldTypeFloat   FieldType = "float"   // Floating point numbers
	FieldTypeBoolean FieldType = "boolean" // True/false values
	FieldTypeJSON    FieldType = "json"    // Arbitrary nested JSON
)

// IsValid reports whether t is one of the known field types.
func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeString, FieldTypeDate, FieldTypeInteger, FieldTypeFloat, FieldTypeBoolean, FieldTypeJSON:
		return true
	}
	return false
}

// Document is the shape of a stored document and of a normalized record.
type Document map[string]any

// FieldDefinition describes a single attribute of a collection.
type FieldDefinition struct {
	Name       string    `json:"name" mapstructure:"name"`
	Type       FieldType `json:"type" mapstructure:"type"`
	PrimaryKey bool      `json:"primaryKey,omitempty" mapstructure:"primaryKey"`
	// Required marks the attribute as mandatory on writes.
	Required bool `json:"required,omitempty" mapstructure:"required"`
	// Description provides a brief explanation of the field.
	Description *string `json:"description,omitempty" mapstructure:"description"`
}

// SchemaDefinition is the registered description of one collection (document type).
type SchemaDefinition struct {
	Name        string                      `json:"name" mapstructure:"name"`
	PrimaryKey  string                      `json:"primaryKey" mapstructure:"primaryKey"`
	Description *string                     `json:"description,omitempty" mapstructure:"description"`
	Fields      map[string]*FieldDefinition `json:"fields" mapstructure:"fields"`
}

// DefaultPrimaryKey is used when a definition does not name its primary key.
const DefaultPrimaryKey = "id"

// Normalize fills in derived values: field names from their map keys, the
// primary key name, and the PrimaryKey flag of the key field. It then checks
// that every field has a known type.
func (s *SchemaDefinition) Normalize() error {
	if s.Name == "" {
		return NewConfigurationError(CodeInvalidSchema, "", "schema must define a collection name")
	}
	if s.Fields == nil {
		s.Fields = make(map[string]*FieldDefinition)
	}
	for name, field := range s.Fields {
		if field == nil {
			return NewConfigurationError(CodeInvalidSchema, name, "field '%s' has no definition", name)
		}
		if field.Name == "" {
			field.Name = name
		}
		if field.PrimaryKey && s.PrimaryKey == "" {
			s.PrimaryKey = name
		}
		if !field.Type.IsValid() {
			return NewConfigurationError(CodeInvalidSchema, name, "field '%s' has unknown type '%s'", name, field.Type)
		}
	}
	if s.PrimaryKey == "" {
		s.PrimaryKey = DefaultPrimaryKey
	}
	pk, ok := s.Fields[s.PrimaryKey]
	if !ok {
		pk = &FieldDefinition{Name: s.PrimaryKey, Type: FieldTypeString}
		s.Fields[s.PrimaryKey] = pk
	}
	pk.PrimaryKey = true
	return nil
}

// Resolve looks up the descriptor for an attribute. Dotted paths resolve on
// their root segment; the returned bool reports whether the path points into
// a nested value, in which case the root descriptor does not type the leaf.
func (s *SchemaDefinition) Resolve(attr string) (*FieldDefinition, bool, error) {
	if attr == "" {
		return nil, false, NewConfigurationError(CodeUnknownAttribute, attr, "attribute name cannot be empty")
	}
	root, _, nested := strings.Cut(attr, ".")
	field, ok := s.Fields[root]
	if !ok {
		return nil, false, NewConfigurationError(CodeUnknownAttribute, attr,
			"attribute '%s' is not defined on collection '%s'", root, s.Name)
	}
	return field, nested, nil
}

// IsPrimaryKey reports whether attr names the collection's primary key.
func (s *SchemaDefinition) IsPrimaryKey(attr string) bool {
	return s != nil && attr == s.PrimaryKey
}

// FieldNames returns the attribute names in a stable order.
func (s *SchemaDefinition) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String implements fmt.Stringer.
func (s *SchemaDefinition) String() string {
	return fmt.Sprintf("%s(pk=%s, fields=%d)", s.Name, s.PrimaryKey, len(s.Fields))
}
