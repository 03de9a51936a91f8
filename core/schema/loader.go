package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// definitionSchema is the JSON Schema every collection definition file must satisfy.
const definitionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"definitions": {
		"field": {
			"type": "object",
			"required": ["type"],
			"properties": {
				"name": {"type": "string"},
				"type": {"enum": ["string", "date", "integer", "float", "boolean", "json"]},
				"primaryKey": {"type": "boolean"},
				"required": {"type": "boolean"},
				"description": {"type": "string"}
			}
		},
		"collection": {
			"type": "object",
			"required": ["name", "fields"],
			"properties": {
				"name": {"type": "string", "minLength": 1, "pattern": "^[A-Za-z_][A-Za-z0-9_]*$"},
				"primaryKey": {"type": "string"},
				"description": {"type": "string"},
				"fields": {
					"type": "object",
					"additionalProperties": {"$ref": "#/definitions/field"}
				}
			}
		}
	},
	"oneOf": [
		{"$ref": "#/definitions/collection"},
		{"type": "array", "items": {"$ref": "#/definitions/collection"}}
	]
}`

var definitionLoader = gojsonschema.NewStringLoader(definitionSchema)

// ParseDefinitions decodes one collection definition or an array of them,
// validating the document against the definition JSON Schema first.
func ParseDefinitions(data []byte) ([]*SchemaDefinition, error) {
	result, err := gojsonschema.Validate(definitionLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to validate collection definitions: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return nil, NewConfigurationError(CodeInvalidSchema, "", "invalid collection definitions: %s", strings.Join(errs, "; "))
	}

	var defs []*SchemaDefinition
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &defs); err != nil {
			return nil, fmt.Errorf("failed to decode collection definitions: %w", err)
		}
	} else {
		var def SchemaDefinition
		if err := json.Unmarshal(trimmed, &def); err != nil {
			return nil, fmt.Errorf("failed to decode collection definition: %w", err)
		}
		defs = append(defs, &def)
	}

	for _, def := range defs {
		if err := def.Normalize(); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

// LoadDefinitions reads and parses a collection definition file.
func LoadDefinitions(path string) ([]*SchemaDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection definitions %s: %w", path, err)
	}
	return ParseDefinitions(data)
}

// Registry maps collection names to their definitions.
type Registry map[string]*SchemaDefinition

// NewRegistry indexes definitions by name. Duplicate names are rejected.
func NewRegistry(defs ...*SchemaDefinition) (Registry, error) {
	r := make(Registry, len(defs))
	for _, def := range defs {
		if err := def.Normalize(); err != nil {
			return nil, err
		}
		if _, exists := r[def.Name]; exists {
			return nil, NewConfigurationError(CodeInvalidSchema, def.Name, "collection '%s' is defined twice", def.Name)
		}
		r[def.Name] = def
	}
	return r, nil
}

// Get returns the definition of a collection or a ConfigurationError.
func (r Registry) Get(name string) (*SchemaDefinition, error) {
	def, ok := r[name]
	if !ok {
		return nil, NewConfigurationError(CodeUnknownSchema, name, "collection '%s' is not registered", name)
	}
	return def, nil
}
