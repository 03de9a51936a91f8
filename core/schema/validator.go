package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Validator checks documents bound for the store against a collection
// definition. Unknown attributes are reported, since they could never be
// queried through the compiler.
type Validator struct {
	schema *SchemaDefinition
	issues []Issue
}

// NewValidator creates a new Validator for a given schema. It can be reused.
func NewValidator(schema *SchemaDefinition) *Validator {
	return &Validator{
		schema: schema,
		issues: make([]Issue, 0),
	}
}

// Validate checks data against the validator's schema. With loose set, missing
// required fields are ignored, which is what partial updates need.
func (v *Validator) Validate(data map[string]any, loose bool) (bool, []Issue) {
	v.issues = make([]Issue, 0)

	for _, fieldName := range v.schema.FieldNames() {
		fieldDef := v.schema.Fields[fieldName]
		value, exists := data[fieldName]

		if fieldDef.Required && !fieldDef.PrimaryKey && !exists {
			if !loose {
				v.addIssue("REQUIRED_FIELD_MISSING", fmt.Sprintf("Required field '%s' is missing", fieldName), fieldName)
			}
			continue
		}
		if !exists {
			continue
		}
		v.validateFieldType(value, fieldDef, fieldName)
	}

	for dataKey := range data {
		if _, exists := v.schema.Fields[dataKey]; !exists {
			v.addIssue("UNEXPECTED_FIELD", fmt.Sprintf("Unexpected field '%s' not defined in schema", dataKey), dataKey)
		}
	}

	return len(v.issues) == 0, v.issues
}

// validateFieldType checks if a value's type matches the expected type.
func (v *Validator) validateFieldType(value any, fieldDef *FieldDefinition, path string) bool {
	if value == nil {
		if fieldDef.Required {
			v.addIssue("NULL_VALUE", "Field cannot be null", path)
			return false
		}
		return true
	}

	switch fieldDef.Type {
	case FieldTypeString:
		if _, ok := value.(string); !ok {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected string, got %T", value), path)
			return false
		}
	case FieldTypeFloat:
		if !isNumericType(value) {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected number, got %T", value), path)
			return false
		}
	case FieldTypeInteger:
		if !isIntegerType(value) {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected integer, got %T", value), path)
			return false
		}
	case FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected boolean, got %T", value), path)
			return false
		}
	case FieldTypeDate:
		if !isDateType(value) {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected date, got %T", value), path)
			return false
		}
	}
	return true
}

func isNumericType(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func isIntegerType(value any) bool {
	switch val := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return val == float64(int64(val))
	case float32:
		return val == float32(int64(val))
	}
	return false
}

// isDateType accepts time values, epoch milliseconds and RFC 3339 strings.
func isDateType(value any) bool {
	switch val := value.(type) {
	case time.Time, *time.Time:
		return true
	case string:
		if _, err := time.Parse(time.RFC3339Nano, val); err == nil {
			return true
		}
		_, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return err == nil
	}
	return isIntegerType(value)
}

// addIssue adds a new validation issue to the validator's list of issues.
func (v *Validator) addIssue(code, message, path string) {
	v.issues = append(v.issues, Issue{
		Code:     code,
		Message:  message,
		Path:     path,
		Severity: "error",
	})
}
