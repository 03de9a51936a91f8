package n1ql

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/asaidimu/go-n1ql/core/query"
	"github.com/asaidimu/go-n1ql/core/schema"
)

// Escape wraps an identifier in back-ticks so reserved words can be used as
// attribute names.
func Escape(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

// Quote returns s as a double-quoted N1QL string literal.
func Quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

// jsonLiteral renders v as a JSON literal, which N1QL accepts for objects and
// arrays.
func jsonLiteral(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", schema.NewConfigurationError(schema.CodeInvalidValue, "", "cannot encode %T: %v", v, err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// PrepareValue renders a value as a literal for a WHERE clause.
//
// The field descriptor, when known, directs formatting: date fields become
// MILLIS("<RFC3339>") and string fields a quoted literal, lower-cased unless
// caseSensitive is set or the field is the primary key. Without a descriptor
// numbers and plain-decimal strings are emitted bare and everything else is
// quoted. Slices are rendered element-wise and comma-joined. query.Raw is
// emitted verbatim.
func PrepareValue(value any, field *schema.FieldDefinition, primaryKey string, caseSensitive bool) (string, error) {
	switch val := value.(type) {
	case nil:
		return "NULL", nil
	case query.Raw:
		return string(val), nil
	case []byte:
		return PrepareValue(string(val), field, primaryKey, caseSensitive)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Func:
		return "", schema.NewConfigurationError(schema.CodeInvalidValue, fieldName(field), "functions cannot be used as values")
	case reflect.Pointer:
		if rv.IsNil() {
			return "NULL", nil
		}
		return PrepareValue(rv.Elem().Interface(), field, primaryKey, caseSensitive)
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			p, err := PrepareValue(rv.Index(i).Interface(), field, primaryKey, caseSensitive)
			if err != nil {
				return "", err
			}
			parts[i] = p
		}
		return strings.Join(parts, ","), nil
	}

	if field != nil {
		switch field.Type {
		case schema.FieldTypeDate:
			t, ok := ParseDate(value)
			if !ok {
				return "", schema.NewConfigurationError(schema.CodeInvalidValue, field.Name, "'%v' is not a valid date for attribute '%s'", value, field.Name)
			}
			return `MILLIS("` + formatDate(t) + `")`, nil
		case schema.FieldTypeString:
			s, ok := value.(string)
			if !ok {
				return Quote(scalarString(value)), nil
			}
			if !caseSensitive && field.Name != primaryKey && !field.PrimaryKey {
				s = strings.ToLower(s)
			}
			return Quote(s), nil
		}
	}
	return heuristicLiteral(value)
}

// heuristicLiteral formats a value whose type is not known from a schema.
func heuristicLiteral(value any) (string, error) {
	switch val := value.(type) {
	case time.Time:
		return Quote(formatDate(val)), nil
	case bool:
		return strconv.FormatBool(val), nil
	case string:
		if query.IsNumericString(val) {
			return val, nil
		}
		return Quote(val), nil
	case json.Number:
		return val.String(), nil
	case float32, float64:
		f, _ := query.ToFloat64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", schema.NewConfigurationError(schema.CodeInvalidValue, "", "%v has no literal form", f)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return scalarString(val), nil
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Map, reflect.Struct:
		return jsonLiteral(value)
	case reflect.String:
		return heuristicLiteral(reflect.ValueOf(value).String())
	}
	return Quote(scalarString(value)), nil
}

// PrepareAssignment renders a value for the SET clause of an UPDATE. Values
// are stored as given: strings are never lower-cased, dates are stored as
// RFC3339 strings and maps or slices are written as JSON.
func PrepareAssignment(value any, field *schema.FieldDefinition) (string, error) {
	switch val := value.(type) {
	case nil:
		return "NULL", nil
	case query.Raw:
		return string(val), nil
	case time.Time:
		return Quote(formatDate(val)), nil
	case string:
		if field != nil && field.Type == schema.FieldTypeDate {
			if t, ok := ParseDateString(val); ok {
				return Quote(formatDate(t)), nil
			}
		}
		return Quote(val), nil
	}
	if reflect.ValueOf(value).Kind() == reflect.Func {
		return "", schema.NewConfigurationError(schema.CodeInvalidValue, fieldName(field), "functions cannot be used as values")
	}
	return jsonLiteral(value)
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32)
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func fieldName(field *schema.FieldDefinition) string {
	if field == nil {
		return ""
	}
	return field.Name
}
