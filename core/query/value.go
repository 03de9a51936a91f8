package query

import (
	"encoding/json"
	"sort"

	"github.com/asaidimu/go-n1ql/core/schema"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindArray
	KindObject
)

// Value is a decoded document value: null, a scalar, an array or an object.
// Normalization walks Values explicitly instead of reflecting over any.
type Value struct {
	kind   Kind
	scalar any
	items  []Value
	fields map[string]Value
}

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// Scalar wraps a non-container value.
func Scalar(v any) Value { return Value{kind: KindScalar, scalar: v} }

// Array wraps a list of values.
func Array(items []Value) Value { return Value{kind: KindArray, items: items} }

// Object wraps a mapping of values.
func Object(fields map[string]Value) Value { return Value{kind: KindObject, fields: fields} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// Scalar returns the wrapped scalar; nil for other kinds.
func (v Value) Scalar() any { return v.scalar }

// Items returns the elements of an array value.
func (v Value) Items() []Value { return v.items }

// Fields returns the members of an object value.
func (v Value) Fields() map[string]Value { return v.fields }

// Field returns one member of an object value.
func (v Value) Field(name string) (Value, bool) {
	f, ok := v.fields[name]
	return f, ok
}

// Keys returns the member names of an object value, sorted.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FromAny converts decoded JSON (maps, slices, scalars) into a Value.
func FromAny(raw any) Value {
	switch val := raw.(type) {
	case nil:
		return Null()
	case Value:
		return val
	case map[string]any:
		return objectFrom(val)
	case schema.Document:
		return objectFrom(val)
	case []any:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = FromAny(item)
		}
		return Array(items)
	case []map[string]any:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = objectFrom(item)
		}
		return Array(items)
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(val, &decoded); err != nil {
			return Scalar(string(val))
		}
		return FromAny(decoded)
	default:
		return Scalar(val)
	}
}

func objectFrom(m map[string]any) Value {
	fields := make(map[string]Value, len(m))
	for k, item := range m {
		fields[k] = FromAny(item)
	}
	return Object(fields)
}

// Interface converts the Value back into plain Go values.
func (v Value) Interface() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindArray:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		return v.Document()
	default:
		return nil
	}
}

// Document converts an object value into a Document; other kinds yield nil.
func (v Value) Document() schema.Document {
	if v.kind != KindObject {
		return nil
	}
	doc := make(schema.Document, len(v.fields))
	for k, f := range v.fields {
		doc[k] = f.Interface()
	}
	return doc
}

// Visitor rewrites a Value. Implementations call Walk to descend.
type Visitor interface {
	VisitObject(v Value) Value
	VisitArray(v Value) Value
	VisitScalar(v Value) Value
}

// Walk dispatches v to the visitor method matching its kind.
func Walk(vis Visitor, v Value) Value {
	switch v.kind {
	case KindObject:
		return vis.VisitObject(v)
	case KindArray:
		return vis.VisitArray(v)
	case KindScalar:
		return vis.VisitScalar(v)
	default:
		return v
	}
}
