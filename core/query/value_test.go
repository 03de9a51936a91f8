package query

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/asaidimu/go-n1ql/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny(t *testing.T) {
	v := FromAny(map[string]any{
		"id":   "1",
		"tags": []any{"a", nil},
		"info": schema.Document{"age": 3},
	})
	require.Equal(t, KindObject, v.Kind())
	assert.Equal(t, []string{"id", "info", "tags"}, v.Keys())

	tags, ok := v.Field("tags")
	require.True(t, ok)
	require.Equal(t, KindArray, tags.Kind())
	assert.Equal(t, KindScalar, tags.Items()[0].Kind())
	assert.Equal(t, KindNull, tags.Items()[1].Kind())

	info, _ := v.Field("info")
	assert.Equal(t, KindObject, info.Kind())

	assert.Equal(t, map[string]any{"id": "1", "tags": []any{"a", nil}, "info": map[string]any{"age": 3}},
		asMap(v.Document()))
}

func TestFromAny_RawMessage(t *testing.T) {
	v := FromAny(json.RawMessage(`{"a": [1, 2]}`))
	require.Equal(t, KindObject, v.Kind())
	a, _ := v.Field("a")
	assert.Len(t, a.Items(), 2)

	bad := FromAny(json.RawMessage(`{`))
	assert.Equal(t, KindScalar, bad.Kind())
}

type upperVisitor struct{}

func (u upperVisitor) VisitObject(v Value) Value {
	fields := make(map[string]Value, len(v.Fields()))
	for k, f := range v.Fields() {
		fields[k] = Walk(u, f)
	}
	return Object(fields)
}

func (u upperVisitor) VisitArray(v Value) Value {
	items := make([]Value, len(v.Items()))
	for i, item := range v.Items() {
		items[i] = Walk(u, item)
	}
	return Array(items)
}

func (upperVisitor) VisitScalar(v Value) Value {
	if s, ok := v.Scalar().(string); ok {
		return Scalar(strings.ToUpper(s))
	}
	return v
}

func TestWalk(t *testing.T) {
	in := FromAny(map[string]any{"a": "x", "b": []any{"y", 1, nil, map[string]any{"c": "z"}}})
	out := Walk(upperVisitor{}, in).Interface()
	assert.Equal(t, map[string]any{"a": "X", "b": []any{"Y", 1, nil, map[string]any{"c": "Z"}}}, asMap(out))
	assert.Nil(t, Walk(upperVisitor{}, Null()).Interface())
}

// asMap turns nested Documents into plain maps for comparison.
func asMap(v any) any {
	switch val := v.(type) {
	case schema.Document:
		return asMap(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = asMap(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = asMap(item)
		}
		return out
	default:
		return v
	}
}
