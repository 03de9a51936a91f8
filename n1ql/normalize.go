package n1ql

import (
	"strconv"

	"github.com/asaidimu/go-n1ql/core/query"
	"github.com/asaidimu/go-n1ql/core/schema"
)

// Normalizer implements query.ResponseNormalizer for N1QL rows.
type Normalizer struct{}

// Normalize reshapes rows into records. With a sparse projection or id-only
// records the rows are returned verbatim; see NormalizeRecord otherwise.
func (Normalizer) Normalize(rows []schema.Document, collection string, opts *query.Options) []schema.Document {
	return NormalizeRows(rows, collection, opts)
}

// NormalizeRows applies NormalizeRecord to every row unless opts selects a
// sparse projection or id-only records, in which case rows are returned as
// they are.
func NormalizeRows(rows []schema.Document, collection string, opts *query.Options) []schema.Document {
	if opts.IsSparse() || opts.IDOnly() {
		return rows
	}
	out := make([]schema.Document, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		out = append(out, NormalizeRecord(row, collection))
	}
	return out
}

// NormalizeRecord flattens one row. A SELECT * row has the shape
// {"id": key, "<collection>": {...fields}}; the fields are lifted to the top
// level next to id. Nested values are walked the same way.
//
// String scalars are coerced: plain decimal numbers become int64 or float64
// and strings readable as dates become time.Time. The coercion is a
// heuristic and may misread a string that only looks numeric or date-like;
// callers needing exact types should use a sparse projection.
func NormalizeRecord(row schema.Document, collection string) schema.Document {
	v := NormalizeValue(query.FromAny(row), collection)
	if doc := v.Document(); doc != nil {
		return doc
	}
	return schema.Document{}
}

// NormalizeValue walks v with the unwrapping and coercing visitor.
func NormalizeValue(v query.Value, collection string) query.Value {
	return query.Walk(&unwrapper{collection: collection}, v)
}

// unwrapper is the visitor behind NormalizeValue.
type unwrapper struct {
	collection string
}

func (u *unwrapper) VisitObject(v query.Value) query.Value {
	if inner, key, ok := u.wrapped(v); ok {
		merged := make(map[string]query.Value, len(inner.Fields())+len(v.Fields()))
		for k, f := range inner.Fields() {
			merged[k] = f
		}
		for k, f := range v.Fields() {
			if k != key {
				merged[k] = f
			}
		}
		v = query.Object(merged)
	}
	fields := make(map[string]query.Value, len(v.Fields()))
	for k, f := range v.Fields() {
		if k == schema.DefaultPrimaryKey {
			fields[k] = f
			continue
		}
		fields[k] = query.Walk(u, f)
	}
	return query.Object(fields)
}

// wrapped reports whether v is a row wrapper: an object with a non-empty id
// next to either the collection key or, when it has exactly two keys, one
// other object.
func (u *unwrapper) wrapped(v query.Value) (query.Value, string, bool) {
	id, ok := v.Field(schema.DefaultPrimaryKey)
	if !ok || !present(id) {
		return query.Value{}, "", false
	}
	if u.collection != "" {
		if inner, ok := v.Field(u.collection); ok && inner.Kind() == query.KindObject {
			return inner, u.collection, true
		}
	}
	if len(v.Fields()) != 2 {
		return query.Value{}, "", false
	}
	for _, k := range v.Keys() {
		if k == schema.DefaultPrimaryKey {
			continue
		}
		if inner, _ := v.Field(k); inner.Kind() == query.KindObject {
			return inner, k, true
		}
	}
	return query.Value{}, "", false
}

func present(v query.Value) bool {
	if v.Kind() != query.KindScalar {
		return false
	}
	switch s := v.Scalar().(type) {
	case string:
		return s != ""
	case bool:
		return s
	}
	return v.Scalar() != nil
}

func (u *unwrapper) VisitArray(v query.Value) query.Value {
	items := make([]query.Value, len(v.Items()))
	for i, item := range v.Items() {
		items[i] = query.Walk(u, item)
	}
	return query.Array(items)
}

func (u *unwrapper) VisitScalar(v query.Value) query.Value {
	s, ok := v.Scalar().(string)
	if !ok {
		return v
	}
	if query.IsNumericString(s) {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return query.Scalar(i)
		}
		if f, ok := query.ToFloat64(s); ok {
			return query.Scalar(f)
		}
		return v
	}
	if t, ok := ParseDateString(s); ok {
		return query.Scalar(t)
	}
	return v
}
