package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/asaidimu/go-n1ql/core/schema"
)

// member is one key/value pair of a JSON object, in document order.
type member struct {
	key   string
	value any
}

// object is a JSON object that remembers the order of its keys, so that
// predicates come out in the order the caller wrote them.
type object []member

// decodeOrdered reads one JSON value. Objects become object, arrays []any and
// numbers int64 or float64.
func decodeOrdered(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var obj object
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key, got %v", keyTok)
				}
				val, err := decodeOrdered(dec)
				if err != nil {
					return nil, err
				}
				obj = append(obj, member{key: key, value: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			if obj == nil {
				obj = object{}
			}
			return obj, nil
		case '[':
			arr := []any{}
			for dec.More() {
				val, err := decodeOrdered(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		return t.Float64()
	default:
		return t, nil
	}
}

func decodeDocument(data []byte) (object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeOrdered(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode criteria: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after criteria document")
	}
	obj, ok := v.(object)
	if !ok {
		return nil, schema.NewConfigurationError(schema.CodeInvalidOptions, "", "criteria must be a JSON object, got %T", v)
	}
	return obj, nil
}

// ParseCriteria decodes a mapping-style criteria document, keeping the key
// order of the document:
//
//	{"name": "Tomas", "age": {">": 30}, "tags": ["a", "b"],
//	 "or": [{"city": "Bogota"}, {"city": "Lima"}], "like": {"email": "%@x.com"}}
func ParseCriteria(data []byte) (Criteria, error) {
	obj, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}
	return criteriaFromObject(obj)
}

// CriteriaFromMap converts a Go mapping into Criteria. Go maps carry no order,
// so keys are processed alphabetically.
func CriteriaFromMap(m map[string]any) (Criteria, error) {
	return criteriaFromObject(objectFromMap(m))
}

func objectFromMap(m map[string]any) object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	obj := make(object, 0, len(keys))
	for _, k := range keys {
		obj = append(obj, member{key: k, value: toObjectTree(m[k])})
	}
	return obj
}

func toObjectTree(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return objectFromMap(val)
	case schema.Document:
		return objectFromMap(val)
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = objectFromMap(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toObjectTree(item)
		}
		return out
	case []byte:
		return string(val)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return v
}

func criteriaFromObject(obj object) (Criteria, error) {
	var c Criteria
	for _, m := range obj {
		switch {
		case m.key == "or":
			group, err := orFromValue(m.value)
			if err != nil {
				return nil, err
			}
			c = append(c, group)
		case m.key == "like":
			inner, ok := m.value.(object)
			if !ok {
				return nil, schema.NewConfigurationError(schema.CodeInvalidValue, "like", "'like' expects a mapping of attribute to pattern")
			}
			for _, pm := range inner {
				c = append(c, leaf(pm.key, OperatorLike, pm.value))
			}
		default:
			clauses, err := clausesForAttribute(m.key, m.value)
			if err != nil {
				return nil, err
			}
			c = append(c, clauses...)
		}
	}
	return c, nil
}

func orFromValue(v any) (Clause, error) {
	items, ok := v.([]any)
	if !ok {
		return Clause{}, schema.NewConfigurationError(schema.CodeInvalidValue, "or", "'or' expects a list of criteria")
	}
	alternatives := make([]Criteria, 0, len(items))
	for _, item := range items {
		sub, ok := item.(object)
		if !ok {
			return Clause{}, schema.NewConfigurationError(schema.CodeInvalidValue, "or", "'or' alternatives must be mappings, got %T", item)
		}
		alt, err := criteriaFromObject(sub)
		if err != nil {
			return Clause{}, err
		}
		alternatives = append(alternatives, alt)
	}
	return Clause{Or: alternatives}, nil
}

func clausesForAttribute(attr string, v any) (Criteria, error) {
	switch val := v.(type) {
	case []any:
		return Criteria{leaf(attr, OperatorIn, plainValue(val))}, nil
	case object:
		if len(val) == 0 {
			return nil, schema.NewConfigurationError(schema.CodeInvalidValue, attr, "empty comparison for attribute '%s'", attr)
		}
		var c Criteria
		for _, m := range val {
			c = append(c, leaf(attr, ComparisonOperator(m.key), plainValue(m.value)))
		}
		return c, nil
	default:
		return Criteria{leaf(attr, OperatorEq, val)}, nil
	}
}

// plainValue turns ordered objects back into ordinary maps for use as operands.
func plainValue(v any) any {
	switch val := v.(type) {
	case object:
		m := make(map[string]any, len(val))
		for _, mem := range val {
			m[mem.key] = plainValue(mem.value)
		}
		return m
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plainValue(item)
		}
		return out
	default:
		return v
	}
}

func leaf(attr string, op ComparisonOperator, value any) Clause {
	return Clause{Condition: &Condition{Field: attr, Operator: op, Value: value}}
}

// aggregateKeys maps option keys to aggregate functions. "average" is the
// spelling used by mapping layers, "avg" the N1QL one.
var aggregateKeys = map[string]AggregationType{
	"array_agg": AggregationTypeArrayAgg,
	"average":   AggregationTypeAvg,
	"avg":       AggregationTypeAvg,
	"count":     AggregationTypeCount,
	"max":       AggregationTypeMax,
	"min":       AggregationTypeMin,
	"sum":       AggregationTypeSum,
}

// ParseOptions decodes a mapping-style options document:
//
//	{"where": {...}, "select": ["name"], "sort": {"name": 1, "age": -1},
//	 "limit": 10, "skip": 20, "groupBy": "city", "sum": ["age"],
//	 "caseSensitive": true, "consistency": 2}
//
// The result is validated before it is returned.
func ParseOptions(data []byte) (*Options, error) {
	obj, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}
	opts := &Options{}
	for _, m := range obj {
		if fn, ok := aggregateKeys[m.key]; ok {
			fields, err := stringList(m.key, m.value)
			if err != nil {
				return nil, err
			}
			if opts.Aggregates == nil {
				opts.Aggregates = make(Aggregates)
			}
			opts.Aggregates[fn] = append(opts.Aggregates[fn], fields...)
			continue
		}
		switch m.key {
		case "where":
			if m.value == nil {
				continue
			}
			w, ok := m.value.(object)
			if !ok {
				return nil, schema.NewConfigurationError(schema.CodeInvalidOptions, "where", "'where' must be a mapping")
			}
			if opts.Where, err = criteriaFromObject(w); err != nil {
				return nil, err
			}
		case "select":
			if opts.Select, err = stringList(m.key, m.value); err != nil {
				return nil, err
			}
		case "groupBy":
			if opts.GroupBy, err = stringList(m.key, m.value); err != nil {
				return nil, err
			}
		case "sort":
			if opts.Sort, err = parseSort(m.value); err != nil {
				return nil, err
			}
		case "limit":
			if opts.Limit, err = optionalInt(m.key, m.value); err != nil {
				return nil, err
			}
		case "skip":
			if opts.Skip, err = optionalInt(m.key, m.value); err != nil {
				return nil, err
			}
		case "caseSensitive":
			opts.CaseSensitive, _ = m.value.(bool)
		case "stableOrder", "testMode":
			opts.StableOrder, _ = m.value.(bool)
		case "doNotReturn":
			opts.DoNotReturn, _ = m.value.(bool)
		case "returnFormat":
			s, _ := m.value.(string)
			opts.ReturnFormat = ReturnFormat(s)
		case "consistency":
			n, err := optionalInt(m.key, m.value)
			if err != nil {
				return nil, err
			}
			if n != nil {
				opts.Consistency = ConsistencyLevel(*n)
			}
		default:
			return nil, schema.NewConfigurationError(schema.CodeInvalidOptions, m.key, "unknown option '%s'", m.key)
		}
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func stringList(key string, v any) ([]string, error) {
	switch val := v.(type) {
	case string:
		return []string{val}, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, schema.NewConfigurationError(schema.CodeInvalidOptions, key, "'%s' expects attribute names, got %T", key, item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, schema.NewConfigurationError(schema.CodeInvalidOptions, key, "'%s' expects a name or a list of names", key)
}

func optionalInt(key string, v any) (*int, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return IntPtr(int(val)), nil
	case float64:
		if val == float64(int(val)) {
			return IntPtr(int(val)), nil
		}
	}
	return nil, schema.NewConfigurationError(schema.CodeInvalidOptions, key, "'%s' expects an integer", key)
}

// parseSort accepts {"attr": 1|-1|"asc"|"desc", ...} or "attr asc, other desc".
func parseSort(v any) ([]SortConfiguration, error) {
	switch val := v.(type) {
	case object:
		out := make([]SortConfiguration, 0, len(val))
		for _, m := range val {
			out = append(out, SortConfiguration{Field: m.key, Direction: directionOf(m.value)})
		}
		return out, nil
	case string:
		var out []SortConfiguration
		for _, part := range strings.Split(val, ",") {
			fields := strings.Fields(part)
			if len(fields) == 0 {
				continue
			}
			dir := SortDirectionAsc
			if len(fields) > 1 && strings.EqualFold(fields[1], "desc") {
				dir = SortDirectionDesc
			}
			out = append(out, SortConfiguration{Field: fields[0], Direction: dir})
		}
		return out, nil
	}
	return nil, schema.NewConfigurationError(schema.CodeInvalidOptions, "sort", "'sort' expects a mapping or a string")
}

// directionOf maps 1 (and "asc") to ascending; anything else sorts descending.
func directionOf(v any) SortDirection {
	switch val := v.(type) {
	case int64:
		if val == 1 {
			return SortDirectionAsc
		}
	case float64:
		if val == 1 {
			return SortDirectionAsc
		}
	case string:
		if strings.EqualFold(val, "asc") || val == "1" {
			return SortDirectionAsc
		}
	}
	return SortDirectionDesc
}
