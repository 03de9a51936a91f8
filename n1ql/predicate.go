package n1ql

import (
	"reflect"
	"strings"

	"github.com/asaidimu/go-n1ql/core/query"
	"github.com/asaidimu/go-n1ql/core/schema"
)

// KeySeparator joins a collection name and a document id into a store key.
const KeySeparator = "::"

// DocumentKey returns the store key of a document: "collection::id". Ids that
// already carry the collection prefix are returned unchanged.
func DocumentKey(collection, id string) string {
	prefix := collection + KeySeparator
	if collection == "" || strings.HasPrefix(id, prefix) {
		return id
	}
	return prefix + id
}

// Compiler turns a criteria tree into N1QL predicates for one collection.
// A Compiler without a schema uses attribute names as given.
type Compiler struct {
	collection    string
	schema        *schema.SchemaDefinition
	caseSensitive bool
}

// NewCompiler creates a predicate compiler. The schema may be nil.
func NewCompiler(collection string, sc *schema.SchemaDefinition, caseSensitive bool) *Compiler {
	return &Compiler{collection: collection, schema: sc, caseSensitive: caseSensitive}
}

// Predicates compiles each clause of the criteria into one predicate string.
// The caller joins them with AND.
func (c *Compiler) Predicates(criteria query.Criteria) ([]string, error) {
	predicates := make([]string, 0, len(criteria))
	for _, clause := range criteria {
		switch {
		case clause.Condition != nil:
			p, err := c.Condition(*clause.Condition)
			if err != nil {
				return nil, err
			}
			predicates = append(predicates, p)
		case len(clause.Or) > 0:
			p, err := c.or(clause.Or)
			if err != nil {
				return nil, err
			}
			if p != "" {
				predicates = append(predicates, p)
			}
		}
	}
	return predicates, nil
}

func (c *Compiler) or(alternatives []query.Criteria) (string, error) {
	parts := make([]string, 0, len(alternatives))
	for _, alt := range alternatives {
		sub, err := c.Predicates(alt)
		if err != nil {
			return "", err
		}
		if len(sub) == 0 {
			continue
		}
		parts = append(parts, "("+strings.Join(sub, " AND ")+")")
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", nil
}

// Where returns the WHERE clause for the criteria, scoped to the collection's
// documents when the compiler has a collection. It returns an empty string
// when there is nothing to filter on.
func (c *Compiler) Where(criteria query.Criteria) (string, error) {
	predicates, err := c.Predicates(criteria)
	if err != nil {
		return "", err
	}
	if c.collection != "" {
		predicates = append(predicates, c.TypeScope())
	}
	if len(predicates) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(predicates, " AND "), nil
}

// TypeScope is the predicate restricting a statement to the documents of the
// compiler's collection.
func (c *Compiler) TypeScope() string {
	return metaID(c.collection) + ` LIKE "` + c.collection + KeySeparator + `%"`
}

// Condition compiles a single leaf.
func (c *Compiler) Condition(cond query.Condition) (string, error) {
	if !cond.Operator.IsKnown() {
		return "", schema.NewConfigurationError(schema.CodeUnknownOperator, cond.Field, "unknown comparator: %s", cond.Operator)
	}
	attr, field, err := c.attribute(cond.Field, true)
	if err != nil {
		return "", err
	}

	raw := cond.Value
	primaryKey := ""
	if c.schema != nil {
		primaryKey = c.schema.PrimaryKey
		if field != nil && field.PrimaryKey && keyed(cond.Operator) {
			raw = c.keyValue(raw)
		}
	}
	op := cond.Operator
	if op == query.OperatorEq && isSlice(raw) {
		op = query.OperatorIn
	}
	if pattern(op) {
		if field != nil && field.Type == schema.FieldTypeDate {
			return "", schema.NewConfigurationError(schema.CodeUnknownOperator, cond.Field, "%s cannot be applied to date attribute '%s'", op, cond.Field)
		}
		// Quotes are dropped from the pattern text before it is escaped.
		if str, ok := raw.(string); ok {
			raw = strings.ReplaceAll(str, `"`, "")
		}
	}

	// NULL and MISSING tests carry no operand.
	literal := ""
	if !sentinelOperator(op) || (raw != nil && !isMissing(raw)) {
		literal, err = PrepareValue(raw, field, primaryKey, c.caseSensitive)
		if err != nil {
			return "", err
		}
	}
	return Comparison(op, attr, raw, literal)
}

// keyed reports whether the operands of op are whole document ids, which are
// stored with their collection prefix.
func keyed(op query.ComparisonOperator) bool {
	switch op {
	case query.OperatorEq, query.OperatorNot, query.OperatorNotName, query.OperatorIn:
		return true
	}
	return false
}

// pattern reports whether op is rendered as a LIKE around its operand.
func pattern(op query.ComparisonOperator) bool {
	switch op {
	case query.OperatorContains, query.OperatorStartsWith, query.OperatorEndsWith:
		return true
	}
	return false
}

// sentinelOperator reports whether op turns a nil or MISSING operand into a
// NULL or MISSING test.
func sentinelOperator(op query.ComparisonOperator) bool {
	switch op {
	case query.OperatorEq, query.OperatorNot, query.OperatorNotName:
		return true
	}
	return false
}

// keyValue prefixes id operands with the collection, leaving the NULL and
// MISSING sentinels alone.
func (c *Compiler) keyValue(v any) any {
	switch val := v.(type) {
	case nil, query.Raw:
		return v
	case string:
		if isMissing(val) {
			return v
		}
		return DocumentKey(c.collection, val)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = c.keyValue(rv.Index(i).Interface())
		}
		return out
	}
	return DocumentKey(c.collection, scalarString(v))
}

// Attribute returns the N1QL expression for an attribute as used in a
// comparison: the document id accessor for the primary key, lower() for
// strings in case-insensitive mode and MILLIS() for dates.
func (c *Compiler) Attribute(name string) (string, error) {
	expr, _, err := c.attribute(name, true)
	return expr, err
}

// Path returns the plain qualified path of an attribute, as used for
// projection, grouping and ordering.
func (c *Compiler) Path(name string) (string, error) {
	expr, _, err := c.attribute(name, false)
	return expr, err
}

// attribute resolves name against the schema. The returned descriptor is nil
// when the type of the addressed value is unknown.
func (c *Compiler) attribute(name string, comparison bool) (string, *schema.FieldDefinition, error) {
	if c.schema == nil {
		if name == "" {
			return "", nil, schema.NewConfigurationError(schema.CodeUnknownAttribute, name, "attribute name cannot be empty")
		}
		return name, nil, nil
	}
	field, nested, err := c.schema.Resolve(name)
	if err != nil {
		return "", nil, err
	}
	if nested {
		return c.qualified(name), nil, nil
	}
	if field.PrimaryKey {
		return metaID(c.collection), field, nil
	}
	path := c.qualified(name)
	if !comparison {
		return path, field, nil
	}
	switch {
	case field.Type == schema.FieldTypeString && !c.caseSensitive:
		return "lower(" + path + ")", field, nil
	case field.Type == schema.FieldTypeDate:
		return "MILLIS(" + path + ")", field, nil
	}
	return path, field, nil
}

// qualified escapes every segment of a dotted path and prefixes the
// collection alias.
func (c *Compiler) qualified(name string) string {
	path := escapePath(name)
	if c.collection == "" {
		return path
	}
	return c.collection + "." + path
}

func metaID(collection string) string {
	return "META(" + collection + ").id"
}

// Comparison renders a predicate from an operator, the attribute expression,
// the operand as given and the operand's literal form.
func Comparison(op query.ComparisonOperator, attr string, raw any, literal string) (string, error) {
	switch op {
	case query.OperatorLessThan, query.OperatorLessThanName:
		return attr + "<" + literal, nil
	case query.OperatorLessOrEqual, query.OperatorLessOrEqualName:
		return attr + "<=" + literal, nil
	case query.OperatorGreaterThan, query.OperatorGreaterThanName:
		return attr + ">" + literal, nil
	case query.OperatorGreaterOrEqual, query.OperatorGreaterOrEqualName:
		return attr + ">=" + literal, nil
	case query.OperatorNot, query.OperatorNotName:
		switch {
		case raw == nil:
			return attr + " IS NOT NULL", nil
		case isSlice(raw):
			return "(" + attr + " NOT IN [" + literal + "])", nil
		case isMissing(raw):
			return attr + " IS NOT MISSING", nil
		}
		return attr + "<>" + literal, nil
	case query.OperatorLike:
		return attr + " LIKE " + literal, nil
	case query.OperatorContains:
		return attr + ` LIKE "%` + patternText(literal) + `%"`, nil
	case query.OperatorStartsWith:
		return attr + ` LIKE "` + patternText(literal) + `%"`, nil
	case query.OperatorEndsWith:
		return attr + ` LIKE "%` + patternText(literal) + `"`, nil
	case query.OperatorEq:
		switch {
		case raw == nil:
			return attr + " IS NULL", nil
		case isMissing(raw):
			return attr + " IS MISSING", nil
		}
		return attr + " = " + literal, nil
	case query.OperatorIn:
		return "(" + attr + " IN [" + literal + "])", nil
	}
	return "", schema.NewConfigurationError(schema.CodeUnknownOperator, attr, "unknown comparator: %s", op)
}

// PrepareWhereValue compiles one comparison against an unqualified attribute
// without schema information.
func PrepareWhereValue(op query.ComparisonOperator, value any, attr string) (string, error) {
	return NewCompiler("", nil, false).Condition(query.Condition{Field: attr, Operator: op, Value: value})
}

func isMissing(v any) bool {
	s, ok := v.(string)
	return ok && strings.EqualFold(s, query.Missing)
}

func isSlice(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// patternText returns the body of a string literal so it can be wrapped in
// wildcards. Other literals are returned as is.
func patternText(literal string) string {
	if len(literal) >= 2 && strings.HasPrefix(literal, `"`) && strings.HasSuffix(literal, `"`) {
		return literal[1 : len(literal)-1]
	}
	return literal
}
