package n1ql

import (
	"errors"
	"testing"

	"github.com/asaidimu/go-n1ql/core/query"
	"github.com/asaidimu/go-n1ql/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personSchema(t *testing.T) *schema.SchemaDefinition {
	t.Helper()
	s := &schema.SchemaDefinition{
		Name: "person",
		Fields: map[string]*schema.FieldDefinition{
			"name":     {Type: schema.FieldTypeString},
			"lastName": {Type: schema.FieldTypeString},
			"age":      {Type: schema.FieldTypeInteger},
			"birthday": {Type: schema.FieldTypeDate},
			"address":  {Type: schema.FieldTypeJSON},
			"active":   {Type: schema.FieldTypeBoolean},
		},
	}
	require.NoError(t, s.Normalize())
	return s
}

func TestPrepareWhereValue(t *testing.T) {
	tests := []struct {
		op       query.ComparisonOperator
		value    any
		expected string
	}{
		// null and missing
		{"!", nil, "someAttr IS NOT NULL"},
		{"!", "missing", "someAttr IS NOT MISSING"},
		{"=", nil, "someAttr IS NULL"},
		{"=", "missing", "someAttr IS MISSING"},
		{"=", "MISSING", "someAttr IS MISSING"},

		// strings
		{"<", "TAL", `someAttr<"TAL"`},
		{"lessThan", "TAL", `someAttr<"TAL"`},
		{"<=", "TAL", `someAttr<="TAL"`},
		{"lessThanOrEqual", "TAL", `someAttr<="TAL"`},
		{">", "TAL", `someAttr>"TAL"`},
		{"greaterThan", "TAL", `someAttr>"TAL"`},
		{">=", "TAL", `someAttr>="TAL"`},
		{"greaterThanOrEqual", "TAL", `someAttr>="TAL"`},
		{"!", "TAL", `someAttr<>"TAL"`},
		{"not", "TAL", `someAttr<>"TAL"`},
		{"like", "TAL", `someAttr LIKE "TAL"`},
		{"contains", "TAL", `someAttr LIKE "%TAL%"`},
		{"startsWith", "TAL", `someAttr LIKE "TAL%"`},
		{"endsWith", "TAL", `someAttr LIKE "%TAL"`},
		{"contains", `say "hi"`, `someAttr LIKE "%say hi%"`},
		{"startsWith", `"quoted`, `someAttr LIKE "quoted%"`},
		{"endsWith", `tail"`, `someAttr LIKE "%tail"`},
		{"contains", `a\b`, `someAttr LIKE "%a\\b%"`},
		{"contains", 3, `someAttr LIKE "%3%"`},
		{"=", "TAL", `someAttr = "TAL"`},

		// integers
		{"<", 3, "someAttr<3"},
		{"lessThan", 3, "someAttr<3"},
		{"<=", 3, "someAttr<=3"},
		{"lessThanOrEqual", 3, "someAttr<=3"},
		{">", 3, "someAttr>3"},
		{"greaterThan", 3, "someAttr>3"},
		{">=", 3, "someAttr>=3"},
		{"greaterThanOrEqual", 3, "someAttr>=3"},
		{"!", 3, "someAttr<>3"},
		{"not", 3, "someAttr<>3"},
		{"=", 3, "someAttr = 3"},

		// arrays
		{"IN", []any{"asdf", "asdfdwd"}, `(someAttr IN ["asdf","asdfdwd"])`},
		{"!", []any{"a", 1}, `(someAttr NOT IN ["a",1])`},
		{"=", []string{"a", "b"}, `(someAttr IN ["a","b"])`},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			got, err := PrepareWhereValue(tt.op, tt.value, "someAttr")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPrepareWhereValue_UnknownOperator(t *testing.T) {
	_, err := PrepareWhereValue("between", 3, "someAttr")
	var cfgErr *schema.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, schema.CodeUnknownOperator, cfgErr.Code)
}

func TestWhere(t *testing.T) {
	single := query.NewCriteria().Where("name").Eq("Tomas").Build()
	multi, err := query.ParseCriteria([]byte(`{"name": "Tomas", "lastName": "Ruiz"}`))
	require.NoError(t, err)

	tests := []struct {
		name       string
		criteria   query.Criteria
		collection string
		expected   string
	}{
		{"single condition", single, "", ` WHERE name = "Tomas"`},
		{"single condition scoped", single, "person", ` WHERE name = "Tomas" AND META(person).id LIKE "person::%"`},
		{"multiple conditions", multi, "", ` WHERE name = "Tomas" AND lastName = "Ruiz"`},
		{"multiple conditions scoped", multi, "person", ` WHERE name = "Tomas" AND lastName = "Ruiz" AND META(person).id LIKE "person::%"`},
		{"nothing to filter", nil, "", ""},
		{"scope only", nil, "person", ` WHERE META(person).id LIKE "person::%"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Where(tt.criteria, tt.collection)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCompiler_EqualityOnlyHasNoArtifacts(t *testing.T) {
	c := NewCompiler("person", personSchema(t), false)
	criteria, err := query.CriteriaFromMap(map[string]any{"name": "A", "lastName": "B", "age": 3})
	require.NoError(t, err)

	got, err := c.Where(criteria)
	require.NoError(t, err)
	assert.Equal(t, " WHERE person.`age` = 3 AND lower(person.`lastName`) = \"b\" AND lower(person.`name`) = \"a\" AND META(person).id LIKE \"person::%\"", got)
	assert.NotContains(t, got, "AND AND")
	assert.NotRegexp(t, `AND\s*$`, got)
}

func TestCompiler_Attributes(t *testing.T) {
	sc := personSchema(t)
	tests := []struct {
		name          string
		cond          query.Condition
		caseSensitive bool
		expected      string
	}{
		{"primary key is prefixed", query.Condition{Field: "id", Operator: "=", Value: "abc"}, false, `META(person).id = "person::abc"`},
		{"primary key already prefixed", query.Condition{Field: "id", Operator: "=", Value: "person::abc"}, false, `META(person).id = "person::abc"`},
		{"primary key list", query.Condition{Field: "id", Operator: "IN", Value: []any{"a", "B"}}, false, `(META(person).id IN ["person::a","person::B"])`},
		{"primary key prefix search", query.Condition{Field: "id", Operator: "startsWith", Value: "person::a"}, false, `META(person).id LIKE "person::a%"`},
		{"string lowered", query.Condition{Field: "name", Operator: "=", Value: "Tomas"}, false, "lower(person.`name`) = \"tomas\""},
		{"string case sensitive", query.Condition{Field: "name", Operator: "=", Value: "Tomas"}, true, "person.`name` = \"Tomas\""},
		{"string contains", query.Condition{Field: "name", Operator: "contains", Value: "To"}, false, "lower(person.`name`) LIKE \"%to%\""},
		{"date", query.Condition{Field: "birthday", Operator: ">", Value: "2020-01-02"}, false, "MILLIS(person.`birthday`)>MILLIS(\"2020-01-02T00:00:00Z\")"},
		{"integer", query.Condition{Field: "age", Operator: ">=", Value: 18}, false, "person.`age`>=18"},
		{"boolean", query.Condition{Field: "active", Operator: "=", Value: true}, false, "person.`active` = true"},
		{"nested path", query.Condition{Field: "address.city", Operator: "=", Value: "Lima"}, false, "person.`address`.`city` = \"Lima\""},
		{"null test", query.Condition{Field: "name", Operator: "!", Value: nil}, false, "lower(person.`name`) IS NOT NULL"},
		{"missing test", query.Condition{Field: "age", Operator: "=", Value: "Missing"}, false, "person.`age` IS MISSING"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewCompiler("person", sc, tt.caseSensitive).Condition(tt.cond)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCompiler_Or(t *testing.T) {
	criteria, err := query.ParseCriteria([]byte(`{
		"or": [{"name": "a", "age": {"<": 3}}, {"lastName": "b"}],
		"active": true
	}`))
	require.NoError(t, err)

	predicates, err := NewCompiler("person", personSchema(t), false).Predicates(criteria)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"((lower(person.`name`) = \"a\" AND person.`age`<3) OR (lower(person.`lastName`) = \"b\"))",
		"person.`active` = true",
	}, predicates)
}

func TestCompiler_NestedOr(t *testing.T) {
	criteria := query.NewCriteria().Or(
		query.NewCriteria().Where("x").Eq(1).Build(),
		query.NewCriteria().Or(
			query.NewCriteria().Where("y").Eq(2).Build(),
			query.NewCriteria().Where("z").Eq(3).Build(),
		).Build(),
	).Build()
	got, err := Where(criteria, "")
	require.NoError(t, err)
	assert.Equal(t, " WHERE ((x = 1) OR (((y = 2) OR (z = 3))))", got)
}

func TestCompiler_Errors(t *testing.T) {
	c := NewCompiler("person", personSchema(t), false)

	_, err := c.Condition(query.Condition{Field: "nickname", Operator: "=", Value: "x"})
	var cfgErr *schema.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, schema.CodeUnknownAttribute, cfgErr.Code)

	for _, op := range []query.ComparisonOperator{"contains", "startsWith", "endsWith"} {
		_, err = c.Condition(query.Condition{Field: "birthday", Operator: op, Value: "2020"})
		require.True(t, errors.As(err, &cfgErr), op)
		assert.Equal(t, schema.CodeUnknownOperator, cfgErr.Code)
	}

	_, err = c.Condition(query.Condition{Field: "name", Operator: "~", Value: "x"})
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, schema.CodeUnknownOperator, cfgErr.Code)

	_, err = c.Predicates(query.NewCriteria().Or(query.NewCriteria().Where("nope").Eq(1).Build()).Build())
	assert.True(t, schema.IsConfigurationError(err))
}

func TestDocumentKey(t *testing.T) {
	assert.Equal(t, "person::1", DocumentKey("person", "1"))
	assert.Equal(t, "person::1", DocumentKey("person", "person::1"))
	assert.Equal(t, "1", DocumentKey("", "1"))
}
