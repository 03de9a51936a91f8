package query

import (
	"testing"

	"github.com/asaidimu/go-n1ql/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCriteria_KeepsDocumentOrder(t *testing.T) {
	c, err := ParseCriteria([]byte(`{"name": "Tomas", "age": {">": 30, "<=": 60}, "city": "Lima"}`))
	require.NoError(t, err)
	require.Len(t, c, 4)
	assert.Equal(t, Condition{Field: "name", Operator: OperatorEq, Value: "Tomas"}, *c[0].Condition)
	assert.Equal(t, Condition{Field: "age", Operator: OperatorGreaterThan, Value: int64(30)}, *c[1].Condition)
	assert.Equal(t, Condition{Field: "age", Operator: OperatorLessOrEqual, Value: int64(60)}, *c[2].Condition)
	assert.Equal(t, "city", c[3].Condition.Field)
}

func TestParseCriteria_Forms(t *testing.T) {
	c, err := ParseCriteria([]byte(`{
		"tags": ["a", 1, "b"],
		"like": {"email": "%@x.com"},
		"or": [{"city": "Bogota"}, {"city": "Lima", "age": {"lessThan": 3.5}}],
		"deleted": null
	}`))
	require.NoError(t, err)
	require.Len(t, c, 4)

	assert.Equal(t, OperatorIn, c[0].Condition.Operator)
	assert.Equal(t, []any{"a", int64(1), "b"}, c[0].Condition.Value)

	assert.Equal(t, Condition{Field: "email", Operator: OperatorLike, Value: "%@x.com"}, *c[1].Condition)

	require.Len(t, c[2].Or, 2)
	assert.Len(t, c[2].Or[0], 1)
	require.Len(t, c[2].Or[1], 2)
	assert.Equal(t, Condition{Field: "age", Operator: OperatorLessThanName, Value: 3.5}, *c[2].Or[1][1].Condition)

	assert.Equal(t, Condition{Field: "deleted", Operator: OperatorEq, Value: nil}, *c[3].Condition)
}

func TestParseCriteria_Errors(t *testing.T) {
	tests := map[string]string{
		"not an object":     `[1, 2]`,
		"trailing data":     `{"a": 1} {"b": 2}`,
		"malformed":         `{"a": `,
		"or not a list":     `{"or": {"a": 1}}`,
		"or item not a map": `{"or": [1]}`,
		"like not a map":    `{"like": "abc"}`,
		"empty comparison":  `{"age": {}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCriteria([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestCriteriaFromMap(t *testing.T) {
	c, err := CriteriaFromMap(map[string]any{
		"name": "Tomas",
		"age":  map[string]any{">=": 18},
		"ids":  []string{"a", "b"},
		"or": []map[string]any{
			{"city": "Lima"},
			{"city": "Quito"},
		},
	})
	require.NoError(t, err)
	require.Len(t, c, 4)
	// Go maps are processed alphabetically.
	assert.Equal(t, "age", c[0].Condition.Field)
	assert.Equal(t, OperatorGreaterOrEqual, c[0].Condition.Operator)
	assert.Equal(t, Condition{Field: "ids", Operator: OperatorIn, Value: []any{"a", "b"}}, *c[1].Condition)
	assert.Equal(t, "name", c[2].Condition.Field)
	require.Len(t, c[3].Or, 2)
	assert.Equal(t, "Quito", c[3].Or[1][0].Condition.Value)
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions([]byte(`{
		"where": {"name": "Tomas"},
		"select": ["name", "age"],
		"sort": {"name": 1, "age": -1},
		"limit": 10,
		"skip": 20,
		"caseSensitive": true,
		"testMode": true,
		"doNotReturn": true,
		"returnFormat": "idOnly",
		"consistency": 2
	}`))
	require.NoError(t, err)
	require.Len(t, opts.Where, 1)
	assert.Equal(t, []string{"name", "age"}, opts.Select)
	assert.Equal(t, []SortConfiguration{
		{Field: "name", Direction: SortDirectionAsc},
		{Field: "age", Direction: SortDirectionDesc},
	}, opts.Sort)
	assert.Equal(t, 10, *opts.Limit)
	assert.Equal(t, 20, *opts.Skip)
	assert.True(t, opts.CaseSensitive)
	assert.True(t, opts.StableOrder)
	assert.True(t, opts.DoNotReturn)
	assert.Equal(t, ReturnIDOnly, opts.ReturnFormat)
	assert.Equal(t, ConsistencyRequestPlus, opts.Consistency)
}

func TestParseOptions_Aggregates(t *testing.T) {
	opts, err := ParseOptions([]byte(`{"groupBy": "city", "average": "age", "sum": ["age", "height"], "sort": "city asc, age desc"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"city"}, opts.GroupBy)
	assert.Equal(t, []string{"age"}, opts.Aggregates[AggregationTypeAvg])
	assert.Equal(t, []string{"age", "height"}, opts.Aggregates[AggregationTypeSum])
	assert.Equal(t, []SortConfiguration{
		{Field: "city", Direction: SortDirectionAsc},
		{Field: "age", Direction: SortDirectionDesc},
	}, opts.Sort)
}

func TestParseOptions_Errors(t *testing.T) {
	t.Run("group by without aggregate", func(t *testing.T) {
		_, err := ParseOptions([]byte(`{"groupBy": ["city"]}`))
		require.Error(t, err)
		assert.True(t, schema.IsConfigurationError(err))
	})
	t.Run("unknown option", func(t *testing.T) {
		_, err := ParseOptions([]byte(`{"paginate": true}`))
		assert.True(t, schema.IsConfigurationError(err))
	})
	t.Run("fractional limit", func(t *testing.T) {
		_, err := ParseOptions([]byte(`{"limit": 2.5}`))
		assert.True(t, schema.IsConfigurationError(err))
	})
	t.Run("select of numbers", func(t *testing.T) {
		_, err := ParseOptions([]byte(`{"select": [1]}`))
		assert.True(t, schema.IsConfigurationError(err))
	})
}
