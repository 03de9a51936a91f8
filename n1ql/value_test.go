package n1ql

import (
	"testing"
	"time"

	"github.com/asaidimu/go-n1ql/core/query"
	"github.com/asaidimu/go-n1ql/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	nameField     = &schema.FieldDefinition{Name: "name", Type: schema.FieldTypeString}
	idField       = &schema.FieldDefinition{Name: "id", Type: schema.FieldTypeString, PrimaryKey: true}
	birthdayField = &schema.FieldDefinition{Name: "birthday", Type: schema.FieldTypeDate}
	ageField      = &schema.FieldDefinition{Name: "age", Type: schema.FieldTypeInteger}
)

func TestPrepareValue_Heuristic(t *testing.T) {
	d := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"string", "Hola", `"Hola"`},
		{"int", 3, "3"},
		{"mixed slice", []any{"hola", 23, "asdf"}, `"hola",23,"asdf"`},
		{"typed slice", []string{"a", "b"}, `"a","b"`},
		{"date", d, `"2020-01-02T03:04:05Z"`},
		{"nil", nil, "NULL"},
		{"float", 2.5, "2.5"},
		{"large float", 1e21, "1000000000000000000000"},
		{"bool", true, "true"},
		{"numeric string", "42", "42"},
		{"quote in string", `say "hi"`, `"say \"hi\""`},
		{"html characters", "<a&b>", `"<a&b>"`},
		{"raw", query.Raw("NOW_MILLIS()"), "NOW_MILLIS()"},
		{"map", map[string]any{"a": 1}, `{"a":1}`},
		{"pointer", query.IntPtr(9), "9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PrepareValue(tt.value, nil, "", false)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPrepareValue_Typed(t *testing.T) {
	t.Run("string field is lower-cased", func(t *testing.T) {
		got, err := PrepareValue("Tomas", nameField, "id", false)
		require.NoError(t, err)
		assert.Equal(t, `"tomas"`, got)
	})
	t.Run("case sensitive string field", func(t *testing.T) {
		got, err := PrepareValue("Tomas", nameField, "id", true)
		require.NoError(t, err)
		assert.Equal(t, `"Tomas"`, got)
	})
	t.Run("primary key is never lower-cased", func(t *testing.T) {
		got, err := PrepareValue("person::ABC", idField, "id", false)
		require.NoError(t, err)
		assert.Equal(t, `"person::ABC"`, got)
	})
	t.Run("numeric value on string field stays quoted", func(t *testing.T) {
		got, err := PrepareValue(3, nameField, "id", false)
		require.NoError(t, err)
		assert.Equal(t, `"3"`, got)
	})
	t.Run("date field", func(t *testing.T) {
		got, err := PrepareValue("2020-01-02", birthdayField, "id", false)
		require.NoError(t, err)
		assert.Equal(t, `MILLIS("2020-01-02T00:00:00Z")`, got)

		got, err = PrepareValue(int64(1577934245000), birthdayField, "id", false)
		require.NoError(t, err)
		assert.Equal(t, `MILLIS("2020-01-02T03:04:05Z")`, got)
	})
	t.Run("invalid date", func(t *testing.T) {
		_, err := PrepareValue("not a date", birthdayField, "id", false)
		assert.True(t, schema.IsConfigurationError(err))
	})
	t.Run("integer field uses heuristic", func(t *testing.T) {
		got, err := PrepareValue(30, ageField, "id", false)
		require.NoError(t, err)
		assert.Equal(t, "30", got)
	})
	t.Run("slice on string field", func(t *testing.T) {
		got, err := PrepareValue([]any{"A", "b"}, nameField, "id", false)
		require.NoError(t, err)
		assert.Equal(t, `"a","b"`, got)
	})
}

func TestPrepareValue_RejectsFunctions(t *testing.T) {
	_, err := PrepareValue(func() {}, nil, "", false)
	require.Error(t, err)
	assert.True(t, schema.IsConfigurationError(err))
}

func TestPrepareAssignment(t *testing.T) {
	d := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name     string
		value    any
		field    *schema.FieldDefinition
		expected string
	}{
		{"string keeps case", "Tomas", nameField, `"Tomas"`},
		{"numeric string stays a string", "42", nameField, `"42"`},
		{"number", 42, ageField, "42"},
		{"time", d, birthdayField, `"2020-01-02T03:04:05Z"`},
		{"date string is normalized", "2020-01-02", birthdayField, `"2020-01-02T00:00:00Z"`},
		{"nil", nil, nil, "NULL"},
		{"map", map[string]any{"city": "Lima"}, nil, `{"city":"Lima"}`},
		{"slice", []string{"a", "b"}, nil, `["a","b"]`},
		{"raw", query.Raw("NOW_STR()"), nil, "NOW_STR()"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PrepareAssignment(tt.value, tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := PrepareAssignment(func() {}, nil)
	assert.Error(t, err)
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "`name`", Escape("name"))
	assert.Equal(t, "`we``ird`", Escape("we`ird"))
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2020-01-02T03:04:05Z", "2020-01-02T03:04:05.123+02:00", "2020-01-02", "11/11/11", "2020-01-02 03:04:05"} {
		_, ok := ParseDateString(s)
		assert.True(t, ok, s)
	}
	for _, s := range []string{"", "Tomas", "17:50", "8:00am"} {
		_, ok := ParseDateString(s)
		assert.False(t, ok, s)
	}
	got, ok := ParseDate(int64(0))
	require.True(t, ok)
	assert.Equal(t, time.Unix(0, 0).UTC(), got)

	_, ok = ParseDate(true)
	assert.False(t, ok)
}
