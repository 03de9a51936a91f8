package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPtrHelpers(t *testing.T) {
	assert.Equal(t, 7, *IntPtr(7))
	assert.Equal(t, "test_string", *StringPtr("test_string"))
	assert.True(t, *BoolPtr(true))
}

func TestIsNumericString(t *testing.T) {
	for _, s := range []string{"0", "3", "-3", "+3", "3.14", ".5", "5.", "1e10", "1.5E-3"} {
		assert.True(t, IsNumericString(s), s)
	}
	for _, s := range []string{"", "abc", "0x1F", "NaN", "Inf", "1,000", "1 2", "3a", "-"} {
		assert.False(t, IsNumericString(s), s)
	}
}

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected float64
		success  bool
	}{
		{"int", 10, 10.0, true},
		{"int8", int8(20), 20.0, true},
		{"int16", int16(30), 30.0, true},
		{"int32", int32(40), 40.0, true},
		{"int64", int64(50), 50.0, true},
		{"uint", uint(60), 60.0, true},
		{"uint8", uint8(70), 70.0, true},
		{"uint16", uint16(80), 80.0, true},
		{"uint32", uint32(90), 90.0, true},
		{"uint64", uint64(100), 100.0, true},
		{"float32", float32(110.5), 110.5, true},
		{"float64", 120.5, 120.5, true},
		{"json number", json.Number("1.25"), 1.25, true},
		{"numeric string", "42", 42, true},
		{"hex string", "0x10", 0, false},
		{"word", "abc", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToFloat64(tt.input)
			assert.Equal(t, tt.success, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}
