package mapping

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Celsius float64

func TestConvert(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"string to int", "12", 12},
		{"string float to int", "12.0", int64(12)},
		{"float to int", 3.0, int8(3)},
		{"int to string", int64(5), "5"},
		{"float to string", 2.5, "2.5"},
		{"bool to string", true, "true"},
		{"string to bool", "false", false},
		{"number to bool", int64(1), true},
		{"string to float", "1.25", 1.25},
		{"int to float", int64(2), float32(2)},
		{"string to uint", "7", uint16(7)},
		{"leading zero is decimal", "010", 10},
		{"most negative int", "-9223372036854775808", int64(math.MinInt64)},
		{"string to named", "21.5", Celsius(21.5)},
		{"string to duration", "1m30s", 90 * time.Second},
		{"string to uuid", id.String(), id},
		{"date to time", "2024-02-03", time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)},
		{"millis to time", int64(86400000), time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"any slice", []any{"1", int64(2)}, []int{1, 2}},
		{"scalar to slice", "x", []string{"x"}},
		{"any slice to array", []any{int64(1)}, [2]int{1, 0}},
		{"any map", map[string]any{"1": "a"}, map[int]string{1: "a"}},
		{"to pointer", "4", func() *int { v := 4; return &v }()},
		{"string to bytes", "hi", []byte("hi")},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.in, reflect.TypeOf(tt.want))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Interface())
		})
	}
}

func TestConvert_Failures(t *testing.T) {
	tests := []struct {
		name string
		in   any
		to   reflect.Type
	}{
		{"not a number", "abc", reflect.TypeOf(0)},
		{"fraction to int", 1.5, reflect.TypeOf(0)},
		{"overflow", int64(300), reflect.TypeOf(int8(0))},
		{"negative to uint", int64(-1), reflect.TypeOf(uint(0))},
		{"negative string to uint", "-5", reflect.TypeOf(uint(0))},
		{"int64 overflow", "9223372036854775808", reflect.TypeOf(int64(0))},
		{"int64 overflow as float", float64(1 << 63), reflect.TypeOf(int64(0))},
		{"uint64 overflow", "1e20", reflect.TypeOf(uint64(0))},
		{"hex text", "0x10", reflect.TypeOf(0)},
		{"not a bool", int64(2), reflect.TypeOf(false)},
		{"not a time", "yesterday", reflect.TypeOf(time.Time{})},
		{"array too long", []any{int64(1), int64(2), int64(3)}, reflect.TypeOf([2]int{})},
		{"map to struct", map[string]any{"a": "b"}, reflect.TypeOf(Address{})},
		{"not a uuid", "nope", reflect.TypeOf(uuid.UUID{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Convert(tt.in, tt.to)
			assert.ErrorIs(t, err, ErrConversion)
		})
	}
}
