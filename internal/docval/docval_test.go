package docval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"nil_equal", nil, nil, 0},
		{"nil_before_bool", nil, false, -1},
		{"false_before_true", false, true, -1},
		{"bool_before_number", true, 0, -1},
		{"numbers_across_widths", int64(2), 2.5, -1},
		{"int_equals_float", 3, float64(3), 0},
		{"number_before_string", 99, "1", -1},
		{"strings", "alice", "bob", -1},
		{"string_before_other", "z", []any{"a"}, -1},
		{"other_by_printed_form", []any{"a"}, []any{"b"}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.a, tt.b)
			switch {
			case tt.want < 0:
				assert.Negative(t, got)
				assert.Positive(t, Compare(tt.b, tt.a))
			case tt.want > 0:
				assert.Positive(t, got)
			default:
				assert.Zero(t, got)
				assert.Zero(t, Compare(tt.b, tt.a))
			}
		})
	}
}
