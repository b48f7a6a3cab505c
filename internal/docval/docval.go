// Package docval orders arbitrary document field values consistently across
// engine backends.
package docval

import (
	"fmt"
	"strings"
)

// Type ranks. Values of different types order by rank: nil first, then
// booleans, numbers, strings, and everything else by its printed form.
const (
	rankNil = iota
	rankBool
	rankNumber
	rankString
	rankOther
)

// Compare returns a negative, zero or positive value ordering a before,
// equal to, or after b.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case rankNil:
		return 0
	case rankBool:
		av, bv := a.(bool), b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case rankNumber:
		av, bv := toFloat(a), toFloat(b)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case rankString:
		return strings.Compare(a.(string), b.(string))
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return rankNumber
	case string:
		return rankString
	default:
		return rankOther
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
