package expressions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/botflowhq/botflow/pkg/schema"
)

// EvalCondition applies a comparison operator to a variable's current value
// and an expected value. Coercion follows natural comparison semantics:
// numeric compare for greater/less, string containment for
// contains/starts/ends, and emptiness meaning falsy or zero-length.
// Unknown operators evaluate to false.
func EvalCondition(op schema.ConditionOperator, actual, expected any) bool {
	switch op {
	case schema.OpEquals:
		return looseEquals(actual, expected)
	case schema.OpNotEquals:
		return !looseEquals(actual, expected)
	case schema.OpGreater:
		a, aok := toNumber(actual)
		b, bok := toNumber(expected)
		return aok && bok && a > b
	case schema.OpLess:
		a, aok := toNumber(actual)
		b, bok := toNumber(expected)
		return aok && bok && a < b
	case schema.OpContains:
		return strings.Contains(toString(actual), toString(expected))
	case schema.OpStartsWith:
		return strings.HasPrefix(toString(actual), toString(expected))
	case schema.OpEndsWith:
		return strings.HasSuffix(toString(actual), toString(expected))
	case schema.OpIsEmpty:
		return isEmpty(actual)
	case schema.OpIsNotEmpty:
		return !isEmpty(actual)
	default:
		return false
	}
}

// looseEquals compares numerically when both sides coerce to numbers,
// otherwise by string representation. "5" therefore equals 5.
func looseEquals(a, b any) bool {
	if an, aok := toNumber(a); aok {
		if bn, bok := toNumber(b); bok {
			return an == bn
		}
	}
	return toString(a) == toString(b)
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case float64:
		return val == 0
	case int:
		return val == 0
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
