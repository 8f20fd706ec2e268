package expressions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/botflowhq/botflow/pkg/schema"
)

func TestEvalConditionEquals(t *testing.T) {
	assert.True(t, EvalCondition(schema.OpEquals, "a", "a"))
	assert.False(t, EvalCondition(schema.OpEquals, "a", "b"))

	// Numeric coercion: "5" equals 5.
	assert.True(t, EvalCondition(schema.OpEquals, "5", float64(5)))
	assert.True(t, EvalCondition(schema.OpEquals, 5, "5.0"))

	assert.True(t, EvalCondition(schema.OpNotEquals, "a", "b"))
	assert.False(t, EvalCondition(schema.OpNotEquals, float64(1), 1))
}

func TestEvalConditionOrdering(t *testing.T) {
	assert.True(t, EvalCondition(schema.OpGreater, float64(15), float64(10)))
	assert.False(t, EvalCondition(schema.OpGreater, float64(10), float64(10)))
	assert.True(t, EvalCondition(schema.OpLess, "3", float64(4)))

	// Non-numeric operands never satisfy an ordering.
	assert.False(t, EvalCondition(schema.OpGreater, "abc", float64(1)))
	assert.False(t, EvalCondition(schema.OpLess, nil, float64(1)))
}

func TestEvalConditionStrings(t *testing.T) {
	assert.True(t, EvalCondition(schema.OpContains, "hello world", "lo wo"))
	assert.False(t, EvalCondition(schema.OpContains, "hello", "xyz"))
	assert.True(t, EvalCondition(schema.OpStartsWith, "hello", "he"))
	assert.True(t, EvalCondition(schema.OpEndsWith, "hello", "lo"))

	// Non-strings compare by their rendered form.
	assert.True(t, EvalCondition(schema.OpContains, float64(123), "2"))
}

func TestEvalConditionEmptiness(t *testing.T) {
	assert.True(t, EvalCondition(schema.OpIsEmpty, nil, nil))
	assert.True(t, EvalCondition(schema.OpIsEmpty, "", nil))
	assert.True(t, EvalCondition(schema.OpIsEmpty, float64(0), nil))
	assert.True(t, EvalCondition(schema.OpIsEmpty, false, nil))
	assert.True(t, EvalCondition(schema.OpIsEmpty, []any{}, nil))
	assert.True(t, EvalCondition(schema.OpIsEmpty, map[string]any{}, nil))

	assert.False(t, EvalCondition(schema.OpIsEmpty, "x", nil))
	assert.True(t, EvalCondition(schema.OpIsNotEmpty, []any{1}, nil))
	assert.False(t, EvalCondition(schema.OpIsNotEmpty, "", nil))
}

func TestEvalConditionUnknownOperator(t *testing.T) {
	assert.False(t, EvalCondition("matches_regex", "a", "a"))
}
