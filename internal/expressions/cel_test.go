package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botflowhq/botflow/pkg/schema"
)

func newCEL(t *testing.T) *CELEngine {
	t.Helper()
	eng, err := NewCELEngine()
	require.NoError(t, err)
	return eng
}

func TestCELEvaluateBool(t *testing.T) {
	eng := newCEL(t)
	ctx := context.Background()

	data := map[string]any{
		"variables": map[string]any{"age": 21, "plan": "pro"},
		"context":   map[string]any{"channel": "whatsapp"},
	}

	tests := []struct {
		name       string
		expression string
		want       bool
	}{
		{"variable comparison", `variables.age >= 18`, true},
		{"string equality", `variables.plan == "pro"`, true},
		{"context access", `context.channel == "telegram"`, false},
		{"membership check", `"age" in variables`, true},
		{"conjunction", `variables.age > 18 && context.channel == "whatsapp"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eng.EvaluateBool(ctx, tt.expression, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCELEvaluateValue(t *testing.T) {
	eng := newCEL(t)

	got, err := eng.Evaluate(context.Background(), `variables.count + 1`, map[string]any{
		"variables": map[string]any{"count": 5},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 6, got)
}

func TestCELMissingActivationKeysDefaultToEmptyMaps(t *testing.T) {
	eng := newCEL(t)

	// No "variables" or "context" keys at all. Guards must still evaluate
	// instead of failing on a nil activation.
	got, err := eng.EvaluateBool(context.Background(), `"age" in variables`, nil)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = eng.EvaluateBool(context.Background(), `size(context) == 0`, map[string]any{})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestCELEvaluateBoolRejectsNonBoolean(t *testing.T) {
	eng := newCEL(t)

	_, err := eng.EvaluateBool(context.Background(), `variables.count + 1`, map[string]any{
		"variables": map[string]any{"count": 1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-boolean")
}

func TestCELCompileError(t *testing.T) {
	eng := newCEL(t)

	_, err := eng.Evaluate(context.Background(), `variables.age >==< 3`, nil)
	require.Error(t, err)

	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeExpression, fe.Code)
}

func TestCELEmptyExpression(t *testing.T) {
	eng := newCEL(t)

	_, err := eng.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
}

func TestCELProgramCache(t *testing.T) {
	eng := newCEL(t)
	ctx := context.Background()

	const expr = `variables.x > 0`

	_, err := eng.EvaluateBool(ctx, expr, map[string]any{
		"variables": map[string]any{"x": 1},
	})
	require.NoError(t, err)

	eng.mu.RLock()
	_, ok := eng.cache[expr]
	eng.mu.RUnlock()
	assert.True(t, ok)

	// Cached program re-evaluates against fresh activations.
	got, err := eng.EvaluateBool(ctx, expr, map[string]any{
		"variables": map[string]any{"x": -1},
	})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestCELName(t *testing.T) {
	assert.Equal(t, "cel", newCEL(t).Name())
}
