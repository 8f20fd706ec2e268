package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botflowhq/botflow/pkg/schema"
)

func TestParseValidDocument(t *testing.T) {
	parser, err := NewFlowParser()
	require.NoError(t, err)

	raw := []byte(`{
		"id": "support",
		"name": "Support",
		"nodes": [
			{"id": "n1", "type": "start", "data": {}},
			{"id": "n2", "type": "condition", "data": {
				"conditions": [{"variable": "score", "operator": "greater_than", "value": 10, "label": "high"}]
			}},
			{"id": "n3", "type": "end", "data": {}}
		],
		"edges": [
			{"id": "e1", "source": "n1", "target": "n2"},
			{"id": "e2", "source": "n2", "target": "n3", "label": "high"}
		],
		"variables": [{"name": "score", "type": "number", "default": 5}]
	}`)

	flow, err := parser.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "support", flow.ID)
	require.Len(t, flow.Nodes, 3)
	require.Len(t, flow.Edges, 2)

	// Numbers in node data and defaults arrive as float64.
	conditions := flow.Nodes[1].Data["conditions"].([]any)
	first := conditions[0].(map[string]any)
	assert.Equal(t, float64(10), first["value"])
	assert.Equal(t, float64(5), flow.Variables[0].Default)
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	parser, err := NewFlowParser()
	require.NoError(t, err)

	_, err = parser.Parse([]byte(`{"nodes": [`))
	require.Error(t, err)

	var flowErr *schema.FlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, schema.ErrCodeValidation, flowErr.Code)
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	parser, err := NewFlowParser()
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
	}{
		{"missing edges", `{"nodes": []}`},
		{"node without type", `{"nodes": [{"id": "n1", "data": {}}], "edges": []}`},
		{"edge without target", `{"nodes": [], "edges": [{"id": "e1", "source": "a"}]}`},
		{"unknown top-level key", `{"nodes": [], "edges": [], "steps": []}`},
		{"empty node id", `{"nodes": [{"id": "", "type": "start", "data": {}}], "edges": []}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parser.Parse([]byte(tc.raw))
			require.Error(t, err)

			var flowErr *schema.FlowError
			require.ErrorAs(t, err, &flowErr)
			assert.Equal(t, schema.ErrCodeValidation, flowErr.Code)
		})
	}
}

func TestParseNormalizesEdgeConditionValue(t *testing.T) {
	parser, err := NewFlowParser()
	require.NoError(t, err)

	raw := []byte(`{
		"nodes": [{"id": "n1", "type": "start", "data": {}}],
		"edges": [{"id": "e1", "source": "n1", "target": "n1",
			"condition": {"variable": "count", "operator": "less_than", "value": 3}}]
	}`)

	flow, err := parser.Parse(raw)
	require.NoError(t, err)
	require.NotNil(t, flow.Edges[0].Condition)
	assert.Equal(t, float64(3), flow.Edges[0].Condition.Value)
}
