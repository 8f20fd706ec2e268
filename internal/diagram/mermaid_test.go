package diagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botflowhq/botflow/pkg/schema"
)

func TestRenderMermaid(t *testing.T) {
	model, err := Build(sampleFlow(), nil)
	require.NoError(t, err)

	out := RenderMermaid(model)

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, "%% Support Triage")

	// Shapes per kind.
	assert.Contains(t, out, `n1(("n1"))`)
	assert.Contains(t, out, `n3{"n3"}`)
	assert.Contains(t, out, `n2(["n2: How can we help?"])`)
	assert.Contains(t, out, `n4["n4: Routing to billing"]`)

	// Labeled and unlabeled edges.
	assert.Contains(t, out, "n3 -->|billing| n4")
	assert.Contains(t, out, "n1 --> n2")

	// No overlay, no class assignments.
	assert.NotContains(t, out, "    class n")
}

func TestRenderMermaidWithOverlay(t *testing.T) {
	model, err := Build(sampleFlow(), &RunOverlay{
		Visited:     []string{"n1", "n2"},
		CurrentNode: "n2",
		Status:      schema.ExecutionStatusWaitingInput,
	})
	require.NoError(t, err)

	out := RenderMermaid(model)
	assert.Contains(t, out, "class n1 completed")
	assert.Contains(t, out, "class n2 suspended")
	assert.Contains(t, out, "classDef suspended")
}

func TestRenderMermaidSanitizesIDs(t *testing.T) {
	model := &DiagramModel{
		Nodes: []*Node{
			{ID: "ask-name", Label: "ask-name", Kind: NodeKindAction},
			{ID: "send.mail", Label: "send.mail", Kind: NodeKindAction},
		},
		Edges: []Edge{{From: "ask-name", To: "send.mail"}},
	}

	out := RenderMermaid(model)
	assert.Contains(t, out, `ask_name["ask-name"]`)
	assert.Contains(t, out, "ask_name --> send_mail")
}
