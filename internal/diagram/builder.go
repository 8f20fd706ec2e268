package diagram

import (
	"fmt"
	"strings"

	"github.com/botflowhq/botflow/pkg/schema"
)

// RunOverlay describes a run's progress through a flow so renderers can
// color nodes. Visited holds the ids of executed nodes; CurrentNode is the
// run's cursor; Status is the run's execution status.
type RunOverlay struct {
	Visited     []string
	CurrentNode string
	Status      schema.ExecutionStatus
}

// Build constructs a DiagramModel from a flow definition and an optional
// run overlay. The flow is not validated here; dangling edge endpoints are
// rendered as-is so a diagram of a broken flow still shows the breakage.
func Build(flow *schema.FlowDefinition, overlay *RunOverlay) (*DiagramModel, error) {
	if flow == nil {
		return nil, fmt.Errorf("diagram: flow is nil")
	}

	visited := make(map[string]bool)
	if overlay != nil {
		for _, id := range overlay.Visited {
			visited[id] = true
		}
	}

	nodes := make([]*Node, 0, len(flow.Nodes))
	for i := range flow.Nodes {
		fn := &flow.Nodes[i]
		node := &Node{
			ID:    fn.ID,
			Label: nodeLabel(fn),
			Kind:  nodeKind(fn.Type),
		}
		if overlay != nil {
			node.Status = overlayStatus(fn.ID, visited, overlay)
		}
		nodes = append(nodes, node)
	}

	edges := make([]Edge, 0, len(flow.Edges))
	for i := range flow.Edges {
		fe := &flow.Edges[i]
		edges = append(edges, Edge{
			From:  fe.Source,
			To:    fe.Target,
			Label: edgeLabel(fe),
		})
	}

	title := flow.Name
	if title == "" {
		title = flow.ID
	}

	return &DiagramModel{Title: title, Nodes: nodes, Edges: edges}, nil
}

// nodeKind maps a flow node type to a rendering shape.
func nodeKind(t schema.NodeType) NodeKind {
	switch t {
	case schema.NodeTypeStart:
		return NodeKindStart
	case schema.NodeTypeEnd:
		return NodeKindEnd
	case schema.NodeTypeCondition:
		return NodeKindCondition
	case schema.NodeTypeQuestion, schema.NodeTypeMenu, schema.NodeTypeInput:
		return NodeKindPrompt
	case schema.NodeTypeDelay:
		return NodeKindWait
	default:
		return NodeKindAction
	}
}

// nodeLabel builds a human-readable label: the node id plus a short content
// or label excerpt when authored.
func nodeLabel(node *schema.Node) string {
	text, _ := node.Data["label"].(string)
	if text == "" {
		text, _ = node.Data["content"].(string)
	}
	if text == "" {
		return node.ID
	}
	text = firstLine(text)
	if len(text) > 40 {
		text = text[:37] + "..."
	}
	return fmt.Sprintf("%s: %s", node.ID, text)
}

// edgeLabel picks the most informative annotation for an edge: its branch
// label, then its condition, then its guard expression.
func edgeLabel(edge *schema.Edge) string {
	if edge.Label != "" {
		return edge.Label
	}
	if edge.Condition != nil {
		return fmt.Sprintf("%s %s %v", edge.Condition.Variable, edge.Condition.Operator, edge.Condition.Value)
	}
	if edge.Guard != "" {
		return edge.Guard
	}
	return ""
}

// overlayStatus derives a node's rendering status from the run overlay. The
// cursor node takes the run's own status; visited nodes are completed.
func overlayStatus(nodeID string, visited map[string]bool, overlay *RunOverlay) *StatusOverlay {
	if nodeID == overlay.CurrentNode {
		switch overlay.Status {
		case schema.ExecutionStatusWaitingInput:
			return &StatusOverlay{Status: "suspended"}
		case schema.ExecutionStatusError:
			return &StatusOverlay{Status: "failed"}
		case schema.ExecutionStatusCancelled:
			return &StatusOverlay{Status: "skipped"}
		case schema.ExecutionStatusCompleted:
			return &StatusOverlay{Status: "completed"}
		default:
			return &StatusOverlay{Status: "running"}
		}
	}
	if visited[nodeID] {
		return &StatusOverlay{Status: "completed"}
	}
	return nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
