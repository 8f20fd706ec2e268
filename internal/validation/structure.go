package validation

import (
	"fmt"

	"github.com/botflowhq/botflow/pkg/schema"
)

// requiredDataKeys maps each node type to the data keys it cannot run
// without. Types absent from the table carry no mandatory keys.
var requiredDataKeys = map[schema.NodeType][]string{
	schema.NodeTypeQuestion:    {"variable"},
	schema.NodeTypeMenu:        {"variable", "options"},
	schema.NodeTypeInput:       {"variable"},
	schema.NodeTypeCondition:   {"conditions"},
	schema.NodeTypeSetVariable: {"variable"},
	schema.NodeTypeGoto:        {"target"},
	schema.NodeTypeAPICall:     {"endpoint"},
	schema.NodeTypeWebhook:     {"endpoint"},
	schema.NodeTypeEmail:       {"to"},
}

// validateNodes checks every node and fills nodeIDs with the IDs seen,
// duplicates included (later stages need the full reference set).
func validateNodes(nodes []schema.Node, nodeIDs map[string]bool) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if len(nodes) == 0 {
		result.AddWarning("nodes", "flow has no nodes")
		return result
	}

	for i := range nodes {
		node := &nodes[i]
		path := fmt.Sprintf("nodes[%d]", i)

		if node.ID == "" {
			result.AddError(path+".id", "node is missing an id")
		} else {
			if nodeIDs[node.ID] {
				result.AddError(path+".id", fmt.Sprintf("duplicate node id %q", node.ID))
			}
			nodeIDs[node.ID] = true
			path = fmt.Sprintf("nodes[%s]", node.ID)
		}

		validateNode(node, path, result)
	}

	return result
}

// validateNode runs the per-node checks shared by the full pipeline and
// the single-entity helper: required fields and type-specific data keys.
func validateNode(node *schema.Node, path string, result *schema.ValidationResult) {
	if node.Type == "" {
		result.AddError(path+".type", "node is missing a type")
		return
	}
	if !schema.KnownNodeTypes[node.Type] {
		result.AddError(path+".type", fmt.Sprintf("unknown node type %q", node.Type))
		return
	}
	if node.Data == nil {
		result.AddError(path+".data", "node is missing a data payload")
		return
	}

	for _, key := range requiredDataKeys[node.Type] {
		if _, ok := node.Data[key]; !ok {
			result.AddError(fmt.Sprintf("%s.data.%s", path, key),
				fmt.Sprintf("%s node requires data field %q", node.Type, key))
		}
	}

	// Message nodes accept either content or the label fallback.
	if node.Type == schema.NodeTypeMessage {
		_, hasContent := node.Data["content"]
		_, hasLabel := node.Data["label"]
		if !hasContent && !hasLabel {
			result.AddError(path+".data.content", "message node requires a content (or label) field")
		}
	}

	// Input validation kind, when declared, must be a known kind.
	if node.Type == schema.NodeTypeInput {
		if kind, ok := node.Data["validation"].(string); ok && kind != "" {
			if !schema.InputValidationKinds[kind] {
				result.AddError(path+".data.validation",
					fmt.Sprintf("unknown input validation kind %q", kind))
			}
		}
	}
}

// validateEdges checks every edge against the collected node IDs.
func validateEdges(edges []schema.Edge, nodeIDs map[string]bool) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	seen := make(map[string]bool, len(edges))
	for i := range edges {
		edge := &edges[i]
		path := fmt.Sprintf("edges[%d]", i)

		if edge.ID == "" {
			result.AddError(path+".id", "edge is missing an id")
		} else {
			if seen[edge.ID] {
				result.AddError(path+".id", fmt.Sprintf("duplicate edge id %q", edge.ID))
			}
			seen[edge.ID] = true
			path = fmt.Sprintf("edges[%s]", edge.ID)
		}

		validateEdge(edge, path, nodeIDs, result)
	}

	return result
}

// validateEdge runs the per-edge checks shared by the full pipeline and the
// single-entity helper. nodeIDs may be nil to skip reference checks.
func validateEdge(edge *schema.Edge, path string, nodeIDs map[string]bool, result *schema.ValidationResult) {
	if edge.Source == "" {
		result.AddError(path+".source", "edge is missing a source")
	} else if nodeIDs != nil && !nodeIDs[edge.Source] {
		result.AddError(path+".source",
			fmt.Sprintf("edge references non-existent source node %q", edge.Source))
	}

	if edge.Target == "" {
		result.AddError(path+".target", "edge is missing a target")
	} else if nodeIDs != nil && !nodeIDs[edge.Target] {
		result.AddError(path+".target",
			fmt.Sprintf("edge references non-existent target node %q", edge.Target))
	}

	// Self-loops are legal (polling/delay patterns) but worth flagging.
	if edge.Source != "" && edge.Source == edge.Target {
		result.AddWarning(path, fmt.Sprintf("edge %q connects node %q to itself", edge.ID, edge.Source))
	}

	if edge.Condition != nil {
		if edge.Condition.Variable == "" {
			result.AddError(path+".condition.variable", "edge condition is missing a variable")
		}
		if edge.Condition.Operator == "" {
			result.AddError(path+".condition.operator", "edge condition is missing an operator")
		}
	}
}
