package validation

import (
	"fmt"

	"github.com/botflowhq/botflow/pkg/schema"
)

// FlowValidator runs the multi-stage validation pipeline over a flow
// definition:
// 1. Presence and shape (nil flow, missing node/edge collections)
// 2. Node checks (required fields, per-type data keys, duplicates, types)
// 3. Edge checks (required fields, duplicates, dangling references)
// 4. Graph analysis (start/end presence, reachability, orphans, cycles)
// 5. Variable declarations (names, duplicates, declared types)
//
// Validate never fails out: it always returns an aggregated result with
// errors (block execution) and warnings (informational).
type FlowValidator struct{}

// NewFlowValidator creates a FlowValidator.
func NewFlowValidator() *FlowValidator {
	return &FlowValidator{}
}

// Validate runs the full pipeline and returns an aggregated result.
func (fv *FlowValidator) Validate(flow *schema.FlowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if flow == nil {
		result.AddError("/", "flow definition is nil")
		return result
	}

	hasNodes := flow.Nodes != nil
	hasEdges := flow.Edges != nil
	if !hasNodes {
		result.AddError("nodes", "flow has no nodes collection")
	}
	if !hasEdges {
		result.AddError("edges", "flow has no edges collection")
	}

	nodeIDs := make(map[string]bool, len(flow.Nodes))
	if hasNodes {
		result.Merge(validateNodes(flow.Nodes, nodeIDs))
	}
	if hasEdges {
		result.Merge(validateEdges(flow.Edges, nodeIDs))
	}

	// Graph-level checks run against whatever is present; a missing edge
	// collection is analyzed as an empty one.
	if hasNodes {
		result.Merge(validateGraph(flow))
	}

	if flow.Variables != nil {
		result.Merge(validateVariables(flow.Variables))
	}

	return result
}

// ValidateNode checks a single node for ad hoc use (editor-time linting).
func (fv *FlowValidator) ValidateNode(node *schema.Node) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if node == nil {
		result.AddError("/", "node is nil")
		return result
	}
	validateNode(node, fmt.Sprintf("nodes[%s]", node.ID), result)
	return result
}

// ValidateEdge checks a single edge against a set of known node IDs.
// Pass nil to skip reference checks.
func (fv *FlowValidator) ValidateEdge(edge *schema.Edge, nodeIDs map[string]bool) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if edge == nil {
		result.AddError("/", "edge is nil")
		return result
	}
	validateEdge(edge, fmt.Sprintf("edges[%s]", edge.ID), nodeIDs, result)
	return result
}
