package validation

import (
	"fmt"
	"sort"

	"github.com/botflowhq/botflow/pkg/schema"
)

// validateGraph performs graph analysis over the combined node/edge sets:
// start/end presence, reachability from start nodes (BFS over forward
// edges), orphaned nodes, and cycle detection (DFS with a recursion stack).
// Cycles are warnings, not errors: the engine's iteration guard is the
// runtime safety net.
func validateGraph(flow *schema.FlowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	adjacency := make(map[string][]string, len(flow.Nodes))
	incident := make(map[string]int, len(flow.Nodes))
	incoming := make(map[string]int, len(flow.Nodes))
	for _, e := range flow.Edges {
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		incident[e.Source]++
		incident[e.Target]++
		incoming[e.Target]++
	}

	var starts []string
	hasEnd := false
	for _, n := range flow.Nodes {
		switch n.Type {
		case schema.NodeTypeStart:
			starts = append(starts, n.ID)
		case schema.NodeTypeEnd:
			hasEnd = true
		}
	}

	if len(starts) == 0 {
		result.AddError("nodes", "flow has no start node")
	}
	if len(starts) > 1 {
		result.AddWarning("nodes", fmt.Sprintf("flow has %d start nodes; execution begins at the first", len(starts)))
	}
	if !hasEnd {
		result.AddWarning("nodes", "flow has no end node")
	}

	// Starts conventionally only originate edges.
	for _, id := range starts {
		if incoming[id] > 0 {
			result.AddWarning(fmt.Sprintf("nodes[%s]", id),
				fmt.Sprintf("start node %q has incoming edges", id))
		}
	}

	// Reachability: BFS over forward edges from all start nodes.
	reachable := make(map[string]bool, len(flow.Nodes))
	queue := make([]string, len(starts))
	copy(queue, starts)
	for _, s := range starts {
		reachable[s] = true
	}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[node] {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}

	for _, n := range flow.Nodes {
		if reachable[n.ID] {
			continue
		}
		// Orphaned (no incident edges at all) is reported distinctly from
		// unreachable, which requires some edges to exist elsewhere.
		if incident[n.ID] == 0 {
			result.AddWarning(fmt.Sprintf("nodes[%s]", n.ID),
				fmt.Sprintf("node %q is orphaned (no incoming or outgoing edges)", n.ID))
		} else if len(starts) > 0 {
			result.AddWarning(fmt.Sprintf("nodes[%s]", n.ID),
				fmt.Sprintf("node %q is unreachable from any start node", n.ID))
		}
	}

	// Cycle detection: DFS with white/gray/black coloring. Gray-on-gray
	// means a back edge, i.e. a cycle.
	if cycle := findCycle(flow.Nodes, adjacency); len(cycle) > 0 {
		result.AddWarning("edges",
			fmt.Sprintf("flow contains a cycle involving node %q; runtime iteration limits apply", cycle[0]))
	}

	return result
}

// findCycle returns the nodes on some cycle, or nil if the graph is acyclic.
// Roots are visited in sorted order for deterministic output.
func findCycle(nodes []schema.Node, adjacency map[string][]string) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)

	var cycle []string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, next := range adjacency[id] {
			switch color[next] {
			case gray:
				cycle = []string{next, id}
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, id := range ids {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}
