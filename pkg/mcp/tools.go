package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/botflowhq/botflow/internal/diagram"
	"github.com/botflowhq/botflow/pkg/schema"
)

// handleExecute runs a flow definition from its start node.
func (s *FlowServer) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flowRaw := mcp.ParseStringMap(req, "flow", nil)
	if flowRaw == nil {
		return mcp.NewToolResultError("flow is required"), nil
	}
	initialContext := mcp.ParseStringMap(req, "context", nil)

	flow, err := s.decodeFlow(flowRaw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid flow definition: %v", err)), nil
	}

	result := s.engine.ExecuteFlow(ctx, flow, initialContext)
	if result.ExecutionID != "" {
		s.captureSession(ctx, result.ExecutionID)
	}
	return marshalResult(result)
}

// handleResume delivers external input to a suspended run.
func (s *FlowServer) handleResume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	executionID, err := req.RequireString("execution_id")
	if err != nil {
		return mcp.NewToolResultError("execution_id is required"), nil
	}
	input := mcp.ParseStringMap(req, "input", nil)
	if input == nil {
		return mcp.NewToolResultError("input is required"), nil
	}

	s.captureSession(ctx, executionID)
	result := s.engine.ResumeFlow(ctx, executionID, input)
	return marshalResult(result)
}

// handleState returns a snapshot of an execution.
func (s *FlowServer) handleState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	executionID, err := req.RequireString("execution_id")
	if err != nil {
		return mcp.NewToolResultError("execution_id is required"), nil
	}

	state := s.engine.GetExecutionState(executionID)
	if state == nil {
		return mcp.NewToolResultError(fmt.Sprintf("execution %q not found", executionID)), nil
	}
	return marshalResult(state)
}

// handleCancel stops a running or suspended execution.
func (s *FlowServer) handleCancel(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	executionID, err := req.RequireString("execution_id")
	if err != nil {
		return mcp.NewToolResultError("execution_id is required"), nil
	}

	cancelled := s.engine.CancelExecution(executionID)
	return marshalResult(map[string]any{
		"execution_id": executionID,
		"cancelled":    cancelled,
	})
}

// handleValidate checks a flow definition without executing it.
func (s *FlowServer) handleValidate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flowRaw := mcp.ParseStringMap(req, "flow", nil)
	if flowRaw == nil {
		return mcp.NewToolResultError("flow is required"), nil
	}

	flow, err := s.decodeFlow(flowRaw)
	if err != nil {
		return marshalResult(map[string]any{
			"valid":  false,
			"errors": []string{err.Error()},
		})
	}

	result := s.validator.Validate(flow)
	warnings := make([]string, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		warnings = append(warnings, w.String())
	}
	return marshalResult(map[string]any{
		"valid":    result.Valid(),
		"errors":   result.ErrorMessages(),
		"warnings": warnings,
	})
}

// handleDiagram renders a flow definition as Mermaid text or a PNG image,
// optionally overlaying a run's progress.
func (s *FlowServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flowRaw := mcp.ParseStringMap(req, "flow", nil)
	if flowRaw == nil {
		return mcp.NewToolResultError("flow is required"), nil
	}

	flow, err := s.decodeFlow(flowRaw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid flow definition: %v", err)), nil
	}

	var overlay *diagram.RunOverlay
	if executionID := mcp.ParseString(req, "execution_id", ""); executionID != "" {
		state := s.engine.GetExecutionState(executionID)
		if state == nil {
			return mcp.NewToolResultError(fmt.Sprintf("execution %q not found", executionID)), nil
		}
		visited := make([]string, 0, len(state.History))
		for _, step := range state.History {
			visited = append(visited, step.NodeID)
		}
		overlay = &diagram.RunOverlay{
			Visited:     visited,
			CurrentNode: state.CurrentNode,
			Status:      state.Status,
		}
	}

	model, err := diagram.Build(flow, overlay)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	switch format := mcp.ParseString(req, "format", "mermaid"); format {
	case "", "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	case "png":
		png, err := diagram.RenderImage(model)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("render png: %v", err)), nil
		}
		return mcp.NewToolResultImage("flow diagram", base64.StdEncoding.EncodeToString(png), "image/png"), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown diagram format %q", format)), nil
	}
}

// --- Internal helpers ---

// decodeFlow converts a raw tool argument map into a FlowDefinition, going
// through the schema-checked parser when one is configured.
func (s *FlowServer) decodeFlow(raw map[string]any) (*schema.FlowDefinition, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	if s.parser != nil {
		return s.parser.Parse(data)
	}
	var flow schema.FlowDefinition
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// captureSession maps the execution ID to its current MCP session for notifications.
func (s *FlowServer) captureSession(ctx context.Context, executionID string) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(executionID, session.SessionID())
	}
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
