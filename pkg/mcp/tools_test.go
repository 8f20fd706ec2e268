package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botflowhq/botflow/internal/engine"
	"github.com/botflowhq/botflow/internal/executor"
	"github.com/botflowhq/botflow/internal/expressions"
	"github.com/botflowhq/botflow/pkg/schema"
)

// --- Helpers ---

func newTestServer(t *testing.T) *FlowServer {
	t.Helper()
	eng := engine.New(engine.Deps{
		Executor: executor.New(expressions.NewExprEngine(), expressions.NewJQEngine()),
	})
	return NewFlowServer(FlowServerDeps{Engine: eng})
}

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func simpleFlow() map[string]any {
	return map[string]any{
		"id":   "greeting",
		"name": "Greeting",
		"nodes": []any{
			map[string]any{"id": "n1", "type": "start", "data": map[string]any{}},
			map[string]any{"id": "n2", "type": "message", "data": map[string]any{"content": "hello"}},
			map[string]any{"id": "n3", "type": "end", "data": map[string]any{}},
		},
		"edges": []any{
			map[string]any{"id": "e1", "source": "n1", "target": "n2"},
			map[string]any{"id": "e2", "source": "n2", "target": "n3"},
		},
	}
}

func questionFlow() map[string]any {
	return map[string]any{
		"id":   "ask",
		"name": "Ask",
		"nodes": []any{
			map[string]any{"id": "n1", "type": "start", "data": map[string]any{}},
			map[string]any{"id": "n2", "type": "question", "data": map[string]any{
				"question": "What is your name?",
				"variable": "name",
			}},
			map[string]any{"id": "n3", "type": "end", "data": map[string]any{}},
		},
		"edges": []any{
			map[string]any{"id": "e1", "source": "n1", "target": "n2"},
			map[string]any{"id": "e2", "source": "n2", "target": "n3"},
		},
	}
}

func resultPayload(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

// --- Tests ---

func TestExecuteTool(t *testing.T) {
	s := newTestServer(t)

	req := buildRequest("flow.execute", map[string]any{"flow": simpleFlow()})
	result, err := s.handleExecute(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	payload := resultPayload(t, result)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, string(schema.ExecutionStatusCompleted), payload["status"])
	assert.NotEmpty(t, payload["execution_id"])
}

func TestExecuteToolMissingFlow(t *testing.T) {
	s := newTestServer(t)

	req := buildRequest("flow.execute", map[string]any{})
	result, err := s.handleExecute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestExecuteToolInvalidFlow(t *testing.T) {
	s := newTestServer(t)

	// No start node: validation must reject before any run state exists.
	flow := map[string]any{
		"id": "broken",
		"nodes": []any{
			map[string]any{"id": "n1", "type": "message", "data": map[string]any{"content": "x"}},
		},
		"edges": []any{},
	}
	req := buildRequest("flow.execute", map[string]any{"flow": flow})
	result, err := s.handleExecute(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	payload := resultPayload(t, result)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, "Flow validation failed", payload["error"])
}

func TestResumeTool(t *testing.T) {
	s := newTestServer(t)

	execResult, err := s.handleExecute(context.Background(),
		buildRequest("flow.execute", map[string]any{"flow": questionFlow()}))
	require.NoError(t, err)
	execPayload := resultPayload(t, execResult)
	require.Equal(t, string(schema.ExecutionStatusWaitingInput), execPayload["status"])
	executionID := execPayload["execution_id"].(string)

	req := buildRequest("flow.resume", map[string]any{
		"execution_id": executionID,
		"input":        map[string]any{"userInput": "Ada"},
	})
	result, err := s.handleResume(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	payload := resultPayload(t, result)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, string(schema.ExecutionStatusCompleted), payload["status"])
}

func TestResumeToolUnknownExecution(t *testing.T) {
	s := newTestServer(t)

	req := buildRequest("flow.resume", map[string]any{
		"execution_id": "exec-does-not-exist",
		"input":        map[string]any{"userInput": "x"},
	})
	result, err := s.handleResume(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	payload := resultPayload(t, result)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, "Execution not found", payload["error"])
}

func TestResumeToolMissingParams(t *testing.T) {
	s := newTestServer(t)

	req := buildRequest("flow.resume", map[string]any{"input": map[string]any{}})
	result, err := s.handleResume(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)

	req = buildRequest("flow.resume", map[string]any{"execution_id": "exec-1"})
	result, err = s.handleResume(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestStateTool(t *testing.T) {
	s := newTestServer(t)

	execResult, err := s.handleExecute(context.Background(),
		buildRequest("flow.execute", map[string]any{"flow": questionFlow()}))
	require.NoError(t, err)
	executionID := resultPayload(t, execResult)["execution_id"].(string)

	req := buildRequest("flow.state", map[string]any{"execution_id": executionID})
	result, err := s.handleState(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	payload := resultPayload(t, result)
	assert.Equal(t, executionID, payload["id"])
	assert.Equal(t, string(schema.ExecutionStatusWaitingInput), payload["status"])
}

func TestStateToolUnknownExecution(t *testing.T) {
	s := newTestServer(t)

	req := buildRequest("flow.state", map[string]any{"execution_id": "exec-missing"})
	result, err := s.handleState(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCancelTool(t *testing.T) {
	s := newTestServer(t)

	execResult, err := s.handleExecute(context.Background(),
		buildRequest("flow.execute", map[string]any{"flow": questionFlow()}))
	require.NoError(t, err)
	executionID := resultPayload(t, execResult)["execution_id"].(string)

	req := buildRequest("flow.cancel", map[string]any{"execution_id": executionID})
	result, err := s.handleCancel(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, true, resultPayload(t, result)["cancelled"])

	// Cancelling a second time reports false.
	result, err = s.handleCancel(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, false, resultPayload(t, result)["cancelled"])
}

func TestValidateTool(t *testing.T) {
	s := newTestServer(t)

	req := buildRequest("flow.validate", map[string]any{"flow": simpleFlow()})
	result, err := s.handleValidate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	payload := resultPayload(t, result)
	assert.Equal(t, true, payload["valid"])
}

func TestValidateToolInvalidFlow(t *testing.T) {
	s := newTestServer(t)

	flow := map[string]any{
		"id": "broken",
		"nodes": []any{
			map[string]any{"id": "n1", "type": "message", "data": map[string]any{"content": "x"}},
		},
		"edges": []any{},
	}
	req := buildRequest("flow.validate", map[string]any{"flow": flow})
	result, err := s.handleValidate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	payload := resultPayload(t, result)
	assert.Equal(t, false, payload["valid"])
	assert.NotEmpty(t, payload["errors"])
}

func TestDiagramTool(t *testing.T) {
	s := newTestServer(t)

	req := buildRequest("flow.diagram", map[string]any{"flow": simpleFlow()})
	result, err := s.handleDiagram(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Contains(t, text.Text, "graph TD")
	assert.Contains(t, text.Text, "n1 --> n2")
}

func TestDiagramToolWithExecutionOverlay(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	execResult, err := s.handleExecute(ctx, buildRequest("flow.execute", map[string]any{"flow": questionFlow()}))
	require.NoError(t, err)
	executionID := resultPayload(t, execResult)["execution_id"].(string)

	req := buildRequest("flow.diagram", map[string]any{
		"flow":         questionFlow(),
		"execution_id": executionID,
	})
	result, err := s.handleDiagram(ctx, req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Contains(t, text.Text, "class n1 completed")
	assert.Contains(t, text.Text, "class n2 suspended")
}

func TestDiagramToolBadArguments(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleDiagram(ctx, buildRequest("flow.diagram", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleDiagram(ctx, buildRequest("flow.diagram", map[string]any{
		"flow":         simpleFlow(),
		"execution_id": "exec_0_deadbeef",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleDiagram(ctx, buildRequest("flow.diagram", map[string]any{
		"flow":   simpleFlow(),
		"format": "svg",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
