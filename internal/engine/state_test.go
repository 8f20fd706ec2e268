package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botflowhq/botflow/pkg/schema"
)

func TestNewExecutionState(t *testing.T) {
	flow := &schema.FlowDefinition{
		ID: "flow-1",
		Variables: []schema.VariableDecl{
			{Name: "greeting", Type: "string", Default: "hello"},
			{Name: "attempts", Type: "number", Default: 0.0},
		},
	}

	st := newExecutionState(flow, map[string]any{
		"attempts": 3.0,
		"channel":  "whatsapp",
	})

	assert.Equal(t, "flow-1", st.FlowID)
	assert.Equal(t, schema.ExecutionStatusRunning, st.Status)
	assert.Regexp(t, `^exec_\d+_[0-9a-f]{8}$`, st.ID)

	// Declared defaults, overridden by the initial context, which is also
	// retained as the run's context.
	assert.Equal(t, "hello", st.Variables["greeting"])
	assert.Equal(t, 3.0, st.Variables["attempts"])
	assert.Equal(t, "whatsapp", st.Variables["channel"])
	assert.Equal(t, map[string]any{"attempts": 3.0, "channel": "whatsapp"}, st.Context)

	assert.False(t, st.StartedAt.IsZero())
	assert.Equal(t, st.StartedAt, st.UpdatedAt)
}

func TestExecutionIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := newExecutionID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestSnapshotIsDefensive(t *testing.T) {
	flow := &schema.FlowDefinition{ID: "flow-1"}
	st := newExecutionState(flow, map[string]any{"k": "v"})
	st.History = append(st.History, schema.StepRecord{NodeID: "n1", NodeType: schema.NodeTypeStart})
	now := time.Now().UTC()
	st.CancelledAt = &now

	snap := st.Snapshot()
	snap.Variables["k"] = "mutated"
	snap.Context["extra"] = true
	snap.History[0].NodeID = "mutated"
	*snap.CancelledAt = snap.CancelledAt.Add(time.Hour)

	assert.Equal(t, "v", st.Variables["k"])
	assert.NotContains(t, st.Context, "extra")
	assert.Equal(t, "n1", st.History[0].NodeID)
	assert.Equal(t, now, *st.CancelledAt)
}

func TestTouchAdvancesUpdatedAt(t *testing.T) {
	st := newExecutionState(&schema.FlowDefinition{ID: "flow-1"}, nil)
	before := st.UpdatedAt

	time.Sleep(time.Millisecond)
	st.mu.Lock()
	st.touch()
	st.mu.Unlock()

	require.True(t, st.UpdatedAt.After(before))
	assert.Equal(t, before, st.StartedAt)
}
