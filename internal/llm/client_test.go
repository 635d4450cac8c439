package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_AppendSequence(t *testing.T) {
	var h History
	h.AppendSystem("you are a generator")
	h.AppendUser("begin")
	h.AppendModel([]Item{{Kind: ItemToolCall, ToolCallID: "c1", ToolName: "list_dir", ToolArgsJSON: `{"path":"."}`}})
	h.AppendToolResult("c1", `{"entries":[]}`)

	require.Len(t, h.Turns, 4)
	assert.Equal(t, RoleSystem, h.Turns[0].Role)
	assert.Equal(t, RoleUser, h.Turns[1].Role)
	assert.Equal(t, RoleModel, h.Turns[2].Role)
	assert.Equal(t, ItemToolCall, h.Turns[2].Items[0].Kind)
	assert.Equal(t, RoleTool, h.Turns[3].Role)
	assert.Equal(t, "c1", h.Turns[3].ToolCallID)
}

func TestMockClient_DefaultsAndOverrides(t *testing.T) {
	m := &MockClient{}
	resp, err := m.Call(context.Background(), History{}, nil)
	require.NoError(t, err)
	require.Len(t, resp.Output, 1)
	assert.Equal(t, ItemText, resp.Output[0].Kind)
	assert.Equal(t, "mock-model", m.GetModelName())
	assert.NoError(t, m.Close())

	m.GetModelNameFunc = func() string { return "custom" }
	assert.Equal(t, "custom", m.GetModelName())
}
