package gemini

import (
	"testing"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftdev/lift/internal/llm"
)

func TestToContents_SplitsSystemFromHistory(t *testing.T) {
	var h llm.History
	h.AppendSystem("be terse")
	h.AppendUser("do it")
	h.AppendModel([]llm.Item{{Kind: llm.ItemText, Text: "ok"}})

	system, contents, err := toContents(h)
	require.NoError(t, err)
	assert.Equal(t, "be terse", system)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
}

func TestToContents_ToolCallThenResult(t *testing.T) {
	var h llm.History
	h.AppendUser("go")
	h.AppendModel([]llm.Item{{Kind: llm.ItemToolCall, ToolCallID: "write_file-0", ToolName: "write_file", ToolArgsJSON: `{"path":"a.txt"}`}})
	h.AppendToolResult("write_file-0", `{"ok":true}`)

	_, contents, err := toContents(h)
	require.NoError(t, err)
	require.Len(t, contents, 3)
	assert.Equal(t, "function", contents[2].Role)
	fr, ok := contents[2].Parts[0].(genai.FunctionResponse)
	require.True(t, ok)
	assert.Equal(t, "write_file", fr.Name)
	assert.Equal(t, true, fr.Response["ok"])
}

func TestSchemaFromMap_ObjectWithNestedProperties(t *testing.T) {
	raw := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "a path"},
			"offset":  map[string]any{"type": "integer"},
			"overwrite": map[string]any{"type": "boolean"},
		},
		"required": []any{"path"},
	}
	schema, err := schemaFromMap(raw)
	require.NoError(t, err)
	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Equal(t, genai.TypeString, schema.Properties["path"].Type)
	assert.Equal(t, genai.TypeInteger, schema.Properties["offset"].Type)
	assert.Equal(t, genai.TypeBoolean, schema.Properties["overwrite"].Type)
	assert.Equal(t, []string{"path"}, schema.Required)
}

func TestSchemaFromMap_Array(t *testing.T) {
	raw := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
	schema, err := schemaFromMap(raw)
	require.NoError(t, err)
	assert.Equal(t, genai.TypeArray, schema.Type)
	assert.Equal(t, genai.TypeString, schema.Items.Type)
}

func TestWrapAPIError_NonGoogleAPIErrorIsNetwork(t *testing.T) {
	err := wrapAPIError(assertErr{"dial tcp failed"})
	catErr, ok := llm.IsCategorizedError(err)
	require.True(t, ok)
	assert.Equal(t, llm.CategoryNetwork, catErr.Category())
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
