package agents

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftdev/lift/internal/agent"
	"github.com/liftdev/lift/internal/llm"
	"github.com/liftdev/lift/internal/logging"
	"github.com/liftdev/lift/internal/requirements"
	"github.com/liftdev/lift/internal/sandbox"
	"github.com/liftdev/lift/internal/toolbox"
)

func newTools(t *testing.T, root string) *toolbox.Registry {
	t.Helper()
	sb, err := sandbox.New(root)
	require.NoError(t, err)
	reqs, err := requirements.ParseBytes(nil)
	require.NoError(t, err)
	return toolbox.New(sb, reqs)
}

func endCall(callID, finalText string) llm.Item {
	args, _ := json.Marshal(map[string]any{"final_text": finalText})
	return llm.Item{Kind: llm.ItemToolCall, ToolCallID: callID, ToolName: "end_conversation", ToolArgsJSON: string(args)}
}

func singleShotClient(text string) *llm.MockClient {
	return &llm.MockClient{
		CallFunc: func(ctx context.Context, h llm.History, specs []llm.ToolSpec) (*llm.Response, error) {
			return &llm.Response{Output: []llm.Item{endCall("c1", text)}}, nil
		},
	}
}

func TestGenState_InstructionByState(t *testing.T) {
	assert.Contains(t, Init.Instruction("calc"), "Generate an initial test suite")
	assert.Contains(t, Error.Instruction("calc"), "Please correct the test suite!")
	assert.Contains(t, Refine.Instruction("calc"), "Refine the existing test suite")
}

func TestGenerator_AcceptsDone(t *testing.T) {
	root := t.TempDir()
	tools := newTools(t, root)
	logger := logging.New(slog.LevelError)

	rt := NewGenerator(singleShotClient("<DONE>"), tools, logger, "gen system prompt")
	outcome, err := rt.Run(context.Background(), Init.Instruction("calc"))
	require.NoError(t, err)
	assert.Equal(t, agent.EndAccepted, outcome)
}

func TestGenerator_RejectsAnythingElse(t *testing.T) {
	root := t.TempDir()
	tools := newTools(t, root)
	logger := logging.New(slog.LevelError)

	calls := 0
	client := &llm.MockClient{
		CallFunc: func(ctx context.Context, h llm.History, specs []llm.ToolSpec) (*llm.Response, error) {
			calls++
			if calls == 1 {
				return &llm.Response{Output: []llm.Item{endCall("c1", "<DONE>\n")}}, nil
			}
			return &llm.Response{Output: []llm.Item{endCall("c2", "<DONE>")}}, nil
		},
	}

	rt := NewGenerator(client, tools, logger, "gen system prompt")
	outcome, err := rt.Run(context.Background(), Init.Instruction("calc"))
	require.NoError(t, err)
	assert.Equal(t, agent.EndAccepted, outcome)
	assert.Equal(t, 2, calls)
}

func TestDebugger_RequiresFixesFile(t *testing.T) {
	root := t.TempDir()
	tools := newTools(t, root)
	logger := logging.New(slog.LevelError)

	calls := 0
	client := &llm.MockClient{
		CallFunc: func(ctx context.Context, h llm.History, specs []llm.ToolSpec) (*llm.Response, error) {
			calls++
			if calls == 1 {
				return &llm.Response{Output: []llm.Item{endCall("c1", "<DONE>")}}, nil
			}
			require.NoError(t, os.MkdirAll(filepath.Join(root, "reports"), 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(root, "reports", "fixes.md"), []byte("fixed"), 0o644))
			return &llm.Response{Output: []llm.Item{endCall("c2", "<DONE>")}}, nil
		},
	}

	rt := NewDebugger(client, tools, logger, "debug system prompt", root)
	outcome, err := rt.Run(context.Background(), DebuggerInstruction("calc"))
	require.NoError(t, err)
	assert.Equal(t, agent.EndAccepted, outcome)
	assert.Equal(t, 2, calls)
}

func TestEvaluator_FinalRequiresEvaluationFile(t *testing.T) {
	root := t.TempDir()
	tools := newTools(t, root)
	logger := logging.New(slog.LevelError)

	calls := 0
	client := &llm.MockClient{
		CallFunc: func(ctx context.Context, h llm.History, specs []llm.ToolSpec) (*llm.Response, error) {
			calls++
			if calls == 1 {
				return &llm.Response{Output: []llm.Item{endCall("c1", "<FINAL>")}}, nil
			}
			require.NoError(t, os.MkdirAll(filepath.Join(root, "reports"), 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(root, "reports", "evaluation.md"), []byte("looks good"), 0o644))
			return &llm.Response{Output: []llm.Item{endCall("c2", "<FINAL>")}}, nil
		},
	}

	rt := NewEvaluator(client, tools, logger, "eval system prompt", root)
	outcome, err := rt.Run(context.Background(), EvaluatorInstruction("calc"))
	require.NoError(t, err)
	assert.Equal(t, agent.EndFinalSuite, outcome)
	assert.Equal(t, 2, calls)
}

func TestEvaluator_Rework(t *testing.T) {
	root := t.TempDir()
	tools := newTools(t, root)
	logger := logging.New(slog.LevelError)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "reports"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "reports", "evaluation.md"), []byte("needs work"), 0o644))

	rt := NewEvaluator(singleShotClient("<REWORK>"), tools, logger, "eval system prompt", root)
	outcome, err := rt.Run(context.Background(), EvaluatorInstruction("calc"))
	require.NoError(t, err)
	assert.Equal(t, agent.EndReworkReq, outcome)
}

func TestEvaluator_RejectsUnknownFinalText(t *testing.T) {
	root := t.TempDir()
	tools := newTools(t, root)
	logger := logging.New(slog.LevelError)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "reports"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "reports", "evaluation.md"), []byte("x"), 0o644))

	calls := 0
	client := &llm.MockClient{
		CallFunc: func(ctx context.Context, h llm.History, specs []llm.ToolSpec) (*llm.Response, error) {
			calls++
			if calls == 1 {
				return &llm.Response{Output: []llm.Item{endCall("c1", "maybe?")}}, nil
			}
			return &llm.Response{Output: []llm.Item{endCall("c2", "<FINAL>")}}, nil
		},
	}

	rt := NewEvaluator(client, tools, logger, "eval system prompt", root)
	outcome, err := rt.Run(context.Background(), EvaluatorInstruction("calc"))
	require.NoError(t, err)
	assert.Equal(t, agent.EndFinalSuite, outcome)
	assert.Equal(t, 2, calls)
}
