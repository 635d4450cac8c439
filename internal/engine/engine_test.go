package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftdev/lift/internal/auditlog"
	"github.com/liftdev/lift/internal/config"
	"github.com/liftdev/lift/internal/llm"
	"github.com/liftdev/lift/internal/logging"
	"github.com/liftdev/lift/internal/paths"
	"github.com/liftdev/lift/internal/runner"
)

const sampleRequirements = `
unit:
  - id: REQ-1
    title: addition
    description: adding two numbers
    acceptance: returns the sum
`

func stageInputs(t *testing.T, root, putName string) {
	t.Helper()
	inputs := filepath.Join(root, "input")
	require.NoError(t, os.MkdirAll(inputs, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(inputs, putName), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inputs, putName, "calc.py"), []byte("def add(a, b): return a + b"), 0o644))

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(inputs, name), []byte(content), 0o644))
	}
	write("generator.md", "You are the generator.")
	write("debugger.md", "You are the debugger.")
	write("evaluator.md", "You are the evaluator.")
	write("program-requirements.yml", sampleRequirements)
	write("evaluation_template.md", "# Evaluation")
	write("pytest_html_report.yml", "report_dir: <<REPORT_DIR>>\nrequirements:\n  <<REQUIREMENT_IDS>>\n")
}

func toolCall(name, id, argsJSON string) (*llm.Response, error) {
	return &llm.Response{Output: []llm.Item{{Kind: llm.ItemToolCall, ToolCallID: id, ToolName: name, ToolArgsJSON: argsJSON}}}, nil
}

// scriptedClient returns a llm.MockClient whose responses step through
// calls in order, repeating the last response once exhausted.
func scriptedClient(calls ...func() (*llm.Response, error)) *llm.MockClient {
	n := 0
	return &llm.MockClient{
		CallFunc: func(ctx context.Context, h llm.History, tools []llm.ToolSpec) (*llm.Response, error) {
			idx := n
			if idx >= len(calls) {
				idx = len(calls) - 1
			}
			n++
			return calls[idx]()
		},
	}
}

func writeExecutionReport(t *testing.T, reportsDir string, failing bool) {
	t.Helper()
	require.NoError(t, os.MkdirAll(reportsDir, 0o755))
	content := `<testsuite errors="0" failures="0" skipped="0" tests="1" time="0.1"></testsuite>`
	if failing {
		content = `<testsuite errors="0" failures="1" skipped="0" tests="1" time="0.1"></testsuite>`
	}
	require.NoError(t, os.WriteFile(filepath.Join(reportsDir, "execution-report.xml"), []byte(content), 0o644))
}

func writeCoverageReport(t *testing.T, reportsDir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(reportsDir, 0o755))
	content := `<coverage lines-covered="8" lines-valid="10" line-rate="0.8" branches-covered="2" branches-valid="4" branch-rate="0.5"></coverage>`
	require.NoError(t, os.WriteFile(filepath.Join(reportsDir, "coverage-report.xml"), []byte(content), 0o644))
}

func TestEngine_HappyPathOneIteration(t *testing.T) {
	root := t.TempDir()
	stageInputs(t, root, "calc")

	cfg := &config.Config{PUT: "calc", MaxIter: 1, GenModel: "gpt-5", DebugModel: "gpt-5", EvalModel: "gpt-5", OpenAIAPIKey: "sk-test"}
	logger := logging.NewWithWriters(os.Stdout, os.Stderr, logging.ParseLevel("info"))

	eng, err := New(context.Background(), cfg, root, logger, auditlog.NoopLogger{})
	require.NoError(t, err)

	eng.genClient = scriptedClient(
		func() (*llm.Response, error) {
			return toolCall("write_file", "c1", `{"path":"tests/test_calc.py","content":"def test_add(): assert True"}`)
		},
		func() (*llm.Response, error) {
			return toolCall("end_conversation", "c2", `{"final_text":"<DONE>"}`)
		},
	)
	eng.evalClient = scriptedClient(
		func() (*llm.Response, error) {
			return toolCall("write_file", "c1", `{"path":"reports/evaluation.md","content":"<FINAL>"}`)
		},
		func() (*llm.Response, error) {
			return toolCall("end_conversation", "c2", `{"final_text":"<FINAL>"}`)
		},
	)
	eng.run = &runner.MockRunner{RunFunc: func(ctx context.Context, projectDir, reportsDir string) (int, error) {
		writeExecutionReport(t, reportsDir, false)
		writeCoverageReport(t, reportsDir)
		return 0, nil
	}}

	require.NoError(t, eng.Run(context.Background()))

	p := eng.paths
	generatedConfig, err := os.ReadFile(filepath.Join(p.Config, "pytest_html_report.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(generatedConfig), `REQ-1: "addition"`)
	assert.NotContains(t, string(generatedConfig), "<<REQUIREMENT_IDS>>")
	_, err = os.Stat(filepath.Join(p.ArchiveFSS(), "FSS_0"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(p.ArchiveLPS(), "LPS_0"))
	assert.NoError(t, err)
	_, err = os.Stat(p.TestsArchive(0))
	assert.NoError(t, err)
	_, err = os.Stat(p.ReportsArchive(0))
	assert.NoError(t, err)
}

func TestEngine_DebugThenRefine(t *testing.T) {
	root := t.TempDir()
	stageInputs(t, root, "calc")

	cfg := &config.Config{PUT: "calc", MaxIter: 2, GenModel: "gpt-5", DebugModel: "gpt-5", EvalModel: "gpt-5", OpenAIAPIKey: "sk-test"}
	logger := logging.NewWithWriters(os.Stdout, os.Stderr, logging.ParseLevel("info"))

	eng, err := New(context.Background(), cfg, root, logger, auditlog.NoopLogger{})
	require.NoError(t, err)

	genCalls := 0
	eng.genClient = &llm.MockClient{
		CallFunc: func(ctx context.Context, h llm.History, tools []llm.ToolSpec) (*llm.Response, error) {
			genCalls++
			// Each generator invocation: write a file, then end.
			// A fresh conversation holds only the system and user turns, so
			// the first round trip writes and the second one ends.
			if len(h.Turns) <= 2 {
				return toolCall("write_file", "g1", `{"path":"tests/test_calc.py","content":"def test_add(): assert False"}`)
			}
			return toolCall("end_conversation", "g2", `{"final_text":"<DONE>"}`)
		},
	}
	eng.debugClient = scriptedClient(
		func() (*llm.Response, error) {
			return toolCall("write_file", "d1", `{"path":"reports/fixes.md","content":"fixed the assertion"}`)
		},
		func() (*llm.Response, error) {
			return toolCall("end_conversation", "d2", `{"final_text":"<DONE>"}`)
		},
	)
	eng.evalClient = scriptedClient(
		func() (*llm.Response, error) {
			return toolCall("write_file", "e1", `{"path":"reports/evaluation.md","content":"<REWORK>"}`)
		},
		func() (*llm.Response, error) {
			return toolCall("end_conversation", "e2", `{"final_text":"<REWORK>"}`)
		},
	)

	runCount := 0
	eng.run = &runner.MockRunner{RunFunc: func(ctx context.Context, projectDir, reportsDir string) (int, error) {
		runCount++
		if runCount == 1 {
			writeExecutionReport(t, reportsDir, true)
			return 1, nil
		}
		writeExecutionReport(t, reportsDir, false)
		return 0, nil
	}}

	require.NoError(t, eng.Run(context.Background()))

	p := eng.paths
	_, err = os.Stat(p.ArchiveFSS())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(p.ArchiveLPS(), "LPS_1"))
	assert.NoError(t, err)
	assert.Equal(t, 4, genCalls) // two round trips per iteration, two iterations
}

func TestNew_FailsWhenProjectAlreadyExists(t *testing.T) {
	root := t.TempDir()
	stageInputs(t, root, "calc")
	p := paths.Resolve(root, "calc")
	require.NoError(t, os.MkdirAll(p.Project, 0o755))

	cfg := &config.Config{PUT: "calc", MaxIter: 1, GenModel: "gpt-5", OpenAIAPIKey: "sk-test"}
	logger := logging.NewWithWriters(os.Stdout, os.Stderr, logging.ParseLevel("info"))

	_, err := New(context.Background(), cfg, root, logger, auditlog.NoopLogger{})
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestNew_FailsWhenRequiredInputMissing(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "input"), 0o755))

	cfg := &config.Config{PUT: "calc", MaxIter: 1, GenModel: "gpt-5", OpenAIAPIKey: "sk-test"}
	logger := logging.NewWithWriters(os.Stdout, os.Stderr, logging.ParseLevel("info"))

	_, err := New(context.Background(), cfg, root, logger, auditlog.NoopLogger{})
	var inputErr *InputValidationError
	require.ErrorAs(t, err, &inputErr)
}
