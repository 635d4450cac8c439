// Package agents supplies the three fixed agent specializations —
// Generator, Debugger, Evaluator — as thin constructors over
// internal/agent.Runtime. Each differs only in system prompt,
// instruction text, and termination handler.
package agents

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/liftdev/lift/internal/agent"
	"github.com/liftdev/lift/internal/llm"
	"github.com/liftdev/lift/internal/logging"
	"github.com/liftdev/lift/internal/toolbox"
)

// GenState is the generator state machine: which instruction prompt to
// inject into the next Generator conversation. Valid transitions satisfy
// INIT · (ERROR | REFINE)*.
type GenState int

const (
	Init GenState = iota
	Error
	Refine
)

func (s GenState) String() string {
	switch s {
	case Init:
		return "INIT"
	case Error:
		return "ERROR"
	case Refine:
		return "REFINE"
	default:
		return "UNKNOWN"
	}
}

// Instruction returns the fixed instruction text for this state, naming
// putName as the project under test.
func (s GenState) Instruction(putName string) string {
	switch s {
	case Error:
		return fmt.Sprintf("Error(s) during the collection or fail(s) occurred during execution of the test suite for the local project `%s`! Please correct the test suite!", putName)
	case Refine:
		return fmt.Sprintf("Refine the existing test suite for the local project `%s` based on the latest evaluation!", putName)
	default:
		return fmt.Sprintf("Generate an initial test suite for the local project `%s` based on the given requirements!", putName)
	}
}

// DebuggerInstruction is the Debugger's fixed instruction text.
func DebuggerInstruction(putName string) string {
	return fmt.Sprintf("Error(s) during the collection or fail(s) occurred during execution of the test suite for the local project `%s`! Please analyse them!", putName)
}

// EvaluatorInstruction is the Evaluator's fixed instruction text.
func EvaluatorInstruction(putName string) string {
	return fmt.Sprintf("Evaluate the given test suite for the local project `%s` based on the latest execution reports!", putName)
}

// NewGenerator builds a Runtime whose termination handler accepts only
// the literal "<DONE>".
func NewGenerator(client llm.Client, tools *toolbox.Registry, logger logging.Logger, systemPrompt string) *agent.Runtime {
	handler := func(finalText string) (agent.Outcome, map[string]any) {
		if finalText != "<DONE>" {
			return agent.EndRejected, map[string]any{"reason": "Only <DONE> as final_text expected."}
		}
		return agent.EndAccepted, nil
	}
	return agent.New(client, tools, logger, handler, systemPrompt)
}

// NewDebugger builds a Runtime whose termination handler requires both
// "<DONE>" and a reports/fixes.md file inside projectDir.
func NewDebugger(client llm.Client, tools *toolbox.Registry, logger logging.Logger, systemPrompt, projectDir string) *agent.Runtime {
	handler := func(finalText string) (agent.Outcome, map[string]any) {
		if finalText != "<DONE>" {
			return agent.EndRejected, map[string]any{"reason": "Only <DONE> as final_text expected."}
		}
		if !fileExists(filepath.Join(projectDir, "reports", "fixes.md")) {
			return agent.EndRejected, map[string]any{"reason": "Expected output `fixes.md` missing."}
		}
		return agent.EndAccepted, nil
	}
	return agent.New(client, tools, logger, handler, systemPrompt)
}

// NewEvaluator builds a Runtime whose termination handler accepts
// "<REWORK>" or "<FINAL>", both gated on a reports/evaluation.md file
// existing inside projectDir.
func NewEvaluator(client llm.Client, tools *toolbox.Registry, logger logging.Logger, systemPrompt, projectDir string) *agent.Runtime {
	handler := func(finalText string) (agent.Outcome, map[string]any) {
		if finalText != "<REWORK>" && finalText != "<FINAL>" {
			return agent.EndRejected, map[string]any{"reason": "Only <REWORK> or <FINAL> as final_text expected."}
		}
		if !fileExists(filepath.Join(projectDir, "reports", "evaluation.md")) {
			return agent.EndRejected, map[string]any{"reason": "Expected output `evaluation.md` missing."}
		}
		if finalText == "<FINAL>" {
			return agent.EndFinalSuite, nil
		}
		return agent.EndReworkReq, nil
	}
	return agent.New(client, tools, logger, handler, systemPrompt)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
