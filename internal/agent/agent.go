// Package agent drives one agent conversation to termination within a
// hard step budget, dispatching tool calls through a toolbox.Registry
// and deferring termination decisions to an agent-specific handler.
package agent

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/liftdev/lift/internal/llm"
	"github.com/liftdev/lift/internal/logging"
	"github.com/liftdev/lift/internal/toolbox"
)

// MaxSteps bounds how many request/response round trips one conversation
// may take before it is considered stuck.
const MaxSteps = 50

// Outcome classifies how a tool call (or the runtime itself) resolved.
type Outcome int

const (
	CallSucceeded Outcome = iota
	CallError
	EndAccepted
	EndRejected
	EndFinalSuite
	EndReworkReq
)

func (o Outcome) String() string {
	switch o {
	case CallSucceeded:
		return "CALL_SUCCEEDED"
	case CallError:
		return "CALL_ERROR"
	case EndAccepted:
		return "END_ACCEPTED"
	case EndRejected:
		return "END_REJECTED"
	case EndFinalSuite:
		return "END_FINAL_SUITE"
	case EndReworkReq:
		return "END_REWORK_REQ"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether o ends the conversation immediately (every
// value except CallSucceeded, CallError, and EndRejected, which let the
// loop continue).
func (o Outcome) IsTerminal() bool {
	return o == EndAccepted || o == EndFinalSuite || o == EndReworkReq
}

// ErrConversationDidNotTerminate is returned when MaxSteps is exhausted
// without a terminal outcome.
var ErrConversationDidNotTerminate = errors.New("conversation_did_not_terminate")

// TerminationHandler is invoked whenever the agent calls end_conversation.
// It inspects finalText and decides the outcome; when it returns
// EndRejected, reason is appended as the tool result and the
// conversation continues.
type TerminationHandler func(finalText string) (outcome Outcome, reason map[string]any)

// Runtime drives one agent's conversation. A Runtime is never shared
// across agents.
type Runtime struct {
	client  llm.Client
	tools   *toolbox.Registry
	logger  logging.Logger
	handler TerminationHandler

	History llm.History
}

// New builds a Runtime seeded with systemPrompt as the fixed system turn.
func New(client llm.Client, tools *toolbox.Registry, logger logging.Logger, handler TerminationHandler, systemPrompt string) *Runtime {
	r := &Runtime{client: client, tools: tools, logger: logger, handler: handler}
	r.History.AppendSystem(systemPrompt)
	return r
}

// Run appends instruction as a user turn and drives the conversation to
// a terminal Outcome, or fails with ErrConversationDidNotTerminate once
// MaxSteps round trips elapse.
func (r *Runtime) Run(ctx context.Context, instruction string) (Outcome, error) {
	r.History.AppendUser(instruction)

	specs := r.tools.Specs()
	toolSpecs := make([]llm.ToolSpec, 0, len(specs))
	for _, s := range specs {
		schema, _ := json.Marshal(s.ParametersSchema())
		toolSpecs = append(toolSpecs, llm.ToolSpec{Name: s.Name, Description: s.Description, ParamsJSON: string(schema)})
	}

	for step := 0; step < MaxSteps; step++ {
		resp, err := r.client.Call(ctx, r.History, toolSpecs)
		if err != nil {
			return CallError, err
		}

		r.History.AppendModel(resp.Output)

		for _, item := range resp.Output {
			switch item.Kind {
			case llm.ItemText:
				r.logger.Info("response message", "text", item.Text)
			case llm.ItemReasoning:
				r.logger.Debug("reasoning", "text", item.Text)
			case llm.ItemToolCall:
				outcome, terminal := r.dispatchToolCall(item)
				if terminal {
					return outcome, nil
				}
			}
		}
	}

	return CallError, ErrConversationDidNotTerminate
}

// dispatchToolCall executes one tool call and appends its result to the
// history. terminal is true iff the runtime should return immediately
// with outcome.
func (r *Runtime) dispatchToolCall(item llm.Item) (outcome Outcome, terminal bool) {
	r.logger.Info("tool call", "name", item.ToolName)

	result, found := r.tools.Dispatch(item.ToolName, item.ToolArgsJSON)
	if !found {
		r.logger.Warn("unknown tool called", "name", item.ToolName)
		raw, _ := json.Marshal(map[string]any{"error": "unknown_tool"})
		r.History.AppendToolResult(item.ToolCallID, string(raw))
		return CallError, false
	}

	raw, _ := json.Marshal(result)
	r.History.AppendToolResult(item.ToolCallID, string(raw))

	if item.ToolName != "end_conversation" {
		return CallSucceeded, false
	}

	finalText, _ := result["final_text"].(string)
	endOutcome, reason := r.handler(finalText)
	if endOutcome == EndRejected {
		reasonJSON, _ := json.Marshal(reason)
		r.History.AppendToolResult(item.ToolCallID, string(reasonJSON))
		return CallSucceeded, false
	}
	return endOutcome, true
}
