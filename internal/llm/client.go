// Package llm defines the provider-agnostic model client interface and
// the message-history vocabulary the agent runtime is built on. Concrete
// providers live in internal/providers/openai and internal/providers/gemini.
package llm

import "context"

// Role identifies who produced a history item.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleTool   Role = "tool"
)

// ItemKind discriminates the heterogeneous items a model turn can carry.
type ItemKind string

const (
	ItemText      ItemKind = "text"
	ItemReasoning ItemKind = "reasoning"
	ItemToolCall  ItemKind = "tool_call"
)

// Item is one element of a model turn's output sequence. Exactly the
// fields relevant to Kind are populated; the rest are zero.
type Item struct {
	Kind ItemKind

	// Text holds the content for ItemText and ItemReasoning.
	Text string

	// ToolCallID, ToolName and ToolArgsJSON are populated for ItemToolCall.
	ToolCallID   string
	ToolName     string
	ToolArgsJSON string
}

// Turn is one entry in a conversation's message history.
type Turn struct {
	Role Role

	// Text is the content of a system or user turn.
	Text string

	// Items is the ordered output sequence of a model turn.
	Items []Item

	// ToolCallID is populated for a tool-result turn: it names the call
	// this result answers.
	ToolCallID string
	// ToolResultJSON is the JSON-encoded result payload of a tool-result turn.
	ToolResultJSON string
}

// History is the ordered sequence of conversation turns for one agent
// instance. A History is never shared across agents.
type History struct {
	Turns []Turn
}

// AppendSystem appends the fixed system turn. Callers normally call this
// once, first.
func (h *History) AppendSystem(text string) {
	h.Turns = append(h.Turns, Turn{Role: RoleSystem, Text: text})
}

// AppendUser appends a user turn (an instruction or continuation prompt).
func (h *History) AppendUser(text string) {
	h.Turns = append(h.Turns, Turn{Role: RoleUser, Text: text})
}

// AppendModel appends a model turn carrying its output items.
func (h *History) AppendModel(items []Item) {
	h.Turns = append(h.Turns, Turn{Role: RoleModel, Items: items})
}

// AppendToolResult appends a tool-result turn, tagged with the id of the
// call it answers.
func (h *History) AppendToolResult(callID string, resultJSON string) {
	h.Turns = append(h.Turns, Turn{Role: RoleTool, ToolCallID: callID, ToolResultJSON: resultJSON})
}

// ToolSpec is the provider-facing declaration of one callable tool.
type ToolSpec struct {
	Name        string
	Description string
	ParamsJSON  string // JSON schema for the tool's parameters
}

// Usage reports token accounting for a single call.
type Usage struct {
	TotalTokens int32
}

// Response is a single-call provider response: the ordered output
// sequence plus usage. It carries no retry state; retry/backoff lives in
// internal/modelclient.
type Response struct {
	Output []Item
	Usage  Usage
}

// Client is the provider-agnostic single-shot model call interface.
// Implementations must serialize tool calls (parallel_tool_calls=false)
// so the filesystem state observed by a later call reflects every
// earlier one in the same conversation.
type Client interface {
	// Call sends the full history plus tool specs to the model and
	// returns its response. tool_choice is always "auto".
	Call(ctx context.Context, history History, tools []ToolSpec) (*Response, error)

	// GetModelName returns the identifier of the model backing this client.
	GetModelName() string

	// Close releases resources held by the client.
	Close() error
}

// MockClient is a testing double for Client.
type MockClient struct {
	CallFunc         func(ctx context.Context, history History, tools []ToolSpec) (*Response, error)
	GetModelNameFunc func() string
	CloseFunc        func() error
}

func (m *MockClient) Call(ctx context.Context, history History, tools []ToolSpec) (*Response, error) {
	if m.CallFunc != nil {
		return m.CallFunc(ctx, history, tools)
	}
	return &Response{Output: []Item{{Kind: ItemText, Text: "mock response"}}}, nil
}

func (m *MockClient) GetModelName() string {
	if m.GetModelNameFunc != nil {
		return m.GetModelNameFunc()
	}
	return "mock-model"
}

func (m *MockClient) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
