// Package openai implements llm.Client against the OpenAI Chat
// Completions API, including function-calling tool dispatch and
// tiktoken-based token accounting.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/liftdev/lift/internal/llm"
	"github.com/liftdev/lift/internal/modelclient"
)

// Client implements llm.Client against the OpenAI Chat Completions API.
// Tool calls are always serialized: parallel_tool_calls is disabled so
// the agent runtime observes one filesystem effect per model turn.
type Client struct {
	api       openai.Client
	modelName string
}

// New builds a Client for modelName using apiKey.
func New(modelName, apiKey string) *Client {
	return &Client{
		api:       openai.NewClient(option.WithAPIKey(apiKey)),
		modelName: modelName,
	}
}

func (c *Client) GetModelName() string { return c.modelName }

func (c *Client) Close() error { return nil }

// Call translates history and tools to a Chat Completions request and
// translates the response back into llm's vocabulary.
func (c *Client) Call(ctx context.Context, history llm.History, tools []llm.ToolSpec) (*llm.Response, error) {
	messages, err := toMessages(history)
	if err != nil {
		return nil, llm.Wrap(err, "openai", "failed to encode history", llm.CategoryInvalidRequest)
	}

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    c.modelName,
	}
	if len(tools) > 0 {
		toolParams := make([]openai.ChatCompletionToolParam, 0, len(tools))
		for _, t := range tools {
			var schema map[string]any
			if err := json.Unmarshal([]byte(t.ParamsJSON), &schema); err != nil {
				return nil, llm.Wrap(err, "openai", fmt.Sprintf("invalid parameter schema for tool %q", t.Name), llm.CategoryInvalidRequest)
			}
			toolParams = append(toolParams, openai.ChatCompletionToolParam{
				Function: shared.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  shared.FunctionParameters(schema),
				},
			})
		}
		params.Tools = toolParams
		params.ParallelToolCalls = openai.Bool(false)
		// Explicit, though the API already defaults to "auto" whenever
		// tools are present.
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
	}

	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, llm.ErrNoModelResponse
	}

	choice := completion.Choices[0]
	var items []llm.Item
	if text := choice.Message.Content; text != "" {
		items = append(items, llm.Item{Kind: llm.ItemText, Text: text})
	}
	for _, call := range choice.Message.ToolCalls {
		items = append(items, llm.Item{
			Kind:         llm.ItemToolCall,
			ToolCallID:   call.ID,
			ToolName:     call.Function.Name,
			ToolArgsJSON: call.Function.Arguments,
		})
	}

	return &llm.Response{
		Output: items,
		Usage:  llm.Usage{TotalTokens: int32(completion.Usage.TotalTokens)},
	}, nil
}

// toMessages converts a History into the provider's message sequence.
// Tool results are threaded back by ToolCallID, matching the Chat
// Completions "tool" role convention.
func toMessages(history llm.History) ([]openai.ChatCompletionMessageParamUnion, error) {
	var out []openai.ChatCompletionMessageParamUnion
	for _, turn := range history.Turns {
		switch turn.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(turn.Text))
		case llm.RoleUser:
			out = append(out, openai.UserMessage(turn.Text))
		case llm.RoleTool:
			out = append(out, openai.ToolMessage(turn.ToolResultJSON, turn.ToolCallID))
		case llm.RoleModel:
			msg, err := modelTurnToMessage(turn)
			if err != nil {
				return nil, err
			}
			out = append(out, msg)
		default:
			return nil, fmt.Errorf("openai: unknown role %q", turn.Role)
		}
	}
	return out, nil
}

func modelTurnToMessage(turn llm.Turn) (openai.ChatCompletionMessageParamUnion, error) {
	assistant := openai.ChatCompletionAssistantMessageParam{}
	var text strings.Builder
	for _, item := range turn.Items {
		switch item.Kind {
		case llm.ItemText, llm.ItemReasoning:
			if text.Len() > 0 {
				text.WriteByte('\n')
			}
			text.WriteString(item.Text)
		case llm.ItemToolCall:
			assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
				ID: item.ToolCallID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      item.ToolName,
					Arguments: item.ToolArgsJSON,
				},
			})
		}
	}
	if text.Len() > 0 {
		assistant.Content.OfString = openai.String(text.String())
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}, nil
}

// wrapAPIError maps an OpenAI SDK error to a llm.CategorizedError, using
// the HTTP status code on *openai.Error where available.
func wrapAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return llm.Wrap(err, "openai", apiErr.Message, llm.CategoryAuth)
		case http.StatusTooManyRequests:
			if wait, ok := extractRetryAfter(apiErr.Message); ok {
				return llm.WrapRateLimit(err, "openai", apiErr.Message, wait)
			}
			return llm.Wrap(err, "openai", apiErr.Message, llm.CategoryRateLimit)
		case http.StatusNotFound:
			return llm.Wrap(err, "openai", apiErr.Message, llm.CategoryNotFound)
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return llm.Wrap(err, "openai", apiErr.Message, llm.CategoryInvalidRequest)
		}
		if apiErr.StatusCode >= 500 {
			return llm.Wrap(err, "openai", apiErr.Message, llm.CategoryServer)
		}
		return llm.Wrap(err, "openai", apiErr.Message, llm.CategoryUnknown)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return llm.Wrap(err, "openai", err.Error(), llm.CategoryCancelled)
	}
	return llm.Wrap(err, "openai", err.Error(), llm.CategoryNetwork)
}

// extractRetryAfter locates the "retry after <duration>" fragment OpenAI
// embeds in 429 messages and parses it via modelclient's shared duration
// grammar.
func extractRetryAfter(message string) (float64, bool) {
	const marker = "retry after"
	idx := strings.Index(strings.ToLower(message), marker)
	if idx < 0 {
		return 0, false
	}
	fragment := strings.TrimSpace(message[idx+len(marker):])
	fields := strings.Fields(fragment)
	if len(fields) == 0 {
		return 0, false
	}
	return modelclient.ParseWaitSeconds(strings.TrimRight(fields[0], ".,"))
}

// CountTokens counts text's tokens using the cl100k_base tiktoken
// encoding shared by the modern chat-completions model family.
func CountTokens(text string) (int, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return 0, fmt.Errorf("openai: load tokenizer: %w", err)
	}
	return len(enc.Encode(text, nil, nil)), nil
}
