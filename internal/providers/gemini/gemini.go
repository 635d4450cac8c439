// Package gemini implements llm.Client against Google's Generative
// Language API via the generative-ai-go SDK, including function-calling
// tool dispatch.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/liftdev/lift/internal/llm"
)

// Client implements llm.Client against the Gemini GenerateContent API.
type Client struct {
	sdk       *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// New builds a Client for modelName using apiKey.
func New(ctx context.Context, modelName, apiKey string) (*Client, error) {
	sdk, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	model := sdk.GenerativeModel(modelName)
	return &Client{sdk: sdk, model: model, modelName: modelName}, nil
}

func (c *Client) GetModelName() string { return c.modelName }

func (c *Client) Close() error { return c.sdk.Close() }

// Call translates history and tools into a single-shot GenerateContent
// request. Tool calling is forced single-step: the SDK's function
// calling mode is left at AUTO, but the agent runtime already serializes
// calls by dispatching one tool per response item before calling again.
func (c *Client) Call(ctx context.Context, history llm.History, tools []llm.ToolSpec) (*llm.Response, error) {
	systemText, contents, err := toContents(history)
	if err != nil {
		return nil, llm.Wrap(err, "gemini", "failed to encode history", llm.CategoryInvalidRequest)
	}
	if systemText != "" {
		c.model.SystemInstruction = genai.NewUserContent(genai.Text(systemText))
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			schema, err := toSchema(t.ParamsJSON)
			if err != nil {
				return nil, llm.Wrap(err, "gemini", fmt.Sprintf("invalid parameter schema for tool %q", t.Name), llm.CategoryInvalidRequest)
			}
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			})
		}
		c.model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	if len(contents) == 0 {
		return nil, llm.ErrNoModelResponse
	}
	last := contents[len(contents)-1]
	cs := c.model.StartChat()
	cs.History = contents[:len(contents)-1]

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, llm.ErrNoModelResponse
	}

	var items []llm.Item
	for i, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			items = append(items, llm.Item{Kind: llm.ItemText, Text: string(p)})
		case genai.FunctionCall:
			argsJSON, marshalErr := json.Marshal(p.Args)
			if marshalErr != nil {
				return nil, llm.Wrap(marshalErr, "gemini", "failed to encode function call args", llm.CategoryInvalidRequest)
			}
			items = append(items, llm.Item{
				Kind:         llm.ItemToolCall,
				ToolCallID:   fmt.Sprintf("%s-%d", p.Name, i),
				ToolName:     p.Name,
				ToolArgsJSON: string(argsJSON),
			})
		}
	}

	var totalTokens int32
	if resp.UsageMetadata != nil {
		totalTokens = int32(resp.UsageMetadata.TotalTokenCount)
	}
	return &llm.Response{Output: items, Usage: llm.Usage{TotalTokens: totalTokens}}, nil
}

// toContents converts a History into Gemini's content sequence. The
// system turn is split out since Gemini carries it as a dedicated
// SystemInstruction rather than a history entry. Tool results are
// represented as FunctionResponse parts on a "function" role content.
func toContents(history llm.History) (systemText string, contents []*genai.Content, err error) {
	for _, turn := range history.Turns {
		switch turn.Role {
		case llm.RoleSystem:
			systemText = turn.Text
		case llm.RoleUser:
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(turn.Text)}})
		case llm.RoleModel:
			parts, convErr := modelTurnToParts(turn)
			if convErr != nil {
				return "", nil, convErr
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case llm.RoleTool:
			name, response, convErr := toolResultToResponse(turn)
			if convErr != nil {
				return "", nil, convErr
			}
			contents = append(contents, &genai.Content{
				Role:  "function",
				Parts: []genai.Part{genai.FunctionResponse{Name: name, Response: response}},
			})
		default:
			return "", nil, fmt.Errorf("gemini: unknown role %q", turn.Role)
		}
	}
	return systemText, contents, nil
}

func modelTurnToParts(turn llm.Turn) ([]genai.Part, error) {
	var parts []genai.Part
	for _, item := range turn.Items {
		switch item.Kind {
		case llm.ItemText, llm.ItemReasoning:
			parts = append(parts, genai.Text(item.Text))
		case llm.ItemToolCall:
			var args map[string]any
			if err := json.Unmarshal([]byte(item.ToolArgsJSON), &args); err != nil {
				return nil, fmt.Errorf("gemini: decode tool args for %q: %w", item.ToolName, err)
			}
			parts = append(parts, genai.FunctionCall{Name: item.ToolName, Args: args})
		}
	}
	return parts, nil
}

// toolResultToResponse recovers the tool name from a tool-result turn's
// ToolCallID (everything before its last '-') and wraps the result
// payload. Gemini's FunctionResponse requires the function name rather
// than a call id; Call encodes the name into each ToolCallID it emits.
func toolResultToResponse(turn llm.Turn) (name string, response map[string]any, err error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(turn.ToolResultJSON), &payload); err != nil {
		return "", nil, fmt.Errorf("gemini: decode tool result: %w", err)
	}
	idx := 0
	for i := len(turn.ToolCallID) - 1; i >= 0; i-- {
		if turn.ToolCallID[i] == '-' {
			idx = i
			break
		}
	}
	callName := turn.ToolCallID
	if idx > 0 {
		callName = turn.ToolCallID[:idx]
	}
	return callName, payload, nil
}

// toSchema converts a tool's JSON-schema parameters declaration into a
// genai.Schema covering the object/string/integer/boolean/array shapes
// the toolbox registry emits.
func toSchema(paramsJSON string) (*genai.Schema, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(paramsJSON), &raw); err != nil {
		return nil, err
	}
	return schemaFromMap(raw)
}

func schemaFromMap(raw map[string]any) (*genai.Schema, error) {
	schema := &genai.Schema{}
	switch raw["type"] {
	case "object":
		schema.Type = genai.TypeObject
		if props, ok := raw["properties"].(map[string]any); ok {
			schema.Properties = make(map[string]*genai.Schema, len(props))
			for name, propRaw := range props {
				propMap, ok := propRaw.(map[string]any)
				if !ok {
					continue
				}
				prop, err := schemaFromMap(propMap)
				if err != nil {
					return nil, err
				}
				schema.Properties[name] = prop
			}
		}
		if required, ok := raw["required"].([]any); ok {
			for _, r := range required {
				if s, ok := r.(string); ok {
					schema.Required = append(schema.Required, s)
				}
			}
		}
	case "array":
		schema.Type = genai.TypeArray
		if items, ok := raw["items"].(map[string]any); ok {
			itemSchema, err := schemaFromMap(items)
			if err != nil {
				return nil, err
			}
			schema.Items = itemSchema
		}
	case "integer":
		schema.Type = genai.TypeInteger
	case "number":
		schema.Type = genai.TypeNumber
	case "boolean":
		schema.Type = genai.TypeBoolean
	default:
		schema.Type = genai.TypeString
	}
	if desc, ok := raw["description"].(string); ok {
		schema.Description = desc
	}
	return schema, nil
}

// wrapAPIError maps a Gemini SDK error to a llm.CategorizedError using
// the googleapi error status, where present.
func wrapAPIError(err error) error {
	var apiErr interface {
		error
		Code() int
	}
	if errors.As(err, &apiErr) {
		switch apiErr.Code() {
		case 401, 403:
			return llm.Wrap(err, "gemini", err.Error(), llm.CategoryAuth)
		case 429:
			return llm.Wrap(err, "gemini", err.Error(), llm.CategoryRateLimit)
		case 404:
			return llm.Wrap(err, "gemini", err.Error(), llm.CategoryNotFound)
		case 400:
			return llm.Wrap(err, "gemini", err.Error(), llm.CategoryInvalidRequest)
		}
		if apiErr.Code() >= 500 {
			return llm.Wrap(err, "gemini", err.Error(), llm.CategoryServer)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return llm.Wrap(err, "gemini", err.Error(), llm.CategoryCancelled)
	}
	return llm.Wrap(err, "gemini", err.Error(), llm.CategoryNetwork)
}
