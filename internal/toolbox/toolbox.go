// Package toolbox implements the fixed set of filesystem and
// requirements tools every agent may invoke, as a single table backing
// both the agent-facing spec and runtime dispatch, so the two can never
// drift apart.
package toolbox

import (
	"encoding/json"

	"github.com/liftdev/lift/internal/requirements"
	"github.com/liftdev/lift/internal/sandbox"
)

// Result is the JSON-serializable payload a tool call produces. Tool
// failures are reported inside Result (an "error" key), never as a Go
// error — only an unknown tool name is a dispatch-level failure.
type Result map[string]any

// Spec is the agent-facing declaration of one tool: name, description,
// and a JSON-schema-shaped parameters object.
type Spec struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// ParametersSchema renders Spec as the JSON-schema object a provider's
// tool-calling API expects.
func (s Spec) ParametersSchema() map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": s.Properties,
	}
	if len(s.Required) > 0 {
		schema["required"] = s.Required
	}
	return schema
}

// Impl is a tool's implementation, given its call arguments already
// decoded from JSON.
type Impl func(args map[string]any) Result

// tool bundles a Spec with its Impl so registration can never list one
// without the other.
type tool struct {
	spec Spec
	impl Impl
}

// Registry is the fixed, immutable set of tools exposed to every agent,
// built once at startup from the sandbox and requirements document it
// mediates access to.
type Registry struct {
	tools map[string]tool
	order []string
}

// New builds the full tool registry over sb (the filesystem trust
// boundary) and reqs (the parsed requirements document).
func New(sb *sandbox.Sandbox, reqs *requirements.Document) *Registry {
	r := &Registry{tools: make(map[string]tool)}
	r.register(listDirTool(sb))
	r.register(readFileTool(sb))
	r.register(readManyTool(sb))
	r.register(writeFileTool(sb))
	r.register(deletePathTool(sb))
	r.register(replaceInFileTool(sb))
	r.register(getAllRequirementsTool(reqs))
	r.register(getAllRequirementIDsTool(reqs))
	r.register(getRequirementDataTool(reqs))
	r.register(endConversationTool())
	return r
}

func (r *Registry) register(spec Spec, impl Impl) {
	r.tools[spec.Name] = tool{spec: spec, impl: impl}
	r.order = append(r.order, spec.Name)
}

// Specs returns every registered tool's Spec, in registration order.
func (r *Registry) Specs() []Spec {
	specs := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].spec)
	}
	return specs
}

// Dispatch looks up name and, if found, decodes argsJSON and invokes its
// Impl. found is false for an unknown tool name — the agent runtime
// treats that as a CALL_ERROR outcome, distinct from an in-band tool
// failure reported via Result's "error" key.
func (r *Registry) Dispatch(name string, argsJSON string) (result Result, found bool) {
	t, ok := r.tools[name]
	if !ok {
		return nil, false
	}

	var args map[string]any
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return Result{"error": "invalid_arguments"}, true
		}
	}
	return t.impl(args), true
}

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

func boolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
