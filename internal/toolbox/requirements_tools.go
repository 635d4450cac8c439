package toolbox

import "github.com/liftdev/lift/internal/requirements"

func getAllRequirementsTool(reqs *requirements.Document) (Spec, Impl) {
	spec := Spec{
		Name:        "get_all_requirements",
		Description: "Get all requirements (incl. id, title, description and acceptance), structured by scopes.",
		Properties:  map[string]any{},
	}
	impl := func(args map[string]any) Result {
		return Result{"tree": reqs.Tree()}
	}
	return spec, impl
}

func getAllRequirementIDsTool(reqs *requirements.Document) (Spec, Impl) {
	spec := Spec{
		Name:        "get_all_requirement_ids",
		Description: "Get the ids of all available requirements.",
		Properties:  map[string]any{},
	}
	impl := func(args map[string]any) Result {
		ids := make([]any, 0, len(reqs.IDs()))
		for _, id := range reqs.IDs() {
			ids = append(ids, id)
		}
		return Result{"ids": ids}
	}
	return spec, impl
}

func getRequirementDataTool(reqs *requirements.Document) (Spec, Impl) {
	spec := Spec{
		Name:        "get_requirement_data",
		Description: "Get the details of a requirement based on its identifier.",
		Properties: map[string]any{
			"identifier": map[string]any{"type": "string", "description": "Requirement identifier (id)."},
		},
		Required: []string{"identifier"},
	}
	impl := func(args map[string]any) Result {
		id := stringArg(args, "identifier", "")
		req, ok := reqs.Find(id)
		if !ok {
			return Result{"error": "identifier_unknown"}
		}
		return Result{
			"id":          req.ID,
			"title":       req.Title,
			"description": req.Description,
			"acceptance":  req.Acceptance,
		}
	}
	return spec, impl
}

// endConversationTool only surfaces the agent's final_text; it never
// finalizes by itself — the agent runtime forwards final_text to the
// agent-specific termination handler, which decides the outcome.
func endConversationTool() (Spec, Impl) {
	spec := Spec{
		Name:        "end_conversation",
		Description: "Calling this function indicates the intent to end the conversation after completing all tasks.",
		Properties: map[string]any{
			"final_text": map[string]any{"type": "string", "description": "The final text of the conversation."},
		},
		Required: []string{"final_text"},
	}
	impl := func(args map[string]any) Result {
		return Result{"final_text": stringArg(args, "final_text", "")}
	}
	return spec, impl
}
