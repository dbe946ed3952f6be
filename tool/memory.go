package tool

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentcrew/core"
)

// MemoryTool lets agents recall and record facts in the run's MemoryStore.
type MemoryTool struct {
	name        string
	description string
	limit       int
}

// NewMemoryTool creates the crew memory tool. limit caps search results.
func NewMemoryTool(limit int) *MemoryTool {
	if limit <= 0 {
		limit = 5
	}
	return &MemoryTool{
		name: "crew_memory",
		description: "Recall or record facts shared across the crew. " +
			"Use operation search_memory with a query to look up earlier findings, " +
			"or store_memory with content to save a finding for coworkers.",
		limit: limit,
	}
}

func (t *MemoryTool) Name() string { return t.name }

func (t *MemoryTool) Description() string { return t.description }

func (t *MemoryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type":        "string",
				"enum":        []string{"search_memory", "store_memory"},
				"description": "The memory operation to perform",
			},
			"query": map[string]any{
				"type":        "string",
				"description": "Search query for search_memory",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Text to remember for store_memory",
			},
		},
		"required": []string{"operation"},
	}
}

func (t *MemoryTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	op, _ := StringArg(args, "operation")

	switch op {
	case "search_memory":
		query, _ := StringArg(args, "query")

		results, err := toolCtx.SearchMemory(query, t.limit)
		if err != nil {
			return nil, NewToolError(t.name, err.Error(), CodeExecution)
		}
		if len(results) == 0 {
			return "No relevant memories found.", nil
		}

		var sb strings.Builder
		for i, r := range results {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, r.Content)
		}
		return strings.TrimRight(sb.String(), "\n"), nil

	case "store_memory":
		content, ok := StringArg(args, "content")
		if !ok {
			return nil, NewToolError(t.name, "content is required for store_memory", CodeValidation)
		}

		md := map[string]any{"agent": toolCtx.AgentName()}
		if b := toolCtx.Branch(); b != "" {
			md["branch"] = b
		}

		if err := toolCtx.StoreMemory(content, md); err != nil {
			return nil, NewToolError(t.name, err.Error(), CodeExecution)
		}
		return "Memory stored.", nil

	default:
		return nil, NewToolError(t.name, fmt.Sprintf("unsupported operation: %q", op), CodeValidation)
	}
}
