package tool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/util"
)

// Func is the body of a FunctionTool.
type Func func(toolCtx *core.ToolContext, args map[string]any) (any, error)

// FunctionTool exposes a Go function as a Tool. Arguments are checked
// against the declared schema before fn runs.
//
// Failures come back as *ToolError: CodeValidation for bad arguments and
// CodeExecution for errors from fn, unless fn already returned a *ToolError.
type FunctionTool struct {
	name, description string
	schema            map[string]any
	fn                Func
}

// NewFunctionTool constructs a FunctionTool from an explicit schema.
func NewFunctionTool(name, description string, parameters map[string]any, fn func(toolCtx *core.ToolContext, args map[string]any) (any, error)) *FunctionTool {
	return &FunctionTool{name: name, description: description, schema: parameters, fn: fn}
}

// NewFunctionToolFromStruct reflects the schema from structType, which
// uses json and jsonschema tags.
func NewFunctionToolFromStruct(name, description string, structType any, fn func(toolCtx *core.ToolContext, args map[string]any) (any, error)) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

func (t *FunctionTool) Name() string               { return t.name }
func (t *FunctionTool) Description() string        { return t.description }
func (t *FunctionTool) Parameters() map[string]any { return t.schema }

func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	if err := util.ValidateParameters(args, t.schema); err != nil {
		toolCtx.LogDebug("tool.args.invalid", "tool", t.name, "error", err.Error())
		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	out, err := t.fn(toolCtx, args)
	if err == nil {
		return out, nil
	}

	var te *ToolError
	if errors.As(err, &te) {
		return nil, te
	}
	return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution}
}
