package flow

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/tool"
)

// FunctionExecutor runs the tool calls of one model response and reports one
// function response event per call through emit. Implementations recover tool
// panics and stop launching calls once runCtx is canceled.
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agent FlowAgent, toolRegistry map[string]tool.Tool, fnCalls []core.FunctionCall, emit func(core.Event) error)
}

// FunctionExecutorOptions tune the parallel executor.
type FunctionExecutorOptions struct {
	// MaxParallel caps concurrent tool calls. Zero or less runs every call
	// of a batch at once.
	MaxParallel int
	// PreserveOrder emits responses in call order instead of completion order.
	PreserveOrder bool
}

type parallelFunctionExecutor struct {
	opts FunctionExecutorOptions
}

// NewParallelFunctionExecutor returns the default executor: up to four
// concurrent calls, responses in call order.
func NewParallelFunctionExecutor(optFns ...func(o *FunctionExecutorOptions)) FunctionExecutor {
	opts := FunctionExecutorOptions{MaxParallel: 4, PreserveOrder: true}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &parallelFunctionExecutor{opts: opts}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agent FlowAgent,
	toolRegistry map[string]tool.Tool,
	fnCalls []core.FunctionCall,
	emit func(core.Event) error,
) {
	if len(fnCalls) == 0 {
		return
	}

	var (
		mu      sync.Mutex
		ordered = make([]*core.Event, len(fnCalls))
		g       errgroup.Group
	)

	if e.opts.MaxParallel > 0 {
		g.SetLimit(e.opts.MaxParallel)
	}

	send := func(ev core.Event, name string) {
		if err := emit(ev); err != nil {
			runCtx.LogError("tool.response.emit.error", "agent", agent.GetName(), "tool", name, "error", err.Error())
		}
	}

	start := time.Now()

	for i, fc := range fnCalls {
		if runCtx.Err() != nil {
			break
		}

		g.Go(func() error {
			if runCtx.Err() != nil {
				return nil
			}

			ev := callTool(runCtx, agent, toolRegistry, fc)

			mu.Lock()
			defer mu.Unlock()

			if e.opts.PreserveOrder {
				ordered[i] = &ev
			} else {
				send(ev, fc.Name)
			}
			return nil
		})
	}

	_ = g.Wait()

	for i, ev := range ordered {
		if ev != nil {
			send(*ev, fnCalls[i].Name)
		}
	}

	runCtx.LogDebug("tool.batch.complete",
		"agent", agent.GetName(),
		"count", len(fnCalls),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// callTool runs one call and turns its outcome, panics included, into a
// function response event carrying the tool's state actions.
func callTool(runCtx *core.RunContext, agent FlowAgent, toolRegistry map[string]tool.Tool, fc core.FunctionCall) core.Event {
	toolCtx := core.NewToolContext(runCtx, fc.ID)
	start := time.Now()

	var (
		result any
		err    error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r, Stack: debug.Stack()}
				runCtx.LogError("tool.call.panic", "agent", agent.GetName(), "tool", fc.Name, "recover", r)
			}
		}()
		result, err = executeTool(toolRegistry, toolCtx, fc.Name, fc.Arguments)
	}()

	if err != nil {
		runCtx.LogWarn("tool.call.error", "agent", agent.GetName(), "tool", fc.Name, "error", err.Error())
	} else {
		runCtx.LogInfo("tool.call.success", "agent", agent.GetName(), "tool", fc.Name,
			"duration_ms", time.Since(start).Milliseconds())
	}

	ev := core.NewFunctionResponseEvent(runCtx.RunID, agent.GetName(), fc.ID, fc.Name, result, err)
	toolCtx.ApplyActions(&ev)

	return ev
}

// PanicError is reported to the model when a tool panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string { return fmt.Sprintf("tool panicked: %v", p.Value) }

// executeTool looks up and invokes a tool. Unknown names produce an error
// listing the available tools so the model can correct itself.
func executeTool(toolRegistry map[string]tool.Tool, toolCtx *core.ToolContext, toolName, args string) (any, error) {
	impl, ok := toolRegistry[toolName]
	if !ok {
		return nil, tool.NewToolError(toolName,
			fmt.Sprintf("tool %q does not exist, available tools: %s", toolName, strings.Join(sortedNames(toolRegistry), ", ")),
			tool.CodeNotFound)
	}

	argMap := map[string]any{}
	if strings.TrimSpace(args) != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return nil, tool.NewToolError(toolName, fmt.Sprintf("invalid JSON arguments: %v", err), tool.CodeValidation)
		}
	}

	return impl.Call(toolCtx, argMap)
}

func sortedNames(registry map[string]tool.Tool) []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
