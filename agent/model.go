package agent

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/time/rate"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/flow"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/tool"
)

// ModelAgentOptions configures a ModelAgent.
type ModelAgentOptions struct {
	Instruction           Instruction
	Description           string
	EnableStreaming       bool
	EnableFunctionCalling bool
	OutputKey             string
	MaxHistoryMessages    int
	// MaxIterations bounds tool rounds; afterwards the model must answer.
	MaxIterations int
	// RateLimiter throttles model calls, shared across agents when the same
	// limiter is passed to each.
	RateLimiter *rate.Limiter
	Tools       []tool.Tool
	// Executor replaces the default parallel tool executor.
	Executor flow.FunctionExecutor
}

// ModelAgent answers with a language model, calling registered tools until
// the model produces a final answer.
type ModelAgent struct {
	BaseAgent
	llm                   model.Model
	instruction           Instruction
	tools                 map[string]tool.Tool
	enableFunctionCalling bool
	enableStreaming       bool
	outputKey             string
	maxHistoryMessages    int
	maxIterations         int
	limiter               *rate.Limiter
	executor              flow.FunctionExecutor
}

// NewModelAgent creates a model-backed agent.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:           NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming:       true,
		EnableFunctionCalling: true,
		MaxHistoryMessages:    20,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &ModelAgent{
		BaseAgent:             NewBaseAgent(name),
		llm:                   llm,
		instruction:           opts.Instruction,
		enableStreaming:       opts.EnableStreaming,
		enableFunctionCalling: opts.EnableFunctionCalling,
		outputKey:             opts.OutputKey,
		maxHistoryMessages:    opts.MaxHistoryMessages,
		maxIterations:         opts.MaxIterations,
		limiter:               opts.RateLimiter,
		executor:              opts.Executor,
		tools:                 make(map[string]tool.Tool, len(opts.Tools)),
	}

	if opts.Description != "" {
		a.SetDescription(opts.Description)
	}

	a.RegisterTools(opts.Tools...)

	return a
}

// RegisterTool adds t, replacing any tool of the same name.
func (a *ModelAgent) RegisterTool(t tool.Tool) {
	a.tools[t.Name()] = t
}

func (a *ModelAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// UnregisterTool reports whether name was registered.
func (a *ModelAgent) UnregisterTool(name string) bool {
	if _, exists := a.tools[name]; exists {
		delete(a.tools, name)
		return true
	}
	return false
}

func (a *ModelAgent) HasTool(name string) bool {
	_, exists := a.tools[name]
	return exists
}

// ListTools returns the registered tool names in sorted order.
func (a *ModelAgent) ListTools() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *ModelAgent) GetName() string { return a.Name() }

func (a *ModelAgent) GetLLM() model.Model { return a.llm }

// GetTools returns a copy of the tool registry.
func (a *ModelAgent) GetTools() map[string]tool.Tool {
	tools := make(map[string]tool.Tool, len(a.tools))
	for name, t := range a.tools {
		tools[name] = t
	}
	return tools
}

func (a *ModelAgent) IsFunctionCallingEnabled() bool { return a.enableFunctionCalling }

func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

func (a *ModelAgent) GetOutputKey() string { return a.outputKey }

func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

func (a *ModelAgent) MaxIterations() int { return a.maxIterations }

func (a *ModelAgent) RateLimiter() *rate.Limiter { return a.limiter }

// ResolveInstructions returns the system prompt before state interpolation.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// Run executes the tool-calling flow and forwards its events to the runner.
// An error event produced by the flow is returned as an error.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	runCtx.LogDebug("agent.run.start", "agent", a.Name(), "run", runCtx.RunID)

	fl := flow.NewSingleAgentFlow(a)
	if a.executor != nil {
		fl.SetFunctionExecutor(a.executor)
	}

	eventChan, err := fl.Execute(runCtx)
	if err != nil {
		runCtx.LogError("agent.flow.execute.error", "agent", a.Name(), "error", err.Error())
		return fmt.Errorf("flow execution failed: %w", err)
	}

	var runErr error
	for event := range eventChan {
		if event.IsError() && runErr == nil {
			runErr = eventError(event)
		}

		if err := runCtx.EmitEvent(event); err != nil {
			runCtx.LogWarn("agent.run.context_done", "agent", a.Name(), "error", err.Error())
			// unblock the flow so its goroutine can exit
			for range eventChan {
			}
			return err
		}

		runCtx.LogDebug("agent.event.forward",
			"agent", a.Name(),
			"event_id", event.ID,
			"partial", event.IsPartial(),
			"fn_calls", len(event.GetFunctionCalls()),
		)
	}

	if runErr != nil {
		runCtx.LogError("agent.run.error", "agent", a.Name(), "error", runErr.Error())
		return runErr
	}

	runCtx.LogDebug("agent.run.complete", "agent", a.Name())

	return nil
}

// EventError is returned by Run when the flow ends with an error event.
type EventError struct {
	Agent   string
	Code    string
	Message string
}

func (e *EventError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("agent %s: %s", e.Agent, e.Message)
	}
	return fmt.Sprintf("agent %s: %s: %s", e.Agent, e.Code, e.Message)
}

func eventError(ev core.Event) error {
	e := &EventError{Agent: ev.Author}
	if ev.ErrorCode != nil {
		e.Code = *ev.ErrorCode
	}
	if ev.ErrorMessage != nil {
		e.Message = *ev.ErrorMessage
	}
	return e
}

// IsCode reports whether err is an EventError with the given code.
func IsCode(err error, code string) bool {
	var ee *EventError
	return errors.As(err, &ee) && ee.Code == code
}
