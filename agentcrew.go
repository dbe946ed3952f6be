// Package agentcrew provides a small façade for running a single tool-using
// agent. An Executor wraps a model and a set of tools; every Invoke runs a
// fresh ReAct-style loop (model call, tool calls, model call, ...) until the
// model answers without requesting tools, and returns the input together with
// the final answer.
//
// Multi-agent work is modelled by the crew package; crew definitions can be
// loaded from YAML with the config package.
package agentcrew

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/runner"
	"github.com/hupe1980/agentcrew/session"
	"github.com/hupe1980/agentcrew/tool"
)

// DefaultInstruction is the system prompt used when none is configured.
const DefaultInstruction = "Answer the following questions as best you can. " +
	"Use the available tools when you need up-to-date information, " +
	"then give a concise final answer."

// DefaultMaxIterations bounds the tool rounds of an Executor. After it the
// model gets one more call without tools to give its final answer.
const DefaultMaxIterations = 15

// ErrNoOutput is returned when the agent finishes without a final answer.
var ErrNoOutput = errors.New("agent returned no output")

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	Instruction string
	// MaxIterations bounds the tool rounds. Defaults to DefaultMaxIterations;
	// a negative value removes the bound.
	MaxIterations int
	// Verbose prints every tool invocation and the final answer to Output.
	Verbose bool
	Output  io.Writer

	SessionStore core.SessionStore
	Logger       logging.Logger
}

// Executor runs one agent over a model and a set of tools.
type Executor struct {
	name  string
	llm   model.Model
	tools []tool.Tool
	opts  ExecutorOptions

	mu sync.Mutex
}

// Result is the outcome of one invocation.
type Result struct {
	Input  string           `json:"input"`
	Output string           `json:"output"`
	Usage  model.TokenUsage `json:"usage"`
}

func (r Result) String() string {
	return fmt.Sprintf("{input: %s, output: %s}", r.Input, r.Output)
}

// NewExecutor creates an Executor named name.
func NewExecutor(name string, llm model.Model, tools []tool.Tool, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{
		Instruction:   DefaultInstruction,
		MaxIterations: DefaultMaxIterations,
		Output:        os.Stderr,
		SessionStore:  session.NewInMemoryStore(),
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Executor{name: name, llm: llm, tools: tools, opts: opts}
}

// Invoke answers input. Each call runs in its own session.
func (e *Executor) Invoke(ctx context.Context, input string) (*Result, error) {
	a := agent.NewModelAgent(e.name, e.llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(e.opts.Instruction)
		o.EnableStreaming = false
		o.MaxIterations = max(e.opts.MaxIterations, 0)
		o.Tools = e.tools
	})

	r := runner.New(a, func(o *runner.Options) {
		o.SessionStore = e.opts.SessionStore
		o.Logger = e.opts.Logger
		o.MaxModelCalls = 0
	})

	e.printf("\n> Entering new AgentExecutor chain...\n")

	_, events, err := r.RunSync(ctx, core.NewID(), core.NewTextContent(core.RoleUser, input))
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", e.name, err)
	}

	res := &Result{Input: input}
	for _, ev := range events {
		if ev.IsPartial() {
			continue
		}
		if ev.Usage != nil {
			res.Usage.Add(*ev.Usage)
		}

		for _, fc := range ev.GetFunctionCalls() {
			e.printf("Invoking: `%s` with `%s`\n", fc.Name, fc.Arguments)
		}
		for _, fr := range ev.GetFunctionResponses() {
			e.printf("%s\n", model.ResponseText(fr))
		}

		if ev.Author == e.name && ev.IsFinalResponse() && !ev.IsError() {
			if text := strings.TrimSpace(ev.Text()); text != "" {
				res.Output = text
			}
		}
	}

	if res.Output == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoOutput, e.name)
	}

	e.printf("%s\n\n> Finished chain.\n", res.Output)

	return res, nil
}

func (e *Executor) printf(format string, args ...any) {
	if !e.opts.Verbose || e.opts.Output == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fmt.Fprintf(e.opts.Output, format, args...)
}
