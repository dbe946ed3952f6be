package flow

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/tool"
)

// ForceFinalAnswerPrompt is appended once an agent exhausts its tool rounds.
const ForceFinalAnswerPrompt = "You have used the maximum number of tool calls. " +
	"Do not call any more tools. Give your best complete final answer now."

// flowError carries the code of the error event to emit.
type flowError struct {
	code string
	err  error
}

func (e *flowError) Error() string { return e.err.Error() }

func (e *flowError) Unwrap() error { return e.err }

// BaseFlow runs request -> model -> (tool calls -> model)* -> final answer
// with pluggable request and response processors.
//
// With MaxIterations > 0 the loop makes at most MaxIterations+1 model calls:
// the last one must be a text answer, otherwise the flow fails with
// ErrCodeMaxIterations.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	executor           FunctionExecutor
}

// NewBaseFlow creates a flow without processors.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:    agent,
		executor: NewParallelFunctionExecutor(),
	}
}

// AddRequestProcessor appends a request processor; registration order is execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a processor run on every model response.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor replaces the tool executor.
func (f *BaseFlow) SetFunctionExecutor(executor FunctionExecutor) {
	f.executor = executor
}

// Execute launches the flow asynchronously. The channel is closed after the
// final answer or an error event.
func (f *BaseFlow) Execute(runCtx *core.RunContext) (<-chan core.Event, error) {
	if f.agent.GetLLM() == nil {
		return nil, fmt.Errorf("agent %s has no model", f.agent.GetName())
	}

	eventChan := make(chan core.Event, 100)

	go func() {
		defer close(eventChan)

		rounds := 0
		for {
			forceFinal := f.agent.MaxIterations() > 0 && rounds >= f.agent.MaxIterations()

			last, err := f.runOnce(runCtx, eventChan, forceFinal)
			if err != nil {
				f.emitError(runCtx, eventChan, err)
				return
			}

			if last == nil || len(last.GetFunctionResponses()) == 0 {
				return
			}

			rounds++
		}
	}()

	return eventChan, nil
}

// emit sends ev and waits for persistence of non-partial events.
func (f *BaseFlow) emit(runCtx *core.RunContext, eventChan chan<- core.Event, ev core.Event) error {
	select {
	case eventChan <- ev:
	case <-runCtx.Done():
		return runCtx.Err()
	}

	if ev.IsPartial() {
		return nil
	}

	return runCtx.WaitForResume()
}

func (f *BaseFlow) emitError(runCtx *core.RunContext, eventChan chan<- core.Event, err error) {
	code := ErrCodeModel

	var fe *flowError
	switch {
	case errors.As(err, &fe):
		code = fe.code
	case runCtx.Err() != nil:
		code = ErrCodeCanceled
	}

	runCtx.LogError("flow.error", "agent", f.agent.GetName(), "code", code, "error", err.Error())

	ev := core.NewErrorEvent(runCtx.RunID, f.agent.GetName(), code, err)
	if runCtx.Err() != nil {
		// nobody is left to persist it
		select {
		case eventChan <- ev:
		default:
		}
		return
	}
	_ = f.emit(runCtx, eventChan, ev)
}

// runOnce performs one model call plus any tool executions it requests and
// returns the last emitted event.
func (f *BaseFlow) runOnce(runCtx *core.RunContext, eventChan chan<- core.Event, forceFinal bool) (*core.Event, error) {
	if err := runCtx.RefreshSession(); err != nil {
		runCtx.LogWarn("flow.session.refresh_failed", "agent", f.agent.GetName(), "error", err.Error())
	}

	req := &model.Request{Stream: f.agent.IsStreamingEnabled()}

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			return nil, &flowError{code: ErrCodeProcessor, err: fmt.Errorf("request processor %s failed: %w", processor.Name(), err)}
		}
	}

	// Forced rounds keep the definitions: providers reject tool history
	// without them. ToolChoiceNone asks for text instead.
	registry := f.agent.GetTools()
	if f.agent.IsFunctionCallingEnabled() && len(registry) > 0 {
		req.Tools = tool.Definitions(sortedTools(registry))
		if forceFinal {
			req.ToolChoice = model.ToolChoiceNone
			req.Contents = append(req.Contents, core.NewTextContent(core.RoleUser, ForceFinalAnswerPrompt))
		}
	}

	if err := runCtx.Limiter.Increment(); err != nil {
		return nil, &flowError{code: ErrCodeLimit, err: err}
	}

	if limiter := f.agent.RateLimiter(); limiter != nil {
		if err := limiter.Wait(runCtx.Context); err != nil {
			return nil, err
		}
	}

	runCtx.LogDebug("flow.model.request",
		"agent", f.agent.GetName(),
		"contents", len(req.Contents),
		"tools", len(req.Tools),
		"stream", req.Stream,
	)

	respCh, errCh := f.agent.GetLLM().Generate(runCtx.Context, *req)

	var (
		lastEvent *core.Event
		final     *core.Event
	)

	for resp := range respCh {
		for _, processor := range f.responseProcessors {
			if err := processor.ProcessResponse(runCtx, req, &resp, f.agent); err != nil {
				drain(respCh)
				return nil, &flowError{code: ErrCodeProcessor, err: fmt.Errorf("response processor %s failed: %w", processor.Name(), err)}
			}
		}

		ev := f.responseEvent(runCtx, resp)
		if err := f.emit(runCtx, eventChan, ev); err != nil {
			drain(respCh)
			return nil, err
		}

		lastEvent = &ev
		if !resp.Partial {
			final = &ev
		}
	}

	if err, ok := <-errCh; ok && err != nil {
		return nil, err
	}

	if final == nil {
		return lastEvent, nil
	}

	fnCalls := final.GetFunctionCalls()
	if forceFinal && (len(fnCalls) > 0 || strings.TrimSpace(final.Text()) == "") {
		return nil, &flowError{
			code: ErrCodeMaxIterations,
			err:  fmt.Errorf("%w: %s after %d tool rounds", ErrMaxIterations, f.agent.GetName(), f.agent.MaxIterations()),
		}
	}
	if len(fnCalls) == 0 {
		return final, nil
	}

	var (
		mu      sync.Mutex
		emitErr error
	)
	f.executor.Execute(runCtx, f.agent, registry, fnCalls, func(ev core.Event) error {
		mu.Lock()
		defer mu.Unlock()
		if err := f.emit(runCtx, eventChan, ev); err != nil {
			emitErr = err
			return err
		}
		lastEvent = &ev
		return nil
	})

	if emitErr != nil {
		return nil, emitErr
	}

	return lastEvent, nil
}

func (f *BaseFlow) responseEvent(runCtx *core.RunContext, resp model.Response) core.Event {
	ev := core.NewEvent(runCtx.RunID, f.agent.GetName())

	content := resp.Content
	if content.Role == "" {
		content.Role = core.RoleAssistant
	}
	ev.Content = &content

	partial := resp.Partial
	ev.Partial = &partial

	if resp.Partial {
		return ev
	}

	ev.Usage = resp.Usage
	if resp.FinishReason != "" {
		ev.CustomMetadata = map[string]string{"finish_reason": resp.FinishReason}
	}

	if len(ev.GetFunctionCalls()) == 0 {
		complete := true
		ev.TurnComplete = &complete

		if key := f.agent.GetOutputKey(); key != "" {
			ev.Actions.StateDelta = map[string]any{key: content.Text()}
		}
	}

	return ev
}

func sortedTools(registry map[string]tool.Tool) []tool.Tool {
	tools := make([]tool.Tool, 0, len(registry))
	for _, name := range sortedNames(registry) {
		tools = append(tools, registry[name])
	}
	return tools
}

func drain(ch <-chan model.Response) {
	go func() {
		for range ch {
		}
	}()
}
