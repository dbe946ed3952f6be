package flow

import (
	"fmt"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/util"
	"github.com/hupe1980/agentcrew/model"
)

// InstructionsProcessor resolves the agent's instructions and substitutes
// {key} placeholders with session state.
type InstructionsProcessor struct{}

func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

func (p *InstructionsProcessor) Name() string { return "instructions" }

func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	req.Instructions = util.Interpolate(instructions, runCtx.State())

	runCtx.LogDebug("agent.instruction.resolved", "agent", agent.GetName(), "length", len(req.Instructions))

	return nil
}

// ContentsProcessor adds the branch conversation history.
//
// When the history exceeds MaxHistoryMessages the oldest events are dropped,
// except the first user message, which carries the task. Tool results whose
// call was dropped are removed as well.
type ContentsProcessor struct{}

func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

func (p *ContentsProcessor) Name() string { return "contents" }

func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	events := truncateHistory(runCtx.History(), agent.MaxHistoryMessages())

	for _, ev := range events {
		if ev.Content != nil && len(ev.Content.Parts) > 0 {
			req.Contents = append(req.Contents, *ev.Content)
		}
	}

	if len(req.Contents) == 0 && len(runCtx.UserContent.Parts) > 0 {
		req.Contents = append(req.Contents, runCtx.UserContent)
	}

	return nil
}

func truncateHistory(events []core.Event, limit int) []core.Event {
	if limit <= 0 || len(events) <= limit {
		return events
	}

	var head []core.Event
	for _, ev := range events[:len(events)-limit] {
		if ev.Content != nil && ev.Content.Role == core.RoleUser {
			head = append(head, ev)
			limit--
			break
		}
	}

	tail := events[len(events)-max(limit, 0):]
	for len(tail) > 0 && tail[0].Content != nil && tail[0].Content.Role == core.RoleTool {
		tail = tail[1:]
	}

	return append(head, tail...)
}

// FinalAnswerProcessor strips tool calls from responses to a request that
// asked for text only (ToolChoiceNone). Models do not always honor the tool
// choice; the text they sent along is kept as the answer.
type FinalAnswerProcessor struct{}

func NewFinalAnswerProcessor() *FinalAnswerProcessor { return &FinalAnswerProcessor{} }

func (p *FinalAnswerProcessor) Name() string { return "final_answer" }

func (p *FinalAnswerProcessor) ProcessResponse(runCtx *core.RunContext, req *model.Request, resp *model.Response, agent FlowAgent) error {
	if req.ToolChoice != model.ToolChoiceNone {
		return nil
	}

	kept := make([]core.Part, 0, len(resp.Content.Parts))
	for _, part := range resp.Content.Parts {
		if _, ok := part.(core.FunctionCallPart); !ok {
			kept = append(kept, part)
		}
	}

	dropped := len(resp.Content.Parts) - len(kept)
	if dropped == 0 {
		return nil
	}

	resp.Content.Parts = kept
	if resp.FinishReason == "tool_calls" {
		resp.FinishReason = "stop"
	}
	if !resp.Partial {
		runCtx.LogWarn("flow.final_answer.tool_calls_dropped", "agent", agent.GetName(), "dropped", dropped)
	}

	return nil
}
