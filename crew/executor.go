package crew

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/runner"
	"github.com/hupe1980/agentcrew/tool"
)

// ErrNoFinalAnswer is returned when an agent stops without answering.
var ErrNoFinalAnswer = errors.New("agent returned no final answer")

// execute runs a on prompt in its own session and returns the final answer.
func (k *kickoff) execute(ctx context.Context, a *Agent, prompt string, tools []tool.Tool, sessionID string) (string, error) {
	ma := agent.NewModelAgent(a.Role, a.LLM, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(a.SystemPrompt())
		o.Description = a.Goal
		o.EnableStreaming = false
		o.MaxIterations = a.maxIter()
		o.RateLimiter = k.limiterFor(a)
		o.Tools = tools
	})

	r := runner.New(ma, func(o *runner.Options) {
		o.SessionStore = k.sessions
		o.ArtifactStore = k.artifacts
		o.MemoryStore = k.memory
		o.Logger = k.logger
		o.MaxModelCalls = 0
	})

	_, eventsCh, errorsCh, err := r.Run(ctx, sessionID, core.NewTextContent(core.RoleUser, prompt))
	if err != nil {
		return "", err
	}

	var (
		final    string
		firstErr error
	)

	for eventsCh != nil || errorsCh != nil {
		select {
		case ev, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			k.onEvent(a, ev)
			if ev.Author == a.Role && ev.IsFinalResponse() && !ev.IsError() {
				if text := strings.TrimSpace(ev.Text()); text != "" {
					final = text
				}
			}
		case err, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr != nil {
		return "", firstErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if final == "" {
		return "", fmt.Errorf("%w: %s", ErrNoFinalAnswer, a.Role)
	}

	if k.verbose(a) {
		k.printer.finalAnswer(a.Role, final)
	}

	return final, nil
}

func (k *kickoff) onEvent(a *Agent, ev core.Event) {
	if ev.IsPartial() {
		return
	}

	k.addUsage(ev.Usage)

	if k.verbose(a) {
		for _, fc := range ev.GetFunctionCalls() {
			k.printer.toolCall(a.Role, fc.Name, fc.Arguments)
		}
		for _, fr := range ev.GetFunctionResponses() {
			k.printer.toolResult(fr)
		}
	}

	if k.crew.StepCallback != nil {
		k.crew.StepCallback(ev)
	}
}
