package agent

import (
	"fmt"

	"github.com/hupe1980/agentcrew/core"
)

// SequentialAgent runs its children in order on the shared run context, so
// a child sees the history and state its predecessors produced. It stops at
// the first failing child or when the run is canceled between steps.
type SequentialAgent struct {
	BaseAgent
	steps []core.Agent
}

func NewSequentialAgent(name string, children ...core.Agent) *SequentialAgent {
	return &SequentialAgent{BaseAgent: NewBaseAgent(name), steps: children}
}

func (s *SequentialAgent) Run(runCtx *core.RunContext) error {
	for i, step := range s.steps {
		if err := runCtx.Err(); err != nil {
			return err
		}

		runCtx.LogDebug("agent.sequential.step", "agent", s.Name(), "step", i+1, "of", len(s.steps), "child", step.Name())

		if err := step.Run(runCtx); err != nil {
			return fmt.Errorf("step %d (%s) of %s failed: %w", i+1, step.Name(), s.Name(), err)
		}
	}
	return nil
}
