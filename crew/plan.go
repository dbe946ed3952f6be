package crew

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/runner"
)

// StateKeyPrefix prefixes the kickoff session state entries that hold task
// outputs, e.g. "task:research".
const StateKeyPrefix = "task:"

// taskStep is one task of a kickoff plan. It executes the task in its own
// session and reports the final answer to the kickoff session as a message
// authored by the task.
type taskStep struct {
	agent.BaseAgent
	run   *planRun
	index int
	// first task of the batch this step belongs to; outputs before it are
	// complete when the step starts.
	batchStart int
}

func (s *taskStep) Run(runCtx *core.RunContext) error {
	out, err := s.run.k.runTask(runCtx.Context, s.index, s.run.outputs[:s.batchStart])
	if err != nil {
		s.run.fail(err)
		return err
	}
	s.run.outputs[s.index] = out

	runCtx.SetState(StateKeyPrefix+s.Name(), out.Raw)
	return runCtx.EmitAndWait(core.NewMessageEvent(runCtx.RunID, s.Name(), out.Raw))
}

// planRun collects the results of one plan execution. Steps write disjoint
// indexes of outputs.
type planRun struct {
	k       *kickoff
	outputs []TaskOutput

	mu  sync.Mutex
	err error
}

func (p *planRun) fail(err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()
}

func (p *planRun) firstErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// plan arranges the tasks as a sequence of steps. Consecutive async tasks
// form one parallel batch; the batch sees the outputs completed before it.
func (p *planRun) plan() core.Agent {
	tasks := p.k.tasks

	var steps []core.Agent
	for start := 0; start < len(tasks); {
		end := start + 1
		for tasks[start].AsyncExecution && end < len(tasks) && tasks[end].AsyncExecution {
			end++
		}

		batch := make([]core.Agent, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, &taskStep{
				BaseAgent:  agent.NewBaseAgent(tasks[i].Name),
				run:        p,
				index:      i,
				batchStart: start,
			})
		}

		if len(batch) == 1 {
			steps = append(steps, batch[0])
		} else {
			steps = append(steps, agent.NewParallelAgent(fmt.Sprintf("batch-%d", start+1), 0, batch...))
		}

		start = end
	}

	return agent.NewSequentialAgent("crew", steps...)
}

// runTasks executes the plan on a runner bound to the kickoff session,
// which ends up holding one message and one state entry per task.
func (k *kickoff) runTasks(ctx context.Context) ([]TaskOutput, error) {
	p := &planRun{k: k, outputs: make([]TaskOutput, len(k.tasks))}

	r := runner.New(p.plan(), func(o *runner.Options) {
		o.SessionStore = k.sessions
		o.ArtifactStore = k.artifacts
		o.Logger = k.logger
		o.MaxModelCalls = 0
	})

	_, _, err := r.RunSync(ctx, k.id, core.NewTextContent(core.RoleUser, k.describeInputs()))
	if taskErr := p.firstErr(); taskErr != nil {
		return nil, taskErr
	}
	if err != nil {
		return nil, err
	}

	return p.outputs, nil
}

// describeInputs renders the kickoff inputs as the opening user turn.
func (k *kickoff) describeInputs() string {
	if len(k.inputs) == 0 {
		return "kickoff"
	}
	keys := make([]string, 0, len(k.inputs))
	for name := range k.inputs {
		keys = append(keys, name)
	}
	slices.Sort(keys)

	var sb strings.Builder
	sb.WriteString("kickoff")
	for _, name := range keys {
		fmt.Fprintf(&sb, "\n%s: %s", name, k.inputs[name])
	}
	return sb.String()
}
