package agent

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/agentcrew/core"
)

var (
	// ErrAlreadyRunning is returned by Start for a run that was started before.
	ErrAlreadyRunning = errors.New("agent is already running")
	// ErrNotRunning is returned by Stop for a run that is not active.
	ErrNotRunning = errors.New("agent is not running")
)

// BaseAgent holds the identity, the active runs and the position in an agent
// tree. Concrete agents embed it and add Run to satisfy core.Agent. One agent
// value may serve several runs at once; each run is tracked by its RunID.
type BaseAgent struct {
	name        string
	description string

	mu        sync.Mutex
	runs      map[string]struct{}
	parent    core.Agent
	subAgents []core.Agent
}

func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
	}
}

func (b *BaseAgent) Name() string { return b.name }

func (b *BaseAgent) Description() string { return b.description }

func (b *BaseAgent) SetDescription(desc string) { b.description = desc }

// Start registers runCtx's run.
func (b *BaseAgent) Start(runCtx *core.RunContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.runs[runCtx.RunID]; ok {
		return fmt.Errorf("%w: %s (run %s)", ErrAlreadyRunning, b.name, runCtx.RunID)
	}
	if b.runs == nil {
		b.runs = map[string]struct{}{}
	}
	b.runs[runCtx.RunID] = struct{}{}

	return nil
}

// Stop unregisters runCtx's run.
func (b *BaseAgent) Stop(runCtx *core.RunContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.runs[runCtx.RunID]; !ok {
		return fmt.Errorf("%w: %s (run %s)", ErrNotRunning, b.name, runCtx.RunID)
	}
	delete(b.runs, runCtx.RunID)

	return nil
}

// ActiveRuns reports how many runs are between Start and Stop.
func (b *BaseAgent) ActiveRuns() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.runs)
}

type parentSetter interface{ setParent(core.Agent) }

// SetSubAgents replaces the children and makes this agent their parent.
// Duplicate names among the children are rejected.
func (b *BaseAgent) SetSubAgents(children ...core.Agent) error {
	names := make([]string, 0, len(children))
	for _, child := range children {
		if slices.Contains(names, child.Name()) {
			return fmt.Errorf("duplicate sub-agent %q in %s", child.Name(), b.name)
		}
		names = append(names, child.Name())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, child := range b.subAgents {
		if s, ok := child.(parentSetter); ok {
			s.setParent(nil)
		}
	}

	b.subAgents = slices.Clone(children)
	for _, child := range b.subAgents {
		if s, ok := child.(parentSetter); ok {
			s.setParent(&agentWrapper{b})
		}
	}

	return nil
}

func (b *BaseAgent) setParent(p core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parent = p
}

func (b *BaseAgent) Parent() core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parent
}

func (b *BaseAgent) SubAgents() []core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.subAgents)
}

// FindAgent searches this agent and its descendants depth-first.
func (b *BaseAgent) FindAgent(name string) core.Agent {
	if b.name == name {
		return &agentWrapper{b}
	}

	for _, child := range b.SubAgents() {
		if child.Name() == name {
			return child
		}
		if found := child.FindAgent(name); found != nil {
			return found
		}
	}
	return nil
}

// agentWrapper lets a bare BaseAgent stand in as a parent reference.
type agentWrapper struct{ *BaseAgent }

func (w *agentWrapper) Run(_ *core.RunContext) error {
	return fmt.Errorf("agent %s has no Run implementation", w.name)
}
