package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentcrew/core"
)

// ParallelAgent runs its children concurrently, each on its own branch
// "<parent>.<child>" so their histories stay apart. Child events are relayed
// to the runner one at a time; a child resumes only after its event was
// persisted. Siblings keep running when one fails; the first error is
// returned once all are done.
type ParallelAgent struct {
	BaseAgent
	children []core.Agent
	timeout  time.Duration
}

// NewParallelAgent creates a coordinator. A zero timeout means no limit.
func NewParallelAgent(name string, timeout time.Duration, children ...core.Agent) *ParallelAgent {
	return &ParallelAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
		timeout:   timeout,
	}
}

func (p *ParallelAgent) Run(runCtx *core.RunContext) error {
	ctx := runCtx.Context
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)

	// relay forwards one child event upstream and resumes the child once the
	// runner persisted it.
	relay := func(ev core.Event, resume chan<- struct{}) error {
		mu.Lock()
		defer mu.Unlock()

		if err := runCtx.EmitEvent(ev); err != nil {
			return err
		}
		if ev.IsPartial() {
			return nil
		}
		if err := runCtx.WaitForResume(); err != nil {
			return err
		}
		select {
		case resume <- struct{}{}:
		default:
		}
		return nil
	}

	for _, child := range p.children {
		emit := make(chan core.Event, 16)
		resume := make(chan struct{}, 1)

		childCtx := runCtx.NewChildContext(emit, resume, p.branchFor(runCtx, child))
		childCtx.Context = ctx
		childCtx.Agent = core.AgentInfo{Name: child.Name(), Type: runCtx.Agent.Type}

		g.Go(func() error {
			done := make(chan error, 1)
			go func() { done <- child.Run(childCtx) }()

			for {
				select {
				case ev := <-emit:
					if err := relay(ev, resume); err != nil {
						<-done
						return fmt.Errorf("parallel execution failed for agent %s: %w", child.Name(), err)
					}
				case err := <-done:
					// trailing partials the child emitted before returning
					for len(emit) > 0 {
						_ = relay(<-emit, resume)
					}
					if err != nil {
						return fmt.Errorf("parallel execution failed for agent %s: %w", child.Name(), err)
					}
					return nil
				}
			}
		})
	}

	return g.Wait()
}

func (p *ParallelAgent) branchFor(runCtx *core.RunContext, child core.Agent) string {
	return buildBranchPath(runCtx.Branch, fmt.Sprintf("%s.%s", p.Name(), child.Name()))
}
