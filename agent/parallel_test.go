package agent

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/testutil"
)

// testChildAgent is a concrete agent whose Run is supplied by the test.
type testChildAgent struct {
	BaseAgent
	runFn func(*core.RunContext) error

	mu          sync.Mutex
	receivedCtx *core.RunContext
}

func newTestChildAgent(name string, runFn func(*core.RunContext) error) *testChildAgent {
	if runFn == nil {
		runFn = func(*core.RunContext) error { return nil }
	}

	return &testChildAgent{BaseAgent: NewBaseAgent(name), runFn: runFn}
}

func (t *testChildAgent) Run(runCtx *core.RunContext) error {
	t.mu.Lock()
	t.receivedCtx = runCtx
	t.mu.Unlock()
	return t.runFn(runCtx)
}

func (t *testChildAgent) ctx() *core.RunContext {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.receivedCtx
}

// emitting returns a run function that emits n messages and waits for each
// to be persisted.
func emitting(n int) func(*core.RunContext) error {
	return func(rc *core.RunContext) error {
		for i := 0; i < n; i++ {
			rc.SetState(rc.Agent.Name+".step", i)
			ev := core.NewMessageEvent(rc.RunID, rc.Agent.Name, "partial result")
			if err := rc.EmitAndWait(ev); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestNewParallelAgent(t *testing.T) {
	c1 := newTestChildAgent("Child1", nil)
	c2 := newTestChildAgent("Child2", nil)

	p := NewParallelAgent("ParallelAgent", 0, c1, c2)
	assert.Equal(t, "ParallelAgent", p.Name())
	assert.Len(t, p.children, 2)
	assert.Same(t, c1, p.children[0])
	assert.Same(t, c2, p.children[1])
}

func TestParallelAgent_Run_RelaysEventsOnBranches(t *testing.T) {
	h := testutil.NewHarness(t, "ParallelAgent")

	c1 := newTestChildAgent("Child1", emitting(3))
	c2 := newTestChildAgent("Child2", emitting(2))
	c3 := newTestChildAgent("Child3", emitting(1))

	p := NewParallelAgent("ParallelAgent", time.Second, c1, c2, c3)

	require.NoError(t, p.Run(h.RunCtx))

	for _, child := range []*testChildAgent{c1, c2, c3} {
		require.NotNil(t, child.ctx())
		assert.Equal(t, "ParallelAgent."+child.Name(), child.ctx().Branch)
	}

	events := h.Session().GetEvents()
	assert.Len(t, events, 6)

	perBranch := map[string]int{}
	for _, ev := range events {
		require.NotNil(t, ev.Branch)
		perBranch[*ev.Branch]++
	}
	assert.Equal(t, 3, perBranch["ParallelAgent.Child1"])
	assert.Equal(t, 2, perBranch["ParallelAgent.Child2"])
	assert.Equal(t, 1, perBranch["ParallelAgent.Child3"])

	// state deltas of every child reach the session
	v, ok := h.Session().GetState("Child1.step")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	assert.Equal(t, "", h.RunCtx.Branch)
}

func TestParallelAgent_Run_ErrorAggregation(t *testing.T) {
	sentinel := errors.New("boom")

	c1 := newTestChildAgent("Child1", emitting(1))
	c2 := newTestChildAgent("Child2", func(*core.RunContext) error { return sentinel })
	c3 := newTestChildAgent("Child3", emitting(1))

	p := NewParallelAgent("ParallelAgent", 0, c1, c2, c3)
	h := testutil.NewHarness(t, "ParallelAgent")

	err := p.Run(h.RunCtx)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "agent Child2")

	// siblings finish despite the failure
	assert.Len(t, h.Session().GetEvents(), 2)
}

func TestParallelAgent_Run_NoChildren(t *testing.T) {
	p := NewParallelAgent("ParallelAgent", 0)
	assert.NoError(t, p.Run(newRunCtx(t, "ParallelAgent")))
}

func TestParallelAgent_Run_Timeout(t *testing.T) {
	slow := newTestChildAgent("Slow", func(rc *core.RunContext) error {
		<-rc.Done()
		return rc.Err()
	})

	p := NewParallelAgent("ParallelAgent", 20*time.Millisecond, slow)
	err := p.Run(newRunCtx(t, "ParallelAgent"))
	assert.Error(t, err)
}

func TestBaseAgent_SetSubAgentsAndFind(t *testing.T) {
	root := newTestChildAgent("Root", nil)
	c1 := newTestChildAgent("Child1", nil)
	c2 := newTestChildAgent("Child2", nil)

	require.NoError(t, root.SetSubAgents(c1, c2))
	assert.Len(t, root.SubAgents(), 2)

	require.NotNil(t, c1.Parent())
	assert.Equal(t, root.Name(), c1.Parent().Name())
	assert.NotNil(t, c2.Parent())

	found := root.FindAgent("Child1")
	require.NotNil(t, found)
	assert.Equal(t, c1.Name(), found.Name())

	foundRoot := root.FindAgent("Root")
	require.NotNil(t, foundRoot)
	assert.Equal(t, root.Name(), foundRoot.Name())
}

func TestBaseAgent_SetSubAgents_ReassignClearsOldParents(t *testing.T) {
	root := newTestChildAgent("Root", nil)
	c1 := newTestChildAgent("Child1", nil)
	c2 := newTestChildAgent("Child2", nil)
	c3 := newTestChildAgent("Child3", nil)

	require.NoError(t, root.SetSubAgents(c1, c2))
	require.NoError(t, root.SetSubAgents(c3))

	assert.Nil(t, c1.Parent())
	assert.Nil(t, c2.Parent())
	assert.Equal(t, root.Name(), c3.Parent().Name())

	assert.Nil(t, root.FindAgent("Child1"))
	assert.NotNil(t, root.FindAgent("Child3"))
}
