package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/testutil"
)

// MockAgent for testing composite agents
type MockAgent struct {
	mock.Mock
	name string
}

func NewMockAgent(name string) *MockAgent {
	return &MockAgent{name: name}
}

func (m *MockAgent) Name() string { return m.name }

func (m *MockAgent) Description() string { return "mock agent " + m.name }

func (m *MockAgent) Run(runCtx *core.RunContext) error {
	args := m.Called(runCtx)
	return args.Error(0)
}

func (m *MockAgent) Start(runCtx *core.RunContext) error {
	args := m.Called(runCtx)
	return args.Error(0)
}

func (m *MockAgent) Stop(runCtx *core.RunContext) error {
	args := m.Called(runCtx)
	return args.Error(0)
}

func (m *MockAgent) SubAgents() []core.Agent { return nil }

func (m *MockAgent) SetSubAgents(children ...core.Agent) error {
	args := m.Called(children)
	return args.Error(0)
}

func (m *MockAgent) Parent() core.Agent { return nil }

func (m *MockAgent) FindAgent(name string) core.Agent {
	if name == m.name {
		return m
	}
	return nil
}

func newRunCtx(t *testing.T, agentName string) *core.RunContext {
	t.Helper()
	return testutil.NewHarness(t, agentName).RunCtx
}

func TestBuildBranchPath(t *testing.T) {
	tests := []struct {
		parent, child, want string
	}{
		{"", "Crew.Researcher", "Crew.Researcher"},
		{"root", "Crew.Writer", "root.Crew.Writer"},
		{"root", "", "root"},
		{"", "", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, buildBranchPath(tt.parent, tt.child))
	}
}

func TestBaseAgent_StartStop(t *testing.T) {
	b := NewBaseAgent("Writer")
	runCtx := newRunCtx(t, "Writer")

	assert.Equal(t, "Agent Writer", b.Description())

	require.NoError(t, b.Start(runCtx))
	assert.ErrorIs(t, b.Start(runCtx), ErrAlreadyRunning)

	other := newRunCtx(t, "Writer")
	other.RunID = "run-2"
	require.NoError(t, b.Start(other))
	assert.Equal(t, 2, b.ActiveRuns())

	assert.NoError(t, b.Stop(runCtx))
	assert.ErrorIs(t, b.Stop(runCtx), ErrNotRunning)
	assert.NoError(t, b.Stop(other))
	assert.Equal(t, 0, b.ActiveRuns())
}

func TestBaseAgent_SetSubAgentsRejectsDuplicates(t *testing.T) {
	root := NewBaseAgent("Crew")
	err := root.SetSubAgents(NewMockAgent("Writer"), NewMockAgent("Writer"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate sub-agent "Writer"`)
	assert.Empty(t, root.SubAgents())
}
