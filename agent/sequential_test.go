package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
)

func TestSequentialAgent_Run(t *testing.T) {
	tests := []struct {
		name      string
		results   []error
		wantOrder []string
		wantErr   bool
	}{
		{name: "empty"},
		{
			name:      "all succeed",
			results:   []error{nil, nil, nil},
			wantOrder: []string{"step-0", "step-1", "step-2"},
		},
		{
			name:      "stops at failure",
			results:   []error{nil, assert.AnError, nil},
			wantOrder: []string{"step-0", "step-1"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runCtx := newRunCtx(t, "seq")

			var (
				order    []string
				children []core.Agent
				mocks    []*MockAgent
			)
			for i, res := range tt.results {
				child := NewMockAgent(stepName(i))
				child.On("Run", runCtx).Run(func(mock.Arguments) { order = append(order, child.Name()) }).Return(res).Maybe()
				children = append(children, child)
				mocks = append(mocks, child)
			}

			err := NewSequentialAgent("seq", children...).Run(runCtx)
			if tt.wantErr {
				require.ErrorIs(t, err, assert.AnError)
				assert.Contains(t, err.Error(), "step-1")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantOrder, order)

			for i, m := range mocks {
				if i >= len(tt.wantOrder) {
					m.AssertNotCalled(t, "Run", mock.Anything)
				}
			}
		})
	}
}

func TestSequentialAgent_SharesRunContext(t *testing.T) {
	runCtx := newRunCtx(t, "seq")
	same := mock.MatchedBy(func(rc *core.RunContext) bool { return rc == runCtx })

	first := NewMockAgent("first")
	first.On("Run", same).Run(func(mock.Arguments) { runCtx.SetState("k", "v") }).Return(nil)
	second := NewMockAgent("second")
	second.On("Run", same).Return(nil)

	require.NoError(t, NewSequentialAgent("seq", first, second).Run(runCtx))

	v, ok := runCtx.GetState("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestSequentialAgent_CanceledBeforeStep(t *testing.T) {
	runCtx := newRunCtx(t, "seq")
	ctx, cancel := context.WithCancel(runCtx.Context)
	cancel()
	runCtx.Context = ctx

	child := NewMockAgent("never")
	err := NewSequentialAgent("seq", child).Run(runCtx)

	assert.ErrorIs(t, err, context.Canceled)
	child.AssertNotCalled(t, "Run", mock.Anything)
}

func stepName(i int) string { return fmt.Sprintf("step-%d", i) }
