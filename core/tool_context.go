package core

import (
	"context"

	"github.com/hupe1980/agentcrew/logging"
)

// ToolContext is the view of a run a tool gets for a single function call.
// Writes go into an action set that the executor copies onto the function
// response event; the session itself is only changed by the runner.
type ToolContext struct {
	run     *RunContext
	callID  string
	actions EventActions

	*scopedLogger
}

func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		run:          runCtx,
		callID:       functionCallID,
		scopedLogger: newScopedLogger(runCtx.Logger(), "run_id", runCtx.RunID, "function_call_id", functionCallID),
	}
}

func (tc *ToolContext) Context() context.Context { return tc.run.Context }
func (tc *ToolContext) SessionID() string        { return tc.run.SessionID }
func (tc *ToolContext) RunID() string            { return tc.run.RunID }
func (tc *ToolContext) FunctionCallID() string   { return tc.callID }
func (tc *ToolContext) AgentName() string        { return tc.run.Agent.Name }
func (tc *ToolContext) Branch() string           { return tc.run.Branch }
func (tc *ToolContext) Logger() logging.Logger   { return tc.scopedLogger.Logger() }

// GetState reads the run state including deltas not yet persisted. Values
// set through this ToolContext are not visible until the response is stored.
func (tc *ToolContext) GetState(k string) (any, bool) { return tc.run.GetState(k) }

func (tc *ToolContext) SetState(k string, v any) {
	setKey(&tc.actions.StateDelta, k, v)
}

// Actions exposes the recorded actions.
func (tc *ToolContext) Actions() *EventActions { return &tc.actions }

// SkipSummarization ends the agent turn with the tool response.
func (tc *ToolContext) SkipSummarization() { tc.actions.SkipSummarization = ptr(true) }

func (tc *ToolContext) Escalate() {
	tc.actions.Escalate = ptr(true)
	tc.LogInfo("tool.escalate.request", "agent", tc.AgentName())
}

// SaveArtifact stores data in the session's artifact store and records its
// size in the artifact delta.
func (tc *ToolContext) SaveArtifact(id string, data []byte) error {
	store := tc.run.ArtifactStore
	if store == nil {
		return ErrNoArtifactStore
	}
	if err := store.Save(tc.SessionID(), id, data); err != nil {
		return err
	}
	setKey(&tc.actions.ArtifactDelta, id, len(data))
	return nil
}

func (tc *ToolContext) LoadArtifact(id string) ([]byte, error) { return tc.run.GetArtifact(id) }

func (tc *ToolContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if tc.run.MemoryStore == nil {
		return nil, ErrNoMemoryStore
	}
	return tc.run.SearchMemory(q, limit)
}

func (tc *ToolContext) StoreMemory(content string, md map[string]any) error {
	return tc.run.StoreMemory(content, md)
}

// ApplyActions merges the recorded actions into ev.Actions.
func (tc *ToolContext) ApplyActions(ev *Event) {
	a := &ev.Actions
	for k, v := range tc.actions.StateDelta {
		setKey(&a.StateDelta, k, v)
	}
	for k, v := range tc.actions.ArtifactDelta {
		setKey(&a.ArtifactDelta, k, v)
	}
	if tc.actions.SkipSummarization != nil {
		a.SkipSummarization = tc.actions.SkipSummarization
	}
	if tc.actions.Escalate != nil {
		a.Escalate = tc.actions.Escalate
	}
}

func setKey[V any](m *map[string]V, k string, v V) {
	if *m == nil {
		*m = map[string]V{}
	}
	(*m)[k] = v
}

func ptr[T any](v T) *T { return &v }
