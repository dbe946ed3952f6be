package core

import (
	"context"
	"maps"

	"github.com/hupe1980/agentcrew/logging"
)

// RunContext carries the per-run handles an agent needs: cancellation, ids,
// the event emit/resume handshake with the runner, stores, the model call
// limiter, the active branch and a logger.
//
// Agents buffer state changes with SetState; the buffered delta is attached
// to the next emitted event and applied by the runner when it persists it.
type RunContext struct {
	Context          context.Context
	SessionID, RunID string
	Agent            AgentInfo
	UserContent      Content
	Emit             chan<- Event
	Resume           <-chan struct{}
	SessionStore     SessionStore
	ArtifactStore    ArtifactStore
	MemoryStore      MemoryStore
	Limiter          *ModelLimiter
	Session          *Session
	StateDelta       map[string]any
	Artifacts        []string
	Branch           string

	*scopedLogger
}

// NewRunContext wires a fresh run. maxModelCalls of 0 disables the limiter cap.
func NewRunContext(
	ctx context.Context,
	sessionID, runID string,
	agent AgentInfo,
	userContent Content,
	maxModelCalls int,
	emit chan<- Event,
	resume <-chan struct{},
	sess *Session,
	sessionStore SessionStore,
	artifactStore ArtifactStore,
	memoryStore MemoryStore,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		SessionID:     sessionID,
		RunID:         runID,
		Agent:         agent,
		UserContent:   userContent,
		Emit:          emit,
		Resume:        resume,
		Session:       sess,
		SessionStore:  sessionStore,
		ArtifactStore: artifactStore,
		MemoryStore:   memoryStore,
		Limiter:       NewModelLimiter(maxModelCalls),
		StateDelta:    map[string]any{},
		Artifacts:     []string{},
		scopedLogger:  newScopedLogger(logger, "run_id", runID),
	}
}

func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState reads the pending delta first, then the session snapshot.
func (rc *RunContext) GetState(k string) (any, bool) {
	if v, ok := rc.StateDelta[k]; ok {
		return v, true
	}

	if rc.Session != nil {
		return rc.Session.GetState(k)
	}

	return nil, false
}

// GetStateString returns the state value for k when it is a string.
func (rc *RunContext) GetStateString(k string) (string, bool) {
	v, ok := rc.GetState(k)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// State returns the session state overlaid with the pending delta.
func (rc *RunContext) State() map[string]any {
	state := map[string]any{}
	if rc.Session != nil {
		state = rc.Session.StateSnapshot()
	}
	maps.Copy(state, rc.StateDelta)
	return state
}

func (rc *RunContext) SetState(k string, v any) { rc.StateDelta[k] = v }

func (rc *RunContext) AddArtifact(id string) { rc.Artifacts = append(rc.Artifacts, id) }

func (rc *RunContext) SaveArtifact(id string, data []byte) error {
	if rc.ArtifactStore == nil {
		return ErrNoArtifactStore
	}

	if err := rc.ArtifactStore.Save(rc.SessionID, id, data); err != nil {
		return err
	}

	rc.AddArtifact(id)

	return nil
}

func (rc *RunContext) GetArtifact(id string) ([]byte, error) {
	if rc.ArtifactStore == nil {
		return nil, ErrNoArtifactStore
	}

	return rc.ArtifactStore.Get(rc.SessionID, id)
}

func (rc *RunContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if rc.MemoryStore == nil {
		return []SearchResult{}, nil
	}

	return rc.MemoryStore.Search(rc.SessionID, q, limit)
}

func (rc *RunContext) StoreMemory(content string, md map[string]any) error {
	if rc.MemoryStore == nil {
		return ErrNoMemoryStore
	}
	return rc.MemoryStore.Store(rc.SessionID, content, md)
}

// RefreshSession reloads the session snapshot from the store.
func (rc *RunContext) RefreshSession() error {
	if rc.SessionStore == nil {
		return ErrNoSessionStore
	}

	s, err := rc.SessionStore.Get(rc.SessionID)
	if err != nil {
		return err
	}

	rc.Session = s

	return nil
}

// History returns the conversation history of the current branch.
func (rc *RunContext) History() []Event {
	if rc.Session == nil {
		return []Event{}
	}

	return rc.Session.GetConversationHistory(rc.Branch)
}

// Clone copies the context with independent delta and artifact buffers.
func (rc *RunContext) Clone() *RunContext {
	c := *rc
	c.StateDelta = maps.Clone(rc.StateDelta)
	if c.StateDelta == nil {
		c.StateDelta = map[string]any{}
	}
	c.Artifacts = append([]string{}, rc.Artifacts...)
	return &c
}

// WithBranch returns a clone bound to branch b.
func (rc *RunContext) WithBranch(b string) *RunContext {
	c := rc.Clone()
	c.Branch = b
	return c
}

// NewChildContext returns a context with its own emit/resume pair and empty
// buffers. An empty branch keeps the parent's branch.
func (rc *RunContext) NewChildContext(emit chan<- Event, resume <-chan struct{}, branch string) *RunContext {
	c := rc.Clone()
	c.Emit = emit
	c.Resume = resume
	c.StateDelta = map[string]any{}
	c.Artifacts = []string{}
	if branch != "" {
		c.Branch = branch
	}
	return c
}

// EmitEvent attaches pending state and artifact deltas and the current
// branch to ev, then sends it to the runner.
func (rc *RunContext) EmitEvent(ev Event) error {
	if len(rc.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, rc.StateDelta)
	}

	if len(rc.Artifacts) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = map[string]int{}
		}
		for _, id := range rc.Artifacts {
			ev.Actions.ArtifactDelta[id] = 1
		}
	}

	if ev.Branch == nil && rc.Branch != "" {
		b := rc.Branch
		ev.Branch = &b
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	rc.StateDelta = map[string]any{}
	rc.Artifacts = []string{}

	return nil
}

// WaitForResume blocks until the runner has persisted the last event.
func (rc *RunContext) WaitForResume() error {
	if rc.Resume == nil {
		return nil
	}

	select {
	case <-rc.Resume:
		return nil
	case <-rc.Context.Done():
		return rc.Context.Err()
	}
}

// EmitAndWait emits ev and, for non-partial events, waits for persistence.
func (rc *RunContext) EmitAndWait(ev Event) error {
	if err := rc.EmitEvent(ev); err != nil {
		return err
	}
	if ev.IsPartial() {
		return nil
	}
	return rc.WaitForResume()
}
