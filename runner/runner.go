package runner

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentcrew/artifact"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/memory"
	"github.com/hupe1980/agentcrew/session"
)

// Options holds dependency and configuration overrides passed to New.
type Options struct {
	// MaxConcurrentInvocations caps concurrent runs; Run blocks for a slot.
	// Zero or less means unlimited.
	MaxConcurrentInvocations int
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run. Zero means unlimited.
	MaxModelCalls int
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore
	Logger        logging.Logger
}

// Runner drives an agent: it creates the run context, persists the events
// the agent emits, applies their state deltas and resumes the agent after
// each persisted event. Public methods are safe for concurrent use.
type Runner struct {
	agent core.Agent

	eventBufferSize int
	maxModelCalls   int
	slots           *semaphore.Weighted

	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	memoryStore   core.MemoryStore
	logger        logging.Logger
}

// New constructs a Runner for agent.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentInvocations: 10,
		EventBufferSize:          100,
		MaxModelCalls:            100,
		Logger:                   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}
	if opts.ArtifactStore == nil {
		opts.ArtifactStore = artifact.NewInMemoryStore()
	}
	if opts.MemoryStore == nil {
		opts.MemoryStore = memory.NewInMemoryStore()
	}

	r := &Runner{
		agent:           agent,
		eventBufferSize: opts.EventBufferSize,
		maxModelCalls:   opts.MaxModelCalls,
		sessionStore:    opts.SessionStore,
		artifactStore:   opts.ArtifactStore,
		memoryStore:     opts.MemoryStore,
		logger:          opts.Logger,
	}

	if opts.MaxConcurrentInvocations > 0 {
		r.slots = semaphore.NewWeighted(int64(opts.MaxConcurrentInvocations))
	}

	return r
}

// SessionStore returns the store runs persist to.
func (r *Runner) SessionStore() core.SessionStore { return r.sessionStore }

// Run starts an asynchronous run of the agent on sessionID with userContent
// as the new user turn. The event channel closes when the run is over; the
// error channel carries at most one error per failure source.
func (r *Runner) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	if r.slots != nil {
		if err := r.slots.Acquire(ctx, 1); err != nil {
			return "", nil, nil, fmt.Errorf("failed to acquire run slot: %w", err)
		}
	}

	release := func() {
		if r.slots != nil {
			r.slots.Release(1)
		}
	}

	sess, err := r.sessionStore.Get(sessionID)
	if err != nil {
		release()
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := core.NewID()

	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := r.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		release()
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 2)
	agentEmit := make(chan core.Event, r.eventBufferSize)
	resumeCh := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(ctx)

	runCtx := core.NewRunContext(
		ctx,
		sessionID,
		runID,
		core.AgentInfo{Name: r.agent.Name(), Type: fmt.Sprintf("%T", r.agent)},
		userContent,
		r.maxModelCalls,
		agentEmit,
		resumeCh,
		sess,
		r.sessionStore,
		r.artifactStore,
		r.memoryStore,
		r.logger,
	)

	runCtx.LogDebug("runner.run.start", "run", runID, "session", sessionID, "agent", r.agent.Name())

	go func() {
		defer func() {
			close(agentEmit)
			release()
		}()

		if err := r.runAgent(runCtx); err != nil {
			select {
			case <-runCtx.Done():
			case errorsCh <- fmt.Errorf("agent execution failed: %w", err):
			}
		}
	}()

	go func() {
		defer func() {
			cancel()
			close(eventsCh)
			close(errorsCh)
		}()

		r.processEvents(runCtx, sessionID, agentEmit, resumeCh, eventsCh, errorsCh)
	}()

	return runID, eventsCh, errorsCh, nil
}

// RunSync runs the agent to completion and returns every event it emitted.
// The first error, if any, is returned together with the events seen so far.
func (r *Runner) RunSync(ctx context.Context, sessionID string, userContent core.Content) (string, []core.Event, error) {
	runID, eventsCh, errorsCh, err := r.Run(ctx, sessionID, userContent)
	if err != nil {
		return "", nil, err
	}

	var (
		events   []core.Event
		firstErr error
	)

	for eventsCh != nil || errorsCh != nil {
		select {
		case ev, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			events = append(events, ev)
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

	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}

	return runID, events, firstErr
}

func (r *Runner) runAgent(runCtx *core.RunContext) error {
	if err := r.agent.Start(runCtx); err != nil {
		return err
	}

	defer func() {
		if err := r.agent.Stop(runCtx); err != nil {
			runCtx.LogWarn("runner.agent.stop_failed", "agent", r.agent.Name(), "error", err.Error())
		}
	}()

	return r.agent.Run(runCtx)
}

func (r *Runner) processEvents(
	runCtx *core.RunContext,
	sessionID string,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
) {
	fail := func(err error) {
		select {
		case <-runCtx.Done():
		case errorsCh <- err:
		}
	}

	for {
		select {
		case <-runCtx.Done():
			return
		case ev, ok := <-agentEmit:
			if !ok {
				return
			}

			if !ev.IsPartial() {
				if err := r.applyEventActions(runCtx, sessionID, ev); err != nil {
					fail(fmt.Errorf("failed to process event actions: %w", err))
					return
				}
				if err := r.sessionStore.AppendEvent(sessionID, ev); err != nil {
					fail(fmt.Errorf("failed to append event to session: %w", err))
					return
				}
			}

			select {
			case <-runCtx.Done():
				return
			case eventsCh <- ev:
				runCtx.LogDebug("runner.event.delivered", "event_id", ev.ID, "session", sessionID, "partial", ev.IsPartial())
			}

			if !ev.IsPartial() {
				select {
				case resumeCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (r *Runner) applyEventActions(runCtx *core.RunContext, sessionID string, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := r.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	for id := range ev.Actions.ArtifactDelta {
		if _, err := r.artifactStore.Get(sessionID, id); err != nil {
			if errors.Is(err, artifact.ErrNotFound) {
				runCtx.LogWarn("runner.event.artifact_missing", "artifact", id, "session", sessionID)
				continue
			}
			return fmt.Errorf("failed to verify artifact %s: %w", id, err)
		}
	}

	if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
		runCtx.LogDebug("runner.event.escalate", "session", sessionID, "author", ev.Author)
	}

	return nil
}
