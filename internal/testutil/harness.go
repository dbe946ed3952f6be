package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/hupe1980/agentcrew/artifact"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/memory"
	"github.com/hupe1980/agentcrew/session"
)

// Harness drives a RunContext the way the runner does: every non-partial
// event is persisted before the emitter is resumed.
type Harness struct {
	SessionID string
	Sessions  *session.InMemoryStore
	Artifacts *artifact.InMemoryStore
	Memory    *memory.InMemoryStore

	RunCtx *core.RunContext

	mu     sync.Mutex
	events []core.Event
	done   chan struct{}
}

// NewHarness creates a harness whose run context belongs to agentName.
// The event loop stops when the test ends.
func NewHarness(t testing.TB, agentName string) *Harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	h := &Harness{
		SessionID: "sess-test",
		Sessions:  session.NewInMemoryStore(),
		Artifacts: artifact.NewInMemoryStore(),
		Memory:    memory.NewInMemoryStore(),
		done:      make(chan struct{}),
	}

	sess, err := h.Sessions.Create(h.SessionID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	emit := make(chan core.Event, 16)
	resume := make(chan struct{}, 1)

	h.RunCtx = core.NewRunContext(
		ctx, h.SessionID, "run-test",
		core.AgentInfo{Name: agentName, Type: "test"},
		core.Content{},
		0,
		emit, resume,
		sess, h.Sessions, h.Artifacts, h.Memory,
		logging.NoOpLogger{},
	)

	go h.loop(ctx, emit, resume)

	t.Cleanup(func() {
		cancel()
		<-h.done
	})

	return h
}

func (h *Harness) loop(ctx context.Context, emit <-chan core.Event, resume chan<- struct{}) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-emit:
			h.mu.Lock()
			h.events = append(h.events, ev)
			h.mu.Unlock()

			if ev.IsPartial() {
				continue
			}

			_ = h.Sessions.AppendEvent(h.SessionID, ev)
			if len(ev.Actions.StateDelta) > 0 {
				_ = h.Sessions.ApplyDelta(h.SessionID, ev.Actions.StateDelta)
			}

			select {
			case resume <- struct{}{}:
			default:
			}
		}
	}
}

// Events returns every event observed so far, partial ones included.
func (h *Harness) Events() []core.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]core.Event(nil), h.events...)
}

// Session returns the persisted session.
func (h *Harness) Session() *core.Session {
	sess, _ := h.Sessions.Get(h.SessionID)
	return sess
}

// ToolContext returns a tool context bound to the harness run.
func (h *Harness) ToolContext(fcID string) *core.ToolContext {
	return core.NewToolContext(h.RunCtx, fcID)
}
