package crew

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/agentcrew/artifact"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/memory"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/session"
)

// Process selects how a crew schedules its tasks.
type Process string

const (
	// ProcessSequential runs tasks in order, each on its assigned agent.
	ProcessSequential Process = "sequential"
	// ProcessHierarchical lets a manager agent run every task by delegating
	// to the crew's agents.
	ProcessHierarchical Process = "hierarchical"
)

var (
	ErrNoTasks      = errors.New("crew has no tasks")
	ErrNoAgent      = errors.New("task has no agent")
	ErrNoManagerLLM = errors.New("hierarchical process requires a manager model")
	ErrNoModel      = errors.New("agent has no model")
	ErrInvalidCrew  = errors.New("invalid crew")
)

// Inputs fill {name} placeholders in agent and task texts.
type Inputs map[string]string

// Crew is a set of agents working through tasks under a process.
type Crew struct {
	Agents  []*Agent
	Tasks   []*Task
	Process Process

	// ManagerLLM drives the manager agent of the hierarchical process.
	ManagerLLM model.Model

	Verbose bool
	// Memory shares a memory tool between all agents of one kickoff and
	// records each task output in it.
	Memory bool
	// MaxRPM caps model requests per minute across the crew. Zero means unlimited.
	MaxRPM int

	StepCallback func(core.Event)
	TaskCallback func(TaskOutput)

	// Output receives verbose step logs. Defaults to os.Stderr.
	Output io.Writer
	Logger logging.Logger
	// Sessions stores the conversation of every task. Defaults to a fresh
	// in-memory store per kickoff.
	Sessions core.SessionStore
	// Artifacts receives files tools save, such as scraped pages. Defaults
	// to a fresh in-memory store per kickoff.
	Artifacts core.ArtifactStore
}

// New creates a sequential crew.
func New(agents []*Agent, tasks []*Task, optFns ...func(c *Crew)) *Crew {
	c := &Crew{
		Agents:  agents,
		Tasks:   tasks,
		Process: ProcessSequential,
	}

	for _, fn := range optFns {
		fn(c)
	}

	return c
}

// CrewOutput is the result of a kickoff.
type CrewOutput struct {
	// ID names the kickoff. The kickoff session in Sessions has this id;
	// task sessions are "<ID>/<task name>".
	ID          string       `json:"id"`
	Raw         string       `json:"raw"`
	TasksOutput []TaskOutput `json:"tasks_output"`
	TokenUsage  model.TokenUsage
}

func (o *CrewOutput) String() string { return o.Raw }

// Save writes Raw to path, replacing any previous content.
func (o *CrewOutput) Save(path string) error {
	return writeOutputFile(path, o.Raw)
}

func writeOutputFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// Validate checks the crew can be kicked off.
func (c *Crew) Validate() error {
	if len(c.Tasks) == 0 {
		return ErrNoTasks
	}

	process := c.process()
	if process != ProcessSequential && process != ProcessHierarchical {
		return fmt.Errorf("%w: unknown process %q", ErrInvalidCrew, process)
	}

	if process == ProcessHierarchical && c.ManagerLLM == nil {
		return ErrNoManagerLLM
	}

	for _, a := range c.Agents {
		if err := a.validate(); err != nil {
			return err
		}
	}

	seen := make(map[*Task]bool, len(c.Tasks))
	names := make(map[string]int, len(c.Tasks))
	for i, t := range c.Tasks {
		if err := t.validate(i); err != nil {
			return err
		}
		// task names key the task sessions and the kickoff state
		name := taskName(t, i)
		if j, dup := names[name]; dup {
			return fmt.Errorf("%w: tasks %d and %d are both named %q", ErrInvalidCrew, j, i, name)
		}
		names[name] = i
		if t.Agent == nil && process == ProcessSequential {
			return fmt.Errorf("%w: task %d", ErrNoAgent, i)
		}
		if t.Agent != nil {
			if err := t.Agent.validate(); err != nil {
				return err
			}
		}
		for _, dep := range t.Context {
			if !seen[dep] {
				return fmt.Errorf("%w: task %d uses context from a task that does not run before it", ErrInvalidCrew, i)
			}
		}
		seen[t] = true
	}

	return nil
}

// taskName is the name of the i-th task, "task-<i+1>" when unset.
func taskName(t *Task, i int) string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("task-%d", i+1)
}

func (c *Crew) process() Process {
	if c.Process == "" {
		return ProcessSequential
	}
	return c.Process
}

// Kickoff runs all tasks and returns their combined output. Output files of
// tasks are written as each task completes; nothing is written for a task
// that fails.
func (c *Crew) Kickoff(ctx context.Context, inputs Inputs) (*CrewOutput, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	k := c.newKickoff(inputs)

	k.logger.Info("crew.kickoff.start",
		"kickoff", k.id,
		"process", string(c.process()),
		"agents", len(k.agents),
		"tasks", len(k.tasks),
	)

	start := time.Now()
	outputs, err := k.runTasks(ctx)
	if err != nil {
		k.logger.Error("crew.kickoff.error", "kickoff", k.id, "error", err.Error())
		return nil, err
	}

	out := &CrewOutput{
		ID:          k.id,
		Raw:         outputs[len(outputs)-1].Raw,
		TasksOutput: outputs,
		TokenUsage:  k.tokenUsage(),
	}

	k.logger.Info("crew.kickoff.complete",
		"kickoff", k.id,
		"duration_ms", time.Since(start).Milliseconds(),
		"total_tokens", out.TokenUsage.TotalTokens,
	)

	return out, nil
}

// kickoff holds the state of one Kickoff call.
type kickoff struct {
	id      string
	crew    *Crew
	inputs  Inputs
	agents  []*Agent
	tasks   []*Task
	byOrig  map[*Task]int
	manager *Agent

	sessions  core.SessionStore
	artifacts core.ArtifactStore
	memory    core.MemoryStore
	limiter   *rate.Limiter
	limiters  map[*Agent]*rate.Limiter
	printer   *printer
	logger    logging.Logger

	mu    sync.Mutex
	usage model.TokenUsage
}

func (c *Crew) newKickoff(inputs Inputs) *kickoff {
	vars := make(map[string]any, len(inputs))
	for k, v := range inputs {
		vars[k] = v
	}

	k := &kickoff{
		id:        core.NewID(),
		crew:      c,
		inputs:    inputs,
		byOrig:    make(map[*Task]int, len(c.Tasks)),
		limiters:  map[*Agent]*rate.Limiter{},
		sessions:  c.Sessions,
		artifacts: c.Artifacts,
		logger:    c.Logger,
	}

	if k.logger == nil {
		k.logger = logging.NoOpLogger{}
	}
	if k.sessions == nil {
		k.sessions = session.NewInMemoryStore()
	}
	if k.artifacts == nil {
		k.artifacts = artifact.NewInMemoryStore()
	}

	k.memory = &sharedMemory{store: memory.NewInMemoryStore(), scope: k.id}

	w := c.Output
	if w == nil {
		w = os.Stderr
	}
	k.printer = newPrinter(w)

	if c.MaxRPM > 0 {
		k.limiter = newRPMLimiter(c.MaxRPM)
	}

	// Tasks may reference agents that are not listed in Agents.
	copies := map[*Agent]*Agent{}
	agentCopy := func(a *Agent) *Agent {
		if a == nil {
			return nil
		}
		if cp, ok := copies[a]; ok {
			return cp
		}
		cp := a.interpolate(vars)
		copies[a] = cp
		k.agents = append(k.agents, cp)
		if a.MaxRPM > 0 {
			k.limiters[cp] = newRPMLimiter(a.MaxRPM)
		}
		return cp
	}

	for _, a := range c.Agents {
		agentCopy(a)
	}

	for i, t := range c.Tasks {
		tc := t.interpolate(vars)
		tc.Agent = agentCopy(t.Agent)
		tc.Name = taskName(t, i)
		k.tasks = append(k.tasks, tc)
		k.byOrig[t] = i
	}

	if c.process() == ProcessHierarchical {
		k.manager = newManagerAgent(c.ManagerLLM)
	}

	return k
}

func newRPMLimiter(rpm int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}

func (k *kickoff) limiterFor(a *Agent) *rate.Limiter {
	if l, ok := k.limiters[a]; ok {
		return l
	}
	return k.limiter
}

func (k *kickoff) verbose(a *Agent) bool {
	return k.crew.Verbose || (a != nil && a.Verbose)
}

func (k *kickoff) addUsage(u *core.Usage) {
	if u == nil {
		return
	}
	k.mu.Lock()
	k.usage.Add(*u)
	k.mu.Unlock()
}

func (k *kickoff) tokenUsage() model.TokenUsage {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.usage
}

func (k *kickoff) runTask(ctx context.Context, i int, prior []TaskOutput) (TaskOutput, error) {
	t := k.tasks[i]
	orig := k.crew.Tasks[i]

	ctxOutputs := prior
	if len(orig.Context) > 0 {
		ctxOutputs = make([]TaskOutput, 0, len(orig.Context))
		for _, dep := range orig.Context {
			j := k.byOrig[dep]
			if j >= len(prior) {
				return TaskOutput{}, fmt.Errorf("%w: task %s needs the output of %s, which runs in the same async batch",
					ErrInvalidCrew, t.Name, k.tasks[j].Name)
			}
			ctxOutputs = append(ctxOutputs, prior[j])
		}
	}

	prompt := t.Prompt(contextText(ctxOutputs))

	agent := t.Agent
	tools := t.tools()
	coworkers := k.coworkers(agent)

	if k.manager != nil {
		agent = k.manager
		tools = nil
		coworkers = k.agents
	}

	if agent.AllowDelegation && len(coworkers) > 0 {
		tools = append(tools, k.delegationTools(coworkers)...)
	}
	if k.crew.Memory {
		tools = append(tools, k.memoryTool())
	}

	k.logger.Info("crew.task.start", "kickoff", k.id, "task", t.Name, "agent", agent.Role)
	if k.verbose(agent) {
		k.printer.taskStart(agent.Role, t.Description)
	}

	raw, err := k.execute(ctx, agent, prompt, tools, fmt.Sprintf("%s/%s", k.id, t.Name))
	if err != nil {
		return TaskOutput{}, fmt.Errorf("task %s failed: %w", t.Name, err)
	}

	out := t.output(agent.Role, raw)

	if t.OutputFile != "" {
		if err := writeOutputFile(t.OutputFile, raw); err != nil {
			return TaskOutput{}, fmt.Errorf("task %s: %w", t.Name, err)
		}
	}

	if k.crew.Memory {
		md := map[string]any{"task": t.Name, "agent": agent.Role}
		if err := k.memory.Store(k.id, raw, md); err != nil {
			k.logger.Warn("crew.memory.store_failed", "task", t.Name, "error", err.Error())
		}
	}

	if k.crew.TaskCallback != nil {
		k.crew.TaskCallback(out)
	}

	k.logger.Info("crew.task.complete", "kickoff", k.id, "task", t.Name, "agent", agent.Role, "chars", len(raw))

	return out, nil
}

// coworkers returns every crew agent except a.
func (k *kickoff) coworkers(a *Agent) []*Agent {
	var out []*Agent
	for _, other := range k.agents {
		if other != a {
			out = append(out, other)
		}
	}
	return out
}
