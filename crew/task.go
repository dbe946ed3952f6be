package crew

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentcrew/internal/util"
	"github.com/hupe1980/agentcrew/tool"
)

// Task is a unit of work assigned to one agent.
type Task struct {
	Name           string
	Description    string
	ExpectedOutput string
	Agent          *Agent

	// Tools replace the agent's tools for this task when non-empty.
	Tools []tool.Tool

	// Context restricts the prior outputs shown to the agent. When empty the
	// agent sees every output completed before the task started.
	Context []*Task

	// AsyncExecution lets the task run concurrently with adjacent async tasks.
	AsyncExecution bool

	// OutputFile receives the raw output after the task succeeds.
	OutputFile string
}

// NewTask creates a task.
func NewTask(description, expectedOutput string, agent *Agent, optFns ...func(t *Task)) *Task {
	t := &Task{
		Description:    description,
		ExpectedOutput: expectedOutput,
		Agent:          agent,
	}

	for _, fn := range optFns {
		fn(t)
	}

	return t
}

// TaskOutput is the result of one executed task.
type TaskOutput struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	ExpectedOutput string `json:"expected_output"`
	Agent          string `json:"agent"`
	Raw            string `json:"raw"`
}

func (o TaskOutput) String() string { return o.Raw }

// Prompt renders the user message an agent receives for the task.
func (t *Task) Prompt(context string) string {
	var sb strings.Builder

	sb.WriteString(t.Description)
	sb.WriteString("\n\nThis is the expected criteria for your final answer: ")
	sb.WriteString(t.ExpectedOutput)
	sb.WriteString("\nyou MUST return the actual complete content as the final answer, not a summary.")

	if strings.TrimSpace(context) != "" {
		sb.WriteString("\n\nThis is the context you're working with:\n")
		sb.WriteString(context)
	}

	return sb.String()
}

func (t *Task) tools() []tool.Tool {
	if len(t.Tools) > 0 {
		return t.Tools
	}
	if t.Agent == nil {
		return nil
	}
	return t.Agent.Tools
}

func (t *Task) interpolate(inputs map[string]any) *Task {
	c := *t
	c.Description = util.Interpolate(t.Description, inputs)
	c.ExpectedOutput = util.Interpolate(t.ExpectedOutput, inputs)
	c.OutputFile = util.Interpolate(t.OutputFile, inputs)
	return &c
}

func (t *Task) output(agent, raw string) TaskOutput {
	return TaskOutput{
		Name:           t.Name,
		Description:    t.Description,
		ExpectedOutput: t.ExpectedOutput,
		Agent:          agent,
		Raw:            raw,
	}
}

// contextText joins prior outputs with a separator, in task order.
func contextText(outputs []TaskOutput) string {
	parts := make([]string, 0, len(outputs))
	for _, o := range outputs {
		if o.Raw != "" {
			parts = append(parts, o.Raw)
		}
	}
	return strings.Join(parts, "\n\n----------\n\n")
}

func (t *Task) validate(i int) error {
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("%w: task %d has no description", ErrInvalidCrew, i)
	}
	if strings.TrimSpace(t.ExpectedOutput) == "" {
		return fmt.Errorf("%w: task %d has no expected output", ErrInvalidCrew, i)
	}
	return nil
}
