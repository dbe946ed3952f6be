package crew

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentcrew/internal/util"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/tool"
)

// DefaultMaxIter bounds the tool rounds of an agent per task.
const DefaultMaxIter = 20

// Agent is a persona bound to a model and the tools it may call.
type Agent struct {
	Role      string
	Goal      string
	Backstory string

	LLM   model.Model
	Tools []tool.Tool

	// AllowDelegation gives the agent tools to hand work to, or ask
	// questions of, the other agents of its crew.
	AllowDelegation bool
	Verbose         bool

	// MaxIter bounds tool rounds per task; zero selects DefaultMaxIter.
	MaxIter int
	// MaxRPM caps model requests per minute for this agent, overriding the
	// crew limit. Zero inherits the crew limit.
	MaxRPM int
}

// NewAgent creates an agent from its persona and optional settings.
func NewAgent(role, goal, backstory string, llm model.Model, optFns ...func(a *Agent)) *Agent {
	a := &Agent{
		Role:      role,
		Goal:      goal,
		Backstory: backstory,
		LLM:       llm,
		MaxIter:   DefaultMaxIter,
	}

	for _, fn := range optFns {
		fn(a)
	}

	return a
}

// SystemPrompt is the instruction every executing instance of the agent starts from.
func (a *Agent) SystemPrompt() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are %s. %s\n", a.Role, a.Backstory)
	fmt.Fprintf(&sb, "Your personal goal is: %s\n", a.Goal)

	if len(a.Tools) > 0 {
		sb.WriteString("\nYou can use the available tools to gather information. ")
		sb.WriteString("Call a tool whenever the task needs facts you do not have, ")
		sb.WriteString("and stop calling tools once you know the final answer.\n")
	}

	sb.WriteString("\nWhen you have the final answer, reply with the complete answer only, ")
	sb.WriteString("without describing the tools you used.")

	return sb.String()
}

func (a *Agent) maxIter() int {
	if a.MaxIter <= 0 {
		return DefaultMaxIter
	}
	return a.MaxIter
}

// interpolate returns a copy with {name} placeholders replaced from inputs.
func (a *Agent) interpolate(inputs map[string]any) *Agent {
	c := *a
	c.Role = util.Interpolate(a.Role, inputs)
	c.Goal = util.Interpolate(a.Goal, inputs)
	c.Backstory = util.Interpolate(a.Backstory, inputs)
	c.Tools = append([]tool.Tool(nil), a.Tools...)
	return &c
}

func (a *Agent) validate() error {
	if strings.TrimSpace(a.Role) == "" {
		return fmt.Errorf("%w: agent role is empty", ErrInvalidCrew)
	}
	if a.LLM == nil {
		return fmt.Errorf("%w: %s", ErrNoModel, a.Role)
	}
	return nil
}
