package crew

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/tool"
)

const (
	DelegateWorkToolName = "delegate_work_to_coworker"
	AskQuestionToolName  = "ask_question_to_coworker"
)

// delegationTool hands a task or a question to a coworker, who answers in
// an isolated session. The coworker's final answer is the tool result.
type delegationTool struct {
	k         *kickoff
	name      string
	field     string
	coworkers []*Agent
}

func (k *kickoff) delegationTools(coworkers []*Agent) []tool.Tool {
	return []tool.Tool{
		&delegationTool{k: k, name: DelegateWorkToolName, field: "task", coworkers: coworkers},
		&delegationTool{k: k, name: AskQuestionToolName, field: "question", coworkers: coworkers},
	}
}

func (d *delegationTool) Name() string { return d.name }

func (d *delegationTool) Description() string {
	roles := d.roles()
	if d.name == AskQuestionToolName {
		return fmt.Sprintf("Ask a specific question to one of the following coworkers: %s. "+
			"The input to this tool should be the coworker, the question you have for them, "+
			"and ALL necessary context to ask the question properly, they know nothing about the question, "+
			"so share absolutely everything you know, don't reference things but instead explain them.",
			strings.Join(roles, ", "))
	}
	return fmt.Sprintf("Delegate a specific task to one of the following coworkers: %s. "+
		"The input to this tool should be the coworker, the task you want them to do, "+
		"and ALL necessary context to execute the task, they know nothing about the task, "+
		"so share absolutely everything you know, don't reference things but instead explain them.",
		strings.Join(roles, ", "))
}

func (d *delegationTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			d.field: map[string]any{
				"type":        "string",
				"description": fmt.Sprintf("The %s for the coworker", d.field),
			},
			"context": map[string]any{
				"type":        "string",
				"description": fmt.Sprintf("The context for the %s", d.field),
			},
			"coworker": map[string]any{
				"type":        "string",
				"enum":        d.roles(),
				"description": "The role of the coworker",
			},
		},
		"required": []string{d.field, "context", "coworker"},
	}
}

func (d *delegationTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	log := logging.With(toolCtx.Logger(), "tool", d.name, "fc_id", toolCtx.FunctionCallID())

	work, ok := tool.StringArg(args, d.field)
	if !ok {
		return nil, tool.NewToolError(d.name, fmt.Sprintf("missing required parameter %q", d.field), tool.CodeValidation)
	}
	extra, _ := tool.StringArg(args, "context")
	name, _ := tool.StringArg(args, "coworker")

	coworker := d.find(name)
	if coworker == nil {
		return nil, tool.NewToolError(d.name,
			fmt.Sprintf("coworker %q not found, valid coworkers: %s", name, strings.Join(d.roles(), ", ")),
			tool.CodeNotFound)
	}

	expected := "Your best answer to your coworker asking you this, accounting for the context shared."
	prompt := (&Task{Description: work, ExpectedOutput: expected}).Prompt(extra)

	log.Info("crew.delegation.start", "from", toolCtx.AgentName(), "to", coworker.Role)
	if d.k.verbose(coworker) {
		d.k.printer.taskStart(coworker.Role, work)
	}

	sessionID := fmt.Sprintf("%s/delegation/%s", d.k.id, core.NewID())
	answer, err := d.k.execute(toolCtx.Context(), coworker, prompt, coworker.Tools, sessionID)
	if err != nil {
		log.Warn("crew.delegation.failed", "to", coworker.Role, "error", err.Error())
		return nil, tool.NewToolError(d.name, err.Error(), tool.CodeExecution)
	}

	log.Info("crew.delegation.complete", "to", coworker.Role, "chars", len(answer))

	return answer, nil
}

// find matches a coworker role case-insensitively, ignoring surrounding
// quotes and whitespace models tend to add.
func (d *delegationTool) find(name string) *Agent {
	want := strings.ToLower(strings.Trim(strings.TrimSpace(name), `"'`))
	for _, a := range d.coworkers {
		if strings.ToLower(strings.TrimSpace(a.Role)) == want {
			return a
		}
	}
	return nil
}

func (d *delegationTool) roles() []string {
	roles := make([]string, 0, len(d.coworkers))
	for _, a := range d.coworkers {
		roles = append(roles, a.Role)
	}
	return roles
}

func newManagerAgent(llm model.Model) *Agent {
	return &Agent{
		Role: "Crew Manager",
		Goal: "Manage the team to complete the task in the best way possible.",
		Backstory: "You are a seasoned manager with a knack for getting the best out of your team. " +
			"You are also known for your ability to delegate work to the right people, " +
			"and to ask the right questions to get the best out of your team. " +
			"Even though you don't perform tasks by yourself, you have a lot of experience in the field, " +
			"which allows you to properly evaluate the work of your team members.",
		LLM:             llm,
		AllowDelegation: true,
		MaxIter:         DefaultMaxIter,
	}
}
