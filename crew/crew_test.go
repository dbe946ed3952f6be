package crew

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/artifact"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/session"
	"github.com/hupe1980/agentcrew/tool"
)

func searchTool(result string) tool.Tool {
	return tool.NewFunctionTool("search_internet", "Search the internet",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"search_query": map[string]any{"type": "string"}},
			"required":   []string{"search_query"},
		},
		func(_ *core.ToolContext, _ map[string]any) (any, error) { return result, nil })
}

func toolResults(req model.Request) []core.FunctionResponse {
	var out []core.FunctionResponse
	for _, c := range req.Contents {
		for _, p := range c.Parts {
			if fr, ok := p.(core.FunctionResponsePart); ok {
				out = append(out, fr.FunctionResponse)
			}
		}
	}
	return out
}

func toolNames(req model.Request) []string {
	names := make([]string, 0, len(req.Tools))
	for _, d := range req.Tools {
		names = append(names, d.Function.Name)
	}
	return names
}

func quiet(c *Crew) { c.Output = &bytes.Buffer{} }

func TestKickoff_VenueFinder(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.QueueToolCall("c1", "search_internet", `{"search_query":"conference venues"}`).
		QueueText("1. Moscone Center\n2. Javits Center")

	finder := NewAgent("Conference Venue Finder",
		"Find the best venue for the upcoming conference",
		"You are an experienced event planner.",
		llm,
		func(a *Agent) { a.Tools = []tool.Tool{searchTool("Moscone Center: 20,000 seats")} },
	)
	task := NewTask("Find the best venue.", "A list of 5 potential venues.", finder)

	var buf bytes.Buffer
	c := New([]*Agent{finder}, []*Task{task}, func(c *Crew) {
		c.Verbose = true
		c.Output = &buf
	})

	out, err := c.Kickoff(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "1. Moscone Center\n2. Javits Center", out.Raw)
	assert.Equal(t, out.Raw, out.String())
	require.Len(t, out.TasksOutput, 1)
	assert.Equal(t, "Conference Venue Finder", out.TasksOutput[0].Agent)
	assert.Equal(t, "task-1", out.TasksOutput[0].Name)

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].Instructions, "You are Conference Venue Finder.")
	assert.Contains(t, reqs[0].Instructions, "Your personal goal is: Find the best venue")
	assert.Contains(t, reqs[0].Contents[0].Text(), "This is the expected criteria for your final answer: A list of 5 potential venues.")
	assert.Equal(t, []string{"search_internet"}, toolNames(reqs[0]))

	results := toolResults(reqs[1])
	require.Len(t, results, 1)
	assert.Equal(t, "Moscone Center: 20,000 seats", results[0].Response)

	log := buf.String()
	assert.Contains(t, log, "# Agent: Conference Venue Finder\n## Task: Find the best venue.")
	assert.Contains(t, log, "## Using tool: search_internet")
	assert.Contains(t, log, "## Tool Output: \nMoscone Center: 20,000 seats")
	assert.Contains(t, log, "## Final Answer: \n1. Moscone Center")
}

func TestCrewOutput_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venue_finder_output.md")

	first := &CrewOutput{Raw: "a much longer first result"}
	require.NoError(t, first.Save(path))

	second := &CrewOutput{Raw: "second"}
	require.NoError(t, second.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestKickoff_SequentialContextAndInputs(t *testing.T) {
	researcherLLM := model.NewMockModel("gemini", "mock")
	researcherLLM.QueueText("REPORT: temperatures rose 0.2C per decade")
	writerLLM := model.NewMockModel("gpt", "mock")
	writerLLM.QueueText("ARTICLE about warming")

	researcher := NewAgent("Senior Researcher", "Uncover technologies in {topic}", "Driven by curiosity.", researcherLLM)
	writer := NewAgent("Writer", "Narrate stories about {topic}", "Flair for simplifying.", writerLLM)

	research := NewTask("Analyze {topic}.", "A detailed report.", researcher)
	writing := NewTask("Write an article.", "A 6-paragraph article.", writer)

	var callbacks []string
	c := New([]*Agent{researcher, writer}, []*Task{research, writing}, quiet, func(c *Crew) {
		c.TaskCallback = func(o TaskOutput) { callbacks = append(callbacks, o.Agent) }
	})

	out, err := c.Kickoff(context.Background(), Inputs{"topic": "global temperatures"})
	require.NoError(t, err)

	assert.Equal(t, "ARTICLE about warming", out.Raw)
	require.Len(t, out.TasksOutput, 2)
	assert.Equal(t, "REPORT: temperatures rose 0.2C per decade", out.TasksOutput[0].Raw)
	assert.Equal(t, "Analyze global temperatures.", out.TasksOutput[0].Description)
	assert.Equal(t, []string{"Senior Researcher", "Writer"}, callbacks)

	rreq := researcherLLM.Requests()[0]
	assert.Contains(t, rreq.Instructions, "Uncover technologies in global temperatures")
	assert.Contains(t, rreq.Contents[0].Text(), "Analyze global temperatures.")
	assert.NotContains(t, rreq.Contents[0].Text(), "context you're working with")

	wreq := writerLLM.Requests()[0]
	assert.Contains(t, wreq.Instructions, "Narrate stories about global temperatures")
	assert.Contains(t, wreq.Contents[0].Text(), "This is the context you're working with:\nREPORT: temperatures rose")

	// the caller's definitions are left untouched
	assert.Equal(t, "Uncover technologies in {topic}", researcher.Goal)
	assert.Equal(t, "Analyze {topic}.", research.Description)
}

func TestKickoff_ExplicitContext(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.QueueText("first").QueueText("second").QueueText("third")

	a := NewAgent("Analyst", "Analyze", "Careful.", llm)
	t1 := NewTask("one", "out", a)
	t2 := NewTask("two", "out", a)
	t3 := NewTask("three", "out", a, func(t *Task) { t.Context = []*Task{t1} })

	_, err := New([]*Agent{a}, []*Task{t1, t2, t3}, quiet).Kickoff(context.Background(), nil)
	require.NoError(t, err)

	prompt := llm.Requests()[2].Contents[0].Text()
	assert.Contains(t, prompt, "first")
	assert.NotContains(t, prompt, "second")
}

func TestKickoff_TaskToolsOverrideAgentTools(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.QueueText("done")

	a := NewAgent("Researcher", "Research", "Curious.", llm, func(a *Agent) {
		a.Tools = []tool.Tool{tool.NewMemoryTool(3)}
	})
	task := NewTask("research", "report", a, func(t *Task) { t.Tools = []tool.Tool{searchTool("x")} })

	_, err := New([]*Agent{a}, []*Task{task}, quiet).Kickoff(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"search_internet"}, toolNames(llm.Requests()[0]))
}

func TestKickoff_Delegation(t *testing.T) {
	researcherLLM := model.NewMockModel("gemini", "mock")
	researcherLLM.
		QueueToolCall("d1", DelegateWorkToolName, `{"task":"Write an intro","context":"about warming","coworker":"writer"}`).
		QueueText("Report with intro")

	writerLLM := model.NewMockModel("gpt", "mock")
	writerLLM.QueueText("A crisp intro")

	researcher := NewAgent("Senior Researcher", "Research", "Curious.", researcherLLM, func(a *Agent) { a.AllowDelegation = true })
	writer := NewAgent("Writer", "Write", "Clear.", writerLLM)

	out, err := New([]*Agent{researcher, writer}, []*Task{NewTask("research", "report", researcher)}, quiet).
		Kickoff(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Report with intro", out.Raw)

	rreqs := researcherLLM.Requests()
	require.Len(t, rreqs, 2)
	assert.Equal(t, []string{AskQuestionToolName, DelegateWorkToolName}, toolNames(rreqs[0]))

	results := toolResults(rreqs[1])
	require.Len(t, results, 1)
	assert.Equal(t, "A crisp intro", results[0].Response)

	wreqs := writerLLM.Requests()
	require.Len(t, wreqs, 1)
	assert.Empty(t, wreqs[0].Tools)
	assert.Contains(t, wreqs[0].Contents[0].Text(), "Write an intro")
	assert.Contains(t, wreqs[0].Contents[0].Text(), "about warming")
}

func TestKickoff_DelegationUnknownCoworker(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.QueueToolCall("d1", AskQuestionToolName, `{"question":"why?","context":"","coworker":"Editor"}`).
		QueueText("answered myself")

	researcher := NewAgent("Senior Researcher", "Research", "Curious.", llm, func(a *Agent) { a.AllowDelegation = true })
	writer := NewAgent("Writer", "Write", "Clear.", model.NewMockModel("unused", "mock"))

	out, err := New([]*Agent{researcher, writer}, []*Task{NewTask("research", "report", researcher)}, quiet).
		Kickoff(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "answered myself", out.Raw)

	results := toolResults(llm.Requests()[1])
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Error, `coworker "Editor" not found, valid coworkers: Writer`)
}

func TestKickoff_NoDelegationToolsWithoutCoworkers(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.QueueText("alone")

	a := NewAgent("Solo", "Work", "Alone.", llm, func(a *Agent) { a.AllowDelegation = true })
	_, err := New([]*Agent{a}, []*Task{NewTask("t", "o", a)}, quiet).Kickoff(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, llm.Requests()[0].Tools)
}

func TestKickoff_Hierarchical(t *testing.T) {
	managerLLM := model.NewMockModel("manager", "mock")
	managerLLM.
		QueueToolCall("d1", DelegateWorkToolName, `{"task":"find venues","context":"SF","coworker":"Venue Finder"}`).
		QueueText("Managed result")

	finderLLM := model.NewMockModel("finder", "mock")
	finderLLM.QueueText("Moscone")

	finder := NewAgent("Venue Finder", "Find venues", "Planner.", finderLLM)

	out, err := New([]*Agent{finder}, []*Task{NewTask("Find a venue", "A venue", nil)}, quiet, func(c *Crew) {
		c.Process = ProcessHierarchical
		c.ManagerLLM = managerLLM
	}).Kickoff(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "Managed result", out.Raw)
	assert.Equal(t, "Crew Manager", out.TasksOutput[0].Agent)
	assert.Contains(t, managerLLM.Requests()[0].Instructions, "You are Crew Manager.")
	assert.Equal(t, "Moscone", toolResults(managerLLM.Requests()[1])[0].Response)
}

func TestKickoff_AsyncTasks(t *testing.T) {
	aLLM := model.NewMockModel("a", "mock")
	aLLM.QueueText("alpha")
	bLLM := model.NewMockModel("b", "mock")
	bLLM.QueueText("beta")
	cLLM := model.NewMockModel("c", "mock")
	cLLM.QueueText("summary")

	a := NewAgent("A", "a", "a", aLLM)
	b := NewAgent("B", "b", "b", bLLM)
	s := NewAgent("S", "s", "s", cLLM)

	async := func(t *Task) { t.AsyncExecution = true }
	tasks := []*Task{
		NewTask("task a", "out", a, async),
		NewTask("task b", "out", b, async),
		NewTask("summarize", "out", s),
	}

	var mu sync.Mutex
	var steps int
	out, err := New([]*Agent{a, b, s}, tasks, quiet, func(c *Crew) {
		c.StepCallback = func(core.Event) { mu.Lock(); steps++; mu.Unlock() }
	}).Kickoff(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "summary", out.Raw)
	assert.Equal(t, "alpha", out.TasksOutput[0].Raw)
	assert.Equal(t, "beta", out.TasksOutput[1].Raw)
	assert.Equal(t, 3, steps)

	prompt := cLLM.Requests()[0].Contents[0].Text()
	assert.Less(t, strings.Index(prompt, "alpha"), strings.Index(prompt, "beta"))
	assert.NotContains(t, aLLM.Requests()[0].Contents[0].Text(), "beta")
}

func TestKickoff_TokenUsage(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.QueueResponse(model.Response{
		Content: core.Content{Role: core.RoleAssistant, Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "search_internet", Arguments: `{"search_query":"q"}`}},
		}},
		Usage: &model.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})
	llm.QueueResponse(model.Response{
		Content: core.NewTextContent(core.RoleAssistant, "done"),
		Usage:   &model.TokenUsage{PromptTokens: 20, CompletionTokens: 7, TotalTokens: 27},
	})

	a := NewAgent("A", "a", "a", llm, func(a *Agent) { a.Tools = []tool.Tool{searchTool("r")} })
	out, err := New([]*Agent{a}, []*Task{NewTask("t", "o", a)}, quiet).Kickoff(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, model.TokenUsage{PromptTokens: 30, CompletionTokens: 12, TotalTokens: 42}, out.TokenUsage)
}

func TestKickoff_Memory(t *testing.T) {
	firstLLM := model.NewMockModel("first", "mock")
	firstLLM.QueueText("The venue is Moscone Center")

	secondLLM := model.NewMockModel("second", "mock")
	secondLLM.QueueToolCall("m1", "crew_memory", `{"operation":"search_memory","query":"venue"}`).QueueText("ok")

	a := NewAgent("A", "a", "a", firstLLM)
	b := NewAgent("B", "b", "b", secondLLM)

	_, err := New([]*Agent{a, b}, []*Task{NewTask("t1", "o", a), NewTask("t2", "o", b)}, quiet, func(c *Crew) {
		c.Memory = true
	}).Kickoff(context.Background(), nil)
	require.NoError(t, err)

	assert.Contains(t, toolNames(firstLLM.Requests()[0]), "crew_memory")

	results := toolResults(secondLLM.Requests()[1])
	require.Len(t, results, 1)
	assert.Equal(t, "1. The venue is Moscone Center", results[0].Response)
}

func TestKickoff_FailureWritesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")

	llm := model.NewMockModel("mock", "mock")
	llm.QueueError(errors.New("invalid api key"))

	a := NewAgent("A", "a", "a", llm)
	task := NewTask("t", "o", a, func(t *Task) { t.OutputFile = path })

	out, err := New([]*Agent{a}, []*Task{task}, quiet).Kickoff(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Contains(t, err.Error(), "invalid api key")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestKickoff_TaskOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "research.md")

	llm := model.NewMockModel("mock", "mock")
	llm.QueueText("report body")

	a := NewAgent("A", "a", "a", llm)
	task := NewTask("t", "o", a, func(t *Task) { t.OutputFile = path })

	_, err := New([]*Agent{a}, []*Task{task}, quiet).Kickoff(context.Background(), nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "report body", string(data))
}

func TestKickoff_ToolArtifacts(t *testing.T) {
	var sessionID string
	saver := tool.NewFunctionTool("save_notes", "Save notes",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(toolCtx *core.ToolContext, _ map[string]any) (any, error) {
			sessionID = toolCtx.SessionID()
			return "saved", toolCtx.SaveArtifact("notes.md", []byte("venue notes"))
		})

	llm := model.NewMockModel("mock", "mock")
	llm.QueueToolCall("c1", "save_notes", `{}`).QueueText("done")

	a := NewAgent("A", "a", "a", llm, func(a *Agent) { a.Tools = []tool.Tool{saver} })
	task := NewTask("t", "o", a)

	store := artifact.NewInMemoryStore()
	_, err := New([]*Agent{a}, []*Task{task}, quiet, func(c *Crew) { c.Artifacts = store }).
		Kickoff(context.Background(), nil)
	require.NoError(t, err)

	require.NotEmpty(t, sessionID)
	assert.True(t, strings.HasSuffix(sessionID, "/task-1"))
	data, err := store.Get(sessionID, "notes.md")
	require.NoError(t, err)
	assert.Equal(t, "venue notes", string(data))
}

func TestCrew_Validate(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	a := NewAgent("A", "a", "a", llm)

	tests := []struct {
		name string
		crew *Crew
		want error
	}{
		{"no tasks", New([]*Agent{a}, nil), ErrNoTasks},
		{"task without agent", New([]*Agent{a}, []*Task{NewTask("t", "o", nil)}), ErrNoAgent},
		{"agent without model", New(nil, []*Task{NewTask("t", "o", NewAgent("B", "b", "b", nil))}), ErrNoModel},
		{"hierarchical without manager", New([]*Agent{a}, []*Task{NewTask("t", "o", a)}, func(c *Crew) {
			c.Process = ProcessHierarchical
		}), ErrNoManagerLLM},
		{"empty description", New([]*Agent{a}, []*Task{NewTask("", "o", a)}), ErrInvalidCrew},
		{"unknown process", New([]*Agent{a}, []*Task{NewTask("t", "o", a)}, func(c *Crew) {
			c.Process = "planned"
		}), ErrInvalidCrew},
		{"duplicate task names", New([]*Agent{a}, []*Task{
			NewTask("t1", "o", a, named("step")),
			NewTask("t2", "o", a, named("step")),
		}), ErrInvalidCrew},
		{"name clashes with default name", New([]*Agent{a}, []*Task{
			NewTask("t1", "o", a),
			NewTask("t2", "o", a, named("task-1")),
		}), ErrInvalidCrew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.crew.Validate(), tt.want)
		})
	}

	later := NewTask("later", "o", a)
	early := NewTask("early", "o", a, func(t *Task) { t.Context = []*Task{later} })
	assert.ErrorIs(t, New([]*Agent{a}, []*Task{early, later}).Validate(), ErrInvalidCrew)
}

func TestKickoff_SessionTranscript(t *testing.T) {
	aLLM := model.NewMockModel("a", "mock")
	aLLM.QueueText("alpha")
	bLLM := model.NewMockModel("b", "mock")
	bLLM.QueueText("beta")

	a := NewAgent("A", "a", "a", aLLM)
	b := NewAgent("B", "b", "b", bLLM)

	store := session.NewInMemoryStore()
	out, err := New([]*Agent{a, b}, []*Task{
		NewTask("first", "out", a, func(t *Task) { t.Name = "first"; t.AsyncExecution = true }),
		NewTask("second", "out", b, func(t *Task) { t.Name = "second"; t.AsyncExecution = true }),
	}, quiet, func(c *Crew) { c.Sessions = store }).Kickoff(context.Background(), Inputs{"topic": "venues"})
	require.NoError(t, err)
	require.NotEmpty(t, out.ID)

	sess, err := store.Get(out.ID)
	require.NoError(t, err)

	state := sess.StateSnapshot()
	assert.Equal(t, "alpha", state[StateKeyPrefix+"first"])
	assert.Equal(t, "beta", state[StateKeyPrefix+"second"])

	events := sess.GetEvents()
	require.Len(t, events, 3)
	assert.Contains(t, events[0].Text(), "topic: venues")

	authors := []string{events[1].Author, events[2].Author}
	assert.ElementsMatch(t, []string{"first", "second"}, authors)

	assert.Equal(t, []string{out.ID + "/first", out.ID + "/second"}, store.List(out.ID+"/"))
	task, err := store.Get(out.ID + "/first")
	require.NoError(t, err)
	assert.NotEmpty(t, task.GetEvents())
}

func named(name string) func(*Task) { return func(t *Task) { t.Name = name } }

func TestKickoff_DuplicateTaskNamesRejected(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	a := NewAgent("A", "a", "a", llm)

	_, err := New([]*Agent{a}, []*Task{
		NewTask("FIRST TASK PROMPT", "o", a, named("step")),
		NewTask("SECOND TASK PROMPT", "o", a, named("step")),
	}, quiet).Kickoff(context.Background(), nil)

	require.ErrorIs(t, err, ErrInvalidCrew)
	assert.Contains(t, err.Error(), `"step"`)
	assert.Empty(t, llm.Requests())
}

func TestKickoff_TaskSessionsAreSeparate(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.QueueText("first answer").QueueText("second answer")
	a := NewAgent("A", "a", "a", llm)

	_, err := New([]*Agent{a}, []*Task{
		NewTask("FIRST TASK PROMPT", "o", a),
		NewTask("SECOND TASK PROMPT", "o", a),
	}, quiet).Kickoff(context.Background(), nil)
	require.NoError(t, err)

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[1].Contents, 1)
	assert.Contains(t, reqs[1].Contents[0].Text(), "SECOND TASK PROMPT")
	assert.NotContains(t, reqs[1].Contents[0].Text(), "FIRST TASK PROMPT")
}
