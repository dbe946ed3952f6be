package config

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hupe1980/agentcrew/crew"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/model/provider"
	"github.com/hupe1980/agentcrew/tool"
	"github.com/hupe1980/agentcrew/tool/scrape"
	"github.com/hupe1980/agentcrew/tool/search"
)

// BuildOptions tune Build.
type BuildOptions struct {
	Logger logging.Logger
	// Output receives verbose crew logs.
	Output io.Writer
	// HTTPClient is used by search and scrape tools.
	HTTPClient *http.Client
	// Models replaces provider construction, keyed by llm name.
	Models map[string]model.Model
	// SerperBaseURL and TavilyBaseURL redirect the search providers.
	SerperBaseURL string
	TavilyBaseURL string
}

// Build turns a definition into a crew together with its kickoff inputs.
func Build(ctx context.Context, cfg *Config, optFns ...func(o *BuildOptions)) (*crew.Crew, crew.Inputs, error) {
	opts := BuildOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	llms := make(map[string]model.Model, len(cfg.LLMs))
	for name, lc := range cfg.LLMs {
		if m, ok := opts.Models[name]; ok {
			llms[name] = m
			continue
		}

		if env := providerCredential(lc.Provider); env != "" && lc.APIKey == "" {
			lc.APIKey, _ = Lookup(env)
		}

		m, err := provider.New(ctx, lc)
		if err != nil {
			return nil, nil, fmt.Errorf("llm %s: %w", name, err)
		}
		llms[name] = m
	}

	tools := make(map[string]tool.Tool, len(cfg.Tools))
	for name, tc := range cfg.Tools {
		tools[name] = buildTool(tc, opts)
	}

	pick := func(names []string) []tool.Tool {
		out := make([]tool.Tool, 0, len(names))
		for _, n := range names {
			out = append(out, tools[n])
		}
		return out
	}

	agents := make(map[string]*crew.Agent, len(cfg.Agents))
	ordered := make([]*crew.Agent, 0, len(cfg.Agents))
	for _, ac := range cfg.Agents {
		a := crew.NewAgent(ac.Role, ac.Goal, ac.Backstory, llms[ac.LLM], func(a *crew.Agent) {
			a.Tools = pick(ac.Tools)
			a.AllowDelegation = ac.AllowDelegation
			a.Verbose = ac.Verbose
			a.MaxRPM = ac.MaxRPM
			if ac.MaxIter > 0 {
				a.MaxIter = ac.MaxIter
			}
		})
		agents[ac.Name] = a
		ordered = append(ordered, a)
	}

	tasks := make(map[string]*crew.Task, len(cfg.Tasks))
	orderedTasks := make([]*crew.Task, 0, len(cfg.Tasks))
	for i, tc := range cfg.Tasks {
		name := taskName(tc, i)
		t := crew.NewTask(tc.Description, tc.ExpectedOutput, agents[tc.Agent], func(t *crew.Task) {
			t.Name = name
			t.Tools = pick(tc.Tools)
			t.AsyncExecution = tc.AsyncExecution
			t.OutputFile = tc.OutputFile
			for _, dep := range tc.Context {
				t.Context = append(t.Context, tasks[dep])
			}
		})
		tasks[name] = t
		orderedTasks = append(orderedTasks, t)
	}

	c := crew.New(ordered, orderedTasks, func(c *crew.Crew) {
		c.Process = crew.Process(cfg.Crew.Process)
		c.Verbose = cfg.Crew.Verbose
		c.Memory = cfg.Crew.Memory
		c.MaxRPM = cfg.Crew.MaxRPM
		c.Logger = opts.Logger
		c.Output = opts.Output
		if cfg.Crew.ManagerLLM != "" {
			c.ManagerLLM = llms[cfg.Crew.ManagerLLM]
		}
	})

	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	return c, crew.Inputs(cfg.Inputs), nil
}

func buildTool(tc ToolConfig, opts BuildOptions) tool.Tool {
	switch tc.Type {
	case ToolSerper:
		return search.NewSerperTool(func(o *search.SerperOptions) {
			if key, ok := Lookup(EnvSerperKey); ok {
				o.APIKey = key
			}
			o.Country = tc.Country
			o.Locale = tc.Locale
			if opts.SerperBaseURL != "" {
				o.BaseURL = opts.SerperBaseURL
			}
			if opts.HTTPClient != nil {
				o.HTTPClient = opts.HTTPClient
			}
		})
	case ToolTavily:
		maxResults := tc.MaxResults
		if maxResults == 0 {
			maxResults = 5
		}
		return search.NewTavilyTool(maxResults, func(o *search.TavilyOptions) {
			if key, ok := Lookup(EnvTavilyKey); ok {
				o.APIKey = key
			}
			if tc.SearchDepth != "" {
				o.SearchDepth = tc.SearchDepth
			}
			if opts.TavilyBaseURL != "" {
				o.BaseURL = opts.TavilyBaseURL
			}
			if opts.HTTPClient != nil {
				o.HTTPClient = opts.HTTPClient
			}
		})
	case ToolScrape:
		return scrape.New(func(o *scrape.Options) {
			if tc.MaxContentLength > 0 {
				o.MaxContentLength = tc.MaxContentLength
			}
			o.SaveArtifacts = tc.SaveArtifacts
			if opts.HTTPClient != nil {
				o.HTTPClient = opts.HTTPClient
			}
		})
	default:
		return tool.NewMemoryTool(tc.MaxResults)
	}
}
