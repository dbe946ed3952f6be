// Command articlewriter runs a two-agent crew on different model providers:
// a Gemini researcher followed by a GPT writer. The article is printed and
// saved as markdown.
package main

import (
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/agentcrew/config"
	"github.com/hupe1980/agentcrew/crew"
	"github.com/hupe1980/agentcrew/internal/cli"
	"github.com/hupe1980/agentcrew/model/provider"
	"github.com/hupe1980/agentcrew/tool"
	"github.com/hupe1980/agentcrew/tool/scrape"
	"github.com/hupe1980/agentcrew/tool/search"
)

const (
	outputFile = "article_writing_output.md"
	topic      = "The rise in global tempratures from 2018 onwards"
)

type app struct {
	newModel cli.ModelFactory
	serper   func(o *search.SerperOptions)
}

func main() {
	a := &app{newModel: provider.New}
	cli.Main("articlewriter", a.run)
}

func (a *app) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	f, err := cli.Parse("articlewriter", args, stderr, outputFile)
	if err != nil {
		return err
	}

	logger, err := f.Setup(stderr, config.EnvGoogleKey, config.EnvOpenAIKey, config.EnvSerperKey)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	searchTool := search.NewSerperTool(func(o *search.SerperOptions) {
		if a.serper != nil {
			a.serper(o)
		}
	})
	scrapeTool := scrape.New()
	logger.Debug("articlewriter.tools.ready", "search", searchTool.Name(), "scrape", scrapeTool.Name())

	googleKey, _ := config.Lookup(config.EnvGoogleKey)
	gemini, err := a.newModel(ctx, provider.Config{
		Provider:    provider.Gemini,
		Model:       "gemini-1.5-flash",
		Temperature: 0.5,
		APIKey:      googleKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create gemini model: %w", err)
	}

	openAIKey, _ := config.Lookup(config.EnvOpenAIKey)
	gpt, err := a.newModel(ctx, provider.Config{
		Provider:    provider.OpenAI,
		Model:       "gpt-4-0314",
		Temperature: 0.5,
		APIKey:      openAIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create openai model: %w", err)
	}

	researcher := crew.NewAgent(
		"Senior Researcher",
		"Uncover ground breaking technologies in {topic}",
		"Driven by curiosity, you're at the forefront of "+
			"innovation, eager to explore and share knowledge that could change "+
			"the world.",
		gemini,
		func(ag *crew.Agent) {
			ag.Verbose = f.Verbose
			ag.Tools = []tool.Tool{searchTool}
			ag.AllowDelegation = true
		},
	)

	writer := crew.NewAgent(
		"Writer",
		"Narrate compelling tech stories about {topic}",
		"With a flair for simplifying complex topics, you craft "+
			"engaging narratives that captivate and educate, bringing new "+
			"discoveries to light in an accessible manner.",
		gpt,
		func(ag *crew.Agent) {
			ag.Verbose = f.Verbose
			ag.Tools = []tool.Tool{searchTool}
		},
	)

	research := crew.NewTask(
		"Conduct a thorough analysis on the given {topic}. "+
			"Utilize SerperSearch for any necessary online research. "+
			"Summarize key findings in a detailed report.",
		"A detailed report on the data analysis with key insights.",
		researcher,
		func(t *crew.Task) {
			t.Name = "research"
			t.Tools = []tool.Tool{searchTool}
		},
	)

	writing := crew.NewTask(
		"Write an insightful article based on the data analysis report. "+
			"The article should be clear, engaging, and easy to understand.",
		"A 6-paragraph article summarizing the data insights.",
		writer,
		func(t *crew.Task) { t.Name = "writing" },
	)

	c := crew.New([]*crew.Agent{researcher, writer}, []*crew.Task{research, writing}, func(c *crew.Crew) {
		c.Process = crew.ProcessSequential
		c.Verbose = f.Verbose
		c.Output = stderr
		c.Logger = logger
	})

	out, err := c.Kickoff(ctx, crew.Inputs{"topic": topic})
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, out.Raw)

	if err := out.Save(f.Output); err != nil {
		return err
	}

	logger.Info("articlewriter.output.saved",
		"path", f.Output,
		"prompt_tokens", out.TokenUsage.PromptTokens,
		"completion_tokens", out.TokenUsage.CompletionTokens,
	)

	return nil
}
