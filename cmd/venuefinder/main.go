// Command venuefinder runs a one-agent crew that searches the web for
// conference venues and saves the result as markdown.
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
	"github.com/hupe1980/agentcrew/tool/search"
)

const outputFile = "venue_finder_output.md"

type app struct {
	newModel cli.ModelFactory
	serper   func(o *search.SerperOptions)
}

func main() {
	a := &app{newModel: provider.New}
	cli.Main("venuefinder", a.run)
}

func (a *app) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	f, err := cli.Parse("venuefinder", args, stderr, outputFile)
	if err != nil {
		return err
	}

	logger, err := f.Setup(stderr, config.EnvOpenAIKey, config.EnvSerperKey)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	key, _ := config.Lookup(config.EnvOpenAIKey)
	llm, err := a.newModel(ctx, provider.Config{
		Provider: provider.OpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   key,
	})
	if err != nil {
		return fmt.Errorf("failed to create model: %w", err)
	}

	searchTool := search.NewSerperTool(func(o *search.SerperOptions) {
		if a.serper != nil {
			a.serper(o)
		}
	})

	venueFinder := crew.NewAgent(
		"Conference Venue Finder",
		"Find the best venue for the upcoming conference",
		"You are an experienced event planner with a knack for finding the perfect venues. "+
			"Your expertise ensures that all conference requirements are met efficiently.",
		llm,
		func(ag *crew.Agent) {
			ag.Verbose = f.Verbose
			ag.Tools = []tool.Tool{searchTool}
		},
	)

	findVenue := crew.NewTask(
		"Conduct a thorough search to find the best venue for the upcoming "+
			"conference. Consider factors such as capacity, location, amenities, "+
			"and pricing. Use online resources and databases to gather comprehensive "+
			"information.",
		"A list of 5 potential venues with detailed information on capacity, "+
			"location, amenities, pricing, and availability.",
		venueFinder,
	)

	c := crew.New([]*crew.Agent{venueFinder}, []*crew.Task{findVenue}, func(c *crew.Crew) {
		c.Verbose = f.Verbose
		c.Output = stderr
		c.Logger = logger
	})

	out, err := c.Kickoff(ctx, nil)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, out)
	fmt.Fprintln(stdout, out.Raw)

	if err := out.Save(f.Output); err != nil {
		return err
	}

	logger.Info("venuefinder.output.saved", "path", f.Output, "tokens", out.TokenUsage.TotalTokens)

	return nil
}
