// Command basic asks a single web-search agent what Educative is and prints
// its answer.
package main

import (
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/agentcrew"
	"github.com/hupe1980/agentcrew/config"
	"github.com/hupe1980/agentcrew/internal/cli"
	"github.com/hupe1980/agentcrew/model/provider"
	"github.com/hupe1980/agentcrew/tool"
	"github.com/hupe1980/agentcrew/tool/search"
)

const question = "What is Educative?"

type app struct {
	newModel cli.ModelFactory
	tavily   func(o *search.TavilyOptions)
}

func main() {
	a := &app{newModel: provider.New}
	cli.Main("basic", a.run)
}

func (a *app) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	f, err := cli.Parse("basic", args, stderr, "")
	if err != nil {
		return err
	}

	logger, err := f.Setup(stderr, config.EnvOpenAIKey, config.EnvTavilyKey)
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

	tavily := search.NewTavilyTool(1, func(o *search.TavilyOptions) {
		if a.tavily != nil {
			a.tavily(o)
		}
	})

	executor := agentcrew.NewExecutor("react_agent", llm, []tool.Tool{tavily}, func(o *agentcrew.ExecutorOptions) {
		o.Verbose = f.Verbose
		o.Output = stderr
		o.Logger = logger
	})

	logger.Info("basic.invoke.start", "input", question)

	res, err := executor.Invoke(ctx, question)
	if err != nil {
		return err
	}

	logger.Info("basic.invoke.complete", "output_length", len(res.Output))

	fmt.Fprintln(stdout, res)

	return nil
}
