// Command crew runs a crew described in a YAML file.
//
//	crew [flags] configs/article_writer.yaml
//
// The log section of the file applies unless -log-level or -log-format are
// given, and -output wins over crew.output_file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/agentcrew/config"
	"github.com/hupe1980/agentcrew/internal/cli"
)

var errUsage = errors.New("usage: crew [flags] <config.yaml>")

type app struct {
	build func(o *config.BuildOptions)
}

func main() {
	a := &app{}
	cli.Main("crew", a.run)
}

func (a *app) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	f, err := cli.Parse("crew", args, stderr, "")
	if err != nil {
		return err
	}
	if len(f.Args()) != 1 {
		return errUsage
	}

	// Environment overrides in the .env file apply to the definition.
	if err := config.LoadEnv(f.EnvFile); err != nil {
		return err
	}

	cfg, err := config.Load(f.Args()[0])
	if err != nil {
		return err
	}

	if !f.IsSet("log-level") {
		f.LogLevel = cfg.Log.Level
	}
	if !f.IsSet("log-format") {
		f.LogFormat = cfg.Log.Format
	}
	if !f.IsSet("output") {
		f.Output = cfg.Crew.OutputFile
	}

	logger, err := f.Setup(stderr, cfg.RequiredCredentials()...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	c, inputs, err := config.Build(ctx, cfg, func(o *config.BuildOptions) {
		o.Logger = logger
		o.Output = stderr
		if a.build != nil {
			a.build(o)
		}
	})
	if err != nil {
		return err
	}

	if !f.Verbose {
		c.Verbose = false
		for _, ag := range c.Agents {
			ag.Verbose = false
		}
	}

	logger.Info("crew.kickoff.start", "config", f.Args()[0], "agents", len(c.Agents), "tasks", len(c.Tasks))

	out, err := c.Kickoff(ctx, inputs)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, out.Raw)

	if f.Output != "" {
		if err := out.Save(f.Output); err != nil {
			return err
		}
		logger.Info("crew.output.saved", "path", f.Output)
	}

	return nil
}
