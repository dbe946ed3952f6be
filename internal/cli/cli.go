// Package cli holds the flag handling and process setup shared by the
// programs under cmd/.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hupe1980/agentcrew/config"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/model/provider"
)

// DefaultTimeout bounds a whole program run.
const DefaultTimeout = 10 * time.Minute

// ModelFactory builds a model from a provider definition.
type ModelFactory func(ctx context.Context, cfg provider.Config) (model.Model, error)

// Flags are the command line options every program accepts.
type Flags struct {
	EnvFile   string
	LogLevel  string
	LogFormat string
	Output    string
	Verbose   bool
	Timeout   time.Duration

	fs *flag.FlagSet
}

// Parse parses args. defaultOutput is the result file of the program.
func Parse(name string, args []string, stderr io.Writer, defaultOutput string) (*Flags, error) {
	f := &Flags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	f.fs.SetOutput(stderr)

	f.fs.StringVar(&f.EnvFile, "env", ".env", "path of the .env file to load")
	f.fs.StringVar(&f.LogLevel, "log-level", "info", "log level: debug, info, warn or error")
	f.fs.StringVar(&f.LogFormat, "log-format", "text", "log format: text, json or zap")
	f.fs.BoolVar(&f.Verbose, "verbose", true, "print agent steps to stderr")
	f.fs.DurationVar(&f.Timeout, "timeout", DefaultTimeout, "overall run timeout")
	f.fs.StringVar(&f.Output, "output", defaultOutput, "file receiving the raw result")

	if err := f.fs.Parse(args); err != nil {
		return nil, err
	}

	return f, nil
}

// Args returns the positional arguments.
func (f *Flags) Args() []string { return f.fs.Args() }

// IsSet reports whether the named flag was given on the command line.
func (f *Flags) IsSet(name string) bool {
	set := false
	f.fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			set = true
		}
	})
	return set
}

// Setup loads the .env file, builds the logger and checks that every named
// credential is set. Nothing else should happen before Setup succeeds.
func (f *Flags) Setup(stderr io.Writer, credentials ...string) (logging.Logger, error) {
	if err := config.LoadEnv(f.EnvFile); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(f.LogLevel)
	if err != nil {
		return nil, err
	}

	logger := logging.New(&logging.Config{
		Level:  level,
		Format: f.LogFormat,
		Output: stderr,
	})

	if err := config.Require(credentials...); err != nil {
		return nil, err
	}

	return logger, nil
}

// RunFunc is the body of a program.
type RunFunc func(ctx context.Context, args []string, stdout, stderr io.Writer) error

// Main runs fn with a signal-aware context and exits non-zero on failure.
func Main(name string, fn RunFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fn(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		}
		stop()
		os.Exit(1)
	}
}
