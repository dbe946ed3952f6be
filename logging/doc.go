// Package logging provides a minimal logging interface and adapters for agentcrew.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// that runners, agents, tools and crews use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging (text or JSON handlers)
//   - ZapAdapter wrapping go.uber.org/zap
//   - NoOpLogger for silent operation (testing, library defaults)
//
// Usage:
//
//	logger := logging.New(&logging.Config{Level: logging.LogLevelInfo, Format: "json", Output: os.Stderr})
//	r := runner.New(rootAgent, func(o *runner.Options) { o.Logger = logger })
package logging
