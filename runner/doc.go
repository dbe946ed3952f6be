// Package runner executes agents against a session.
//
// A Runner owns the persistence side of a run: the agent emits events on
// its RunContext, the runner applies state deltas, appends non-partial
// events to the session and only then resumes the agent. Callers consume
// events asynchronously with Run or collect them with RunSync.
package runner
