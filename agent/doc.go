// Package agent contains the executable agents.
//
// ModelAgent drives a language model through the tool-calling flow.
// SequentialAgent and ParallelAgent compose other agents; the parallel one
// isolates every child on its own history branch. All agents embed
// BaseAgent for identity, lifecycle and hierarchy.
//
// Agents never persist anything themselves: they emit events through the
// RunContext and wait until the runner has stored them.
package agent
