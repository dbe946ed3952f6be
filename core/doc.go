// Package core provides the foundational domain types, interfaces and execution
// contexts used by agentcrew. It defines the core abstractions for:
//
//   - Agents (units of autonomous or orchestrated work)
//   - Sessions (stateful conversational containers with event history)
//   - Events (immutable communication and orchestration records)
//   - RunContext / ToolContext (scoped execution and tool sandboxing)
//   - Pluggable stores for session state, artifacts and memory recall
//
// Persistence, orchestration and concrete agents live in other packages;
// core only exposes the small interfaces they meet on.
package core
