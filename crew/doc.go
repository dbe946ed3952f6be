// Package crew runs role-playing agents through a list of tasks.
//
// A Crew holds Agents (role, goal, backstory, model, tools) and Tasks
// (description, expected output, assigned agent). Kickoff interpolates
// {name} inputs into their texts and executes the tasks under the crew's
// Process. Every task runs a fresh agent.ModelAgent in its own session; the
// outputs of earlier tasks reach later ones through the task prompt.
//
// The tasks themselves are scheduled as an agent.SequentialAgent on a runner
// bound to the kickoff session; consecutive async tasks become one
// agent.ParallelAgent step. Each task reports its output to that session as
// a message and as state under StateKeyPrefix+name.
//
// Agents with AllowDelegation get two extra tools that hand work to, or ask
// questions of, their coworkers. The hierarchical process adds a manager
// agent that executes every task through those tools.
package crew
