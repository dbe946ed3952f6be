package core

// Agent is the unit of execution the runner drives. Composite agents
// (sequential, parallel, crew tasks) call Run on their children with the
// same or a derived RunContext.
type Agent interface {
	Name() string
	Description() string
	Start(runCtx *RunContext) error
	Stop(runCtx *RunContext) error
	Run(runCtx *RunContext) error
	SetSubAgents(children ...Agent) error
	SubAgents() []Agent
	Parent() Agent
	FindAgent(name string) Agent
}

// AgentInfo is the lightweight identity copied into contexts.
type AgentInfo struct{ Name, Type string }
