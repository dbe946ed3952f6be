// Package flow drives a single agent turn: it builds the model request from
// instructions and branch history, streams the model response as events and
// runs requested tools until the model produces a final answer.
package flow

import (
	"errors"

	"golang.org/x/time/rate"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/tool"
)

// Flow executes an agent turn and returns the events it produces. Every
// non-partial event sent on the channel must be forwarded to the run's
// emitter; the flow blocks until the runner has persisted it.
type Flow interface {
	Execute(runCtx *core.RunContext) (<-chan core.Event, error)
}

// FlowAgent is the view of an agent a flow needs.
type FlowAgent interface {
	GetName() string

	GetLLM() model.Model

	ResolveInstructions(runCtx *core.RunContext) (string, error)

	// GetTools returns the registered tools keyed by name.
	GetTools() map[string]tool.Tool

	IsFunctionCallingEnabled() bool

	IsStreamingEnabled() bool

	// GetOutputKey names the state key receiving the final answer, if any.
	GetOutputKey() string

	// MaxHistoryMessages bounds the history sent to the model. Zero means unbounded.
	MaxHistoryMessages() int

	// MaxIterations bounds tool rounds before a final answer is forced. Zero means unbounded.
	MaxIterations() int

	// RateLimiter throttles model calls. May be nil.
	RateLimiter() *rate.Limiter
}

// RequestProcessor processes the request before sending it to the LLM.
type RequestProcessor interface {
	Name() string
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor processes each response received from the LLM, before
// it becomes an event. req is the request that produced it.
type ResponseProcessor interface {
	Name() string
	ProcessResponse(runCtx *core.RunContext, req *model.Request, resp *model.Response, agent FlowAgent) error
}

// Error codes set on error events emitted by flows.
const (
	ErrCodeModel     = "MODEL_ERROR"
	ErrCodeLimit     = "MODEL_CALL_LIMIT"
	ErrCodeProcessor = "PROCESSOR_ERROR"
	ErrCodeCanceled  = "CANCELED"

	ErrCodeMaxIterations = "MAX_ITERATIONS"
)

// ErrMaxIterations is reported when the forced final round yields no text
// answer.
var ErrMaxIterations = errors.New("no final answer within max iterations")
