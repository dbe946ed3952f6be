package core

import (
	"time"

	"github.com/google/uuid"
)

// EventActions are side effects the runner applies when persisting an event.
type EventActions struct {
	SkipSummarization *bool          `json:"skip_summarization,omitempty"`
	StateDelta        map[string]any `json:"state_delta,omitempty"`
	ArtifactDelta     map[string]int `json:"artifact_delta,omitempty"`
	Escalate          *bool          `json:"escalate,omitempty"`
}

// Usage counts tokens reported by a model call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates o into u.
func (u *Usage) Add(o Usage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
}

// Event is the unit of communication between agents, the runner and callers.
type Event struct {
	ID             string            `json:"id"`
	InvocationID   string            `json:"invocation_id"`
	Author         string            `json:"author"`
	Actions        EventActions      `json:"actions"`
	Branch         *string           `json:"branch,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	Content        *Content          `json:"content,omitempty"`
	Partial        *bool             `json:"partial,omitempty"`
	TurnComplete   *bool             `json:"turn_complete,omitempty"`
	ErrorCode      *string           `json:"error_code,omitempty"`
	ErrorMessage   *string           `json:"error_message,omitempty"`
	Usage          *Usage            `json:"usage,omitempty"`
	CustomMetadata map[string]string `json:"custom_metadata,omitempty"`
}

// NewEvent creates an empty event stamped with a fresh ID and UTC time.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
	}
}

// NewMessageEvent creates an assistant text event.
func NewMessageEvent(invocationID, author, message string) Event {
	e := NewEvent(invocationID, author)
	c := NewTextContent(RoleAssistant, message)
	e.Content = &c
	return e
}

// NewUserMessageEvent creates a user text event.
func NewUserMessageEvent(invocationID, message string) Event {
	e := NewEvent(invocationID, RoleUser)
	c := NewTextContent(RoleUser, message)
	e.Content = &c
	return e
}

// NewUserContentEvent wraps existing user content.
func NewUserContentEvent(invocationID string, content *Content) Event {
	e := NewEvent(invocationID, RoleUser)
	e.Content = content
	return e
}

// NewFunctionResponseEvent records the outcome of a tool call.
func NewFunctionResponseEvent(invocationID, author, id, functionName string, result any, err error) Event {
	e := NewEvent(invocationID, author)
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	e.Content = &Content{Role: RoleTool, Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
	return e
}

// NewErrorEvent creates a terminal error event.
func NewErrorEvent(invocationID, author, code string, err error) Event {
	e := NewEvent(invocationID, author)
	msg := err.Error()
	e.ErrorCode = &code
	e.ErrorMessage = &msg
	return e
}

// NewID returns a random UUID string.
func NewID() string { return uuid.NewString() }

func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// IsError reports whether the event carries an error message.
func (e Event) IsError() bool { return e.ErrorMessage != nil }

// OnBranch reports whether the event belongs to branch b. Events without a
// branch belong to the root branch "".
func (e Event) OnBranch(b string) bool {
	if e.Branch == nil {
		return b == ""
	}
	return *e.Branch == b
}

func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	var calls []FunctionCall
	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var responses []FunctionResponse
	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// IsFinalResponse reports whether the event ends an agent turn.
func (e Event) IsFinalResponse() bool {
	if e.Actions.SkipSummarization != nil && *e.Actions.SkipSummarization {
		return true
	}

	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial()
}

// Text returns the concatenated text parts of the event content.
func (e Event) Text() string {
	if e.Content == nil {
		return ""
	}
	return e.Content.Text()
}
