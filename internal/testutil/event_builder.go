package testutil

import (
	"github.com/hupe1980/agentcrew/core"
)

// EventBuilder constructs conversation events for history tests:
//
//	ev := NewEventBuilder().Author("researcher").AssistantText("report").Build()
type EventBuilder struct {
	author string
	role   string
	parts  []core.Part
}

// NewEventBuilder creates a builder authored by "agent".
func NewEventBuilder() *EventBuilder { return &EventBuilder{author: "agent"} }

func (b *EventBuilder) Author(a string) *EventBuilder { b.author = a; return b }

func (b *EventBuilder) UserText(t string) *EventBuilder {
	return b.add(core.RoleUser, core.TextPart{Text: t})
}

func (b *EventBuilder) AssistantText(t string) *EventBuilder {
	return b.add(core.RoleAssistant, core.TextPart{Text: t})
}

func (b *EventBuilder) FunctionCall(id, name, args string) *EventBuilder {
	return b.add(core.RoleAssistant, core.FunctionCallPart{
		FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args},
	})
}

// FunctionResponse adds a tool result; a non-nil err is recorded as the
// response error.
func (b *EventBuilder) FunctionResponse(id, name string, result any, err error) *EventBuilder {
	fr := core.FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	return b.add(core.RoleTool, core.FunctionResponsePart{FunctionResponse: fr})
}

func (b *EventBuilder) add(role string, p core.Part) *EventBuilder {
	b.role = role
	b.parts = append(b.parts, p)
	return b
}

func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent("", b.author)
	if len(b.parts) > 0 {
		ev.Content = &core.Content{Role: b.role, Parts: append([]core.Part(nil), b.parts...)}
	}
	return ev
}
