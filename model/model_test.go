package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
)

func collect(t *testing.T, m Model, req Request) ([]Response, error) {
	t.Helper()
	respCh, errCh := m.Generate(context.Background(), req)
	var out []Response
	for r := range respCh {
		out = append(out, r)
	}
	return out, <-errCh
}

func TestMockModel_QueueThenEcho(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.QueueToolCall("c1", "search_internet", `{"search_query":"venues"}`).QueueText("done")

	req := Request{Contents: []core.Content{core.NewTextContent(core.RoleUser, "hi")}}

	out, err := collect(t, m, req)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "tool_calls", out[0].FinishReason)

	out, err = collect(t, m, req)
	require.NoError(t, err)
	assert.Equal(t, "done", out[0].Content.Text())

	out, err = collect(t, m, req)
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hi", out[0].Content.Text())

	assert.Len(t, m.Requests(), 3)
}

func TestMockModel_StreamingAndErrors(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("ping", "pong")
	m.QueueError(errors.New("quota"))

	req := Request{Stream: true, Contents: []core.Content{core.NewTextContent(core.RoleUser, "ping")}}

	_, err := collect(t, m, req)
	assert.EqualError(t, err, "quota")

	out, err := collect(t, m, req)
	require.NoError(t, err)
	require.Len(t, out, 5)
	assert.True(t, out[0].Partial)
	assert.False(t, out[4].Partial)
	assert.Equal(t, "pong", out[4].Content.Text())
}

func TestSystemPrompt(t *testing.T) {
	req := Request{
		Instructions: "You are a researcher.",
		Contents: []core.Content{
			core.NewTextContent(core.RoleSystem, "Be brief."),
			core.NewTextContent(core.RoleUser, "hi"),
		},
	}
	assert.Equal(t, "You are a researcher.\n\nBe brief.", SystemPrompt(req))
	assert.Empty(t, SystemPrompt(Request{}))
}

func TestResponseText(t *testing.T) {
	assert.Equal(t, "plain", ResponseText(core.FunctionResponse{Response: "plain"}))
	assert.Equal(t, "Error: boom", ResponseText(core.FunctionResponse{Response: "x", Error: "boom"}))
	assert.Equal(t, `{"n":1}`, ResponseText(core.FunctionResponse{Response: map[string]int{"n": 1}}))
	assert.Empty(t, ResponseText(core.FunctionResponse{}))
}
