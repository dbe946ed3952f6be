package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
)

var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_GetCreatesAndSnapshots(t *testing.T) {
	s := NewInMemoryStore()

	sess, err := s.Get("crew-1")
	require.NoError(t, err)
	assert.Equal(t, "crew-1", sess.ID)

	require.NoError(t, s.AppendEvent("crew-1", core.NewUserMessageEvent("r", "hello")))
	require.NoError(t, s.ApplyDelta("crew-1", map[string]any{"topic": "climate"}))

	assert.Empty(t, sess.GetEvents(), "earlier snapshot must not change")

	fresh, err := s.Get("crew-1")
	require.NoError(t, err)
	assert.Len(t, fresh.GetEvents(), 1)
	v, _ := fresh.GetState("topic")
	assert.Equal(t, "climate", v)
}

func TestInMemoryStore_CreateResets(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.ApplyDelta("x", map[string]any{"k": 1}))

	sess, err := s.Create("x")
	require.NoError(t, err)
	_, ok := sess.GetState("k")
	assert.False(t, ok)

	s.Delete("x")
	again, _ := s.Get("x")
	assert.Empty(t, again.State)
}

func TestInMemoryStore_List(t *testing.T) {
	s := NewInMemoryStore()
	for _, id := range []string{"k1/writing", "k1/research", "k2/research", "k1"} {
		_, err := s.Get(id)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"k1/research", "k1/writing"}, s.List("k1/"))
	assert.Len(t, s.List(""), 4)
	assert.Empty(t, s.List("nope"))
}
