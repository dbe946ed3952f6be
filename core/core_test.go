package core

import (
	"context"
)

type fakeSessionStore struct {
	sessions map[string]*Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*Session{}}
}

func (s *fakeSessionStore) Get(id string) (*Session, error) {
	if sess, ok := s.sessions[id]; ok {
		return sess.Clone(), nil
	}
	s.sessions[id] = NewSession(id)
	return s.sessions[id].Clone(), nil
}

func (s *fakeSessionStore) Create(id string) (*Session, error) { return s.Get(id) }

func (s *fakeSessionStore) AppendEvent(id string, ev Event) error {
	_, _ = s.Get(id)
	s.sessions[id].AddEvent(ev)
	return nil
}

func (s *fakeSessionStore) ApplyDelta(id string, delta map[string]any) error {
	_, _ = s.Get(id)
	s.sessions[id].ApplyStateDelta(delta)
	return nil
}

type fakeArtifactStore struct{ saved map[string][]byte }

func (a *fakeArtifactStore) Save(sid, aid string, data []byte) error {
	if a.saved == nil {
		a.saved = map[string][]byte{}
	}
	a.saved[sid+"/"+aid] = append([]byte{}, data...)
	return nil
}

func (a *fakeArtifactStore) Get(sid, aid string) ([]byte, error) { return a.saved[sid+"/"+aid], nil }

func (a *fakeArtifactStore) List(string) ([]string, error) { return nil, nil }

func (a *fakeArtifactStore) Delete(string, string) error { return nil }

type fakeMemoryStore struct{ stored []string }

func (m *fakeMemoryStore) Search(_ string, _ string, _ int) ([]SearchResult, error) {
	res := make([]SearchResult, 0, len(m.stored))
	for _, s := range m.stored {
		res = append(res, SearchResult{Content: s})
	}
	return res, nil
}

func (m *fakeMemoryStore) Store(_ string, content string, _ map[string]any) error {
	m.stored = append(m.stored, content)
	return nil
}

func (m *fakeMemoryStore) Delete(string, string) error { return nil }

func newRunContextForTest() (*RunContext, chan Event) {
	emit := make(chan Event, 5)
	resume := make(chan struct{}, 5)
	store := newFakeSessionStore()
	sess, _ := store.Get("sess-x")
	return NewRunContext(
		context.Background(),
		"sess-x", "run-x",
		AgentInfo{Name: "Agent1", Type: "test"},
		Content{},
		0,
		emit, resume,
		sess,
		store,
		&fakeArtifactStore{},
		&fakeMemoryStore{},
		nil,
	), emit
}
