package session

import (
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/agentcrew/core"
)

// InMemoryStore keeps sessions in process memory. Get and Create hand out
// snapshots; the stored session only changes through AppendEvent and
// ApplyDelta.
type InMemoryStore struct {
	mu   sync.Mutex
	byID map[string]*core.Session
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: map[string]*core.Session{}}
}

// Get returns a snapshot of the session, creating it on first access.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	return s.session(sessionID).Clone(), nil
}

// Create replaces any existing session with an empty one.
func (s *InMemoryStore) Create(sessionID string) (*core.Session, error) {
	fresh := core.NewSession(sessionID)
	s.mu.Lock()
	s.byID[sessionID] = fresh
	s.mu.Unlock()
	return fresh.Clone(), nil
}

func (s *InMemoryStore) AppendEvent(sessionID string, ev core.Event) error {
	s.session(sessionID).AddEvent(ev)
	return nil
}

func (s *InMemoryStore) ApplyDelta(sessionID string, delta map[string]any) error {
	s.session(sessionID).ApplyStateDelta(delta)
	return nil
}

// List returns the ids of the stored sessions that start with prefix,
// sorted. A crew's task sessions share the prefix "<kickoff id>/".
func (s *InMemoryStore) List(prefix string) []string {
	s.mu.Lock()
	var ids []string
	for id := range s.byID {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()
	slices.Sort(ids)
	return ids
}

func (s *InMemoryStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.byID, sessionID)
	s.mu.Unlock()
}

// session returns the live session, creating it when missing. Session
// methods lock on their own, so callers do not hold s.mu while using it.
func (s *InMemoryStore) session(id string) *core.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		sess = core.NewSession(id)
		s.byID[id] = sess
	}
	return sess
}
