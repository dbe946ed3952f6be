package artifact

import (
	"slices"
	"sync"
)

type key struct {
	session string
	id      string
}

// InMemoryStore keeps artifacts in process memory, keyed by session and
// artifact id. Stored bytes never alias caller buffers.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[key][]byte
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: map[key][]byte{}}
}

// Save stores data under artifactID, replacing any previous version.
func (s *InMemoryStore) Save(sessionID, artifactID string, data []byte) error {
	s.mu.Lock()
	s.data[key{sessionID, artifactID}] = slices.Clone(data)
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the stored bytes or ErrNotFound.
func (s *InMemoryStore) Get(sessionID, artifactID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.data[key{sessionID, artifactID}]; ok {
		return slices.Clone(b), nil
	}
	return nil, ErrNotFound
}

// List returns the session's artifact ids sorted lexically. An unknown
// session yields an empty list.
func (s *InMemoryStore) List(sessionID string) ([]string, error) {
	s.mu.RLock()
	var ids []string
	for k := range s.data {
		if k.session == sessionID {
			ids = append(ids, k.id)
		}
	}
	s.mu.RUnlock()
	slices.Sort(ids)
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *InMemoryStore) Delete(sessionID, artifactID string) error {
	k := key{sessionID, artifactID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[k]; !ok {
		return ErrNotFound
	}
	delete(s.data, k)
	return nil
}
