package memory

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentcrew/core"
)

// StoredMemory is one remembered snippet.
type StoredMemory struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// InMemoryStore keeps memories per session in insertion order and ranks
// search hits by the share of query terms they contain.
type InMemoryStore struct {
	mu      sync.RWMutex
	seq     int
	storage map[string][]StoredMemory // sessionID -> memories
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{storage: make(map[string][]StoredMemory)}
}

// Search returns up to limit memories matching query. An empty query matches
// everything with score 1. A limit <= 0 means no limit.
func (m *InMemoryStore) Search(sessionID string, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))

	results := []core.SearchResult{}
	for _, stored := range m.storage[sessionID] {
		score := 1.0
		if len(terms) > 0 {
			score = matchScore(strings.ToLower(stored.Content), terms)
			if score == 0 {
				continue
			}
		}
		results = append(results, core.SearchResult{
			ID:       stored.ID,
			Content:  stored.Content,
			Score:    score,
			Metadata: maps.Clone(stored.Metadata),
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

func (m *InMemoryStore) Store(sessionID string, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.storage[sessionID] = append(m.storage[sessionID], StoredMemory{
		ID:       fmt.Sprintf("mem_%d", m.seq),
		Content:  content,
		Metadata: maps.Clone(metadata),
	})
	return nil
}

func (m *InMemoryStore) Delete(sessionID string, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mems := m.storage[sessionID]
	for i, mem := range mems {
		if mem.ID == memoryID {
			m.storage[sessionID] = append(mems[:i], mems[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("memory not found")
}

func matchScore(content string, terms []string) float64 {
	hits := 0
	for _, t := range terms {
		if strings.Contains(content, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
