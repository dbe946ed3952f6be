package crew

import (
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/tool"
)

// sharedMemory scopes every session of a kickoff to one memory namespace so
// agents working on different tasks recall each other's findings.
type sharedMemory struct {
	store core.MemoryStore
	scope string
}

func (m *sharedMemory) Search(_ string, query string, limit int) ([]core.SearchResult, error) {
	return m.store.Search(m.scope, query, limit)
}

func (m *sharedMemory) Store(_ string, content string, metadata map[string]any) error {
	return m.store.Store(m.scope, content, metadata)
}

func (m *sharedMemory) Delete(_ string, memoryID string) error {
	return m.store.Delete(m.scope, memoryID)
}

func (k *kickoff) memoryTool() tool.Tool {
	return tool.NewMemoryTool(5)
}
