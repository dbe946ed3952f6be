package core

import "errors"

// Returned when a RunContext lacks the store an operation needs.
var (
	ErrNoSessionStore  = errors.New("session store not configured")
	ErrNoArtifactStore = errors.New("artifact store not configured")
	ErrNoMemoryStore   = errors.New("memory store not configured")
)

// SessionStore persists sessions. Get creates the session on first access.
type SessionStore interface {
	Create(id string) (*Session, error)
	Get(id string) (*Session, error)
	AppendEvent(sessionID string, event Event) error
	ApplyDelta(sessionID string, delta map[string]any) error
}

// ArtifactStore keeps binary outputs per session.
type ArtifactStore interface {
	Save(sessionID, artifactID string, data []byte) error
	Get(sessionID, artifactID string) ([]byte, error)
	List(sessionID string) ([]string, error)
	Delete(sessionID, artifactID string) error
}

// MemoryStore holds recallable snippets per session.
type MemoryStore interface {
	Search(sessionID string, query string, limit int) ([]SearchResult, error)
	Store(sessionID string, content string, metadata map[string]any) error
	Delete(sessionID string, memoryID string) error
}

// SearchResult is a single memory hit.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}
