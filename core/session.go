package core

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Session is one conversation: key/value state plus an append-only event
// log. Methods are safe for concurrent use; the exported fields are meant
// for snapshots and serialization.
type Session struct {
	ID        string         `json:"id"`
	State     map[string]any `json:"state"`
	Events    []Event        `json:"events"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	mu sync.RWMutex
}

func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, State: map[string]any{}, Events: []Event{}, CreatedAt: now, UpdatedAt: now}
}

func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	v, ok := s.State[key]
	s.mu.RUnlock()
	return v, ok
}

func (s *Session) SetState(key string, value any) {
	s.write(func() { s.State[key] = value })
}

// ApplyStateDelta merges delta into the state.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	s.write(func() { maps.Copy(s.State, delta) })
}

// StateSnapshot returns a shallow copy of the state.
func (s *Session) StateSnapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.State)
}

func (s *Session) AddEvent(ev Event) {
	s.write(func() { s.Events = append(s.Events, ev) })
}

// GetEvents returns a copy of the event log.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.Events)
}

// GetConversationHistory returns the non-partial user, assistant and tool
// events recorded on branch.
func (s *Session) GetConversationHistory(branch string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var history []Event
	for _, ev := range s.Events {
		if isConversational(ev) && ev.OnBranch(branch) {
			history = append(history, ev)
		}
	}
	return history
}

func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Session{
		ID:        s.ID,
		State:     maps.Clone(s.State),
		Events:    slices.Clone(s.Events),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (s *Session) write(fn func()) {
	s.mu.Lock()
	fn()
	s.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()
}

func isConversational(ev Event) bool {
	if ev.Content == nil || ev.IsPartial() {
		return false
	}
	switch ev.Content.Role {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}
