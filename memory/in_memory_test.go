package memory

import (
	"testing"

	"github.com/hupe1980/agentcrew/core"
)

var _ core.MemoryStore = (*InMemoryStore)(nil)

func TestInMemoryStore_StoreSearchDelete(t *testing.T) {
	svc := NewInMemoryStore()
	_ = svc.Store("s1", "Venue A seats 500 people in Berlin", map[string]any{"task": "find_venue"})
	_ = svc.Store("s1", "Global temperatures rose sharply after 2018", nil)
	_ = svc.Store("s2", "other session", nil)

	all, err := svc.Search("s1", "", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 memories, got %d", len(all))
	}

	hits, _ := svc.Search("s1", "berlin venue", 5)
	if len(hits) != 1 || hits[0].Metadata["task"] != "find_venue" {
		t.Fatalf("unexpected hits: %#v", hits)
	}

	ranked, _ := svc.Search("s1", "temperatures berlin", 5)
	if len(ranked) != 2 {
		t.Fatalf("expected partial matches for both memories, got %d", len(ranked))
	}

	limited, _ := svc.Search("s1", "", 1)
	if len(limited) != 1 {
		t.Fatalf("limit not applied: %d", len(limited))
	}

	if err := svc.Delete("s1", all[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete("s1", all[0].ID); err == nil {
		t.Fatal("expected error deleting twice")
	}
	rest, _ := svc.Search("s1", "", 0)
	if len(rest) != 1 {
		t.Fatalf("expected 1 memory left, got %d", len(rest))
	}
}
