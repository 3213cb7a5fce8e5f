package util

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID("thread")
	if !strings.HasPrefix(id, "thread_") {
		t.Errorf("id = %q, want thread_ prefix", id)
	}
	if len(id) != len("thread_")+32 {
		t.Errorf("id length = %d", len(id))
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID("x")
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
