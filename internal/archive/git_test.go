package archive

import (
	"context"
	"testing"
	"time"

	"tandem/collab/internal/history"
	"tandem/collab/internal/model"
)

func sampleSnapshot(id string) history.Snapshot {
	return history.Snapshot{
		ID:          id,
		Timestamp:   time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC),
		SessionID:   "session-1",
		User:        model.User{ID: "user-a", Name: "Alice"},
		Description: "checkpoint",
		Files: []model.FileNode{
			{Name: "main.go", Type: model.NodeFile, Content: "package main\n"},
		},
		FileCount: 1,
		Size:      len("package main\n"),
	}
}

func TestGitArchiveStoreLoad(t *testing.T) {
	a := NewGitArchive(t.TempDir(), "session-1")
	ctx := context.Background()

	snapshot := sampleSnapshot("snapshot-aaa")
	if err := a.Store(ctx, snapshot); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := a.Load(ctx, "snapshot-aaa")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != snapshot.ID || got.Description != "checkpoint" {
		t.Errorf("loaded = %+v", got)
	}
	if len(got.Files) != 1 || got.Files[0].Content != "package main\n" {
		t.Errorf("loaded files = %+v", got.Files)
	}
}

func TestGitArchiveStoreIdempotent(t *testing.T) {
	a := NewGitArchive(t.TempDir(), "session-1")
	ctx := context.Background()

	snapshot := sampleSnapshot("snapshot-bbb")
	if err := a.Store(ctx, snapshot); err != nil {
		t.Fatalf("first Store: %v", err)
	}
	if err := a.Store(ctx, snapshot); err != nil {
		t.Fatalf("second Store: %v", err)
	}

	ids, err := a.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 || ids[0] != "snapshot-bbb" {
		t.Errorf("ids = %v", ids)
	}
}

func TestGitArchiveList(t *testing.T) {
	a := NewGitArchive(t.TempDir(), "session-1")
	ctx := context.Background()

	for _, id := range []string{"snapshot-1", "snapshot-2", "snapshot-3"} {
		if err := a.Store(ctx, sampleSnapshot(id)); err != nil {
			t.Fatalf("Store %s: %v", id, err)
		}
	}
	ids, err := a.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("ids = %v", ids)
	}
}

func TestGitArchiveLoadUnknown(t *testing.T) {
	a := NewGitArchive(t.TempDir(), "session-1")
	ctx := context.Background()

	if err := a.Store(ctx, sampleSnapshot("snapshot-x")); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := a.Load(ctx, "snapshot-missing"); err == nil {
		t.Error("Load of unknown snapshot succeeded")
	}
}
