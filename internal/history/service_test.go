package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tandem/collab/internal/kv"
	"tandem/collab/internal/model"
)

var erin = model.User{ID: "user-erin", Name: "Erin"}

func sampleTree() []model.FileNode {
	return []model.FileNode{
		{Name: "src", Type: model.NodeFolder, Children: []model.FileNode{
			{Name: "main.go", Type: model.NodeFile, Content: "package main\n"},
			{Name: "util.go", Type: model.NodeFile, Content: "package main\n\nfunc helper() {}\n"},
		}},
		{Name: "README.md", Type: model.NodeFile, Content: "# Project\n"},
	}
}

func TestCreateSnapshot(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	ctx := context.Background()

	files := sampleTree()
	snapshot := svc.CreateSnapshot(ctx, files, erin, "session-1", "initial")
	if snapshot.ID == "" {
		t.Fatal("snapshot ID empty")
	}
	if snapshot.FileCount != 3 {
		t.Errorf("fileCount = %d, want 3", snapshot.FileCount)
	}
	if snapshot.Size != len("package main\n")+len("package main\n\nfunc helper() {}\n")+len("# Project\n") {
		t.Errorf("size = %d", snapshot.Size)
	}
	if snapshot.Description != "initial" || snapshot.SessionID != "session-1" {
		t.Errorf("snapshot meta = %+v", snapshot)
	}
}

func TestSnapshotIsIsolatedFromLiveTree(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	ctx := context.Background()

	files := sampleTree()
	snapshot := svc.CreateSnapshot(ctx, files, erin, "session-1", "before edit")

	// mutate the live tree after snapshotting
	files[0].Children[0].Content = "package main // edited\n"

	restored := svc.RestoreSnapshot(snapshot.ID)
	if restored == nil {
		t.Fatal("RestoreSnapshot returned nil")
	}
	if got := restored[0].Children[0].Content; got != "package main\n" {
		t.Errorf("snapshot content = %q, live edit leaked in", got)
	}

	// mutating the restored copy must not corrupt the stored snapshot
	restored[1].Content = "tampered"
	again := svc.RestoreSnapshot(snapshot.ID)
	if again[1].Content != "# Project\n" {
		t.Errorf("stored snapshot mutated through restore copy: %q", again[1].Content)
	}
}

func TestRestoreUnknownSnapshot(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	if svc.RestoreSnapshot("snapshot-missing") != nil {
		t.Error("restore of unknown snapshot returned a tree")
	}
}

func TestSnapshotCapEvictsOldest(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	svc.SetCaps(3, 3)
	ctx := context.Background()

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		snapshot := svc.CreateSnapshot(ctx, sampleTree(), erin, "session-1", fmt.Sprintf("take %d", i))
		ids = append(ids, snapshot.ID)
	}

	snapshots := svc.GetSnapshots()
	if len(snapshots) != 3 {
		t.Fatalf("retained = %d, want 3", len(snapshots))
	}
	// most recent first
	if snapshots[0].ID != ids[4] || snapshots[2].ID != ids[2] {
		t.Errorf("retained order = %s..%s", snapshots[0].ID, snapshots[2].ID)
	}
	if _, ok := svc.GetSnapshot(ids[0]); ok {
		t.Error("oldest snapshot survived eviction")
	}
}

func TestCompareSnapshots(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	ctx := context.Background()

	before := svc.CreateSnapshot(ctx, sampleTree(), erin, "session-1", "before")

	after := sampleTree()
	after[0].Children[0].Content = "package main // changed\n"          // modified
	after[0].Children = after[0].Children[:1]                           // util.go removed
	after = append(after, model.FileNode{Name: "LICENSE", Type: model.NodeFile, Content: "MIT\n"})
	second := svc.CreateSnapshot(ctx, after, erin, "session-1", "after")

	diff := svc.CompareSnapshots(before.ID, second.ID)
	if diff == nil {
		t.Fatal("CompareSnapshots returned nil")
	}
	if len(diff.FilesAdded) != 1 || diff.FilesAdded[0] != "LICENSE" {
		t.Errorf("added = %v", diff.FilesAdded)
	}
	if len(diff.FilesRemoved) != 1 || diff.FilesRemoved[0] != "src/util.go" {
		t.Errorf("removed = %v", diff.FilesRemoved)
	}
	if len(diff.FilesModified) != 1 || diff.FilesModified[0].Path != "src/main.go" {
		t.Errorf("modified = %v", diff.FilesModified)
	}

	if svc.CompareSnapshots(before.ID, "snapshot-missing") != nil {
		t.Error("compare with unknown snapshot returned a diff")
	}
}

func TestHistoryPersistenceRoundTrip(t *testing.T) {
	store := kv.NewMemoryStore()
	svc := New(store)
	svc.SetCaps(10, 2)
	ctx := context.Background()

	ids := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		snapshot := svc.CreateSnapshot(ctx, sampleTree(), erin, "session-1", fmt.Sprintf("take %d", i))
		ids = append(ids, snapshot.ID)
	}

	restored := New(store)
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	// only the persist cap survives a reload
	snapshots := restored.GetSnapshots()
	if len(snapshots) != 2 {
		t.Fatalf("reloaded = %d, want 2", len(snapshots))
	}
	if snapshots[0].ID != ids[3] || snapshots[1].ID != ids[2] {
		t.Errorf("reloaded order = %s, %s", snapshots[0].ID, snapshots[1].ID)
	}
	tree := restored.RestoreSnapshot(ids[3])
	if tree == nil || len(tree) != 2 {
		t.Fatalf("reloaded tree = %+v", tree)
	}
}

func TestAutoSave(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	created := make(chan Snapshot, 16)
	svc.SetListener(snapshotChan(created))

	svc.StartAutoSave(sampleTree, func() model.User { return erin }, func() string { return "session-1" }, 10*time.Millisecond)
	defer svc.StopAutoSave()

	select {
	case snapshot := <-created:
		if snapshot.Description != "Auto-save" {
			t.Errorf("description = %q", snapshot.Description)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no autosave snapshot within deadline")
	}

	svc.StopAutoSave()
	svc.StopAutoSave() // idempotent
}

func TestAutoSaveSkipsNilTree(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	created := make(chan Snapshot, 16)
	svc.SetListener(snapshotChan(created))

	calls := make(chan struct{}, 16)
	provider := func() []model.FileNode {
		calls <- struct{}{}
		return nil
	}
	svc.StartAutoSave(provider, func() model.User { return erin }, func() string { return "session-1" }, 10*time.Millisecond)
	defer svc.StopAutoSave()

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("provider never called")
	}
	select {
	case snapshot := <-created:
		t.Errorf("snapshot recorded from nil tree: %+v", snapshot)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAutoSaveRejectsBadInterval(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	svc.StartAutoSave(sampleTree, func() model.User { return erin }, func() string { return "session-1" }, 0)
	time.Sleep(20 * time.Millisecond)
	if len(svc.GetSnapshots()) != 0 {
		t.Error("autosave armed with zero interval")
	}
}

type snapshotChan chan Snapshot

func (c snapshotChan) SnapshotCreated(s Snapshot) {
	select {
	case c <- s:
	default:
	}
}
