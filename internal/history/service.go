// Package history provides full-project snapshotting, restore, and
// snapshot comparison.
package history

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"tandem/collab/internal/kv"
	"tandem/collab/internal/model"
	"tandem/collab/internal/util"
)

// StateKey is the kv key holding the persisted snapshot list.
const StateKey = "version_history"

// Default caps: the in-memory list and the persisted slice are bounded
// independently and are not kept in sync.
const (
	DefaultMaxSnapshots     = 50
	DefaultPersistSnapshots = 10
)

// Snapshot is a complete, independently restorable copy of the project file
// tree at one moment. Immutable once created.
type Snapshot struct {
	ID          string           `json:"id"`
	Timestamp   time.Time        `json:"timestamp"`
	SessionID   string           `json:"sessionId"`
	User        model.User       `json:"user"`
	Description string           `json:"description"`
	Files       []model.FileNode `json:"files"`
	FileCount   int              `json:"fileCount"`
	Size        int              `json:"size"`
}

// ModifiedFile records a content change between two snapshots. Only sizes
// are carried; line-level diffing belongs to the editor.
type ModifiedFile struct {
	Path       string `json:"path"`
	BeforeSize int    `json:"beforeSize"`
	AfterSize  int    `json:"afterSize"`
}

// Diff is the result of comparing two snapshots.
type Diff struct {
	FilesAdded    []string       `json:"filesAdded"`
	FilesRemoved  []string       `json:"filesRemoved"`
	FilesModified []ModifiedFile `json:"filesModified"`
}

// Listener receives local-change notifications for the UI layer.
type Listener interface {
	SnapshotCreated(Snapshot)
}

// NopListener is a Listener that ignores everything.
type NopListener struct{}

func (NopListener) SnapshotCreated(Snapshot) {}

// Service owns the snapshot list. All exported methods are safe for
// concurrent use.
type Service struct {
	store    kv.Store
	clock    util.Clock
	listener Listener
	archive  func(Snapshot)

	maxSnapshots     int
	persistSnapshots int

	mu        sync.Mutex
	snapshots []Snapshot

	autoMu   sync.Mutex
	autoStop chan struct{}
}

// New creates a version-history service with default caps. store may be nil
// to disable persistence.
func New(store kv.Store) *Service {
	return &Service{
		store:            store,
		clock:            util.RealClock{},
		listener:         NopListener{},
		maxSnapshots:     DefaultMaxSnapshots,
		persistSnapshots: DefaultPersistSnapshots,
	}
}

// SetCaps overrides the in-memory and persisted snapshot caps.
func (s *Service) SetCaps(maxSnapshots, persistSnapshots int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxSnapshots > 0 {
		s.maxSnapshots = maxSnapshots
	}
	if persistSnapshots > 0 {
		s.persistSnapshots = persistSnapshots
	}
}

// SetListener registers the UI listener. Pass nil to clear.
func (s *Service) SetListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l == nil {
		l = NopListener{}
	}
	s.listener = l
}

// SetArchiver registers a long-term archive hook, invoked asynchronously
// for every created snapshot.
func (s *Service) SetArchiver(archive func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archive = archive
}

// SetClock overrides the time source.
func (s *Service) SetClock(clock util.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// CreateSnapshot records a deep copy of the current file tree. The copy is
// full every time: there is no delta encoding and no dirty check, so cost
// is O(total project size) per call.
func (s *Service) CreateSnapshot(ctx context.Context, files []model.FileNode, user model.User, sessionID, description string) Snapshot {
	s.mu.Lock()
	snapshot := Snapshot{
		ID:          util.NewID("snapshot"),
		Timestamp:   s.clock.Now(),
		SessionID:   sessionID,
		User:        user,
		Description: description,
		Files:       model.CloneTree(files),
		FileCount:   model.CountFiles(files),
		Size:        model.TreeSize(files),
	}
	s.snapshots = append(s.snapshots, snapshot)
	if len(s.snapshots) > s.maxSnapshots {
		s.snapshots = s.snapshots[len(s.snapshots)-s.maxSnapshots:]
	}
	listener, archive := s.listener, s.archive
	s.persistLocked(ctx)
	s.mu.Unlock()

	listener.SnapshotCreated(snapshot)
	if archive != nil {
		go archive(snapshot)
	}
	return snapshot
}

// RestoreSnapshot returns a deep copy of the snapshot's file tree for the
// caller to apply. It mutates nothing itself; nil for unknown IDs.
func (s *Service) RestoreSnapshot(snapshotID string) []model.FileNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.snapshots {
		if s.snapshots[i].ID == snapshotID {
			return model.CloneTree(s.snapshots[i].Files)
		}
	}
	log.Printf("history: restore unknown snapshot %s", snapshotID)
	return nil
}

// GetSnapshot returns a snapshot by ID. The Files slice is shared; callers
// treat snapshots as immutable.
func (s *Service) GetSnapshot(snapshotID string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.snapshots {
		if s.snapshots[i].ID == snapshotID {
			return s.snapshots[i], true
		}
	}
	return Snapshot{}, false
}

// GetSnapshots returns all retained snapshots, most recent first.
func (s *Service) GetSnapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, len(s.snapshots))
	for i := range s.snapshots {
		out[i] = s.snapshots[len(s.snapshots)-1-i]
	}
	return out
}

// CompareSnapshots reports the path-level difference between two snapshots.
// Returns nil if either ID is unknown.
func (s *Service) CompareSnapshots(idA, idB string) *Diff {
	a, okA := s.GetSnapshot(idA)
	b, okB := s.GetSnapshot(idB)
	if !okA || !okB {
		log.Printf("history: compare with unknown snapshot (%s, %s)", idA, idB)
		return nil
	}

	flatA := model.FlattenTree(a.Files)
	flatB := model.FlattenTree(b.Files)
	diff := &Diff{
		FilesAdded:    []string{},
		FilesRemoved:  []string{},
		FilesModified: []ModifiedFile{},
	}
	for _, path := range model.SortedPaths(flatB) {
		contentB := flatB[path]
		contentA, existed := flatA[path]
		switch {
		case !existed:
			diff.FilesAdded = append(diff.FilesAdded, path)
		case contentA != contentB:
			diff.FilesModified = append(diff.FilesModified, ModifiedFile{
				Path:       path,
				BeforeSize: len(contentA),
				AfterSize:  len(contentB),
			})
		}
	}
	for _, path := range model.SortedPaths(flatA) {
		if _, exists := flatB[path]; !exists {
			diff.FilesRemoved = append(diff.FilesRemoved, path)
		}
	}
	return diff
}

// StartAutoSave arms a periodic snapshot timer. Every tick snapshots
// unconditionally, changed or not; a nil tree from getFiles skips the tick
// so a failed provider read never records an empty snapshot. A second call
// replaces the running timer.
func (s *Service) StartAutoSave(getFiles func() []model.FileNode, getUser func() model.User, getSessionID func() string, interval time.Duration) {
	if interval <= 0 {
		log.Printf("history: autosave interval %v rejected", interval)
		return
	}
	s.autoMu.Lock()
	defer s.autoMu.Unlock()
	if s.autoStop != nil {
		close(s.autoStop)
	}
	stop := make(chan struct{})
	s.autoStop = stop

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				files := getFiles()
				if files == nil {
					continue
				}
				s.CreateSnapshot(context.Background(), files, getUser(), getSessionID(), "Auto-save")
			}
		}
	}()
}

// StopAutoSave cancels the autosave timer. Idempotent; an in-flight
// snapshot runs to completion.
func (s *Service) StopAutoSave() {
	s.autoMu.Lock()
	defer s.autoMu.Unlock()
	if s.autoStop != nil {
		close(s.autoStop)
		s.autoStop = nil
	}
}

func (s *Service) persistLocked(ctx context.Context) {
	if s.store == nil {
		return
	}
	count := len(s.snapshots)
	if count > s.persistSnapshots {
		count = s.persistSnapshots
	}
	// Most recent first, truncated to the persist cap.
	persisted := make([]Snapshot, count)
	for i := 0; i < count; i++ {
		persisted[i] = s.snapshots[len(s.snapshots)-1-i]
	}
	data, err := json.Marshal(persisted)
	if err != nil {
		log.Printf("history: marshal state: %v", err)
		return
	}
	if err := s.store.Put(ctx, StateKey, data); err != nil {
		log.Printf("history: persist state: %v", err)
	}
}

// Load restores the persisted snapshot slice. Missing state is not an error.
func (s *Service) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	data, err := s.store.Get(ctx, StateKey)
	if err == kv.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	var persisted []Snapshot
	if err := json.Unmarshal(data, &persisted); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Persisted order is most recent first; memory order is chronological.
	s.snapshots = s.snapshots[:0]
	for i := len(persisted) - 1; i >= 0; i-- {
		s.snapshots = append(s.snapshots, persisted[i])
	}
	return nil
}
