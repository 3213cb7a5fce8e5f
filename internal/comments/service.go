// Package comments manages comment threads anchored to file+line positions.
package comments

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"tandem/collab/internal/kv"
	"tandem/collab/internal/model"
	"tandem/collab/internal/util"
)

// StateKey is the kv key holding the persisted thread state.
const StateKey = "comment_threads"

type Comment struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	User      model.User `json:"user"`
	Timestamp time.Time  `json:"timestamp"`
	Edited    bool       `json:"edited"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
}

// Thread is a comment thread anchored to a file and line. LineNumber is
// advisory: it is not remapped when collaborators edit the file.
type Thread struct {
	ID         string     `json:"id"`
	FilePath   string     `json:"filePath"`
	LineNumber int        `json:"lineNumber"`
	Comments   []Comment  `json:"comments"`
	IsResolved bool       `json:"isResolved"`
	CreatedAt  time.Time  `json:"createdAt"`
	CreatedBy  string     `json:"createdBy"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy string     `json:"resolvedBy,omitempty"`
}

// Listener receives local-change notifications for the UI layer.
// All methods are invoked synchronously from the mutating call.
type Listener interface {
	ThreadAdded(Thread)
	ThreadUpdated(Thread)
	ThreadDeleted(threadID string)
	CommentAdded(thread Thread, comment Comment)
	CommentDeleted(threadID, commentID string)
}

// NopListener is a Listener that ignores everything.
type NopListener struct{}

func (NopListener) ThreadAdded(Thread)            {}
func (NopListener) ThreadUpdated(Thread)          {}
func (NopListener) ThreadDeleted(string)          {}
func (NopListener) CommentAdded(Thread, Comment)  {}
func (NopListener) CommentDeleted(string, string) {}

// Service owns the thread map and the per-file index. All exported methods
// are safe for concurrent use.
type Service struct {
	store    kv.Store
	clock    util.Clock
	listener Listener
	publish  func(SyncPayload)

	mu          sync.Mutex
	threads     map[string]*Thread
	order       []string
	fileThreads map[string][]string
	fileOrder   []string
}

// New creates a comment service. store may be nil to disable persistence.
func New(store kv.Store) *Service {
	return &Service{
		store:       store,
		clock:       util.RealClock{},
		listener:    NopListener{},
		threads:     make(map[string]*Thread),
		fileThreads: make(map[string][]string),
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

// SetPublisher registers the outbound sync hook. Local mutations are
// published; remotely synced ones are not.
func (s *Service) SetPublisher(publish func(SyncPayload)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish = publish
}

// SetClock overrides the time source.
func (s *Service) SetClock(clock util.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// CreateThread opens a new thread with its first comment.
func (s *Service) CreateThread(ctx context.Context, filePath string, lineNumber int, text string, user model.User) Thread {
	s.mu.Lock()
	now := s.clock.Now()
	thread := &Thread{
		ID:         util.NewID("thread"),
		FilePath:   filePath,
		LineNumber: lineNumber,
		Comments: []Comment{{
			ID:        util.NewID("comment"),
			Text:      text,
			User:      user,
			Timestamp: now,
		}},
		CreatedAt: now,
		CreatedBy: user.ID,
		UpdatedAt: now,
	}
	s.insertLocked(thread)
	copied := *thread
	copied.Comments = append([]Comment(nil), thread.Comments...)
	listener, publish := s.listener, s.publish
	s.persistLocked(ctx)
	s.mu.Unlock()

	listener.ThreadAdded(copied)
	if publish != nil {
		publish(SyncPayload{Action: ActionCreateThread, Thread: &copied})
	}
	return copied
}

// AddComment appends a comment to an existing thread. Returns nil if the
// thread is unknown.
func (s *Service) AddComment(ctx context.Context, threadID, text string, user model.User) *Comment {
	s.mu.Lock()
	thread, ok := s.threads[threadID]
	if !ok {
		s.mu.Unlock()
		log.Printf("comments: add comment to unknown thread %s", threadID)
		return nil
	}
	comment := Comment{
		ID:        util.NewID("comment"),
		Text:      text,
		User:      user,
		Timestamp: s.clock.Now(),
	}
	thread.Comments = append(thread.Comments, comment)
	thread.UpdatedAt = comment.Timestamp
	copied := s.copyLocked(thread)
	listener, publish := s.listener, s.publish
	s.persistLocked(ctx)
	s.mu.Unlock()

	listener.ThreadUpdated(copied)
	listener.CommentAdded(copied, comment)
	if publish != nil {
		publish(SyncPayload{Action: ActionAddComment, ThreadID: threadID, Comment: &comment})
	}
	return &comment
}

// EditComment replaces a comment's text. No edit history is kept.
func (s *Service) EditComment(ctx context.Context, threadID, commentID, text string) bool {
	s.mu.Lock()
	applied, copied := s.editLocked(threadID, commentID, text)
	listener, publish := s.listener, s.publish
	if applied {
		s.persistLocked(ctx)
	}
	s.mu.Unlock()
	if !applied {
		return false
	}
	listener.ThreadUpdated(copied)
	if publish != nil {
		publish(SyncPayload{Action: ActionEditComment, ThreadID: threadID, CommentID: commentID, Text: text})
	}
	return true
}

// DeleteComment removes a comment. Deleting a thread's last comment deletes
// the thread itself: an empty thread never persists.
func (s *Service) DeleteComment(ctx context.Context, threadID, commentID string) bool {
	s.mu.Lock()
	applied, deleted, copied := s.deleteCommentLocked(threadID, commentID)
	listener, publish := s.listener, s.publish
	if applied {
		s.persistLocked(ctx)
	}
	s.mu.Unlock()
	if !applied {
		return false
	}
	listener.CommentDeleted(threadID, commentID)
	if deleted {
		listener.ThreadDeleted(threadID)
	} else {
		listener.ThreadUpdated(copied)
	}
	if publish != nil {
		publish(SyncPayload{Action: ActionDeleteComment, ThreadID: threadID, CommentID: commentID})
	}
	return true
}

// ResolveThread marks a thread resolved. Resolution does not lock the
// thread against further comments.
func (s *Service) ResolveThread(ctx context.Context, threadID, resolvedBy string) bool {
	return s.setResolved(ctx, threadID, resolvedBy, true)
}

// ReopenThread clears a thread's resolved state.
func (s *Service) ReopenThread(ctx context.Context, threadID string) bool {
	return s.setResolved(ctx, threadID, "", false)
}

func (s *Service) setResolved(ctx context.Context, threadID, resolvedBy string, resolved bool) bool {
	s.mu.Lock()
	applied, copied := s.resolveLocked(threadID, resolvedBy, resolved)
	listener, publish := s.listener, s.publish
	if applied {
		s.persistLocked(ctx)
	}
	s.mu.Unlock()
	if !applied {
		return false
	}
	listener.ThreadUpdated(copied)
	if publish != nil {
		publish(SyncPayload{Action: ActionResolveThread, ThreadID: threadID, ResolvedBy: resolvedBy, Resolved: resolved})
	}
	return true
}

// GetThread returns a copy of a thread.
func (s *Service) GetThread(threadID string) (Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.threads[threadID]
	if !ok {
		return Thread{}, false
	}
	return s.copyLocked(thread), true
}

// GetThreadsByFile returns the file's threads ascending by line number.
// Threads on the same line keep creation order.
func (s *Service) GetThreadsByFile(filePath string, includeResolved bool) []Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Thread, 0, len(s.fileThreads[filePath]))
	for _, id := range s.fileThreads[filePath] {
		thread, ok := s.threads[id]
		if !ok {
			continue
		}
		if thread.IsResolved && !includeResolved {
			continue
		}
		out = append(out, s.copyLocked(thread))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LineNumber < out[j].LineNumber
	})
	return out
}

// AllThreads returns every thread in creation order.
func (s *Service) AllThreads() []Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Thread, 0, len(s.order))
	for _, id := range s.order {
		if thread, ok := s.threads[id]; ok {
			out = append(out, s.copyLocked(thread))
		}
	}
	return out
}

func (s *Service) insertLocked(thread *Thread) {
	s.threads[thread.ID] = thread
	s.order = append(s.order, thread.ID)
	if _, seen := s.fileThreads[thread.FilePath]; !seen {
		s.fileOrder = append(s.fileOrder, thread.FilePath)
	}
	s.fileThreads[thread.FilePath] = append(s.fileThreads[thread.FilePath], thread.ID)
}

func (s *Service) removeLocked(thread *Thread) {
	delete(s.threads, thread.ID)
	s.order = removeString(s.order, thread.ID)
	ids := removeString(s.fileThreads[thread.FilePath], thread.ID)
	if len(ids) == 0 {
		delete(s.fileThreads, thread.FilePath)
		s.fileOrder = removeString(s.fileOrder, thread.FilePath)
	} else {
		s.fileThreads[thread.FilePath] = ids
	}
}

func (s *Service) editLocked(threadID, commentID, text string) (bool, Thread) {
	thread, ok := s.threads[threadID]
	if !ok {
		log.Printf("comments: edit comment in unknown thread %s", threadID)
		return false, Thread{}
	}
	for i := range thread.Comments {
		if thread.Comments[i].ID == commentID {
			now := s.clock.Now()
			thread.Comments[i].Text = text
			thread.Comments[i].Edited = true
			thread.Comments[i].EditedAt = &now
			thread.UpdatedAt = now
			return true, s.copyLocked(thread)
		}
	}
	log.Printf("comments: edit unknown comment %s in thread %s", commentID, threadID)
	return false, Thread{}
}

func (s *Service) deleteCommentLocked(threadID, commentID string) (applied, threadDeleted bool, copied Thread) {
	thread, ok := s.threads[threadID]
	if !ok {
		log.Printf("comments: delete comment in unknown thread %s", threadID)
		return false, false, Thread{}
	}
	index := -1
	for i := range thread.Comments {
		if thread.Comments[i].ID == commentID {
			index = i
			break
		}
	}
	if index < 0 {
		log.Printf("comments: delete unknown comment %s in thread %s", commentID, threadID)
		return false, false, Thread{}
	}
	thread.Comments = append(thread.Comments[:index], thread.Comments[index+1:]...)
	thread.UpdatedAt = s.clock.Now()
	if len(thread.Comments) == 0 {
		s.removeLocked(thread)
		return true, true, Thread{}
	}
	return true, false, s.copyLocked(thread)
}

func (s *Service) resolveLocked(threadID, resolvedBy string, resolved bool) (bool, Thread) {
	thread, ok := s.threads[threadID]
	if !ok {
		log.Printf("comments: resolve unknown thread %s", threadID)
		return false, Thread{}
	}
	now := s.clock.Now()
	thread.IsResolved = resolved
	thread.UpdatedAt = now
	if resolved {
		thread.ResolvedAt = &now
		thread.ResolvedBy = resolvedBy
	} else {
		thread.ResolvedAt = nil
		thread.ResolvedBy = ""
	}
	return true, s.copyLocked(thread)
}

func (s *Service) copyLocked(thread *Thread) Thread {
	copied := *thread
	copied.Comments = append([]Comment(nil), thread.Comments...)
	return copied
}

func removeString(list []string, value string) []string {
	for i, v := range list {
		if v == value {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// persistedState is the durable layout: ordered [key, value] pair lists.
type persistedState struct {
	Threads     []kv.Pair[Thread]   `json:"threads"`
	FileThreads []kv.Pair[[]string] `json:"fileThreads"`
}

func (s *Service) persistLocked(ctx context.Context) {
	if s.store == nil {
		return
	}
	state := persistedState{
		Threads:     make([]kv.Pair[Thread], 0, len(s.order)),
		FileThreads: kv.Pairs(s.fileThreads, s.fileOrder),
	}
	for _, id := range s.order {
		if thread, ok := s.threads[id]; ok {
			state.Threads = append(state.Threads, kv.Pair[Thread]{Key: id, Value: s.copyLocked(thread)})
		}
	}
	data, err := json.Marshal(state)
	if err != nil {
		log.Printf("comments: marshal state: %v", err)
		return
	}
	if err := s.store.Put(ctx, StateKey, data); err != nil {
		log.Printf("comments: persist state: %v", err)
	}
}

// Load restores previously persisted state. Missing state is not an error.
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
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = make(map[string]*Thread, len(state.Threads))
	s.order = s.order[:0]
	s.fileThreads = make(map[string][]string, len(state.FileThreads))
	s.fileOrder = s.fileOrder[:0]
	for _, pair := range state.Threads {
		thread := pair.Value
		s.threads[pair.Key] = &thread
		s.order = append(s.order, pair.Key)
	}
	for _, pair := range state.FileThreads {
		s.fileThreads[pair.Key] = append([]string(nil), pair.Value...)
		s.fileOrder = append(s.fileOrder, pair.Key)
	}
	return nil
}
