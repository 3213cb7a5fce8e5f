package comments

import (
	"context"
	"log"
)

// Sync payload actions.
const (
	ActionCreateThread  = "create-thread"
	ActionAddComment    = "add-comment"
	ActionEditComment   = "edit-comment"
	ActionDeleteComment = "delete-comment"
	ActionResolveThread = "resolve-thread"
)

// SyncPayload is the wire form of one comment mutation. Action selects the
// variant; unused fields stay empty.
type SyncPayload struct {
	Action     string   `json:"action"`
	Thread     *Thread  `json:"thread,omitempty"`
	ThreadID   string   `json:"threadId,omitempty"`
	Comment    *Comment `json:"comment,omitempty"`
	CommentID  string   `json:"commentId,omitempty"`
	Text       string   `json:"text,omitempty"`
	ResolvedBy string   `json:"resolvedBy,omitempty"`
	Resolved   bool     `json:"resolved"`
}

// SyncComment applies a remote mutation. Application is idempotent:
// duplicate creates and adds (same ID) are no-ops, and unknown IDs degrade
// to a logged no-op. Remote application never republishes.
func (s *Service) SyncComment(ctx context.Context, payload SyncPayload) {
	switch payload.Action {
	case ActionCreateThread:
		s.syncCreateThread(ctx, payload)
	case ActionAddComment:
		s.syncAddComment(ctx, payload)
	case ActionEditComment:
		s.mu.Lock()
		applied, copied := s.editLocked(payload.ThreadID, payload.CommentID, payload.Text)
		listener := s.listener
		if applied {
			s.persistLocked(ctx)
		}
		s.mu.Unlock()
		if applied {
			listener.ThreadUpdated(copied)
		}
	case ActionDeleteComment:
		s.mu.Lock()
		applied, deleted, copied := s.deleteCommentLocked(payload.ThreadID, payload.CommentID)
		listener := s.listener
		if applied {
			s.persistLocked(ctx)
		}
		s.mu.Unlock()
		if !applied {
			return
		}
		listener.CommentDeleted(payload.ThreadID, payload.CommentID)
		if deleted {
			listener.ThreadDeleted(payload.ThreadID)
		} else {
			listener.ThreadUpdated(copied)
		}
	case ActionResolveThread:
		s.mu.Lock()
		applied, copied := s.resolveLocked(payload.ThreadID, payload.ResolvedBy, payload.Resolved)
		listener := s.listener
		if applied {
			s.persistLocked(ctx)
		}
		s.mu.Unlock()
		if applied {
			listener.ThreadUpdated(copied)
		}
	default:
		log.Printf("comments: unknown sync action %q", payload.Action)
	}
}

func (s *Service) syncCreateThread(ctx context.Context, payload SyncPayload) {
	if payload.Thread == nil {
		log.Printf("comments: create-thread sync without thread")
		return
	}
	s.mu.Lock()
	if _, exists := s.threads[payload.Thread.ID]; exists {
		s.mu.Unlock()
		return
	}
	thread := *payload.Thread
	thread.Comments = append([]Comment(nil), payload.Thread.Comments...)
	s.insertLocked(&thread)
	copied := s.copyLocked(&thread)
	listener := s.listener
	s.persistLocked(ctx)
	s.mu.Unlock()
	listener.ThreadAdded(copied)
}

func (s *Service) syncAddComment(ctx context.Context, payload SyncPayload) {
	if payload.Comment == nil {
		log.Printf("comments: add-comment sync without comment")
		return
	}
	s.mu.Lock()
	thread, ok := s.threads[payload.ThreadID]
	if !ok {
		s.mu.Unlock()
		log.Printf("comments: add-comment sync for unknown thread %s", payload.ThreadID)
		return
	}
	for i := range thread.Comments {
		if thread.Comments[i].ID == payload.Comment.ID {
			s.mu.Unlock()
			return
		}
	}
	thread.Comments = append(thread.Comments, *payload.Comment)
	if payload.Comment.Timestamp.After(thread.UpdatedAt) {
		thread.UpdatedAt = payload.Comment.Timestamp
	}
	copied := s.copyLocked(thread)
	listener := s.listener
	s.persistLocked(ctx)
	s.mu.Unlock()
	listener.ThreadUpdated(copied)
	listener.CommentAdded(copied, *payload.Comment)
}
