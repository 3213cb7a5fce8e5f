package trackchanges

import (
	"context"
	"log"
)

// Sync payload actions.
const (
	ActionCreate = "create"
	ActionAccept = "accept"
	ActionReject = "reject"
	ActionDelete = "delete"
)

// SyncPayload is the wire form of one suggestion mutation.
type SyncPayload struct {
	Action       string      `json:"action"`
	Suggestion   *Suggestion `json:"suggestion,omitempty"`
	SuggestionID string      `json:"suggestionId,omitempty"`
	UserID       string      `json:"userId,omitempty"`
	Reason       string      `json:"reason,omitempty"`
}

// SyncSuggestion applies a remote mutation. Duplicate creates (same ID) are
// no-ops; accept/reject are applied only while the local status is still
// pending, so the first transition to land wins and later ones are dropped.
func (s *Service) SyncSuggestion(ctx context.Context, payload SyncPayload) {
	switch payload.Action {
	case ActionCreate:
		s.syncCreate(ctx, payload)
	case ActionAccept:
		s.mu.Lock()
		descriptor, copied := s.acceptLocked(payload.SuggestionID, payload.UserID)
		listener := s.listener
		if descriptor != nil {
			s.persistLocked(ctx)
		}
		s.mu.Unlock()
		if descriptor != nil {
			listener.SuggestionUpdated(copied)
		}
	case ActionReject:
		s.mu.Lock()
		applied, copied := s.rejectLocked(payload.SuggestionID, payload.UserID, payload.Reason)
		listener := s.listener
		if applied {
			s.persistLocked(ctx)
		}
		s.mu.Unlock()
		if applied {
			listener.SuggestionUpdated(copied)
		}
	case ActionDelete:
		s.mu.Lock()
		applied := s.deleteLocked(payload.SuggestionID)
		listener := s.listener
		if applied {
			s.persistLocked(ctx)
		}
		s.mu.Unlock()
		if applied {
			listener.SuggestionDeleted(payload.SuggestionID)
		}
	default:
		log.Printf("trackchanges: unknown sync action %q", payload.Action)
	}
}

func (s *Service) syncCreate(ctx context.Context, payload SyncPayload) {
	if payload.Suggestion == nil {
		log.Printf("trackchanges: create sync without suggestion")
		return
	}
	s.mu.Lock()
	if _, exists := s.suggestions[payload.Suggestion.ID]; exists {
		s.mu.Unlock()
		return
	}
	suggestion := *payload.Suggestion
	s.insertLocked(&suggestion)
	copied := suggestion
	listener := s.listener
	s.persistLocked(ctx)
	s.mu.Unlock()
	listener.SuggestionAdded(copied)
}
