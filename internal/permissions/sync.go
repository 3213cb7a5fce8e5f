package permissions

import (
	"context"
	"log"
)

// Sync payload actions.
const (
	ActionAssignRole       = "assign_role"
	ActionGrantPermission  = "grant_permission"
	ActionRevokePermission = "revoke_permission"
)

// SyncPayload is the wire form of one permission mutation. FilePath is
// empty for custom grants and set for file-scoped ones.
type SyncPayload struct {
	Action     string `json:"action"`
	UserID     string `json:"userId"`
	Role       Role   `json:"role,omitempty"`
	Permission string `json:"permission,omitempty"`
	FilePath   string `json:"filePath,omitempty"`
}

// SyncPermissionChange applies a remote mutation. Grants are idempotent by
// membership check; revokes of absent grants degrade to a logged no-op.
// Remote application never republishes.
func (s *Service) SyncPermissionChange(ctx context.Context, payload SyncPayload) {
	switch payload.Action {
	case ActionAssignRole:
		s.syncAssignRole(ctx, payload)
	case ActionGrantPermission:
		s.syncGrant(ctx, payload)
	case ActionRevokePermission:
		s.syncRevoke(ctx, payload)
	default:
		log.Printf("permissions: unknown sync action %q", payload.Action)
	}
}

func (s *Service) syncAssignRole(ctx context.Context, payload SyncPayload) {
	if !ValidRole(payload.Role) {
		log.Printf("permissions: sync assign unknown role %q to %s", payload.Role, payload.UserID)
		return
	}
	s.mu.Lock()
	rec := s.ensureLocked(payload.UserID)
	rec.role = payload.Role
	copied := s.recordCopyLocked(rec)
	listener := s.listener
	s.persistLocked(ctx)
	s.mu.Unlock()
	listener.PermissionsChanged(payload.UserID, copied)
}

func (s *Service) syncGrant(ctx context.Context, payload SyncPayload) {
	s.mu.Lock()
	rec := s.ensureLocked(payload.UserID)
	if payload.FilePath != "" {
		if contains(rec.filePerms[payload.FilePath], payload.Permission) {
			s.mu.Unlock()
			return
		}
		if _, seen := rec.filePerms[payload.FilePath]; !seen {
			rec.fileOrder = append(rec.fileOrder, payload.FilePath)
		}
		rec.filePerms[payload.FilePath] = append(rec.filePerms[payload.FilePath], payload.Permission)
	} else {
		if contains(rec.custom, payload.Permission) {
			s.mu.Unlock()
			return
		}
		rec.custom = append(rec.custom, payload.Permission)
	}
	copied := s.recordCopyLocked(rec)
	listener := s.listener
	s.persistLocked(ctx)
	s.mu.Unlock()
	listener.PermissionsChanged(payload.UserID, copied)
}

func (s *Service) syncRevoke(ctx context.Context, payload SyncPayload) {
	s.mu.Lock()
	rec, ok := s.users[payload.UserID]
	if !ok {
		s.mu.Unlock()
		log.Printf("permissions: sync revoke for unknown user %s", payload.UserID)
		return
	}
	if payload.FilePath != "" {
		if !contains(rec.filePerms[payload.FilePath], payload.Permission) {
			s.mu.Unlock()
			return
		}
		rec.filePerms[payload.FilePath] = removeString(rec.filePerms[payload.FilePath], payload.Permission)
		if len(rec.filePerms[payload.FilePath]) == 0 {
			delete(rec.filePerms, payload.FilePath)
			rec.fileOrder = removeString(rec.fileOrder, payload.FilePath)
		}
	} else {
		if !contains(rec.custom, payload.Permission) {
			s.mu.Unlock()
			return
		}
		rec.custom = removeString(rec.custom, payload.Permission)
	}
	copied := s.recordCopyLocked(rec)
	listener := s.listener
	s.persistLocked(ctx)
	s.mu.Unlock()
	listener.PermissionsChanged(payload.UserID, copied)
}
