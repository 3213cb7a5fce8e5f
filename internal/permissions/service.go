// Package permissions resolves role-based, custom, and file-scoped grants
// for session collaborators.
package permissions

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"tandem/collab/internal/kv"
)

// StateKey is the kv key holding the persisted permission state.
const StateKey = "user_permissions"

// Record is one user's resolved permission sources. Effective permission is
// the union of the three: the role's fixed set, the custom grants, and the
// file-scoped grants. Changing the role never strips grants that exceed the
// new role; administrators revoke explicitly.
type Record struct {
	Role              Role                `json:"role"`
	CustomPermissions []string            `json:"customPermissions"`
	FilePermissions   map[string][]string `json:"-"`
}

// record is the internal mutable form, with file grant order retained for
// the persisted pair layout.
type record struct {
	role      Role
	custom    []string
	filePerms map[string][]string
	fileOrder []string
}

// Listener receives local-change notifications for the UI layer.
type Listener interface {
	PermissionsChanged(userID string, record Record)
}

// NopListener is a Listener that ignores everything.
type NopListener struct{}

func (NopListener) PermissionsChanged(string, Record) {}

// Service owns the per-user permission records. Users without a record
// resolve to role viewer: absence grants least privilege.
type Service struct {
	store    kv.Store
	listener Listener
	publish  func(SyncPayload)

	mu    sync.Mutex
	users map[string]*record
	order []string
}

// New creates a permissions service. store may be nil to disable
// persistence.
func New(store kv.Store) *Service {
	return &Service{
		store:    store,
		listener: NopListener{},
		users:    make(map[string]*record),
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

// SetPublisher registers the outbound sync hook.
func (s *Service) SetPublisher(publish func(SyncPayload)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish = publish
}

// AssignRole sets a user's role, preserving existing custom and file
// grants. Unknown role names are rejected with a logged no-op.
func (s *Service) AssignRole(ctx context.Context, userID string, role Role) bool {
	if !ValidRole(role) {
		log.Printf("permissions: assign unknown role %q to %s", role, userID)
		return false
	}
	s.mu.Lock()
	rec := s.ensureLocked(userID)
	rec.role = role
	copied := s.recordCopyLocked(rec)
	listener, publish := s.listener, s.publish
	s.persistLocked(ctx)
	s.mu.Unlock()
	listener.PermissionsChanged(userID, copied)
	if publish != nil {
		publish(SyncPayload{Action: ActionAssignRole, UserID: userID, Role: role})
	}
	return true
}

// GetRole returns the user's role, viewer if the user has no record.
func (s *Service) GetRole(userID string) Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.users[userID]; ok {
		return rec.role
	}
	return RoleViewer
}

// GetRecord returns a copy of the user's record and whether one exists.
func (s *Service) GetRecord(userID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return Record{Role: RoleViewer}, false
	}
	return s.recordCopyLocked(rec), true
}

// HasPermission reports whether any grant source gives the user the
// permission. With a file path, file-scoped grants for that path are
// consulted; without one, a grant on any path suffices.
func (s *Service) HasPermission(userID, permission, filePath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasPermissionLocked(userID, permission, filePath)
}

func (s *Service) hasPermissionLocked(userID, permission, filePath string) bool {
	rec, ok := s.users[userID]
	if !ok {
		return roleGrants(RoleViewer, permission)
	}
	if roleGrants(rec.role, permission) {
		return true
	}
	for _, p := range rec.custom {
		if p == permission {
			return true
		}
	}
	if filePath != "" {
		return contains(rec.filePerms[filePath], permission)
	}
	for _, perms := range rec.filePerms {
		if contains(perms, permission) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every permission is granted.
func (s *Service) HasAllPermissions(userID string, perms []string, filePath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range perms {
		if !s.hasPermissionLocked(userID, p, filePath) {
			return false
		}
	}
	return true
}

// HasAnyPermission reports whether at least one permission is granted.
func (s *Service) HasAnyPermission(userID string, perms []string, filePath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range perms {
		if s.hasPermissionLocked(userID, p, filePath) {
			return true
		}
	}
	return false
}

// CanPerformAction resolves a named action through the dispatch table.
// Unknown actions deny.
func (s *Service) CanPerformAction(userID, action, filePath string) bool {
	checks, ok := actionChecks[action]
	if !ok {
		log.Printf("permissions: unknown action %q denied for %s", action, userID)
		return false
	}
	return s.HasAnyPermission(userID, checks, filePath)
}

// GrantCustomPermission adds a custom grant. Granting an already-held
// permission is a no-op.
func (s *Service) GrantCustomPermission(ctx context.Context, userID, permission string) bool {
	s.mu.Lock()
	rec := s.ensureLocked(userID)
	if contains(rec.custom, permission) {
		s.mu.Unlock()
		return true
	}
	rec.custom = append(rec.custom, permission)
	copied := s.recordCopyLocked(rec)
	listener, publish := s.listener, s.publish
	s.persistLocked(ctx)
	s.mu.Unlock()
	listener.PermissionsChanged(userID, copied)
	if publish != nil {
		publish(SyncPayload{Action: ActionGrantPermission, UserID: userID, Permission: permission})
	}
	return true
}

// RevokeCustomPermission removes a custom grant. Revoking a grant the user
// does not hold is a logged no-op.
func (s *Service) RevokeCustomPermission(ctx context.Context, userID, permission string) bool {
	s.mu.Lock()
	rec, ok := s.users[userID]
	if !ok || !contains(rec.custom, permission) {
		s.mu.Unlock()
		log.Printf("permissions: revoke %q not held by %s", permission, userID)
		return false
	}
	rec.custom = removeString(rec.custom, permission)
	copied := s.recordCopyLocked(rec)
	listener, publish := s.listener, s.publish
	s.persistLocked(ctx)
	s.mu.Unlock()
	listener.PermissionsChanged(userID, copied)
	if publish != nil {
		publish(SyncPayload{Action: ActionRevokePermission, UserID: userID, Permission: permission})
	}
	return true
}

// GrantFilePermission adds a file-scoped grant. Idempotent per path.
func (s *Service) GrantFilePermission(ctx context.Context, userID, filePath, permission string) bool {
	s.mu.Lock()
	rec := s.ensureLocked(userID)
	if contains(rec.filePerms[filePath], permission) {
		s.mu.Unlock()
		return true
	}
	if _, seen := rec.filePerms[filePath]; !seen {
		rec.fileOrder = append(rec.fileOrder, filePath)
	}
	rec.filePerms[filePath] = append(rec.filePerms[filePath], permission)
	copied := s.recordCopyLocked(rec)
	listener, publish := s.listener, s.publish
	s.persistLocked(ctx)
	s.mu.Unlock()
	listener.PermissionsChanged(userID, copied)
	if publish != nil {
		publish(SyncPayload{Action: ActionGrantPermission, UserID: userID, Permission: permission, FilePath: filePath})
	}
	return true
}

// RevokeFilePermission removes a file-scoped grant.
func (s *Service) RevokeFilePermission(ctx context.Context, userID, filePath, permission string) bool {
	s.mu.Lock()
	rec, ok := s.users[userID]
	if !ok || !contains(rec.filePerms[filePath], permission) {
		s.mu.Unlock()
		log.Printf("permissions: revoke %q on %s not held by %s", permission, filePath, userID)
		return false
	}
	rec.filePerms[filePath] = removeString(rec.filePerms[filePath], permission)
	if len(rec.filePerms[filePath]) == 0 {
		delete(rec.filePerms, filePath)
		rec.fileOrder = removeString(rec.fileOrder, filePath)
	}
	copied := s.recordCopyLocked(rec)
	listener, publish := s.listener, s.publish
	s.persistLocked(ctx)
	s.mu.Unlock()
	listener.PermissionsChanged(userID, copied)
	if publish != nil {
		publish(SyncPayload{Action: ActionRevokePermission, UserID: userID, Permission: permission, FilePath: filePath})
	}
	return true
}

func (s *Service) ensureLocked(userID string) *record {
	rec, ok := s.users[userID]
	if !ok {
		rec = &record{role: RoleViewer, filePerms: make(map[string][]string)}
		s.users[userID] = rec
		s.order = append(s.order, userID)
	}
	return rec
}

func (s *Service) recordCopyLocked(rec *record) Record {
	out := Record{
		Role:              rec.role,
		CustomPermissions: append([]string(nil), rec.custom...),
		FilePermissions:   make(map[string][]string, len(rec.filePerms)),
	}
	for path, perms := range rec.filePerms {
		out.FilePermissions[path] = append([]string(nil), perms...)
	}
	return out
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func removeString(list []string, value string) []string {
	for i, v := range list {
		if v == value {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// persistedRecord mirrors the durable layout for one user.
type persistedRecord struct {
	Role              Role                `json:"role"`
	CustomPermissions []string            `json:"customPermissions"`
	FilePermissions   []kv.Pair[[]string] `json:"filePermissions"`
}

type persistedState struct {
	UserPermissions []kv.Pair[persistedRecord] `json:"userPermissions"`
}

func (s *Service) persistLocked(ctx context.Context) {
	if s.store == nil {
		return
	}
	state := persistedState{UserPermissions: make([]kv.Pair[persistedRecord], 0, len(s.order))}
	for _, userID := range s.order {
		rec, ok := s.users[userID]
		if !ok {
			continue
		}
		persisted := persistedRecord{
			Role:              rec.role,
			CustomPermissions: append([]string{}, rec.custom...),
			FilePermissions:   kv.Pairs(rec.filePerms, rec.fileOrder),
		}
		state.UserPermissions = append(state.UserPermissions, kv.Pair[persistedRecord]{Key: userID, Value: persisted})
	}
	data, err := json.Marshal(state)
	if err != nil {
		log.Printf("permissions: marshal state: %v", err)
		return
	}
	if err := s.store.Put(ctx, StateKey, data); err != nil {
		log.Printf("permissions: persist state: %v", err)
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
	s.users = make(map[string]*record, len(state.UserPermissions))
	s.order = s.order[:0]
	for _, pair := range state.UserPermissions {
		rec := &record{
			role:      pair.Value.Role,
			custom:    append([]string(nil), pair.Value.CustomPermissions...),
			filePerms: make(map[string][]string, len(pair.Value.FilePermissions)),
		}
		if !ValidRole(rec.role) {
			rec.role = RoleViewer
		}
		for _, filePair := range pair.Value.FilePermissions {
			rec.filePerms[filePair.Key] = append([]string(nil), filePair.Value...)
			rec.fileOrder = append(rec.fileOrder, filePair.Key)
		}
		s.users[pair.Key] = rec
		s.order = append(s.order, pair.Key)
	}
	return nil
}
