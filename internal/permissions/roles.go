package permissions

// Role is a collaborator's base role in the session.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleEditor    Role = "editor"
	RoleCommenter Role = "commenter"
	RoleViewer    Role = "viewer"
)

// Named permissions. Custom and file-scoped grants use the same names.
const (
	PermView              = "view"
	PermEdit              = "edit"
	PermComment           = "comment"
	PermSuggest           = "suggest"
	PermResolveComments   = "resolve_comments"
	PermAcceptSuggestions = "accept_suggestions"
	PermCreateFiles       = "create_files"
	PermDeleteFiles       = "delete_files"
	PermRestoreVersions   = "restore_versions"
	PermManageUsers       = "manage_users"
	PermManagePermissions = "manage_permissions"
	PermExport            = "export"
)

// rolePermissions is each role's fixed permission set.
var rolePermissions = map[Role][]string{
	RoleOwner: {
		PermView, PermEdit, PermComment, PermSuggest, PermResolveComments,
		PermAcceptSuggestions, PermCreateFiles, PermDeleteFiles,
		PermRestoreVersions, PermManageUsers, PermManagePermissions, PermExport,
	},
	RoleEditor: {
		PermView, PermEdit, PermComment, PermSuggest, PermResolveComments,
		PermAcceptSuggestions, PermCreateFiles, PermDeleteFiles,
		PermRestoreVersions, PermExport,
	},
	RoleCommenter: {
		PermView, PermComment, PermSuggest,
	},
	RoleViewer: {
		PermView,
	},
}

// ValidRole reports whether name is a known role.
func ValidRole(name Role) bool {
	_, ok := rolePermissions[name]
	return ok
}

// roleGrants reports whether the role's fixed set contains the permission.
func roleGrants(role Role, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// actionChecks maps named user actions to the permissions that allow them.
// Holding any one listed permission allows the action; actions missing from
// the table are always denied.
var actionChecks = map[string][]string{
	"view_file":         {PermView},
	"edit_file":         {PermEdit},
	"create_file":       {PermCreateFiles},
	"delete_file":       {PermDeleteFiles},
	"add_comment":       {PermComment},
	"resolve_comment":   {PermResolveComments},
	"create_suggestion": {PermSuggest},
	"accept_suggestion": {PermAcceptSuggestions},
	"reject_suggestion": {PermAcceptSuggestions},
	"create_snapshot":   {PermEdit},
	"restore_snapshot":  {PermRestoreVersions},
	"change_user_role":  {PermManageUsers},
	"grant_permission":  {PermManagePermissions},
	"export_project":    {PermExport},
}
