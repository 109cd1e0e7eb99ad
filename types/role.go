package types

import "time"

// Resource names a protected area of the admin panel.
type Resource string

// Action names an operation on a Resource.
type Action string

const (
	ResourceDashboard     Resource = "dashboard"
	ResourceBlog          Resource = "blog"
	ResourceConsultations Resource = "consultations"
	ResourceContacts      Resource = "contacts"
	ResourceUsers         Resource = "users"
	ResourceRoles         Resource = "roles"
	ResourceActivity      Resource = "activity"
	ResourceUploads       Resource = "uploads"
)

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// AllResources lists every resource in menu order.
var AllResources = []Resource{
	ResourceDashboard,
	ResourceBlog,
	ResourceConsultations,
	ResourceContacts,
	ResourceUsers,
	ResourceRoles,
	ResourceActivity,
	ResourceUploads,
}

// Valid reports whether r is a known resource.
func (r Resource) Valid() bool {
	for _, known := range AllResources {
		if r == known {
			return true
		}
	}
	return false
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionCreate, ActionEdit, ActionDelete:
		return true
	}
	return false
}

// ActionSet is the per-resource permission row of a role.
type ActionSet struct {
	View   bool `json:"view"`
	Create bool `json:"create"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

// Allows reports whether the set grants action.
func (s ActionSet) Allows(action Action) bool {
	switch action {
	case ActionView:
		return s.View
	case ActionCreate:
		return s.Create
	case ActionEdit:
		return s.Edit
	case ActionDelete:
		return s.Delete
	}
	return false
}

// Or returns the union of s and other.
func (s ActionSet) Or(other ActionSet) ActionSet {
	return ActionSet{
		View:   s.View || other.View,
		Create: s.Create || other.Create,
		Edit:   s.Edit || other.Edit,
		Delete: s.Delete || other.Delete,
	}
}

// Any reports whether at least one action is granted.
func (s ActionSet) Any() bool {
	return s.View || s.Create || s.Edit || s.Delete
}

// Permissions is a role's permission matrix keyed by resource.
// It is stored as a JSON object in roles.permissions.
type Permissions map[Resource]ActionSet

// Can reports whether the matrix grants action on resource.
func (p Permissions) Can(resource Resource, action Action) bool {
	return p[resource].Allows(action)
}

// FullAccess returns a matrix granting every action on every resource.
func FullAccess() Permissions {
	all := ActionSet{View: true, Create: true, Edit: true, Delete: true}
	perms := make(Permissions, len(AllResources))
	for _, r := range AllResources {
		perms[r] = all
	}
	return perms
}

// MenuAccess lists which admin menu entries a role may see.
type MenuAccess map[string]bool

// Role is a named permission bundle assigned to users through user_roles.
type Role struct {
	// ID is the unique identifier of the role.
	ID int `json:"id" db:"id"`

	// Name is the unique, human-readable role name.
	Name string `json:"name" db:"name"`

	// Description explains what the role is for.
	Description string `json:"description" db:"description"`

	// MenuAccess controls which admin menu entries are shown.
	MenuAccess MenuAccess `json:"menu_access" db:"menu_access"`

	// Permissions is the resource/action matrix granted by this role.
	Permissions Permissions `json:"permissions" db:"permissions"`

	// IsActive disables the role without removing its assignments.
	// Inactive roles grant nothing.
	IsActive bool `json:"is_active" db:"is_active"`

	// CreatedAt is the timestamp when the role was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the role.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EffectivePermissions is the merged view of a user's access.
type EffectivePermissions struct {
	Permissions Permissions `json:"permissions"`
	MenuAccess  MenuAccess  `json:"menu_access"`
	SuperAdmin  bool        `json:"super_admin"`
}
