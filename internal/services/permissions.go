package services

import (
	"context"

	"github.com/shieldline/siteapi/types"
)

// MergePermissions ORs the permission matrices of the active roles. The
// result has an entry for every known resource.
func MergePermissions(roles []types.Role) types.Permissions {
	merged := make(types.Permissions, len(types.AllResources))
	for _, resource := range types.AllResources {
		merged[resource] = types.ActionSet{}
	}
	for _, role := range roles {
		if !role.IsActive {
			continue
		}
		for resource, actions := range role.Permissions {
			if !resource.Valid() {
				continue
			}
			merged[resource] = merged[resource].Or(actions)
		}
	}
	return merged
}

// MergeMenuAccess ORs the menu entries of the active roles.
func MergeMenuAccess(roles []types.Role) types.MenuAccess {
	merged := make(types.MenuAccess)
	for _, role := range roles {
		if !role.IsActive {
			continue
		}
		for item, visible := range role.MenuAccess {
			merged[item] = merged[item] || visible
		}
	}
	return merged
}

// RoleLister loads the roles assigned to a user.
type RoleLister interface {
	ListForUser(ctx context.Context, userID int) ([]types.Role, error)
}

// PermissionService resolves what a user may do.
type PermissionService struct {
	roles RoleLister
}

func NewPermissionService(roles RoleLister) *PermissionService {
	return &PermissionService{roles: roles}
}

// ForUser returns the user's effective permissions. Users with the legacy
// admin role get full access without consulting role assignments.
func (s *PermissionService) ForUser(ctx context.Context, user types.User) (types.EffectivePermissions, error) {
	if user.IsSuperAdmin() {
		return s.effective(user, nil), nil
	}
	roles, err := s.roles.ListForUser(ctx, user.ID)
	if err != nil {
		return types.EffectivePermissions{}, err
	}
	return s.effective(user, roles), nil
}

// Can reports whether user may perform action on resource.
func (s *PermissionService) Can(ctx context.Context, user types.User, resource types.Resource, action types.Action) (bool, error) {
	if user.IsSuperAdmin() {
		return true, nil
	}
	eff, err := s.ForUser(ctx, user)
	if err != nil {
		return false, err
	}
	return eff.Permissions.Can(resource, action), nil
}

func (s *PermissionService) effective(user types.User, roles []types.Role) types.EffectivePermissions {
	if user.IsSuperAdmin() {
		menu := make(types.MenuAccess, len(types.AllResources))
		for _, resource := range types.AllResources {
			menu[string(resource)] = true
		}
		return types.EffectivePermissions{
			Permissions: types.FullAccess(),
			MenuAccess:  menu,
			SuperAdmin:  true,
		}
	}
	return types.EffectivePermissions{
		Permissions: MergePermissions(roles),
		MenuAccess:  MergeMenuAccess(roles),
	}
}

// DefaultRoles is the role catalog created by the seed command.
func DefaultRoles() []types.Role {
	view := types.ActionSet{View: true}
	all := types.ActionSet{View: true, Create: true, Edit: true, Delete: true}
	manage := types.ActionSet{View: true, Edit: true, Delete: true}

	menu := func(resources ...types.Resource) types.MenuAccess {
		m := make(types.MenuAccess, len(resources))
		for _, r := range resources {
			m[string(r)] = true
		}
		return m
	}

	return []types.Role{
		{
			Name:        types.RoleAdmin,
			Description: "Full access to every admin area",
			Permissions: types.FullAccess(),
			MenuAccess:  menu(types.AllResources...),
			IsActive:    true,
		},
		{
			Name:        types.RoleEditor,
			Description: "Writes and publishes blog content",
			Permissions: types.Permissions{
				types.ResourceDashboard: view,
				types.ResourceBlog:      all,
				types.ResourceUploads:   all,
			},
			MenuAccess: menu(types.ResourceDashboard, types.ResourceBlog, types.ResourceUploads),
			IsActive:   true,
		},
		{
			Name:        types.RoleSales,
			Description: "Handles consultation requests and contact messages",
			Permissions: types.Permissions{
				types.ResourceDashboard:     view,
				types.ResourceConsultations: manage,
				types.ResourceContacts:      manage,
			},
			MenuAccess: menu(types.ResourceDashboard, types.ResourceConsultations, types.ResourceContacts),
			IsActive:   true,
		},
		{
			Name:        types.RoleViewer,
			Description: "Read-only dashboard access",
			Permissions: types.Permissions{
				types.ResourceDashboard: view,
			},
			MenuAccess: menu(types.ResourceDashboard),
			IsActive:   true,
		},
	}
}
