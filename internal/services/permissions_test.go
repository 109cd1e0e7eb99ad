package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shieldline/siteapi/internal/store"
	"github.com/shieldline/siteapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergePermissionsOrsActiveRoles(t *testing.T) {
	roles := []types.Role{
		{
			Name:     "writer",
			IsActive: true,
			Permissions: types.Permissions{
				types.ResourceBlog: {View: true, Create: true},
			},
			MenuAccess: types.MenuAccess{"blog": true},
		},
		{
			Name:     "publisher",
			IsActive: true,
			Permissions: types.Permissions{
				types.ResourceBlog:    {Edit: true},
				types.ResourceUploads: {Create: true},
				"bogus":               {View: true},
			},
			MenuAccess: types.MenuAccess{"uploads": true, "blog": false},
		},
		{
			Name:     "disabled",
			IsActive: false,
			Permissions: types.Permissions{
				types.ResourceUsers: {View: true, Delete: true},
			},
			MenuAccess: types.MenuAccess{"users": true},
		},
	}

	perms := MergePermissions(roles)
	assert.Len(t, perms, len(types.AllResources))
	assert.Equal(t, types.ActionSet{View: true, Create: true, Edit: true}, perms[types.ResourceBlog])
	assert.True(t, perms.Can(types.ResourceUploads, types.ActionCreate))
	assert.False(t, perms.Can(types.ResourceUsers, types.ActionView))
	assert.NotContains(t, perms, types.Resource("bogus"))

	menu := MergeMenuAccess(roles)
	assert.True(t, menu["blog"])
	assert.True(t, menu["uploads"])
	assert.False(t, menu["users"])
}

func TestMergePermissionsEmpty(t *testing.T) {
	perms := MergePermissions(nil)
	for _, resource := range types.AllResources {
		assert.False(t, perms[resource].Any(), resource)
	}
}

func TestPermissionServiceForUser(t *testing.T) {
	ctx := context.Background()
	roles := newFakeRoleRepo()
	editor, err := roles.Create(ctx, DefaultRoles()[1])
	require.NoError(t, err)
	require.NoError(t, roles.SetUserRoles(ctx, 7, []int{editor.ID}, nil))

	svc := NewPermissionService(roles)

	eff, err := svc.ForUser(ctx, types.User{ID: 7, Role: types.RoleViewer})
	require.NoError(t, err)
	assert.False(t, eff.SuperAdmin)
	assert.True(t, eff.Permissions.Can(types.ResourceBlog, types.ActionDelete))
	assert.False(t, eff.Permissions.Can(types.ResourceUsers, types.ActionView))
	assert.True(t, eff.MenuAccess["blog"])

	ok, err := svc.Can(ctx, types.User{ID: 7}, types.ResourceContacts, types.ActionView)
	require.NoError(t, err)
	assert.False(t, ok)

	admin := types.User{ID: 99, Role: types.RoleAdmin}
	eff, err = svc.ForUser(ctx, admin)
	require.NoError(t, err)
	assert.True(t, eff.SuperAdmin)
	assert.True(t, eff.MenuAccess["roles"])
	ok, err = svc.Can(ctx, admin, types.ResourceRoles, types.ActionDelete)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRoleServiceCreateAndConflict(t *testing.T) {
	ctx := context.Background()
	svc := NewRoleService(newFakeRoleRepo())

	_, err := svc.Create(ctx, RoleInput{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "name")

	name := "Support"
	role, err := svc.Create(ctx, RoleInput{
		Name:        &name,
		Permissions: types.Permissions{types.ResourceContacts: {View: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, "support", role.Name)
	assert.True(t, role.IsActive)

	_, err = svc.Create(ctx, RoleInput{Name: &name})
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "role name already exists", conflict.Message)

	other := "other"
	_, err = svc.Create(ctx, RoleInput{
		Name:        &other,
		Permissions: types.Permissions{"payroll": {View: true}},
	})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "permissions")
}

func TestRoleServiceUpdate(t *testing.T) {
	ctx := context.Background()
	svc := NewRoleService(newFakeRoleRepo())
	name := "support"
	role, err := svc.Create(ctx, RoleInput{Name: &name})
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(ctx, role.ID, RoleInput{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "support", updated.Name)

	_, err = svc.Update(ctx, 404, RoleInput{IsActive: &inactive})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEnsureDefaultsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRoleRepo()
	svc := NewRoleService(repo)

	created, err := svc.EnsureDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultRoles()), created)

	created, err = svc.EnsureDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, created)

	roles, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, len(DefaultRoles()))
}
