package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shieldline/siteapi/internal/store"
	"github.com/shieldline/siteapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserFixture() (*UserService, *fakeUserRepo, *fakeRoleRepo) {
	users := newFakeUserRepo()
	roles := newFakeRoleRepo()
	return NewUserService(users, roles, NewPermissionService(roles)), users, roles
}

func TestUserServiceCreate(t *testing.T) {
	ctx := context.Background()
	svc, _, roles := newUserFixture()
	sales, err := roles.Create(ctx, DefaultRoles()[2])
	require.NoError(t, err)

	user, err := svc.Create(ctx, 1, CreateUserInput{
		Email:    "Sales@Example.com",
		Name:     "Sales Rep",
		Password: "Welcome123",
		RoleIDs:  []int{sales.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "sales@example.com", user.Email)
	assert.Equal(t, types.RoleViewer, user.Role)
	assert.True(t, user.IsActive)

	detail, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, detail.Roles, 1)
	assert.True(t, detail.Access.Permissions.Can(types.ResourceConsultations, types.ActionEdit))

	_, err = svc.Create(ctx, 1, CreateUserInput{
		Email:    "x@example.com",
		Name:     "Someone",
		Password: "Welcome123",
		RoleIDs:  []int{77},
	})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "role_ids")

	_, err = svc.Create(ctx, 1, CreateUserInput{
		Email:    "x@example.com",
		Name:     "Someone",
		Password: "Welcome123",
		Role:     "root",
	})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "role")
}

func TestUserServiceUpdateUnlocks(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newUserFixture()
	locked := time.Now().Add(10 * time.Minute)
	user, err := users.Create(ctx, types.User{
		Email:               "ops@example.com",
		Name:                "Ops",
		Role:                types.RoleEditor,
		IsActive:            true,
		FailedLoginAttempts: 5,
		LockedUntil:         &locked,
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, user.ID, UpdateUserInput{Unlock: true})
	require.NoError(t, err)
	assert.Zero(t, updated.FailedLoginAttempts)
	assert.Nil(t, updated.LockedUntil)

	password := "Rotated999"
	_, err = svc.Update(ctx, user.ID, UpdateUserInput{Password: &password})
	require.NoError(t, err)
	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, CheckPassword(stored.PasswordHash, password))

	weak := "weak"
	_, err = svc.Update(ctx, user.ID, UpdateUserInput{Password: &weak})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestUserServiceDelete(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newUserFixture()
	user, err := users.Create(ctx, types.User{Email: "a@example.com", Name: "A user", IsActive: true})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, user.ID, user.ID), ErrSelfDelete)
	assert.NoError(t, svc.Delete(ctx, 1000, user.ID))
	assert.ErrorIs(t, svc.Delete(ctx, 1000, user.ID), store.ErrNotFound)
}

func TestUserServiceSetRoles(t *testing.T) {
	ctx := context.Background()
	svc, users, roles := newUserFixture()
	user, err := users.Create(ctx, types.User{Email: "a@example.com", Name: "A user", IsActive: true})
	require.NoError(t, err)
	editor, err := roles.Create(ctx, DefaultRoles()[1])
	require.NoError(t, err)
	viewer, err := roles.Create(ctx, DefaultRoles()[3])
	require.NoError(t, err)

	assigned, err := svc.SetRoles(ctx, 1, user.ID, []int{editor.ID, viewer.ID, editor.ID})
	require.NoError(t, err)
	assert.Len(t, assigned, 2)

	assigned, err = svc.SetRoles(ctx, 1, user.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, assigned)

	_, err = svc.SetRoles(ctx, 1, 555, []int{editor.ID})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
