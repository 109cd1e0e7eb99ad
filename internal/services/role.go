package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shieldline/siteapi/internal/store"
	"github.com/shieldline/siteapi/types"
)

// RoleRepository defines persistence operations for roles and assignments.
type RoleRepository interface {
	List(ctx context.Context) ([]types.Role, error)
	ListForUser(ctx context.Context, userID int) ([]types.Role, error)
	Get(ctx context.Context, id int) (types.Role, error)
	GetByName(ctx context.Context, name string) (types.Role, error)
	Create(ctx context.Context, role types.Role) (types.Role, error)
	Update(ctx context.Context, role types.Role) (types.Role, error)
	Delete(ctx context.Context, id int) error
	SetUserRoles(ctx context.Context, userID int, roleIDs []int, assignedBy *int) error
}

// RoleInput creates or partially updates a role.
type RoleInput struct {
	Name        *string           `json:"name" validate:"omitempty,min=2,max=64"`
	Description *string           `json:"description" validate:"omitempty,max=500"`
	MenuAccess  types.MenuAccess  `json:"menu_access"`
	Permissions types.Permissions `json:"permissions"`
	IsActive    *bool             `json:"is_active"`
}

// RoleService encapsulates role management.
type RoleService struct {
	repo RoleRepository
}

func NewRoleService(repo RoleRepository) *RoleService {
	return &RoleService{repo: repo}
}

func (s *RoleService) List(ctx context.Context) ([]types.Role, error) {
	return s.repo.List(ctx)
}

func (s *RoleService) Get(ctx context.Context, id int) (types.Role, error) {
	return s.repo.Get(ctx, id)
}

func (s *RoleService) Create(ctx context.Context, in RoleInput) (types.Role, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return types.Role{}, fieldError("name", "is required")
	}
	role := types.Role{
		Permissions: types.Permissions{},
		MenuAccess:  types.MenuAccess{},
		IsActive:    true,
	}
	if err := applyRoleInput(&role, in); err != nil {
		return types.Role{}, err
	}

	created, err := s.repo.Create(ctx, role)
	if err != nil {
		return types.Role{}, conflictOr(err, "role name already exists")
	}
	return created, nil
}

func (s *RoleService) Update(ctx context.Context, id int, in RoleInput) (types.Role, error) {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Role{}, err
	}
	if err := applyRoleInput(&role, in); err != nil {
		return types.Role{}, err
	}

	updated, err := s.repo.Update(ctx, role)
	if err != nil {
		return types.Role{}, conflictOr(err, "role name already exists")
	}
	return updated, nil
}

func (s *RoleService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

// EnsureDefaults creates any role of DefaultRoles that does not exist yet
// and returns how many were created.
func (s *RoleService) EnsureDefaults(ctx context.Context) (int, error) {
	created := 0
	for _, role := range DefaultRoles() {
		if _, err := s.repo.Create(ctx, role); err != nil {
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			return created, fmt.Errorf("create role %s: %w", role.Name, err)
		}
		created++
	}
	return created, nil
}

func applyRoleInput(role *types.Role, in RoleInput) error {
	if in.Name != nil {
		name := strings.ToLower(plainText(*in.Name))
		in.Name = &name
	}
	if in.Description != nil {
		desc := plainText(*in.Description)
		in.Description = &desc
	}
	if err := validateStruct(in); err != nil {
		return err
	}

	verr := &ValidationError{}
	for resource := range in.Permissions {
		if !resource.Valid() {
			verr.Add("permissions", fmt.Sprintf("unknown resource %q", resource))
		}
	}
	if err := verr.Err(); err != nil {
		return err
	}

	if in.Name != nil {
		role.Name = *in.Name
	}
	if in.Description != nil {
		role.Description = *in.Description
	}
	if in.Permissions != nil {
		role.Permissions = in.Permissions
	}
	if in.MenuAccess != nil {
		role.MenuAccess = in.MenuAccess
	}
	if in.IsActive != nil {
		role.IsActive = *in.IsActive
	}
	return nil
}
