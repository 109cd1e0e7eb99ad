package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shieldline/siteapi/internal/store"
	"github.com/shieldline/siteapi/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, filter types.UserFilter) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	Delete(ctx context.Context, id int) error
	RecordLoginFailure(ctx context.Context, id, threshold int, now, lockUntil time.Time) (int, *time.Time, error)
	RecordLoginSuccess(ctx context.Context, id int, ip string, at time.Time) error
	Count(ctx context.Context) (total, active int, err error)
}

type CreateUserInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=admin editor sales viewer"`
	IsActive *bool  `json:"is_active"`
	RoleIDs  []int  `json:"role_ids" validate:"omitempty,dive,gt=0"`
}

// UpdateUserInput is a partial update. Nil fields are left unchanged.
// Unlock clears a lockout and the failed-login counter.
type UpdateUserInput struct {
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Name     *string `json:"name" validate:"omitempty,min=2,max=100"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin editor sales viewer"`
	IsActive *bool   `json:"is_active"`
	Unlock   bool    `json:"unlock"`
	Password *string `json:"password"`
}

// UserDetail is a user with its assigned roles and merged permissions.
type UserDetail struct {
	types.User
	Roles  []types.Role               `json:"roles"`
	Access types.EffectivePermissions `json:"access"`
}

// UserService encapsulates admin user management.
type UserService struct {
	repo  UserRepository
	roles RoleRepository
	perms *PermissionService
}

func NewUserService(repo UserRepository, roles RoleRepository, perms *PermissionService) *UserService {
	return &UserService{repo: repo, roles: roles, perms: perms}
}

func (s *UserService) List(ctx context.Context, filter types.UserFilter) ([]types.User, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Get returns the user with roles and effective permissions.
func (s *UserService) Get(ctx context.Context, id int) (UserDetail, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return UserDetail{}, err
	}
	roles, err := s.roles.ListForUser(ctx, id)
	if err != nil {
		return UserDetail{}, err
	}
	return UserDetail{
		User:   user,
		Roles:  roles,
		Access: s.perms.effective(user, roles),
	}, nil
}

func (s *UserService) Create(ctx context.Context, actorID int, in CreateUserInput) (types.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = plainText(in.Name)
	if err := validateStruct(in); err != nil {
		return types.User{}, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return types.User{}, err
	}
	if in.Role == "" {
		in.Role = types.RoleViewer
	}
	if err := s.checkRoles(ctx, in.RoleIDs); err != nil {
		return types.User{}, err
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		return types.User{}, err
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        in.Email,
		Name:         in.Name,
		Role:         in.Role,
		PasswordHash: hashed,
		IsActive:     active,
	})
	if err != nil {
		return types.User{}, conflictOr(err, "email already registered")
	}

	if len(in.RoleIDs) > 0 {
		if err := s.roles.SetUserRoles(ctx, user.ID, in.RoleIDs, actorRef(actorID)); err != nil {
			return types.User{}, err
		}
	}
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id int, in UpdateUserInput) (types.User, error) {
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		in.Email = &email
	}
	if in.Name != nil {
		name := plainText(*in.Name)
		in.Name = &name
	}
	if err := validateStruct(in); err != nil {
		return types.User{}, err
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Role != nil {
		user.Role = *in.Role
	}
	if in.IsActive != nil {
		if *in.IsActive && !user.IsActive {
			in.Unlock = true
		}
		user.IsActive = *in.IsActive
	}
	if in.Unlock {
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
	}

	if in.Password != nil {
		if err := ValidatePassword(*in.Password); err != nil {
			return types.User{}, err
		}
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, conflictOr(err, "email already registered")
	}

	if in.Password != nil {
		hashed, err := HashPassword(*in.Password)
		if err != nil {
			return types.User{}, err
		}
		if err := s.repo.UpdatePassword(ctx, id, hashed); err != nil {
			return types.User{}, err
		}
	}
	return updated, nil
}

// Delete removes a user. Users cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actorID, id int) error {
	if actorID == id {
		return ErrSelfDelete
	}
	return s.repo.Delete(ctx, id)
}

// SetRoles replaces the roles assigned to userID and returns them.
func (s *UserService) SetRoles(ctx context.Context, actorID, userID int, roleIDs []int) ([]types.Role, error) {
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	roleIDs = uniqueInts(roleIDs)
	if err := s.checkRoles(ctx, roleIDs); err != nil {
		return nil, err
	}
	if err := s.roles.SetUserRoles(ctx, userID, roleIDs, actorRef(actorID)); err != nil {
		return nil, err
	}
	return s.roles.ListForUser(ctx, userID)
}

func (s *UserService) checkRoles(ctx context.Context, roleIDs []int) error {
	for _, id := range roleIDs {
		if _, err := s.roles.Get(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fieldError("role_ids", fmt.Sprintf("role %d does not exist", id))
			}
			return err
		}
	}
	return nil
}

func actorRef(actorID int) *int {
	if actorID < 1 {
		return nil
	}
	return &actorID
}

func uniqueInts(values []int) []int {
	seen := make(map[int]bool, len(values))
	out := make([]int, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
