package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/shieldline/siteapi/internal/db"
	"github.com/shieldline/siteapi/types"
)

const roleColumns = `id, name, description, menu_access, permissions, is_active, created_at, updated_at`

// RoleRepository handles persistence for roles and user role assignments.
type RoleRepository struct {
	db *db.DB
}

func NewRoleRepository(conn *db.DB) *RoleRepository {
	return &RoleRepository{db: conn}
}

func scanRole(row scanner) (types.Role, error) {
	var role types.Role
	var menuJSON, permsJSON []byte
	if err := row.Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&menuJSON,
		&permsJSON,
		&role.IsActive,
		&role.CreatedAt,
		&role.UpdatedAt,
	); err != nil {
		return types.Role{}, err
	}

	_ = json.Unmarshal(menuJSON, &role.MenuAccess)
	_ = json.Unmarshal(permsJSON, &role.Permissions)
	if role.MenuAccess == nil {
		role.MenuAccess = types.MenuAccess{}
	}
	if role.Permissions == nil {
		role.Permissions = types.Permissions{}
	}
	return role, nil
}

func (r *RoleRepository) queryRoles(ctx context.Context, query string, args ...any) ([]types.Role, error) {
	var roles []types.Role
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		roles = make([]types.Role, 0)
		for rows.Next() {
			role, err := scanRole(rows)
			if err != nil {
				return err
			}
			roles = append(roles, role)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]types.Role, error) {
	return r.queryRoles(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
}

// ListForUser returns every role assigned to the user, active or not.
func (r *RoleRepository) ListForUser(ctx context.Context, userID int) ([]types.Role, error) {
	const query = `
		SELECT r.id, r.name, r.description, r.menu_access, r.permissions, r.is_active, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name`
	return r.queryRoles(ctx, query, userID)
}

func (r *RoleRepository) Get(ctx context.Context, id int) (types.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`
	var role types.Role
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		var err error
		role, err = scanRole(r.db.QueryRowContext(ctx, query, id))
		return err
	})
	if err != nil {
		return types.Role{}, mapError(err)
	}
	return role, nil
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (types.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE name = $1`
	var role types.Role
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		var err error
		role, err = scanRole(r.db.QueryRowContext(ctx, query, name))
		return err
	})
	if err != nil {
		return types.Role{}, mapError(err)
	}
	return role, nil
}

func (r *RoleRepository) Create(ctx context.Context, role types.Role) (types.Role, error) {
	now := time.Now()
	role.CreatedAt = now
	role.UpdatedAt = now

	menuJSON, err := json.Marshal(role.MenuAccess)
	if err != nil {
		return types.Role{}, err
	}
	permsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return types.Role{}, err
	}

	const query = `
		INSERT INTO roles (name, description, menu_access, permissions, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err = r.db.Retry(ctx, func(ctx context.Context) error {
		return r.db.QueryRowContext(
			ctx,
			query,
			role.Name,
			role.Description,
			menuJSON,
			permsJSON,
			role.IsActive,
			role.CreatedAt,
			role.UpdatedAt,
		).Scan(&role.ID)
	})
	if err != nil {
		return types.Role{}, mapError(err)
	}
	return role, nil
}

func (r *RoleRepository) Update(ctx context.Context, role types.Role) (types.Role, error) {
	role.UpdatedAt = time.Now()

	menuJSON, err := json.Marshal(role.MenuAccess)
	if err != nil {
		return types.Role{}, err
	}
	permsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return types.Role{}, err
	}

	const query = `
		UPDATE roles
		SET name = $1,
			description = $2,
			menu_access = $3,
			permissions = $4,
			is_active = $5,
			updated_at = $6
		WHERE id = $7`
	err = r.db.Retry(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(
			ctx,
			query,
			role.Name,
			role.Description,
			menuJSON,
			permsJSON,
			role.IsActive,
			role.UpdatedAt,
			role.ID,
		)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
	if err != nil {
		return types.Role{}, mapError(err)
	}
	return role, nil
}

func (r *RoleRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM roles WHERE id = $1`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
	return mapError(err)
}

// SetUserRoles replaces the user's role assignments with roleIDs in a single
// statement. Existing assignments that are kept retain their assigned_at.
func (r *RoleRepository) SetUserRoles(ctx context.Context, userID int, roleIDs []int, assignedBy *int) error {
	ids := make([]int64, 0, len(roleIDs))
	for _, id := range roleIDs {
		ids = append(ids, int64(id))
	}

	const query = `
		WITH removed AS (
			DELETE FROM user_roles
			WHERE user_id = $1 AND NOT (role_id = ANY($2::int[]))
		)
		INSERT INTO user_roles (user_id, role_id, assigned_by, assigned_at)
		SELECT $1::int, role_id, $3::int, NOW()
		FROM unnest($2::int[]) AS role_id
		ON CONFLICT (user_id, role_id) DO NOTHING`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, query, userID, pq.Array(ids), assignedBy)
		return err
	})
	return mapError(err)
}
