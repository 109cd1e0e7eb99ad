package store

import (
	"context"
	"time"

	"github.com/shieldline/siteapi/internal/db"
	"github.com/shieldline/siteapi/types"
)

const userColumns = `id, email, name, role, password_hash, is_active, failed_login_attempts,
		locked_until, last_login_at, last_login_ip, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *db.DB
}

func NewUserRepository(conn *db.DB) *UserRepository {
	return &UserRepository{db: conn}
}

func scanUser(row scanner) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.PasswordHash,
		&user.IsActive,
		&user.FailedLoginAttempts,
		&user.LockedUntil,
		&user.LastLoginAt,
		&user.LastLoginIP,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	var user types.User
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		var err error
		user, err = scanUser(r.db.QueryRowContext(ctx, query, id))
		return err
	})
	if err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	var user types.User
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		var err error
		user, err = scanUser(r.db.QueryRowContext(ctx, query, email))
		return err
	})
	if err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context, filter types.UserFilter) ([]types.User, int, error) {
	var cond conditions
	if filter.Search != "" {
		cond.add(`(email ILIKE $%[1]d OR name ILIKE $%[1]d)`, likePattern(filter.Search))
	}

	countQuery := `SELECT COUNT(1) FROM users` + cond.where()
	pageClause, args := cond.page(filter.Offset, filter.Limit)
	listQuery := `SELECT ` + userColumns + ` FROM users` + cond.where() + ` ORDER BY id` + pageClause

	var (
		total int
		users []types.User
	)
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		if err := r.db.QueryRowContext(ctx, countQuery, cond.args...).Scan(&total); err != nil {
			return err
		}
		rows, err := r.db.QueryContext(ctx, listQuery, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		users = make([]types.User, 0)
		for rows.Next() {
			user, err := scanUser(rows)
			if err != nil {
				return err
			}
			users = append(users, user)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (email, name, role, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		return r.db.QueryRowContext(
			ctx,
			query,
			user.Email,
			user.Name,
			user.Role,
			user.PasswordHash,
			user.IsActive,
			user.CreatedAt,
			user.UpdatedAt,
		).Scan(&user.ID)
	})
	if err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

// Update writes profile, role, activation, and lockout fields. The password
// hash is changed only through UpdatePassword.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET email = $1,
			name = $2,
			role = $3,
			is_active = $4,
			failed_login_attempts = $5,
			locked_until = $6,
			updated_at = $7
		WHERE id = $8`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(
			ctx,
			query,
			user.Email,
			user.Name,
			user.Role,
			user.IsActive,
			user.FailedLoginAttempts,
			user.LockedUntil,
			user.UpdatedAt,
			user.ID,
		)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
	if err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now(), id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
	return mapError(err)
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM users WHERE id = $1`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
	return mapError(err)
}

// RecordLoginFailure atomically counts a failed login. A lock that has
// already expired restarts the count at one. When the count reaches
// threshold the account is locked until lockUntil.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id, threshold int, now, lockUntil time.Time) (int, *time.Time, error) {
	const query = `
		UPDATE users
		SET failed_login_attempts = CASE
				WHEN locked_until IS NOT NULL AND locked_until <= $3 THEN 1
				ELSE failed_login_attempts + 1
			END,
			locked_until = CASE
				WHEN (CASE
						WHEN locked_until IS NOT NULL AND locked_until <= $3 THEN 1
						ELSE failed_login_attempts + 1
					END) >= $2 THEN $4
				WHEN locked_until IS NOT NULL AND locked_until <= $3 THEN NULL
				ELSE locked_until
			END,
			updated_at = $3
		WHERE id = $1
		RETURNING failed_login_attempts, locked_until`

	var (
		attempts    int
		lockedUntil *time.Time
	)
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx, query, id, threshold, now, lockUntil).Scan(&attempts, &lockedUntil)
	})
	if err != nil {
		return 0, nil, mapError(err)
	}
	return attempts, lockedUntil, nil
}

// RecordLoginSuccess clears lockout state and stamps the login.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id int, ip string, at time.Time) error {
	const query = `
		UPDATE users
		SET failed_login_attempts = 0,
			locked_until = NULL,
			last_login_at = $1,
			last_login_ip = $2,
			updated_at = $1
		WHERE id = $3`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, at, ip, id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
	return mapError(err)
}

// Count returns the number of users and how many of them are active.
func (r *UserRepository) Count(ctx context.Context) (total, active int, err error) {
	const query = `SELECT COUNT(1), COUNT(1) FILTER (WHERE is_active) FROM users`
	err = r.db.Retry(ctx, func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx, query).Scan(&total, &active)
	})
	return total, active, err
}
