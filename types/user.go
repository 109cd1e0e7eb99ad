package types

import "time"

// Legacy role names stored on the user record. The "admin" role bypasses
// role-based permission checks entirely.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleSales  = "sales"
	RoleViewer = "viewer"
)

// User represents an account that can sign in to the admin panel.
// It contains identity, lockout state, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the login identifier. Stored lower-cased and unique.
	Email string `json:"email" db:"email"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Role is the legacy single-role field (e.g., "admin", "editor").
	// Fine-grained access comes from the roles assigned through user_roles.
	Role string `json:"role" db:"role"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsActive reports whether the account may sign in.
	IsActive bool `json:"is_active" db:"is_active"`

	// FailedLoginAttempts counts consecutive failed logins since the last
	// success or lockout.
	FailedLoginAttempts int `json:"failed_login_attempts" db:"failed_login_attempts"`

	// LockedUntil is set while the account is locked out.
	LockedUntil *time.Time `json:"locked_until,omitempty" db:"locked_until"`

	// LastLoginAt is the timestamp of the most recent successful login.
	LastLoginAt *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`

	// LastLoginIP is the client address of the most recent successful login.
	LastLoginIP string `json:"last_login_ip,omitempty" db:"last_login_ip"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsSuperAdmin reports whether the user holds the legacy admin role.
func (u User) IsSuperAdmin() bool {
	return u.Role == RoleAdmin
}

// LockRemaining returns how long the account stays locked at now,
// or zero when it is not locked.
func (u User) LockRemaining(now time.Time) time.Duration {
	if u.LockedUntil == nil || !now.Before(*u.LockedUntil) {
		return 0
	}
	return u.LockedUntil.Sub(now)
}

// ValidLegacyRole reports whether role is one of the known legacy roles.
func ValidLegacyRole(role string) bool {
	switch role {
	case RoleAdmin, RoleEditor, RoleSales, RoleViewer:
		return true
	}
	return false
}

// Session records a JWT issued at login. Authentication itself is stateless;
// the row exists for auditing and explicit logout.
type Session struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	Device    string    `json:"device" db:"device"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
