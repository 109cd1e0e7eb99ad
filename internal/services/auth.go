package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mileusna/useragent"
	"github.com/shieldline/siteapi/config"
	"github.com/shieldline/siteapi/internal/store"
	"github.com/shieldline/siteapi/types"
)

// SessionRepository defines persistence operations for login sessions.
type SessionRepository interface {
	Create(ctx context.Context, session types.Session) (types.Session, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ClientInfo identifies the caller of a request.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// LoginResult is returned by a successful Authenticate.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      types.User
}

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Password string `json:"password" validate:"required"`
}

type ProfileInput struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Name  string `json:"name" validate:"required,min=2,max=100"`
}

// AuthService handles login, lockout and self-service account changes.
type AuthService struct {
	users     UserRepository
	sessions  SessionRepository
	tokens    *TokenIssuer
	activity  *ActivityService
	logger    *slog.Logger
	maxFailed int
	lockout   time.Duration
	now       func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	users UserRepository,
	sessions SessionRepository,
	tokens *TokenIssuer,
	activity *ActivityService,
	cfg config.AuthConfig,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	maxFailed := cfg.MaxFailedLogins
	if maxFailed < 1 {
		maxFailed = 5
	}
	lockout := cfg.LockoutDuration
	if lockout <= 0 {
		lockout = 15 * time.Minute
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		activity:  activity,
		logger:    logger,
		maxFailed: maxFailed,
		lockout:   lockout,
		now:       time.Now,
	}
}

// Tokens exposes the issuer used for cookies and bearer tokens.
func (s *AuthService) Tokens() *TokenIssuer {
	return s.tokens
}

// Authenticate checks email and password. On failure it returns
// ErrInvalidCredentials, ErrAccountDisabled or a *LockedError. The failure
// that reaches the lockout threshold locks the account and already returns
// a *LockedError.
func (s *AuthService) Authenticate(ctx context.Context, email, password string, client ClientInfo) (LoginResult, error) {
	email = normalizeEmail(email)
	now := s.now()

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Compare anyway so unknown emails take as long as wrong passwords.
			CheckPassword(s.dummyPasswordHash(), password)
			s.logger.Warn("login failed", "reason", "unknown email", "ip", client.IP)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if !user.IsActive {
		s.logger.Warn("login failed", "reason", "account disabled", "user_id", user.ID, "ip", client.IP)
		return LoginResult{}, ErrAccountDisabled
	}

	if remaining := user.LockRemaining(now); remaining > 0 {
		s.logger.Warn("login rejected", "reason", "account locked", "user_id", user.ID, "ip", client.IP)
		return LoginResult{}, &LockedError{Remaining: remaining}
	}

	if !CheckPassword(user.PasswordHash, password) {
		attempts, lockedUntil, err := s.users.RecordLoginFailure(ctx, user.ID, s.maxFailed, now, now.Add(s.lockout))
		if err != nil {
			return LoginResult{}, err
		}
		if lockedUntil != nil && lockedUntil.After(now) {
			s.logger.Warn("account locked", "user_id", user.ID, "attempts", attempts, "ip", client.IP, "locked_until", *lockedUntil)
			return LoginResult{}, &LockedError{Remaining: lockedUntil.Sub(now)}
		}
		s.logger.Warn("login failed", "reason", "wrong password", "user_id", user.ID, "attempts", attempts, "ip", client.IP)
		return LoginResult{}, ErrInvalidCredentials
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID, client.IP, now); err != nil {
		return LoginResult{}, err
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	user.LastLoginIP = client.IP

	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return LoginResult{}, err
	}

	if _, err := s.sessions.Create(ctx, types.Session{
		UserID:    user.ID,
		TokenHash: HashToken(token),
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		Device:    DeviceLabel(client.UserAgent),
		ExpiresAt: expires,
		CreatedAt: now,
	}); err != nil {
		s.logger.Error("record session", "user_id", user.ID, "error", err)
	}

	s.activity.Log(ctx, NewActivityEntry(user.ID, client, ActionLogin, "user", user.ID, "signed in"))
	return LoginResult{Token: token, ExpiresAt: expires, User: user}, nil
}

// Register creates a self-service account. New accounts get the viewer
// legacy role and no role assignments.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, client ClientInfo) (types.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = plainText(in.Name)
	if err := validateStruct(in); err != nil {
		return types.User{}, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return types.User{}, err
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.users.Create(ctx, types.User{
		Email:        in.Email,
		Name:         in.Name,
		Role:         types.RoleViewer,
		PasswordHash: hashed,
		IsActive:     true,
	})
	if err != nil {
		return types.User{}, conflictOr(err, "email already registered")
	}

	s.activity.Log(ctx, NewActivityEntry(user.ID, client, ActionRegister, "user", user.ID, "registered "+user.Email))
	return user, nil
}

// Verify parses a token and loads its user. Disabled or deleted users are
// rejected even while the token itself is still valid.
func (s *AuthService) Verify(ctx context.Context, token string) (types.User, *Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return types.User{}, nil, err
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return types.User{}, nil, err
	}
	if !user.IsActive {
		return types.User{}, nil, ErrAccountDisabled
	}
	return user, claims, nil
}

// Logout drops the session row for token. It is best effort: the caller
// clears the cookie regardless.
func (s *AuthService) Logout(ctx context.Context, token string, userID int, client ClientInfo) {
	if token != "" {
		if err := s.sessions.DeleteByTokenHash(ctx, HashToken(token)); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("delete session", "user_id", userID, "error", err)
		}
	}
	if userID > 0 {
		s.activity.Log(ctx, NewActivityEntry(userID, client, ActionLogout, "user", userID, "signed out"))
	}
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID int, in ProfileInput) (types.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = plainText(in.Name)
	if err := validateStruct(in); err != nil {
		return types.User{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	user.Email = in.Email
	user.Name = in.Name

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return types.User{}, conflictOr(err, "email already registered")
	}
	return updated, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID int, current, next string, client ClientInfo) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !CheckPassword(user.PasswordHash, current) {
		return fieldError("current_password", "is incorrect")
	}
	if err := ValidatePassword(next); err != nil {
		return err
	}
	if current == next {
		return fieldError("password", "must differ from the current password")
	}

	hashed, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hashed); err != nil {
		return err
	}

	s.activity.Log(ctx, NewActivityEntry(userID, client, ActionPasswordChange, "user", userID, "changed password"))
	return nil
}

// PurgeExpiredSessions removes session rows past their expiry.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now())
}

func (s *AuthService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hashed, err := HashPassword("not-a-real-password-0")
		if err == nil {
			s.dummyHash = hashed
		}
	})
	return s.dummyHash
}

// DeviceLabel summarizes a User-Agent header, e.g. "Chrome on Windows (desktop)".
func DeviceLabel(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return ""
	}
	parsed := useragent.Parse(ua)

	name := parsed.Name
	if name == "" {
		name = "Unknown browser"
	}
	label := name
	if parsed.OS != "" {
		label += " on " + parsed.OS
	}

	switch {
	case parsed.Bot:
		label += " (bot)"
	case parsed.Tablet:
		label += " (tablet)"
	case parsed.Mobile:
		label += " (mobile)"
	case parsed.Desktop:
		label += " (desktop)"
	}
	return label
}

// NewActivityEntry builds an activity log row for an action taken by userID.
func NewActivityEntry(userID int, client ClientInfo, action, entityType string, entityID any, description string) types.ActivityLog {
	entry := types.ActivityLog{
		Action:      action,
		EntityType:  entityType,
		Description: description,
		IPAddress:   client.IP,
		UserAgent:   client.UserAgent,
	}
	if userID > 0 {
		id := userID
		entry.UserID = &id
	}
	switch v := entityID.(type) {
	case int:
		entry.EntityID = strconv.Itoa(v)
	case string:
		entry.EntityID = v
	case nil:
	default:
		entry.EntityID = fmt.Sprint(v)
	}
	return entry
}
