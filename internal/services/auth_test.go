package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shieldline/siteapi/config"
	"github.com/shieldline/siteapi/internal/logging"
	"github.com/shieldline/siteapi/internal/store"
	"github.com/shieldline/siteapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type authFixture struct {
	svc      *AuthService
	users    *fakeUserRepo
	sessions *fakeSessionRepo
	activity *fakeActivityRepo
	clock    *time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	users := newFakeUserRepo()
	sessions := newFakeSessionRepo()
	activity := &fakeActivityRepo{}
	logger := logging.Discard()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &authFixture{users: users, sessions: sessions, activity: activity, clock: &now}

	tokens := NewTokenIssuer(testSecret, 7*24*time.Hour)
	tokens.now = func() time.Time { return *f.clock }

	f.svc = NewAuthService(users, sessions, tokens, NewActivityService(activity, logger), config.AuthConfig{
		MaxFailedLogins: 5,
		LockoutDuration: 15 * time.Minute,
	}, logger)
	f.svc.now = func() time.Time { return *f.clock }
	return f
}

func (f *authFixture) addUser(t *testing.T, email, password string, active bool) types.User {
	t.Helper()
	hashed, err := HashPassword(password)
	require.NoError(t, err)
	user, err := f.users.Create(context.Background(), types.User{
		Email:        email,
		Name:         "Test User",
		Role:         types.RoleEditor,
		PasswordHash: hashed,
		IsActive:     active,
	})
	require.NoError(t, err)
	return user
}

func (f *authFixture) advance(d time.Duration) {
	next := f.clock.Add(d)
	*f.clock = next
}

var testClient = ClientInfo{IP: "203.0.113.7", UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"}

func TestAuthenticateSuccess(t *testing.T) {
	f := newAuthFixture(t)
	user := f.addUser(t, "ops@example.com", "Secret123", true)

	res, err := f.svc.Authenticate(context.Background(), "  OPS@example.com ", "Secret123", testClient)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, user.ID, res.User.ID)
	assert.Equal(t, f.clock.Add(7*24*time.Hour), res.ExpiresAt)

	stored, err := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	assert.Equal(t, "203.0.113.7", stored.LastLoginIP)

	assert.Contains(t, f.sessions.sessions, HashToken(res.Token))
	assert.Equal(t, []string{ActionLogin}, f.activity.actions())

	claims, err := f.svc.Tokens().Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "ops@example.com", claims.Email)
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Authenticate(context.Background(), "nobody@example.com", "Secret123", testClient)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateDisabled(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "off@example.com", "Secret123", false)

	_, err := f.svc.Authenticate(context.Background(), "off@example.com", "Secret123", testClient)
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestAuthenticateLocksAfterFiveFailures(t *testing.T) {
	f := newAuthFixture(t)
	user := f.addUser(t, "ops@example.com", "Secret123", true)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := f.svc.Authenticate(ctx, "ops@example.com", "wrong-pass1", testClient)
		require.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i+1)
	}

	_, err := f.svc.Authenticate(ctx, "ops@example.com", "wrong-pass1", testClient)
	var locked *LockedError
	require.True(t, errors.As(err, &locked))
	assert.Equal(t, 15, locked.Minutes())
	assert.Equal(t, "account locked, try again in 15 minutes", err.Error())

	// The correct password is rejected while locked.
	f.advance(5 * time.Minute)
	_, err = f.svc.Authenticate(ctx, "ops@example.com", "Secret123", testClient)
	require.True(t, errors.As(err, &locked))
	assert.Equal(t, 10, locked.Minutes())

	// After the lock expires the correct password works and resets the counter.
	f.advance(11 * time.Minute)
	_, err = f.svc.Authenticate(ctx, "ops@example.com", "Secret123", testClient)
	require.NoError(t, err)

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedUntil)
}

func TestAuthenticateFailureAfterExpiredLockRestartsCount(t *testing.T) {
	f := newAuthFixture(t)
	user := f.addUser(t, "ops@example.com", "Secret123", true)
	ctx := context.Background()

	var locked *LockedError
	for i := 0; i < 5; i++ {
		_, err := f.svc.Authenticate(ctx, "ops@example.com", "wrong-pass1", testClient)
		if i == 4 {
			require.True(t, errors.As(err, &locked))
		}
	}

	f.advance(15*time.Minute + time.Second)
	_, err := f.svc.Authenticate(ctx, "ops@example.com", "wrong-pass1", testClient)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedUntil)

	// A full new run of failures is needed to lock again.
	for i := 0; i < 3; i++ {
		_, err = f.svc.Authenticate(ctx, "ops@example.com", "wrong-pass1", testClient)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err = f.svc.Authenticate(ctx, "ops@example.com", "wrong-pass1", testClient)
	require.True(t, errors.As(err, &locked))
	assert.Equal(t, 15, locked.Minutes())
}

func TestAuthenticateSuccessResetsFailures(t *testing.T) {
	f := newAuthFixture(t)
	user := f.addUser(t, "ops@example.com", "Secret123", true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Authenticate(ctx, "ops@example.com", "nope-nope1", testClient)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := f.svc.Authenticate(ctx, "ops@example.com", "Secret123", testClient)
	require.NoError(t, err)

	// Four more failures are allowed before the next lock.
	for i := 0; i < 4; i++ {
		_, err := f.svc.Authenticate(ctx, "ops@example.com", "nope-nope1", testClient)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.FailedLoginAttempts)
}

func TestRegister(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, RegisterInput{
		Email:    "New@Example.com",
		Name:     "<b>Layla</b>",
		Password: "Passw0rdX",
	}, testClient)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, "Layla", user.Name)
	assert.Equal(t, types.RoleViewer, user.Role)
	assert.True(t, user.IsActive)
	assert.True(t, CheckPassword(user.PasswordHash, "Passw0rdX"))

	_, err = f.svc.Register(ctx, RegisterInput{
		Email:    "new@example.com",
		Name:     "Someone",
		Password: "Passw0rdX",
	}, testClient)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "email already registered", conflict.Message)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Email:    "not-an-email",
		Name:     "A",
		Password: "short",
	}, testClient)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "name")

	_, err = f.svc.Register(context.Background(), RegisterInput{
		Email:    "ok@example.com",
		Name:     "Okay Name",
		Password: "lettersonly",
	}, testClient)
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "password")
}

func TestVerify(t *testing.T) {
	f := newAuthFixture(t)
	user := f.addUser(t, "ops@example.com", "Secret123", true)
	ctx := context.Background()

	res, err := f.svc.Authenticate(ctx, "ops@example.com", "Secret123", testClient)
	require.NoError(t, err)

	got, claims, err := f.svc.Verify(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.ID, claims.UserID)

	user.IsActive = false
	_, err = f.users.Update(ctx, user)
	require.NoError(t, err)
	_, _, err = f.svc.Verify(ctx, res.Token)
	assert.ErrorIs(t, err, ErrAccountDisabled)

	_, _, err = f.svc.Verify(ctx, "garbage")
	assert.Error(t, err)
}

func TestLogoutRemovesSession(t *testing.T) {
	f := newAuthFixture(t)
	user := f.addUser(t, "ops@example.com", "Secret123", true)
	ctx := context.Background()

	res, err := f.svc.Authenticate(ctx, "ops@example.com", "Secret123", testClient)
	require.NoError(t, err)

	f.svc.Logout(ctx, res.Token, user.ID, testClient)
	assert.NotContains(t, f.sessions.sessions, HashToken(res.Token))
	assert.Equal(t, []string{ActionLogin, ActionLogout}, f.activity.actions())

	// A second logout is harmless.
	f.svc.Logout(ctx, res.Token, user.ID, testClient)
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	user := f.addUser(t, "ops@example.com", "Secret123", true)
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, user.ID, "wrong", "NewSecret456", testClient)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "current_password")

	err = f.svc.ChangePassword(ctx, user.ID, "Secret123", "Secret123", testClient)
	require.True(t, errors.As(err, &verr))

	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, "Secret123", "NewSecret456", testClient))
	_, err = f.svc.Authenticate(ctx, "ops@example.com", "NewSecret456", testClient)
	assert.NoError(t, err)
}

func TestUpdateProfileConflict(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "taken@example.com", "Secret123", true)
	user := f.addUser(t, "ops@example.com", "Secret123", true)

	_, err := f.svc.UpdateProfile(context.Background(), user.ID, ProfileInput{Email: "taken@example.com", Name: "Ops"})
	assert.ErrorIs(t, err, store.ErrConflict)

	updated, err := f.svc.UpdateProfile(context.Background(), user.ID, ProfileInput{Email: "ops2@example.com", Name: "Ops Team"})
	require.NoError(t, err)
	assert.Equal(t, "ops2@example.com", updated.Email)
}

func TestPurgeExpiredSessions(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "ops@example.com", "Secret123", true)
	_, err := f.svc.Authenticate(context.Background(), "ops@example.com", "Secret123", testClient)
	require.NoError(t, err)

	n, err := f.svc.PurgeExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.advance(8 * 24 * time.Hour)
	n, err = f.svc.PurgeExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDeviceLabel(t *testing.T) {
	assert.Equal(t, "", DeviceLabel(""))
	assert.Contains(t, DeviceLabel(testClient.UserAgent), "Chrome")
	assert.Contains(t, DeviceLabel(testClient.UserAgent), "Windows")
}

func TestNewActivityEntry(t *testing.T) {
	entry := NewActivityEntry(3, testClient, ActionCreate, "blog_post", 42, "created post")
	require.NotNil(t, entry.UserID)
	assert.Equal(t, 3, *entry.UserID)
	assert.Equal(t, "42", entry.EntityID)
	assert.Equal(t, "203.0.113.7", entry.IPAddress)

	anon := NewActivityEntry(0, ClientInfo{}, ActionUpload, "upload", "uploads/a.png", "")
	assert.Nil(t, anon.UserID)
	assert.Equal(t, "uploads/a.png", anon.EntityID)
}
