package handlers

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shieldline/siteapi/config"
	"github.com/shieldline/siteapi/internal/logging"
	"github.com/shieldline/siteapi/internal/services"
	"github.com/shieldline/siteapi/internal/store"
	"github.com/shieldline/siteapi/types"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "handler-test-secret-0123456789abcdef"
	testPassword = "s3cure-pass"
)

var (
	hashOnce sync.Once
	testHash string
)

// passwordHash hashes testPassword once per test binary.
func passwordHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := services.HashPassword(testPassword)
		require.NoError(t, err)
		testHash = h
	})
	return testHash
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[int]types.User
}

func newFakeUsers(users ...types.User) *fakeUsers {
	f := &fakeUsers{users: make(map[int]types.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(ctx context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUsers) List(ctx context.Context, filter types.UserFilter) ([]types.User, int, error) {
	return nil, 0, nil
}

func (f *fakeUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.ID = len(f.users) + 100
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUsers) Update(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUsers) UpdatePassword(ctx context.Context, id int, hash string) error {
	return nil
}

func (f *fakeUsers) Delete(ctx context.Context, id int) error {
	return nil
}

func (f *fakeUsers) RecordLoginFailure(ctx context.Context, id, threshold int, now, lockUntil time.Time) (int, *time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	if u.LockedUntil != nil && !u.LockedUntil.After(now) {
		u.FailedLoginAttempts = 1
		u.LockedUntil = nil
	} else {
		u.FailedLoginAttempts++
	}
	if u.FailedLoginAttempts >= threshold {
		u.LockedUntil = &lockUntil
	}
	f.users[id] = u
	return u.FailedLoginAttempts, u.LockedUntil, nil
}

func (f *fakeUsers) RecordLoginSuccess(ctx context.Context, id int, ip string, at time.Time) error {
	return nil
}

func (f *fakeUsers) Count(ctx context.Context) (int, int, error) {
	return len(f.users), len(f.users), nil
}

type fakeSessions struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeSessions) Create(ctx context.Context, s types.Session) (types.Session, error) {
	return s, nil
}

func (f *fakeSessions) DeleteByTokenHash(ctx context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, hash)
	return nil
}

func (f *fakeSessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type fakeRoles map[int][]types.Role

func (f fakeRoles) ListForUser(ctx context.Context, userID int) ([]types.Role, error) {
	return f[userID], nil
}

type fakeObjects struct {
	mu   sync.Mutex
	keys map[string]int
}

func (f *fakeObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = make(map[string]int)
	}
	f.keys[key] = len(data)
	return nil
}

func (f *fakeObjects) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; !ok {
		return store.ErrNotFound
	}
	delete(f.keys, key)
	return nil
}

func (f *fakeObjects) URL(key string) string {
	return "https://cdn.example.com/" + key
}

// authFixture wires an AuthHandler over in-memory repositories.
type authFixture struct {
	handler  *AuthHandler
	users    *fakeUsers
	sessions *fakeSessions
	tokens   *services.TokenIssuer
}

func newAuthFixture(t *testing.T, roles fakeRoles, users ...types.User) *authFixture {
	t.Helper()
	f := &authFixture{
		users:    newFakeUsers(users...),
		sessions: &fakeSessions{},
		tokens:   services.NewTokenIssuer(testSecret, 7*24*time.Hour),
	}
	auth := services.NewAuthService(f.users, f.sessions, f.tokens, nil, config.AuthConfig{
		MaxFailedLogins: 5,
		LockoutDuration: 15 * time.Minute,
	}, logging.Discard())
	if roles == nil {
		roles = fakeRoles{}
	}
	f.handler = NewAuthHandler(auth, services.NewPermissionService(roles), true, false)
	return f
}

func (f *authFixture) token(t *testing.T, user types.User) string {
	t.Helper()
	token, _, err := f.tokens.Issue(user)
	require.NoError(t, err)
	return token
}
