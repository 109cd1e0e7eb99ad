package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shieldline/siteapi/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) (*Storage, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := NewLocalStorage(config.LocalStorageConfig{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, backend.EnsureBucket(context.Background()))
	return NewStorage(backend, "https://cdn.example.com/"), dir
}

func TestLocalPutAndDelete(t *testing.T) {
	s, dir := newLocal(t)
	ctx := context.Background()
	key := "uploads/2026/10/a.png"

	require.NoError(t, s.Put(ctx, key, strings.NewReader("png-bytes"), 9, "image/png"))

	data, err := os.ReadFile(filepath.Join(dir, "uploads", "2026", "10", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, s.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(dir, "uploads", "2026", "10", "a.png"))
	assert.True(t, os.IsNotExist(err))

	// deleting again is a no-op
	assert.NoError(t, s.Delete(ctx, key))
}

func TestInvalidKeys(t *testing.T) {
	s, _ := newLocal(t)
	ctx := context.Background()

	for _, key := range []string{"", "/etc/passwd", "../x.png", "uploads/../../x.png", "uploads//x.png", `uploads\x.png`} {
		err := s.Put(ctx, key, strings.NewReader("x"), 1, "image/png")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestURL(t *testing.T) {
	s, _ := newLocal(t)
	assert.Equal(t, "https://cdn.example.com/uploads/2026/10/a.png", s.URL("uploads/2026/10/a.png"))
	assert.Equal(t, "https://cdn.example.com/uploads/a.png", s.URL("/uploads/a.png"))
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	cfg := config.Config{Storage: config.StorageConfig{Backend: "ftp"}}
	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}

func TestOpenLocal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "public")
	cfg := config.Config{
		Storage: config.StorageConfig{Backend: "local", Local: config.LocalStorageConfig{Dir: dir}},
		Upload:  config.UploadConfig{BaseURL: "http://localhost:8080"},
	}
	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "http://localhost:8080/uploads/x.png", s.URL("uploads/x.png"))
}

func TestPublicReadPolicy(t *testing.T) {
	policy := publicReadPolicy("site-uploads", uploadPrefix)
	assert.Contains(t, policy, `arn:aws:s3:::site-uploads/uploads/*`)
	assert.Contains(t, policy, `s3:GetObject`)
}
