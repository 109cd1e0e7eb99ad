package services

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	gifHeader = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
)

func newUploadFixture(max int64) (*UploadService, *fakeObjectStore) {
	objects := newFakeObjectStore()
	svc := NewUploadService(objects, max)
	svc.now = func() time.Time { return time.Date(2025, 2, 14, 10, 0, 0, 0, time.UTC) }
	return svc, objects
}

func TestUploadSave(t *testing.T) {
	svc, objects := newUploadFixture(1024)

	up, err := svc.Save(context.Background(), "Team Photo.PNG", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^uploads/2025/02/[0-9a-f-]{36}\.png$`), up.Key)
	assert.Equal(t, "https://cdn.example.com/"+up.Key, up.URL)
	assert.Equal(t, "image/png", up.ContentType)
	assert.EqualValues(t, len(pngHeader), up.Size)
	assert.Equal(t, "Team Photo.PNG", up.OriginalName)
	assert.Equal(t, pngHeader, objects.objects[up.Key])
	assert.Equal(t, "image/png", objects.types[up.Key])

	other, err := svc.Save(context.Background(), "team.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.NotEqual(t, up.Key, other.Key)
}

func TestUploadRejects(t *testing.T) {
	svc, objects := newUploadFixture(32)
	ctx := context.Background()

	cases := []struct {
		name     string
		filename string
		data     []byte
		message  string
	}{
		{"extension", "shell.php", pngHeader, "only jpg"},
		{"no extension", "image", pngHeader, "only jpg"},
		{"svg", "logo.svg", []byte("<svg/>"), "only jpg"},
		{"content mismatch", "photo.jpg", pngHeader, "does not match"},
		{"gif as png", "anim.png", gifHeader, "does not match"},
		{"text as gif", "notes.gif", []byte("just some text"), "does not match"},
		{"empty", "empty.png", nil, "empty"},
		{"too large", "big.png", append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 32)...), "too large"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Save(ctx, tc.filename, bytes.NewReader(tc.data))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, verr.Fields["file"], tc.message)
		})
	}
	assert.Empty(t, objects.objects)
}

func TestUploadGIF(t *testing.T) {
	svc, _ := newUploadFixture(1024)
	up, err := svc.Save(context.Background(), "anim.gif", bytes.NewReader(gifHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(up.Key, ".gif"))
	assert.Equal(t, "image/gif", up.ContentType)
}

func TestUploadDelete(t *testing.T) {
	svc, objects := newUploadFixture(1024)
	ctx := context.Background()
	up, err := svc.Save(ctx, "a.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, up.Key))
	assert.NotContains(t, objects.objects, up.Key)

	var verr *ValidationError
	assert.True(t, errors.As(svc.Delete(ctx, "config/secret.env"), &verr))
	assert.True(t, errors.As(svc.Delete(ctx, "uploads/../config.env"), &verr))
}

func TestUploadDefaultMax(t *testing.T) {
	svc := NewUploadService(newFakeObjectStore(), 0)
	assert.EqualValues(t, 5<<20, svc.MaxBytes())
}
