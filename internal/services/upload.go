package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/shieldline/siteapi/types"
)

// imageTypes maps allowed extensions to the MIME type their content must have.
var imageTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// uploadPrefix is the key prefix of every stored upload.
const uploadPrefix = "uploads/"

// ObjectStore stores uploaded files.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// UploadService validates and stores images.
type UploadService struct {
	store    ObjectStore
	maxBytes int64
	now      func() time.Time
}

func NewUploadService(store ObjectStore, maxBytes int64) *UploadService {
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &UploadService{store: store, maxBytes: maxBytes, now: time.Now}
}

// MaxBytes is the largest accepted file.
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// Save checks the file's size, extension and sniffed content type, then
// stores it under a random name.
func (s *UploadService) Save(ctx context.Context, filename string, r io.Reader) (types.Upload, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	expected, ok := imageTypes[ext]
	if !ok {
		return types.Upload{}, fieldError("file", "only jpg, jpeg, png, gif and webp images are allowed")
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return types.Upload{}, err
	}
	if int64(len(data)) > s.maxBytes {
		return types.Upload{}, fieldError("file", "file too large")
	}
	if len(data) == 0 {
		return types.Upload{}, fieldError("file", "file is empty")
	}

	detected := mimetype.Detect(data)
	if !detected.Is(expected) {
		return types.Upload{}, fieldError("file", "file content does not match its extension")
	}

	now := s.now().UTC()
	key := fmt.Sprintf("%s%04d/%02d/%s.%s", uploadPrefix, now.Year(), int(now.Month()), uuid.NewString(), ext)
	if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), expected); err != nil {
		return types.Upload{}, err
	}

	return types.Upload{
		Key:          key,
		URL:          s.store.URL(key),
		Size:         int64(len(data)),
		ContentType:  expected,
		OriginalName: plainText(filepath.Base(filename)),
	}, nil
}

// Delete removes a previously uploaded file.
func (s *UploadService) Delete(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, uploadPrefix) || strings.Contains(key, "..") {
		return fieldError("key", "is not an upload key")
	}
	return s.store.Delete(ctx, key)
}
