package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shieldline/siteapi/internal/services"
	"github.com/shieldline/siteapi/types"
)

const formFieldFile = "file"

const (
	maxMultipartMemory = 8 << 20
	multipartOverhead  = 1 << 20 // boundaries and part headers around the file
)

// UploadHandler accepts image uploads.
type UploadHandler struct {
	responder
	uploads  *services.UploadService
	activity *services.ActivityService
}

// NewUploadHandler constructs an UploadHandler with the provided dependencies.
func NewUploadHandler(uploads *services.UploadService, activity *services.ActivityService, dev bool) *UploadHandler {
	return &UploadHandler{
		responder: responder{dev: dev},
		uploads:   uploads,
		activity:  activity,
	}
}

// UploadAdminRouter registers upload management routes.
func UploadAdminRouter(r chi.Router, handler *UploadHandler, require PermissionMiddleware) {
	r.With(require(types.ResourceUploads, types.ActionDelete)).Delete("/", handler.Delete)
}

// Upload stores the multipart field "file" and returns its public URL.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorDetails(w, http.StatusBadRequest, "validation failed", map[string]string{"file": "file too large"})
			return
		}
		writeErrorDetails(w, http.StatusBadRequest, "validation failed", map[string]string{"file": "expected a multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeErrorDetails(w, http.StatusBadRequest, "validation failed", map[string]string{"file": "is required"})
		return
	}
	defer file.Close()

	if header.Size > h.uploads.MaxBytes() {
		writeErrorDetails(w, http.StatusBadRequest, "validation failed", map[string]string{"file": "file too large"})
		return
	}

	upload, err := h.uploads.Save(r.Context(), header.Filename, file)
	if err != nil {
		h.fail(w, r, err, "upload")
		return
	}

	h.activity.Log(r.Context(), services.NewActivityEntry(currentUser(r).ID, clientInfo(r),
		services.ActionUpload, "upload", upload.Key, "uploaded "+upload.OriginalName))
	writeSuccess(w, http.StatusCreated, upload, "file uploaded")
}

// Delete removes an upload named by the key query parameter.
func (h *UploadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		writeErrorDetails(w, http.StatusBadRequest, "validation failed", map[string]string{"key": "is required"})
		return
	}

	if err := h.uploads.Delete(r.Context(), key); err != nil {
		h.fail(w, r, err, "upload")
		return
	}

	h.activity.Log(r.Context(), services.NewActivityEntry(currentUser(r).ID, clientInfo(r),
		services.ActionDelete, "upload", key, "deleted upload"))
	writeSuccess(w, http.StatusOK, nil, "file deleted")
}
