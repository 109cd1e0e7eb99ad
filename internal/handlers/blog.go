package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shieldline/siteapi/internal/services"
	"github.com/shieldline/siteapi/types"
)

// PermissionMiddleware builds a middleware requiring action on resource.
type PermissionMiddleware func(resource types.Resource, action types.Action) func(http.Handler) http.Handler

// BlogHandler provides the public blog and its admin management endpoints.
type BlogHandler struct {
	responder
	blog     *services.BlogService
	activity *services.ActivityService
}

// NewBlogHandler constructs a BlogHandler with the provided dependencies.
func NewBlogHandler(blog *services.BlogService, activity *services.ActivityService, dev bool) *BlogHandler {
	return &BlogHandler{
		responder: responder{dev: dev},
		blog:      blog,
		activity:  activity,
	}
}

// BlogRouter registers the public blog routes.
func BlogRouter(r chi.Router, handler *BlogHandler) {
	r.Get("/", handler.ListPublished)
	r.Get("/{slug}", handler.GetPublished)
}

// BlogAdminRouter registers blog management routes.
func BlogAdminRouter(r chi.Router, handler *BlogHandler, require PermissionMiddleware) {
	r.With(require(types.ResourceBlog, types.ActionView)).Get("/", handler.List)
	r.With(require(types.ResourceBlog, types.ActionCreate)).Post("/", handler.Create)
	r.Route("/{postID}", func(r chi.Router) {
		r.With(require(types.ResourceBlog, types.ActionView)).Get("/", handler.Get)
		r.With(require(types.ResourceBlog, types.ActionEdit)).Put("/", handler.Update)
		r.With(require(types.ResourceBlog, types.ActionDelete)).Delete("/", handler.Delete)
	})
}

func (h *BlogHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	posts, total, err := h.blog.ListPublished(r.Context(), types.BlogFilter{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Search:   strings.TrimSpace(r.URL.Query().Get("search")),
		Offset:   offset,
		Limit:    limit,
	})
	if err != nil {
		h.fail(w, r, err, "post")
		return
	}

	lang := requestLang(r)
	items := make([]types.LocalizedPost, 0, len(posts))
	for _, post := range posts {
		items = append(items, post.Localize(lang, false))
	}

	w.Header().Set("Vary", "Accept-Language")
	writeSuccess(w, http.StatusOK, ListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	}, "")
}

func (h *BlogHandler) GetPublished(w http.ResponseWriter, r *http.Request) {
	postSlug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if postSlug == "" {
		writeError(w, http.StatusBadRequest, "invalid slug")
		return
	}

	post, err := h.blog.GetPublished(r.Context(), postSlug)
	if err != nil {
		h.fail(w, r, err, "post")
		return
	}

	w.Header().Set("Vary", "Accept-Language")
	writeSuccess(w, http.StatusOK, post.Localize(requestLang(r), true), "")
}

func (h *BlogHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := types.PostStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	posts, total, err := h.blog.List(r.Context(), types.BlogFilter{
		Status:   status,
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Search:   strings.TrimSpace(r.URL.Query().Get("search")),
		Offset:   offset,
		Limit:    limit,
	})
	if err != nil {
		h.fail(w, r, err, "post")
		return
	}

	writeSuccess(w, http.StatusOK, ListResponse{
		Items: posts,
		Page:  page,
		Limit: limit,
		Total: total,
	}, "")
}

func (h *BlogHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "postID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.blog.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "post")
		return
	}
	writeSuccess(w, http.StatusOK, post, "")
}

func (h *BlogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.PostInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, "post")
		return
	}

	user := currentUser(r)
	post, err := h.blog.Create(r.Context(), user.ID, req)
	if err != nil {
		h.fail(w, r, err, "post")
		return
	}

	h.activity.Log(r.Context(), services.NewActivityEntry(user.ID, clientInfo(r),
		services.ActionCreate, "blog_post", post.ID, "created post "+post.Slug))
	writeSuccess(w, http.StatusCreated, post, "post created")
}

func (h *BlogHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "postID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req services.PostInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, "post")
		return
	}

	post, err := h.blog.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err, "post")
		return
	}

	h.activity.Log(r.Context(), services.NewActivityEntry(currentUser(r).ID, clientInfo(r),
		services.ActionUpdate, "blog_post", post.ID, "updated post "+post.Slug))
	writeSuccess(w, http.StatusOK, post, "post updated")
}

func (h *BlogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "postID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.blog.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err, "post")
		return
	}

	h.activity.Log(r.Context(), services.NewActivityEntry(currentUser(r).ID, clientInfo(r),
		services.ActionDelete, "blog_post", id, "deleted post"))
	writeSuccess(w, http.StatusOK, nil, "post deleted")
}
