package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shieldline/siteapi/internal/services"
	"github.com/shieldline/siteapi/types"
)

// UserHandler provides admin user management endpoints.
type UserHandler struct {
	responder
	users    *services.UserService
	activity *services.ActivityService
}

// NewUserHandler constructs a UserHandler with the provided dependencies.
func NewUserHandler(users *services.UserService, activity *services.ActivityService, dev bool) *UserHandler {
	return &UserHandler{
		responder: responder{dev: dev},
		users:     users,
		activity:  activity,
	}
}

// UserAdminRouter registers user management routes.
func UserAdminRouter(r chi.Router, handler *UserHandler, require PermissionMiddleware) {
	r.With(require(types.ResourceUsers, types.ActionView)).Get("/", handler.List)
	r.With(require(types.ResourceUsers, types.ActionCreate)).Post("/", handler.Create)
	r.Route("/{userID}", func(r chi.Router) {
		r.With(require(types.ResourceUsers, types.ActionView)).Get("/", handler.Get)
		r.With(require(types.ResourceUsers, types.ActionEdit)).Put("/", handler.Update)
		r.With(require(types.ResourceUsers, types.ActionDelete)).Delete("/", handler.Delete)
		r.With(require(types.ResourceUsers, types.ActionEdit)).Put("/roles", handler.SetRoles)
	})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, total, err := h.users.List(r.Context(), types.UserFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		h.fail(w, r, err, "user")
		return
	}
	writeSuccess(w, http.StatusOK, ListResponse{Items: users, Page: page, Limit: limit, Total: total}, "")
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "user")
		return
	}
	writeSuccess(w, http.StatusOK, detail, "")
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateUserInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, "user")
		return
	}

	actor := currentUser(r)
	user, err := h.users.Create(r.Context(), actor.ID, req)
	if err != nil {
		h.fail(w, r, err, "user")
		return
	}

	h.activity.Log(r.Context(), services.NewActivityEntry(actor.ID, clientInfo(r),
		services.ActionCreate, "user", user.ID, "created user "+user.Email))
	writeSuccess(w, http.StatusCreated, user, "user created")
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req services.UpdateUserInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, "user")
		return
	}

	actor := currentUser(r)
	if actor.ID == id && req.IsActive != nil && !*req.IsActive {
		writeError(w, http.StatusBadRequest, "you cannot disable your own account")
		return
	}

	user, err := h.users.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err, "user")
		return
	}

	h.activity.Log(r.Context(), services.NewActivityEntry(actor.ID, clientInfo(r),
		services.ActionUpdate, "user", user.ID, "updated user "+user.Email))
	writeSuccess(w, http.StatusOK, user, "user updated")
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor := currentUser(r)
	if err := h.users.Delete(r.Context(), actor.ID, id); err != nil {
		h.fail(w, r, err, "user")
		return
	}

	h.activity.Log(r.Context(), services.NewActivityEntry(actor.ID, clientInfo(r),
		services.ActionDelete, "user", id, "deleted user"))
	writeSuccess(w, http.StatusOK, nil, "user deleted")
}

func (h *UserHandler) SetRoles(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req SetRolesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, "user")
		return
	}

	actor := currentUser(r)
	roles, err := h.users.SetRoles(r.Context(), actor.ID, id, req.RoleIDs)
	if err != nil {
		h.fail(w, r, err, "user")
		return
	}

	h.activity.Log(r.Context(), services.NewActivityEntry(actor.ID, clientInfo(r),
		services.ActionAssignRoles, "user", id, "assigned roles"))
	writeSuccess(w, http.StatusOK, roles, "roles updated")
}

type SetRolesRequest struct {
	RoleIDs []int `json:"role_ids"`
}
