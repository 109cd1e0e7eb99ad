package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shieldline/siteapi/internal/services"
	"github.com/shieldline/siteapi/types"
)

// RoleHandler provides role management endpoints.
type RoleHandler struct {
	responder
	roles    *services.RoleService
	activity *services.ActivityService
}

// NewRoleHandler constructs a RoleHandler with the provided dependencies.
func NewRoleHandler(roles *services.RoleService, activity *services.ActivityService, dev bool) *RoleHandler {
	return &RoleHandler{
		responder: responder{dev: dev},
		roles:     roles,
		activity:  activity,
	}
}

// RoleAdminRouter registers role management routes.
func RoleAdminRouter(r chi.Router, handler *RoleHandler, require PermissionMiddleware) {
	r.With(require(types.ResourceRoles, types.ActionView)).Get("/", handler.List)
	r.With(require(types.ResourceRoles, types.ActionCreate)).Post("/", handler.Create)
	r.Route("/{roleID}", func(r chi.Router) {
		r.With(require(types.ResourceRoles, types.ActionView)).Get("/", handler.Get)
		r.With(require(types.ResourceRoles, types.ActionEdit)).Put("/", handler.Update)
		r.With(require(types.ResourceRoles, types.ActionDelete)).Delete("/", handler.Delete)
	})
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		h.fail(w, r, err, "role")
		return
	}
	writeSuccess(w, http.StatusOK, roles, "")
}

func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "roleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	role, err := h.roles.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "role")
		return
	}
	writeSuccess(w, http.StatusOK, role, "")
}

func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.RoleInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, "role")
		return
	}

	role, err := h.roles.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err, "role")
		return
	}

	h.activity.Log(r.Context(), services.NewActivityEntry(currentUser(r).ID, clientInfo(r),
		services.ActionCreate, "role", role.ID, "created role "+role.Name))
	writeSuccess(w, http.StatusCreated, role, "role created")
}

func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "roleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req services.RoleInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, "role")
		return
	}

	role, err := h.roles.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err, "role")
		return
	}

	h.activity.Log(r.Context(), services.NewActivityEntry(currentUser(r).ID, clientInfo(r),
		services.ActionUpdate, "role", role.ID, "updated role "+role.Name))
	writeSuccess(w, http.StatusOK, role, "role updated")
}

func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "roleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.roles.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err, "role")
		return
	}

	h.activity.Log(r.Context(), services.NewActivityEntry(currentUser(r).ID, clientInfo(r),
		services.ActionDelete, "role", id, "deleted role"))
	writeSuccess(w, http.StatusOK, nil, "role deleted")
}
