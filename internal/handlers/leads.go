package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shieldline/siteapi/internal/services"
	"github.com/shieldline/siteapi/types"
)

// LeadHandler accepts public consultation and contact submissions and
// serves their admin management endpoints.
type LeadHandler struct {
	responder
	leads    *services.LeadService
	activity *services.ActivityService
}

// NewLeadHandler constructs a LeadHandler with the provided dependencies.
func NewLeadHandler(leads *services.LeadService, activity *services.ActivityService, dev bool) *LeadHandler {
	return &LeadHandler{
		responder: responder{dev: dev},
		leads:     leads,
		activity:  activity,
	}
}

// ConsultationAdminRouter registers consultation management routes.
func ConsultationAdminRouter(r chi.Router, handler *LeadHandler, require PermissionMiddleware) {
	r.With(require(types.ResourceConsultations, types.ActionView)).Get("/", handler.ListConsultations)
	r.Route("/{leadID}", func(r chi.Router) {
		r.With(require(types.ResourceConsultations, types.ActionView)).Get("/", handler.GetConsultation)
		r.With(require(types.ResourceConsultations, types.ActionEdit)).Patch("/", handler.UpdateConsultation)
		r.With(require(types.ResourceConsultations, types.ActionDelete)).Delete("/", handler.DeleteConsultation)
	})
}

// ContactAdminRouter registers contact message management routes.
func ContactAdminRouter(r chi.Router, handler *LeadHandler, require PermissionMiddleware) {
	r.With(require(types.ResourceContacts, types.ActionView)).Get("/", handler.ListContacts)
	r.Route("/{leadID}", func(r chi.Router) {
		r.With(require(types.ResourceContacts, types.ActionView)).Get("/", handler.GetContact)
		r.With(require(types.ResourceContacts, types.ActionEdit)).Patch("/", handler.UpdateContact)
		r.With(require(types.ResourceContacts, types.ActionDelete)).Delete("/", handler.DeleteContact)
	})
}

func (h *LeadHandler) SubmitConsultation(w http.ResponseWriter, r *http.Request) {
	var req services.ConsultationInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, "consultation")
		return
	}

	c, err := h.leads.SubmitConsultation(r.Context(), req, clientInfo(r).IP)
	if err != nil {
		h.fail(w, r, err, "consultation")
		return
	}
	writeSuccess(w, http.StatusCreated, LeadReceipt{ID: c.ID}, "consultation request received")
}

func (h *LeadHandler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var req services.ContactInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, "contact")
		return
	}

	c, err := h.leads.SubmitContact(r.Context(), req, clientInfo(r).IP)
	if err != nil {
		h.fail(w, r, err, "contact")
		return
	}
	writeSuccess(w, http.StatusCreated, LeadReceipt{ID: c.ID}, "message received")
}

func (h *LeadHandler) ListConsultations(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseLeadFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.leads.ListConsultations(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err, "consultation")
		return
	}
	writeSuccess(w, http.StatusOK, ListResponse{Items: items, Page: page, Limit: filter.Limit, Total: total}, "")
}

func (h *LeadHandler) GetConsultation(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "leadID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.leads.GetConsultation(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "consultation")
		return
	}
	writeSuccess(w, http.StatusOK, c, "")
}

func (h *LeadHandler) UpdateConsultation(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "leadID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	upd, err := decodeLeadUpdate(w, r)
	if err != nil {
		h.fail(w, r, err, "consultation")
		return
	}

	c, err := h.leads.UpdateConsultation(r.Context(), id, upd)
	if err != nil {
		h.fail(w, r, err, "consultation")
		return
	}

	h.activity.Log(r.Context(), services.NewActivityEntry(currentUser(r).ID, clientInfo(r),
		services.ActionUpdate, "consultation", c.ID, "updated consultation from "+c.Email))
	writeSuccess(w, http.StatusOK, c, "consultation updated")
}

func (h *LeadHandler) DeleteConsultation(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "leadID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.leads.DeleteConsultation(r.Context(), id); err != nil {
		h.fail(w, r, err, "consultation")
		return
	}

	h.activity.Log(r.Context(), services.NewActivityEntry(currentUser(r).ID, clientInfo(r),
		services.ActionDelete, "consultation", id, "deleted consultation"))
	writeSuccess(w, http.StatusOK, nil, "consultation deleted")
}

func (h *LeadHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseLeadFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.leads.ListContacts(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err, "contact")
		return
	}
	writeSuccess(w, http.StatusOK, ListResponse{Items: items, Page: page, Limit: filter.Limit, Total: total}, "")
}

func (h *LeadHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "leadID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.leads.GetContact(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "contact")
		return
	}
	writeSuccess(w, http.StatusOK, c, "")
}

func (h *LeadHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "leadID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	upd, err := decodeLeadUpdate(w, r)
	if err != nil {
		h.fail(w, r, err, "contact")
		return
	}

	c, err := h.leads.UpdateContact(r.Context(), id, upd)
	if err != nil {
		h.fail(w, r, err, "contact")
		return
	}

	h.activity.Log(r.Context(), services.NewActivityEntry(currentUser(r).ID, clientInfo(r),
		services.ActionUpdate, "contact", c.ID, "updated contact from "+c.Email))
	writeSuccess(w, http.StatusOK, c, "contact updated")
}

func (h *LeadHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "leadID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.leads.DeleteContact(r.Context(), id); err != nil {
		h.fail(w, r, err, "contact")
		return
	}

	h.activity.Log(r.Context(), services.NewActivityEntry(currentUser(r).ID, clientInfo(r),
		services.ActionDelete, "contact", id, "deleted contact"))
	writeSuccess(w, http.StatusOK, nil, "contact deleted")
}

// LeadReceipt acknowledges a public submission.
type LeadReceipt struct {
	ID int `json:"id"`
}

// LeadUpdateRequest is the PATCH body for both lead kinds. An explicit
// null assigned_to unassigns the lead.
type LeadUpdateRequest struct {
	Status     *string         `json:"status"`
	Priority   *types.Priority `json:"priority"`
	AssignedTo json.RawMessage `json:"assigned_to"`
	Notes      *string         `json:"notes"`
}

func decodeLeadUpdate(w http.ResponseWriter, r *http.Request) (types.LeadUpdate, error) {
	var req LeadUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return types.LeadUpdate{}, err
	}

	upd := types.LeadUpdate{
		Status:   req.Status,
		Priority: req.Priority,
		Notes:    req.Notes,
	}
	raw := bytes.TrimSpace(req.AssignedTo)
	switch {
	case len(raw) == 0:
	case bytes.Equal(raw, []byte("null")):
		upd.Unassign = true
	default:
		var id int
		if err := json.Unmarshal(raw, &id); err != nil || id < 1 {
			return types.LeadUpdate{}, &services.ValidationError{Fields: map[string]string{"assigned_to": "must be a user id or null"}}
		}
		upd.AssignedTo = &id
	}
	return upd, nil
}

func parseLeadFilter(r *http.Request) (types.LeadFilter, int, error) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		return types.LeadFilter{}, 0, err
	}
	assigned, err := parseOptionalID(r, "assigned_to")
	if err != nil {
		return types.LeadFilter{}, 0, err
	}
	q := r.URL.Query()
	return types.LeadFilter{
		Status:     strings.TrimSpace(q.Get("status")),
		Priority:   types.Priority(strings.TrimSpace(q.Get("priority"))),
		AssignedTo: assigned,
		Search:     strings.TrimSpace(q.Get("search")),
		Offset:     offset,
		Limit:      limit,
	}, page, nil
}
